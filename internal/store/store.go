// Package store persists observations and score records in SQLite. It backs
// the pipeline's fetch cache (skipping provider calls for windows already on
// disk) and keeps the latest score table queryable between runs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/Adrian2901/bloomwatch/internal/domain"
	"github.com/Adrian2901/bloomwatch/internal/pipeline"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS observations (
	metric      TEXT NOT NULL,
	observed_at DATETIME NOT NULL,
	value       REAL,
	UNIQUE(metric, observed_at)
);
CREATE INDEX IF NOT EXISTS idx_observations_metric_time ON observations(metric, observed_at);

CREATE TABLE IF NOT EXISTS scores (
	model       TEXT NOT NULL,
	year        INTEGER NOT NULL,
	payload     TEXT NOT NULL,
	computed_at DATETIME NOT NULL,
	UNIQUE(model, year)
);`

// Store is a SQLite-backed observation cache and score archive.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates the database file (and its directory) if needed and ensures
// the schema exists.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logger.Debug("store opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveObservations upserts a batch of observations in one transaction.
// Values are stored as-is; NaN survives the round trip as SQLite NULL.
func (s *Store) SaveObservations(ctx context.Context, series domain.Series) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations(metric, observed_at, value)
		VALUES(?, ?, ?)
		ON CONFLICT(metric, observed_at) DO UPDATE SET value=excluded.value
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, obs := range series {
		value := sql.NullFloat64{Float64: obs.Value, Valid: !math.IsNaN(obs.Value)}
		if _, err := stmt.ExecContext(ctx, string(obs.Metric), obs.Time.UTC(), value); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s at %s: %w", obs.Metric, obs.Time.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Observations returns the stored series for a metric within [start, end],
// ordered by time.
func (s *Store) Observations(ctx context.Context, metric domain.Metric, start, end time.Time) (domain.Series, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT observed_at, value FROM observations
		WHERE metric = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at
	`, string(metric), start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var series domain.Series
	for rows.Next() {
		var observedAt time.Time
		var value sql.NullFloat64
		if err := rows.Scan(&observedAt, &value); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		v := math.NaN()
		if value.Valid {
			v = value.Float64
		}
		series = append(series, domain.Observation{Time: observedAt.UTC(), Value: v, Metric: metric})
	}
	return series, rows.Err()
}

// WriteScores upserts every score record from a run, keyed by model and
// year. It implements pipeline.ScoreSink, so re-running a window simply
// refreshes the archived rows.
func (s *Store) WriteScores(ctx context.Context, result pipeline.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scores(model, year, payload, computed_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(model, year) DO UPDATE SET payload=excluded.payload, computed_at=excluded.computed_at
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range result.Climate {
		if err := upsertScore(ctx, stmt, domain.ModelClimate, rec.WaterYear, rec.ComputedAt, rec); err != nil {
			tx.Rollback()
			return err
		}
	}
	for _, rec := range result.Bloom.Scores {
		if err := upsertScore(ctx, stmt, domain.ModelBloom, rec.Year, rec.ComputedAt, rec); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ClimateScores returns the archived climate records ordered by water year.
func (s *Store) ClimateScores(ctx context.Context) ([]domain.ClimateScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM scores WHERE model = ? ORDER BY year`, string(domain.ModelClimate))
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	var scores []domain.ClimateScore
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		var rec domain.ClimateScore
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decode score payload: %w", err)
		}
		scores = append(scores, rec)
	}
	return scores, rows.Err()
}

// BloomScores returns the archived bloom records ordered by year.
func (s *Store) BloomScores(ctx context.Context) ([]domain.BloomScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM scores WHERE model = ? ORDER BY year`, string(domain.ModelBloom))
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	var scores []domain.BloomScore
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		var rec domain.BloomScore
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decode score payload: %w", err)
		}
		scores = append(scores, rec)
	}
	return scores, rows.Err()
}

func upsertScore(ctx context.Context, stmt *sql.Stmt, model domain.Model, year int, computedAt time.Time, rec any) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s score for %d: %w", model, year, err)
	}
	if _, err := stmt.ExecContext(ctx, string(model), year, string(payload), computedAt.UTC()); err != nil {
		return fmt.Errorf("insert %s score for %d: %w", model, year, err)
	}
	return nil
}
