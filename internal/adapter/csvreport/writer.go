// Package csvreport writes scored runs to CSV files for offline analysis.
// Each run replaces the previous report set in the output directory.
package csvreport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Adrian2901/bloomwatch/internal/domain"
	"github.com/Adrian2901/bloomwatch/internal/pipeline"
)

const (
	climateFile = "climate_scores.csv"
	bloomFile   = "bloom_scores.csv"
	summaryFile = "ranking_summary.csv"
)

// Writer renders pipeline results as CSV reports. It implements
// pipeline.ScoreSink.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates the output directory if needed.
func NewWriter(dir string, logger *slog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// WriteScores writes one CSV per model plus a ranking summary. A model with
// no scored years produces no file for that model, but the summary always
// reflects whatever rankings the run yielded.
func (w *Writer) WriteScores(ctx context.Context, result pipeline.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(result.Climate) > 0 {
		if err := w.writeClimate(result.Climate); err != nil {
			return err
		}
	}
	if len(result.Bloom.Scores) > 0 {
		if err := w.writeBloom(result.Bloom); err != nil {
			return err
		}
	}
	if err := w.writeSummary(result); err != nil {
		return err
	}

	w.logger.Info("csv reports written",
		"dir", w.dir,
		"climate_years", len(result.Climate),
		"bloom_years", len(result.Bloom.Scores))
	return nil
}

func (w *Writer) writeClimate(scores []domain.ClimateScore) error {
	rows := make([][]string, 0, len(scores)+1)
	rows = append(rows, []string{
		"water_year", "fall_precip_mm", "winter_spring_precip_mm", "spring_temp_c",
		"rainy_days", "whiplash_factor",
		"fall_score", "winter_spring_score", "temp_score", "whiplash_score", "final_score",
	})
	for _, s := range scores {
		rows = append(rows, []string{
			strconv.Itoa(s.WaterYear),
			formatFloat(s.Features.FallPrecip),
			formatFloat(s.Features.WinterSpringPrecip),
			formatFloat(s.Features.SpringTempMean),
			strconv.Itoa(s.Features.RainyDays),
			formatFloat(s.Features.WhiplashFactor),
			formatFloat(s.FallScore),
			formatFloat(s.WinterSpringScore),
			formatFloat(s.TempScore),
			formatFloat(s.WhiplashScore),
			formatFloat(s.Final),
		})
	}
	return w.writeFile(climateFile, rows)
}

func (w *Writer) writeBloom(result domain.BloomResult) error {
	rows := make([][]string, 0, len(result.Scores)+1)
	rows = append(rows, []string{
		"year", "spring_ndvi", "annual_ndvi", "winter_precip_mm",
		"ndvi_zscore", "precip_zscore", "final_score", "ndvi_precip_correlation",
	})
	for _, s := range result.Scores {
		rows = append(rows, []string{
			strconv.Itoa(s.Year),
			formatFloat(s.Features.SpringNDVI),
			formatFloat(s.Features.AnnualNDVI),
			formatFloat(s.Features.WinterPrecip),
			formatFloat(s.NDVIZScore),
			formatFloat(s.PrecipZScore),
			formatFloat(s.Final),
			formatFloat(result.Correlation),
		})
	}
	return w.writeFile(bloomFile, rows)
}

func (w *Writer) writeSummary(result pipeline.Result) error {
	rows := [][]string{
		{"model", "peak_year", "peak_score", "trough_year", "trough_score"},
	}
	if r := result.ClimateRanking; r != nil {
		rows = append(rows, summaryRow(domain.ModelClimate, *r))
	}
	if r := result.BloomRanking; r != nil {
		rows = append(rows, summaryRow(domain.ModelBloom, *r))
	}
	return w.writeFile(summaryFile, rows)
}

func summaryRow(model domain.Model, r domain.Ranking) []string {
	return []string{
		string(model),
		strconv.Itoa(r.PeakYear),
		formatFloat(r.PeakScore),
		strconv.Itoa(r.TroughYear),
		formatFloat(r.TroughScore),
	}
}

func (w *Writer) writeFile(name string, rows [][]string) error {
	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}

	cw := csv.NewWriter(f)
	writeErr := cw.WriteAll(rows)
	return errors.Join(writeErr, f.Close())
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
