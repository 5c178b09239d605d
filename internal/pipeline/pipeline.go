// Package pipeline orchestrates one scoring run: fetch observation series
// (store-first, provider on miss), aggregate them into per-year features,
// score both likelihood models, and hand the results to the configured sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adrian2901/bloomwatch/internal/domain"
	"github.com/Adrian2901/bloomwatch/internal/observability"
)

// PrecipSource provides daily precipitation observations for the study area.
type PrecipSource interface {
	FetchPrecip(ctx context.Context, start, end time.Time) (domain.Series, error)
}

// TempSource provides daily temperature observations for the study area.
type TempSource interface {
	FetchTemp(ctx context.Context, start, end time.Time) (domain.Series, error)
}

// NDVISource provides monthly mean NDVI observations for the study area.
type NDVISource interface {
	FetchNDVI(ctx context.Context, start, end time.Time) (domain.Series, error)
}

// ObservationStore caches fetched series between runs.
type ObservationStore interface {
	Observations(ctx context.Context, metric domain.Metric, start, end time.Time) (domain.Series, error)
	SaveObservations(ctx context.Context, series domain.Series) error
}

// ScoreSink receives the results of one scoring run.
type ScoreSink interface {
	WriteScores(ctx context.Context, result Result) error
}

// Result is the outcome of one scoring run. A nil ranking means that model
// produced no scored years.
type Result struct {
	Climate        []domain.ClimateScore
	ClimateRanking *domain.Ranking
	Bloom          domain.BloomResult
	BloomRanking   *domain.Ranking
}

// Pipeline wires sources, the observation store, the scoring engine, and sinks.
type Pipeline struct {
	precip  PrecipSource
	temp    TempSource
	ndvi    NDVISource // nil disables the NDVI+precipitation model
	store   ObservationStore
	sinks   []ScoreSink
	logger  *slog.Logger
	metrics *observability.Metrics

	start, end time.Time
	ready      atomic.Bool
}

// New creates a Pipeline scoring the [start, end] observation window.
// Pass a nil NDVISource to run the climate-only model alone.
func New(precip PrecipSource, temp TempSource, ndvi NDVISource, store ObservationStore,
	sinks []ScoreSink, logger *slog.Logger, metrics *observability.Metrics, start, end time.Time) *Pipeline {
	return &Pipeline{
		precip:  precip,
		temp:    temp,
		ndvi:    ndvi,
		store:   store,
		sinks:   sinks,
		logger:  logger,
		metrics: metrics,
		start:   start,
		end:     end,
	}
}

// CheckReadiness returns nil once at least one scoring run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no scoring run has completed yet")
	}
	return nil
}

// Run executes one fetch-aggregate-score-load cycle. It fails only when no
// model could be scored or a sink rejected the results; a single model
// failing (degenerate sample, no joint years) is logged and skipped so the
// other model's output still lands.
func (p *Pipeline) Run(ctx context.Context) error {
	started := time.Now()
	p.metrics.ScoringRuns.Inc()

	precip, err := p.loadSeries(ctx, domain.MetricPrecipMM, func(ctx context.Context) (domain.Series, error) {
		return p.precip.FetchPrecip(ctx, p.start, p.end)
	})
	if err != nil {
		return fmt.Errorf("precipitation series: %w", err)
	}
	temp, err := p.loadSeries(ctx, domain.MetricTempC, func(ctx context.Context) (domain.Series, error) {
		return p.temp.FetchTemp(ctx, p.start, p.end)
	})
	if err != nil {
		return fmt.Errorf("temperature series: %w", err)
	}

	var ndvi domain.Series
	if p.ndvi != nil {
		ndvi, err = p.loadSeries(ctx, domain.MetricNDVI, func(ctx context.Context) (domain.Series, error) {
			return p.ndvi.FetchNDVI(ctx, p.start, p.end)
		})
		if err != nil {
			return fmt.Errorf("ndvi series: %w", err)
		}
	}

	result := p.score(precip, temp, ndvi)
	if result.ClimateRanking == nil && result.BloomRanking == nil {
		return errors.New("no model produced any scored years")
	}

	for _, sink := range p.sinks {
		if err := sink.WriteScores(ctx, result); err != nil {
			p.metrics.SinkErrors.Inc()
			return fmt.Errorf("write scores: %w", err)
		}
	}

	p.metrics.RunDuration.Observe(time.Since(started).Seconds())
	p.ready.Store(true)
	p.logger.Info("scoring run complete",
		"climate_years", len(result.Climate),
		"bloom_years", len(result.Bloom.Scores),
		"duration", time.Since(started),
	)
	return nil
}

// cacheEdgeSlack is the widest edge gap a stored series may leave while
// still counting as covering the window. Daily and monthly cadences both
// begin within a month of the window start, so a larger gap means the store
// was filled for a narrower window.
const cacheEdgeSlack = 31 * 24 * time.Hour

// seriesCovers reports whether the series spans [start, end] to within
// cacheEdgeSlack at both edges.
func seriesCovers(s domain.Series, start, end time.Time) bool {
	if len(s) == 0 {
		return false
	}
	first, last := s[0].Time, s[0].Time
	for _, obs := range s[1:] {
		if obs.Time.Before(first) {
			first = obs.Time
		}
		if obs.Time.After(last) {
			last = obs.Time
		}
	}
	return first.Sub(start) <= cacheEdgeSlack && end.Sub(last) <= cacheEdgeSlack
}

// loadSeries returns the stored series when it spans the whole window,
// fetching from the provider and persisting otherwise. A nil store always
// fetches.
func (p *Pipeline) loadSeries(ctx context.Context, metric domain.Metric, fetch func(context.Context) (domain.Series, error)) (domain.Series, error) {
	if p.store != nil {
		cached, err := p.store.Observations(ctx, metric, p.start, p.end)
		if err != nil {
			return nil, fmt.Errorf("load cached %s: %w", metric, err)
		}
		if seriesCovers(cached, p.start, p.end) {
			p.logger.Debug("using stored observations", "metric", metric, "count", len(cached))
			p.metrics.ObservationsLoaded.WithLabelValues(string(metric), "store").Add(float64(len(cached)))
			return cached, nil
		}
		if len(cached) > 0 {
			p.logger.Debug("stored observations do not span the window, refetching", "metric", metric, "count", len(cached))
		}
	}

	series, err := fetch(ctx)
	if err != nil {
		p.metrics.ProviderErrors.WithLabelValues(string(metric)).Inc()
		return nil, err
	}
	p.metrics.ObservationsLoaded.WithLabelValues(string(metric), "provider").Add(float64(len(series)))

	if p.store != nil && len(series) > 0 {
		if err := p.store.SaveObservations(ctx, series); err != nil {
			// The run can proceed on the fetched data; only the cache is stale.
			p.logger.Warn("persist observations failed", "metric", metric, "error", err)
		}
	}
	return series, nil
}

func (p *Pipeline) score(precip, temp, ndvi domain.Series) Result {
	var result Result

	features := domain.AggregateClimate(precip, temp)
	result.Climate = domain.ScoreClimateYears(features)
	if dropped := len(features) - len(result.Climate); dropped > 0 {
		p.logger.Debug("climate years dropped for missing seasons", "count", dropped)
		p.metrics.YearsDropped.WithLabelValues(string(domain.ModelClimate)).Add(float64(dropped))
	}
	if ranking, err := domain.RankClimate(result.Climate); err != nil {
		p.logger.Error("climate model produced no ranking", "error", err)
		p.metrics.ModelFailures.WithLabelValues(string(domain.ModelClimate)).Inc()
	} else {
		result.ClimateRanking = &ranking
		p.metrics.YearsScored.WithLabelValues(string(domain.ModelClimate)).Set(float64(len(result.Climate)))
		p.logger.Info("climate model scored",
			"years", len(result.Climate),
			"peak_year", ranking.PeakYear,
			"trough_year", ranking.TroughYear,
		)
	}

	if p.ndvi == nil {
		p.logger.Info("ndvi source disabled, skipping bloom model")
		return result
	}
	if len(ndvi) == 0 {
		p.logger.Warn("ndvi source returned no observations, skipping bloom model")
		p.metrics.ModelFailures.WithLabelValues(string(domain.ModelBloom)).Inc()
		return result
	}

	bloomFeatures := domain.AggregateBloom(ndvi, precip)
	bloom, err := domain.ScoreBloomYears(bloomFeatures)
	if err != nil {
		p.logger.Error("bloom model scoring failed", "error", err)
		p.metrics.ModelFailures.WithLabelValues(string(domain.ModelBloom)).Inc()
		return result
	}
	result.Bloom = bloom
	if ranking, err := domain.RankBloom(bloom.Scores); err != nil {
		p.logger.Error("bloom model produced no ranking", "error", err)
	} else {
		result.BloomRanking = &ranking
		p.metrics.YearsScored.WithLabelValues(string(domain.ModelBloom)).Set(float64(len(bloom.Scores)))
		p.logger.Info("bloom model scored",
			"years", len(bloom.Scores),
			"peak_year", ranking.PeakYear,
			"correlation", bloom.Correlation,
		)
	}
	return result
}
