package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/Adrian2901/bloomwatch/internal/adapter/csvreport"
	"github.com/Adrian2901/bloomwatch/internal/adapter/daymet"
	httpadapter "github.com/Adrian2901/bloomwatch/internal/adapter/http"
	kafkaadapter "github.com/Adrian2901/bloomwatch/internal/adapter/kafka"
	"github.com/Adrian2901/bloomwatch/internal/adapter/sentinel"
	"github.com/Adrian2901/bloomwatch/internal/config"
	"github.com/Adrian2901/bloomwatch/internal/observability"
	"github.com/Adrian2901/bloomwatch/internal/pipeline"
	"github.com/Adrian2901/bloomwatch/internal/store"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// runOnceErr decides the process outcome once the service stops. A one-shot
// run reports its error so operators and cron wrappers see a non-zero exit;
// a scheduled service logs failed runs and keeps serving.
func runOnceErr(schedule string, runErr error) error {
	if schedule != "" {
		return nil
	}
	return runErr
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	db, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		return err
	}

	lat, lon := cfg.AOI.Center()
	daymetClient := daymet.NewClient(cfg.DaymetURL, lat, lon, cfg.DaymetTimeout, logger)

	// NDVI is feature-flagged via SENTINEL_ENABLED / SENTINEL_CLIENT_ID;
	// without it the climate-only model still runs.
	var ndvi pipeline.NDVISource
	if cfg.SentinelEnabled {
		ndvi = sentinel.NewClient(cfg, logger)
		logger.Info("sentinel ndvi enabled", "url", cfg.SentinelURL)
	} else {
		logger.Info("sentinel ndvi disabled, running climate model only")
	}

	reports, err := csvreport.NewWriter(cfg.OutputDir, logger)
	if err != nil {
		logger.Error("failed to create report writer", "error", err)
		return err
	}

	sinks := []pipeline.ScoreSink{db, reports}
	var producer *kafkaadapter.Writer
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, producer)
		logger.Info("kafka score publishing enabled", "topic", cfg.KafkaScoreTopic)
	}

	p := pipeline.New(daymetClient, daymetClient, ndvi, db, sinks,
		logger, metrics, cfg.StartDate, cfg.EndDate)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, db, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// First run happens immediately; SCHEDULE keeps the service alive and
	// rescoring, an empty schedule means run once and exit with the run's
	// outcome.
	runDone := make(chan error, 1)
	go func() {
		err := p.Run(ctx)
		if err != nil {
			logger.Error("scoring run failed", "error", err)
		}
		runDone <- err
		if cfg.Schedule == "" {
			stop()
		}
	}()

	var scheduler *cron.Cron
	if cfg.Schedule != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.Schedule, func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("scheduled scoring run failed", "error", err)
			}
		})
		if err != nil {
			logger.Error("invalid SCHEDULE", "schedule", cfg.Schedule, "error", err)
			return err
		}
		scheduler.Start()
		logger.Info("scheduler started", "schedule", cfg.Schedule)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := db.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")

	var runErr error
	select {
	case runErr = <-runDone:
	default:
		// Interrupted before the first run finished.
	}
	return runOnceErr(cfg.Schedule, runErr)
}
