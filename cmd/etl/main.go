package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/ois-incident-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/ois-incident-etl/internal/adapter/kafka"
	"github.com/couchcryptid/ois-incident-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/ois-incident-etl/internal/adapter/source"
	"github.com/couchcryptid/ois-incident-etl/internal/adapter/store"
	"github.com/couchcryptid/ois-incident-etl/internal/config"
	"github.com/couchcryptid/ois-incident-etl/internal/domain"
	"github.com/couchcryptid/ois-incident-etl/internal/observability"
	"github.com/couchcryptid/ois-incident-etl/internal/pipeline"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var (
		fetcher pipeline.Fetcher
		sched   = pipeline.Schedule{Interval: cfg.RefreshInterval}
	)
	if cfg.SourceURL != "" {
		fetcher = source.NewHTTPSource(cfg.SourceURL, cfg.SourceTimeout, logger)
	} else {
		fs := source.NewFileSource(cfg.SourcePath, logger)
		if cfg.SourceWatch {
			changes, err := fs.Watch(ctx)
			if err != nil {
				logger.Error("failed to watch source file", "path", cfg.SourcePath, "error", err)
				os.Exit(1)
			}
			sched.Trigger = changes
		}
		fetcher = fs
	}

	db, err := store.Open(ctx, cfg.DBDriver, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		logger.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	loaders := []pipeline.BatchLoader{db}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		loaders = append(loaders, writer)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}

	transformer := pipeline.NewTransformer(geocoder, cfg.H3Resolution, logger)
	p := pipeline.New(fetcher, transformer, logger, metrics, loaders...)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.AllReady(db, p), db, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		if err := p.Run(ctx, sched); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	// The store and writer stay open until an in-flight load has finished.
	if !waitDone(shutdownCtx, pipelineDone) {
		logger.Error("pipeline did not stop before shutdown timeout")
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// waitDone blocks until done is closed or ctx expires, reporting which came first.
func waitDone(ctx context.Context, done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
