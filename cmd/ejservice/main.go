package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/ej-indicator-service/internal/adapter/api"
	httpadapter "github.com/couchcryptid/ej-indicator-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/ej-indicator-service/internal/adapter/kafka"
	"github.com/couchcryptid/ej-indicator-service/internal/bootstrap"
	"github.com/couchcryptid/ej-indicator-service/internal/config"
	"github.com/couchcryptid/ej-indicator-service/internal/domain"
	"github.com/couchcryptid/ej-indicator-service/internal/observability"
	"github.com/couchcryptid/ej-indicator-service/internal/pipeline"
	"github.com/couchcryptid/ej-indicator-service/internal/relay"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	core, err := bootstrap.NewCore(cfg, metrics, logger)
	if err != nil {
		logger.Error("failed to build analysis core", "error", err)
		os.Exit(1)
	}
	logger.Info("analysis core ready",
		"schema", cfg.Schema,
		"live_lookups", cfg.LiveLookupsEnabled,
		"fallback_entries", len(core.Fallback.Entries()),
	)

	apiSrv := api.NewServer(cfg.APIAddr, &api.Dependencies{
		Analyzer: core.Assembler,
		Slot:     &domain.CurrentSlot{},
		Relay:    relay.NewClient(relay.DefaultEndpoints(), cfg.RelayTimeout, metrics, logger),
		Metrics:  metrics,
		Logger:   logger,
	}, api.Options{RateLimitPerMinute: cfg.RateLimitPerMinute})

	checks := httpadapter.Checks{core.Assembler, apiSrv}

	// Batch pipeline (feature-flagged via KAFKA_ENABLED).
	var (
		p      *pipeline.Pipeline
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		p = pipeline.New(reader, pipeline.NewTransformer(core.Assembler, logger), writer,
			logger, metrics, cfg.BatchSize, cfg.BatchConcurrency)
		checks = append(checks, p)
		logger.Info("batch pipeline enabled", "source_topic", cfg.KafkaSourceTopic, "sink_topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("batch pipeline disabled")
	}

	opsSrv := httpadapter.NewServer(cfg.OpsAddr, checks, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := opsSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", "error", err)
		}
	}()

	go func() {
		if err := apiSrv.Start(); err != nil {
			logger.Error("api server error", "error", err)
			stop()
		}
	}()

	if p != nil {
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown error", "error", err)
	}
	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
