package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"excavator/internal/broker"
	"excavator/internal/config"
	"excavator/internal/domain"
	"excavator/internal/gather"
	"excavator/internal/hours"
	"excavator/internal/store"
	"excavator/internal/util"
)

func main() {
	// .env is optional; deployments may set the environment directly.
	_ = godotenv.Load()

	cfgPath := "config/excavator.yaml"
	if p := os.Getenv("EXCAVATOR_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	// Session boundaries are compared in the exchange's local timezone.
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		log.Fatalf("loading exchange timezone: %v", err)
	}

	client := broker.NewSchwabClient(
		cfg.Broker.BaseURL,
		cfg.Broker.AccessToken,
		time.Duration(cfg.Broker.TimeoutSeconds)*time.Second,
		loc,
		logger,
	)
	resolver := hours.NewResolver(client, "OPTION", cfg.Dig.Product, cfg.Dig.MaxLookaheadDays, loc, logger)

	csvStore := store.NewCSVStore(cfg.Storage.ResultsDir)
	sinks := []store.RecordSink{csvStore}
	if cfg.Storage.MirrorParquet {
		sinks = append(sinks, store.NewParquetMirror(cfg.Storage.ResultsDir))
	}
	archiver := store.NewArchiver(logger)

	gatherer := gather.NewSessionGatherer(
		gather.Config{
			Symbol:           cfg.Dig.Symbol,
			VolatilitySymbol: cfg.Dig.VolatilitySymbol,
			ContractType:     domain.ContractType(cfg.Dig.ContractType),
			MinDTE:           cfg.Dig.MinDTE,
			MaxDTE:           cfg.Dig.MaxDTE,
			Interval:         time.Duration(cfg.Dig.IntervalMinutes) * time.Minute,
			OpenDelay:        time.Duration(cfg.Dig.OpenDelaySeconds) * time.Second,
		},
		client, resolver, csvStore, sinks, archiver, loc, logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("excavator starting",
		"symbol", cfg.Dig.Symbol,
		"interval_minutes", cfg.Dig.IntervalMinutes,
		"results_dir", cfg.Storage.ResultsDir)

	if err := gatherer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("gatherer stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("excavator stopped")
}
