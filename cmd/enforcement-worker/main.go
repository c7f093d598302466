// enforcement-worker drains the enforcement outbox and sweeps court
// referrals outside the API process. Run the API with
// EMBEDDED_WORKERS=false next to it.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/citywatch/citywatch-api/internal/app"
	"github.com/citywatch/citywatch-api/internal/config"
	"github.com/citywatch/citywatch-api/internal/pkg/logger"
)

var version = "dev"

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		SentryDSN:   cfg.SentryDSN,
		Release:     version,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to init logger")
	}
	defer logger.Flush()

	if cfg.UsesMemoryStore() {
		log.Fatal().Msg("enforcement-worker needs a shared store, STORAGE_DRIVER=memory is API only")
	}

	log.Info().Str("env", cfg.Env).Msg("Starting enforcement-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build engine")
	}
	defer engine.Close()

	if err := engine.RunWorkers(ctx); err != nil {
		log.Error().Err(err).Msg("Worker stopped with error")
		return
	}
	log.Info().Msg("Worker exited properly")
}
