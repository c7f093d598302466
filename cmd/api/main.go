package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/citywatch/citywatch-api/internal/app"
	"github.com/citywatch/citywatch-api/internal/config"
	"github.com/citywatch/citywatch-api/internal/pkg/logger"
)

// version is set at build time with -ldflags
var version = "dev"

const shutdownTimeout = 30 * time.Second

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

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("storage", cfg.StorageDriver).
		Str("bus", cfg.EventBus).
		Msg("Starting CityWatch moderation API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build engine")
	}
	defer engine.Close()

	server := newServer(cfg, engine.Router())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return engine.RunFeed(gctx)
	})
	if cfg.EmbeddedWorkers {
		g.Go(func() error {
			return engine.RunWorkers(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return
	}
	log.Info().Msg("Server exited properly")
}

// newServer builds the HTTP server. WriteTimeout must outlast the audit
// long-poll wait.
func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
