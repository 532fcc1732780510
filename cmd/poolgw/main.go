// Command poolgw runs a connection pool's background expirer and debug
// HTTP surface behind a graceful shutdown sequence, mirroring the gateway's
// entrypoint wiring (config → logger → domain object → HTTP server → signal
// handling).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sbarnard/connpool/config"
	"github.com/sbarnard/connpool/debugserver"
	"github.com/sbarnard/connpool/logger"
	"github.com/sbarnard/connpool/pool"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("pool service starting")

	p, err := newPool(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("pool init failed")
	}

	ctx, stopLoop := context.WithCancel(context.Background())
	p.RegisterLoop(ctx)

	srv := &http.Server{
		Addr:         cfg.DebugAddr,
		Handler:      debugserver.New(p, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.DebugAddr).Msg("debug server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("debug server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	stopLoop()
	p.Dispose()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("pool service stopped gracefully")
	}
}

func newPool(cfg *config.Config, log zerolog.Logger) (*pool.Pool, error) {
	if len(cfg.Targets) == 0 {
		return pool.NewGlobal(pool.Options{
			Capacity:      cfg.Capacity,
			IdleTimeoutMs: cfg.IdleTimeoutMs,
			Logger:        log,
		}), nil
	}
	return pool.NewSpecific(cfg.Targets, nil, pool.Options{
		Capacity:      cfg.Capacity,
		IdleTimeoutMs: cfg.IdleTimeoutMs,
		Logger:        log,
	})
}
