// Package main runs the read-only analytics API server.
//
// @title LoRaWAN Pipeline API
// @version 1.0
// @description Read-only analytics over ingested LoRaWAN uplink records
//
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	_ "lorawan-pipeline/docs"
	"lorawan-pipeline/internal/api"
	"lorawan-pipeline/internal/api/handler"
	"lorawan-pipeline/internal/config"
	"lorawan-pipeline/internal/state"
	"lorawan-pipeline/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: search standard locations)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		l.Fatal().Err(err).Msg("could not load configuration")
	}

	log := newLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := state.Open(cfg.State.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.State.Path).Msg("could not open state store")
	}
	defer st.Close()

	mongo, err := store.Connect(ctx, cfg.Mongo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to document store")
	}
	defer mongo.Close(context.Background())

	h := handler.New(mongo, st, log)
	srv := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      api.NewRouter(h),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.API.Addr).Msg("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown incomplete")
		}
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if cfg.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}
