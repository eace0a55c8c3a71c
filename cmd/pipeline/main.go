package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"lorawan-pipeline/internal/analytics"
	"lorawan-pipeline/internal/config"
	"lorawan-pipeline/internal/model"
	"lorawan-pipeline/internal/pipeline"
	"lorawan-pipeline/internal/state"
	"lorawan-pipeline/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: search standard locations)")
	sourceID := flag.String("source", "", "run only this source id (default: all configured sources)")
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

	engine := analytics.NewEngine(cfg.Analytics, mongo, mongo, log)
	orch := pipeline.New(cfg, st, mongo, engine, log)

	sources := cfg.Sources
	if *sourceID != "" {
		src, ok := cfg.SourceByID(*sourceID)
		if !ok {
			log.Fatal().Str("source_id", *sourceID).Msg("unknown source")
		}
		sources = []config.Source{src}
	}
	if len(sources) == 0 {
		log.Fatal().Msg("no sources configured")
	}

	runAll(ctx, orch, sources, log)

	// Interval mode keeps the process alive and re-runs every source on a
	// fixed cadence until interrupted.
	if cfg.Scheduler.Interval > 0 {
		log.Info().Dur("interval", cfg.Scheduler.Interval).Msg("scheduler running")
		ticker := time.NewTicker(cfg.Scheduler.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("shutting down")
				return
			case <-ticker.C:
				runAll(ctx, orch, sources, log)
			}
		}
	}
}

func runAll(ctx context.Context, orch *pipeline.Orchestrator, sources []config.Source, log zerolog.Logger) {
	for _, src := range sources {
		if ctx.Err() != nil {
			return
		}
		summary := orch.Run(ctx, src.ID)
		logSummary(log, summary)
	}
}

func logSummary(log zerolog.Logger, s model.RunSummary) {
	ev := log.Info()
	if s.Status == model.RunFailed {
		ev = log.Error().Str("error", s.Error)
	}
	ev.Str("run_id", s.RunID).
		Str("source_id", s.SourceID).
		Str("status", s.Status).
		Int64("rows_read", s.RowsRead).
		Int64("accepted", s.Accepted).
		Int64("rejected", s.Rejected).
		Int("batches", s.BatchesCommitted).
		Int64("inserted", s.RecordsInserted).
		Int64("skipped", s.RecordsSkipped).
		Int64("end_offset", s.EndOffset).
		Dur("took", s.FinishedAt.Sub(s.StartedAt)).
		Msg("run finished")
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
