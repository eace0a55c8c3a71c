package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lorawan-pipeline/internal/analytics"
	"lorawan-pipeline/internal/config"
	"lorawan-pipeline/internal/model"
	"lorawan-pipeline/internal/state"
)

// Orchestrator sequences Reader -> Validator -> Transformer -> Loader, then
// triggers the analytics engine. It owns run-level error handling: failures
// land in the RunSummary instead of escaping to the caller, so the external
// scheduler decides whether and when to retry.
type Orchestrator struct {
	cfg    *config.Config
	state  *state.Store
	loader *Loader
	engine *analytics.Engine
	log    zerolog.Logger
}

// New wires an orchestrator from its collaborators.
func New(cfg *config.Config, st *state.Store, recordStore RecordStore, engine *analytics.Engine, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		state:  st,
		loader: NewLoader(recordStore, st, cfg.Ingestion.BatchSize, log),
		engine: engine,
		log:    log.With().Str("component", "pipeline").Logger(),
	}
}

// stageCounts is filled by the validation/transformation stage goroutine
// and read only after it finishes.
type stageCounts struct {
	rowsRead int64
	accepted int64
	rejected map[model.RejectReason]int64
}

// Run executes one full pipeline invocation for a source and reports what
// happened. It never panics or returns an error past its boundary.
func (o *Orchestrator) Run(ctx context.Context, sourceID string) model.RunSummary {
	summary := model.RunSummary{
		RunID:     uuid.New().String(),
		SourceID:  sourceID,
		Status:    model.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	log := o.log.With().Str("run_id", summary.RunID).Str("source_id", sourceID).Logger()

	src, ok := o.cfg.SourceByID(sourceID)
	if !ok {
		return o.fail(summary, fmt.Errorf("unknown source %q", sourceID))
	}

	// Single writer per source: a concurrent run fails fast before any
	// checkpoint mutation.
	if err := o.state.AcquireRunLock(sourceID, summary.RunID); err != nil {
		return o.fail(summary, err)
	}
	defer func() {
		if err := o.state.ReleaseRunLock(sourceID, summary.RunID); err != nil {
			log.Error().Err(err).Msg("could not release run lock")
		}
	}()

	if err := o.state.SaveRun(summary.RunID, sourceID, summary.StartedAt); err != nil {
		return o.fail(summary, err)
	}

	startOffset, err := o.state.ReadCheckpoint(sourceID)
	if err != nil {
		return o.finish(summary, err)
	}
	summary.StartOffset = startOffset
	summary.EndOffset = startOffset

	reader, err := OpenSource(src.Path)
	if err != nil {
		// Source unavailable: reported, no checkpoint touched.
		return o.finish(summary, err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Ingestion.RunTimeout)
	defer cancel()

	log.Info().Int64("from_line", startOffset).Str("path", src.Path).Msg("starting ingestion")

	rawCh := make(chan model.RawRow, o.cfg.Ingestion.ChannelBuffer)
	recordCh := make(chan model.UplinkRecord, o.cfg.Ingestion.ChannelBuffer)

	var wg sync.WaitGroup
	var readErr, stageErr error
	counts := stageCounts{rejected: make(map[model.RejectReason]int64)}

	// Reader stage.
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(rawCh)
		readErr = reader.Stream(ctx, startOffset, rawCh)
	}()

	// Validation + transformation stage. One goroutine so records reach the
	// loader in line-offset order; it still overlaps with batch writes.
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(recordCh)
		for row := range rawCh {
			counts.rowsRead++

			outcome := Validate(row)
			if !outcome.Accepted {
				counts.rejected[outcome.Reason]++
				log.Debug().Int64("line", row.Line).Str("reason", string(outcome.Reason)).
					Msg("row rejected")
				continue
			}
			counts.accepted++

			rec, err := Transform(row)
			if err != nil {
				// Contract violation between validator and transformer.
				// Stop feeding the loader; committed batches stand.
				stageErr = err
				cancel() // unblock the reader
				return
			}
			select {
			case <-ctx.Done():
				return
			case recordCh <- rec:
			}
		}
	}()

	stats, loadErr := o.loader.Load(ctx, sourceID, recordCh)
	if loadErr != nil {
		cancel() // unblock the upstream stages before joining them
	}
	wg.Wait()

	summary.RowsRead = counts.rowsRead
	summary.Accepted = counts.accepted
	for _, n := range counts.rejected {
		summary.Rejected += n
	}
	if len(counts.rejected) > 0 {
		summary.RejectedByReason = counts.rejected
	}
	summary.BatchesCommitted = stats.BatchesCommitted
	summary.RecordsInserted = stats.Inserted
	summary.RecordsSkipped = stats.Skipped
	if stats.EndOffset > 0 {
		summary.EndOffset = stats.EndOffset
	}

	// A transform invariant halts the run; a reader or loader failure
	// aborts it with the checkpoint at the last committed boundary.
	switch {
	case stageErr != nil:
		return o.finish(summary, stageErr)
	case readErr != nil && !errors.Is(readErr, context.Canceled):
		return o.finish(summary, readErr)
	case loadErr != nil:
		return o.finish(summary, loadErr)
	}

	log.Info().Int64("rows", summary.RowsRead).Int64("accepted", summary.Accepted).
		Int64("rejected", summary.Rejected).Int("batches", summary.BatchesCommitted).
		Msg("ingestion complete")

	// Analytics run over committed data only, after the load stage.
	summary.Analytics = o.engine.Run(ctx)

	return o.finish(summary, nil)
}

// finish closes out a recorded run with its final status.
func (o *Orchestrator) finish(summary model.RunSummary, runErr error) model.RunSummary {
	summary.FinishedAt = time.Now().UTC()
	if runErr != nil {
		summary.Status = model.RunFailed
		summary.Error = runErr.Error()
		o.log.Error().Err(runErr).Str("run_id", summary.RunID).Msg("run failed")
	} else {
		summary.Status = model.RunCompleted
	}
	if err := o.state.FinishRun(summary); err != nil {
		o.log.Error().Err(err).Str("run_id", summary.RunID).Msg("could not persist run summary")
	}
	return summary
}

// fail closes out a run that never reached the recorded state.
func (o *Orchestrator) fail(summary model.RunSummary, runErr error) model.RunSummary {
	summary.FinishedAt = time.Now().UTC()
	summary.Status = model.RunFailed
	summary.Error = runErr.Error()
	o.log.Error().Err(runErr).Str("run_id", summary.RunID).Str("source_id", summary.SourceID).
		Msg("run aborted")
	return summary
}
