package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lorawan-pipeline/internal/model"
	"lorawan-pipeline/internal/store"
)

// RecordStore is the slice of the document store the loader needs.
type RecordStore interface {
	InsertRecords(ctx context.Context, records []model.UplinkRecord) (store.BulkResult, error)
	SaveBatch(ctx context.Context, batch model.IngestionBatch) error
	UpdateBatchStatus(ctx context.Context, batchID, status string, recordCount int) error
}

// Checkpointer is the slice of the state store the loader needs.
type Checkpointer interface {
	AdvanceCheckpoint(sourceID string, newOffset int64) error
}

// LoadStats summarizes what one run's load stage committed.
type LoadStats struct {
	BatchesCommitted int
	Inserted         int64
	Skipped          int64
	EndOffset        int64 // last checkpointed line offset, 0 if never advanced
}

// Loader accumulates typed records into bounded batches, bulk-writes each
// batch, and advances the checkpoint only after the write is durable.
// Batches commit strictly in line-offset order.
type Loader struct {
	store     RecordStore
	ckpt      Checkpointer
	batchSize int
	log       zerolog.Logger
}

// NewLoader wires a loader. batchSize must be positive.
func NewLoader(recordStore RecordStore, ckpt Checkpointer, batchSize int, log zerolog.Logger) *Loader {
	return &Loader{
		store:     recordStore,
		ckpt:      ckpt,
		batchSize: batchSize,
		log:       log.With().Str("component", "loader").Logger(),
	}
}

// Load drains in, committing batches of up to batchSize records. It returns
// on channel close, context cancellation, or the first unrecoverable batch
// failure. Cancellation never leaves a half-advanced checkpoint: the
// in-flight batch is simply not committed.
func (l *Loader) Load(ctx context.Context, sourceID string, in <-chan model.UplinkRecord) (LoadStats, error) {
	var stats LoadStats
	batch := make([]model.UplinkRecord, 0, l.batchSize)

	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case rec, ok := <-in:
			if !ok {
				if len(batch) > 0 {
					if err := l.flush(ctx, sourceID, batch, &stats); err != nil {
						return stats, err
					}
				}
				return stats, nil
			}
			batch = append(batch, rec)
			if len(batch) >= l.batchSize {
				if err := l.flush(ctx, sourceID, batch, &stats); err != nil {
					return stats, err
				}
				batch = batch[:0]
			}
		}
	}
}

// flush performs the commit-then-advance step for one batch.
func (l *Loader) flush(ctx context.Context, sourceID string, records []model.UplinkRecord, stats *LoadStats) error {
	batchID := uuid.New().String()
	for i := range records {
		records[i].BatchID = batchID
		records[i].SourceID = sourceID
	}

	audit := model.IngestionBatch{
		BatchID:     batchID,
		SourceID:    sourceID,
		RecordCount: len(records),
		StartOffset: records[0].Line,
		EndOffset:   records[len(records)-1].Line,
		Status:      model.BatchPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := l.store.SaveBatch(ctx, audit); err != nil {
		return fmt.Errorf("create batch audit: %w", err)
	}

	result, err := l.store.InsertRecords(ctx, records)
	if err != nil {
		// Total failure: the batch is dead, the checkpoint stays put, and
		// the run aborts. The next scheduled invocation retries from here.
		if statusErr := l.store.UpdateBatchStatus(ctx, batchID, model.BatchFailed, 0); statusErr != nil {
			l.log.Error().Err(statusErr).Str("batch_id", batchID).Msg("could not mark batch failed")
		}
		return fmt.Errorf("batch %s write failed: %w", batchID, err)
	}

	advanceTo := audit.EndOffset
	if len(result.FailedIndexes) > 0 {
		// Partial failure: advance only through the last record before the
		// first rejected write. Later lines (written or not) are re-read by
		// the next run; the unique natural-key index makes that idempotent.
		first := result.FailedIndexes[0]
		if first == 0 {
			advanceTo = 0
		} else {
			advanceTo = records[first-1].Line
		}
		for _, idx := range result.FailedIndexes {
			l.log.Warn().Str("batch_id", batchID).Int64("line", records[idx].Line).
				Str("device_id", records[idx].DeviceID).Msg("record not written")
		}
	}

	if err := l.store.UpdateBatchStatus(ctx, batchID, model.BatchCommitted, result.Inserted); err != nil {
		return fmt.Errorf("commit batch %s: %w", batchID, err)
	}
	if advanceTo > 0 {
		if err := l.ckpt.AdvanceCheckpoint(sourceID, advanceTo); err != nil {
			return fmt.Errorf("advance checkpoint after batch %s: %w", batchID, err)
		}
		stats.EndOffset = advanceTo
	}

	stats.BatchesCommitted++
	stats.Inserted += int64(result.Inserted)
	stats.Skipped += int64(len(result.FailedIndexes))

	l.log.Info().Str("batch_id", batchID).Int("records", result.Inserted).
		Int64("start", audit.StartOffset).Int64("end", audit.EndOffset).
		Int64("checkpoint", advanceTo).Msg("batch committed")
	return nil
}
