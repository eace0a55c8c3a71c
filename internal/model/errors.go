package model

import "errors"

// Run- and batch-level failure classes. Row-level problems are not errors;
// they are ValidationOutcome rejections.
var (
	// ErrCheckpointRegression is returned when an advance would move a
	// checkpoint backwards. Replaying committed offsets would corrupt the
	// document store with duplicates.
	ErrCheckpointRegression = errors.New("checkpoint: offset regression")

	// ErrConcurrentRun is returned when a second run attempts to take the
	// checkpoint-advance privilege for a source that already has a live run.
	ErrConcurrentRun = errors.New("pipeline: concurrent run for source")

	// ErrSourceUnavailable is returned when the source CSV cannot be opened
	// or its header does not carry the required columns.
	ErrSourceUnavailable = errors.New("reader: source unavailable")

	// ErrTransformInvariant is returned when a validated row fails to
	// transform. It indicates a validator/transformer contract mismatch and
	// halts the run rather than silently dropping data.
	ErrTransformInvariant = errors.New("transform: invariant violation on validated row")

	// ErrResultNotFound is returned when no analytics result exists for a
	// metric name.
	ErrResultNotFound = errors.New("analytics: result not found")
)
