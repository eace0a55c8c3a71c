package model

import "time"

// Checkpoint marks the last successfully committed line offset for a source.
// Mutated only by the batch loader after a batch is durably committed.
type Checkpoint struct {
	SourceID       string    `json:"source_id"`
	LastLineOffset int64     `json:"last_line_offset"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Batch lifecycle states.
const (
	BatchPending   = "pending"
	BatchCommitted = "committed"
	BatchFailed    = "failed"
)

// IngestionBatch is the audit record for one bulk write. A batch and its
// records share a lifecycle: records exist only if the batch committed.
type IngestionBatch struct {
	BatchID     string    `json:"batch_id" bson:"batch_id"`
	SourceID    string    `json:"source_id" bson:"source_id"`
	RecordCount int       `json:"record_count" bson:"record_count"`
	StartOffset int64     `json:"start_offset" bson:"start_offset"`
	EndOffset   int64     `json:"end_offset" bson:"end_offset"`
	Status      string    `json:"status" bson:"status"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	CommittedAt time.Time `json:"committed_at,omitempty" bson:"committed_at,omitempty"`
}

// AnalyticsResult is a replace-on-write snapshot document for one named
// metric. Each computation fully overwrites the prior result.
type AnalyticsResult struct {
	MetricName  string      `json:"metric_name" bson:"metric_name"`
	ComputedAt  time.Time   `json:"computed_at" bson:"computed_at"`
	Payload     interface{} `json:"payload" bson:"payload"`
	ResultCount int         `json:"result_count" bson:"result_count"`
}

// ModuleOutcome reports one analytics module's run within a pipeline run.
type ModuleOutcome struct {
	Module      string `json:"module"`
	Succeeded   bool   `json:"succeeded"`
	ResultCount int    `json:"result_count"`
	Error       string `json:"error,omitempty"`
}

// Run lifecycle states.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// RunSummary is the orchestrator's report for a single pipeline invocation.
// Every rejected row and failed batch is accounted for here; run-level
// failures surface in Error instead of escaping the orchestrator.
type RunSummary struct {
	RunID            string                 `json:"run_id"`
	SourceID         string                 `json:"source_id"`
	Status           string                 `json:"status"`
	RowsRead         int64                  `json:"rows_read"`
	Accepted         int64                  `json:"accepted"`
	Rejected         int64                  `json:"rejected"`
	RejectedByReason map[RejectReason]int64 `json:"rejected_by_reason,omitempty"`
	BatchesCommitted int                    `json:"batches_committed"`
	RecordsInserted  int64                  `json:"records_inserted"`
	RecordsSkipped   int64                  `json:"records_skipped"`
	StartOffset      int64                  `json:"start_offset"`
	EndOffset        int64                  `json:"end_offset"`
	Analytics        []ModuleOutcome        `json:"analytics,omitempty"`
	StartedAt        time.Time              `json:"started_at"`
	FinishedAt       time.Time              `json:"finished_at"`
	Error            string                 `json:"error,omitempty"`
}
