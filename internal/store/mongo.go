package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lorawan-pipeline/internal/config"
	"lorawan-pipeline/internal/model"
)

// Collection names inside the pipeline database.
const (
	recordsCollection   = "uplinks"
	batchesCollection   = "ingestion_batches"
	analyticsCollection = "analytics"
)

// BulkResult reports the outcome of one bulk insert. FailedIndexes are
// positions within the submitted slice that the server rejected (typically
// duplicate-key conflicts on the natural key).
type BulkResult struct {
	Inserted      int
	FailedIndexes []int
}

// Mongo is the document store for uplink records, batch audit records, and
// analytics results. All calls are bounded by the configured timeout.
type Mongo struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
	log     zerolog.Logger
}

// Connect dials MongoDB, verifies the connection, and ensures the indexes
// the pipeline relies on, including the unique natural-key index that makes
// re-reading skipped lines idempotent-safe.
func Connect(ctx context.Context, cfg config.MongoConfig, log zerolog.Logger) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	m := &Mongo{
		client:  client,
		db:      client.Database(cfg.Database),
		timeout: cfg.Timeout,
		log:     log.With().Str("component", "store").Logger(),
	}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	records := m.db.Collection(recordsCollection)
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "device_id", Value: 1}}},
		{Keys: bson.D{{Key: "gateway_id", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: 1}}},
		{
			Keys:    bson.D{{Key: "device_id", Value: 1}, {Key: "timestamp", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("natural_key"),
		},
	}
	if _, err := records.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("ensure record indexes: %w", err)
	}

	results := m.db.Collection(analyticsCollection)
	_, err := results.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "metric_name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("ensure analytics index: %w", err)
	}
	return nil
}

// Close disconnects from the server.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.timeout)
}

// InsertRecords bulk-writes records unordered so one rejected document does
// not fail its siblings. Returns which indexes failed; the error is non-nil
// only for total failures (connectivity, server unavailable).
func (m *Mongo) InsertRecords(ctx context.Context, records []model.UplinkRecord) (BulkResult, error) {
	if len(records) == 0 {
		return BulkResult{}, nil
	}

	ctx, cancel := m.opCtx(ctx)
	defer cancel()

	docs := make([]interface{}, len(records))
	for i, rec := range records {
		docs[i] = rec
	}

	_, err := m.db.Collection(recordsCollection).
		InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return BulkResult{Inserted: len(records)}, nil
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		failed := make([]int, 0, len(bwe.WriteErrors))
		for _, we := range bwe.WriteErrors {
			failed = append(failed, we.Index)
		}
		sort.Ints(failed)
		res := BulkResult{Inserted: len(records) - len(failed), FailedIndexes: failed}
		m.log.Warn().Int("inserted", res.Inserted).Int("failed", len(failed)).
			Msg("partial bulk write")
		return res, nil
	}

	return BulkResult{}, fmt.Errorf("bulk insert records: %w", err)
}

// FetchRecords returns committed records, optionally bounded to those with
// timestamps at or after since. The natural-key sort keeps downstream
// aggregation deterministic.
func (m *Mongo) FetchRecords(ctx context.Context, since time.Time) ([]model.UplinkRecord, error) {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()

	filter := bson.M{}
	if !since.IsZero() {
		filter["timestamp"] = bson.M{"$gte": since}
	}
	opts := options.Find().SetSort(bson.D{{Key: "device_id", Value: 1}, {Key: "timestamp", Value: 1}})

	cur, err := m.db.Collection(recordsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}
	defer cur.Close(ctx)

	var out []model.UplinkRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return out, nil
}

// SaveBatch writes a new batch audit record in the pending state.
func (m *Mongo) SaveBatch(ctx context.Context, batch model.IngestionBatch) error {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()

	if _, err := m.db.Collection(batchesCollection).InsertOne(ctx, batch); err != nil {
		return fmt.Errorf("save batch %s: %w", batch.BatchID, err)
	}
	return nil
}

// UpdateBatchStatus transitions a batch to committed or failed, recording
// how many documents actually landed.
func (m *Mongo) UpdateBatchStatus(ctx context.Context, batchID, status string, recordCount int) error {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"status":       status,
		"record_count": recordCount,
		"committed_at": time.Now().UTC(),
	}}
	_, err := m.db.Collection(batchesCollection).
		UpdateOne(ctx, bson.M{"batch_id": batchID}, update)
	if err != nil {
		return fmt.Errorf("update batch %s: %w", batchID, err)
	}
	return nil
}

// SaveResult replaces the live analytics document for a metric. Analytics
// are idempotent snapshots, never merged with prior results.
func (m *Mongo) SaveResult(ctx context.Context, result model.AnalyticsResult) error {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()

	_, err := m.db.Collection(analyticsCollection).ReplaceOne(ctx,
		bson.M{"metric_name": result.MetricName},
		result,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save result %s: %w", result.MetricName, err)
	}
	return nil
}

// GetResult fetches the live analytics document for a metric.
func (m *Mongo) GetResult(ctx context.Context, metricName string) (model.AnalyticsResult, error) {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()

	var result model.AnalyticsResult
	err := m.db.Collection(analyticsCollection).
		FindOne(ctx, bson.M{"metric_name": metricName}).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return result, fmt.Errorf("%w: %s", model.ErrResultNotFound, metricName)
	}
	if err != nil {
		return result, fmt.Errorf("get result %s: %w", metricName, err)
	}
	return result, nil
}

// CountRecords reports the committed record total, used by the API summary.
func (m *Mongo) CountRecords(ctx context.Context) (int64, error) {
	ctx, cancel := m.opCtx(ctx)
	defer cancel()

	n, err := m.db.Collection(recordsCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}
