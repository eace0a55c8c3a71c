package analytics

import (
	"sort"
	"time"

	"lorawan-pipeline/internal/model"
)

// DuplicateGroup is a natural-key collision: the same device reporting the
// same timestamp more than once in the committed set.
type DuplicateGroup struct {
	DeviceID  string    `json:"device_id" bson:"device_id"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Count     int       `json:"count" bson:"count"`
}

// DuplicateDetection groups records by their natural key and reports every
// group seen more than once. With the unique index in place this should be
// empty; anything here points at data loaded before the index existed.
type DuplicateDetection struct{}

func (m *DuplicateDetection) Name() string { return MetricDuplicates }

func (m *DuplicateDetection) Compute(records []model.UplinkRecord, computedAt time.Time) (model.AnalyticsResult, error) {
	type key struct {
		deviceID string
		ts       time.Time
	}
	counts := make(map[key]int)
	for _, rec := range records {
		counts[key{rec.DeviceID, rec.Timestamp}]++
	}

	var groups []DuplicateGroup
	for k, n := range counts {
		if n > 1 {
			groups = append(groups, DuplicateGroup{DeviceID: k.deviceID, Timestamp: k.ts, Count: n})
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].DeviceID != groups[j].DeviceID {
			return groups[i].DeviceID < groups[j].DeviceID
		}
		return groups[i].Timestamp.Before(groups[j].Timestamp)
	})

	return model.AnalyticsResult{
		MetricName:  m.Name(),
		ComputedAt:  computedAt,
		Payload:     groups,
		ResultCount: len(groups),
	}, nil
}
