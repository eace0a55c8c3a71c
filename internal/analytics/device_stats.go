package analytics

import (
	"fmt"
	"sort"
	"time"

	"lorawan-pipeline/internal/model"
)

// DeviceActivity is one row of the top-active-devices ranking.
type DeviceActivity struct {
	DeviceID string    `json:"device_id" bson:"device_id"`
	Count    int       `json:"count" bson:"count"`
	LastSeen time.Time `json:"last_seen" bson:"last_seen"`
}

// TopActiveDevices ranks devices by uplink count, most active first. Ties
// break toward the device heard most recently, then by identifier so the
// ranking is fully ordered.
type TopActiveDevices struct {
	Limit int
}

func (m *TopActiveDevices) Name() string { return MetricTopDevices }

func (m *TopActiveDevices) Compute(records []model.UplinkRecord, computedAt time.Time) (model.AnalyticsResult, error) {
	if m.Limit <= 0 {
		return model.AnalyticsResult{}, fmt.Errorf("top device limit must be positive, got %d", m.Limit)
	}

	byDevice := make(map[string]*DeviceActivity)
	for _, rec := range records {
		act, ok := byDevice[rec.DeviceID]
		if !ok {
			act = &DeviceActivity{DeviceID: rec.DeviceID}
			byDevice[rec.DeviceID] = act
		}
		act.Count++
		if rec.Timestamp.After(act.LastSeen) {
			act.LastSeen = rec.Timestamp
		}
	}

	ranking := make([]DeviceActivity, 0, len(byDevice))
	for _, act := range byDevice {
		ranking = append(ranking, *act)
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Count != ranking[j].Count {
			return ranking[i].Count > ranking[j].Count
		}
		if !ranking[i].LastSeen.Equal(ranking[j].LastSeen) {
			return ranking[i].LastSeen.After(ranking[j].LastSeen)
		}
		return ranking[i].DeviceID < ranking[j].DeviceID
	})

	if len(ranking) > m.Limit {
		ranking = ranking[:m.Limit]
	}

	return model.AnalyticsResult{
		MetricName:  m.Name(),
		ComputedAt:  computedAt,
		Payload:     ranking,
		ResultCount: len(ranking),
	}, nil
}
