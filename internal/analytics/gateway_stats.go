package analytics

import (
	"sort"
	"time"

	"lorawan-pipeline/internal/model"
)

// GatewayStats carries the environmental means for one gateway. Averages
// are nil when no record attributed to the gateway carried that sensor.
type GatewayStats struct {
	GatewayID      string   `json:"gateway_id" bson:"gateway_id"`
	AvgTemperature *float64 `json:"avg_temperature,omitempty" bson:"avg_temperature,omitempty"`
	AvgHumidity    *float64 `json:"avg_humidity,omitempty" bson:"avg_humidity,omitempty"`
	RecordCount    int      `json:"record_count" bson:"record_count"`
}

// GatewayEnvironmentStats computes mean temperature and humidity per
// gateway over all records attributed to it.
type GatewayEnvironmentStats struct{}

func (m *GatewayEnvironmentStats) Name() string { return MetricGatewayStats }

type gatewayAccum struct {
	tempSum, humSum     float64
	tempCount, humCount int
	records             int
}

func (m *GatewayEnvironmentStats) Compute(records []model.UplinkRecord, computedAt time.Time) (model.AnalyticsResult, error) {
	byGateway := make(map[string]*gatewayAccum)
	for _, rec := range records {
		acc, ok := byGateway[rec.GatewayID]
		if !ok {
			acc = &gatewayAccum{}
			byGateway[rec.GatewayID] = acc
		}
		acc.records++
		if rec.Temperature != nil {
			acc.tempSum += *rec.Temperature
			acc.tempCount++
		}
		if rec.Humidity != nil {
			acc.humSum += *rec.Humidity
			acc.humCount++
		}
	}

	stats := make([]GatewayStats, 0, len(byGateway))
	for gatewayID, acc := range byGateway {
		gs := GatewayStats{GatewayID: gatewayID, RecordCount: acc.records}
		if acc.tempCount > 0 {
			avg := acc.tempSum / float64(acc.tempCount)
			gs.AvgTemperature = &avg
		}
		if acc.humCount > 0 {
			avg := acc.humSum / float64(acc.humCount)
			gs.AvgHumidity = &avg
		}
		stats = append(stats, gs)
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].GatewayID < stats[j].GatewayID
	})

	return model.AnalyticsResult{
		MetricName:  m.Name(),
		ComputedAt:  computedAt,
		Payload:     stats,
		ResultCount: len(stats),
	}, nil
}
