package analytics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"lorawan-pipeline/internal/model"
)

// HighTempReading is one record above the temperature threshold.
type HighTempReading struct {
	DeviceID    string    `json:"device_id" bson:"device_id"`
	Temperature float64   `json:"temperature" bson:"temperature"`
	Latitude    *float64  `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty" bson:"longitude,omitempty"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}

// highTempPayload is the stored result shape: always the count, optionally
// the matching readings.
type highTempPayload struct {
	Threshold float64           `json:"threshold" bson:"threshold"`
	Count     int               `json:"count" bson:"count"`
	Readings  []HighTempReading `json:"readings,omitempty" bson:"readings,omitempty"`
}

// HighTemperatureRecords filters records whose temperature exceeds the
// threshold. When ExportPath is set the matching readings are additionally
// written to a JSON file after the result document is saved.
type HighTemperatureRecords struct {
	Threshold      float64
	IncludeRecords bool
	ExportPath     string
}

func (m *HighTemperatureRecords) Name() string { return MetricHighTemp }

func (m *HighTemperatureRecords) Compute(records []model.UplinkRecord, computedAt time.Time) (model.AnalyticsResult, error) {
	var readings []HighTempReading
	for _, rec := range records {
		if rec.Temperature != nil && *rec.Temperature > m.Threshold {
			readings = append(readings, HighTempReading{
				DeviceID:    rec.DeviceID,
				Temperature: *rec.Temperature,
				Latitude:    rec.Latitude,
				Longitude:   rec.Longitude,
				Timestamp:   rec.Timestamp,
			})
		}
	}
	sort.Slice(readings, func(i, j int) bool {
		if readings[i].DeviceID != readings[j].DeviceID {
			return readings[i].DeviceID < readings[j].DeviceID
		}
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})

	payload := highTempPayload{Threshold: m.Threshold, Count: len(readings)}
	if m.IncludeRecords {
		payload.Readings = readings
	}

	return model.AnalyticsResult{
		MetricName:  m.Name(),
		ComputedAt:  computedAt,
		Payload:     payload,
		ResultCount: len(readings),
	}, nil
}

// Export writes the matching readings to the configured JSON file. A no-op
// when no export path is set.
func (m *HighTemperatureRecords) Export(result model.AnalyticsResult) error {
	if m.ExportPath == "" {
		return nil
	}
	payload, ok := result.Payload.(highTempPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", result.Payload)
	}

	if err := os.MkdirAll(filepath.Dir(m.ExportPath), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.Create(m.ExportPath)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}
