package analytics

import (
	"fmt"
	"sort"
	"time"

	"lorawan-pipeline/internal/model"
)

// WeakDevice reports a device whose radio link dropped below threshold,
// with the latest values observed for it.
type WeakDevice struct {
	DeviceID string    `json:"device_id" bson:"device_id"`
	RSSI     float64   `json:"rssi" bson:"rssi"`
	SNR      float64   `json:"snr" bson:"snr"`
	LastSeen time.Time `json:"last_seen" bson:"last_seen"`
}

// WeakSignalDevices finds devices whose signal strength or signal-to-noise
// ratio fell below the configured thresholds, weakest first.
type WeakSignalDevices struct {
	RSSIThreshold float64 // dBm; uplinks below this are weak
	SNRThreshold  float64 // dB
}

func (m *WeakSignalDevices) Name() string { return MetricWeakSignal }

func (m *WeakSignalDevices) Compute(records []model.UplinkRecord, computedAt time.Time) (model.AnalyticsResult, error) {
	if m.RSSIThreshold > 0 {
		return model.AnalyticsResult{}, fmt.Errorf("rssi threshold must be non-positive dBm, got %v", m.RSSIThreshold)
	}

	latest := make(map[string]model.UplinkRecord)
	weak := make(map[string]bool)
	for _, rec := range records {
		if rec.RSSI < m.RSSIThreshold || rec.SNR < m.SNRThreshold {
			weak[rec.DeviceID] = true
		}
		prev, ok := latest[rec.DeviceID]
		if !ok || rec.Timestamp.After(prev.Timestamp) {
			latest[rec.DeviceID] = rec
		}
	}

	devices := make([]WeakDevice, 0, len(weak))
	for deviceID := range weak {
		rec := latest[deviceID]
		devices = append(devices, WeakDevice{
			DeviceID: deviceID,
			RSSI:     rec.RSSI,
			SNR:      rec.SNR,
			LastSeen: rec.Timestamp,
		})
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].RSSI != devices[j].RSSI {
			return devices[i].RSSI < devices[j].RSSI
		}
		return devices[i].DeviceID < devices[j].DeviceID
	})

	return model.AnalyticsResult{
		MetricName:  m.Name(),
		ComputedAt:  computedAt,
		Payload:     devices,
		ResultCount: len(devices),
	}, nil
}
