package analytics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lorawan-pipeline/internal/model"
)

var computedAt = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func uplink(deviceID, gatewayID string, rssi, snr float64, ts time.Time) model.UplinkRecord {
	return model.UplinkRecord{
		DeviceID:  deviceID,
		GatewayID: gatewayID,
		RSSI:      rssi,
		SNR:       snr,
		Timestamp: ts,
	}
}

func withTemp(rec model.UplinkRecord, temp float64) model.UplinkRecord {
	rec.Temperature = &temp
	return rec
}

func withHumidity(rec model.UplinkRecord, hum float64) model.UplinkRecord {
	rec.Humidity = &hum
	return rec
}

func repeat(rec model.UplinkRecord, n int, step time.Duration) []model.UplinkRecord {
	out := make([]model.UplinkRecord, n)
	for i := range out {
		out[i] = rec
		out[i].Timestamp = rec.Timestamp.Add(time.Duration(i) * step)
	}
	return out
}

func TestTopActiveDevicesRanking(t *testing.T) {
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	records := append(
		repeat(uplink("DEV-A", "GW-1", -100, 5, base), 7, time.Minute),
		repeat(uplink("DEV-B", "GW-1", -95, 6, base), 3, time.Minute)...,
	)

	m := &TopActiveDevices{Limit: 10}
	result, err := m.Compute(records, computedAt)
	require.NoError(t, err)

	ranking := result.Payload.([]DeviceActivity)
	require.Len(t, ranking, 2)
	require.Equal(t, DeviceActivity{DeviceID: "DEV-A", Count: 7, LastSeen: base.Add(6 * time.Minute)}, ranking[0])
	require.Equal(t, DeviceActivity{DeviceID: "DEV-B", Count: 3, LastSeen: base.Add(2 * time.Minute)}, ranking[1])
	require.Equal(t, 2, result.ResultCount)
	require.Equal(t, MetricTopDevices, result.MetricName)
}

func TestTopActiveDevicesTruncatesToLimit(t *testing.T) {
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	var records []model.UplinkRecord
	for _, id := range []string{"DEV-A", "DEV-B", "DEV-C"} {
		records = append(records, uplink(id, "GW-1", -90, 5, base))
	}

	m := &TopActiveDevices{Limit: 2}
	result, err := m.Compute(records, computedAt)
	require.NoError(t, err)
	require.Equal(t, 2, result.ResultCount)
}

func TestTopActiveDevicesRejectsBadLimit(t *testing.T) {
	m := &TopActiveDevices{}
	_, err := m.Compute(nil, computedAt)
	require.Error(t, err)
}

func TestTopActiveDevicesIsDeterministic(t *testing.T) {
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	// Same count, same last-seen: identifier breaks the tie.
	records := []model.UplinkRecord{
		uplink("DEV-B", "GW-1", -90, 5, base),
		uplink("DEV-A", "GW-1", -90, 5, base),
	}

	m := &TopActiveDevices{Limit: 10}
	first, err := m.Compute(records, computedAt)
	require.NoError(t, err)
	second, err := m.Compute(records, computedAt)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, "DEV-A", first.Payload.([]DeviceActivity)[0].DeviceID)
}

func TestWeakSignalDevices(t *testing.T) {
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	records := []model.UplinkRecord{
		uplink("DEV-OK", "GW-1", -80, 8, base),
		uplink("DEV-RSSI", "GW-1", -120, 5, base),
		uplink("DEV-SNR", "GW-1", -90, -15, base),
		// Weak once, then recovered: still reported, with the latest values.
		uplink("DEV-FLAKY", "GW-1", -125, 2, base),
		uplink("DEV-FLAKY", "GW-1", -85, 6, base.Add(time.Minute)),
	}

	m := &WeakSignalDevices{RSSIThreshold: -110, SNRThreshold: -10}
	result, err := m.Compute(records, computedAt)
	require.NoError(t, err)

	devices := result.Payload.([]WeakDevice)
	require.Len(t, devices, 3)

	ids := make([]string, len(devices))
	for i, d := range devices {
		ids[i] = d.DeviceID
	}
	require.ElementsMatch(t, []string{"DEV-RSSI", "DEV-SNR", "DEV-FLAKY"}, ids)
	// Weakest RSSI first.
	require.Equal(t, "DEV-RSSI", devices[0].DeviceID)

	for _, d := range devices {
		if d.DeviceID == "DEV-FLAKY" {
			require.Equal(t, -85.0, d.RSSI)
			require.Equal(t, base.Add(time.Minute), d.LastSeen)
		}
	}
}

func TestWeakSignalRejectsPositiveThreshold(t *testing.T) {
	m := &WeakSignalDevices{RSSIThreshold: 10}
	_, err := m.Compute(nil, computedAt)
	require.Error(t, err)
}

func TestGatewayEnvironmentStats(t *testing.T) {
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	records := []model.UplinkRecord{
		withHumidity(withTemp(uplink("DEV-A", "GW-1", -90, 5, base), 20), 50),
		withTemp(uplink("DEV-B", "GW-1", -90, 5, base), 30),
		uplink("DEV-C", "GW-1", -90, 5, base), // no sensors
		uplink("DEV-D", "GW-2", -90, 5, base), // gateway with no sensors at all
	}

	m := &GatewayEnvironmentStats{}
	result, err := m.Compute(records, computedAt)
	require.NoError(t, err)

	stats := result.Payload.([]GatewayStats)
	require.Len(t, stats, 2)

	gw1 := stats[0]
	require.Equal(t, "GW-1", gw1.GatewayID)
	require.Equal(t, 3, gw1.RecordCount)
	require.NotNil(t, gw1.AvgTemperature)
	require.Equal(t, 25.0, *gw1.AvgTemperature)
	require.NotNil(t, gw1.AvgHumidity)
	require.Equal(t, 50.0, *gw1.AvgHumidity)

	gw2 := stats[1]
	require.Equal(t, "GW-2", gw2.GatewayID)
	require.Equal(t, 1, gw2.RecordCount)
	require.Nil(t, gw2.AvgTemperature)
	require.Nil(t, gw2.AvgHumidity)
}

func TestDuplicateDetection(t *testing.T) {
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	records := []model.UplinkRecord{
		uplink("DEV-A", "GW-1", -90, 5, base),
		uplink("DEV-A", "GW-2", -91, 5, base), // same device, same timestamp
		uplink("DEV-A", "GW-1", -90, 5, base.Add(time.Minute)),
		uplink("DEV-B", "GW-1", -90, 5, base),
	}

	m := &DuplicateDetection{}
	result, err := m.Compute(records, computedAt)
	require.NoError(t, err)

	groups := result.Payload.([]DuplicateGroup)
	require.Len(t, groups, 1)
	require.Equal(t, DuplicateGroup{DeviceID: "DEV-A", Timestamp: base, Count: 2}, groups[0])
}

func TestDuplicateDetectionCleanSet(t *testing.T) {
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	records := []model.UplinkRecord{
		uplink("DEV-A", "GW-1", -90, 5, base),
		uplink("DEV-A", "GW-1", -90, 5, base.Add(time.Second)),
	}

	m := &DuplicateDetection{}
	result, err := m.Compute(records, computedAt)
	require.NoError(t, err)
	require.Equal(t, 0, result.ResultCount)
}

func TestHighTemperatureRecords(t *testing.T) {
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	records := []model.UplinkRecord{
		withTemp(uplink("DEV-A", "GW-1", -90, 5, base), 36.5),
		withTemp(uplink("DEV-B", "GW-1", -90, 5, base), 35.0), // at threshold, not above
		withTemp(uplink("DEV-C", "GW-1", -90, 5, base), 20.0),
		uplink("DEV-D", "GW-1", -90, 5, base), // no reading
	}

	m := &HighTemperatureRecords{Threshold: 35, IncludeRecords: true}
	result, err := m.Compute(records, computedAt)
	require.NoError(t, err)

	payload := result.Payload.(highTempPayload)
	require.Equal(t, 1, payload.Count)
	require.Len(t, payload.Readings, 1)
	require.Equal(t, "DEV-A", payload.Readings[0].DeviceID)
	require.Equal(t, 36.5, payload.Readings[0].Temperature)
}

func TestHighTemperatureCountOnly(t *testing.T) {
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	records := []model.UplinkRecord{
		withTemp(uplink("DEV-A", "GW-1", -90, 5, base), 40),
	}

	m := &HighTemperatureRecords{Threshold: 35}
	result, err := m.Compute(records, computedAt)
	require.NoError(t, err)

	payload := result.Payload.(highTempPayload)
	require.Equal(t, 1, payload.Count)
	require.Empty(t, payload.Readings)
	require.Equal(t, 1, result.ResultCount)
}

func TestHighTemperatureExport(t *testing.T) {
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	exportPath := filepath.Join(t.TempDir(), "exports", "high_temps.json")

	m := &HighTemperatureRecords{Threshold: 35, IncludeRecords: true, ExportPath: exportPath}
	result, err := m.Compute([]model.UplinkRecord{
		withTemp(uplink("DEV-A", "GW-1", -90, 5, base), 38),
	}, computedAt)
	require.NoError(t, err)
	require.NoError(t, m.Export(result))

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)

	var exported struct {
		Threshold float64           `json:"threshold"`
		Count     int               `json:"count"`
		Readings  []HighTempReading `json:"readings"`
	}
	require.NoError(t, json.Unmarshal(data, &exported))
	require.Equal(t, 35.0, exported.Threshold)
	require.Equal(t, 1, exported.Count)
	require.Equal(t, "DEV-A", exported.Readings[0].DeviceID)
}

func TestHighTemperatureExportDisabled(t *testing.T) {
	m := &HighTemperatureRecords{Threshold: 35}
	result, err := m.Compute(nil, computedAt)
	require.NoError(t, err)
	require.NoError(t, m.Export(result))
}
