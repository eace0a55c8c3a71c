package pipeline

import (
	"fmt"

	"lorawan-pipeline/internal/model"
	"lorawan-pipeline/pkg/utils"
)

// Transform converts an accepted raw row into a typed record: numeric casts,
// timestamp normalization to UTC, identifier trimming and case folding. It
// is deterministic and side-effect-free.
//
// Transform must only be called on rows the validator accepted. A failure
// here means the validator and transformer disagree about what a valid row
// is; the returned error wraps ErrTransformInvariant and the orchestrator
// halts the run rather than silently dropping data.
func Transform(row model.RawRow) (model.UplinkRecord, error) {
	rssi, ok := utils.ParseFloat(row.RSSI)
	if !ok {
		return model.UplinkRecord{}, invariant(row, "rssi", row.RSSI)
	}
	snr, ok := utils.ParseFloat(row.SNR)
	if !ok {
		return model.UplinkRecord{}, invariant(row, "snr", row.SNR)
	}
	ts, ok := utils.ParseTimestamp(row.Timestamp)
	if !ok {
		return model.UplinkRecord{}, invariant(row, "timestamp", row.Timestamp)
	}

	rec := model.UplinkRecord{
		DeviceID:  utils.NormalizeID(row.DeviceID),
		GatewayID: utils.NormalizeID(row.GatewayID),
		RSSI:      rssi,
		SNR:       snr,
		Timestamp: ts,
		Line:      row.Line,
	}

	var err error
	if rec.Temperature, err = optionalFloat(row, "temperature", row.Temperature); err != nil {
		return model.UplinkRecord{}, err
	}
	if rec.Humidity, err = optionalFloat(row, "humidity", row.Humidity); err != nil {
		return model.UplinkRecord{}, err
	}
	if rec.Latitude, err = optionalFloat(row, "latitude", row.Latitude); err != nil {
		return model.UplinkRecord{}, err
	}
	if rec.Longitude, err = optionalFloat(row, "longitude", row.Longitude); err != nil {
		return model.UplinkRecord{}, err
	}

	return rec, nil
}

func optionalFloat(row model.RawRow, name, value string) (*float64, error) {
	if utils.IsBlank(value) {
		return nil, nil
	}
	f, ok := utils.ParseFloat(value)
	if !ok {
		return nil, invariant(row, name, value)
	}
	return &f, nil
}

func invariant(row model.RawRow, field, value string) error {
	return fmt.Errorf("%w: line %d field %s=%q", model.ErrTransformInvariant, row.Line, field, value)
}
