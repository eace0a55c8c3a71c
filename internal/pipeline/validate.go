package pipeline

import (
	"lorawan-pipeline/internal/model"
	"lorawan-pipeline/pkg/utils"
)

// Plausible device ranges for the radio metrics. Values outside these are
// sensor glitches or corrupt rows, not real uplinks.
const (
	rssiMin = -150.0 // dBm
	rssiMax = 0.0
	snrMin  = -30.0 // dB
	snrMax  = 20.0

	latMin = -90.0
	latMax = 90.0
	lonMin = -180.0
	lonMax = 180.0
)

// Validate classifies one raw row as accepted or rejected with a reason.
// It is pure and total: every row yields exactly one outcome, and a
// rejection is never fatal to the run.
func Validate(row model.RawRow) model.ValidationOutcome {
	if row.Malformed {
		return reject(row, model.ReasonMalformed)
	}

	// Required fields must be present and non-empty.
	for _, field := range []string{row.DeviceID, row.GatewayID, row.Timestamp, row.RSSI, row.SNR} {
		if utils.IsBlank(field) {
			return reject(row, model.ReasonMissingField)
		}
	}

	rssi, ok := utils.ParseFloat(row.RSSI)
	if !ok {
		return reject(row, model.ReasonMalformed)
	}
	if rssi < rssiMin || rssi > rssiMax {
		return reject(row, model.ReasonOutOfRange)
	}

	snr, ok := utils.ParseFloat(row.SNR)
	if !ok {
		return reject(row, model.ReasonMalformed)
	}
	if snr < snrMin || snr > snrMax {
		return reject(row, model.ReasonOutOfRange)
	}

	// Optional sensor fields: empty is fine, unparseable is not.
	for _, field := range []string{row.Temperature, row.Humidity} {
		if !utils.IsBlank(field) {
			if _, ok := utils.ParseFloat(field); !ok {
				return reject(row, model.ReasonMalformed)
			}
		}
	}

	if !utils.IsBlank(row.Latitude) {
		lat, ok := utils.ParseFloat(row.Latitude)
		if !ok {
			return reject(row, model.ReasonMalformed)
		}
		if lat < latMin || lat > latMax {
			return reject(row, model.ReasonOutOfRange)
		}
	}
	if !utils.IsBlank(row.Longitude) {
		lon, ok := utils.ParseFloat(row.Longitude)
		if !ok {
			return reject(row, model.ReasonMalformed)
		}
		if lon < lonMin || lon > lonMax {
			return reject(row, model.ReasonOutOfRange)
		}
	}

	if _, ok := utils.ParseTimestamp(row.Timestamp); !ok {
		return reject(row, model.ReasonBadTimestamp)
	}

	return model.ValidationOutcome{Row: row, Accepted: true}
}

func reject(row model.RawRow, reason model.RejectReason) model.ValidationOutcome {
	return model.ValidationOutcome{Row: row, Accepted: false, Reason: reason}
}
