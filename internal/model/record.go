package model

import "time"

// RawRow is a single physical line of the source CSV, split into the fixed
// uplink columns. Field values are untrimmed strings exactly as read.
type RawRow struct {
	Line        int64  `json:"line"` // 1-based physical line number in the source file
	DeviceID    string `json:"device_id"`
	RSSI        string `json:"rssi"`
	SNR         string `json:"snr"`
	GatewayID   string `json:"gateway_id"`
	Temperature string `json:"temperature"`
	Humidity    string `json:"humidity"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
	Timestamp   string `json:"timestamp"`
	Malformed   bool   `json:"malformed"` // line could not be parsed as a CSV record
}

// RejectReason classifies why the validator refused a row.
type RejectReason string

const (
	ReasonMissingField RejectReason = "missing_field"
	ReasonOutOfRange   RejectReason = "out_of_range"
	ReasonBadTimestamp RejectReason = "bad_timestamp"
	ReasonMalformed    RejectReason = "malformed"
)

// ValidationOutcome is the validator's verdict for one row. Exactly one of
// Accepted or Reason is meaningful: rejected rows always carry a reason.
type ValidationOutcome struct {
	Row      RawRow       `json:"row"`
	Accepted bool         `json:"accepted"`
	Reason   RejectReason `json:"reason,omitempty"`
}

// UplinkRecord is the validated, typed representation of a device uplink
// event. Immutable once created; owned by the document store after commit.
// Optional sensor fields are nil when the source column was empty.
type UplinkRecord struct {
	DeviceID    string    `json:"device_id" bson:"device_id"`
	RSSI        float64   `json:"rssi" bson:"rssi"`
	SNR         float64   `json:"snr" bson:"snr"`
	GatewayID   string    `json:"gateway_id" bson:"gateway_id"`
	Temperature *float64  `json:"temperature,omitempty" bson:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty" bson:"humidity,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty" bson:"longitude,omitempty"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
	BatchID     string    `json:"batch_id" bson:"batch_id"`
	SourceID    string    `json:"source_id" bson:"source_id"`
	Line        int64     `json:"line" bson:"line"`
}

// NaturalKey is the field combination used for duplicate detection and the
// unique index at the store layer.
func (r UplinkRecord) NaturalKey() string {
	return r.DeviceID + "|" + r.Timestamp.UTC().Format(time.RFC3339Nano)
}
