package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lorawan-pipeline/internal/model"
)

func validRow() model.RawRow {
	return model.RawRow{
		Line:        2,
		DeviceID:    "dev-001",
		RSSI:        "-104.5",
		SNR:         "7.2",
		GatewayID:   "gw-001",
		Temperature: "22.5",
		Humidity:    "61.0",
		Latitude:    "47.37",
		Longitude:   "8.54",
		Timestamp:   "2026-03-15 10:00:00",
	}
}

func TestValidateAcceptsCompleteRow(t *testing.T) {
	out := Validate(validRow())
	require.True(t, out.Accepted)
	require.Empty(t, out.Reason)
}

func TestValidateAcceptsBlankOptionalFields(t *testing.T) {
	row := validRow()
	row.Temperature = ""
	row.Humidity = "  "
	row.Latitude = ""
	row.Longitude = ""

	out := Validate(row)
	require.True(t, out.Accepted)
}

func TestValidateRejectsMalformedRow(t *testing.T) {
	out := Validate(model.RawRow{Line: 5, Malformed: true})
	require.False(t, out.Accepted)
	require.Equal(t, model.ReasonMalformed, out.Reason)
}

func TestValidateRejectsMissingRequiredFields(t *testing.T) {
	for _, mutate := range []func(*model.RawRow){
		func(r *model.RawRow) { r.DeviceID = "" },
		func(r *model.RawRow) { r.GatewayID = "  " },
		func(r *model.RawRow) { r.Timestamp = "" },
		func(r *model.RawRow) { r.RSSI = "" },
		func(r *model.RawRow) { r.SNR = "" },
	} {
		row := validRow()
		mutate(&row)
		out := Validate(row)
		require.False(t, out.Accepted)
		require.Equal(t, model.ReasonMissingField, out.Reason)
	}
}

func TestValidateRejectsUnparseableNumbers(t *testing.T) {
	row := validRow()
	row.RSSI = "strong"
	out := Validate(row)
	require.Equal(t, model.ReasonMalformed, out.Reason)

	row = validRow()
	row.Temperature = "warm"
	out = Validate(row)
	require.Equal(t, model.ReasonMalformed, out.Reason)
}

func TestValidateRejectsNonFiniteValues(t *testing.T) {
	// strconv.ParseFloat accepts NaN and Inf spellings, and NaN compares
	// false against every range bound, so these must die in parsing.
	for _, mutate := range []func(*model.RawRow){
		func(r *model.RawRow) { r.RSSI = "NaN" },
		func(r *model.RawRow) { r.SNR = "-Inf" },
		func(r *model.RawRow) { r.Temperature = "+Inf" },
		func(r *model.RawRow) { r.Humidity = "nan" },
		func(r *model.RawRow) { r.Latitude = "Inf" },
	} {
		row := validRow()
		mutate(&row)
		out := Validate(row)
		require.False(t, out.Accepted)
		require.Equal(t, model.ReasonMalformed, out.Reason)
	}
}

func TestValidateRejectsOutOfRangeMetrics(t *testing.T) {
	row := validRow()
	row.RSSI = "-200"
	out := Validate(row)
	require.Equal(t, model.ReasonOutOfRange, out.Reason)

	row = validRow()
	row.SNR = "45"
	out = Validate(row)
	require.Equal(t, model.ReasonOutOfRange, out.Reason)

	row = validRow()
	row.Latitude = "95"
	out = Validate(row)
	require.Equal(t, model.ReasonOutOfRange, out.Reason)

	row = validRow()
	row.Longitude = "-200"
	out = Validate(row)
	require.Equal(t, model.ReasonOutOfRange, out.Reason)
}

func TestValidateRejectsBadTimestamp(t *testing.T) {
	row := validRow()
	row.Timestamp = "half past ten"
	out := Validate(row)
	require.False(t, out.Accepted)
	require.Equal(t, model.ReasonBadTimestamp, out.Reason)
}

func TestValidateIsDeterministic(t *testing.T) {
	row := validRow()
	row.RSSI = "-200"
	first := Validate(row)
	second := Validate(row)
	require.Equal(t, first, second)
}
