package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseFloat(t *testing.T) {
	f, ok := ParseFloat(" -104.5 ")
	require.True(t, ok)
	require.Equal(t, -104.5, f)

	_, ok = ParseFloat("")
	require.False(t, ok)

	_, ok = ParseFloat("   ")
	require.False(t, ok)

	_, ok = ParseFloat("not-a-number")
	require.False(t, ok)
}

func TestParseFloatRejectsNonFinite(t *testing.T) {
	for _, in := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf", "infinity"} {
		_, ok := ParseFloat(in)
		require.False(t, ok, "should reject %q", in)
	}
}

func TestParseTimestampLayouts(t *testing.T) {
	want := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

	cases := []string{
		"2026-03-15 10:30:00",
		"2026-03-15T10:30:00",
		"2026-03-15T10:30:00Z",
		"2026/03/15 10:30:00",
	}
	for _, in := range cases {
		got, ok := ParseTimestamp(in)
		require.True(t, ok, "layout for %q", in)
		require.True(t, want.Equal(got), "parsed %q as %v", in, got)
	}
}

func TestParseTimestampFractionalSeconds(t *testing.T) {
	got, ok := ParseTimestamp("2026-03-15 10:30:00.250000")
	require.True(t, ok)
	require.Equal(t, 250*time.Millisecond, time.Duration(got.Nanosecond()))
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "  ", "yesterday", "15-03-2026", "2026-03-15"} {
		_, ok := ParseTimestamp(in)
		require.False(t, ok, "should reject %q", in)
	}
}

func TestNormalizeID(t *testing.T) {
	require.Equal(t, "DEV-001", NormalizeID("  dev-001 "))
	require.Equal(t, "", NormalizeID("   "))
}

func TestIsBlank(t *testing.T) {
	require.True(t, IsBlank(""))
	require.True(t, IsBlank(" \t "))
	require.False(t, IsBlank("x"))
}
