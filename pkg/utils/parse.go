package utils

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// TimestampLayouts are the accepted source timestamp formats, tried in
// order. Layouts without a zone are interpreted as UTC.
var TimestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.999999Z",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04:05.999999",
}

// ParseFloat converts a CSV field to a float64. Whitespace is trimmed first.
// NaN and infinities are rejected: they are never real sensor readings, and
// NaN compares false against every range bound downstream.
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseTimestamp parses a source timestamp under the accepted layouts and
// normalizes it to UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range TimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// NormalizeID canonicalizes a device or gateway identifier: trimmed and
// upper-cased so the same hardware never appears under two spellings.
func NormalizeID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsBlank reports whether a field is empty after trimming.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
