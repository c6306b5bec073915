package parser

import (
	"strconv"
	"strings"
	"time"
)

// Common timestamp layouts ordered by likelihood.
var commonLayouts = []string{
	"2006-01-02 15:04:05.999999999Z07:00", // pandas/pm4py CSV export
	"2006-01-02T15:04:05.999999999Z07:00", // XES / ISO 8601
	"2006-01-02 15:04:05.999999999Z07",    // DuckDB TIMESTAMPTZ text
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006/01/02 15:04:05.999999999",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// excelEpoch is day zero of the Excel 1900 date system as used by serial numbers > 60.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseTimestamp parses a timestamp string and converts the instant to UTC.
// Values without an offset are read as UTC.
// preferred, when set, is tried before the built-in layouts.
func ParseTimestamp(s, preferred string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidTimestamp
	}

	if preferred != "" {
		if t, err := time.Parse(preferred, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range commonLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, ErrInvalidTimestamp
}

// parseExcelSerial converts an Excel serial date (days since 1899-12-30).
func parseExcelSerial(s string) (time.Time, bool) {
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial <= 1 {
		return time.Time{}, false
	}
	d := time.Duration(serial * float64(24*time.Hour))
	return excelEpoch.Add(d.Round(time.Millisecond)), true
}
