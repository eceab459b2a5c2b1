package models

import (
	"fmt"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02T15:04:05"
)

// ParseDate parses YYYY-MM-DD into a midnight UTC time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// DateOf drops the time of day, keeping the calendar day as seen in t's zone.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// FormatTimestamp renders the date widened to a zero-time instant, without zone.
func FormatTimestamp(t time.Time) string { return DateOf(t).Format(TimestampLayout) }

// scanDate normalizes what the drivers hand back for a date column:
// lib/pq gives time.Time, modernc sqlite gives a string for TEXT columns.
func scanDate(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return DateOf(x), nil
	case string:
		return parseStoredDate(x)
	case []byte:
		return parseStoredDate(string(x))
	default:
		return time.Time{}, fmt.Errorf("unsupported date value %T", v)
	}
}

func parseStoredDate(s string) (time.Time, error) {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	return ParseDate(s)
}
