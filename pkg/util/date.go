package util

import (
	"strconv"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// AlignBar rounds t down to the bar boundary for the timeframe. Daily bars
// start at midnight UTC, weekly bars on Monday.
func AlignBar(t time.Time, tf string) time.Time {
	t = t.UTC()
	switch tf {
	case "1w":
		t = t.Truncate(24 * time.Hour)
		// time.Weekday numbers Sunday as 0.
		offset := (int(t.Weekday()) + 6) % 7
		return t.AddDate(0, 0, -offset)
	default:
		return t.Truncate(24 * time.Hour)
	}
}
