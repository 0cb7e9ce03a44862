package http

import (
	"time"

	xutil "WaveScan/pkg/util"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int { return xutil.ParseIntDefault(s, def) }

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time { return xutil.ParseTimeDefault(s, def) }

// AlignBar rounds t down to the bar boundary for the timeframe.
func AlignBar(t time.Time, tf string) time.Time { return xutil.AlignBar(t, tf) }
