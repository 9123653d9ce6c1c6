package utils

import (
	"time"
)

// AlignToWindow truncates a time to the start of its candle window.
func AlignToWindow(t time.Time, unit time.Duration) time.Time {
	return t.Truncate(unit)
}

// WindowsBetween returns how many complete candle windows fit in [start,end).
func WindowsBetween(start, end time.Time, unit time.Duration) int {
	if !end.After(start) || unit <= 0 {
		return 0
	}
	return int(end.Sub(start) / unit)
}
