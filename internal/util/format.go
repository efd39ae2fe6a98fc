// Package util hosts small shared formatting helpers for CLI output.
package util

import (
	"fmt"
	"time"
)

// FormatAge renders how long ago t was as a compact human string for
// tabular CLI output. Zero or future times render as "-".
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return FormatDurationCompact(time.Since(t))
}

// FormatDurationCompact renders a duration using the largest sensible unit:
// "3d", "7h", "25m", "40s". Negative durations render as "-".
func FormatDurationCompact(d time.Duration) string {
	switch {
	case d < 0:
		return "-"
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours())/24)
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d >= time.Minute:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}
