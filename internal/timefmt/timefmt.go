// Package timefmt renders the Malay relative-age labels shown next to
// signals. Both variants are pure functions of (timestamp, now); the
// presentation layer decides how often to recompute them.
package timefmt

import (
	"fmt"
	"time"
)

// ShortAge returns the compact ticker tag: "Baru", "{n}m" or "{h}j".
// Elapsed time is floored, and hours never roll into days.
func ShortAge(t, now time.Time) string {
	minutes := int(now.Sub(t).Minutes())
	if minutes < 1 {
		return "Baru"
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dj", minutes/60)
}

// LongAge returns the drawer phrase, e.g. "45 MINIT LALU".
func LongAge(t, now time.Time) string {
	minutes := int(now.Sub(t).Minutes())
	if minutes < 1 {
		return "BARU SAHAJA"
	}
	if minutes < 60 {
		return fmt.Sprintf("%d MINIT LALU", minutes)
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%d JAM LALU", hours)
	}
	return fmt.Sprintf("%d HARI LALU", hours/24)
}
