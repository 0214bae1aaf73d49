package internal

import (
	"time"

	"github.com/dustin/go-humanize"
)

const (
	// DisplayTimeFormat is the standard time format used across the application
	DisplayTimeFormat = "2006-01-02 15:04:05"

	// SecretEnvVar holds the credential file secret when no flag is given.
	SecretEnvVar = "CAPSULECTL_SECRET"
)

// FormatTime formats t in local time, or "-" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(DisplayTimeFormat)
}

// FormatAge renders t relative to now, e.g. "3 days ago".
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// FormatSize renders a byte count, e.g. "1.2 kB".
func FormatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
