package domain

import (
	"fmt"
	"strings"
	"time"
)

// SlotDuration is the atomic planning bucket. Energy accounting and the
// synthetic fallback generators both assume half-hour slots.
const SlotDuration = 30 * time.Minute

// SlotHours is SlotDuration expressed in hours.
const SlotHours = 0.5

// EnsureUTC returns the instant normalized to UTC.
func EnsureUTC(t time.Time) time.Time {
	return t.UTC()
}

// FormatTime serializes a timestamp as ISO-8601 UTC with a trailing Z.
func FormatTime(t time.Time) string {
	return EnsureUTC(t).Format(time.RFC3339Nano)
}

// ParseTime parses an ISO-8601 timestamp. Both the "Z" suffix and an
// explicit "+00:00" (or any other numeric offset) are accepted; the result
// is always UTC.
func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	// RFC3339 first, then the minute-precision form the Carbon Intensity
	// API uses, then offset-less timestamps treated as UTC.
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04Z07:00",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}

// HourFloor truncates a timestamp to the top of its hour. The synthetic
// fallback series are anchored here.
func HourFloor(t time.Time) time.Time {
	return EnsureUTC(t).Truncate(time.Hour)
}

// HoursBetween returns the signed span from start to end in hours.
func HoursBetween(start, end time.Time) float64 {
	return end.Sub(start).Hours()
}

// DurationFromHours converts a fractional hour count to a Duration.
func DurationFromHours(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}
