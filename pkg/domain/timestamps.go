package domain

import (
	"strings"
	"time"
)

// isoLayout matches the millisecond UTC timestamps stored in legacy documents.
const isoLayout = "2006-01-02T15:04:05.000Z"

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// FormatTimestamp renders t as a UTC ISO-8601 string with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// FormatDate renders the calendar date of t in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ParseTimestamp accepts full ISO timestamps and bare dates. The boolean is
// false for empty or unparseable input.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// TimestampMillis returns the Unix milliseconds of raw, or zero when absent
// or unparseable. Missing dates therefore sort as the oldest.
func TimestampMillis(raw string) int64 {
	t, ok := ParseTimestamp(raw)
	if !ok {
		return 0
	}
	return t.UnixMilli()
}
