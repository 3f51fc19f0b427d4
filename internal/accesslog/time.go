package accesslog

import (
	"strings"
	"time"
)

// entryLayouts are accepted for single entries submitted through the API,
// which carry free-form datetimes rather than the bracketed CLF form.
var entryLayouts = []string{
	TimestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseEntryTime tries the known layouts in order; nil when none matches.
func ParseEntryTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range entryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
