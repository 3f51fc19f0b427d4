// Package accesslog parses Combined Log Format access-log lines into records.
package accesslog

import "time"

// TimestampLayout is the bracketed CLF timestamp, e.g. 10/Oct/2023:13:55:36 -0700.
const TimestampLayout = "02/Jan/2006:15:04:05 -0700"

const (
	UnknownMethod = "unknown"
	DefaultStatus = 200
)

// Record is one parsed request line. Datetime is nil when Timestamp did not
// match TimestampLayout; the record is kept either way.
type Record struct {
	IP        string     `json:"ip"`
	Timestamp string     `json:"timestamp"`
	Datetime  *time.Time `json:"datetime,omitempty"`
	Method    string     `json:"method"`
	Path      string     `json:"path"`
	Status    int        `json:"status"`
	Size      int64      `json:"size"`
	Referrer  string     `json:"referrer"`
	UserAgent string     `json:"user_agent"`
}

// Time returns the original timestamp string when it parsed, "" otherwise.
func (r Record) Time() string {
	if r.Datetime == nil {
		return ""
	}
	return r.Timestamp
}

// Hour is the hour of day in the record's own UTC offset, 0 without a datetime.
func (r Record) Hour() int {
	if r.Datetime == nil {
		return 0
	}
	return r.Datetime.Hour()
}

// Result is the outcome of parsing a stream of lines.
type Result struct {
	Records []Record
	Lines   int // non-blank lines seen
	Skipped int // non-blank lines that failed the grammar
}
