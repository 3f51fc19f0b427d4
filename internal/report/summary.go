package report

import (
	"strconv"
	"time"

	"github.com/viniciushammett/go-weblog-analyzer/internal/accesslog"
)

// Summary holds the traffic statistics stored alongside a scan.
type Summary struct {
	TotalRequests      int            `json:"total_requests"`
	UniqueIPs          int            `json:"unique_ips"`
	AvgBodySizeKB      float64        `json:"avg_body_size"`
	ErrorRate          float64        `json:"error_rate"`
	TrafficChart       map[string]int `json:"traffic_chart"`
	StatusDistribution map[string]int `json:"status_distribution"`
}

// Summarize computes the statistics for a parsed file. ErrorRate is the
// percentage of 5xx responses. TrafficChart buckets requests by hour (RFC3339
// in UTC); records without a datetime are left out of the chart only.
func Summarize(records []accesslog.Record) Summary {
	s := Summary{
		TotalRequests:      len(records),
		TrafficChart:       map[string]int{},
		StatusDistribution: map[string]int{},
	}
	if len(records) == 0 {
		return s
	}
	ips := map[string]struct{}{}
	var bytes int64
	var errs int
	for _, r := range records {
		ips[r.IP] = struct{}{}
		bytes += r.Size
		if r.Status >= 500 && r.Status < 600 {
			errs++
		}
		s.StatusDistribution[strconv.Itoa(r.Status)]++
		if r.Datetime != nil {
			s.TrafficChart[r.Datetime.UTC().Truncate(time.Hour).Format(time.RFC3339)]++
		}
	}
	n := float64(len(records))
	s.UniqueIPs = len(ips)
	s.AvgBodySizeKB = round(float64(bytes)/n/1024, 2)
	s.ErrorRate = round(float64(errs)/n*100, 2)
	return s
}
