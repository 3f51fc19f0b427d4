package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LinesParsed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "wla_lines_parsed_total", Help: "Access-log lines parsed into records"},
	)
	LinesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "wla_lines_skipped_total", Help: "Non-blank lines that did not match the log grammar"},
	)
	Scans = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wla_scans_total", Help: "Scans by outcome"},
		[]string{"outcome"}, // ok|empty|degraded|error
	)
	Threats = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wla_threats_total", Help: "Rows flagged as anomalous"},
		[]string{"source"}, // file|entry
	)
	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "wla_scan_duration_seconds", Help: "Scan latency", Buckets: prometheus.DefBuckets},
	)
	ModelState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "wla_model_state", Help: "1 for the scorer's current state"},
		[]string{"state"},
	)
	Artifacts = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "wla_artifact_loaded", Help: "1 for each artifact's load outcome"},
		[]string{"artifact", "outcome"},
	)
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wla_notifications_total", Help: "Alert deliveries"},
		[]string{"channel", "result"},
	)
)

func MustRegister() {
	prometheus.MustRegister(LinesParsed, LinesSkipped, Scans, Threats, ScanDuration, ModelState, Artifacts, Notifications)
}

func Handler() http.Handler { return promhttp.Handler() }
