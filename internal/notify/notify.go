// Package notify delivers anomaly alerts for analyzed server log entries.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/viniciushammett/go-weblog-analyzer/internal/metrics"
	"github.com/viniciushammett/go-weblog-analyzer/internal/report"
)

// Alert describes one analyzed entry that produced anomalies.
type Alert struct {
	ServerName string
	ServerID   string
	LogContent string
	Anomalies  []report.Threat
	DetectedAt time.Time
}

type Notifier interface {
	Name() string
	Notify(ctx context.Context, a Alert) error
}

// Toggle is implemented by channels that can be switched off by config.
type Toggle interface {
	Enabled() bool
}

// Multi delivers to every channel and joins their errors.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Notify(ctx context.Context, a Alert) error {
	if a.DetectedAt.IsZero() {
		a.DetectedAt = time.Now()
	}
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if t, ok := n.(Toggle); ok && !t.Enabled() {
			metrics.Notifications.WithLabelValues(n.Name(), "skipped").Inc()
			continue
		}
		if err := n.Notify(ctx, a); err != nil {
			metrics.Notifications.WithLabelValues(n.Name(), "error").Inc()
			errs = append(errs, err)
			continue
		}
		metrics.Notifications.WithLabelValues(n.Name(), "sent").Inc()
	}
	return errors.Join(errs...)
}
