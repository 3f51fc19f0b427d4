package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/viniciushammett/go-weblog-analyzer/internal/accesslog"
	"github.com/viniciushammett/go-weblog-analyzer/internal/notify"
	"github.com/viniciushammett/go-weblog-analyzer/internal/report"
	"github.com/viniciushammett/go-weblog-analyzer/internal/store"
)

type LogStore interface {
	PutServerLog(serverID, status, content string) (store.ServerLog, error)
}

// Entry is a single request submitted for a registered server. Zero fields
// take the defaults below.
type Entry struct {
	LogContent string `json:"log_content"`
	IP         string `json:"ip"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Status     *int   `json:"status"` // nil means omitted
	Size       int64  `json:"size"`
	Referrer   string `json:"referrer"`
	UserAgent  string `json:"user_agent"`
	Datetime   string `json:"datetime"`
}

func (e Entry) Record() accesslog.Record {
	r := accesslog.Record{
		IP:        or(e.IP, "unknown"),
		Method:    or(e.Method, "GET"),
		Path:      or(e.Path, "/"),
		Status:    accesslog.DefaultStatus,
		Size:      e.Size,
		Referrer:  or(e.Referrer, "-"),
		UserAgent: or(e.UserAgent, "unknown"),
		Timestamp: e.Datetime,
		Datetime:  accesslog.ParseEntryTime(e.Datetime),
	}
	if e.Status != nil {
		r.Status = *e.Status
	}
	return r
}

type Analysis struct {
	LogID     uint64          `json:"log_id"`
	LogStatus string          `json:"log_status"`
	IsAnomaly bool            `json:"is_anomaly"`
	Anomalies []report.Threat `json:"anomalies"`
}

// AnalyzeEntry scores one entry, stores it as warning or safe and alerts on
// anomalies. Alert delivery failures are logged, never returned.
func (d *Detector) AnalyzeEntry(ctx context.Context, srv store.Server, e Entry) (Analysis, error) {
	if d.logs == nil {
		return Analysis{}, fmt.Errorf("analyze: no log store configured")
	}
	threats := d.detect(ctx, []accesslog.Record{e.Record()}, "entry")
	status := store.LogSafe
	if len(threats) > 0 {
		status = store.LogWarning
	}
	l, err := d.logs.PutServerLog(srv.ID, status, e.LogContent)
	if err != nil {
		return Analysis{}, fmt.Errorf("store log: %w", err)
	}
	if len(threats) > 0 && d.notifier != nil {
		alert := notify.Alert{
			ServerName: or(srv.Name, "Unknown Server"),
			ServerID:   srv.ID,
			LogContent: e.LogContent,
			Anomalies:  threats,
			DetectedAt: time.Now(),
		}
		if err := d.notifier.Notify(ctx, alert); err != nil {
			d.log.Warn().Err(err).Str("server", srv.ID).Msg("alert delivery failed")
		}
	}
	return Analysis{LogID: l.ID, LogStatus: status, IsAnomaly: len(threats) > 0, Anomalies: threats}, nil
}

func or(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
