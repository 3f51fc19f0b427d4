package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Slack struct {
	enabled bool
	webhook string
	client  *http.Client
}

func NewSlack(enabled bool, webhook string) *Slack {
	return &Slack{enabled: enabled, webhook: webhook, client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Enabled() bool { return s.enabled && s.webhook != "" }

func (s *Slack) Notify(ctx context.Context, a Alert) error {
	if !s.Enabled() {
		return nil
	}
	body, err := json.Marshal(map[string]string{"text": Format(a)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Format renders the alert as Slack mrkdwn.
func Format(a Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":warning: *Anomaly* on `%s` (%s), %d finding(s)\n", a.ServerName, a.ServerID, len(a.Anomalies))
	for _, t := range a.Anomalies {
		fmt.Fprintf(&b, "• %s sev=%s err=%.4f %s\n", t.IP, t.Severity, t.ReconstructionError, t.Details)
	}
	fmt.Fprintf(&b, "```%s```", a.LogContent)
	return b.String()
}
