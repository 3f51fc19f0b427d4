package notify

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"text/template"
	"time"
)

type EmailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email sends a text and HTML alternative message over SMTP. STARTTLS is
// negotiated by net/smtp when the server offers it.
type Email struct {
	cfg  EmailConfig
	send sendFunc
}

func NewEmail(cfg EmailConfig) *Email {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Email{cfg: cfg, send: smtp.SendMail}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Enabled() bool { return e.cfg.Enabled }

func (e *Email) Notify(_ context.Context, a Alert) error {
	if !e.Enabled() {
		return nil
	}
	if e.cfg.Host == "" || e.cfg.To == "" {
		return fmt.Errorf("email: smtp host or recipient not configured")
	}
	msg, err := e.message(a)
	if err != nil {
		return err
	}
	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	addr := e.cfg.Host + ":" + strconv.Itoa(e.cfg.Port)
	if err := e.send(addr, auth, e.cfg.From, strings.Split(e.cfg.To, ","), msg); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return nil
}

func (e *Email) message(a Alert) ([]byte, error) {
	if a.DetectedAt.IsZero() {
		a.DetectedAt = time.Now()
	}
	var text, html bytes.Buffer
	if err := textTmpl.Execute(&text, a); err != nil {
		return nil, fmt.Errorf("email text: %w", err)
	}
	if err := htmlTmpl.Execute(&html, a); err != nil {
		return nil, fmt.Errorf("email html: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct {
		ctype string
		b     []byte
	}{{"text/plain; charset=UTF-8", text.Bytes()}, {"text/html; charset=UTF-8", html.Bytes()}} {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.ctype}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(part.b); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	hdr := strings.Join([]string{
		fmt.Sprintf("From: %s", e.cfg.From),
		fmt.Sprintf("To: %s", e.cfg.To),
		fmt.Sprintf("Subject: WARNING ALERT - Server: %s", a.ServerName),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/alternative; boundary=%s", mw.Boundary()),
		"",
		"",
	}, "\r\n")
	return append([]byte(hdr), body.Bytes()...), nil
}

const timeLayout = "2006-01-02 15:04:05"

var textTmpl = template.Must(template.New("text").Parse(`SECURITY WARNING ALERT

Server: {{.ServerName}}
Server ID: {{.ServerID}}
Time: {{.DetectedAt.Format "` + timeLayout + `"}}
Status: WARNING

Log Content:
{{.LogContent}}
{{if .Anomalies}}
Anomaly Details:
{{range .Anomalies}}- IP: {{.IP}}
  Severity: {{.Severity}}
  Error: {{.ReconstructionError}}
{{end}}{{end}}
---
This is an automated alert from Web Log Analyzer
`))

var htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Parse(`<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="background: #ee5a6f; color: white; padding: 20px; margin: 0;">Security Warning Alert</h2>
  <p><strong>Action Required:</strong> A suspicious log entry has been detected and flagged as a warning.</p>
  <h3>Server Information</h3>
  <table>
    <tr><td><b>Server Name:</b></td><td>{{.ServerName}}</td></tr>
    <tr><td><b>Server ID:</b></td><td><code>{{.ServerID}}</code></td></tr>
    <tr><td><b>Detection Time:</b></td><td>{{.DetectedAt.Format "` + timeLayout + `"}}</td></tr>
    <tr><td><b>Status:</b></td><td style="color: #dc3545;">WARNING</td></tr>
  </table>
  <h3>Log Content</h3>
  <pre style="background: #2d2d2d; color: #f8f8f2; padding: 15px;">{{.LogContent}}</pre>
  {{- if .Anomalies}}
  <h3>Anomaly Details</h3>
  <table>
  {{- range .Anomalies}}
    <tr><td><b>IP Address:</b></td><td>{{.IP}}</td></tr>
    <tr><td><b>Severity:</b></td><td style="color: #dc3545;">{{.Severity}}</td></tr>
    <tr><td><b>Reconstruction Error:</b></td><td>{{.ReconstructionError}}</td></tr>
    <tr><td><b>Details:</b></td><td>{{.Details}}</td></tr>
  {{- end}}
  </table>
  {{- end}}
  <p style="text-align: center; color: #6c757d; font-size: 12px;">This is an automated alert from Web Log Analyzer</p>
</div>
</body>
</html>
`))
