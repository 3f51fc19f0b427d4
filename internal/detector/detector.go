// Package detector runs the scan pipeline: parsed records are encoded,
// scored against the reconstruction model and reported as threats.
package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/viniciushammett/go-weblog-analyzer/internal/accesslog"
	"github.com/viniciushammett/go-weblog-analyzer/internal/features"
	"github.com/viniciushammett/go-weblog-analyzer/internal/ingest"
	"github.com/viniciushammett/go-weblog-analyzer/internal/logger"
	"github.com/viniciushammett/go-weblog-analyzer/internal/metrics"
	"github.com/viniciushammett/go-weblog-analyzer/internal/ml"
	"github.com/viniciushammett/go-weblog-analyzer/internal/notify"
	"github.com/viniciushammett/go-weblog-analyzer/internal/report"
)

var tracer = otel.Tracer("detector")

// Scan outcomes, used as the wla_scans_total label.
const (
	OutcomeOK       = "ok"
	OutcomeEmpty    = "empty"
	OutcomeDegraded = "degraded"
	OutcomeError    = "error"
)

type Detector struct {
	log      *logger.Logger
	scorer   *ml.Scorer
	logs     LogStore
	notifier notify.Notifier
}

// New wires the detector. logs and notifier may be nil when only file scans
// are needed.
func New(log *logger.Logger, scorer *ml.Scorer, logs LogStore, notifier notify.Notifier) *Detector {
	d := &Detector{log: log, scorer: scorer, logs: logs, notifier: notifier}
	d.recordModel()
	return d
}

func (d *Detector) Scorer() *ml.Scorer { return d.scorer }

func (d *Detector) recordModel() {
	for _, st := range []ml.State{ml.Unloaded, ml.Ready, ml.Degraded} {
		v := 0.0
		if st == d.scorer.State() {
			v = 1
		}
		metrics.ModelState.WithLabelValues(st.String()).Set(v)
	}
	for _, a := range d.scorer.Status().All() {
		for _, o := range []ml.Outcome{ml.Loaded, ml.Absent, ml.Corrupt} {
			v := 0.0
			if a.Outcome == o {
				v = 1
			}
			metrics.Artifacts.WithLabelValues(a.Name, string(o)).Set(v)
		}
		ev := d.log.Info()
		if a.Outcome == ml.Corrupt {
			ev = d.log.Warn().Err(a.Err)
		}
		ev.Str("artifact", a.Name).Str("outcome", string(a.Outcome)).Msg("model artifact")
	}
	ev := d.log.Info()
	if d.scorer.State() != ml.Ready {
		ev = d.log.Warn()
	}
	ev.Str("state", d.scorer.State().String()).Float64("threshold", d.scorer.Threshold()).Msg("scorer initialized")
}

// Scan scores every parsed record. It never fails: a degraded scorer, a
// scoring error or a panic all yield an empty report.
func (d *Detector) Scan(ctx context.Context, res accesslog.Result) report.Report {
	metrics.LinesParsed.Add(float64(len(res.Records)))
	metrics.LinesSkipped.Add(float64(res.Skipped))
	if res.Skipped > 0 {
		d.log.Debug().Int("skipped", res.Skipped).Int("lines", res.Lines).Msg("lines did not match the log grammar")
	}
	threats := d.detect(ctx, res.Records, "file")
	return report.New(threats)
}

// ScanFile parses path (gzip aware) and scans it. Only read failures are
// returned as errors.
func (d *Detector) ScanFile(ctx context.Context, path string) (report.Report, accesslog.Result, error) {
	_, span := tracer.Start(ctx, "parse")
	res, err := ingest.ParseFile(path)
	span.SetAttributes(attribute.Int("records", len(res.Records)), attribute.Int("skipped", res.Skipped))
	span.End()
	if err != nil {
		return report.Empty(), res, fmt.Errorf("parse %s: %w", path, err)
	}
	return d.Scan(ctx, res), res, nil
}

func (d *Detector) detect(ctx context.Context, records []accesslog.Record, source string) (threats []report.Threat) {
	ctx, span := tracer.Start(ctx, "scan")
	defer span.End()
	start := time.Now()
	outcome := OutcomeOK
	defer func() {
		if p := recover(); p != nil {
			d.log.Error().Interface("panic", p).Str("source", source).Msg("scan aborted")
			span.SetStatus(codes.Error, "panic")
			threats, outcome = []report.Threat{}, OutcomeError
		}
		metrics.Scans.WithLabelValues(outcome).Inc()
		metrics.ScanDuration.Observe(time.Since(start).Seconds())
		metrics.Threats.WithLabelValues(source).Add(float64(len(threats)))
		span.SetAttributes(attribute.String("outcome", outcome), attribute.Int("threats", len(threats)))
	}()

	_, esp := tracer.Start(ctx, "encode")
	m, ok := features.Encode(records, d.scorer.Vocabulary())
	esp.End()
	if !ok {
		outcome = OutcomeEmpty
		return []report.Threat{}
	}
	if unseen := features.Unseen(records, d.scorer.Vocabulary()); len(unseen) > 0 {
		ev := d.log.Debug()
		for col, n := range unseen {
			ev = ev.Int(col, n)
		}
		ev.Msg("values outside the trained vocabulary")
	}

	_, ssp := tracer.Start(ctx, "score")
	errs, flagged, err := d.scorer.Score(m)
	ssp.End()
	switch {
	case errors.Is(err, ml.ErrDegraded):
		outcome = OutcomeDegraded
		d.log.Warn().Int("records", len(records)).Msg("scorer degraded, no detection")
		return []report.Threat{}
	case err != nil:
		outcome = OutcomeError
		span.RecordError(err)
		d.log.Error().Err(err).Int("records", len(records)).Msg("scoring failed")
		return []report.Threat{}
	}
	threats = report.Build(records, flagged, errs)
	d.log.Info().Int("records", len(records)).Int("threats", len(threats)).Str("source", source).Msg("scan complete")
	return threats
}
