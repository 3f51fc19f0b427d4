// Package report turns flagged rows into threat entries and computes the
// per-file summary shown next to a scan.
package report

import (
	"math"

	"github.com/viniciushammett/go-weblog-analyzer/internal/accesslog"
)

// SeverityHigh is the only severity the autoencoder emits.
const SeverityHigh = "High"

type Threat struct {
	IP                  string  `json:"ip"`
	Severity            string  `json:"severity"`
	Time                string  `json:"time"`
	ReconstructionError float64 `json:"reconstruction_error"`
	Details             string  `json:"details"`
}

// Report is the scan result body. Threats is never nil so it encodes as [].
type Report struct {
	ThreatCount int      `json:"threat_count"`
	Threats     []Threat `json:"threats"`
}

func New(threats []Threat) Report {
	if threats == nil {
		threats = []Threat{}
	}
	return Report{ThreatCount: len(threats), Threats: threats}
}

// Empty is the result of a scan that had nothing to score or could not score.
func Empty() Report { return New(nil) }

// Build emits one threat per flagged index, in the order given. Indices out
// of range of records or errs are ignored.
func Build(records []accesslog.Record, flagged []int, errs []float64) []Threat {
	out := make([]Threat, 0, len(flagged))
	for _, i := range flagged {
		if i < 0 || i >= len(records) || i >= len(errs) {
			continue
		}
		r := records[i]
		out = append(out, Threat{
			IP:                  r.IP,
			Severity:            SeverityHigh,
			Time:                r.Time(),
			ReconstructionError: round(errs[i], 4),
			Details:             "Path: " + r.Path,
		})
	}
	return out
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
