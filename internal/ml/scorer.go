package ml

import (
	"errors"
	"fmt"

	"github.com/viniciushammett/go-weblog-analyzer/internal/features"
)

// FallbackThreshold applies when the threshold artifact is absent or corrupt.
const FallbackThreshold = 0.05

var ErrDegraded = errors.New("scorer degraded: model or scaler unavailable")

type State int

const (
	Unloaded State = iota
	Ready
	Degraded
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	default:
		return "unloaded"
	}
}

// Scorer computes reconstruction errors and applies the strict threshold.
// The zero value is Unloaded. A Scorer built by NewScorer never changes
// state afterwards and may be shared by concurrent scans.
type Scorer struct {
	state     State
	model     Reconstructor
	scaler    *Scaler
	vocab     features.VocabularySet
	threshold float64
	status    ResourceStatus
}

// NewScorer performs the single Unloaded -> Ready/Degraded transition. Both
// the model and the scaler are needed to reproduce the training layout;
// missing vocabularies or threshold only degrade precision. Models other than
// the built-in Autoencoder are evaluated one call at a time.
func NewScorer(res Resources) *Scorer {
	model := res.Model
	if _, safe := model.(concurrentReconstructor); model != nil && !safe {
		model = Serialized(model)
	}
	s := &Scorer{
		model:     model,
		scaler:    res.Scaler,
		vocab:     res.Vocab,
		threshold: FallbackThreshold,
		status:    res.Status,
		state:     Degraded,
	}
	if res.Status.Threshold.Outcome == Loaded {
		s.threshold = res.Threshold
	}
	if res.Model != nil && res.Scaler != nil {
		s.state = Ready
	}
	return s
}

func (s *Scorer) State() State { return s.state }
func (s *Scorer) Threshold() float64 { return s.threshold }
func (s *Scorer) Status() ResourceStatus { return s.status }
func (s *Scorer) Vocabulary() features.VocabularySet { return s.vocab }

// Errors returns the per-row reconstruction error of an already normalized
// matrix.
func (s *Scorer) Errors(normalized features.Matrix) ([]float64, error) {
	if s.state != Ready {
		return nil, ErrDegraded
	}
	rec, err := s.model.Reconstruct(normalized)
	if err != nil {
		return nil, fmt.Errorf("reconstruct: %w", err)
	}
	return MeanSquaredErrors(normalized, rec)
}

// Flag returns the indices whose error is strictly greater than the
// threshold. An error equal to the threshold is not anomalous.
func (s *Scorer) Flag(errs []float64) []int {
	out := []int{}
	for i, e := range errs {
		if e > s.threshold {
			out = append(out, i)
		}
	}
	return out
}

// Score normalizes a raw feature matrix, reconstructs it and flags rows.
func (s *Scorer) Score(raw features.Matrix) (errs []float64, flagged []int, err error) {
	if s.state != Ready {
		return nil, []int{}, ErrDegraded
	}
	norm, err := s.scaler.Transform(raw)
	if err != nil {
		return nil, []int{}, fmt.Errorf("scale: %w", err)
	}
	errs, err = s.Errors(norm)
	if err != nil {
		return nil, []int{}, err
	}
	return errs, s.Flag(errs), nil
}
