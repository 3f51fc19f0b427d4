package ml

import (
	"fmt"

	"github.com/viniciushammett/go-weblog-analyzer/internal/features"
)

// Scaler is a fitted min-max transform: x' = x*Scale + Min, per column.
// Values outside the fitted range are extrapolated, not clipped.
type Scaler struct {
	Min   []float64
	Scale []float64
}

// NewMinMaxScaler derives Min/Scale from the observed training range and the
// target feature range. Zero-width columns get a scale of 1.
func NewMinMaxScaler(dataMin, dataMax []float64, lo, hi float64) (*Scaler, error) {
	if len(dataMin) != len(dataMax) {
		return nil, fmt.Errorf("data_min has %d columns, data_max %d", len(dataMin), len(dataMax))
	}
	if hi <= lo {
		return nil, fmt.Errorf("invalid feature range [%g, %g]", lo, hi)
	}
	s := &Scaler{Min: make([]float64, len(dataMin)), Scale: make([]float64, len(dataMin))}
	for j := range dataMin {
		rng := dataMax[j] - dataMin[j]
		if rng == 0 {
			rng = 1
		}
		s.Scale[j] = (hi - lo) / rng
		s.Min[j] = lo - dataMin[j]*s.Scale[j]
	}
	return s, nil
}

func (s *Scaler) Width() int { return len(s.Scale) }

func (s *Scaler) Transform(m features.Matrix) (features.Matrix, error) {
	out := make(features.Matrix, len(m))
	for i, row := range m {
		if len(row) != len(s.Scale) {
			return nil, fmt.Errorf("row %d has %d columns, scaler expects %d", i, len(row), len(s.Scale))
		}
		r := make([]float64, len(row))
		for j, x := range row {
			r[j] = x*s.Scale[j] + s.Min[j]
		}
		out[i] = r
	}
	return out, nil
}
