package ml

import (
	"fmt"
	"math"
	"sync"

	"github.com/viniciushammett/go-weblog-analyzer/internal/features"
)

// Reconstructor maps a normalized matrix to a same-shape reconstruction.
type Reconstructor interface {
	Reconstruct(features.Matrix) (features.Matrix, error)
}

type Activation string

const (
	Linear  Activation = "linear"
	ReLU    Activation = "relu"
	Sigmoid Activation = "sigmoid"
	Tanh    Activation = "tanh"
)

func (a Activation) apply(x float64) float64 {
	switch a {
	case ReLU:
		return math.Max(0, x)
	case Sigmoid:
		return 1 / (1 + math.Exp(-x))
	case Tanh:
		return math.Tanh(x)
	default:
		return x
	}
}

func (a Activation) valid() bool {
	switch a {
	case Linear, ReLU, Sigmoid, Tanh:
		return true
	}
	return false
}

// Dense is a fully connected layer. Kernel is inputs x units.
type Dense struct {
	Kernel     [][]float64
	Bias       []float64
	Activation Activation
}

func (d Dense) units() int { return len(d.Bias) }

func (d Dense) forward(in []float64) []float64 {
	out := make([]float64, len(d.Bias))
	copy(out, d.Bias)
	for i, x := range in {
		if x == 0 {
			continue
		}
		row := d.Kernel[i]
		for j := range out {
			out[j] += x * row[j]
		}
	}
	for j := range out {
		out[j] = d.Activation.apply(out[j])
	}
	return out
}

// Autoencoder is a feed-forward dense network whose output width equals its
// input width. It holds no mutable state, so Reconstruct is safe for
// concurrent use.
type Autoencoder struct {
	inputDim int
	layers   []Dense
}

func NewAutoencoder(inputDim int, layers []Dense) (*Autoencoder, error) {
	if inputDim <= 0 {
		return nil, fmt.Errorf("input_dim must be positive, got %d", inputDim)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("model has no layers")
	}
	prev := inputDim
	for i, l := range layers {
		if !l.Activation.valid() {
			return nil, fmt.Errorf("layer %d: unsupported activation %q", i, l.Activation)
		}
		if len(l.Kernel) != prev {
			return nil, fmt.Errorf("layer %d: kernel has %d rows, want %d", i, len(l.Kernel), prev)
		}
		for r, row := range l.Kernel {
			if len(row) != l.units() {
				return nil, fmt.Errorf("layer %d: kernel row %d has %d units, bias has %d", i, r, len(row), l.units())
			}
		}
		prev = l.units()
	}
	if prev != inputDim {
		return nil, fmt.Errorf("output width %d does not match input_dim %d", prev, inputDim)
	}
	return &Autoencoder{inputDim: inputDim, layers: layers}, nil
}

func (a *Autoencoder) InputDim() int { return a.inputDim }

func (a *Autoencoder) Reconstruct(m features.Matrix) (features.Matrix, error) {
	out := make(features.Matrix, len(m))
	for i, row := range m {
		if len(row) != a.inputDim {
			return nil, fmt.Errorf("row %d has %d columns, model expects %d", i, len(row), a.inputDim)
		}
		h := row
		for _, l := range a.layers {
			h = l.forward(h)
		}
		out[i] = h
	}
	return out, nil
}

// concurrentReconstructor marks models that NewScorer may call concurrently.
type concurrentReconstructor interface {
	Reconstructor
	concurrent()
}

func (*Autoencoder) concurrent() {}

func (*serialized) concurrent() {}

// Serialized guards a Reconstructor that is not safe for concurrent calls.
// Only evaluation is locked; the rest of a scan runs unserialized.
func Serialized(r Reconstructor) Reconstructor { return &serialized{r: r} }

type serialized struct {
	mu sync.Mutex
	r  Reconstructor
}

func (s *serialized) Reconstruct(m features.Matrix) (features.Matrix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Reconstruct(m)
}

// MeanSquaredErrors returns the per-row mean of squared differences.
func MeanSquaredErrors(in, rec features.Matrix) ([]float64, error) {
	if len(in) != len(rec) {
		return nil, fmt.Errorf("reconstruction has %d rows, input %d", len(rec), len(in))
	}
	out := make([]float64, len(in))
	for i := range in {
		if len(in[i]) != len(rec[i]) || len(in[i]) == 0 {
			return nil, fmt.Errorf("row %d: width mismatch %d vs %d", i, len(in[i]), len(rec[i]))
		}
		var sum float64
		for j := range in[i] {
			d := in[i][j] - rec[i][j]
			sum += d * d
		}
		out[i] = sum / float64(len(in[i]))
	}
	return out, nil
}
