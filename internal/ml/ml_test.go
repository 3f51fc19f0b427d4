package ml

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viniciushammett/go-weblog-analyzer/internal/features"
)

// zeroModel reconstructs every row as all zeros, so the error of a row is
// the mean of its squared values.
func zeroModel() map[string]any {
	kernel := make([][]float64, features.Width)
	for i := range kernel {
		kernel[i] = make([]float64, features.Width)
	}
	return map[string]any{
		"input_dim": features.Width,
		"layers": []map[string]any{
			{"activation": "linear", "kernel": kernel, "bias": make([]float64, features.Width)},
		},
	}
}

func identityScaler() map[string]any {
	mn := make([]float64, features.Width)
	mx := make([]float64, features.Width)
	for i := range mx {
		mx[i] = 1
	}
	return map[string]any{"data_min": mn, "data_max": mx}
}

func writeJSON(t *testing.T, dir, name string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), b, 0o600))
}

func writeRaw(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestLoadResourcesAllAbsent(t *testing.T) {
	res := LoadResources(t.TempDir())
	for _, st := range res.Status.All() {
		assert.Equal(t, Absent, st.Outcome, st.Name)
	}
	s := NewScorer(res)
	assert.Equal(t, Degraded, s.State())
	assert.Equal(t, FallbackThreshold, s.Threshold())

	errs, flagged, err := s.Score(features.Matrix{make([]float64, features.Width)})
	assert.ErrorIs(t, err, ErrDegraded)
	assert.Nil(t, errs)
	assert.Empty(t, flagged)
}

func TestLoadResourcesAllPresent(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, ModelFile, zeroModel())
	writeJSON(t, dir, ScalerFile, identityScaler())
	writeJSON(t, dir, VocabularyFile, map[string]any{
		"ip":     []string{"10.0.0.1", "127.0.0.1"},
		"method": []string{"GET"},
		"extra":  []int{1, 2},
	})
	writeRaw(t, dir, ThresholdFile, "0.5")

	res := LoadResources(dir)
	for _, st := range res.Status.All() {
		assert.Equal(t, Loaded, st.Outcome, st.Name)
		assert.NoError(t, st.Err)
	}
	s := NewScorer(res)
	assert.Equal(t, Ready, s.State())
	assert.Equal(t, 0.5, s.Threshold())
	assert.Equal(t, 1, s.Vocabulary()[features.ColIP].Lookup("127.0.0.1"))
	assert.NotContains(t, s.Vocabulary(), "extra")
}

func TestStrictThreshold(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, ModelFile, zeroModel())
	writeJSON(t, dir, ScalerFile, identityScaler())
	writeJSON(t, dir, ThresholdFile, map[string]float64{"threshold": 0.5})
	s := NewScorer(LoadResources(dir))
	require.Equal(t, Ready, s.State())

	raw := features.Matrix{
		{2, 0, 0, 0, 0, 0, 0, 0}, // 4/8 == threshold
		{2, 0, 0, 0, 0, 0, 0, 1}, // 5/8
		{0, 0, 0, 0, 0, 0, 0, 0},
	}
	errs, flagged, err := s.Score(raw)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.625, 0}, errs)
	assert.Equal(t, []int{1}, flagged)
}

func TestFallbackThresholdWhenAbsentOrCorrupt(t *testing.T) {
	for name, body := range map[string]string{
		"absent":   "",
		"corrupt":  "{not json",
		"negative": "-1",
		"wrongkey": `{"limit": 0.3}`,
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeJSON(t, dir, ModelFile, zeroModel())
			writeJSON(t, dir, ScalerFile, identityScaler())
			if body != "" {
				writeRaw(t, dir, ThresholdFile, body)
			}
			s := NewScorer(LoadResources(dir))
			assert.Equal(t, Ready, s.State())
			assert.Equal(t, FallbackThreshold, s.Threshold())

			errs, flagged, err := s.Score(features.Matrix{{1, 0, 0, 0, 0, 0, 0, 0}, {0, 0, 0, 0, 0, 0, 0, 0}})
			require.NoError(t, err)
			assert.Len(t, errs, 2)
			assert.Equal(t, []int{0}, flagged)
		})
	}
}

func TestScalerAbsentDegrades(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, ModelFile, zeroModel())
	s := NewScorer(LoadResources(dir))
	assert.Equal(t, Degraded, s.State())
}

func TestCorruptArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, ModelFile, `{"input_dim": 8, "layers": [{"kernel": [[1]], "bias": [0]}]}`)
	writeRaw(t, dir, ScalerFile, `{"data_min": [0, 0], "data_max": [1, 1]}`)
	writeRaw(t, dir, VocabularyFile, `{"ip": [1, 2]}`)
	res := LoadResources(dir)
	assert.Equal(t, Corrupt, res.Status.Model.Outcome)
	assert.Error(t, res.Status.Model.Err)
	assert.NotEmpty(t, res.Status.Model.Error)
	assert.Nil(t, res.Model)
	assert.Equal(t, Corrupt, res.Status.Scaler.Outcome)
	assert.Equal(t, Corrupt, res.Status.Vocabulary.Outcome)
	assert.Equal(t, Absent, res.Status.Threshold.Outcome)
	assert.Equal(t, Degraded, NewScorer(res).State())
}

func TestZeroValueScorerIsUnloaded(t *testing.T) {
	var s Scorer
	assert.Equal(t, Unloaded, s.State())
	assert.Equal(t, "unloaded", s.State().String())
	_, err := s.Errors(features.Matrix{})
	assert.ErrorIs(t, err, ErrDegraded)
}

func TestMinMaxScalerExtrapolates(t *testing.T) {
	s, err := NewMinMaxScaler([]float64{0, 10, 5}, []float64{10, 20, 5}, 0, 1)
	require.NoError(t, err)
	out, err := s.Transform(features.Matrix{{5, 30, 7}, {-10, 10, 5}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 2, 2}, out[0], 1e-12)
	assert.InDeltaSlice(t, []float64{-1, 0, 0}, out[1], 1e-12)

	_, err = s.Transform(features.Matrix{{1, 2}})
	assert.Error(t, err)
	_, err = NewMinMaxScaler([]float64{0}, []float64{1, 2}, 0, 1)
	assert.Error(t, err)
}

func TestScalerFittedAttributes(t *testing.T) {
	dir := t.TempDir()
	mn := make([]float64, features.Width)
	sc := make([]float64, features.Width)
	for i := range sc {
		sc[i] = 0.5
		mn[i] = -1
	}
	writeJSON(t, dir, ScalerFile, map[string]any{"min_": mn, "scale_": sc})
	res := LoadResources(dir)
	require.Equal(t, Loaded, res.Status.Scaler.Outcome)
	out, err := res.Scaler.Transform(features.Matrix{{2, 4, 0, 0, 0, 0, 0, 0}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, -1, -1, -1, -1, -1, -1}, out[0])
}

func TestAutoencoderForward(t *testing.T) {
	// 2 -> 1 -> 2 with known weights
	ae, err := NewAutoencoder(2, []Dense{
		{Kernel: [][]float64{{1}, {1}}, Bias: []float64{-1}, Activation: ReLU},
		{Kernel: [][]float64{{0, 2}}, Bias: []float64{0, 0}, Activation: Sigmoid},
	})
	require.NoError(t, err)
	out, err := ae.Reconstruct(features.Matrix{{1, 2}, {0, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out[0][0], 1e-12)
	assert.InDelta(t, 1/(1+math.Exp(-4)), out[0][1], 1e-12)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, out[1], 1e-12)

	_, err = ae.Reconstruct(features.Matrix{{1}})
	assert.Error(t, err)
}

func TestAutoencoderValidation(t *testing.T) {
	_, err := NewAutoencoder(2, nil)
	assert.Error(t, err)
	_, err = NewAutoencoder(2, []Dense{{Kernel: [][]float64{{1}, {1}}, Bias: []float64{0}, Activation: "softmax"}})
	assert.Error(t, err)
	_, err = NewAutoencoder(2, []Dense{{Kernel: [][]float64{{1}, {1}}, Bias: []float64{0}, Activation: Linear}})
	assert.Error(t, err, "output width must equal input")
}

func TestMeanSquaredErrors(t *testing.T) {
	errs, err := MeanSquaredErrors(features.Matrix{{1, 1}, {0, 2}}, features.Matrix{{1, 1}, {0, 0}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2}, errs)
	_, err = MeanSquaredErrors(features.Matrix{{1}}, features.Matrix{})
	assert.Error(t, err)
}

type countingModel struct {
	mu     sync.Mutex
	active int
	max    int
}

func (c *countingModel) Reconstruct(m features.Matrix) (features.Matrix, error) {
	c.mu.Lock()
	c.active++
	if c.active > c.max {
		c.max = c.active
	}
	c.mu.Unlock()
	defer func() { c.mu.Lock(); c.active--; c.mu.Unlock() }()
	time.Sleep(time.Millisecond)
	return m, nil
}

func TestSerializedAllowsOneEvaluationAtATime(t *testing.T) {
	cm := &countingModel{}
	r := Serialized(cm)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Reconstruct(features.Matrix{{1}})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, cm.max)
}

func TestScorerSerializesForeignModels(t *testing.T) {
	sc, err := NewMinMaxScaler([]float64{0}, []float64{1}, 0, 1)
	require.NoError(t, err)
	cm := &countingModel{}
	s := NewScorer(Resources{Model: cm, Scaler: sc})
	require.Equal(t, Ready, s.State())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.Score(features.Matrix{{0.5}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, cm.max)
}

func TestScorerKeepsAutoencoderUnwrapped(t *testing.T) {
	ae, err := NewAutoencoder(1, []Dense{{Kernel: [][]float64{{1}}, Bias: []float64{0}, Activation: Linear}})
	require.NoError(t, err)
	sc, err := NewMinMaxScaler([]float64{0}, []float64{1}, 0, 1)
	require.NoError(t, err)
	s := NewScorer(Resources{Model: ae, Scaler: sc})
	assert.Same(t, ae, s.model)
}
