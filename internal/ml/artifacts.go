package ml

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/valyala/fastjson"

	"github.com/viniciushammett/go-weblog-analyzer/internal/features"
)

// Artifact file names inside the model directory.
const (
	ModelFile      = "autoencoder_model.json"
	ScalerFile     = "scaler.json"
	VocabularyFile = "label_encoders.json"
	ThresholdFile  = "reconstruction_threshold.json"
)

type Outcome string

const (
	Loaded  Outcome = "loaded"
	Absent  Outcome = "absent"
	Corrupt Outcome = "corrupt"
)

type ArtifactStatus struct {
	Name    string  `json:"name"`
	Path    string  `json:"path"`
	Outcome Outcome `json:"outcome"`
	Err     error   `json:"-"`
	Error   string  `json:"error,omitempty"`
}

// ResourceStatus aggregates the outcome of each artifact load.
type ResourceStatus struct {
	Model      ArtifactStatus `json:"model"`
	Scaler     ArtifactStatus `json:"scaler"`
	Vocabulary ArtifactStatus `json:"vocabulary"`
	Threshold  ArtifactStatus `json:"threshold"`
}

func (s ResourceStatus) All() []ArtifactStatus {
	return []ArtifactStatus{s.Model, s.Scaler, s.Vocabulary, s.Threshold}
}

// Resources is the read-only handle shared by every scan.
type Resources struct {
	Model     Reconstructor
	Scaler    *Scaler
	Vocab     features.VocabularySet
	Threshold float64
	Status    ResourceStatus
}

// LoadResources reads every artifact under dir. It never fails: each
// artifact independently ends up loaded, absent or corrupt.
func LoadResources(dir string) Resources {
	var res Resources

	var model *Autoencoder
	res.Status.Model = load(dir, ModelFile, func(v *fastjson.Value) (err error) {
		model, err = decodeModel(v)
		return err
	})
	if model != nil {
		res.Model = model
	}
	res.Status.Scaler = load(dir, ScalerFile, func(v *fastjson.Value) (err error) {
		res.Scaler, err = decodeScaler(v)
		return err
	})
	res.Status.Vocabulary = load(dir, VocabularyFile, func(v *fastjson.Value) (err error) {
		res.Vocab, err = decodeVocabulary(v)
		return err
	})
	res.Status.Threshold = load(dir, ThresholdFile, func(v *fastjson.Value) (err error) {
		res.Threshold, err = decodeThreshold(v)
		return err
	})
	return res
}

func load(dir, name string, decode func(*fastjson.Value) error) ArtifactStatus {
	st := ArtifactStatus{Name: name, Path: filepath.Join(dir, name)}
	b, err := os.ReadFile(st.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		st.Outcome = Absent
		return st
	case err != nil:
		return st.corrupt(fmt.Errorf("read %s: %w", name, err))
	}
	var p fastjson.Parser
	v, err := p.ParseBytes(b)
	if err != nil {
		return st.corrupt(fmt.Errorf("parse %s: %w", name, err))
	}
	if err := decode(v); err != nil {
		return st.corrupt(fmt.Errorf("decode %s: %w", name, err))
	}
	st.Outcome = Loaded
	return st
}

func (s ArtifactStatus) corrupt(err error) ArtifactStatus {
	s.Outcome = Corrupt
	s.Err = err
	s.Error = err.Error()
	return s
}

// {"input_dim": 8, "layers": [{"activation": "relu", "kernel": [[...]], "bias": [...]}]}
func decodeModel(v *fastjson.Value) (*Autoencoder, error) {
	dim := v.GetInt("input_dim")
	raw := v.GetArray("layers")
	if raw == nil {
		return nil, errors.New("missing layers")
	}
	layers := make([]Dense, 0, len(raw))
	for i, lv := range raw {
		kernel, err := floatRows(lv.Get("kernel"))
		if err != nil {
			return nil, fmt.Errorf("layer %d kernel: %w", i, err)
		}
		bias, err := floats(lv.Get("bias"))
		if err != nil {
			return nil, fmt.Errorf("layer %d bias: %w", i, err)
		}
		act := Activation(lv.GetStringBytes("activation"))
		if act == "" {
			act = Linear
		}
		layers = append(layers, Dense{Kernel: kernel, Bias: bias, Activation: act})
	}
	if dim == 0 && len(layers) > 0 {
		dim = len(layers[0].Kernel)
	}
	m, err := NewAutoencoder(dim, layers)
	if err != nil {
		return nil, err
	}
	if m.InputDim() != features.Width {
		return nil, fmt.Errorf("model input_dim %d, feature vector has %d", m.InputDim(), features.Width)
	}
	return m, nil
}

// Either {"data_min": [...], "data_max": [...], "feature_range": [0, 1]}
// or the fitted attributes {"min_": [...], "scale_": [...]}.
func decodeScaler(v *fastjson.Value) (*Scaler, error) {
	var s *Scaler
	if v.Exists("scale_") {
		mn, err := floats(v.Get("min_"))
		if err != nil {
			return nil, fmt.Errorf("min_: %w", err)
		}
		sc, err := floats(v.Get("scale_"))
		if err != nil {
			return nil, fmt.Errorf("scale_: %w", err)
		}
		if len(mn) != len(sc) {
			return nil, fmt.Errorf("min_ has %d columns, scale_ %d", len(mn), len(sc))
		}
		s = &Scaler{Min: mn, Scale: sc}
	} else {
		dmin, err := floats(v.Get("data_min"))
		if err != nil {
			return nil, fmt.Errorf("data_min: %w", err)
		}
		dmax, err := floats(v.Get("data_max"))
		if err != nil {
			return nil, fmt.Errorf("data_max: %w", err)
		}
		lo, hi := 0.0, 1.0
		if v.Exists("feature_range") {
			fr, err := floats(v.Get("feature_range"))
			if err != nil || len(fr) != 2 {
				return nil, errors.New("feature_range must be [min, max]")
			}
			lo, hi = fr[0], fr[1]
		}
		if s, err = NewMinMaxScaler(dmin, dmax, lo, hi); err != nil {
			return nil, err
		}
	}
	if s.Width() != features.Width {
		return nil, fmt.Errorf("scaler has %d columns, feature vector has %d", s.Width(), features.Width)
	}
	return s, nil
}

// {"ip": ["10.0.0.1", ...], "method": [...], ...}; unknown columns are ignored.
func decodeVocabulary(v *fastjson.Value) (features.VocabularySet, error) {
	obj, err := v.Object()
	if err != nil {
		return nil, err
	}
	known := map[string]bool{}
	for _, c := range features.CategoricalColumns {
		known[c] = true
	}
	set := features.VocabularySet{}
	var verr error
	obj.Visit(func(key []byte, cv *fastjson.Value) {
		col := string(key)
		if verr != nil || !known[col] {
			return
		}
		arr, err := cv.Array()
		if err != nil {
			verr = fmt.Errorf("column %s: %w", col, err)
			return
		}
		vals := make([]string, 0, len(arr))
		for i, e := range arr {
			s, err := e.StringBytes()
			if err != nil {
				verr = fmt.Errorf("column %s[%d]: %w", col, i, err)
				return
			}
			vals = append(vals, string(s))
		}
		set[col] = features.NewVocabulary(vals)
	})
	if verr != nil {
		return nil, verr
	}
	return set, nil
}

// A bare number or {"threshold": n}.
func decodeThreshold(v *fastjson.Value) (float64, error) {
	if v.Type() == fastjson.TypeObject {
		v = v.Get("threshold")
		if v == nil {
			return 0, errors.New("missing threshold key")
		}
	}
	f, err := v.Float64()
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, fmt.Errorf("threshold %v out of range", f)
	}
	return f, nil
}

func floats(v *fastjson.Value) ([]float64, error) {
	if v == nil {
		return nil, errors.New("missing")
	}
	arr, err := v.Array()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(arr))
	for i, e := range arr {
		if out[i], err = e.Float64(); err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
	}
	return out, nil
}

func floatRows(v *fastjson.Value) ([][]float64, error) {
	if v == nil {
		return nil, errors.New("missing")
	}
	arr, err := v.Array()
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(arr))
	for i, e := range arr {
		if out[i], err = floats(e); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return out, nil
}
