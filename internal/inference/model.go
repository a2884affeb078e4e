// Package inference loads a trained classifier and feature scaler and maps
// a feature vector to a label/probability/confidence result.
//
// The training-time artifact format in use at build time is a gradient
// boosted tree ensemble; no pure-Go runtime for that wire format exists in
// this deployment's dependency set. Production exports instead ship a
// portable JSON document holding a linear/logistic scorer (coefficients,
// intercept, per-feature scaler mean/scale) produced by the same offline
// training job as an additional output artifact. This adapter loads that
// document; it does not interpret tree-ensemble files directly.
package inference

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/ldpj/backend/internal/errs"
)

// Result is the outcome of one prediction.
type Result struct {
	Label       int
	Probability float64
	Confidence  float64
}

// Unavailable is the synthesized result used when no model is loaded.
var Unavailable = Result{Label: -1, Probability: 0, Confidence: 0}

// deriveConfidence fills Confidence from Label and Probability per the
// documented relationship.
func deriveConfidence(label int, probability float64) float64 {
	switch label {
	case 1:
		return probability
	case 0:
		return 1 - probability
	default:
		return 0
	}
}

// artifact is the on-disk shape of the portable scorer document.
type artifact struct {
	Version      string    `json:"version"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	ScalerMean   []float64 `json:"scaler_mean"`
	ScalerScale  []float64 `json:"scaler_scale"`
}

// Model is an opaque handle over a loaded classifier plus feature scaler.
type Model struct {
	loaded  bool
	version string
	art     artifact
}

// New returns a Model in the "not loaded" state.
func New() *Model {
	return &Model{}
}

// Load reads and deserializes the scorer artifact from path. On failure the
// model is left in "not loaded" state and ErrModelLoad is returned.
func (m *Model) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		m.loaded = false
		return fmt.Errorf("reading model artifact %s: %w", path, errs.ErrModelLoad)
	}

	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		m.loaded = false
		return fmt.Errorf("decoding model artifact %s: %w", path, errs.ErrModelLoad)
	}
	if len(art.Coefficients) == 0 || len(art.Coefficients) != len(art.ScalerMean) ||
		len(art.Coefficients) != len(art.ScalerScale) {
		m.loaded = false
		return fmt.Errorf("model artifact %s: dimension mismatch: %w", path, errs.ErrModelLoad)
	}

	m.art = art
	m.version = art.Version
	m.loaded = true
	return nil
}

// Loaded reports whether a model is currently usable.
func (m *Model) Loaded() bool { return m.loaded }

// Version returns the loaded artifact's version string, empty if unloaded.
func (m *Model) Version() string { return m.version }

// Predict scales vector, obtains a probability via logistic scoring, and
// classifies label = 1 if probability >= threshold else 0. Default
// threshold is 0.3 when the caller passes <= 0.
func (m *Model) Predict(vector []float64, threshold float64) (Result, error) {
	if !m.loaded {
		return Result{}, fmt.Errorf("predict called with no model loaded: %w", errs.ErrModelPredict)
	}
	if threshold <= 0 {
		threshold = 0.3
	}
	if len(vector) != len(m.art.Coefficients) {
		return Result{}, fmt.Errorf("feature vector length %d does not match model dimension %d: %w",
			len(vector), len(m.art.Coefficients), errs.ErrModelPredict)
	}

	z := m.art.Intercept
	for i, x := range vector {
		scale := m.art.ScalerScale[i]
		if scale == 0 {
			scale = 1
		}
		scaled := (x - m.art.ScalerMean[i]) / scale
		z += scaled * m.art.Coefficients[i]
	}

	p := 1 / (1 + math.Exp(-z))
	label := 0
	if p >= threshold {
		label = 1
	}

	probability := round6(p)
	return Result{
		Label:       label,
		Probability: probability,
		Confidence:  round6(deriveConfidence(label, probability)),
	}, nil
}

func round6(v float64) float64 {
	const scale = 1e6
	return math.Round(v*scale) / scale
}
