package scorer

import (
	"errors"
	"fmt"
)

// Model scores a preprocessed feature vector. Higher means more
// anomalous. Implementations are read-only after construction and safe
// for concurrent use.
type Model interface {
	Score(vec []float64) float64
}

// ModelSpec is the polymorphic model section of an artifact, selected
// by Type. Only the fields for the named type are read.
type ModelSpec struct {
	Type string `json:"type"`

	// Isolation forest
	Trees      []ForestTree `json:"trees,omitempty"`
	MaxSamples int          `json:"max_samples,omitempty"`
	Offset     float64      `json:"offset,omitempty"`

	// Linear
	Weights []float64 `json:"weights,omitempty"`
	Bias    float64   `json:"bias,omitempty"`
}

// Model types understood by buildModel.
const (
	ModelIsolationForest = "isolation_forest"
	ModelLinear          = "linear"
)

// ErrUnknownModel marks an artifact whose model type has no registered
// builder.
var ErrUnknownModel = errors.New("unknown model type")

type modelBuilder func(spec ModelSpec, features int) (Model, error)

var modelBuilders = map[string]modelBuilder{
	ModelIsolationForest: newIsolationForest,
	ModelLinear:          newLinearModel,
}

func buildModel(spec ModelSpec, features int) (Model, error) {
	build, ok := modelBuilders[spec.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, spec.Type)
	}
	return build(spec, features)
}
