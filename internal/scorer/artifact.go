// Package scorer loads trained anomaly-model artifacts and applies them
// to feature vectors. The artifact is opaque to the rest of the
// pipeline: callers see only the domain.Scorer capability surface.
package scorer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Artifact is the on-disk JSON form of a trained scorer: the model
// itself plus the preprocessing parameters fitted alongside it. The
// preprocessing parameters are applied verbatim at prediction time,
// never refitted, so scoring stays reproducible.
type Artifact struct {
	Features      []string      `json:"features"`
	Threshold     float64       `json:"threshold"`
	Imputer       ImputerParams `json:"imputer"`
	Scaler        ScalerParams  `json:"scaler"`
	Model         ModelSpec     `json:"model"`
	TrainingStats TrainingStats `json:"training_stats"`
}

// ImputerParams holds the median substitution values for missing
// feature entries, one per feature.
type ImputerParams struct {
	Medians []float64 `json:"medians"`
}

// ScalerParams holds the robust-scaler centers and scales, one per
// feature.
type ScalerParams struct {
	Centers []float64 `json:"centers"`
	Scales  []float64 `json:"scales"`
}

// TrainingStats describes the batch the artifact was fitted on.
type TrainingStats struct {
	NSamples       int     `json:"n_samples"`
	NFeatures      int     `json:"n_features"`
	Contamination  float64 `json:"contamination"`
	Threshold      float64 `json:"threshold"`
	AnomaliesFound int     `json:"anomalies_found"`
}

// ErrInvalidArtifact marks an artifact whose parameters are internally
// inconsistent.
var ErrInvalidArtifact = errors.New("invalid scorer artifact")

// ErrArtifactMissing marks an artifact path with no file behind it.
var ErrArtifactMissing = errors.New("scorer artifact not found")

// Load reads, validates and compiles a scorer artifact. A missing or
// malformed artifact is fatal: an unscored transaction must never pass
// as not anomalous by default.
func Load(path string) (*Predictor, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %w", ErrArtifactMissing, path, err)
	}
	if err != nil {
		return nil, fmt.Errorf("load scorer artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode scorer artifact %s: %w", path, err)
	}
	return New(a)
}

// New validates an artifact and compiles its model.
func New(a Artifact) (*Predictor, error) {
	n := len(a.Features)
	if n == 0 {
		return nil, fmt.Errorf("%w: no features", ErrInvalidArtifact)
	}
	if len(a.Imputer.Medians) != n {
		return nil, fmt.Errorf("%w: %d imputer medians for %d features", ErrInvalidArtifact, len(a.Imputer.Medians), n)
	}
	if len(a.Scaler.Centers) != n || len(a.Scaler.Scales) != n {
		return nil, fmt.Errorf("%w: scaler parameters do not cover %d features", ErrInvalidArtifact, n)
	}
	for i, s := range a.Scaler.Scales {
		if s == 0 {
			return nil, fmt.Errorf("%w: zero scale for feature %q", ErrInvalidArtifact, a.Features[i])
		}
	}

	model, err := buildModel(a.Model, n)
	if err != nil {
		return nil, err
	}

	return &Predictor{
		features:  a.Features,
		threshold: a.Threshold,
		medians:   a.Imputer.Medians,
		centers:   a.Scaler.Centers,
		scales:    a.Scaler.Scales,
		model:     model,
		modelType: a.Model.Type,
		stats:     a.TrainingStats,
	}, nil
}
