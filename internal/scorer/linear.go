package scorer

import "fmt"

// linearModel scores by dot product. It exists for calibration fixtures
// and as the registry's simplest member; the production artifact ships
// an isolation forest.
type linearModel struct {
	weights []float64
	bias    float64
}

func newLinearModel(spec ModelSpec, features int) (Model, error) {
	if len(spec.Weights) != features {
		return nil, fmt.Errorf("%w: %d weights for %d features", ErrInvalidArtifact, len(spec.Weights), features)
	}
	return &linearModel{weights: spec.Weights, bias: spec.Bias}, nil
}

func (m *linearModel) Score(vec []float64) float64 {
	score := m.bias
	for i, w := range m.weights {
		score += w * vec[i]
	}
	return score
}
