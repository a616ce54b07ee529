package scorer

import (
	"math"

	"github.com/opensource-finance/sentinel/internal/domain"
)

// Predictor applies a loaded artifact to feature vectors: impute, scale,
// score, in that order, always with the trained parameters. It
// implements domain.Scorer and is read-only after construction, so it
// may be shared across goroutines.
type Predictor struct {
	features  []string
	threshold float64
	medians   []float64
	centers   []float64
	scales    []float64
	model     Model
	modelType string
	stats     TrainingStats
}

// Features lists the feature names the model was trained on, in input
// order.
func (p *Predictor) Features() []string { return p.features }

// Threshold returns the calibrated decision threshold shipped with the
// artifact.
func (p *Predictor) Threshold() float64 { return p.threshold }

// Source names the scoring detector for alert attribution.
func (p *Predictor) Source() string { return "ml_" + p.modelType }

// Stats returns the training statistics recorded in the artifact.
func (p *Predictor) Stats() TrainingStats { return p.stats }

// Impute replaces NaN entries with the trained medians, in place.
func (p *Predictor) Impute(vec []float64) []float64 {
	for i, v := range vec {
		if math.IsNaN(v) {
			vec[i] = p.medians[i]
		}
	}
	return vec
}

// Scale applies the trained robust scaling, in place.
func (p *Predictor) Scale(vec []float64) []float64 {
	for i, v := range vec {
		vec[i] = (v - p.centers[i]) / p.scales[i]
	}
	return vec
}

// Score runs the model over a preprocessed vector.
func (p *Predictor) Score(vec []float64) float64 {
	return p.model.Score(vec)
}

// Predict scores every feature row with s. Raw model scores are min-max
// normalized over the batch, which makes anomaly scores comparable only
// within one run. A negative threshold selects the artifact's own
// calibrated threshold. A row is anomalous when its normalized score
// strictly exceeds the threshold; a feature-name mismatch between rows
// and artifact aborts the whole batch.
func Predict(s domain.Scorer, rows []domain.FeatureRow, threshold float64) ([]domain.ScoredRow, error) {
	if threshold < 0 {
		threshold = s.Threshold()
	}

	names := s.Features()
	scores := make([]float64, len(rows))
	for i := range rows {
		vec, err := rows[i].Vector(names)
		if err != nil {
			return nil, err
		}
		scores[i] = s.Score(s.Scale(s.Impute(vec)))
	}
	normalizeBatch(scores)

	scored := make([]domain.ScoredRow, len(rows))
	for i := range rows {
		scored[i] = domain.ScoredRow{
			FeatureRow:   rows[i],
			AnomalyScore: scores[i],
			IsAnomaly:    scores[i] > threshold,
		}
	}
	return scored, nil
}

// normalizeBatch rescales scores to [0,1] in place. A constant batch
// has no usable spread and normalizes to all zeros.
func normalizeBatch(scores []float64) {
	if len(scores) == 0 {
		return
	}
	lo, hi := scores[0], scores[0]
	for _, v := range scores[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi > lo {
		span := hi - lo
		for i, v := range scores {
			scores[i] = (v - lo) / span
		}
		return
	}
	for i := range scores {
		scores[i] = 0
	}
}
