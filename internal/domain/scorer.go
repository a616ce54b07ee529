package domain

// Scorer is the capability surface of a trained anomaly model artifact:
// impute, scale, score, plus the metadata the pipeline needs to drive
// it. Implementations are read-only after load and safe for concurrent
// use. No particular model family is assumed.
type Scorer interface {
	// Features returns the ordered input column names the artifact
	// was trained on.
	Features() []string

	// Threshold returns the calibrated decision threshold embedded
	// in the artifact.
	Threshold() float64

	// Source identifies the artifact for alert provenance, e.g.
	// "ml_isolation_forest".
	Source() string

	// Impute fills missing (NaN) values using the artifact's
	// training-time parameters, in place, and returns the slice.
	Impute(vec []float64) []float64

	// Scale applies the artifact's training-time scaling, in place,
	// and returns the slice.
	Scale(vec []float64) []float64

	// Score returns the raw anomaly score for a preprocessed vector;
	// higher means more anomalous.
	Score(vec []float64) float64
}
