package domain

import "errors"

// ErrFeatureMismatch is returned when the feature table and the scorer
// artifact disagree about the model's input columns. Scoring must not
// proceed: an unscored transaction can never default to "not anomalous".
var ErrFeatureMismatch = errors.New("feature set mismatch")
