package domain

import "fmt"

// FeatureRow is one transaction joined with its profile and carrying the
// computed model features and windowed aggregates. Rows are derived
// fresh per pipeline run and are never persisted independently of their
// source transaction. Field order mirrors the stable output column
// order.
type FeatureRow struct {
	UserID             string    `json:"user_id"`
	AccountID          string    `json:"account_id"`
	TxnID              int64     `json:"txn_id"`
	EventTime          EventTime `json:"event_time"`
	EventType          string    `json:"event_type"`
	Amount             float64   `json:"amount"`
	Currency           string    `json:"currency"`
	Channel            string    `json:"channel"`
	DeclaredIncome     float64   `json:"declared_income"`
	AccountDeposit     float64   `json:"account_deposit"`
	ResidenceCountry   string    `json:"residence_country"`
	TransactionCountry string    `json:"transaction_country"`

	AmountIn1d    float64 `json:"amount_in_1d"`
	AmountOut1d   float64 `json:"amount_out_1d"`
	LoginCount1h  int     `json:"login_count_1h"`
	FailedLogin1h int     `json:"failed_login_1h"`
	NewIP1d       int     `json:"new_ip_1d"`
	GeoChange1d   int     `json:"geo_change_1d"`

	DeviceID  string `json:"device_id"`
	IPAddress string `json:"ip_address"`

	// Model features
	AmountAbs           float64 `json:"amount_abs"`
	ModZScoreAbs        float64 `json:"mod_z_score_abs"`
	EWMAResid           float64 `json:"ewma_resid"`
	GapLog              float64 `json:"gap_log"`
	AmountToIncomeRatio float64 `json:"amount_to_income_ratio"`
	IsCrossBorder       int     `json:"is_cross_border"`
}

// ModelFeatures lists the model input columns in their canonical order.
// Scorer artifacts name their inputs against this vocabulary.
func ModelFeatures() []string {
	return []string{
		"amount_abs",
		"mod_z_score_abs",
		"ewma_resid",
		"gap_log",
		"amount_to_income_ratio",
		"is_cross_border",
	}
}

// FeatureValue returns the named model feature from the row.
func (r *FeatureRow) FeatureValue(name string) (float64, bool) {
	switch name {
	case "amount_abs":
		return r.AmountAbs, true
	case "mod_z_score_abs":
		return r.ModZScoreAbs, true
	case "ewma_resid":
		return r.EWMAResid, true
	case "gap_log":
		return r.GapLog, true
	case "amount_to_income_ratio":
		return r.AmountToIncomeRatio, true
	case "is_cross_border":
		return float64(r.IsCrossBorder), true
	}
	return 0, false
}

// Vector assembles the row's values for the given feature names, in
// order. An unknown name is a feature mismatch between the feature
// table and the scorer artifact and is returned as an error.
func (r *FeatureRow) Vector(names []string) ([]float64, error) {
	vec := make([]float64, len(names))
	for i, name := range names {
		v, ok := r.FeatureValue(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrFeatureMismatch, name)
		}
		vec[i] = v
	}
	return vec, nil
}

// ScoredRow is a FeatureRow with its normalized anomaly score and
// decision flag attached.
type ScoredRow struct {
	FeatureRow
	AnomalyScore float64 `json:"anomaly_score"`
	IsAnomaly    bool    `json:"is_anomaly"`
}
