package domain

import (
	"fmt"
	"time"
)

// Alert is the record emitted for a single anomalous transaction.
// Exactly one alert is created per anomalous transaction; alerts are
// immutable after creation.
type Alert struct {
	AlertID           string    `json:"alert_id"`
	EventTime         EventTime `json:"event_time"`
	CreatedAt         time.Time `json:"created_at"`
	DetectorType      string    `json:"detector_type"`
	DetectorSource    string    `json:"detector_source"`
	Signal            string    `json:"signal"`
	Severity          Severity  `json:"severity"`
	Confidence        float64   `json:"confidence"`
	FraudTypeInferred string    `json:"fraud_type_inferred"`
	UserID            string    `json:"user_id"`
	AccountID         string    `json:"account_id"`
	TxnID             int64     `json:"txn_id"`
	Evidence          Evidence  `json:"evidence"`
}

// AlertID formats the canonical alert identifier for a transaction.
func AlertID(txnID int64) string {
	return fmt.Sprintf("ALT-%06d", txnID)
}

// Evidence is the flat record of facts justifying an alert. It must be
// sufficient on its own, without re-querying raw events.
type Evidence struct {
	AnomalyScore        float64 `json:"anomaly_score"`
	Amount              float64 `json:"amount"`
	Currency            string  `json:"currency"`
	Channel             string  `json:"channel"`
	TransactionCountry  string  `json:"transaction_country"`
	ResidenceCountry    string  `json:"residence_country"`
	IsCrossBorder       bool    `json:"is_cross_border"`
	DeviceID            string  `json:"device_id"`
	IPAddress           string  `json:"ip_address"`
	FailedLogin1h       int     `json:"failed_login_1h"`
	NewIP1d             int     `json:"new_ip_1d"`
	GeoChange1d         int     `json:"geo_change_1d"`
	AmountToIncomeRatio float64 `json:"amount_to_income_ratio"`
	ModZScore           float64 `json:"mod_z_score"`
}

// Severity is an alert's urgency tier.
type Severity string

// Alert severity tiers.
const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// SeverityForScore buckets a normalized anomaly score into a severity
// tier. Boundaries are strict greater-than, so a score of exactly 0.7
// is HIGH, not CRITICAL.
func SeverityForScore(score float64) Severity {
	switch {
	case score > 0.7:
		return SeverityCritical
	case score > 0.5:
		return SeverityHigh
	case score > 0.3:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Fraud type labels assigned by the alert rule list.
const (
	FraudRing            = "fraud_ring"
	FraudMultiAccount    = "multi_account_fraud"
	FraudAccountTakeover = "account_takeover"
	FraudIncomeAnomaly   = "income_anomaly"
	FraudGeoAnomaly      = "geo_anomaly"
	FraudMoneyMule       = "money_mule"
	FraudBehavioral      = "behavioral_anomaly"
)

// Detector type codes carried on alerts.
const (
	DetectorNetwork     = "NETWORK"
	DetectorTransaction = "TRANSACTION"
	DetectorATO         = "ATO"
	DetectorBehavior    = "BEHAVIOR"
)
