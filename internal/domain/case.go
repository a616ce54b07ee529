package domain

import (
	"encoding/json"
	"time"
)

// Case is the unit of investigation: an aggregation of one or more
// alerts believed to relate to the same underlying fraud event. Every
// alert belongs to exactly one case.
type Case struct {
	CaseID        string        `json:"case_id"`
	CreatedBy     string        `json:"created_by"`
	CreatedAt     time.Time     `json:"created_at"`
	Status        string        `json:"status"`
	Priority      RiskLevel     `json:"priority"`
	CaseScore     int           `json:"case_score"`
	RiskLevel     RiskLevel     `json:"risk_level"`
	FraudType     string        `json:"fraud_type"`
	UserID        UserIDs       `json:"user_id"`
	AccountID     string        `json:"account_id"`
	AlertIDs      []string      `json:"alert_ids"`
	AlertCount    int           `json:"alert_count"`
	Summary       CaseSummary   `json:"summary"`
	Investigation Investigation `json:"investigation"`

	// Ring cases only
	RingMembers  []string `json:"ring_members,omitempty"`
	SharedDevice string   `json:"shared_device,omitempty"`
	SharedIP     string   `json:"shared_ip,omitempty"`

	// Multi-account cases only
	AccountsInvolved []string `json:"accounts_involved,omitempty"`
}

// Case status values.
const (
	CaseStatusOpen = "OPEN"

	// CaseCreatedBy identifies the pipeline as the case author.
	CaseCreatedBy = "ml_pipeline"
)

// UserIDs holds the distinct users a case covers. It marshals as a bare
// string when the case concerns a single user and as an array when it
// spans a fraud ring.
type UserIDs []string

// MarshalJSON implements json.Marshaler.
func (u UserIDs) MarshalJSON() ([]byte, error) {
	if len(u) == 1 {
		return json.Marshal(u[0])
	}
	return json.Marshal([]string(u))
}

// UnmarshalJSON implements json.Unmarshaler, accepting either form.
func (u *UserIDs) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*u = UserIDs{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*u = UserIDs(many)
	return nil
}

// CaseSummary aggregates the member alerts' counts and amounts. Values
// are derived from the alerts' evidence, not recomputed from raw
// transactions.
type CaseSummary struct {
	TotalAlerts     int       `json:"total_alerts"`
	TotalAmount     float64   `json:"total_amount"`
	UniqueUsers     int       `json:"unique_users"`
	UniqueAccounts  int       `json:"unique_accounts"`
	MaxAnomalyScore float64   `json:"max_anomaly_score"`
	AvgAnomalyScore float64   `json:"avg_anomaly_score"`
	TimeRange       TimeRange `json:"time_range"`
}

// TimeRange spans the earliest and latest alert event times in a case.
type TimeRange struct {
	First EventTime `json:"first"`
	Last  EventTime `json:"last"`
}

// Investigation tracks the downstream review workflow. The pipeline
// only ever emits the initial pending state.
type Investigation struct {
	Status          string   `json:"status"`
	AssignedTo      *string  `json:"assigned_to"`
	AISummary       *string  `json:"ai_summary"`
	Recommendations []string `json:"recommendations"`
}

// NewInvestigation returns the initial pending investigation state.
func NewInvestigation() Investigation {
	return Investigation{
		Status:          "pending",
		Recommendations: []string{},
	}
}

// RiskLevel is a case's investigation priority tier.
type RiskLevel string

// Case risk levels.
const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskForScore buckets a case score into a risk level. Boundaries are
// inclusive, so a score of exactly 80 is CRITICAL.
func RiskForScore(score int) RiskLevel {
	switch {
	case score >= 80:
		return RiskCritical
	case score >= 60:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}
