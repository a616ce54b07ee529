package domain

import (
	"fmt"
	"strings"
	"time"
)

// Transaction is a single account event in the input stream. The
// pre-aggregated input form additionally carries the six windowed
// aggregate columns; the raw form leaves them zero and the feature
// engineer computes them from the auth/network event logs.
type Transaction struct {
	// Core identifiers
	TxnID     int64     `json:"txn_id"`
	UserID    string    `json:"user_id"`
	AccountID string    `json:"account_id"`
	EventTime EventTime `json:"event_time"`

	// Event type: "deposit", "withdrawal", "buy" or "sell"
	EventType string `json:"event_type"`

	// Financial details. Amount is treated as a magnitude throughout.
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	Channel        string  `json:"channel"`
	AccountDeposit float64 `json:"account_deposit"`

	// Origin context
	TransactionCountry string `json:"transaction_country"`
	DeviceID           string `json:"device_id"`
	IPAddress          string `json:"ip_address"`

	// Windowed aggregates, present only in pre-aggregated input.
	AmountIn1d    float64 `json:"amount_in_1d"`
	AmountOut1d   float64 `json:"amount_out_1d"`
	LoginCount1h  int     `json:"login_count_1h"`
	FailedLogin1h int     `json:"failed_login_1h"`
	NewIP1d       int     `json:"new_ip_1d"`
	GeoChange1d   int     `json:"geo_change_1d"`
}

// Transaction event types.
const (
	EventDeposit    = "deposit"
	EventWithdrawal = "withdrawal"
	EventBuy        = "buy"
	EventSell       = "sell"
)

// Profile holds a user's onboarding data. Profiles are created once per
// user and are immutable for the pipeline's purposes.
type Profile struct {
	UserID           string   `json:"user_id"`
	DeclaredIncome   float64  `json:"declared_income"`
	AccountDeposit   float64  `json:"account_deposit"`
	ResidenceCountry string   `json:"residence_country"`
	Accounts         []string `json:"accounts"`
}

// AuthEvent is a single login attempt, linked back to the transaction
// whose windows it contributes to via RelatedTxnID.
type AuthEvent struct {
	EventID      string    `json:"event_id"`
	EventTime    EventTime `json:"event_time"`
	EventType    string    `json:"event_type"` // "login_success" or "login_failed"
	UserID       string    `json:"user_id"`
	DeviceID     string    `json:"device_id"`
	IPAddress    string    `json:"ip_address"`
	GeoCountry   string    `json:"geo_country"`
	SessionID    string    `json:"session_id,omitempty"`
	RelatedTxnID *int64    `json:"related_txn_id,omitempty"`
}

// Auth event types.
const (
	AuthLoginSuccess = "login_success"
	AuthLoginFailed  = "login_failed"
)

// NetworkEvent is a device/IP session observation. IsNewIP and
// IsGeoChange are 0/1 flags resolved by the upstream session tracker.
type NetworkEvent struct {
	EventID      string    `json:"event_id"`
	EventTime    EventTime `json:"event_time"`
	UserID       string    `json:"user_id"`
	AccountID    string    `json:"account_id"`
	DeviceID     string    `json:"device_id"`
	IPAddress    string    `json:"ip_address"`
	GeoCountry   string    `json:"geo_country"`
	Channel      string    `json:"channel,omitempty"`
	IsNewIP      int       `json:"is_new_ip"`
	IsGeoChange  int       `json:"is_geo_change"`
	RelatedTxnID *int64    `json:"related_txn_id,omitempty"`
}

// EventTime is a time.Time that accepts RFC 3339 timestamps with or
// without a timezone suffix; naive timestamps are taken as UTC. It
// always marshals in UTC.
type EventTime struct {
	time.Time
}

// NewEventTime wraps t as an EventTime.
func NewEventTime(t time.Time) EventTime {
	return EventTime{Time: t}
}

var eventTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON parses the quoted timestamp, trying timezone-qualified
// layouts first and falling back to naive-as-UTC forms.
func (t *EventTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range eventTimeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized event_time %q", s)
}

// MarshalJSON renders the timestamp as RFC 3339 in UTC.
func (t EventTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.UTC().Format(time.RFC3339Nano) + `"`), nil
}
