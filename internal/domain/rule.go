package domain

// AlertRule is one entry in the ordered fraud-type inference list. The
// list is evaluated first-match-wins: order is part of the contract, so
// rules carry no independent enable flags or weights.
type AlertRule struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// When is a CEL expression over the scored row. An empty
	// expression always matches and marks the default rule.
	When string `json:"when"`

	// Labels stamped on the alert when the rule fires.
	FraudType    string `json:"fraud_type"`
	DetectorType string `json:"detector_type"`
	Signal       string `json:"signal"`
}

// Default marks a rule that matches unconditionally.
func (r *AlertRule) Default() bool {
	return r.When == ""
}
