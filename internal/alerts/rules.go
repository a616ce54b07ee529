package alerts

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/opensource-finance/sentinel/internal/domain"
)

// DefaultRules returns the built-in fraud-type inference list. Order
// matters: the list runs first-match-wins, most specific first, and the
// trailing default catches every anomaly nothing else claimed.
func DefaultRules() []domain.AlertRule {
	return []domain.AlertRule{
		{
			Name:         "fraud_ring_marker",
			Description:  "coordinated ring accounts carry a RING marker in their user id",
			When:         `user_id.upperAscii().contains("RING")`,
			FraudType:    domain.FraudRing,
			DetectorType: domain.DetectorNetwork,
			Signal:       "COORDINATED_ACTIVITY",
		},
		{
			Name:         "multi_account_marker",
			Description:  "layering accounts carry a MULTI marker in their user id",
			When:         `user_id.upperAscii().contains("MULTI")`,
			FraudType:    domain.FraudMultiAccount,
			DetectorType: domain.DetectorTransaction,
			Signal:       "MULTI_ACCOUNT_LAYERING",
		},
		{
			Name:         "account_takeover",
			Description:  "repeated failed logins, or a geo change from a new ip",
			When:         `failed_login_1h >= 3 || (geo_change_1d == 1 && new_ip_1d == 1)`,
			FraudType:    domain.FraudAccountTakeover,
			DetectorType: domain.DetectorATO,
			Signal:       "SUSPICIOUS_LOGIN_PATTERN",
		},
		{
			Name:         "income_anomaly",
			Description:  "single transaction above half the declared income",
			When:         `declared_income > 0.0 && amount / declared_income > 0.5`,
			FraudType:    domain.FraudIncomeAnomaly,
			DetectorType: domain.DetectorBehavior,
			Signal:       "INCOME_EXCEEDS_DECLARATION",
		},
		{
			Name:         "geo_anomaly",
			Description:  "cross-border transaction paired with a geo change",
			When:         `is_cross_border == 1 && geo_change_1d == 1`,
			FraudType:    domain.FraudGeoAnomaly,
			DetectorType: domain.DetectorBehavior,
			Signal:       "IMPOSSIBLE_TRAVEL",
		},
		{
			Name:         "money_mule_flow",
			Description:  "heavy in and out flow within the same day",
			When:         `amount_in_1d > 5000.0 && amount_out_1d > 5000.0`,
			FraudType:    domain.FraudMoneyMule,
			DetectorType: domain.DetectorTransaction,
			Signal:       "RAPID_FUND_MOVEMENT",
		},
		{
			Name:         "structuring_band",
			Description:  "amount just under the reporting threshold",
			When:         `amount >= 8000.0 && amount <= 9999.0`,
			FraudType:    domain.FraudMoneyMule,
			DetectorType: domain.DetectorTransaction,
			Signal:       "STRUCTURING_PATTERN",
		},
		behavioralDefault(),
	}
}

func behavioralDefault() domain.AlertRule {
	return domain.AlertRule{
		Name:         "behavioral_default",
		Description:  "model anomaly with no stronger signal",
		FraudType:    domain.FraudBehavioral,
		DetectorType: domain.DetectorBehavior,
		Signal:       "ML_ANOMALY_DETECTED",
	}
}

// LoadRules reads an ordered rule list from a JSON file. An empty path
// selects the built-in defaults.
func LoadRules(path string) ([]domain.AlertRule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load alert rules: %w", err)
	}
	var rules []domain.AlertRule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("parse alert rules %s: %w", path, err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("alert rules %s: empty rule list", path)
	}
	return rules, nil
}
