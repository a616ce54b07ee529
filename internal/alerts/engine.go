// Package alerts turns scored transactions into typed alert records via
// an ordered, first-match-wins rule list.
package alerts

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/ext"

	"github.com/opensource-finance/sentinel/internal/domain"
)

// Engine holds the compiled rule list. Rules are compiled once at
// construction and evaluated in list order against each anomalous row;
// the first match decides the fraud type. The engine is read-only after
// construction.
type Engine struct {
	rules []compiledRule
}

type compiledRule struct {
	rule    domain.AlertRule
	program cel.Program // nil for a default rule
}

// NewEngine compiles the ordered rule list. Every non-default rule must
// be a boolean CEL expression over the scored-row variables.
func NewEngine(rules []domain.AlertRule) (*Engine, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("alert rule list is empty")
	}

	env, err := cel.NewEnv(
		ext.Strings(),
		cel.Variable("user_id", cel.StringType),
		cel.Variable("account_id", cel.StringType),
		cel.Variable("event_type", cel.StringType),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("amount_abs", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("channel", cel.StringType),
		cel.Variable("declared_income", cel.DoubleType),
		cel.Variable("transaction_country", cel.StringType),
		cel.Variable("residence_country", cel.StringType),
		cel.Variable("amount_in_1d", cel.DoubleType),
		cel.Variable("amount_out_1d", cel.DoubleType),
		cel.Variable("login_count_1h", cel.IntType),
		cel.Variable("failed_login_1h", cel.IntType),
		cel.Variable("new_ip_1d", cel.IntType),
		cel.Variable("geo_change_1d", cel.IntType),
		cel.Variable("is_cross_border", cel.IntType),
		cel.Variable("mod_z_score_abs", cel.DoubleType),
		cel.Variable("ewma_resid", cel.DoubleType),
		cel.Variable("gap_log", cel.DoubleType),
		cel.Variable("amount_to_income_ratio", cel.DoubleType),
		cel.Variable("anomaly_score", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("create rule environment: %w", err)
	}

	e := &Engine{rules: make([]compiledRule, 0, len(rules))}
	for i := range rules {
		rule := rules[i]
		if rule.Default() {
			e.rules = append(e.rules, compiledRule{rule: rule})
			continue
		}

		ast, issues := env.Compile(rule.When)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile rule %q: %w", rule.Name, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("rule %q: expression must return bool, got %s", rule.Name, ast.OutputType())
		}
		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program rule %q: %w", rule.Name, err)
		}
		e.rules = append(e.rules, compiledRule{rule: rule, program: program})
	}
	return e, nil
}

// Infer returns the first rule in list order that matches the row. Rows
// that match nothing fall back to the behavioral default, so inference
// never comes back empty.
func (e *Engine) Infer(row *domain.ScoredRow) (domain.AlertRule, error) {
	activation := activationFor(row)
	for i := range e.rules {
		cr := &e.rules[i]
		if cr.program == nil {
			return cr.rule, nil
		}
		out, _, err := cr.program.Eval(activation)
		if err != nil {
			return domain.AlertRule{}, fmt.Errorf("evaluate rule %q for txn %d: %w", cr.rule.Name, row.TxnID, err)
		}
		if matched, ok := out.(types.Bool); ok && bool(matched) {
			return cr.rule, nil
		}
	}
	return behavioralDefault(), nil
}

// RuleCount returns the number of compiled rules.
func (e *Engine) RuleCount() int { return len(e.rules) }

func activationFor(row *domain.ScoredRow) map[string]any {
	return map[string]any{
		"user_id":                row.UserID,
		"account_id":             row.AccountID,
		"event_type":             row.EventType,
		"amount":                 row.Amount,
		"amount_abs":             row.AmountAbs,
		"currency":               row.Currency,
		"channel":                row.Channel,
		"declared_income":        row.DeclaredIncome,
		"transaction_country":    row.TransactionCountry,
		"residence_country":      row.ResidenceCountry,
		"amount_in_1d":           row.AmountIn1d,
		"amount_out_1d":          row.AmountOut1d,
		"login_count_1h":         row.LoginCount1h,
		"failed_login_1h":        row.FailedLogin1h,
		"new_ip_1d":              row.NewIP1d,
		"geo_change_1d":          row.GeoChange1d,
		"is_cross_border":        row.IsCrossBorder,
		"mod_z_score_abs":        row.ModZScoreAbs,
		"ewma_resid":             row.EWMAResid,
		"gap_log":                row.GapLog,
		"amount_to_income_ratio": row.AmountToIncomeRatio,
		"anomaly_score":          row.AnomalyScore,
	}
}
