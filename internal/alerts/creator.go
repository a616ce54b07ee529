package alerts

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/opensource-finance/sentinel/internal/domain"
)

// Creator builds one alert per anomalous scored row. Rows that were not
// flagged pass through without a record; nothing downstream ever sees
// them.
type Creator struct {
	engine *Engine
	source string
}

// NewCreator wires the rule engine and the detector source label
// stamped on every alert.
func NewCreator(engine *Engine, source string) *Creator {
	return &Creator{engine: engine, source: source}
}

// Create walks the scored rows in order and emits an alert for each
// anomaly. Row order is preserved, so deterministic inputs give a
// deterministic alert list.
func (c *Creator) Create(ctx context.Context, rows []domain.ScoredRow) ([]domain.Alert, error) {
	out := make([]domain.Alert, 0, len(rows)/8+1)
	for i := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := &rows[i]
		if !row.IsAnomaly {
			continue
		}
		rule, err := c.engine.Infer(row)
		if err != nil {
			return nil, err
		}
		out = append(out, c.build(row, rule))
	}
	slog.Debug("alerts created", "anomalies", len(out), "rows", len(rows))
	return out, nil
}

func (c *Creator) build(row *domain.ScoredRow, rule domain.AlertRule) domain.Alert {
	return domain.Alert{
		AlertID:           domain.AlertID(row.TxnID),
		EventTime:         row.EventTime,
		CreatedAt:         time.Now().UTC(),
		DetectorType:      rule.DetectorType,
		DetectorSource:    c.source,
		Signal:            rule.Signal,
		Severity:          domain.SeverityForScore(row.AnomalyScore),
		Confidence:        roundTo(row.AnomalyScore, 3),
		FraudTypeInferred: rule.FraudType,
		UserID:            row.UserID,
		AccountID:         row.AccountID,
		TxnID:             row.TxnID,
		Evidence:          buildEvidence(row),
	}
}

func buildEvidence(row *domain.ScoredRow) domain.Evidence {
	return domain.Evidence{
		AnomalyScore:        roundTo(row.AnomalyScore, 4),
		Amount:              roundTo(row.Amount, 2),
		Currency:            orDefault(strings.ToUpper(row.Currency), "USD"),
		Channel:             orDefault(row.Channel, "unknown"),
		TransactionCountry:  strings.ToUpper(row.TransactionCountry),
		ResidenceCountry:    strings.ToUpper(row.ResidenceCountry),
		IsCrossBorder:       row.IsCrossBorder == 1,
		DeviceID:            orDefault(row.DeviceID, "unknown"),
		IPAddress:           orDefault(row.IPAddress, "unknown"),
		FailedLogin1h:       row.FailedLogin1h,
		NewIP1d:             row.NewIP1d,
		GeoChange1d:         row.GeoChange1d,
		AmountToIncomeRatio: roundTo(row.AmountToIncomeRatio, 3),
		ModZScore:           roundTo(row.ModZScoreAbs, 3),
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// roundTo rounds half away from zero at the given number of decimal
// places, normalizing negative zero.
func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	r := math.Round(v*scale) / scale
	if r == 0 {
		return 0
	}
	return r
}
