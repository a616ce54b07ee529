package features

import (
	"math"
	"time"

	"github.com/opensource-finance/sentinel/internal/domain"
)

// aggregateWindow is the lookback horizon for the 1-day amount sums.
const aggregateWindow = 24 * time.Hour

// amountWindows fills AmountIn1d and AmountOut1d for one user's
// time-ordered rows. The window for a row at time t is [t-24h, t):
// earlier rows inside the horizon count, rows sharing the exact
// timestamp do not. Two pointers keep the scan linear in the number of
// rows regardless of window density.
func amountWindows(rows []domain.FeatureRow) {
	var inSum, outSum float64
	lo, hi := 0, 0
	for i := range rows {
		t := rows[i].EventTime.Time

		for hi < len(rows) && rows[hi].EventTime.Before(t) {
			switch rows[hi].EventType {
			case domain.EventDeposit, domain.EventBuy:
				inSum += rows[hi].AmountAbs
			case domain.EventWithdrawal, domain.EventSell:
				outSum += rows[hi].AmountAbs
			}
			hi++
		}

		cutoff := t.Add(-aggregateWindow)
		for lo < hi && rows[lo].EventTime.Before(cutoff) {
			switch rows[lo].EventType {
			case domain.EventDeposit, domain.EventBuy:
				inSum -= rows[lo].AmountAbs
			case domain.EventWithdrawal, domain.EventSell:
				outSum -= rows[lo].AmountAbs
			}
			lo++
		}

		rows[i].AmountIn1d = round2(inSum)
		rows[i].AmountOut1d = round2(outSum)
	}
}

// applyEventAggregates fills the login and network columns from the raw
// event logs. Events attach to a transaction through related_txn_id;
// unlinked events contribute nothing. When several network events
// reference the same transaction the last one wins.
func applyEventAggregates(rows []domain.FeatureRow, auth []domain.AuthEvent, network []domain.NetworkEvent) {
	type authTotals struct{ total, failed int }
	logins := make(map[int64]authTotals, len(auth))
	for _, ev := range auth {
		if ev.RelatedTxnID == nil {
			continue
		}
		t := logins[*ev.RelatedTxnID]
		t.total++
		if ev.EventType == domain.AuthLoginFailed {
			t.failed++
		}
		logins[*ev.RelatedTxnID] = t
	}

	type netFlags struct{ newIP, geoChange int }
	flags := make(map[int64]netFlags, len(network))
	for _, ev := range network {
		if ev.RelatedTxnID == nil {
			continue
		}
		flags[*ev.RelatedTxnID] = netFlags{newIP: ev.IsNewIP, geoChange: ev.IsGeoChange}
	}

	for i := range rows {
		t := logins[rows[i].TxnID]
		rows[i].LoginCount1h = t.total
		rows[i].FailedLogin1h = t.failed

		f := flags[rows[i].TxnID]
		rows[i].NewIP1d = f.newIP
		rows[i].GeoChange1d = f.geoChange
	}
}

// round2 rounds to two decimals, normalizing negative zero away.
func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0
	}
	return r
}
