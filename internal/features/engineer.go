// Package features turns raw event collections into the per-transaction
// feature table consumed by the anomaly scorer.
package features

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/opensource-finance/sentinel/internal/dataset"
	"github.com/opensource-finance/sentinel/internal/domain"
)

// Engineer computes the feature table for one run. Per-user series are
// independent of each other, so users are fanned out across workers and
// the results land in a pre-sorted shared slice with no locking.
type Engineer struct {
	mode    string
	workers int
}

// NewEngineer returns an Engineer for the given input mode. workers <= 0
// means one worker per CPU.
func NewEngineer(mode string, workers int) *Engineer {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engineer{mode: mode, workers: workers}
}

// Table is the engineer's output: one row per transaction in stable
// (user_id, event_time, txn_id) order, plus the data-quality notes
// recovered along the way.
type Table struct {
	Rows  []domain.FeatureRow
	Notes []domain.QualityNote
}

// Run loads the mode's input collections from src and computes every
// feature column. The returned table is complete: a row is never
// emitted with a partially computed feature set.
func (e *Engineer) Run(ctx context.Context, src *dataset.Source) (*Table, error) {
	txns, err := src.TransactionsForMode(e.mode)
	if err != nil {
		return nil, err
	}
	profiles, err := src.Profiles()
	if err != nil {
		return nil, err
	}

	var auth []domain.AuthEvent
	var network []domain.NetworkEvent
	if e.mode == domain.ModeRawEvents {
		if auth, err = src.AuthEvents(); err != nil {
			return nil, err
		}
		if network, err = src.NetworkEvents(); err != nil {
			return nil, err
		}
	}

	return e.Compute(ctx, txns, profiles, auth, network)
}

// Compute builds the feature table from already-loaded collections.
// The auth and network slices are consulted only in raw-events mode.
func (e *Engineer) Compute(ctx context.Context, txns []domain.Transaction, profiles []domain.Profile, auth []domain.AuthEvent, network []domain.NetworkEvent) (*Table, error) {
	table := e.join(txns, profiles)

	sort.Slice(table.Rows, func(i, j int) bool {
		a, b := &table.Rows[i], &table.Rows[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if !a.EventTime.Equal(b.EventTime.Time) {
			return a.EventTime.Before(b.EventTime.Time)
		}
		return a.TxnID < b.TxnID
	})

	if e.mode == domain.ModeRawEvents {
		applyEventAggregates(table.Rows, auth, network)
	}
	e.clampLoginCounts(table)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runs := userRuns(table.Rows)
	g := computeGlobals(table.Rows, runs)
	e.computeSeries(table.Rows, runs, g)

	slog.Debug("feature table computed",
		"mode", e.mode,
		"rows", len(table.Rows),
		"users", len(runs),
		"quality_notes", len(table.Notes),
	)

	return table, nil
}

// join attaches profile columns to each transaction and fills the
// features that need no per-user history. A missing profile is a
// data-quality recovery, not an error: income defaults through the
// ratio's denominator guard and the row counts as cross-border.
func (e *Engineer) join(txns []domain.Transaction, profiles []domain.Profile) *Table {
	profileByUser := make(map[string]domain.Profile, len(profiles))
	for _, p := range profiles {
		profileByUser[p.UserID] = p
	}

	table := &Table{Rows: make([]domain.FeatureRow, len(txns))}
	noted := make(map[string]bool)

	for i, txn := range txns {
		row := &table.Rows[i]
		row.UserID = txn.UserID
		row.AccountID = txn.AccountID
		row.TxnID = txn.TxnID
		row.EventTime = txn.EventTime
		row.EventType = txn.EventType
		row.Amount = txn.Amount
		row.Currency = txn.Currency
		row.Channel = txn.Channel
		row.AccountDeposit = txn.AccountDeposit
		row.TransactionCountry = txn.TransactionCountry
		row.DeviceID = txn.DeviceID
		row.IPAddress = txn.IPAddress

		// Pre-aggregated inputs carry these; raw mode recomputes them.
		row.AmountIn1d = txn.AmountIn1d
		row.AmountOut1d = txn.AmountOut1d
		row.LoginCount1h = txn.LoginCount1h
		row.FailedLogin1h = txn.FailedLogin1h
		row.NewIP1d = txn.NewIP1d
		row.GeoChange1d = txn.GeoChange1d

		row.AmountAbs = math.Abs(txn.Amount)

		if p, ok := profileByUser[txn.UserID]; ok {
			row.DeclaredIncome = p.DeclaredIncome
			row.ResidenceCountry = p.ResidenceCountry
			if !strings.EqualFold(txn.TransactionCountry, p.ResidenceCountry) {
				row.IsCrossBorder = 1
			}
		} else {
			row.IsCrossBorder = 1
			if !noted[txn.UserID] {
				noted[txn.UserID] = true
				table.Notes = append(table.Notes, domain.QualityNote{
					Kind:   domain.NoteMissingProfile,
					UserID: txn.UserID,
					Detail: "no profile for user; declared income treated as zero",
				})
			}
		}
		row.AmountToIncomeRatio = row.AmountAbs / math.Max(row.DeclaredIncome, 1)
	}
	return table
}

// clampLoginCounts repairs rows whose failed-login count exceeds the
// total login count. Inconsistent source aggregates are clamped and
// surfaced rather than failing the run.
func (e *Engineer) clampLoginCounts(table *Table) {
	for i := range table.Rows {
		row := &table.Rows[i]
		if row.FailedLogin1h > row.LoginCount1h {
			table.Notes = append(table.Notes, domain.QualityNote{
				Kind:   domain.NoteFailedLoginClamp,
				TxnID:  row.TxnID,
				UserID: row.UserID,
				Detail: fmt.Sprintf("failed_login_1h %d exceeds login_count_1h %d, clamped", row.FailedLogin1h, row.LoginCount1h),
			})
			row.FailedLogin1h = row.LoginCount1h
		}
	}
}

// span marks one user's contiguous half-open row range after sorting.
type span struct {
	start, end int
}

func userRuns(rows []domain.FeatureRow) []span {
	var runs []span
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i == len(rows) || rows[i].UserID != rows[start].UserID {
			runs = append(runs, span{start: start, end: i})
			start = i
		}
	}
	return runs
}

// globals holds the dataset-wide statistics that back-fill per-user
// features when a user has too little history of their own.
type globals struct {
	amountMedian float64
	amountDenom  float64
	medianGap    float64
}

func computeGlobals(rows []domain.FeatureRow, runs []span) globals {
	mags := make([]float64, len(rows))
	for i := range rows {
		mags[i] = rows[i].AmountAbs
	}
	med := medianInPlace(mags)
	for i, v := range mags {
		mags[i] = math.Abs(v - med)
	}
	denom := math.Max(medianInPlace(mags)*madScale, 1)

	var gaps []float64
	for _, r := range runs {
		for i := r.start + 1; i < r.end; i++ {
			gaps = append(gaps, rows[i].EventTime.Sub(rows[i-1].EventTime.Time).Seconds())
		}
	}

	return globals{
		amountMedian: med,
		amountDenom:  denom,
		medianGap:    medianInPlace(gaps),
	}
}

// computeSeries fans the per-user series features out across workers.
// Each worker owns a disjoint slice of the shared row array, so the
// merge is free and the output order never changes.
func (e *Engineer) computeSeries(rows []domain.FeatureRow, runs []span, g globals) {
	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	for _, r := range runs {
		wg.Add(1)
		sem <- struct{}{}
		go func(user []domain.FeatureRow) {
			defer wg.Done()
			defer func() { <-sem }()
			e.computeUserSeries(user, g)
		}(rows[r.start:r.end])
	}
	wg.Wait()
}

// computeUserSeries fills the rolling features for one user's
// time-ordered rows: the 24h amount windows (raw mode), the rolling
// robust deviation, the EWMA residual and the log time gap. Only rows
// at or before the current one ever contribute.
func (e *Engineer) computeUserSeries(rows []domain.FeatureRow, g globals) {
	if e.mode == domain.ModeRawEvents {
		amountWindows(rows)
	}

	mags := make([]float64, len(rows))
	for i := range rows {
		mags[i] = rows[i].AmountAbs
	}

	var rw robustWindow
	var ewma float64
	for i := range rows {
		x := mags[i]

		lo := i - rollingWindow + 1
		if lo < 0 {
			lo = 0
		}
		if i+1-lo >= minRollingSamples {
			med, denom := rw.stats(mags[lo : i+1])
			rows[i].ModZScoreAbs = math.Abs(x-med) / denom
		} else {
			rows[i].ModZScoreAbs = math.Abs(x-g.amountMedian) / g.amountDenom
		}

		if i == 0 {
			ewma = x
		} else {
			ewma = ewmaAlpha*x + (1-ewmaAlpha)*ewma
		}
		rows[i].EWMAResid = math.Abs(x - ewma)

		gap := g.medianGap
		if i > 0 {
			gap = rows[i].EventTime.Sub(rows[i-1].EventTime.Time).Seconds()
		}
		rows[i].GapLog = math.Log1p(math.Max(gap, minGapSeconds))
	}
}
