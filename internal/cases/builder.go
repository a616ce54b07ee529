// Package cases groups alerts into investigation cases. Grouping runs
// in two passes: alerts sharing a device across multiple users form
// fraud-ring cases, and whatever remains is grouped per user. Every
// alert lands in exactly one case.
package cases

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/opensource-finance/sentinel/internal/domain"
)

// deviceRingMinUsers is the number of distinct users a shared device
// must touch before its alerts form a ring case.
const deviceRingMinUsers = 2

// Builder assembles cases from an ordered alert list. Output order
// follows first appearance in the input, so deterministic alerts give
// deterministic cases.
type Builder struct {
	scoring domain.CaseScoringConfig
}

// NewBuilder returns a Builder using the given scoring constants.
func NewBuilder(scoring domain.CaseScoringConfig) *Builder {
	return &Builder{scoring: scoring}
}

// Build partitions the alerts into cases.
func (b *Builder) Build(ctx context.Context, alerts []domain.Alert) ([]domain.Case, error) {
	out := make([]domain.Case, 0)
	if len(alerts) == 0 {
		return out, nil
	}

	consumed := make(map[string]bool, len(alerts))

	// Pass 1: devices shared across users.
	var deviceOrder []string
	byDevice := make(map[string][]int)
	for i := range alerts {
		dev := alerts[i].Evidence.DeviceID
		if dev == "" || dev == "unknown" {
			continue
		}
		if _, ok := byDevice[dev]; !ok {
			deviceOrder = append(deviceOrder, dev)
		}
		byDevice[dev] = append(byDevice[dev], i)
	}
	for _, dev := range deviceOrder {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idxs := byDevice[dev]
		members := distinctUsers(alerts, idxs)
		if len(members) < deviceRingMinUsers {
			continue
		}
		group := collect(alerts, idxs)
		c := b.newCase(group, domain.FraudRing, "RING-"+lastN(dev, 8))
		c.UserID = domain.UserIDs(members)
		c.RingMembers = members
		c.SharedDevice = dev
		c.SharedIP = group[0].Evidence.IPAddress
		out = append(out, c)
		for _, i := range idxs {
			consumed[alerts[i].AlertID] = true
		}
	}

	// Pass 2: remaining alerts grouped per user.
	var userOrder []string
	byUser := make(map[string][]int)
	for i := range alerts {
		if consumed[alerts[i].AlertID] {
			continue
		}
		uid := alerts[i].UserID
		if _, ok := byUser[uid]; !ok {
			userOrder = append(userOrder, uid)
		}
		byUser[uid] = append(byUser[uid], i)
	}
	for _, uid := range userOrder {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		group := collect(alerts, byUser[uid])
		c := b.newCase(group, majorityFraudType(group), uid)
		c.UserID = domain.UserIDs{uid}
		if accounts := distinctAccounts(group); len(accounts) > 1 {
			c.FraudType = domain.FraudMultiAccount
			c.AccountsInvolved = accounts
		}
		out = append(out, c)
	}

	slog.Debug("cases built", "cases", len(out), "alerts", len(alerts))
	return out, nil
}

func (b *Builder) newCase(group []domain.Alert, fraudType, suffix string) domain.Case {
	now := time.Now().UTC()
	score := caseScore(b.scoring, group)
	risk := domain.RiskForScore(score)
	ids := make([]string, len(group))
	for i := range group {
		ids[i] = group[i].AlertID
	}
	return domain.Case{
		CaseID:        caseID(now, suffix),
		CreatedBy:     domain.CaseCreatedBy,
		CreatedAt:     now,
		Status:        domain.CaseStatusOpen,
		Priority:      risk,
		CaseScore:     score,
		RiskLevel:     risk,
		FraudType:     fraudType,
		AccountID:     group[0].AccountID,
		AlertIDs:      ids,
		AlertCount:    len(group),
		Summary:       summarize(group),
		Investigation: domain.NewInvestigation(),
	}
}

// caseID stamps the case with the build date and an uppercased suffix
// derived from the grouping key, truncated to keep ids scannable.
func caseID(now time.Time, suffix string) string {
	if len(suffix) > 12 {
		suffix = suffix[:12]
	}
	return "CASE-" + now.Format("20060102") + "-" + strings.ToUpper(suffix)
}

func summarize(group []domain.Alert) domain.CaseSummary {
	var amount, sum, max float64
	users := make(map[string]struct{}, len(group))
	accounts := make(map[string]struct{}, len(group))
	first, last := group[0].EventTime, group[0].EventTime
	for i := range group {
		a := &group[i]
		amount += a.Evidence.Amount
		s := a.Evidence.AnomalyScore
		sum += s
		if s > max {
			max = s
		}
		users[a.UserID] = struct{}{}
		accounts[a.AccountID] = struct{}{}
		if a.EventTime.Before(first.Time) {
			first = a.EventTime
		}
		if a.EventTime.After(last.Time) {
			last = a.EventTime
		}
	}
	return domain.CaseSummary{
		TotalAlerts:     len(group),
		TotalAmount:     roundTo(amount, 2),
		UniqueUsers:     len(users),
		UniqueAccounts:  len(accounts),
		MaxAnomalyScore: roundTo(max, 3),
		AvgAnomalyScore: roundTo(sum/float64(len(group)), 3),
		TimeRange:       domain.TimeRange{First: first, Last: last},
	}
}

// majorityFraudType picks the most common inferred type in the group.
// Ties resolve to the type seen first.
func majorityFraudType(group []domain.Alert) string {
	counts := make(map[string]int, 4)
	var order []string
	for i := range group {
		ft := group[i].FraudTypeInferred
		if _, ok := counts[ft]; !ok {
			order = append(order, ft)
		}
		counts[ft]++
	}
	best := order[0]
	for _, ft := range order[1:] {
		if counts[ft] > counts[best] {
			best = ft
		}
	}
	return best
}

func distinctUsers(alerts []domain.Alert, idxs []int) []string {
	seen := make(map[string]struct{}, len(idxs))
	var out []string
	for _, i := range idxs {
		uid := alerts[i].UserID
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		out = append(out, uid)
	}
	return out
}

func distinctAccounts(group []domain.Alert) []string {
	seen := make(map[string]struct{}, len(group))
	var out []string
	for i := range group {
		acc := group[i].AccountID
		if _, ok := seen[acc]; ok {
			continue
		}
		seen[acc] = struct{}{}
		out = append(out, acc)
	}
	return out
}

func collect(alerts []domain.Alert, idxs []int) []domain.Alert {
	out := make([]domain.Alert, len(idxs))
	for j, i := range idxs {
		out[j] = alerts[i]
	}
	return out
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	r := math.Round(v*scale) / scale
	if r == 0 {
		return 0
	}
	return r
}
