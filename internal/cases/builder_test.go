package cases

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/opensource-finance/sentinel/internal/domain"
)

func mkAlert(txn int64, user, account, device string, score float64, fraudType string, at time.Time) domain.Alert {
	return domain.Alert{
		AlertID:           domain.AlertID(txn),
		EventTime:         domain.NewEventTime(at),
		CreatedAt:         time.Now().UTC(),
		DetectorType:      domain.DetectorBehavior,
		DetectorSource:    "ml_isolation_forest",
		Signal:            "ML_ANOMALY_DETECTED",
		Severity:          domain.SeverityForScore(score),
		Confidence:        score,
		FraudTypeInferred: fraudType,
		UserID:            user,
		AccountID:         account,
		TxnID:             txn,
		Evidence: domain.Evidence{
			AnomalyScore: score,
			Amount:       100,
			DeviceID:     device,
			IPAddress:    "192.168.1." + string(rune('0'+txn%10)),
		},
	}
}

func TestBuildRingCase(t *testing.T) {
	builder := NewBuilder(DefaultScoring())
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	alerts := []domain.Alert{
		mkAlert(1, "u_001", "acc_001", "dev_shared_01", 0.9, domain.FraudBehavioral, base),
		mkAlert(2, "u_002", "acc_002", "dev_shared_01", 0.8, domain.FraudBehavioral, base.Add(time.Hour)),
		mkAlert(3, "u_003", "acc_003", "dev_shared_01", 0.7, domain.FraudBehavioral, base.Add(2*time.Hour)),
		mkAlert(4, "u_004", "acc_004", "dev_shared_01", 0.6, domain.FraudBehavioral, base.Add(3*time.Hour)),
	}

	cases, err := builder.Build(context.Background(), alerts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(cases) != 1 {
		t.Fatalf("expected 1 case, got %d", len(cases))
	}
	c := cases[0]

	if c.FraudType != domain.FraudRing {
		t.Errorf("expected fraud_ring, got %s", c.FraudType)
	}
	wantMembers := []string{"u_001", "u_002", "u_003", "u_004"}
	if len(c.RingMembers) != len(wantMembers) {
		t.Fatalf("expected %d ring members, got %d", len(wantMembers), len(c.RingMembers))
	}
	for i, m := range wantMembers {
		if c.RingMembers[i] != m {
			t.Errorf("ring member %d = %s, want %s", i, c.RingMembers[i], m)
		}
	}
	if c.SharedDevice != "dev_shared_01" {
		t.Errorf("shared device = %s", c.SharedDevice)
	}
	if c.SharedIP != alerts[0].Evidence.IPAddress {
		t.Errorf("shared ip = %s, want the first alert's %s", c.SharedIP, alerts[0].Evidence.IPAddress)
	}
	if len(c.UserID) != 4 {
		t.Errorf("expected 4 users on the case, got %d", len(c.UserID))
	}
	if c.AccountID != "acc_001" {
		t.Errorf("case account = %s, want the first alert's acc_001", c.AccountID)
	}
	if c.AlertCount != 4 || len(c.AlertIDs) != 4 {
		t.Errorf("alert count = %d, ids = %d", c.AlertCount, len(c.AlertIDs))
	}
	if ok, _ := regexp.MatchString(`^CASE-\d{8}-RING-HARED_0$`, c.CaseID); !ok {
		t.Errorf("unexpected ring case id %q", c.CaseID)
	}
	if c.Status != domain.CaseStatusOpen || c.CreatedBy != domain.CaseCreatedBy {
		t.Errorf("status/author = %s/%s", c.Status, c.CreatedBy)
	}
	if c.Summary.UniqueUsers != 4 || c.Summary.UniqueAccounts != 4 {
		t.Errorf("summary uniques = %d users / %d accounts", c.Summary.UniqueUsers, c.Summary.UniqueAccounts)
	}
	if !c.Summary.TimeRange.First.Equal(base) || !c.Summary.TimeRange.Last.Equal(base.Add(3*time.Hour)) {
		t.Errorf("time range = %v .. %v", c.Summary.TimeRange.First, c.Summary.TimeRange.Last)
	}
}

func TestBuildEveryAlertExactlyOnce(t *testing.T) {
	builder := NewBuilder(DefaultScoring())
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	alerts := []domain.Alert{
		mkAlert(1, "u_001", "acc_001", "dev_ring", 0.9, domain.FraudBehavioral, base),
		mkAlert(2, "u_002", "acc_002", "dev_ring", 0.8, domain.FraudBehavioral, base),
		mkAlert(3, "u_003", "acc_003", "dev_a", 0.7, domain.FraudMoneyMule, base),
		mkAlert(4, "u_003", "acc_003", "unknown", 0.6, domain.FraudMoneyMule, base),
		mkAlert(5, "u_004", "acc_004", "", 0.5, domain.FraudIncomeAnomaly, base),
	}

	built, err := builder.Build(context.Background(), alerts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	seen := make(map[string]int)
	for _, c := range built {
		if len(c.AlertIDs) != c.AlertCount {
			t.Errorf("case %s: alert count %d != %d ids", c.CaseID, c.AlertCount, len(c.AlertIDs))
		}
		for _, id := range c.AlertIDs {
			seen[id]++
		}
	}
	if len(seen) != len(alerts) {
		t.Fatalf("expected %d distinct alert ids across cases, got %d", len(alerts), len(seen))
	}
	for _, a := range alerts {
		if seen[a.AlertID] != 1 {
			t.Errorf("alert %s appears %d times, want exactly once", a.AlertID, seen[a.AlertID])
		}
	}

	// One ring case for dev_ring, one user case each for u_003 and u_004.
	if len(built) != 3 {
		t.Errorf("expected 3 cases, got %d", len(built))
	}
	if built[0].FraudType != domain.FraudRing {
		t.Errorf("first case = %s, want fraud_ring", built[0].FraudType)
	}
}

func TestBuildSharedDeviceSingleUser(t *testing.T) {
	builder := NewBuilder(DefaultScoring())
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	// Same device but only one user behind it: not a ring.
	alerts := []domain.Alert{
		mkAlert(1, "u_001", "acc_001", "dev_solo", 0.9, domain.FraudBehavioral, base),
		mkAlert(2, "u_001", "acc_001", "dev_solo", 0.8, domain.FraudBehavioral, base),
	}

	built, err := builder.Build(context.Background(), alerts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(built) != 1 {
		t.Fatalf("expected 1 case, got %d", len(built))
	}
	if built[0].FraudType != domain.FraudBehavioral {
		t.Errorf("fraud type = %s, want behavioral_anomaly", built[0].FraudType)
	}
	if built[0].AlertCount != 2 {
		t.Errorf("alert count = %d, want 2", built[0].AlertCount)
	}
	if len(built[0].RingMembers) != 0 || built[0].SharedDevice != "" {
		t.Error("user case must not carry ring fields")
	}
}

func TestBuildForcesMultiAccount(t *testing.T) {
	builder := NewBuilder(DefaultScoring())
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	alerts := []domain.Alert{
		mkAlert(1, "u_009", "acc_a", "", 0.9, domain.FraudBehavioral, base),
		mkAlert(2, "u_009", "acc_b", "", 0.8, domain.FraudBehavioral, base),
		mkAlert(3, "u_009", "acc_a", "", 0.7, domain.FraudBehavioral, base),
	}

	built, err := builder.Build(context.Background(), alerts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(built) != 1 {
		t.Fatalf("expected 1 case, got %d", len(built))
	}
	c := built[0]
	if c.FraudType != domain.FraudMultiAccount {
		t.Errorf("fraud type = %s, want multi_account_fraud", c.FraudType)
	}
	if len(c.AccountsInvolved) != 2 || c.AccountsInvolved[0] != "acc_a" || c.AccountsInvolved[1] != "acc_b" {
		t.Errorf("accounts involved = %v", c.AccountsInvolved)
	}
	if c.Summary.UniqueAccounts != 2 {
		t.Errorf("unique accounts = %d, want 2", c.Summary.UniqueAccounts)
	}
}

func TestBuildMajorityFraudType(t *testing.T) {
	builder := NewBuilder(DefaultScoring())
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	t.Run("MajorityWins", func(t *testing.T) {
		alerts := []domain.Alert{
			mkAlert(1, "u_001", "acc_001", "", 0.9, domain.FraudMoneyMule, base),
			mkAlert(2, "u_001", "acc_001", "", 0.8, domain.FraudIncomeAnomaly, base),
			mkAlert(3, "u_001", "acc_001", "", 0.7, domain.FraudIncomeAnomaly, base),
		}
		built, err := builder.Build(context.Background(), alerts)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if built[0].FraudType != domain.FraudIncomeAnomaly {
			t.Errorf("fraud type = %s, want income_anomaly", built[0].FraudType)
		}
	})

	t.Run("TieKeepsFirstSeen", func(t *testing.T) {
		alerts := []domain.Alert{
			mkAlert(1, "u_001", "acc_001", "", 0.9, domain.FraudIncomeAnomaly, base),
			mkAlert(2, "u_001", "acc_001", "", 0.8, domain.FraudMoneyMule, base),
		}
		built, err := builder.Build(context.Background(), alerts)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if built[0].FraudType != domain.FraudIncomeAnomaly {
			t.Errorf("fraud type = %s, want income_anomaly", built[0].FraudType)
		}
	})
}

func TestCaseScore(t *testing.T) {
	cfg := DefaultScoring()
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	group := func(scores ...float64) []domain.Alert {
		out := make([]domain.Alert, len(scores))
		for i, s := range scores {
			out[i] = mkAlert(int64(i+1), "u_001", "acc_001", "", s, domain.FraudBehavioral, base)
		}
		return out
	}

	tests := []struct {
		name   string
		scores []float64
		want   int
	}{
		{"Empty", nil, 0},
		{"Single", []float64{0.8}, 85},
		{"AverageAndMaxBlend", []float64{0.6, 0.8}, 85},
		{"BonusCapped", []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}, 70},
		{"ScoreCapped", []float64{0.9, 0.9, 0.9, 0.9, 0.9}, 95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := caseScore(cfg, group(tt.scores...)); got != tt.want {
				t.Errorf("caseScore(%v) = %d, want %d", tt.scores, got, tt.want)
			}
		})
	}
}

func TestBuildRiskLevels(t *testing.T) {
	builder := NewBuilder(DefaultScoring())
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	// A single-alert case scores round(s*100 + 5).
	tests := []struct {
		score float64
		want  domain.RiskLevel
	}{
		{0.75, domain.RiskCritical}, // exactly 80
		{0.55, domain.RiskHigh},     // exactly 60
		{0.35, domain.RiskMedium},   // exactly 40
		{0.10, domain.RiskLow},
	}
	for _, tt := range tests {
		built, err := builder.Build(context.Background(), []domain.Alert{
			mkAlert(1, "u_001", "acc_001", "", tt.score, domain.FraudBehavioral, base),
		})
		if err != nil {
			t.Fatalf("Build(score=%v): %v", tt.score, err)
		}
		c := built[0]
		if c.RiskLevel != tt.want {
			t.Errorf("risk(score=%v) = %s, want %s (case score %d)", tt.score, c.RiskLevel, tt.want, c.CaseScore)
		}
		if c.Priority != c.RiskLevel {
			t.Errorf("priority %s != risk level %s", c.Priority, c.RiskLevel)
		}
	}
}

func TestBuildCaseIDTruncatesSuffix(t *testing.T) {
	builder := NewBuilder(DefaultScoring())
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	built, err := builder.Build(context.Background(), []domain.Alert{
		mkAlert(1, "u_verylongusername_42", "acc_001", "", 0.9, domain.FraudBehavioral, base),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if ok, _ := regexp.MatchString(`^CASE-\d{8}-U_VERYLONGUS$`, built[0].CaseID); !ok {
		t.Errorf("unexpected case id %q", built[0].CaseID)
	}
}

func TestBuildSummaryAmounts(t *testing.T) {
	builder := NewBuilder(DefaultScoring())
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	a1 := mkAlert(1, "u_001", "acc_001", "", 0.8, domain.FraudBehavioral, base.Add(time.Hour))
	a1.Evidence.Amount = 100.55
	a2 := mkAlert(2, "u_001", "acc_001", "", 0.6, domain.FraudBehavioral, base)
	a2.Evidence.Amount = 200.01

	built, err := builder.Build(context.Background(), []domain.Alert{a1, a2})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s := built[0].Summary
	if s.TotalAlerts != 2 {
		t.Errorf("total alerts = %d", s.TotalAlerts)
	}
	if s.TotalAmount != 300.56 {
		t.Errorf("total amount = %v, want 300.56", s.TotalAmount)
	}
	if s.MaxAnomalyScore != 0.8 {
		t.Errorf("max score = %v, want 0.8", s.MaxAnomalyScore)
	}
	if s.AvgAnomalyScore != 0.7 {
		t.Errorf("avg score = %v, want 0.7", s.AvgAnomalyScore)
	}
	// Later event listed first in the input; the range still orders by time.
	if !s.TimeRange.First.Equal(base) || !s.TimeRange.Last.Equal(base.Add(time.Hour)) {
		t.Errorf("time range = %v .. %v", s.TimeRange.First, s.TimeRange.Last)
	}
}

func TestBuildEmptyInput(t *testing.T) {
	builder := NewBuilder(DefaultScoring())
	built, err := builder.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built == nil || len(built) != 0 {
		t.Errorf("expected empty case list, got %v", built)
	}
}

func TestBuildHonorsContext(t *testing.T) {
	builder := NewBuilder(DefaultScoring())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	_, err := builder.Build(ctx, []domain.Alert{
		mkAlert(1, "u_001", "acc_001", "dev_1", 0.9, domain.FraudBehavioral, base),
	})
	if err == nil {
		t.Fatal("expected context error, got nil")
	}
}
