// Benchmark tool for measuring Sentinel stage throughput.
//
// Usage:
//   go run cmd/benchmark/main.go -n 50000 -users 500 -sweep
//
// This tool:
//   1. Generates a synthetic transaction batch in memory (seeded)
//   2. Runs feature engineering over the batch
//   3. Scores the feature table with a synthetic isolation forest
//   4. Prints per-stage timings and throughput
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/opensource-finance/sentinel/internal/domain"
	"github.com/opensource-finance/sentinel/internal/features"
	"github.com/opensource-finance/sentinel/internal/scorer"
)

var featureNames = []string{
	"amount_abs",
	"mod_z_score_abs",
	"ewma_resid",
	"gap_log",
	"amount_to_income_ratio",
	"is_cross_border",
}

func main() {
	n := flag.Int("n", 50000, "Transactions to generate")
	users := flag.Int("users", 500, "Distinct users in the batch")
	seed := flag.Int64("seed", 42, "Generator seed (0 = random)")
	workers := flag.Int("workers", 0, "Feature workers (0 = one per CPU)")
	mode := flag.String("mode", domain.ModePreAggregated, "Input mode: b1 or b2")
	trees := flag.Int("trees", 100, "Isolation trees in the synthetic model")
	depth := flag.Int("depth", 8, "Depth of each synthetic tree")
	sweep := flag.Bool("sweep", false, "Also time n/4 and n/2 to show scaling")
	flag.Parse()

	if !domain.ValidMode(*mode) {
		fmt.Printf("ERROR: invalid mode %q (want b1 or b2)\n", *mode)
		os.Exit(1)
	}
	if *n < 4 {
		fmt.Println("ERROR: batch size must be at least 4")
		os.Exit(1)
	}

	effectiveWorkers := *workers
	if effectiveWorkers <= 0 {
		effectiveWorkers = runtime.GOMAXPROCS(0)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║            SENTINEL BENCHMARK - Stage Throughput              ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nBatch:    %d txns, %d users, mode %s\n", *n, *users, *mode)
	fmt.Printf("Model:    isolation forest, %d trees, depth %d\n", *trees, *depth)
	fmt.Printf("Workers:  %d\n", effectiveWorkers)
	fmt.Printf("Seed:     %d\n", *seed)

	model, err := syntheticModel(*seed, *trees, *depth)
	if err != nil {
		fmt.Printf("ERROR: build synthetic model: %v\n", err)
		os.Exit(1)
	}

	sizes := []int{*n}
	if *sweep {
		sizes = []int{*n / 4, *n / 2, *n}
	}

	timings := make([]stageTiming, 0, len(sizes))
	for _, size := range sizes {
		st, err := timeBatch(*seed, size, *users, *workers, *mode, model)
		if err != nil {
			fmt.Printf("ERROR: batch %d: %v\n", size, err)
			os.Exit(1)
		}
		printTiming(st)
		timings = append(timings, st)
	}

	if *sweep && len(timings) == 3 {
		printScaling(timings[0], timings[2])
	}
	fmt.Println()
}

type stageTiming struct {
	size      int
	gen       time.Duration
	feats     time.Duration
	score     time.Duration
	anomalies int
}

func timeBatch(seed int64, size, users, workers int, mode string, model domain.Scorer) (stageTiming, error) {
	f := gofakeit.New(seed)
	st := stageTiming{size: size}

	start := time.Now()
	txns, profiles, auth, network := generateBatch(f, size, users, mode)
	st.gen = time.Since(start)

	eng := features.NewEngineer(mode, workers)
	start = time.Now()
	table, err := eng.Compute(context.Background(), txns, profiles, auth, network)
	if err != nil {
		return st, fmt.Errorf("features: %w", err)
	}
	st.feats = time.Since(start)

	start = time.Now()
	scored, err := scorer.Predict(model, table.Rows, -1)
	if err != nil {
		return st, fmt.Errorf("scoring: %w", err)
	}
	st.score = time.Since(start)

	for i := range scored {
		if scored[i].IsAnomaly {
			st.anomalies++
		}
	}
	return st, nil
}

// generateBatch builds one seeded batch. Pre-aggregated mode stamps the
// velocity columns on the transactions themselves; raw-events mode
// emits auth and network events tied to a quarter of the transactions.
func generateBatch(f *gofakeit.Faker, n, users int, mode string) ([]domain.Transaction, []domain.Profile, []domain.AuthEvent, []domain.NetworkEvent) {
	if users < 1 {
		users = 1
	}
	profiles := make([]domain.Profile, users)
	for i := range profiles {
		profiles[i] = domain.Profile{
			UserID:           fmt.Sprintf("u_%05d", i+1),
			DeclaredIncome:   f.Float64Range(20000, 250000),
			AccountDeposit:   f.Float64Range(0, 50000),
			ResidenceCountry: f.CountryAbr(),
			Accounts:         []string{fmt.Sprintf("acc_%05d", i+1)},
		}
	}

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	eventTypes := []string{domain.EventDeposit, domain.EventWithdrawal, domain.EventBuy, domain.EventSell}
	channels := []string{"web", "mobile", "atm", "pos"}

	txns := make([]domain.Transaction, n)
	for i := range txns {
		p := &profiles[f.Number(0, users-1)]
		amount := f.Float64Range(5, 2500)
		if f.Number(0, 99) < 2 {
			amount = f.Float64Range(8000, 50000)
		}
		eventType := eventTypes[f.Number(0, len(eventTypes)-1)]
		if eventType == domain.EventWithdrawal || eventType == domain.EventSell {
			amount = -amount
		}
		txns[i] = domain.Transaction{
			TxnID:              int64(i + 1),
			UserID:             p.UserID,
			AccountID:          p.Accounts[0],
			EventTime:          domain.NewEventTime(base.Add(time.Duration(i) * 37 * time.Second)),
			EventType:          eventType,
			Amount:             amount,
			Currency:           "USD",
			Channel:            channels[f.Number(0, len(channels)-1)],
			TransactionCountry: f.CountryAbr(),
			DeviceID:           "dev_" + f.LetterN(8),
			IPAddress:          f.IPv4Address(),
		}
		if mode == domain.ModePreAggregated {
			txns[i].AmountIn1d = f.Float64Range(0, 8000)
			txns[i].AmountOut1d = f.Float64Range(0, 8000)
			txns[i].LoginCount1h = f.Number(0, 5)
			txns[i].FailedLogin1h = f.Number(0, 2)
			txns[i].NewIP1d = f.Number(0, 1)
			txns[i].GeoChange1d = f.Number(0, 1)
		}
	}

	var auth []domain.AuthEvent
	var network []domain.NetworkEvent
	if mode == domain.ModeRawEvents {
		auth = make([]domain.AuthEvent, 0, n/4)
		network = make([]domain.NetworkEvent, 0, n/4)
		for i := range txns {
			if f.Number(0, 3) != 0 {
				continue
			}
			txnID := txns[i].TxnID
			authType := domain.AuthLoginSuccess
			if f.Number(0, 4) == 0 {
				authType = domain.AuthLoginFailed
			}
			auth = append(auth, domain.AuthEvent{
				EventID:      f.UUID(),
				EventTime:    txns[i].EventTime,
				EventType:    authType,
				UserID:       txns[i].UserID,
				DeviceID:     txns[i].DeviceID,
				IPAddress:    txns[i].IPAddress,
				GeoCountry:   txns[i].TransactionCountry,
				RelatedTxnID: &txnID,
			})
			network = append(network, domain.NetworkEvent{
				EventID:      f.UUID(),
				EventTime:    txns[i].EventTime,
				UserID:       txns[i].UserID,
				AccountID:    txns[i].AccountID,
				DeviceID:     txns[i].DeviceID,
				IPAddress:    txns[i].IPAddress,
				GeoCountry:   txns[i].TransactionCountry,
				IsNewIP:      f.Number(0, 1),
				IsGeoChange:  f.Number(0, 1),
				RelatedTxnID: &txnID,
			})
		}
	}
	return txns, profiles, auth, network
}

// syntheticModel fits nothing: it assembles a structurally valid forest
// with random splits, which exercises the same scoring path as a
// trained artifact.
func syntheticModel(seed int64, trees, depth int) (domain.Scorer, error) {
	f := gofakeit.New(seed)
	const maxSamples = 256

	forest := make([]scorer.ForestTree, trees)
	for t := range forest {
		forest[t] = scorer.ForestTree{Nodes: growTree(f, depth, len(featureNames), maxSamples)}
	}

	return scorer.New(scorer.Artifact{
		Features:  featureNames,
		Threshold: 0.6,
		Imputer:   scorer.ImputerParams{Medians: []float64{150, 0.7, 0, 8, 0.02, 0}},
		Scaler: scorer.ScalerParams{
			Centers: []float64{150, 0.7, 0, 8, 0.02, 0},
			Scales:  []float64{300, 1.5, 1, 4, 0.2, 1},
		},
		Model: scorer.ModelSpec{
			Type:       "isolation_forest",
			Trees:      forest,
			MaxSamples: maxSamples,
			Offset:     0,
		},
	})
}

// growTree lays out a full binary tree breadth-first: node i splits to
// 2i+1 and 2i+2, the last level holds the leaves.
func growTree(f *gofakeit.Faker, depth, nFeatures, maxSamples int) []scorer.ForestNode {
	internal := (1 << depth) - 1
	total := (1 << (depth + 1)) - 1
	nodes := make([]scorer.ForestNode, total)
	for i := 0; i < internal; i++ {
		nodes[i] = scorer.ForestNode{
			Feature:   f.Number(0, nFeatures-1),
			Threshold: f.Float64Range(-2, 2),
			Left:      2*i + 1,
			Right:     2*i + 2,
		}
	}
	for i := internal; i < total; i++ {
		nodes[i] = scorer.ForestNode{Feature: -1, Size: f.Number(1, maxSamples/4)}
	}
	return nodes
}

func printTiming(st stageTiming) {
	fmt.Printf("\n📊 BATCH %d\n", st.size)
	fmt.Printf("   Generation:  %10v\n", st.gen.Round(time.Millisecond))
	fmt.Printf("   Features:    %10v  (%.0f rows/sec)\n", st.feats.Round(time.Millisecond), rate(st.size, st.feats))
	fmt.Printf("   Scoring:     %10v  (%.0f rows/sec)\n", st.score.Round(time.Millisecond), rate(st.size, st.score))
	fmt.Printf("   Anomalies:   %d (%.2f%%)\n", st.anomalies, 100*float64(st.anomalies)/float64(st.size))
}

func printScaling(small, large stageTiming) {
	fmt.Printf("\n💡 SCALING\n")
	ideal := float64(large.size) / float64(small.size)
	if small.feats > 0 {
		fmt.Printf("   Feature time grew %.1fx from %d to %d rows (linear is %.1fx)\n",
			float64(large.feats)/float64(small.feats), small.size, large.size, ideal)
	}
	if small.score > 0 {
		fmt.Printf("   Scoring time grew %.1fx from %d to %d rows (linear is %.1fx)\n",
			float64(large.score)/float64(small.score), small.size, large.size, ideal)
	}
}

func rate(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}
