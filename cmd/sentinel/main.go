// Sentinel - Behavioral fraud detection for transaction batches.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/opensource-finance/sentinel/internal/alerts"
	"github.com/opensource-finance/sentinel/internal/bus"
	"github.com/opensource-finance/sentinel/internal/config"
	"github.com/opensource-finance/sentinel/internal/domain"
	"github.com/opensource-finance/sentinel/internal/pipeline"
	"github.com/opensource-finance/sentinel/internal/repository"
	"github.com/opensource-finance/sentinel/internal/scorer"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// A .env file supplies environment values when present.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "sentinel:", err)
		os.Exit(1)
	}

	// Flags win over environment for the values both cover.
	flag.StringVar(&cfg.Pipeline.Mode, "mode", cfg.Pipeline.Mode, "input mode: b1 (pre-aggregated) or b2 (raw events)")
	flag.StringVar(&cfg.Pipeline.ModelPath, "model", cfg.Pipeline.ModelPath, "path to the scorer artifact")
	flag.StringVar(&cfg.Pipeline.ModelPath, "m", cfg.Pipeline.ModelPath, "shorthand for -model")
	flag.Float64Var(&cfg.Pipeline.Threshold, "threshold", cfg.Pipeline.Threshold, "anomaly threshold override, negative uses the artifact's own")
	flag.Float64Var(&cfg.Pipeline.Threshold, "t", cfg.Pipeline.Threshold, "shorthand for -threshold")
	flag.StringVar(&cfg.Pipeline.InputDir, "input-dir", cfg.Pipeline.InputDir, "directory holding the input collections")
	flag.StringVar(&cfg.Pipeline.InputDir, "i", cfg.Pipeline.InputDir, "shorthand for -input-dir")
	flag.StringVar(&cfg.Pipeline.OutputDir, "output-dir", cfg.Pipeline.OutputDir, "directory for alerts, cases and the run summary")
	flag.StringVar(&cfg.Pipeline.OutputDir, "o", cfg.Pipeline.OutputDir, "shorthand for -output-dir")
	flag.Parse()

	if !domain.ValidMode(cfg.Pipeline.Mode) {
		fmt.Fprintf(os.Stderr, "sentinel: invalid mode %q (want b1 or b2)\n", cfg.Pipeline.Mode)
		os.Exit(1)
	}

	setupLogger(cfg.Logging)

	slog.Info("starting sentinel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"mode", cfg.Pipeline.Mode,
		"input_dir", cfg.Pipeline.InputDir,
		"output_dir", cfg.Pipeline.OutputDir,
		"store", cfg.Store.Driver,
		"bus", cfg.Bus.Driver,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Load the scorer artifact
	model, err := scorer.Load(cfg.Pipeline.ModelPath)
	if err != nil {
		slog.Error("failed to load scorer artifact", "error", err)
		os.Exit(1)
	}
	slog.Info("scorer loaded",
		"source", model.Source(),
		"features", len(model.Features()),
		"threshold", model.Threshold(),
	)

	// Load alert rules (built-in set unless a rules file is configured)
	ruleSet, err := alerts.LoadRules(cfg.Pipeline.RulesPath)
	if err != nil {
		slog.Error("failed to load alert rules", "error", err)
		os.Exit(1)
	}
	slog.Info("alert rules loaded", "count", len(ruleSet))

	// Initialize optional results store
	var store domain.ResultsStore
	if cfg.Store.Enabled() {
		store, err = repository.New(cfg.Store)
		if err != nil {
			slog.Error("failed to initialize results store", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		slog.Info("results store initialized", "driver", cfg.Store.Driver)
	}

	// Initialize optional event bus
	var eventBus domain.EventBus
	if cfg.Bus.Enabled() {
		eventBus, err = bus.New(cfg.Bus)
		if err != nil {
			slog.Error("failed to initialize event bus", "error", err)
			os.Exit(1)
		}
		defer eventBus.Close()
		slog.Info("event bus initialized", "driver", cfg.Bus.Driver)
	}

	p, err := pipeline.New(cfg, model, ruleSet, store, eventBus)
	if err != nil {
		slog.Error("failed to assemble pipeline", "error", err)
		os.Exit(1)
	}

	res, err := p.Run(ctx)
	if err != nil {
		slog.Error("pipeline run failed", "error", err)
		os.Exit(1)
	}

	printSummary(res)
}

func setupLogger(cfg domain.LoggingConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func printSummary(res *pipeline.Result) {
	s := res.Report.Statistics
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║            SENTINEL RUN REPORT             ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Run ID:        %s\n", res.Report.RunID)
	fmt.Printf("  Mode:          %s\n", res.Report.Mode)
	fmt.Printf("  Threshold:     %.4f\n", res.Report.Threshold)
	fmt.Printf("  Transactions:  %d\n", s.TotalTransactions)
	fmt.Printf("  Anomalies:     %d (%.2f%%)\n", s.AnomaliesDetected, s.AnomalyRate)
	fmt.Printf("  Alerts:        %d\n", s.AlertsCreated)
	fmt.Printf("  Cases:         %d\n", s.CasesBuilt)
	fmt.Printf("  Output:        %s\n", res.Report.OutputDir)
	fmt.Println()
}
