// Package pipeline runs the detection stages in order: feature
// engineering, scoring, alert creation, case building. Stages hand off
// complete in-memory collections; files and the network are touched
// only at entry (input directory) and exit (output directory, optional
// store and bus).
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/sentinel/internal/alerts"
	"github.com/opensource-finance/sentinel/internal/cases"
	"github.com/opensource-finance/sentinel/internal/dataset"
	"github.com/opensource-finance/sentinel/internal/domain"
	"github.com/opensource-finance/sentinel/internal/features"
	"github.com/opensource-finance/sentinel/internal/scorer"
)

var tracer = otel.Tracer("sentinel-pipeline")

// PartialError reports a run that produced intermediate results but
// stopped before its outputs were completely written. The canonical
// output files are absent or stale when this is returned.
type PartialError struct {
	Stage string
	Err   error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("run incomplete at %s stage: %v", e.Stage, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Pipeline owns one configured run: the input source, the fitted
// scorer, the compiled alert rules and the optional exit sinks. Store
// and bus may be nil; the JSON outputs are the canonical product
// either way.
type Pipeline struct {
	cfg      *domain.Config
	source   *dataset.Source
	engineer *features.Engineer
	model    domain.Scorer
	creator  *alerts.Creator
	builder  *cases.Builder
	store    domain.ResultsStore
	bus      domain.EventBus
}

// New assembles a pipeline from its parts. Rules are compiled once
// here, so a rule that does not compile fails assembly rather than
// the run.
func New(cfg *domain.Config, model domain.Scorer, rules []domain.AlertRule, store domain.ResultsStore, eventBus domain.EventBus) (*Pipeline, error) {
	engine, err := alerts.NewEngine(rules)
	if err != nil {
		return nil, fmt.Errorf("compile alert rules: %w", err)
	}
	return &Pipeline{
		cfg:      cfg,
		source:   dataset.New(cfg.Pipeline.InputDir),
		engineer: features.NewEngineer(cfg.Pipeline.Mode, cfg.Pipeline.Workers),
		model:    model,
		creator:  alerts.NewCreator(engine, model.Source()),
		builder:  cases.NewBuilder(cfg.CaseScoring),
		store:    store,
		bus:      eventBus,
	}, nil
}

// Result carries a completed run: the report as returned to the
// caller plus the alert and case collections in output order.
type Result struct {
	Report *domain.RunReport
	Alerts []domain.Alert
	Cases  []domain.Case
}

// Run executes the stages in order and writes the output collections.
// Each output file is written whole or not at all. Sink delivery
// happens only after a successful write and never fails the run; sink
// failures are appended to the returned report as notes.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if d := p.cfg.Pipeline.RunDeadline; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	runID := uuid.New().String()
	started := time.Now().UTC()

	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("run.mode", p.cfg.Pipeline.Mode),
	))
	defer span.End()

	slog.Info("pipeline run starting",
		"run_id", runID,
		"mode", p.cfg.Pipeline.Mode,
		"input_dir", p.cfg.Pipeline.InputDir,
		"threshold", p.threshold(),
	)

	table, err := p.featureStage(ctx)
	if err != nil {
		return nil, err
	}
	scored, err := p.scoreStage(ctx, table.Rows)
	if err != nil {
		return nil, err
	}
	alertList, err := p.alertStage(ctx, scored)
	if err != nil {
		return nil, err
	}
	caseList, err := p.caseStage(ctx, alertList)
	if err != nil {
		return nil, err
	}

	report := p.buildReport(runID, started, table.Notes, scored, alertList, caseList)
	if err := p.writeStage(ctx, report, alertList, caseList); err != nil {
		return nil, err
	}

	p.deliver(ctx, report, alertList, caseList)

	slog.Info("pipeline run complete",
		"run_id", runID,
		"transactions", report.Statistics.TotalTransactions,
		"anomalies", report.Statistics.AnomaliesDetected,
		"alerts", report.Statistics.AlertsCreated,
		"cases", report.Statistics.CasesBuilt,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return &Result{Report: report, Alerts: alertList, Cases: caseList}, nil
}

func (p *Pipeline) featureStage(ctx context.Context) (*features.Table, error) {
	ctx, span := tracer.Start(ctx, "pipeline.features", trace.WithAttributes(
		attribute.String("mode", p.cfg.Pipeline.Mode),
	))
	defer span.End()

	table, err := p.engineer.Run(ctx, p.source)
	if err != nil {
		return nil, fmt.Errorf("feature stage: %w", err)
	}
	span.SetAttributes(
		attribute.Int("rows", len(table.Rows)),
		attribute.Int("quality_notes", len(table.Notes)),
	)
	slog.Info("features engineered", "rows", len(table.Rows), "quality_notes", len(table.Notes))
	return table, nil
}

func (p *Pipeline) scoreStage(ctx context.Context, rows []domain.FeatureRow) ([]domain.ScoredRow, error) {
	_, span := tracer.Start(ctx, "pipeline.score", trace.WithAttributes(
		attribute.Int("rows", len(rows)),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scored, err := scorer.Predict(p.model, rows, p.cfg.Pipeline.Threshold)
	if err != nil {
		return nil, fmt.Errorf("score stage: %w", err)
	}
	anomalies := countAnomalies(scored)
	span.SetAttributes(attribute.Int("anomalies", anomalies))
	slog.Info("transactions scored", "rows", len(scored), "anomalies", anomalies, "threshold", p.threshold())
	return scored, nil
}

func (p *Pipeline) alertStage(ctx context.Context, scored []domain.ScoredRow) ([]domain.Alert, error) {
	ctx, span := tracer.Start(ctx, "pipeline.alerts")
	defer span.End()

	alertList, err := p.creator.Create(ctx, scored)
	if err != nil {
		return nil, &PartialError{Stage: "alerts", Err: err}
	}
	span.SetAttributes(attribute.Int("alerts", len(alertList)))
	slog.Info("alerts created", "alerts", len(alertList))
	return alertList, nil
}

func (p *Pipeline) caseStage(ctx context.Context, alertList []domain.Alert) ([]domain.Case, error) {
	ctx, span := tracer.Start(ctx, "pipeline.cases")
	defer span.End()

	caseList, err := p.builder.Build(ctx, alertList)
	if err != nil {
		return nil, &PartialError{Stage: "cases", Err: err}
	}
	span.SetAttributes(attribute.Int("cases", len(caseList)))
	slog.Info("cases built", "cases", len(caseList), "alerts", len(alertList))
	return caseList, nil
}

// threshold resolves the effective anomaly cut: a negative configured
// value defers to the artifact's own calibration.
func (p *Pipeline) threshold() float64 {
	if t := p.cfg.Pipeline.Threshold; t >= 0 {
		return t
	}
	return p.model.Threshold()
}

func countAnomalies(scored []domain.ScoredRow) int {
	n := 0
	for i := range scored {
		if scored[i].IsAnomaly {
			n++
		}
	}
	return n
}
