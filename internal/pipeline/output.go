package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/sentinel/internal/domain"
)

// Output file names under the run's output directory.
const (
	FileAlerts  = "alerts.json"
	FileCases   = "cases.json"
	FileSummary = "pipeline_summary.json"
)

func (p *Pipeline) buildReport(runID string, started time.Time, notes []domain.QualityNote, scored []domain.ScoredRow, alertList []domain.Alert, caseList []domain.Case) *domain.RunReport {
	anomalies := countAnomalies(scored)
	rate := 0.0
	if len(scored) > 0 {
		rate = math.Round(float64(anomalies)/float64(len(scored))*10000) / 100
	}

	casesByType := make(map[string]int, len(caseList))
	for i := range caseList {
		casesByType[caseList[i].FraudType]++
	}
	alertsBySeverity := make(map[string]int, 4)
	for i := range alertList {
		alertsBySeverity[string(alertList[i].Severity)]++
	}

	return &domain.RunReport{
		PipelineRun: started,
		RunID:       runID,
		Mode:        p.cfg.Pipeline.Mode,
		Threshold:   p.threshold(),
		InputDir:    p.cfg.Pipeline.InputDir,
		OutputDir:   p.cfg.Pipeline.OutputDir,
		Statistics: domain.RunStatistics{
			TotalTransactions: len(scored),
			AnomaliesDetected: anomalies,
			AnomalyRate:       rate,
			AlertsCreated:     len(alertList),
			CasesBuilt:        len(caseList),
		},
		CasesByType:      casesByType,
		AlertsBySeverity: alertsBySeverity,
		DataQuality:      notes,
	}
}

// writeStage persists the three output collections. Each document is
// staged to a temp file and renamed into place.
func (p *Pipeline) writeStage(ctx context.Context, report *domain.RunReport, alertList []domain.Alert, caseList []domain.Case) error {
	_, span := tracer.Start(ctx, "pipeline.write", trace.WithAttributes(
		attribute.String("output_dir", p.cfg.Pipeline.OutputDir),
	))
	defer span.End()

	dir := p.cfg.Pipeline.OutputDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PartialError{Stage: "write", Err: err}
	}
	outputs := []struct {
		name string
		doc  any
	}{
		{FileAlerts, alertList},
		{FileCases, caseList},
		{FileSummary, report},
	}
	for _, out := range outputs {
		if err := writeJSON(dir, out.name, out.doc); err != nil {
			return &PartialError{Stage: "write", Err: err}
		}
	}
	slog.Info("outputs written", "output_dir", dir, "alerts", len(alertList), "cases", len(caseList))
	return nil
}

func writeJSON(dir, name string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, name+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}
