package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/sentinel/internal/domain"
)

// deliver mirrors the finished run into the optional sinks. The output
// files already exist at this point, so failures here downgrade to
// notes on the returned report.
func (p *Pipeline) deliver(ctx context.Context, report *domain.RunReport, alertList []domain.Alert, caseList []domain.Case) {
	p.mirror(ctx, report, alertList, caseList)
	p.announce(ctx, report)
}

func (p *Pipeline) mirror(ctx context.Context, report *domain.RunReport, alertList []domain.Alert, caseList []domain.Case) {
	if p.store == nil {
		return
	}
	ctx, span := tracer.Start(ctx, "pipeline.mirror")
	defer span.End()

	if err := p.store.SaveRun(ctx, report); err != nil {
		p.noteSinkFailure(report, "results store", fmt.Errorf("save run: %w", err))
		return
	}
	alertPtrs := make([]*domain.Alert, len(alertList))
	for i := range alertList {
		alertPtrs[i] = &alertList[i]
	}
	if err := p.store.SaveAlerts(ctx, report.RunID, alertPtrs); err != nil {
		p.noteSinkFailure(report, "results store", fmt.Errorf("save alerts: %w", err))
		return
	}
	casePtrs := make([]*domain.Case, len(caseList))
	for i := range caseList {
		casePtrs[i] = &caseList[i]
	}
	if err := p.store.SaveCases(ctx, report.RunID, casePtrs); err != nil {
		p.noteSinkFailure(report, "results store", fmt.Errorf("save cases: %w", err))
		return
	}
	slog.Info("run mirrored to results store", "run_id", report.RunID)
}

// runEvent is the payload on the alert and case count topics. The run
// completion topic carries the full report instead.
type runEvent struct {
	RunID string `json:"run_id"`
	Count int    `json:"count"`
}

func (p *Pipeline) announce(ctx context.Context, report *domain.RunReport) {
	if p.bus == nil {
		return
	}
	ctx, span := tracer.Start(ctx, "pipeline.publish")
	defer span.End()

	events := []struct {
		topic string
		doc   any
	}{
		{domain.TopicRunCompleted, report},
		{domain.TopicAlertsCreated, runEvent{RunID: report.RunID, Count: report.Statistics.AlertsCreated}},
		{domain.TopicCasesCreated, runEvent{RunID: report.RunID, Count: report.Statistics.CasesBuilt}},
	}
	published := 0
	for _, ev := range events {
		payload, err := json.Marshal(ev.doc)
		if err != nil {
			p.noteSinkFailure(report, "event bus", fmt.Errorf("encode %s: %w", ev.topic, err))
			continue
		}
		if err := p.bus.Publish(ctx, ev.topic, payload); err != nil {
			p.noteSinkFailure(report, "event bus", fmt.Errorf("publish %s: %w", ev.topic, err))
			continue
		}
		published++
	}
	if published > 0 {
		slog.Info("run events published", "run_id", report.RunID, "topics", published)
	}
}

func (p *Pipeline) noteSinkFailure(report *domain.RunReport, sink string, err error) {
	slog.Warn("sink delivery failed", "sink", sink, "error", err)
	report.DataQuality = append(report.DataQuality, domain.QualityNote{
		Kind:   domain.NoteSinkDelivery,
		Detail: fmt.Sprintf("%s: %v", sink, err),
	})
}
