package domain

import "time"

// RunReport is the summary written alongside the alert and case
// collections at the end of a pipeline run.
type RunReport struct {
	PipelineRun      time.Time      `json:"pipeline_run"`
	RunID            string         `json:"run_id"`
	Mode             string         `json:"mode"`
	Threshold        float64        `json:"threshold"`
	InputDir         string         `json:"input_dir"`
	OutputDir        string         `json:"output_dir"`
	Statistics       RunStatistics  `json:"statistics"`
	CasesByType      map[string]int `json:"cases_by_type"`
	AlertsBySeverity map[string]int `json:"alerts_by_severity"`
	DataQuality      []QualityNote  `json:"data_quality,omitempty"`
}

// RunStatistics holds the headline counts for a run. AnomalyRate is a
// percentage rounded to two decimals.
type RunStatistics struct {
	TotalTransactions int     `json:"total_transactions"`
	AnomaliesDetected int     `json:"anomalies_detected"`
	AnomalyRate       float64 `json:"anomaly_rate"`
	AlertsCreated     int     `json:"alerts_created"`
	CasesBuilt        int     `json:"cases_built"`
}

// QualityNote surfaces a non-fatal recovery: a data-quality clamp or
// documented default applied during feature computation, or a failed
// delivery to an optional sink after the canonical outputs were
// written. Recoveries never fail the run; they are reported here
// instead.
type QualityNote struct {
	Kind   string `json:"kind"`
	TxnID  int64  `json:"txn_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Detail string `json:"detail"`
}

// Quality note kinds.
const (
	NoteMissingProfile   = "missing_profile"
	NoteFailedLoginClamp = "failed_login_clamp"
	NoteSinkDelivery     = "sink_delivery"
)
