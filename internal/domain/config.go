package domain

import "time"

// Config holds the complete Sentinel configuration. Values are filled
// from SENTINEL_* environment variables (struct tags below); the CLI
// flags override the pipeline fields they share.
type Config struct {
	Pipeline    PipelineConfig    `envPrefix:"SENTINEL_"`
	CaseScoring CaseScoringConfig `envPrefix:"SENTINEL_CASE_"`
	Store       StoreConfig       `envPrefix:"SENTINEL_STORE_"`
	Bus         EventBusConfig    `envPrefix:"SENTINEL_BUS_"`
	Logging     LoggingConfig     `envPrefix:"SENTINEL_LOG_"`
}

// PipelineConfig holds the per-run operational settings.
type PipelineConfig struct {
	// Mode selects the input form: ModePreAggregated or ModeRawEvents.
	Mode string `env:"MODE" envDefault:"b1"`

	// ModelPath locates the scorer artifact.
	ModelPath string `env:"MODEL" envDefault:"sentinel_model.json"`

	// Threshold overrides the artifact's decision threshold when
	// non-negative; negative means use the artifact default.
	Threshold float64 `env:"THRESHOLD" envDefault:"-1"`

	// InputDir and OutputDir locate the JSON collections.
	InputDir  string `env:"INPUT_DIR" envDefault:"input"`
	OutputDir string `env:"OUTPUT_DIR" envDefault:"output"`

	// RulesPath optionally replaces the built-in fraud-type rule
	// list with a JSON file of ordered rules.
	RulesPath string `env:"RULES_FILE"`

	// Workers bounds the feature-engineering fan-out; zero means one
	// worker per CPU.
	Workers int `env:"WORKERS"`

	// RunDeadline bounds a whole pipeline run; zero disables it.
	RunDeadline time.Duration `env:"RUN_DEADLINE"`
}

// Pipeline input modes.
const (
	// ModePreAggregated consumes transactions carrying pre-computed
	// windowed aggregates.
	ModePreAggregated = "b1"

	// ModeRawEvents consumes raw transactions plus auth and network
	// event logs; the feature engineer computes the aggregates.
	ModeRawEvents = "b2"
)

// ValidMode reports whether m names a pipeline input mode.
func ValidMode(m string) bool {
	return m == ModePreAggregated || m == ModeRawEvents
}

// CaseScoringConfig holds the case score constants. The formula shape
// is fixed for output compatibility; the constants are tunable.
type CaseScoringConfig struct {
	// ScoreCap is the ceiling on a case score.
	ScoreCap int `env:"SCORE_CAP" envDefault:"95"`

	// PerAlertBonus is the score fraction added per member alert.
	PerAlertBonus float64 `env:"PER_ALERT_BONUS" envDefault:"0.05"`

	// BonusCap limits the total alert-count bonus so case volume
	// alone cannot drive a case to maximum severity.
	BonusCap float64 `env:"BONUS_CAP" envDefault:"0.2"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`  // debug, info, warn, error
	Format string `env:"FORMAT" envDefault:"json"` // json, text
}
