package model

import "time"

// Frequency is how often a schedule fires.
type Frequency string

const (
	FreqHourly  Frequency = "hourly"
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
)

// Schedule is a named recurring trigger for the research pipeline.
// LastRun and NextRun are owned by the scheduler; everything else is
// external configuration.
type Schedule struct {
	Name         string     `json:"name" yaml:"name" mapstructure:"name"`
	Frequency    Frequency  `json:"frequency" yaml:"frequency" mapstructure:"frequency"`
	ResearchKind IntentKind `json:"research_kind" yaml:"research_kind" mapstructure:"research_kind"`
	Providers    []string   `json:"providers" yaml:"providers" mapstructure:"providers"`
	Enabled      bool       `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Hour         int        `json:"hour" yaml:"hour" mapstructure:"hour"`
	DayOfWeek    int        `json:"day_of_week" yaml:"day_of_week" mapstructure:"day_of_week"` // 0 = Monday
	DayOfMonth   int        `json:"day_of_month" yaml:"day_of_month" mapstructure:"day_of_month"`
	LastRun      *time.Time `json:"last_run,omitempty" yaml:"-"`
	NextRun      time.Time  `json:"next_run" yaml:"-"`
}
