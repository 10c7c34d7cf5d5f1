package model

// IntentKind identifies the research goal inferred from a free-text request.
type IntentKind string

const (
	IntentPricing        IntentKind = "pricing"
	IntentCapabilities   IntentKind = "capabilities"
	IntentAvailability   IntentKind = "availability"
	IntentNewModel       IntentKind = "new_model"
	IntentDeprecation    IntentKind = "deprecation"
	IntentMarketOverview IntentKind = "market_overview"
)

// Timeframe scopes a research request in time.
type Timeframe string

const (
	TimeframeLatest  Timeframe = "latest"
	TimeframeMonthly Timeframe = "monthly"
	TimeframeWeekly  Timeframe = "weekly"
	TimeframeCurrent Timeframe = "current"
)

// ResearchIntent is the structured interpretation of a free-text research
// request. It is created once per pipeline invocation and never mutated.
type ResearchIntent struct {
	Kind      IntentKind `json:"kind"`
	Provider  string     `json:"provider,omitempty"`
	ModelName string     `json:"model_name,omitempty"`
	Timeframe Timeframe  `json:"timeframe"`
	RawText   string     `json:"raw_text"`
}
