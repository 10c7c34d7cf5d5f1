package model

import "time"

// Audited catalog field names recorded in the change log.
const (
	FieldPricingInput  = "pricing_input"
	FieldPricingOutput = "pricing_output"
)

// ChangeActor is the actor stamped on change log entries written by the
// research pipeline.
const ChangeActor = "research_pipeline"

// SupplyCandidate is a supply fact mined from a research answer. It is never
// persisted directly; the catalog writer diffs it against the stored entry.
type SupplyCandidate struct {
	Provider      string    `json:"provider"`
	ModelName     string    `json:"model_name"`
	PricingInput  *Decimal  `json:"pricing_input,omitempty"`  // USD per 1M input tokens
	PricingOutput *Decimal  `json:"pricing_output,omitempty"` // USD per 1M output tokens
	ContextWindow *int      `json:"context_window,omitempty"` // tokens
	Confidence    float64   `json:"confidence"`
	SourceLabel   string    `json:"source_label"`
	ObservedAt    time.Time `json:"observed_at"`
}

// CatalogEntry is the persisted supply record for one model, keyed uniquely
// by (provider, model_name).
type CatalogEntry struct {
	ID              string    `json:"id"`
	Provider        string    `json:"provider"`
	ModelName       string    `json:"model_name"`
	PricingInput    *Decimal  `json:"pricing_input,omitempty"`
	PricingOutput   *Decimal  `json:"pricing_output,omitempty"`
	ContextWindow   *int      `json:"context_window,omitempty"`
	ResearchSource  string    `json:"research_source,omitempty"`
	ConfidenceScore float64   `json:"confidence_score"`
	LastUpdated     time.Time `json:"last_updated"`
	CreatedAt       time.Time `json:"created_at"`
}

// ChangeLogEntry is one append-only audit record of a field-level mutation
// to a catalog entry. Entry creation is not audited, only mutations.
type ChangeLogEntry struct {
	ID             string    `json:"id"`
	CatalogEntryID string    `json:"catalog_entry_id"`
	Field          string    `json:"field"`
	OldValue       string    `json:"old_value"`
	NewValue       string    `json:"new_value"`
	SessionID      string    `json:"session_id"`
	Actor          string    `json:"actor"`
	Timestamp      time.Time `json:"timestamp"`
}
