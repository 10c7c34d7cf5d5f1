package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/supplyscope/supply-cli/internal/model"
)

// Action describes what the writer did with one candidate.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
	ActionFailed    Action = "failed"
)

// Outcome is the per-candidate result of a merge.
type Outcome struct {
	Provider  string   `json:"provider"`
	ModelName string   `json:"model_name"`
	Action    Action   `json:"action"`
	Changes   []string `json:"changes,omitempty"`
	Err       string   `json:"error,omitempty"`
}

// MergeResult summarizes one batch merge.
type MergeResult struct {
	Outcomes []Outcome `json:"outcomes"`
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
}

// errNothingMerged forces a rollback when every candidate in a batch failed.
var errNothingMerged = eris.New("catalog: no candidates merged")

// Writer merges research candidates into the catalog. Writes for the same
// (provider, model_name) key are serialized so concurrent merges cannot
// interleave the read-diff-write cycle for one entry.
type Writer struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewWriter(store Store) *Writer {
	return &Writer{store: store, locks: make(map[string]*sync.Mutex)}
}

func (w *Writer) keyLock(provider, modelName string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := provider + "/" + modelName
	lock, ok := w.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		w.locks[key] = lock
	}
	return lock
}

// Merge applies candidates to the catalog in one transaction. Each candidate
// is handled independently: a failure is recorded in its Outcome and does not
// stop the rest. The transaction commits when at least one candidate
// succeeded; a batch where every candidate failed rolls back.
//
// Only pricing fields are diffed and audited. Context window, source and
// confidence are stamped on the entry but never produce change log rows, and
// entry creation itself is not audited.
func (w *Writer) Merge(ctx context.Context, candidates []model.SupplyCandidate, sessionID string) (*MergeResult, error) {
	result := &MergeResult{}

	err := w.store.InBatch(ctx, func(tx Store) error {
		for _, cand := range candidates {
			outcome := w.mergeOne(ctx, tx, cand, sessionID)
			result.Outcomes = append(result.Outcomes, outcome)
			switch outcome.Action {
			case ActionCreated:
				result.Created++
			case ActionUpdated:
				result.Updated++
			}
		}
		if len(result.Outcomes) > 0 && allFailed(result.Outcomes) {
			return errNothingMerged
		}
		return nil
	})
	if err != nil && !eris.Is(err, errNothingMerged) {
		return nil, eris.Wrap(err, "catalog: merge batch")
	}
	return result, nil
}

func (w *Writer) mergeOne(ctx context.Context, tx Store, cand model.SupplyCandidate, sessionID string) Outcome {
	lock := w.keyLock(cand.Provider, cand.ModelName)
	lock.Lock()
	defer lock.Unlock()

	outcome := Outcome{Provider: cand.Provider, ModelName: cand.ModelName}

	existing, err := tx.GetEntry(ctx, cand.Provider, cand.ModelName)
	if err != nil {
		zap.L().Error("catalog merge: lookup failed",
			zap.String("provider", cand.Provider),
			zap.String("model", cand.ModelName),
			zap.Error(err))
		outcome.Action = ActionFailed
		outcome.Err = err.Error()
		return outcome
	}

	now := time.Now().UTC()
	if existing == nil {
		entry := &model.CatalogEntry{
			ID:              uuid.NewString(),
			Provider:        cand.Provider,
			ModelName:       cand.ModelName,
			PricingInput:    cand.PricingInput,
			PricingOutput:   cand.PricingOutput,
			ContextWindow:   cand.ContextWindow,
			ResearchSource:  cand.SourceLabel,
			ConfidenceScore: cand.Confidence,
			LastUpdated:     now,
			CreatedAt:       now,
		}
		if err := tx.InsertEntry(ctx, entry); err != nil {
			zap.L().Error("catalog merge: insert failed",
				zap.String("provider", cand.Provider),
				zap.String("model", cand.ModelName),
				zap.Error(err))
			outcome.Action = ActionFailed
			outcome.Err = err.Error()
			return outcome
		}
		outcome.Action = ActionCreated
		return outcome
	}

	changes := diffPricing(existing, cand)

	existing.ContextWindow = coalesceInt(cand.ContextWindow, existing.ContextWindow)
	if cand.SourceLabel != "" {
		existing.ResearchSource = cand.SourceLabel
	}
	existing.ConfidenceScore = cand.Confidence
	existing.LastUpdated = now
	if cand.PricingInput != nil {
		existing.PricingInput = cand.PricingInput
	}
	if cand.PricingOutput != nil {
		existing.PricingOutput = cand.PricingOutput
	}

	if err := tx.UpdateEntry(ctx, existing); err != nil {
		zap.L().Error("catalog merge: update failed",
			zap.String("provider", cand.Provider),
			zap.String("model", cand.ModelName),
			zap.Error(err))
		outcome.Action = ActionFailed
		outcome.Err = err.Error()
		return outcome
	}

	for _, ch := range changes {
		logEntry := model.ChangeLogEntry{
			ID:             uuid.NewString(),
			CatalogEntryID: existing.ID,
			Field:          ch.field,
			OldValue:       ch.oldValue,
			NewValue:       ch.newValue,
			SessionID:      sessionID,
			Actor:          model.ChangeActor,
			Timestamp:      now,
		}
		if err := tx.AppendChange(ctx, logEntry); err != nil {
			zap.L().Error("catalog merge: change log append failed",
				zap.String("entry_id", existing.ID),
				zap.String("field", ch.field),
				zap.Error(err))
			outcome.Action = ActionFailed
			outcome.Err = err.Error()
			return outcome
		}
		outcome.Changes = append(outcome.Changes, ch.field)
	}

	if len(changes) > 0 {
		outcome.Action = ActionUpdated
	} else {
		outcome.Action = ActionUnchanged
	}
	return outcome
}

type fieldChange struct {
	field    string
	oldValue string
	newValue string
}

// diffPricing compares only the two audited pricing fields. A nil candidate
// value means "not observed" and is never treated as a change.
func diffPricing(existing *model.CatalogEntry, cand model.SupplyCandidate) []fieldChange {
	var changes []fieldChange
	if ch, ok := diffDecimal(model.FieldPricingInput, existing.PricingInput, cand.PricingInput); ok {
		changes = append(changes, ch)
	}
	if ch, ok := diffDecimal(model.FieldPricingOutput, existing.PricingOutput, cand.PricingOutput); ok {
		changes = append(changes, ch)
	}
	return changes
}

func diffDecimal(field string, oldVal, newVal *model.Decimal) (fieldChange, bool) {
	if newVal == nil {
		return fieldChange{}, false
	}
	if oldVal != nil && oldVal.Equal(*newVal) {
		return fieldChange{}, false
	}
	ch := fieldChange{field: field, newValue: newVal.String()}
	if oldVal != nil {
		ch.oldValue = oldVal.String()
	}
	return ch, true
}

func coalesceInt(a, b *int) *int {
	if a != nil {
		return a
	}
	return b
}

func allFailed(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if o.Action != ActionFailed {
			return false
		}
	}
	return true
}
