package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supplyscope/supply-cli/internal/model"
)

func decimalPtr(t *testing.T, s string) *model.Decimal {
	t.Helper()
	d, err := model.ParseDecimal(s)
	require.NoError(t, err)
	return &d
}

func intPtr(n int) *int { return &n }

func testCandidate(t *testing.T, provider, modelName string) model.SupplyCandidate {
	t.Helper()
	return model.SupplyCandidate{
		Provider:      provider,
		ModelName:     modelName,
		PricingInput:  decimalPtr(t, "0.03"),
		PricingOutput: decimalPtr(t, "0.06"),
		ContextWindow: intPtr(200_000),
		Confidence:    0.85,
		SourceLabel:   "official pricing page",
	}
}

func TestWriter_CreateIsNotAudited(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	w := NewWriter(st)

	result, err := w.Merge(ctx, []model.SupplyCandidate{testCandidate(t, "anthropic", "claude 3.5-sonnet")}, "sess-1")
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, ActionCreated, result.Outcomes[0].Action)
	assert.Equal(t, 1, result.Created)

	entry, err := st.GetEntry(ctx, "anthropic", "claude 3.5-sonnet")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 0.85, entry.ConfidenceScore)

	changes, err := st.ListChanges(ctx, entry.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, changes, "entry creation must not produce audit rows")
}

func TestWriter_UpdateAuditsChangedPricingFields(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	w := NewWriter(st)

	first := testCandidate(t, "anthropic", "claude 3.5-sonnet")
	_, err := w.Merge(ctx, []model.SupplyCandidate{first}, "sess-1")
	require.NoError(t, err)

	second := first
	second.PricingInput = decimalPtr(t, "0.05") // changed
	// PricingOutput unchanged at 0.06.

	result, err := w.Merge(ctx, []model.SupplyCandidate{second}, "sess-2")
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, ActionUpdated, result.Outcomes[0].Action)
	assert.Equal(t, []string{model.FieldPricingInput}, result.Outcomes[0].Changes)

	entry, err := st.GetEntry(ctx, "anthropic", "claude 3.5-sonnet")
	require.NoError(t, err)
	changes, err := st.ListChanges(ctx, entry.ID, 10)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, model.FieldPricingInput, changes[0].Field)
	assert.Equal(t, "0.03", changes[0].OldValue)
	assert.Equal(t, "0.05", changes[0].NewValue)
	assert.Equal(t, "sess-2", changes[0].SessionID)
	assert.Equal(t, model.ChangeActor, changes[0].Actor)
}

func TestWriter_SecondIdenticalMergeIsIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	w := NewWriter(st)

	cand := testCandidate(t, "openai", "gpt-4.1")
	_, err := w.Merge(ctx, []model.SupplyCandidate{cand}, "sess-1")
	require.NoError(t, err)

	result, err := w.Merge(ctx, []model.SupplyCandidate{cand}, "sess-2")
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, ActionUnchanged, result.Outcomes[0].Action)
	assert.Empty(t, result.Outcomes[0].Changes)

	entry, err := st.GetEntry(ctx, "openai", "gpt-4.1")
	require.NoError(t, err)
	changes, err := st.ListChanges(ctx, entry.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestWriter_ContextWindowIsStampedNotAudited(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	w := NewWriter(st)

	first := testCandidate(t, "google", "gemini 2.0")
	_, err := w.Merge(ctx, []model.SupplyCandidate{first}, "sess-1")
	require.NoError(t, err)

	second := first
	second.ContextWindow = intPtr(1_000_000)

	result, err := w.Merge(ctx, []model.SupplyCandidate{second}, "sess-2")
	require.NoError(t, err)
	assert.Equal(t, ActionUnchanged, result.Outcomes[0].Action)

	entry, err := st.GetEntry(ctx, "google", "gemini 2.0")
	require.NoError(t, err)
	require.NotNil(t, entry.ContextWindow)
	assert.Equal(t, 1_000_000, *entry.ContextWindow, "context window is updated on the entry")

	changes, err := st.ListChanges(ctx, entry.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, changes, "context window changes are not audited")
}

func TestWriter_NilCandidateFieldsAreNotChanges(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	w := NewWriter(st)

	first := testCandidate(t, "meta", "llama 3")
	_, err := w.Merge(ctx, []model.SupplyCandidate{first}, "sess-1")
	require.NoError(t, err)

	// A later run that observed no pricing must not erase stored prices.
	second := model.SupplyCandidate{
		Provider:      "meta",
		ModelName:     "llama 3",
		ContextWindow: intPtr(128_000),
		Confidence:    0.8,
		SourceLabel:   "docs",
	}
	result, err := w.Merge(ctx, []model.SupplyCandidate{second}, "sess-2")
	require.NoError(t, err)
	assert.Equal(t, ActionUnchanged, result.Outcomes[0].Action)

	entry, err := st.GetEntry(ctx, "meta", "llama 3")
	require.NoError(t, err)
	require.NotNil(t, entry.PricingInput)
	assert.Equal(t, int64(30_000), entry.PricingInput.Micros())
	require.NotNil(t, entry.PricingOutput)
}

func TestWriter_MixedCreateAndUpdateBatch(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	w := NewWriter(st)

	good := testCandidate(t, "anthropic", "claude 3.5-sonnet")
	require.NoError(t, st.InsertEntry(ctx, testEntry("openai", "gpt-4.1")))

	update := testCandidate(t, "openai", "gpt-4.1")
	update.PricingInput = decimalPtr(t, "0.99")

	result, err := w.Merge(ctx, []model.SupplyCandidate{good, update}, "sess-1")
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, ActionCreated, result.Outcomes[0].Action)
	assert.Equal(t, ActionUpdated, result.Outcomes[1].Action)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
}

// faultyStore wraps a Store and fails InsertEntry for one provider.
type faultyStore struct {
	Store
	failProvider string
}

func (f *faultyStore) InsertEntry(ctx context.Context, entry *model.CatalogEntry) error {
	if entry.Provider == f.failProvider {
		return assert.AnError
	}
	return f.Store.InsertEntry(ctx, entry)
}

func (f *faultyStore) InBatch(ctx context.Context, fn func(Store) error) error {
	return f.Store.InBatch(ctx, func(tx Store) error {
		return fn(&faultyStore{Store: tx, failProvider: f.failProvider})
	})
}

func TestWriter_OneFailureDoesNotBlockSiblings(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	w := NewWriter(&faultyStore{Store: st, failProvider: "openai"})

	bad := testCandidate(t, "openai", "gpt-4.1")
	good := testCandidate(t, "anthropic", "claude 3.5-sonnet")

	result, err := w.Merge(ctx, []model.SupplyCandidate{bad, good}, "sess-1")
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, ActionFailed, result.Outcomes[0].Action)
	assert.NotEmpty(t, result.Outcomes[0].Err)
	assert.Equal(t, ActionCreated, result.Outcomes[1].Action)

	// The surviving candidate committed.
	entry, err := st.GetEntry(ctx, "anthropic", "claude 3.5-sonnet")
	require.NoError(t, err)
	require.NotNil(t, entry)
}

func TestWriter_AllFailedBatchRollsBack(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	w := NewWriter(&faultyStore{Store: st, failProvider: "openai"})

	result, err := w.Merge(ctx, []model.SupplyCandidate{testCandidate(t, "openai", "gpt-4.1")}, "sess-1")
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, ActionFailed, result.Outcomes[0].Action)
	assert.Equal(t, 0, result.Created)
}

func TestWriter_EmptyBatch(t *testing.T) {
	st := newTestSQLiteStore(t)
	w := NewWriter(st)

	result, err := w.Merge(context.Background(), nil, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, result.Outcomes)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 0, result.Updated)
}
