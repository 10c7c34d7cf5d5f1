package research

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/supplyscope/supply-cli/internal/model"
	"github.com/supplyscope/supply-cli/internal/progress"
	"github.com/supplyscope/supply-cli/pkg/deepresearch"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Init(ctx context.Context, query string) (*deepresearch.InitResponse, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deepresearch.InitResponse), args.Error(1)
}

func (m *mockBackend) Continue(ctx context.Context, sessionID string) (*deepresearch.ResultBundle, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deepresearch.ResultBundle), args.Error(1)
}

type recordingSink struct {
	events []progress.Event
}

func (s *recordingSink) Notify(_ context.Context, ev progress.Event) {
	s.events = append(s.events, ev)
}

func TestOrchestrator_Run_Success(t *testing.T) {
	ctx := context.Background()
	session := model.NewResearchSession("query text")

	backend := &mockBackend{}
	backend.On("Init", mock.Anything, "query text").
		Return(&deepresearch.InitResponse{SessionID: "ext-42", Plan: "1. search"}, nil)
	backend.On("Continue", mock.Anything, "ext-42").
		Return(&deepresearch.ResultBundle{
			Status: "completed",
			Plan:   "1. search",
			QuestionsAnswered: []deepresearch.QA{
				{Question: "q", Answer: "a"},
			},
			Citations: []deepresearch.Citation{{Source: "docs", URL: "https://example.com"}},
			Summary:   "done",
		}, nil)

	sink := &recordingSink{}
	bundle, err := New(backend, sink).Run(ctx, session)

	require.NoError(t, err)
	require.NotNil(t, bundle)
	assert.Equal(t, "done", bundle.Summary)

	assert.Equal(t, model.SessionCompleted, session.Status)
	assert.Equal(t, "ext-42", session.ExternalSessionID)
	assert.Equal(t, "1. search", session.Plan)
	require.Len(t, session.RawAnswers, 1)
	assert.Equal(t, "a", session.RawAnswers[0].Answer)
	require.Len(t, session.Citations, 1)
	assert.Equal(t, "docs", session.Citations[0].Source)

	backend.AssertExpectations(t)
}

func TestOrchestrator_Run_InitFails(t *testing.T) {
	ctx := context.Background()
	session := model.NewResearchSession("query text")

	backend := &mockBackend{}
	backend.On("Init", mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	sink := &recordingSink{}
	bundle, err := New(backend, sink).Run(ctx, session)

	require.Error(t, err)
	assert.Nil(t, bundle)
	assert.Equal(t, model.SessionFailed, session.Status)
	assert.NotEmpty(t, session.Error)

	// Continue must never fire when init failed.
	backend.AssertNotCalled(t, "Continue", mock.Anything, mock.Anything)

	var last progress.Event
	require.NotEmpty(t, sink.events)
	last = sink.events[len(sink.events)-1]
	assert.Equal(t, progress.StatusFailed, last.Status)
}

func TestOrchestrator_Run_ContinueFails(t *testing.T) {
	ctx := context.Background()
	session := model.NewResearchSession("query text")

	backend := &mockBackend{}
	backend.On("Init", mock.Anything, mock.Anything).
		Return(&deepresearch.InitResponse{SessionID: "ext-7", Plan: "plan"}, nil)
	backend.On("Continue", mock.Anything, "ext-7").
		Return(nil, assert.AnError)

	bundle, err := New(backend, nil).Run(ctx, session)

	require.Error(t, err)
	assert.Nil(t, bundle)
	assert.Equal(t, model.SessionFailed, session.Status)
	// The external id from phase 1 is kept for post-mortem.
	assert.Equal(t, "ext-7", session.ExternalSessionID)
}

func TestOrchestrator_Run_EmptyExternalID(t *testing.T) {
	ctx := context.Background()
	session := model.NewResearchSession("query text")

	backend := &mockBackend{}
	backend.On("Init", mock.Anything, mock.Anything).
		Return(&deepresearch.InitResponse{SessionID: "", Plan: "plan"}, nil)

	_, err := New(backend, nil).Run(ctx, session)

	require.Error(t, err)
	assert.Equal(t, model.SessionFailed, session.Status)
	backend.AssertNotCalled(t, "Continue", mock.Anything, mock.Anything)
}
