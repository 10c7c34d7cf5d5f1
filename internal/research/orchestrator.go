// Package research drives the two-phase external session protocol and owns
// the session state machine.
package research

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/supplyscope/supply-cli/internal/model"
	"github.com/supplyscope/supply-cli/internal/progress"
	"github.com/supplyscope/supply-cli/pkg/deepresearch"
)

// Orchestrator walks a session through init → continue against the research
// backend. Failures in either phase are recorded on the session and returned
// to the caller; there is no retry or backoff at this layer — retry policy,
// if any, belongs to the caller.
type Orchestrator struct {
	backend deepresearch.Client
	sink    progress.Sink
}

// New creates an Orchestrator. sink may be nil.
func New(backend deepresearch.Client, sink progress.Sink) *Orchestrator {
	return &Orchestrator{backend: backend, sink: sink}
}

// Run executes both protocol phases for a pending session, mutating it
// through researching to completed or failed exactly once.
func (o *Orchestrator) Run(ctx context.Context, session *model.ResearchSession) (*deepresearch.ResultBundle, error) {
	log := zap.L().With(zap.String("session_id", session.ID))

	progress.Notify(ctx, o.sink, progress.Event{
		Status:  progress.StatusResearching,
		Message: "starting research session",
	})

	// Phase 1: send the real query, obtain the external session id and plan.
	initResp, err := o.backend.Init(ctx, session.QueryText)
	if err != nil {
		return nil, o.fail(ctx, session, eris.Wrap(err, "research: init phase"))
	}
	if err := session.StartResearching(initResp.SessionID); err != nil {
		return nil, o.fail(ctx, session, err)
	}

	log.Info("research: session opened",
		zap.String("external_session_id", initResp.SessionID),
	)

	// Phase 2: fire the fixed trigger and collect the result bundle.
	bundle, err := o.backend.Continue(ctx, session.ExternalSessionID)
	if err != nil {
		return nil, o.fail(ctx, session, eris.Wrap(err, "research: continue phase"))
	}

	if err := session.Complete(bundle.Plan, toQAs(bundle.QuestionsAnswered), toCitations(bundle.Citations), bundle.Summary); err != nil {
		return nil, o.fail(ctx, session, err)
	}

	log.Info("research: session completed",
		zap.Int("answers", len(bundle.QuestionsAnswered)),
		zap.Int("citations", len(bundle.Citations)),
	)

	return bundle, nil
}

// fail records the error on the session (unless it is already terminal),
// emits a failed event, and returns the error for the caller to propagate.
func (o *Orchestrator) fail(ctx context.Context, session *model.ResearchSession, err error) error {
	if !session.Terminal() {
		_ = session.Fail(err.Error())
	}
	progress.Notify(ctx, o.sink, progress.Event{
		Status:  progress.StatusFailed,
		Message: err.Error(),
	})
	return err
}

func toQAs(in []deepresearch.QA) []model.QA {
	out := make([]model.QA, len(in))
	for i, qa := range in {
		out[i] = model.QA{Question: qa.Question, Answer: qa.Answer}
	}
	return out
}

func toCitations(in []deepresearch.Citation) []model.Citation {
	out := make([]model.Citation, len(in))
	for i, c := range in {
		out[i] = model.Citation{Source: c.Source, URL: c.URL}
	}
	return out
}
