// Package pipeline chains classification, query building, research
// orchestration, extraction and the catalog merge into one run.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/supplyscope/supply-cli/internal/catalog"
	"github.com/supplyscope/supply-cli/internal/classify"
	"github.com/supplyscope/supply-cli/internal/extract"
	"github.com/supplyscope/supply-cli/internal/model"
	"github.com/supplyscope/supply-cli/internal/progress"
	"github.com/supplyscope/supply-cli/internal/query"
	"github.com/supplyscope/supply-cli/internal/research"
	"github.com/supplyscope/supply-cli/pkg/deepresearch"
)

// DefaultConfidenceThreshold gates catalog persistence; extractions scoring
// below it are reported but never written.
const DefaultConfidenceThreshold = 0.7

// Pipeline runs one research pass end to end.
type Pipeline struct {
	store        catalog.Store
	orchestrator *research.Orchestrator
	writer       *catalog.Writer
	sink         progress.Sink
	threshold    float64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfidenceThreshold overrides the persistence gate.
func WithConfidenceThreshold(t float64) Option {
	return func(p *Pipeline) {
		if t > 0 {
			p.threshold = t
		}
	}
}

// WithSink sets the progress sink used by the pipeline and the orchestrator.
func WithSink(sink progress.Sink) Option {
	return func(p *Pipeline) { p.sink = sink }
}

func New(store catalog.Store, backend deepresearch.Client, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     store,
		writer:    catalog.NewWriter(store),
		threshold: DefaultConfidenceThreshold,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.orchestrator = research.New(backend, p.sink)
	return p
}

// RunResult is everything one pipeline pass produced.
type RunResult struct {
	SessionID  string                  `json:"session_id"`
	Intent     model.ResearchIntent    `json:"intent"`
	Query      string                  `json:"query"`
	Candidates []model.SupplyCandidate `json:"candidates"`
	Confidence float64                 `json:"confidence"`
	Persisted  bool                    `json:"persisted"`
	Merge      *catalog.MergeResult    `json:"merge,omitempty"`
}

// Run takes raw request text through the full pipeline. The session record is
// persisted at every status transition, so a crash mid-run leaves an
// inspectable trail.
func (p *Pipeline) Run(ctx context.Context, rawText string) (*RunResult, error) {
	progress.Notify(ctx, p.sink, progress.Event{
		Status:  progress.StatusParsing,
		Message: "classifying request",
	})

	intent := classify.Classify(rawText)
	queryText := query.Build(intent)

	log := zap.L().With(
		zap.String("kind", string(intent.Kind)),
		zap.String("provider", intent.Provider),
	)
	log.Info("pipeline: request classified", zap.String("query", queryText))

	session := model.NewResearchSession(queryText)
	if err := p.store.SaveSession(ctx, session); err != nil {
		return nil, eris.Wrap(err, "pipeline: save session")
	}

	result := &RunResult{
		SessionID: session.ID,
		Intent:    intent,
		Query:     queryText,
	}

	bundle, err := p.orchestrator.Run(ctx, session)
	saveErr := p.store.SaveSession(ctx, session)
	if err != nil {
		return nil, err
	}
	if saveErr != nil {
		return nil, eris.Wrap(saveErr, "pipeline: save session")
	}

	progress.Notify(ctx, p.sink, progress.Event{
		Status:  progress.StatusProcessing,
		Message: "extracting supply facts",
	})

	candidates, confidence := extract.Extract(bundle, intent)
	result.Candidates = candidates
	result.Confidence = confidence

	if len(candidates) == 0 {
		log.Info("pipeline: no supply facts extracted", zap.String("session_id", session.ID))
		p.notifyDone(ctx, result)
		return result, nil
	}

	if confidence < p.threshold {
		log.Info("pipeline: confidence below threshold, skipping catalog write",
			zap.Float64("confidence", confidence),
			zap.Float64("threshold", p.threshold),
		)
		p.notifyDone(ctx, result)
		return result, nil
	}

	merge, err := p.writer.Merge(ctx, candidates, session.ID)
	if err != nil {
		return nil, err
	}
	result.Merge = merge
	result.Persisted = merge.Created+merge.Updated > 0

	log.Info("pipeline: catalog merged",
		zap.Int("created", merge.Created),
		zap.Int("updated", merge.Updated),
		zap.Float64("confidence", confidence),
	)

	p.notifyDone(ctx, result)
	return result, nil
}

func (p *Pipeline) notifyDone(ctx context.Context, result *RunResult) {
	progress.Notify(ctx, p.sink, progress.Event{
		Status:  progress.StatusCompleted,
		Message: "research run completed",
		Result:  result,
	})
}

// RunForProvider synthesizes request text for a scheduled run, so scheduled
// and ad-hoc runs go through the same classification path.
func (p *Pipeline) RunForProvider(ctx context.Context, kind model.IntentKind, provider string) error {
	_, err := p.Run(ctx, synthesizeRequest(kind, provider))
	return err
}

func synthesizeRequest(kind model.IntentKind, provider string) string {
	var subject string
	switch kind {
	case model.IntentPricing:
		subject = "pricing"
	case model.IntentCapabilities:
		subject = "capabilities"
	case model.IntentAvailability:
		subject = "availability"
	case model.IntentNewModel:
		subject = "new model releases"
	case model.IntentDeprecation:
		subject = "deprecations"
	default:
		subject = "market overview"
	}
	if provider == "" {
		return fmt.Sprintf("latest %s across all major providers", subject)
	}
	return fmt.Sprintf("latest %s for %s models", subject, strings.ToLower(provider))
}
