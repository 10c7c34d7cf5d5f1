package anthropic

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/supplyscope/supply-cli/pkg/deepresearch"
)

const planSystemPrompt = `You are a research assistant. Given a research request, respond with a short numbered plan of the web research steps you would take. Do not perform the research yet.`

const researchSystemPrompt = `Carry out the research plan from the conversation so far. Respond with a single JSON object, no prose around it:
{"status": "completed", "plan": "<the plan>", "questions_answered": [{"question": "...", "answer": "..."}], "citations": [{"source": "...", "url": "..."}], "summary": "..."}`

// Backend adapts the Anthropic messages API to the two-phase research
// protocol. Sessions live in memory for the lifetime of the process; the
// external session id is minted locally and keys the stored conversation.
type Backend struct {
	client    Client
	model     string
	maxTokens int64

	mu       sync.Mutex
	sessions map[string][]Message
}

// NewBackend creates a research backend over the Anthropic API.
func NewBackend(client Client, model string, maxTokens int64) *Backend {
	return &Backend{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		sessions:  make(map[string][]Message),
	}
}

// Init runs phase 1: request a research plan and open a session.
func (b *Backend) Init(ctx context.Context, query string) (*deepresearch.InitResponse, error) {
	resp, err := b.client.CreateMessage(ctx, MessageRequest{
		Model:     b.model,
		MaxTokens: b.maxTokens,
		System:    planSystemPrompt,
		Messages:  []Message{{Role: "user", Content: query}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "anthropic backend: init")
	}

	id := uuid.New().String()
	b.mu.Lock()
	b.sessions[id] = []Message{
		{Role: "user", Content: query},
		{Role: "assistant", Content: resp.Text},
	}
	b.mu.Unlock()

	return &deepresearch.InitResponse{SessionID: id, Plan: resp.Text}, nil
}

// Continue runs phase 2 against a previously opened session.
func (b *Backend) Continue(ctx context.Context, sessionID string) (*deepresearch.ResultBundle, error) {
	b.mu.Lock()
	history, ok := b.sessions[sessionID]
	b.mu.Unlock()
	if !ok {
		return nil, eris.Errorf("anthropic backend: unknown session %s", sessionID)
	}

	messages := append(append([]Message{}, history...), Message{
		Role:    "user",
		Content: deepresearch.TriggerStartResearch,
	})

	resp, err := b.client.CreateMessage(ctx, MessageRequest{
		Model:     b.model,
		MaxTokens: b.maxTokens,
		System:    researchSystemPrompt,
		Messages:  messages,
	})
	if err != nil {
		return nil, eris.Wrap(err, "anthropic backend: continue")
	}

	bundle, err := parseBundle(resp.Text)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	delete(b.sessions, sessionID)
	b.mu.Unlock()

	return bundle, nil
}

// parseBundle extracts the result JSON from the model output, tolerating
// markdown fences and surrounding prose.
func parseBundle(text string) (*deepresearch.ResultBundle, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, eris.New("anthropic backend: no JSON object in response")
	}

	var bundle deepresearch.ResultBundle
	if err := json.Unmarshal([]byte(text[start:end+1]), &bundle); err != nil {
		return nil, eris.Wrap(err, "anthropic backend: unmarshal result")
	}
	if bundle.Status == "" {
		bundle.Status = "completed"
	}
	return &bundle, nil
}
