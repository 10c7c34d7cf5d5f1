// Package deepresearch drives a stateful external research assistant through
// its two-phase session protocol: Init sends the real query and yields a new
// session id plus an initial plan; Continue sends the fixed trigger string
// against that session id and yields the final result bundle.
package deepresearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.deepresearch.dev"

// TriggerStartResearch is the literal phase 2 message the backend expects.
const TriggerStartResearch = "Start Research"

// Client is the two-phase research backend contract.
type Client interface {
	Init(ctx context.Context, query string) (*InitResponse, error)
	Continue(ctx context.Context, sessionID string) (*ResultBundle, error)
}

// InitRequest is the request body for POST /v1/sessions.
type InitRequest struct {
	Query string `json:"query"`
}

// InitResponse is the phase 1 response.
type InitResponse struct {
	SessionID string `json:"session_id"`
	Plan      string `json:"plan"`
}

// ContinueRequest is the request body for POST /v1/sessions/{id}/messages.
type ContinueRequest struct {
	Message string `json:"message"`
}

// QA is one answered research question.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Citation references a source consulted during research.
type Citation struct {
	Source string `json:"source"`
	URL    string `json:"url"`
}

// ResultBundle is the phase 2 response.
type ResultBundle struct {
	Status            string     `json:"status"`
	Plan              string     `json:"plan"`
	QuestionsAnswered []QA       `json:"questions_answered"`
	Citations         []Citation `json:"citations"`
	Summary           string     `json:"summary"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit throttles outbound calls to rps requests per second.
// Zero or negative disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a research backend client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			// Research sessions are slow; phase 2 can run for minutes.
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(1, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Init(ctx context.Context, query string) (*InitResponse, error) {
	var resp InitResponse
	if err := c.post(ctx, "/v1/sessions", InitRequest{Query: query}, &resp); err != nil {
		return nil, err
	}
	if resp.SessionID == "" {
		return nil, eris.New("deepresearch: init returned no session id")
	}
	return &resp, nil
}

func (c *httpClient) Continue(ctx context.Context, sessionID string) (*ResultBundle, error) {
	var bundle ResultBundle
	err := c.post(ctx, "/v1/sessions/"+sessionID+"/messages", ContinueRequest{Message: TriggerStartResearch}, &bundle)
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (c *httpClient) post(ctx context.Context, path string, reqBody, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "deepresearch: rate limit wait")
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return eris.Wrap(err, "deepresearch: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "deepresearch: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return eris.Wrap(err, "deepresearch: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "deepresearch: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("deepresearch: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "deepresearch: unmarshal response")
	}

	return nil
}
