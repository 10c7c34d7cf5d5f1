package deepresearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Init(t *testing.T) {
	var gotAuth string
	var gotBody InitRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/sessions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(InitResponse{SessionID: "sess-abc", Plan: "1. search the web"})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0))

	resp, err := c.Init(context.Background(), "research claude pricing")
	require.NoError(t, err)
	assert.Equal(t, "sess-abc", resp.SessionID)
	assert.Equal(t, "1. search the web", resp.Plan)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "research claude pricing", gotBody.Query)
}

func TestClient_Init_RejectsEmptySessionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(InitResponse{SessionID: "", Plan: "plan"})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0))

	_, err := c.Init(context.Background(), "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no session id")
}

func TestClient_Continue_SendsTrigger(t *testing.T) {
	var gotPath string
	var gotBody ContinueRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(ResultBundle{
			Status:  "completed",
			Plan:    "plan",
			Summary: "summary",
			QuestionsAnswered: []QA{
				{Question: "q", Answer: "a"},
			},
			Citations: []Citation{{Source: "docs", URL: "https://example.com"}},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0))

	bundle, err := c.Continue(context.Background(), "sess-abc")
	require.NoError(t, err)

	assert.Equal(t, "/v1/sessions/sess-abc/messages", gotPath)
	assert.Equal(t, TriggerStartResearch, gotBody.Message)
	assert.Equal(t, "Start Research", gotBody.Message)
	assert.Equal(t, "completed", bundle.Status)
	require.Len(t, bundle.QuestionsAnswered, 1)
	assert.Equal(t, "a", bundle.QuestionsAnswered[0].Answer)
}

func TestClient_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0))

	_, err := c.Init(context.Background(), "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
