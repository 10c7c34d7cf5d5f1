package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// SessionStatus represents the lifecycle state of a research session.
type SessionStatus string

const (
	SessionPending     SessionStatus = "pending"
	SessionResearching SessionStatus = "researching"
	SessionCompleted   SessionStatus = "completed"
	SessionFailed      SessionStatus = "failed"
)

// QA is a single question/answer pair returned by the research backend.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Citation is a source reference attached to a research result.
type Citation struct {
	Source string `json:"source"`
	URL    string `json:"url"`
}

// ResearchSession is the unit-of-work record for one pipeline invocation.
// It is owned exclusively by the pipeline run that created it and moves
// through pending → researching → completed|failed exactly once.
type ResearchSession struct {
	ID                string        `json:"id"`
	QueryText         string        `json:"query_text"`
	Status            SessionStatus `json:"status"`
	ExternalSessionID string        `json:"external_session_id,omitempty"`
	Plan              string        `json:"plan,omitempty"`
	RawAnswers        []QA          `json:"raw_answers,omitempty"`
	Citations         []Citation    `json:"citations,omitempty"`
	ProcessedSummary  string        `json:"processed_summary,omitempty"`
	Error             string        `json:"error,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
}

// NewResearchSession creates a pending session for the given query.
func NewResearchSession(query string) *ResearchSession {
	return &ResearchSession{
		ID:        uuid.New().String(),
		QueryText: query,
		Status:    SessionPending,
		CreatedAt: time.Now().UTC(),
	}
}

// StartResearching records the external session id obtained in phase 1 and
// moves the session from pending to researching.
func (s *ResearchSession) StartResearching(externalID string) error {
	if s.Status != SessionPending {
		return eris.Errorf("session %s: cannot start researching from status %s", s.ID, s.Status)
	}
	if externalID == "" {
		return eris.Errorf("session %s: empty external session id", s.ID)
	}
	s.ExternalSessionID = externalID
	s.Status = SessionResearching
	return nil
}

// Complete stores the phase 2 result and moves the session to completed.
func (s *ResearchSession) Complete(plan string, answers []QA, citations []Citation, summary string) error {
	if s.Status != SessionResearching {
		return eris.Errorf("session %s: cannot complete from status %s", s.ID, s.Status)
	}
	s.Plan = plan
	s.RawAnswers = answers
	s.Citations = citations
	s.ProcessedSummary = summary
	s.Status = SessionCompleted
	now := time.Now().UTC()
	s.CompletedAt = &now
	return nil
}

// Fail records an error message and moves the session to failed. Allowed from
// pending or researching; either phase of the external protocol can raise.
func (s *ResearchSession) Fail(msg string) error {
	if s.Status == SessionCompleted || s.Status == SessionFailed {
		return eris.Errorf("session %s: cannot fail from status %s", s.ID, s.Status)
	}
	s.Error = msg
	s.Status = SessionFailed
	now := time.Now().UTC()
	s.CompletedAt = &now
	return nil
}

// Terminal reports whether the session has reached completed or failed.
func (s *ResearchSession) Terminal() bool {
	return s.Status == SessionCompleted || s.Status == SessionFailed
}
