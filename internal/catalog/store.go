// Package catalog persists supply facts, their change audit, research
// sessions, and schedules, and merges extraction candidates into the
// catalog.
package catalog

import (
	"context"

	"github.com/supplyscope/supply-cli/internal/model"
)

// Store defines the persistence interface for the supply catalog.
// Implementations must make InBatch transactional: everything written inside
// fn commits together, or not at all when fn returns an error.
type Store interface {
	// Catalog entries, keyed by the natural key (provider, model_name).
	GetEntry(ctx context.Context, provider, modelName string) (*model.CatalogEntry, error)
	InsertEntry(ctx context.Context, entry *model.CatalogEntry) error
	UpdateEntry(ctx context.Context, entry *model.CatalogEntry) error
	ListEntries(ctx context.Context, provider string) ([]model.CatalogEntry, error)

	// Append-only change audit.
	AppendChange(ctx context.Context, change model.ChangeLogEntry) error
	ListChanges(ctx context.Context, catalogEntryID string, limit int) ([]model.ChangeLogEntry, error)

	// Research sessions (upsert by id).
	SaveSession(ctx context.Context, session *model.ResearchSession) error
	ListSessions(ctx context.Context, limit int) ([]model.ResearchSession, error)

	// Schedules (upsert by name).
	SaveSchedule(ctx context.Context, schedule *model.Schedule) error
	ListSchedules(ctx context.Context) ([]model.Schedule, error)

	// InBatch runs fn against a transaction-scoped Store.
	InBatch(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// GetEntry implementations return (nil, nil) when no entry matches the key.

// decimalString renders an optional price for storage; nil maps to SQL NULL.
func decimalString(d *model.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
