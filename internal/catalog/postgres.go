package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/supplyscope/supply-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// pgQuerier is the query surface shared by the pool and a transaction.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
	q    pgQuerier
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, q: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS catalog_entries (
	id               TEXT PRIMARY KEY,
	provider         TEXT NOT NULL,
	model_name       TEXT NOT NULL,
	pricing_input    TEXT,
	pricing_output   TEXT,
	context_window   INTEGER,
	research_source  TEXT,
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_updated     TIMESTAMPTZ NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	UNIQUE(provider, model_name)
);

CREATE TABLE IF NOT EXISTS change_log (
	id               TEXT PRIMARY KEY,
	catalog_entry_id TEXT NOT NULL REFERENCES catalog_entries(id),
	field            TEXT NOT NULL,
	old_value        TEXT,
	new_value        TEXT,
	session_id       TEXT,
	actor            TEXT NOT NULL,
	timestamp        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS research_sessions (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	query_text TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS schedules (
	name          TEXT PRIMARY KEY,
	frequency     TEXT NOT NULL,
	research_kind TEXT NOT NULL,
	providers     JSONB NOT NULL,
	enabled       BOOLEAN NOT NULL DEFAULT true,
	hour          INTEGER NOT NULL DEFAULT 0,
	day_of_week   INTEGER NOT NULL DEFAULT 0,
	day_of_month  INTEGER NOT NULL DEFAULT 1,
	last_run      TIMESTAMPTZ,
	next_run      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_catalog_entries_key ON catalog_entries(provider, model_name);
CREATE INDEX IF NOT EXISTS idx_change_log_entry ON change_log(catalog_entry_id);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON research_sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON research_sessions(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.q.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// InBatch runs fn inside one transaction. Nested calls reuse the outer
// transaction.
func (s *PostgresStore) InBatch(ctx context.Context, fn func(Store) error) error {
	if _, inTx := s.q.(pgx.Tx); inTx {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}

	if err := fn(&PostgresStore{pool: s.pool, q: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

func (s *PostgresStore) GetEntry(ctx context.Context, provider, modelName string) (*model.CatalogEntry, error) {
	row := s.q.QueryRow(ctx,
		`SELECT id, provider, model_name, pricing_input, pricing_output, context_window,
		        research_source, confidence_score, last_updated, created_at
		 FROM catalog_entries WHERE provider = $1 AND model_name = $2`,
		provider, modelName,
	)

	entry, err := scanPgEntry(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get entry %s/%s", provider, modelName)
	}
	return entry, nil
}

func (s *PostgresStore) InsertEntry(ctx context.Context, entry *model.CatalogEntry) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO catalog_entries
		 (id, provider, model_name, pricing_input, pricing_output, context_window,
		  research_source, confidence_score, last_updated, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.Provider, entry.ModelName,
		decimalString(entry.PricingInput), decimalString(entry.PricingOutput),
		nullableInt(entry.ContextWindow),
		entry.ResearchSource, entry.ConfidenceScore, entry.LastUpdated, entry.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert entry %s/%s", entry.Provider, entry.ModelName)
}

func (s *PostgresStore) UpdateEntry(ctx context.Context, entry *model.CatalogEntry) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE catalog_entries SET
		 pricing_input = $1, pricing_output = $2, context_window = $3,
		 research_source = $4, confidence_score = $5, last_updated = $6
		 WHERE id = $7`,
		decimalString(entry.PricingInput), decimalString(entry.PricingOutput),
		nullableInt(entry.ContextWindow),
		entry.ResearchSource, entry.ConfidenceScore, entry.LastUpdated, entry.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update entry %s", entry.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("catalog entry not found: %s", entry.ID)
	}
	return nil
}

func (s *PostgresStore) ListEntries(ctx context.Context, provider string) ([]model.CatalogEntry, error) {
	query := `SELECT id, provider, model_name, pricing_input, pricing_output, context_window,
	                 research_source, confidence_score, last_updated, created_at
	          FROM catalog_entries`
	var args []any
	if provider != "" {
		query += ` WHERE provider = $1`
		args = append(args, provider)
	}
	query += ` ORDER BY provider, model_name`

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entries")
	}
	defer rows.Close()

	var entries []model.CatalogEntry
	for rows.Next() {
		entry, scanErr := scanPgEntry(rows.Scan)
		if scanErr != nil {
			return nil, eris.Wrap(scanErr, "postgres: scan entry")
		}
		entries = append(entries, *entry)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list entries iterate")
}

func (s *PostgresStore) AppendChange(ctx context.Context, change model.ChangeLogEntry) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO change_log (id, catalog_entry_id, field, old_value, new_value, session_id, actor, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		change.ID, change.CatalogEntryID, change.Field, change.OldValue, change.NewValue,
		change.SessionID, change.Actor, change.Timestamp,
	)
	return eris.Wrap(err, "postgres: append change")
}

func (s *PostgresStore) ListChanges(ctx context.Context, catalogEntryID string, limit int) ([]model.ChangeLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.Query(ctx,
		`SELECT id, catalog_entry_id, field, old_value, new_value, session_id, actor, timestamp
		 FROM change_log WHERE catalog_entry_id = $1 ORDER BY timestamp DESC LIMIT $2`,
		catalogEntryID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list changes")
	}
	defer rows.Close()

	var changes []model.ChangeLogEntry
	for rows.Next() {
		var c model.ChangeLogEntry
		if err := rows.Scan(&c.ID, &c.CatalogEntryID, &c.Field, &c.OldValue, &c.NewValue, &c.SessionID, &c.Actor, &c.Timestamp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan change")
		}
		changes = append(changes, c)
	}
	return changes, eris.Wrap(rows.Err(), "postgres: list changes iterate")
}

func (s *PostgresStore) SaveSession(ctx context.Context, session *model.ResearchSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal session")
	}

	_, err = s.q.Exec(ctx,
		`INSERT INTO research_sessions (id, status, query_text, data, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET status = excluded.status, data = excluded.data`,
		session.ID, string(session.Status), session.QueryText, data, session.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: save session %s", session.ID)
}

func (s *PostgresStore) ListSessions(ctx context.Context, limit int) ([]model.ResearchSession, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.Query(ctx,
		`SELECT data FROM research_sessions ORDER BY created_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var sessions []model.ResearchSession
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		var sess model.ResearchSession
		if err := json.Unmarshal(data, &sess); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal session")
		}
		sessions = append(sessions, sess)
	}
	return sessions, eris.Wrap(rows.Err(), "postgres: list sessions iterate")
}

func (s *PostgresStore) SaveSchedule(ctx context.Context, schedule *model.Schedule) error {
	providers, err := json.Marshal(schedule.Providers)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal providers")
	}

	_, err = s.q.Exec(ctx,
		`INSERT INTO schedules (name, frequency, research_kind, providers, enabled, hour, day_of_week, day_of_month, last_run, next_run)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (name) DO UPDATE SET
		   frequency = excluded.frequency, research_kind = excluded.research_kind,
		   providers = excluded.providers, enabled = excluded.enabled,
		   hour = excluded.hour, day_of_week = excluded.day_of_week,
		   day_of_month = excluded.day_of_month, last_run = excluded.last_run,
		   next_run = excluded.next_run`,
		schedule.Name, string(schedule.Frequency), string(schedule.ResearchKind), providers,
		schedule.Enabled, schedule.Hour, schedule.DayOfWeek, schedule.DayOfMonth,
		schedule.LastRun, schedule.NextRun,
	)
	return eris.Wrapf(err, "postgres: save schedule %s", schedule.Name)
}

func (s *PostgresStore) ListSchedules(ctx context.Context) ([]model.Schedule, error) {
	rows, err := s.q.Query(ctx,
		`SELECT name, frequency, research_kind, providers, enabled, hour, day_of_week, day_of_month, last_run, next_run
		 FROM schedules ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list schedules")
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		var sc model.Schedule
		var providers []byte
		var lastRun *time.Time
		if err := rows.Scan(&sc.Name, &sc.Frequency, &sc.ResearchKind, &providers, &sc.Enabled,
			&sc.Hour, &sc.DayOfWeek, &sc.DayOfMonth, &lastRun, &sc.NextRun); err != nil {
			return nil, eris.Wrap(err, "postgres: scan schedule")
		}
		if err := json.Unmarshal(providers, &sc.Providers); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal providers")
		}
		sc.LastRun = lastRun
		schedules = append(schedules, sc)
	}
	return schedules, eris.Wrap(rows.Err(), "postgres: list schedules iterate")
}

// scanPgEntry reads one catalog row via the given scan function, shared by
// QueryRow and Query paths.
func scanPgEntry(scan func(dest ...any) error) (*model.CatalogEntry, error) {
	var entry model.CatalogEntry
	var pricingIn, pricingOut, source *string
	var ctxWindow *int

	err := scan(&entry.ID, &entry.Provider, &entry.ModelName, &pricingIn, &pricingOut,
		&ctxWindow, &source, &entry.ConfidenceScore, &entry.LastUpdated, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}

	if pricingIn != nil {
		d, perr := model.ParseDecimal(*pricingIn)
		if perr != nil {
			return nil, perr
		}
		entry.PricingInput = &d
	}
	if pricingOut != nil {
		d, perr := model.ParseDecimal(*pricingOut)
		if perr != nil {
			return nil, perr
		}
		entry.PricingOutput = &d
	}
	entry.ContextWindow = ctxWindow
	if source != nil {
		entry.ResearchSource = *source
	}
	return &entry, nil
}
