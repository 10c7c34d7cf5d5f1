package catalog

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/supplyscope/supply-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
	q  sqlQuerier // db normally, tx inside InBatch
}

// sqlQuerier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, q: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS catalog_entries (
	id               TEXT PRIMARY KEY,
	provider         TEXT NOT NULL,
	model_name       TEXT NOT NULL,
	pricing_input    TEXT,
	pricing_output   TEXT,
	context_window   INTEGER,
	research_source  TEXT,
	confidence_score REAL NOT NULL DEFAULT 0,
	last_updated     DATETIME NOT NULL,
	created_at       DATETIME NOT NULL,
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
	timestamp        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS research_sessions (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	query_text TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS schedules (
	name          TEXT PRIMARY KEY,
	frequency     TEXT NOT NULL,
	research_kind TEXT NOT NULL,
	providers     TEXT NOT NULL,
	enabled       INTEGER NOT NULL DEFAULT 1,
	hour          INTEGER NOT NULL DEFAULT 0,
	day_of_week   INTEGER NOT NULL DEFAULT 0,
	day_of_month  INTEGER NOT NULL DEFAULT 1,
	last_run      DATETIME,
	next_run      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_catalog_entries_key ON catalog_entries(provider, model_name);
CREATE INDEX IF NOT EXISTS idx_change_log_entry ON change_log(catalog_entry_id);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON research_sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON research_sessions(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.q.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InBatch runs fn inside one transaction. Nested calls reuse the outer
// transaction.
func (s *SQLiteStore) InBatch(ctx context.Context, fn func(Store) error) error {
	if _, inTx := s.q.(*sql.Tx); inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}

	if err := fn(&SQLiteStore{db: s.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) GetEntry(ctx context.Context, provider, modelName string) (*model.CatalogEntry, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, provider, model_name, pricing_input, pricing_output, context_window,
		        research_source, confidence_score, last_updated, created_at
		 FROM catalog_entries WHERE provider = ? AND model_name = ?`,
		provider, modelName,
	)

	entry, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get entry %s/%s", provider, modelName)
	}
	return entry, nil
}

func (s *SQLiteStore) InsertEntry(ctx context.Context, entry *model.CatalogEntry) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO catalog_entries
		 (id, provider, model_name, pricing_input, pricing_output, context_window,
		  research_source, confidence_score, last_updated, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Provider, entry.ModelName,
		decimalString(entry.PricingInput), decimalString(entry.PricingOutput),
		nullableInt(entry.ContextWindow),
		entry.ResearchSource, entry.ConfidenceScore, entry.LastUpdated, entry.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert entry %s/%s", entry.Provider, entry.ModelName)
}

func (s *SQLiteStore) UpdateEntry(ctx context.Context, entry *model.CatalogEntry) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE catalog_entries SET
		 pricing_input = ?, pricing_output = ?, context_window = ?,
		 research_source = ?, confidence_score = ?, last_updated = ?
		 WHERE id = ?`,
		decimalString(entry.PricingInput), decimalString(entry.PricingOutput),
		nullableInt(entry.ContextWindow),
		entry.ResearchSource, entry.ConfidenceScore, entry.LastUpdated, entry.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update entry %s", entry.ID)
	}
	return checkRowsAffected(res, "catalog entry", entry.ID)
}

func (s *SQLiteStore) ListEntries(ctx context.Context, provider string) ([]model.CatalogEntry, error) {
	query := `SELECT id, provider, model_name, pricing_input, pricing_output, context_window,
	                 research_source, confidence_score, last_updated, created_at
	          FROM catalog_entries`
	var args []any
	if provider != "" {
		query += ` WHERE provider = ?`
		args = append(args, provider)
	}
	query += ` ORDER BY provider, model_name`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entries")
	}
	defer rows.Close()

	var entries []model.CatalogEntry
	for rows.Next() {
		entry, scanErr := scanEntry(rows.Scan)
		if scanErr != nil {
			return nil, eris.Wrap(scanErr, "sqlite: scan entry")
		}
		entries = append(entries, *entry)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list entries iterate")
}

func (s *SQLiteStore) AppendChange(ctx context.Context, change model.ChangeLogEntry) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO change_log (id, catalog_entry_id, field, old_value, new_value, session_id, actor, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		change.ID, change.CatalogEntryID, change.Field, change.OldValue, change.NewValue,
		change.SessionID, change.Actor, change.Timestamp,
	)
	return eris.Wrap(err, "sqlite: append change")
}

func (s *SQLiteStore) ListChanges(ctx context.Context, catalogEntryID string, limit int) ([]model.ChangeLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, catalog_entry_id, field, old_value, new_value, session_id, actor, timestamp
		 FROM change_log WHERE catalog_entry_id = ? ORDER BY timestamp DESC LIMIT ?`,
		catalogEntryID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list changes")
	}
	defer rows.Close()

	var changes []model.ChangeLogEntry
	for rows.Next() {
		var c model.ChangeLogEntry
		if err := rows.Scan(&c.ID, &c.CatalogEntryID, &c.Field, &c.OldValue, &c.NewValue, &c.SessionID, &c.Actor, &c.Timestamp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan change")
		}
		changes = append(changes, c)
	}
	return changes, eris.Wrap(rows.Err(), "sqlite: list changes iterate")
}

func (s *SQLiteStore) SaveSession(ctx context.Context, session *model.ResearchSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal session")
	}

	_, err = s.q.ExecContext(ctx,
		`INSERT INTO research_sessions (id, status, query_text, data, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, data = excluded.data`,
		session.ID, string(session.Status), session.QueryText, string(data), session.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: save session %s", session.ID)
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]model.ResearchSession, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT data FROM research_sessions ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var sessions []model.ResearchSession
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		var sess model.ResearchSession
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal session")
		}
		sessions = append(sessions, sess)
	}
	return sessions, eris.Wrap(rows.Err(), "sqlite: list sessions iterate")
}

func (s *SQLiteStore) SaveSchedule(ctx context.Context, schedule *model.Schedule) error {
	providers, err := json.Marshal(schedule.Providers)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal providers")
	}

	_, err = s.q.ExecContext(ctx,
		`INSERT INTO schedules (name, frequency, research_kind, providers, enabled, hour, day_of_week, day_of_month, last_run, next_run)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   frequency = excluded.frequency, research_kind = excluded.research_kind,
		   providers = excluded.providers, enabled = excluded.enabled,
		   hour = excluded.hour, day_of_week = excluded.day_of_week,
		   day_of_month = excluded.day_of_month, last_run = excluded.last_run,
		   next_run = excluded.next_run`,
		schedule.Name, string(schedule.Frequency), string(schedule.ResearchKind), string(providers),
		schedule.Enabled, schedule.Hour, schedule.DayOfWeek, schedule.DayOfMonth,
		schedule.LastRun, schedule.NextRun,
	)
	return eris.Wrapf(err, "sqlite: save schedule %s", schedule.Name)
}

func (s *SQLiteStore) ListSchedules(ctx context.Context) ([]model.Schedule, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT name, frequency, research_kind, providers, enabled, hour, day_of_week, day_of_month, last_run, next_run
		 FROM schedules ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list schedules")
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		var sc model.Schedule
		var providers string
		var lastRun sql.NullTime
		if err := rows.Scan(&sc.Name, &sc.Frequency, &sc.ResearchKind, &providers, &sc.Enabled,
			&sc.Hour, &sc.DayOfWeek, &sc.DayOfMonth, &lastRun, &sc.NextRun); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan schedule")
		}
		if err := json.Unmarshal([]byte(providers), &sc.Providers); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal providers")
		}
		if lastRun.Valid {
			t := lastRun.Time
			sc.LastRun = &t
		}
		schedules = append(schedules, sc)
	}
	return schedules, eris.Wrap(rows.Err(), "sqlite: list schedules iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullableInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

// scanEntry reads one catalog row via the given scan function, so it works
// for both *sql.Row and *sql.Rows.
func scanEntry(scan func(dest ...any) error) (*model.CatalogEntry, error) {
	var entry model.CatalogEntry
	var pricingIn, pricingOut sql.NullString
	var ctxWindow sql.NullInt64
	var source sql.NullString

	err := scan(&entry.ID, &entry.Provider, &entry.ModelName, &pricingIn, &pricingOut,
		&ctxWindow, &source, &entry.ConfidenceScore, &entry.LastUpdated, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}

	if pricingIn.Valid {
		d, perr := model.ParseDecimal(pricingIn.String)
		if perr != nil {
			return nil, perr
		}
		entry.PricingInput = &d
	}
	if pricingOut.Valid {
		d, perr := model.ParseDecimal(pricingOut.String)
		if perr != nil {
			return nil, perr
		}
		entry.PricingOutput = &d
	}
	if ctxWindow.Valid {
		n := int(ctxWindow.Int64)
		entry.ContextWindow = &n
	}
	if source.Valid {
		entry.ResearchSource = source.String
	}
	return &entry, nil
}
