package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteConfig configures the pool settings for a SQLiteStore, adapted
// to a single-file, single-writer database.
type SQLiteConfig struct {
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultSQLiteConfig returns sane defaults for a local on-disk store.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		DSN:             "file:agentcore.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		MaxOpenConns:    1, // sqlite serializes writers; one conn avoids SQLITE_BUSY churn
		ConnMaxLifetime: 0,
	}
}

// SQLiteStore implements Store on top of modernc.org/sqlite, a pure-Go
// sqlite driver requiring no cgo toolchain.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if absent) a sqlite-backed Store and
// applies its schema.
func OpenSQLiteStore(ctx context.Context, cfg *SQLiteConfig) (*SQLiteStore, error) {
	if cfg == nil {
		cfg = DefaultSQLiteConfig()
	}
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStoreFromDB wraps an already-open *sql.DB, used by contract
// tests that drive the store through go-sqlmock.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	channel     TEXT NOT NULL,
	thread_id   TEXT NOT NULL DEFAULT '',
	metadata    TEXT NOT NULL DEFAULT '{}',
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS conversation_messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversation_messages_conversation
	ON conversation_messages(conversation_id);

CREATE TABLE IF NOT EXISTS job_events (
	id              TEXT PRIMARY KEY,
	job_id          TEXT NOT NULL,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	kind            TEXT NOT NULL,
	payload         TEXT NOT NULL DEFAULT '{}',
	created_at      DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_job_events_job ON job_events(job_id);

CREATE TABLE IF NOT EXISTS sandbox_jobs (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	status          TEXT NOT NULL,
	command         TEXT NOT NULL,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS routines (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	schedule    TEXT NOT NULL,
	command     TEXT NOT NULL,
	enabled     INTEGER NOT NULL DEFAULT 1,
	last_run_at DATETIME,
	next_run_at DATETIME
);

CREATE TABLE IF NOT EXISTS settings (
	user_id TEXT PRIMARY KEY,
	values  TEXT NOT NULL DEFAULT '{}'
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) CreateConversation(ctx context.Context, c *Conversation) error {
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, channel, thread_id, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.UserID, c.Channel, c.ThreadID, string(meta), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, channel, thread_id, metadata, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id)
	var c Conversation
	var meta string
	if err := row.Scan(&c.ID, &c.UserID, &c.Channel, &c.ThreadID, &meta, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get conversation: %w", err)
	}
	if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
		return nil, fmt.Errorf("store: unmarshal metadata: %w", err)
	}
	return &c, nil
}

func (s *SQLiteStore) ListConversations(ctx context.Context, filter ConversationFilter) ([]*Conversation, error) {
	query := `SELECT id, user_id, channel, thread_id, metadata, created_at, updated_at FROM conversations WHERE 1=1`
	args := []any{}
	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.Channel != "" {
		query += ` AND channel = ?`
		args = append(args, filter.Channel)
	}
	query += ` ORDER BY updated_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		var c Conversation
		var meta string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Channel, &c.ThreadID, &meta, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan conversation: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return nil, fmt.Errorf("store: unmarshal metadata: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// conversationExists is used to enforce the no-orphans contract before
// INSERTing a row that references a conversation id, rather than relying
// solely on the sqlite foreign key pragma (which some drivers/DSNs run
// with enforcement off).
func (s *SQLiteStore) conversationExists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: check conversation exists: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, m *ConversationMessage) error {
	ok, err := s.conversationExists(ctx, m.ConversationID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: conversation %q", ErrOrphanedRow, m.ConversationID)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversation_messages (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.ConversationID, m.Role, m.Content, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]*ConversationMessage, error) {
	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM conversation_messages WHERE conversation_id = ?
		ORDER BY created_at ASC
	`
	args := []any{conversationID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	var out []*ConversationMessage
	for rows.Next() {
		var m ConversationMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendJobEvent(ctx context.Context, e *JobEvent) error {
	ok, err := s.conversationExists(ctx, e.ConversationID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: conversation %q", ErrOrphanedRow, e.ConversationID)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO job_events (id, job_id, conversation_id, kind, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.JobID, e.ConversationID, e.Kind, e.Payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: append job event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListJobEvents(ctx context.Context, jobID string) ([]*JobEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, conversation_id, kind, payload, created_at
		FROM job_events WHERE job_id = ? ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("store: list job events: %w", err)
	}
	defer rows.Close()

	var out []*JobEvent
	for rows.Next() {
		var e JobEvent
		if err := rows.Scan(&e.ID, &e.JobID, &e.ConversationID, &e.Kind, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan job event: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertSandboxJob(ctx context.Context, j *SandboxJob) error {
	ok, err := s.conversationExists(ctx, j.ConversationID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: conversation %q", ErrOrphanedRow, j.ConversationID)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sandbox_jobs (id, conversation_id, status, command, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at
	`, j.ID, j.ConversationID, j.Status, j.Command, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert sandbox job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSandboxJob(ctx context.Context, id string) (*SandboxJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, status, command, created_at, updated_at
		FROM sandbox_jobs WHERE id = ?
	`, id)
	var j SandboxJob
	if err := row.Scan(&j.ID, &j.ConversationID, &j.Status, &j.Command, &j.CreatedAt, &j.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get sandbox job: %w", err)
	}
	return &j, nil
}

func (s *SQLiteStore) UpsertRoutine(ctx context.Context, r *Routine) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO routines (id, user_id, schedule, command, enabled, last_run_at, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schedule = excluded.schedule, command = excluded.command,
			enabled = excluded.enabled, last_run_at = excluded.last_run_at,
			next_run_at = excluded.next_run_at
	`, r.ID, r.UserID, r.Schedule, r.Command, r.Enabled, r.LastRunAt, r.NextRunAt)
	if err != nil {
		return fmt.Errorf("store: upsert routine: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListDueRoutines(ctx context.Context, asOf time.Time) ([]*Routine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, schedule, command, enabled, last_run_at, next_run_at
		FROM routines WHERE enabled = 1 AND next_run_at <= ?
		ORDER BY next_run_at ASC
	`, asOf)
	if err != nil {
		return nil, fmt.Errorf("store: list due routines: %w", err)
	}
	defer rows.Close()

	var out []*Routine
	for rows.Next() {
		var r Routine
		var lastRun, nextRun sql.NullTime
		if err := rows.Scan(&r.ID, &r.UserID, &r.Schedule, &r.Command, &r.Enabled, &lastRun, &nextRun); err != nil {
			return nil, fmt.Errorf("store: scan routine: %w", err)
		}
		r.LastRunAt = lastRun.Time
		r.NextRunAt = nextRun.Time
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetSettings(ctx context.Context, userID string) (*Settings, error) {
	row := s.db.QueryRowContext(ctx, `SELECT values FROM settings WHERE user_id = ?`, userID)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return &Settings{UserID: userID, Values: map[string]string{}}, nil
		}
		return nil, fmt.Errorf("store: get settings: %w", err)
	}
	var values map[string]string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("store: unmarshal settings: %w", err)
	}
	return &Settings{UserID: userID, Values: values}, nil
}

func (s *SQLiteStore) PutSettings(ctx context.Context, set *Settings) error {
	raw, err := json.Marshal(set.Values)
	if err != nil {
		return fmt.Errorf("store: marshal settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (user_id, values) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET values = excluded.values
	`, set.UserID, string(raw))
	if err != nil {
		return fmt.Errorf("store: put settings: %w", err)
	}
	return nil
}

// CheckIntegrity implements the no-orphans contract check directly: any
// conversation_messages or job_events row whose conversation_id has no
// matching conversations row is reported by id, prefixed with its table.
func (s *SQLiteStore) CheckIntegrity(ctx context.Context) ([]string, error) {
	var orphans []string

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id FROM conversation_messages m
		LEFT JOIN conversations c ON c.id = m.conversation_id
		WHERE c.id IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("store: check message integrity: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: scan orphan message: %w", err)
		}
		orphans = append(orphans, "conversation_messages:"+id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT e.id FROM job_events e
		LEFT JOIN conversations c ON c.id = e.conversation_id
		WHERE c.id IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("store: check job event integrity: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan orphan job event: %w", err)
		}
		orphans = append(orphans, "job_events:"+id)
	}
	return orphans, rows.Err()
}
