// Package store persists the conversations, messages, job events, sandbox
// jobs, routines, and per-user settings that the reasoning loop and job
// context manager need to survive a restart. The schema is an
// implementation detail; the contract every implementation must satisfy is
// that a conversation_messages or job_events row never outlives (or
// precedes) the conversations row it references.
package store

import (
	"context"
	"errors"
	"time"
)

// Common store errors.
var (
	ErrNotFound      = errors.New("store: not found")
	ErrOrphanedRow   = errors.New("store: row references a missing conversation")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Conversation is a durable record of one channel thread.
type Conversation struct {
	ID        string
	UserID    string
	Channel   string
	ThreadID  string // optional; empty when the channel has no threading concept
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConversationMessage is one turn within a Conversation.
type ConversationMessage struct {
	ID             string
	ConversationID string
	Role           string // "user", "assistant", "system", "tool"
	Content        string
	CreatedAt      time.Time
}

// JobEvent is one entry in a sandbox job's event log.
type JobEvent struct {
	ID             string
	JobID          string
	ConversationID string
	Kind           string
	Payload        string // JSON-encoded detail, opaque to the store
	CreatedAt      time.Time
}

// SandboxJob is the durable record of a job handed to the sandbox runner.
type SandboxJob struct {
	ID             string
	ConversationID string
	Status         string
	Command        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Routine is a user-scheduled recurring delivery task.
type Routine struct {
	ID         string
	UserID     string
	Schedule   string // cron expression
	Command    string
	Enabled    bool
	LastRunAt  time.Time
	NextRunAt  time.Time
}

// Settings holds a user's preference key/value pairs.
type Settings struct {
	UserID string
	Values map[string]string
}

// ConversationFilter narrows ListConversations results.
type ConversationFilter struct {
	UserID  string
	Channel string
	Limit   int
}

// Store is the persistence boundary for a conversation's durable state.
// Implementations must enforce referential integrity between
// conversations and the rows that reference them by conversation id:
// AppendMessage and AppendJobEvent must fail with ErrOrphanedRow rather
// than silently writing a dangling row.
type Store interface {
	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, filter ConversationFilter) ([]*Conversation, error)

	AppendMessage(ctx context.Context, m *ConversationMessage) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*ConversationMessage, error)

	AppendJobEvent(ctx context.Context, e *JobEvent) error
	ListJobEvents(ctx context.Context, jobID string) ([]*JobEvent, error)

	UpsertSandboxJob(ctx context.Context, j *SandboxJob) error
	GetSandboxJob(ctx context.Context, id string) (*SandboxJob, error)

	UpsertRoutine(ctx context.Context, r *Routine) error
	ListDueRoutines(ctx context.Context, asOf time.Time) ([]*Routine, error)

	GetSettings(ctx context.Context, userID string) (*Settings, error)
	PutSettings(ctx context.Context, s *Settings) error

	// CheckIntegrity reports every conversation_messages/job_events row
	// whose conversation_id has no matching conversations row. A clean
	// store returns an empty slice, never an error for "no orphans".
	CheckIntegrity(ctx context.Context) ([]string, error)

	Close() error
}
