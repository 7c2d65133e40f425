package store

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	cfg := &SQLiteConfig{DSN: "file:" + t.Name() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"}
	s, err := OpenSQLiteStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	c := &Conversation{
		ID:        "conv-1",
		UserID:    "user-1",
		Channel:   "web",
		Metadata:  map[string]string{"origin": "test"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateConversation(ctx, c); err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	got, err := s.GetConversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if got.UserID != "user-1" || got.Channel != "web" || got.Metadata["origin"] != "test" {
		t.Fatalf("unexpected conversation: %+v", got)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetConversation(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendMessageRejectsOrphan(t *testing.T) {
	s := newTestStore(t)
	err := s.AppendMessage(context.Background(), &ConversationMessage{
		ID:             "msg-1",
		ConversationID: "does-not-exist",
		Role:           "user",
		Content:        "hi",
		CreatedAt:      time.Now().UTC(),
	})
	if err == nil {
		t.Fatalf("expected an error for an orphaned message")
	}
}

func TestAppendMessageAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.CreateConversation(ctx, &Conversation{ID: "conv-1", UserID: "u", Channel: "web", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	for i, role := range []string{"user", "assistant"} {
		msg := &ConversationMessage{
			ID:             "msg-" + role,
			ConversationID: "conv-1",
			Role:           role,
			Content:        "turn",
			CreatedAt:      now.Add(time.Duration(i) * time.Second),
		}
		if err := s.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("append message %d: %v", i, err)
		}
	}

	msgs, err := s.ListMessages(ctx, "conv-1", 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestAppendJobEventRejectsOrphan(t *testing.T) {
	s := newTestStore(t)
	err := s.AppendJobEvent(context.Background(), &JobEvent{
		ID:             "evt-1",
		JobID:          "job-1",
		ConversationID: "missing-conv",
		Kind:           "started",
		CreatedAt:      time.Now().UTC(),
	})
	if err == nil {
		t.Fatalf("expected an error for an orphaned job event")
	}
}

func TestCheckIntegrityReportsNoOrphansOnCleanStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.CreateConversation(ctx, &Conversation{ID: "conv-1", UserID: "u", Channel: "web", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if err := s.AppendMessage(ctx, &ConversationMessage{ID: "m1", ConversationID: "conv-1", Role: "user", Content: "hi", CreatedAt: now}); err != nil {
		t.Fatalf("append message: %v", err)
	}
	if err := s.AppendJobEvent(ctx, &JobEvent{ID: "e1", JobID: "job-1", ConversationID: "conv-1", Kind: "started", CreatedAt: now}); err != nil {
		t.Fatalf("append job event: %v", err)
	}

	orphans, err := s.CheckIntegrity(ctx)
	if err != nil {
		t.Fatalf("check integrity: %v", err)
	}
	if len(orphans) != 0 {
		t.Fatalf("expected no orphans, got %v", orphans)
	}
}

func TestUpsertSandboxJobRequiresConversation(t *testing.T) {
	s := newTestStore(t)
	err := s.UpsertSandboxJob(context.Background(), &SandboxJob{
		ID:             "job-1",
		ConversationID: "missing",
		Status:         "running",
		Command:        "echo hi",
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	})
	if err == nil {
		t.Fatalf("expected an error for a sandbox job referencing a missing conversation")
	}
}

func TestUpsertSandboxJobThenUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.CreateConversation(ctx, &Conversation{ID: "conv-1", UserID: "u", Channel: "web", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	job := &SandboxJob{ID: "job-1", ConversationID: "conv-1", Status: "pending", Command: "echo hi", CreatedAt: now, UpdatedAt: now}
	if err := s.UpsertSandboxJob(ctx, job); err != nil {
		t.Fatalf("upsert sandbox job: %v", err)
	}

	job.Status = "completed"
	job.UpdatedAt = now.Add(time.Minute)
	if err := s.UpsertSandboxJob(ctx, job); err != nil {
		t.Fatalf("update sandbox job: %v", err)
	}

	got, err := s.GetSandboxJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("get sandbox job: %v", err)
	}
	if got.Status != "completed" {
		t.Fatalf("expected status completed, got %s", got.Status)
	}
}

func TestListDueRoutines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)

	due := &Routine{ID: "r-due", UserID: "u", Schedule: "0 9 * * *", Command: "digest", Enabled: true, NextRunAt: now.Add(-time.Minute)}
	future := &Routine{ID: "r-future", UserID: "u", Schedule: "0 9 * * *", Command: "digest", Enabled: true, NextRunAt: now.Add(time.Hour)}
	disabled := &Routine{ID: "r-disabled", UserID: "u", Schedule: "0 9 * * *", Command: "digest", Enabled: false, NextRunAt: now.Add(-time.Minute)}
	for _, r := range []*Routine{due, future, disabled} {
		if err := s.UpsertRoutine(ctx, r); err != nil {
			t.Fatalf("upsert routine %s: %v", r.ID, err)
		}
	}

	got, err := s.ListDueRoutines(ctx, now)
	if err != nil {
		t.Fatalf("list due routines: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r-due" {
		t.Fatalf("expected only r-due, got %+v", got)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.GetSettings(ctx, "user-1")
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if len(empty.Values) != 0 {
		t.Fatalf("expected empty settings for unknown user, got %+v", empty)
	}

	if err := s.PutSettings(ctx, &Settings{UserID: "user-1", Values: map[string]string{"timezone": "UTC"}}); err != nil {
		t.Fatalf("put settings: %v", err)
	}
	got, err := s.GetSettings(ctx, "user-1")
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if got.Values["timezone"] != "UTC" {
		t.Fatalf("unexpected settings: %+v", got)
	}
}
