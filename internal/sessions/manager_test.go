package sessions

import (
	"testing"
	"time"
)

func TestGetOrCreateSessionReturnsSameInstance(t *testing.T) {
	m := NewManager()

	s1 := m.GetOrCreateSession("user-1")
	s2 := m.GetOrCreateSession("user-1")
	if s1 != s2 {
		t.Fatalf("expected same session instance for repeated calls")
	}

	s3 := m.GetOrCreateSession("user-2")
	if s1 == s3 {
		t.Fatalf("expected different users to get different sessions")
	}
}

func TestResolveThreadStableForSameKey(t *testing.T) {
	m := NewManager()

	session1, thread1 := m.ResolveThread("user-1", "cli", "")
	session2, thread2 := m.ResolveThread("user-1", "cli", "")
	if session1 != session2 {
		t.Fatalf("expected same session for same user")
	}
	if thread1 != thread2 {
		t.Fatalf("expected same thread for same (user, channel) key")
	}

	_, thread3 := m.ResolveThread("user-1", "http", "")
	if thread1 == thread3 {
		t.Fatalf("expected different channel to resolve to a different thread")
	}
}

func TestGetUndoManagerStableAcrossCalls(t *testing.T) {
	m := NewManager()
	_, threadID := m.ResolveThread("user-1", "cli", "")

	undo1 := m.GetUndoManager(threadID)
	undo2 := m.GetUndoManager(threadID)
	if undo1 != undo2 {
		t.Fatalf("expected same undo manager instance for the same thread")
	}
}

func TestPruneStaleSessions(t *testing.T) {
	m := NewManager()

	m.ResolveThread("user-active", "cli", "")
	activeSession, _ := m.ResolveThread("user-active", "cli", "")
	_ = activeSession

	staleSession, _ := m.ResolveThread("user-stale", "cli", "")
	staleSession.mu.Lock()
	staleSession.LastActiveAt = time.Now().Add(-10 * 24 * time.Hour)
	staleSession.mu.Unlock()

	pruned := m.PruneStaleSessions(7 * 24 * time.Hour)
	if pruned != 1 {
		t.Fatalf("expected 1 pruned session, got %d", pruned)
	}

	m.mu.RLock()
	_, activeOK := m.sessions["user-active"]
	_, staleOK := m.sessions["user-stale"]
	m.mu.RUnlock()

	if !activeOK {
		t.Fatalf("expected active session to survive prune")
	}
	if staleOK {
		t.Fatalf("expected stale session to be pruned")
	}
}

func TestPruneNoStaleSessions(t *testing.T) {
	m := NewManager()
	m.GetOrCreateSession("user-1")

	pruned := m.PruneStaleSessions(365 * 24 * time.Hour)
	if pruned != 0 {
		t.Fatalf("expected no sessions pruned, got %d", pruned)
	}
}
