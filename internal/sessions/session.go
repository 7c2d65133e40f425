package sessions

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ThreadStatus is a thread's position with respect to the reasoning loop:
// idle between turns, active while a loop is running, or suspended
// awaiting an approval decision on a pending tool call.
type ThreadStatus string

const (
	ThreadIdle             ThreadStatus = "idle"
	ThreadActive           ThreadStatus = "active"
	ThreadAwaitingApproval ThreadStatus = "awaiting_approval"
)

// PendingApproval is the descriptor persisted on a thread when the
// reasoning loop suspends for a tool call that requires approval. It
// mirrors tools.PendingApproval's shape without importing the tools
// package, so sessions has no dependency on the tool dispatch layer.
type PendingApproval struct {
	RequestID   string
	ToolName    string
	Description string
	Parameters  json.RawMessage
}

// Thread is one conversation thread within a user's session.
type Thread struct {
	ID        uuid.UUID
	CreatedAt time.Time

	Status ThreadStatus
	// Pending is set while Status is ThreadAwaitingApproval.
	Pending *PendingApproval
	// SavedIteration is the reasoning loop iteration to resume from once
	// the pending approval is resolved.
	SavedIteration int
}

// Session holds every thread for one user. Guarded by its own mutex so the
// manager can hand out a reference and let callers serialize access to a
// single user's state without blocking other users.
type Session struct {
	mu           sync.Mutex
	UserID       string
	Threads      map[uuid.UUID]*Thread
	LastActiveAt time.Time
}

// NewSession returns an empty session for userID, marked active now.
func NewSession(userID string) *Session {
	return &Session{
		UserID:       userID,
		Threads:      make(map[uuid.UUID]*Thread),
		LastActiveAt: time.Now(),
	}
}

// CreateThread adds a new idle thread to the session and refreshes the
// session's last-activity time.
func (s *Session) CreateThread() *Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread := &Thread{ID: uuid.New(), CreatedAt: time.Now(), Status: ThreadIdle}
	s.Threads[thread.ID] = thread
	s.LastActiveAt = time.Now()
	return thread
}

// HasThread reports whether threadID belongs to this session.
func (s *Session) HasThread(threadID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Threads[threadID]
	return ok
}

// ThreadSnapshot returns a copy of a thread's current state.
func (s *Session) ThreadSnapshot(threadID uuid.UUID) (Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.Threads[threadID]
	if !ok {
		return Thread{}, false
	}
	return *t, true
}

// SetThreadActive marks threadID active for the duration of a reasoning
// loop run, clearing any prior pending approval.
func (s *Session) SetThreadActive(threadID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.Threads[threadID]; ok {
		t.Status = ThreadActive
		t.Pending = nil
		s.LastActiveAt = time.Now()
	}
}

// SetThreadIdle returns threadID to idle, e.g. once a run completes.
func (s *Session) SetThreadIdle(threadID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.Threads[threadID]; ok {
		t.Status = ThreadIdle
		t.Pending = nil
		s.LastActiveAt = time.Now()
	}
}

// SuspendThreadForApproval transitions threadID to ThreadAwaitingApproval,
// recording the pending tool-call descriptor and the iteration to resume
// from once the approval decision is made.
func (s *Session) SuspendThreadForApproval(threadID uuid.UUID, pending PendingApproval, iteration int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.Threads[threadID]; ok {
		t.Status = ThreadAwaitingApproval
		t.Pending = &pending
		t.SavedIteration = iteration
		s.LastActiveAt = time.Now()
	}
}

// ThreadIDs returns every thread id in this session.
func (s *Session) ThreadIDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.Threads))
	for id := range s.Threads {
		ids = append(ids, id)
	}
	return ids
}

// TryLastActiveBefore reports whether the session is idle (last active
// strictly before cutoff), without blocking if the session is currently in
// use elsewhere. Returns ok=false if the session is contended, so callers
// can soft-skip it rather than stalling a prune pass on active work.
func (s *Session) TryLastActiveBefore(cutoff time.Time) (stale bool, ok bool) {
	if !s.mu.TryLock() {
		return false, false
	}
	defer s.mu.Unlock()
	return s.LastActiveAt.Before(cutoff), true
}

// ThreadKey identifies a (user, channel, external thread) triple so an
// external channel's own thread id can be mapped onto an internal Thread.
// ExternalThreadID is empty for channels with no native thread concept
// (e.g. a bare CLI session), in which case the whole key collapses to one
// thread per (user, channel).
type ThreadKey struct {
	UserID           string
	Channel          string
	ExternalThreadID string
}
