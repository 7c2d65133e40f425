package sessions

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager owns every user's Session, the external-thread-id-to-internal
// mapping, and the per-thread UndoManager, with double-checked locking on
// the creation paths so concurrent callers racing to create the same
// session/thread converge on one instance rather than each winning a
// separate one.
type Manager struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	threadMap    map[ThreadKey]uuid.UUID
	undoManagers map[uuid.UUID]*UndoManager
}

// NewManager returns an empty session manager.
func NewManager() *Manager {
	return &Manager{
		sessions:     make(map[string]*Session),
		threadMap:    make(map[ThreadKey]uuid.UUID),
		undoManagers: make(map[uuid.UUID]*UndoManager),
	}
}

// GetOrCreateSession returns the existing session for userID, or creates
// one. Concurrent callers for the same userID are guaranteed to observe the
// same *Session.
func (m *Manager) GetOrCreateSession(userID string) *Session {
	m.mu.RLock()
	if s, ok := m.sessions[userID]; ok {
		m.mu.RUnlock()
		return s
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s := NewSession(userID)
	m.sessions[userID] = s
	return s
}

// ResolveThread maps (userID, channel, externalThreadID) onto an internal
// thread, creating the session, thread, and thread mapping if any are
// missing. A previously mapped thread that no longer exists in its session
// (should not normally happen, but is checked defensively) is treated as
// missing and a fresh thread is created in its place.
func (m *Manager) ResolveThread(userID, channel, externalThreadID string) (*Session, uuid.UUID) {
	session := m.GetOrCreateSession(userID)
	key := ThreadKey{UserID: userID, Channel: channel, ExternalThreadID: externalThreadID}

	m.mu.RLock()
	if threadID, ok := m.threadMap[key]; ok {
		m.mu.RUnlock()
		if session.HasThread(threadID) {
			return session, threadID
		}
	} else {
		m.mu.RUnlock()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if threadID, ok := m.threadMap[key]; ok && session.HasThread(threadID) {
		return session, threadID
	}

	thread := session.CreateThread()
	m.threadMap[key] = thread.ID
	m.undoManagers[thread.ID] = NewUndoManager()

	return session, thread.ID
}

// GetUndoManager returns the undo manager for threadID, creating one if
// none exists yet (e.g. a thread resolved before this manager tracked undo
// state separately).
func (m *Manager) GetUndoManager(threadID uuid.UUID) *UndoManager {
	m.mu.RLock()
	if mgr, ok := m.undoManagers[threadID]; ok {
		m.mu.RUnlock()
		return mgr
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if mgr, ok := m.undoManagers[threadID]; ok {
		return mgr
	}
	mgr := NewUndoManager()
	m.undoManagers[threadID] = mgr
	return mgr
}

// PruneStaleSessions removes every session whose last activity is older
// than maxIdle, along with their thread mappings and undo managers, and
// returns how many sessions were removed. A session currently locked by
// another goroutine is soft-skipped rather than waited on, so an active
// conversation never stalls a prune pass.
func (m *Manager) PruneStaleSessions(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.RLock()
	var staleUsers []string
	staleThreads := make(map[uuid.UUID]struct{})
	for userID, session := range m.sessions {
		stale, ok := session.TryLastActiveBefore(cutoff)
		if !ok || !stale {
			continue
		}
		staleUsers = append(staleUsers, userID)
		for _, threadID := range session.ThreadIDs() {
			staleThreads[threadID] = struct{}{}
		}
	}
	m.mu.RUnlock()

	if len(staleUsers) == 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, userID := range staleUsers {
		if _, ok := m.sessions[userID]; ok {
			delete(m.sessions, userID)
			removed++
		}
	}

	for key, threadID := range m.threadMap {
		if _, ok := staleThreads[threadID]; ok {
			delete(m.threadMap, key)
		}
	}
	for threadID := range staleThreads {
		delete(m.undoManagers, threadID)
	}

	return removed
}
