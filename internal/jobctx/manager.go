package jobctx

import (
	"sync"

	"github.com/google/uuid"
)

// ContextManager tracks every job's JobContext and Memory, gating new job
// creation against a configured concurrency ceiling.
type ContextManager struct {
	mu       sync.RWMutex
	contexts map[uuid.UUID]*JobContext
	memories map[uuid.UUID]*Memory
	maxJobs  int
}

// NewContextManager returns a manager that allows at most maxJobs
// concurrently active jobs.
func NewContextManager(maxJobs int) *ContextManager {
	if maxJobs <= 0 {
		maxJobs = 10
	}
	return &ContextManager{
		contexts: make(map[uuid.UUID]*JobContext),
		memories: make(map[uuid.UUID]*Memory),
		maxJobs:  maxJobs,
	}
}

// CreateJob creates a job owned by the default user.
func (m *ContextManager) CreateJob(title, description string) (uuid.UUID, error) {
	return m.CreateJobForUser("default", title, description)
}

// CreateJobForUser creates a job owned by userID, failing with
// ErrMaxJobsExceeded if doing so would exceed the active-job ceiling.
func (m *ContextManager) CreateJobForUser(userID, title, description string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := 0
	for _, c := range m.contexts {
		if c.State.IsActive() {
			active++
		}
	}
	if active >= m.maxJobs {
		return uuid.Nil, &ErrMaxJobsExceeded{Max: m.maxJobs}
	}

	ctx := NewJobContextForUser(userID, title, description)
	m.contexts[ctx.JobID] = ctx
	m.memories[ctx.JobID] = NewMemory(ctx.JobID)
	return ctx.JobID, nil
}

// GetContext returns a copy of the tracked job context.
func (m *ContextManager) GetContext(jobID uuid.UUID) (*JobContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctx, ok := m.contexts[jobID]
	if !ok {
		return nil, &ErrNotFound{JobID: jobID}
	}
	return ctx.Clone(), nil
}

// UpdateContext runs f against the tracked job context under the
// manager's write lock, returning whatever f returns.
func (m *ContextManager) UpdateContext(jobID uuid.UUID, f func(*JobContext) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx, ok := m.contexts[jobID]
	if !ok {
		return &ErrNotFound{JobID: jobID}
	}
	return f(ctx)
}

// GetMemory returns the tracked memory for jobID.
func (m *ContextManager) GetMemory(jobID uuid.UUID) (*Memory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.memories[jobID]
	if !ok {
		return nil, &ErrNotFound{JobID: jobID}
	}
	return mem, nil
}

// UpdateMemory runs f against the tracked memory under the manager's
// write lock.
func (m *ContextManager) UpdateMemory(jobID uuid.UUID, f func(*Memory) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.memories[jobID]
	if !ok {
		return &ErrNotFound{JobID: jobID}
	}
	return f(mem)
}

// ActiveJobs lists every active job id.
func (m *ContextManager) ActiveJobs() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []uuid.UUID
	for id, c := range m.contexts {
		if c.State.IsActive() {
			out = append(out, id)
		}
	}
	return out
}

// AllJobs lists every tracked job id.
func (m *ContextManager) AllJobs() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(m.contexts))
	for id := range m.contexts {
		out = append(out, id)
	}
	return out
}

// ActiveCount returns the current count of active jobs.
func (m *ContextManager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.contexts {
		if c.State.IsActive() {
			n++
		}
	}
	return n
}

// RemoveJob evicts a job's context and memory, returning both.
func (m *ContextManager) RemoveJob(jobID uuid.UUID) (*JobContext, *Memory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctx, ok := m.contexts[jobID]
	if !ok {
		return nil, nil, &ErrNotFound{JobID: jobID}
	}
	mem := m.memories[jobID]
	delete(m.contexts, jobID)
	delete(m.memories, jobID)
	return ctx, mem, nil
}

// FindStuckJobs lists job ids currently in the Stuck state.
func (m *ContextManager) FindStuckJobs() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []uuid.UUID
	for id, c := range m.contexts {
		if c.State == StateStuck {
			out = append(out, id)
		}
	}
	return out
}

// Summary is a per-state count across every tracked job.
type Summary struct {
	Total      int
	Pending    int
	InProgress int
	Completed  int
	Submitted  int
	Accepted   int
	Failed     int
	Stuck      int
	Cancelled  int
}

// Summary tallies every tracked job by state.
func (m *ContextManager) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summaryLocked(func(*JobContext) bool { return true })
}

// SummaryFor tallies every tracked job owned by userID.
func (m *ContextManager) SummaryFor(userID string) Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summaryLocked(func(c *JobContext) bool { return c.UserID == userID })
}

func (m *ContextManager) summaryLocked(include func(*JobContext) bool) Summary {
	var s Summary
	for _, c := range m.contexts {
		if !include(c) {
			continue
		}
		s.Total++
		switch c.State {
		case StatePending:
			s.Pending++
		case StateInProgress:
			s.InProgress++
		case StateCompleted:
			s.Completed++
		case StateSubmitted:
			s.Submitted++
		case StateAccepted:
			s.Accepted++
		case StateFailed:
			s.Failed++
		case StateStuck:
			s.Stuck++
		case StateCancelled:
			s.Cancelled++
		}
	}
	return s
}
