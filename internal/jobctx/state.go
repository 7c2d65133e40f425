// Package jobctx implements per-job context isolation: a job's state
// machine, its bounded conversation memory, its immutable action log, and
// the manager that creates/tracks concurrently running jobs.
package jobctx

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobState is a job's position in its lifecycle state machine.
type JobState string

const (
	StatePending    JobState = "pending"
	StateInProgress JobState = "in_progress"
	StateCompleted  JobState = "completed"
	StateSubmitted  JobState = "submitted"
	StateAccepted   JobState = "accepted"
	StateFailed     JobState = "failed"
	StateStuck      JobState = "stuck"
	StateCancelled  JobState = "cancelled"
)

// IsActive reports whether a job in this state occupies a concurrency slot
// against the Context Manager's max_jobs gate.
func (s JobState) IsActive() bool {
	switch s {
	case StatePending, StateInProgress, StateStuck:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are possible from this
// state, aside from the stuck→in-progress repair path.
func (s JobState) IsTerminal() bool {
	switch s {
	case StateAccepted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// transitions is the exact adjacency list from the job state machine: a
// transition not listed here is rejected as InvalidStateTransition.
var transitions = map[JobState]map[JobState]bool{
	StatePending:    {StateInProgress: true},
	StateInProgress: {StateCompleted: true, StateFailed: true, StateStuck: true, StateCancelled: true},
	StateCompleted:  {StateSubmitted: true},
	StateSubmitted:  {StateAccepted: true},
	StateStuck:      {StateInProgress: true},
}

// CanTransition reports whether a transition from s to next is legal.
func (s JobState) CanTransition(next JobState) bool {
	return transitions[s][next]
}

// InvalidStateTransitionError reports an attempted transition that is not
// in the state machine's adjacency list.
type InvalidStateTransitionError struct {
	JobID uuid.UUID
	From  JobState
	To    JobState
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("job %s: invalid transition %s -> %s", e.JobID, e.From, e.To)
}

// StateTransition records a single state change for audit purposes.
type StateTransition struct {
	From      JobState
	To        JobState
	Reason    string
	Timestamp time.Time
}

// JobContext is a unit of work tracked through its own state machine,
// independent of any other concurrently running job.
type JobContext struct {
	JobID       uuid.UUID
	UserID      string
	Title       string
	Description string
	Category    string
	State       JobState
	CreatedAt   time.Time
	UpdatedAt   time.Time

	EstimatedCost     float64
	ActualCost        float64
	EstimatedDuration time.Duration
	ActualDuration    time.Duration

	History []StateTransition
}

// NewJobContext creates a job context for the default user.
func NewJobContext(title, description string) *JobContext {
	return NewJobContextForUser("default", title, description)
}

// NewJobContextForUser creates a job context owned by userID.
func NewJobContextForUser(userID, title, description string) *JobContext {
	now := time.Now()
	return &JobContext{
		JobID:       uuid.New(),
		UserID:      userID,
		Title:       title,
		Description: description,
		State:       StatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// WithUser sets the owning user id, returning the receiver for chaining.
func (j *JobContext) WithUser(userID string) *JobContext {
	j.UserID = userID
	return j
}

// WithCategory sets the job's category, returning the receiver for
// chaining.
func (j *JobContext) WithCategory(category string) *JobContext {
	j.Category = category
	return j
}

// TransitionTo moves the job to a new state, recording the transition in
// its history. Returns InvalidStateTransitionError for any move not in the
// state machine's adjacency list.
func (j *JobContext) TransitionTo(next JobState, reason string) error {
	if !j.State.CanTransition(next) {
		return &InvalidStateTransitionError{JobID: j.JobID, From: j.State, To: next}
	}
	now := time.Now()
	j.History = append(j.History, StateTransition{From: j.State, To: next, Reason: reason, Timestamp: now})
	j.State = next
	j.UpdatedAt = now
	return nil
}

// Clone returns a deep-enough copy safe to hand to a caller outside the
// ContextManager's lock.
func (j *JobContext) Clone() *JobContext {
	cp := *j
	cp.History = append([]StateTransition(nil), j.History...)
	return &cp
}
