package jobctx

import (
	"errors"
	"testing"
)

func TestLegalTransitions(t *testing.T) {
	j := NewJobContext("Test", "Desc")
	if j.State != StatePending {
		t.Fatalf("expected new job to start Pending, got %s", j.State)
	}
	if err := j.TransitionTo(StateInProgress, "started"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := j.TransitionTo(StateCompleted, "done"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := j.TransitionTo(StateSubmitted, "submitted"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := j.TransitionTo(StateAccepted, "accepted"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(j.History) != 4 {
		t.Fatalf("expected 4 recorded transitions, got %d", len(j.History))
	}
}

func TestIllegalTransitionRejected(t *testing.T) {
	j := NewJobContext("Test", "Desc")
	err := j.TransitionTo(StateCompleted, "skip ahead")
	if err == nil {
		t.Fatal("expected an error for pending -> completed")
	}
	var target *InvalidStateTransitionError
	if !errors.As(err, &target) {
		t.Fatalf("expected InvalidStateTransitionError, got %T: %v", err, err)
	}
	if j.State != StatePending {
		t.Fatalf("expected state to remain Pending after rejected transition, got %s", j.State)
	}
}

func TestStuckRepairTransition(t *testing.T) {
	j := NewJobContext("Test", "Desc")
	_ = j.TransitionTo(StateInProgress, "started")
	_ = j.TransitionTo(StateStuck, "blocked")
	if err := j.TransitionTo(StateInProgress, "repaired"); err != nil {
		t.Fatalf("expected stuck -> in_progress repair to succeed: %v", err)
	}
}

func TestWithUserAndCategory(t *testing.T) {
	j := NewJobContext("Test", "Desc").WithUser("alice").WithCategory("research")
	if j.UserID != "alice" || j.Category != "research" {
		t.Fatalf("builder methods did not apply: %+v", j)
	}
}
