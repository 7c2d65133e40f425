package sessions

import (
	"sync"

	"github.com/google/uuid"

	"github.com/agentcore/runtime/internal/jobctx"
)

// DefaultMaxCheckpoints is the default checkpoint history depth per thread.
const DefaultMaxCheckpoints = 20

// Checkpoint is a snapshot of a thread's conversation state at one turn.
type Checkpoint struct {
	ID          uuid.UUID
	TurnNumber  int
	Messages    []jobctx.ChatMessage
	Description string
}

func newCheckpoint(turnNumber int, messages []jobctx.ChatMessage, description string) Checkpoint {
	return Checkpoint{
		ID:          uuid.New(),
		TurnNumber:  turnNumber,
		Messages:    append([]jobctx.ChatMessage(nil), messages...),
		Description: description,
	}
}

// UndoManager tracks checkpoint history for a single thread, supporting
// linear undo/redo with FIFO eviction past a checkpoint cap.
type UndoManager struct {
	mu             sync.Mutex
	undoStack      []Checkpoint // oldest at index 0, most recent at the end
	redoStack      []Checkpoint
	maxCheckpoints int
}

// NewUndoManager returns an empty undo manager capped at
// DefaultMaxCheckpoints.
func NewUndoManager() *UndoManager {
	return &UndoManager{maxCheckpoints: DefaultMaxCheckpoints}
}

// WithMaxCheckpoints overrides the checkpoint cap, returning the receiver
// for chaining at construction time.
func (u *UndoManager) WithMaxCheckpoints(max int) *UndoManager {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.maxCheckpoints = max
	return u
}

// Checkpoint records the current state, clearing the redo stack since this
// starts a new branch of history. Oldest checkpoints are evicted once the
// stack exceeds the configured cap.
func (u *UndoManager) Checkpoint(turnNumber int, messages []jobctx.ChatMessage, description string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.redoStack = nil
	u.undoStack = append(u.undoStack, newCheckpoint(turnNumber, messages, description))
	for len(u.undoStack) > u.maxCheckpoints {
		u.undoStack = u.undoStack[1:]
	}
}

// Undo pushes the caller's current state onto the redo stack and returns
// (without removing) the most recent checkpoint, so repeated calls to Undo
// keep returning the same checkpoint until the caller explicitly consumes
// it via PopUndo.
func (u *UndoManager) Undo(currentTurn int, currentMessages []jobctx.ChatMessage) (Checkpoint, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(u.undoStack) == 0 {
		return Checkpoint{}, false
	}

	current := newCheckpoint(currentTurn, currentMessages, "")
	u.redoStack = append(u.redoStack, current)
	return u.undoStack[len(u.undoStack)-1], true
}

// PopUndo removes and returns the most recent checkpoint.
func (u *UndoManager) PopUndo() (Checkpoint, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(u.undoStack) == 0 {
		return Checkpoint{}, false
	}
	last := u.undoStack[len(u.undoStack)-1]
	u.undoStack = u.undoStack[:len(u.undoStack)-1]
	return last, true
}

// Redo pops and returns the most recently undone checkpoint.
func (u *UndoManager) Redo() (Checkpoint, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(u.redoStack) == 0 {
		return Checkpoint{}, false
	}
	last := u.redoStack[len(u.redoStack)-1]
	u.redoStack = u.redoStack[:len(u.redoStack)-1]
	return last, true
}

func (u *UndoManager) CanUndo() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.undoStack) > 0
}

func (u *UndoManager) CanRedo() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.redoStack) > 0
}

func (u *UndoManager) UndoCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.undoStack)
}

func (u *UndoManager) RedoCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.redoStack)
}

// GetCheckpoint finds a checkpoint by id in either stack.
func (u *UndoManager) GetCheckpoint(id uuid.UUID) (Checkpoint, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	for _, c := range u.undoStack {
		if c.ID == id {
			return c, true
		}
	}
	for _, c := range u.redoStack {
		if c.ID == id {
			return c, true
		}
	}
	return Checkpoint{}, false
}

// ListCheckpoints returns the undo stack, oldest first.
func (u *UndoManager) ListCheckpoints() []Checkpoint {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]Checkpoint, len(u.undoStack))
	copy(out, u.undoStack)
	return out
}

// Clear discards all checkpoint history.
func (u *UndoManager) Clear() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.undoStack = nil
	u.redoStack = nil
}

// Restore rewinds to the checkpoint identified by checkpointID, discarding
// every checkpoint created after it (and the redo stack, since this starts
// a new branch). The target checkpoint itself is popped and returned.
func (u *UndoManager) Restore(checkpointID uuid.UUID) (Checkpoint, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	pos := -1
	for i, c := range u.undoStack {
		if c.ID == checkpointID {
			pos = i
			break
		}
	}
	if pos == -1 {
		return Checkpoint{}, false
	}

	u.redoStack = nil
	u.undoStack = u.undoStack[:pos+1]

	target := u.undoStack[len(u.undoStack)-1]
	u.undoStack = u.undoStack[:len(u.undoStack)-1]
	return target, true
}
