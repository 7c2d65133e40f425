package reasoning

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentcore/runtime/internal/broadcast"
	"github.com/agentcore/runtime/internal/jobctx"
	"github.com/agentcore/runtime/internal/llmprovider"
	"github.com/agentcore/runtime/internal/safety"
	"github.com/agentcore/runtime/internal/sessions"
	"github.com/agentcore/runtime/internal/tools"
	"github.com/agentcore/runtime/internal/tools/builtin"
	"github.com/google/uuid"
)

// scriptedProvider returns one canned turn per call to Complete/
// CompleteWithTools, in order, so a test can script a short multi-turn
// exchange without a real LLM backend.
type scriptedProvider struct {
	turns []*llmprovider.CompletionChunk // one chunk per scripted turn; each turn is a single chunk for simplicity
	calls int
}

func (p *scriptedProvider) Name() string                                   { return "scripted" }
func (p *scriptedProvider) Models() []llmprovider.Model                    { return nil }
func (p *scriptedProvider) SupportsTools() bool                            { return true }
func (p *scriptedProvider) CountTokens(*llmprovider.CompletionRequest) int { return 0 }

func (p *scriptedProvider) Complete(ctx context.Context, req *llmprovider.CompletionRequest) (<-chan *llmprovider.CompletionChunk, error) {
	return p.nextStream(), nil
}

func (p *scriptedProvider) CompleteWithTools(ctx context.Context, req *llmprovider.CompletionRequest) (<-chan *llmprovider.CompletionChunk, error) {
	return p.nextStream(), nil
}

func (p *scriptedProvider) nextStream() <-chan *llmprovider.CompletionChunk {
	ch := make(chan *llmprovider.CompletionChunk, 2)
	if p.calls < len(p.turns) {
		ch <- p.turns[p.calls]
	}
	p.calls++
	ch <- &llmprovider.CompletionChunk{Done: true}
	close(ch)
	return ch
}

func newHarness(t *testing.T, turns []*llmprovider.CompletionChunk) (*Loop, *sessions.Session, uuid.UUID, *jobctx.Memory, *sessions.UndoManager) {
	t.Helper()

	registry := tools.NewRegistry()
	registry.Register(builtin.NewEchoTool())
	registry.Register(builtin.NewShellTool())

	dispatcher := tools.NewDispatcher(registry, safety.NewSafetyLayer())
	provider := &scriptedProvider{turns: turns}
	hub := broadcast.NewHub()

	loop := NewLoop(provider, registry, dispatcher, hub)

	session := sessions.NewSession("user-1")
	thread := session.CreateThread()
	memory := jobctx.NewMemory(uuid.New())
	undo := sessions.NewUndoManager()

	return loop, session, thread.ID, memory, undo
}

func drain(t *testing.T, ch <-chan Chunk) []Chunk {
	t.Helper()
	var out []Chunk
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func TestLoopTerminatesWithNoToolCalls(t *testing.T) {
	turns := []*llmprovider.CompletionChunk{
		{Text: "hello there"},
	}
	loop, session, threadID, memory, undo := newHarness(t, turns)

	out, err := loop.Run(context.Background(), RunInput{
		Session:     session,
		ThreadID:    threadID,
		Memory:      memory,
		UndoManager: undo,
		UserMessage: "hi",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks := drain(t, out)
	last := chunks[len(chunks)-1]
	if last.Kind != ChunkDone {
		t.Fatalf("expected ChunkDone, got %v", last.Kind)
	}
	if last.Text != "hello there" {
		t.Fatalf("unexpected final text: %q", last.Text)
	}

	snapshot, _ := session.ThreadSnapshot(threadID)
	if snapshot.Status != sessions.ThreadIdle {
		t.Fatalf("expected thread idle after completion, got %v", snapshot.Status)
	}
}

func TestLoopDispatchesToolThenFinishes(t *testing.T) {
	echoArgs, _ := json.Marshal(map[string]string{"message": "ping"})
	turns := []*llmprovider.CompletionChunk{
		{ToolCall: &jobctx.ToolCallRequest{ID: "call-1", Name: "echo", Arguments: echoArgs}},
		{Text: "done"},
	}
	loop, session, threadID, memory, undo := newHarness(t, turns)

	out, err := loop.Run(context.Background(), RunInput{
		Session:     session,
		ThreadID:    threadID,
		Memory:      memory,
		UndoManager: undo,
		UserMessage: "please echo ping",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks := drain(t, out)
	last := chunks[len(chunks)-1]
	if last.Kind != ChunkDone || last.Text != "done" {
		t.Fatalf("unexpected final chunk: %+v", last)
	}

	found := false
	for _, m := range memory.Conversation.Messages() {
		if m.Role == jobctx.RoleTool && m.ToolCallID == "call-1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a tool-result message for call-1 in conversation memory")
	}
}

func TestLoopSuspendsForApprovalAndResumes(t *testing.T) {
	shellArgs, _ := json.Marshal(map[string]string{"language": "python", "code": "print(1)"})
	turns := []*llmprovider.CompletionChunk{
		{ToolCall: &jobctx.ToolCallRequest{ID: "call-1", Name: "shell", Arguments: shellArgs}},
		{Text: "after approval"},
	}
	loop, session, threadID, memory, undo := newHarness(t, turns)

	out, err := loop.Run(context.Background(), RunInput{
		Session:     session,
		ThreadID:    threadID,
		Memory:      memory,
		UndoManager: undo,
		UserMessage: "run this script",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks := drain(t, out)
	last := chunks[len(chunks)-1]
	if last.Kind != ChunkSuspended {
		t.Fatalf("expected ChunkSuspended, got %v", last.Kind)
	}
	requestID := last.Text

	snapshot, ok := session.ThreadSnapshot(threadID)
	if !ok || snapshot.Status != sessions.ThreadAwaitingApproval {
		t.Fatalf("expected thread awaiting approval, got %+v", snapshot)
	}
	if snapshot.Pending == nil || snapshot.Pending.RequestID != requestID {
		t.Fatalf("expected pending approval for request %s, got %+v", requestID, snapshot.Pending)
	}

	// Deny the shell tool (it fails closed anyway — no sandbox executor — so
	// this just exercises the resume path without depending on a real exec).
	out2, err := loop.Run(context.Background(), RunInput{
		Session:  session,
		ThreadID: threadID,
		Memory:   memory,
		Resume:   &ApprovalDecision{RequestID: requestID, Approved: false},
	})
	if err != nil {
		t.Fatalf("unexpected error resuming: %v", err)
	}

	chunks2 := drain(t, out2)
	last2 := chunks2[len(chunks2)-1]
	if last2.Kind != ChunkDone || last2.Text != "after approval" {
		t.Fatalf("unexpected final chunk after resume: %+v", last2)
	}

	snapshot2, _ := session.ThreadSnapshot(threadID)
	if snapshot2.Status != sessions.ThreadIdle {
		t.Fatalf("expected thread idle after resume completes, got %v", snapshot2.Status)
	}
}

func TestLoopResumeRejectsMismatchedRequestID(t *testing.T) {
	shellArgs, _ := json.Marshal(map[string]string{"language": "python", "code": "print(1)"})
	turns := []*llmprovider.CompletionChunk{
		{ToolCall: &jobctx.ToolCallRequest{ID: "call-1", Name: "shell", Arguments: shellArgs}},
	}
	loop, session, threadID, memory, undo := newHarness(t, turns)

	out, _ := loop.Run(context.Background(), RunInput{
		Session:     session,
		ThreadID:    threadID,
		Memory:      memory,
		UndoManager: undo,
		UserMessage: "run this script",
	})
	drain(t, out)

	_, err := loop.Run(context.Background(), RunInput{
		Session:  session,
		ThreadID: threadID,
		Memory:   memory,
		Resume:   &ApprovalDecision{RequestID: "not-the-right-id", Approved: true},
	})
	if err == nil {
		t.Fatalf("expected an error resuming with a mismatched request id")
	}
}
