package channels

import (
	"context"
	"encoding/json"
	"testing"
)

type stubChannel struct {
	BaseChannel
	name        string
	startErr    error
	responded   []OutgoingResponse
	healthErr   error
	stream      chan IncomingMessage
}

func newStubChannel(name string) *stubChannel {
	return &stubChannel{name: name, stream: make(chan IncomingMessage, 8)}
}

func (s *stubChannel) Name() string { return s.name }

func (s *stubChannel) Start(ctx context.Context) (MessageStream, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	return s.stream, nil
}

func (s *stubChannel) Respond(ctx context.Context, msg IncomingMessage, response OutgoingResponse) error {
	s.responded = append(s.responded, response)
	return nil
}

func (s *stubChannel) HealthCheck(ctx context.Context) error { return s.healthErr }

func TestManagerStartAllMergesStreams(t *testing.T) {
	a := newStubChannel("a")
	b := newStubChannel("b")
	m := NewManager()
	m.Add(a)
	m.Add(b)

	merged, err := m.StartAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a.stream <- NewIncomingMessage("a", "user-1", "hi from a")
	b.stream <- NewIncomingMessage("b", "user-1", "hi from b")

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		msg := <-merged
		seen[msg.Channel] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("expected messages from both channels, got %v", seen)
	}
}

func TestManagerStartAllFailsWhenNoneStart(t *testing.T) {
	a := newStubChannel("a")
	a.startErr = startupFailed("a", errNoChannelsStarted)
	m := NewManager()
	m.Add(a)

	if _, err := m.StartAll(context.Background()); err == nil {
		t.Fatalf("expected error when every channel fails to start")
	}
}

func TestManagerRespondRoutesToOwningChannel(t *testing.T) {
	a := newStubChannel("a")
	m := NewManager()
	m.Add(a)

	msg := NewIncomingMessage("a", "user-1", "hi")
	if err := m.Respond(context.Background(), msg, Text("pong")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.responded) != 1 || a.responded[0].Content != "pong" {
		t.Fatalf("expected response delivered to channel a, got %+v", a.responded)
	}
}

func TestManagerRespondUnknownChannel(t *testing.T) {
	m := NewManager()
	msg := NewIncomingMessage("missing", "user-1", "hi")
	if err := m.Respond(context.Background(), msg, Text("pong")); err == nil {
		t.Fatalf("expected error for unknown channel")
	}
}

func TestManagerSendStatusIgnoresUnknownChannel(t *testing.T) {
	m := NewManager()
	err := m.SendStatus(context.Background(), "missing", StatusUpdate{Kind: StatusThinking}, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("expected status delivery to be best-effort, got %v", err)
	}
}

func TestManagerHealthCheckAll(t *testing.T) {
	a := newStubChannel("a")
	a.healthErr = healthCheckFailed("a")
	b := newStubChannel("b")
	m := NewManager()
	m.Add(a)
	m.Add(b)

	results := m.HealthCheckAll(context.Background())
	if results["a"] == nil {
		t.Fatalf("expected a to report unhealthy")
	}
	if results["b"] != nil {
		t.Fatalf("expected b to report healthy, got %v", results["b"])
	}
}

func TestManagerNames(t *testing.T) {
	m := NewManager()
	m.Add(newStubChannel("a"))
	m.Add(newStubChannel("b"))

	names := m.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %v", names)
	}
}
