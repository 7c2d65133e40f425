package channels

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentcore/runtime/internal/broadcast"
)

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("unexpected dial error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebSocketChannelForwardsIncomingMessage(t *testing.T) {
	ch := NewWebSocketChannel(WebSocketConfig{UserID: "browser"})
	stream, err := ch.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	server := httptest.NewServer(ch)
	defer server.Close()

	conn := dialWS(t, server)
	frame, err := json.Marshal(wsInbound{Content: "hello", ThreadID: "thread-1"})
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	select {
	case msg := <-stream:
		if msg.Content != "hello" || msg.ThreadID != "thread-1" || msg.UserID != "browser" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for forwarded message")
	}
}

func TestWebSocketChannelRelaysHubEvents(t *testing.T) {
	hub := broadcast.NewHub()
	ch := NewWebSocketChannel(WebSocketConfig{UserID: "browser", Hub: hub})
	if _, err := ch.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	server := httptest.NewServer(ch)
	defer server.Close()

	conn := dialWS(t, server)

	// Give the handler a moment to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)
	hub.Publish(broadcast.Event{Kind: broadcast.EventThinking, Message: "working", ThreadID: "thread-1"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}

	var frame wsOutbound
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unexpected frame: %v", err)
	}
	if frame.Type != string(broadcast.EventThinking) || frame.Content != "working" {
		t.Fatalf("unexpected relayed frame: %+v", frame)
	}
}

func TestWebSocketChannelRespondFansOutToConnections(t *testing.T) {
	ch := NewWebSocketChannel(WebSocketConfig{UserID: "browser"})
	if _, err := ch.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	server := httptest.NewServer(ch)
	defer server.Close()

	conn := dialWS(t, server)
	time.Sleep(50 * time.Millisecond)

	if err := ch.Respond(context.Background(), IncomingMessage{}, Text("pong")); err != nil {
		t.Fatalf("unexpected respond error: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}

	var frame wsOutbound
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unexpected frame: %v", err)
	}
	if frame.Type != "response" || frame.Content != "pong" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestWebSocketChannelHealthCheck(t *testing.T) {
	ch := NewWebSocketChannel(WebSocketConfig{UserID: "browser"})
	if err := ch.HealthCheck(context.Background()); err == nil {
		t.Fatalf("expected health check to fail before Start")
	}
	if _, err := ch.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := ch.HealthCheck(context.Background()); err != nil {
		t.Fatalf("expected healthy after start: %v", err)
	}
}
