package channels

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentcore/runtime/internal/broadcast"
)

const (
	wsMaxPayloadBytes = 1 << 16
	wsWriteWait       = 10 * time.Second
	wsPongWait        = 45 * time.Second
	wsPingInterval    = 30 * time.Second
)

// WebSocketConfig configures the browser-event-stream reference
// channel.
type WebSocketConfig struct {
	// UserID is the fixed user identity attributed to every message
	// this channel delivers, mirroring HTTPConfig.UserID.
	UserID string

	// Hub, when set, is subscribed once per connection so every
	// reasoning-loop status event is relayed to the browser tab as a
	// JSON frame; nil disables outbound relay (inbound chat still
	// works).
	Hub *broadcast.Hub

	// Logger is optional; nil disables logging.
	Logger *slog.Logger
}

// WebSocketChannel is a gorilla/websocket-backed reference channel: it
// upgrades HTTP connections to websockets, relays broadcast.Hub events
// out to every connected browser tab, and forwards each tab's chat
// frames in as IncomingMessages.
type WebSocketChannel struct {
	BaseChannel

	config   WebSocketConfig
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	tx    chan<- IncomingMessage
	conns map[*wsConn]struct{}
}

type wsConn struct {
	conn *websocket.Conn
	send chan []byte
}

type wsInbound struct {
	Content  string `json:"content"`
	ThreadID string `json:"thread_id,omitempty"`
}

type wsOutbound struct {
	Type     string          `json:"type"`
	Content  string          `json:"content,omitempty"`
	ThreadID string          `json:"thread_id,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// NewWebSocketChannel builds a WebSocketChannel from config.
func NewWebSocketChannel(config WebSocketConfig) *WebSocketChannel {
	return &WebSocketChannel{
		config: config,
		conns:  make(map[*wsConn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Name implements Channel.
func (c *WebSocketChannel) Name() string { return "websocket" }

// Start implements Channel.
func (c *WebSocketChannel) Start(ctx context.Context) (MessageStream, error) {
	ch := make(chan IncomingMessage, 256)
	c.mu.Lock()
	c.tx = ch
	c.mu.Unlock()
	return ch, nil
}

// ServeHTTP upgrades the connection and relays Hub events to it until
// it disconnects.
func (c *WebSocketChannel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	wc := &wsConn{conn: conn, send: make(chan []byte, 64)}
	c.mu.Lock()
	c.conns[wc] = struct{}{}
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	var unsubscribe func()
	if c.config.Hub != nil {
		events, cancelSub, ok := c.config.Hub.Subscribe()
		if ok {
			unsubscribe = cancelSub
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.relayEvents(ctx, wc, events)
			}()
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop(ctx, wc)
	}()
	c.readLoop(wc)

	cancel()
	if unsubscribe != nil {
		unsubscribe()
	}
	wg.Wait()

	c.mu.Lock()
	delete(c.conns, wc)
	close(wc.send)
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *WebSocketChannel) relayEvents(ctx context.Context, wc *wsConn, events <-chan broadcast.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			frame := wsOutbound{Type: string(event.Kind), Content: event.Message, ThreadID: event.ThreadID}
			data, err := json.Marshal(frame)
			if err != nil {
				continue
			}
			select {
			case wc.send <- data:
			default:
				c.log(slog.LevelWarn, "websocket send buffer full, dropping event")
			}
		}
	}
}

func (c *WebSocketChannel) writeLoop(ctx context.Context, wc *wsConn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = wc.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := wc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-wc.send:
			if !ok {
				return
			}
			_ = wc.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := wc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketChannel) readLoop(wc *wsConn) {
	wc.conn.SetReadLimit(wsMaxPayloadBytes)
	_ = wc.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	wc.conn.SetPongHandler(func(string) error {
		return wc.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		messageType, data, err := wc.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var inbound wsInbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			continue
		}
		if inbound.Content == "" {
			continue
		}

		msg := NewIncomingMessage("websocket", c.config.UserID, inbound.Content)
		if inbound.ThreadID != "" {
			msg = msg.WithThread(inbound.ThreadID)
		}

		c.mu.RLock()
		tx := c.tx
		c.mu.RUnlock()
		if tx == nil {
			continue
		}
		select {
		case tx <- msg:
		default:
			c.log(slog.LevelWarn, "websocket incoming buffer full, dropping message")
		}
	}
}

// Respond implements Channel: it fans response out to every connected
// browser tab, since a webhook-style single-waiter model doesn't fit a
// long-lived bidirectional connection.
func (c *WebSocketChannel) Respond(ctx context.Context, msg IncomingMessage, response OutgoingResponse) error {
	return c.fanOut(wsOutbound{Type: "response", Content: response.Content, ThreadID: response.ThreadID, Metadata: response.Metadata})
}

// Broadcast implements Channel, overriding BaseChannel's no-op default.
func (c *WebSocketChannel) Broadcast(ctx context.Context, userID string, response OutgoingResponse) error {
	return c.fanOut(wsOutbound{Type: "broadcast", Content: response.Content, ThreadID: response.ThreadID, Metadata: response.Metadata})
}

func (c *WebSocketChannel) fanOut(frame wsOutbound) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for wc := range c.conns {
		select {
		case wc.send <- data:
		default:
			c.log(slog.LevelWarn, "websocket send buffer full, dropping response")
		}
	}
	return nil
}

// HealthCheck implements Channel.
func (c *WebSocketChannel) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tx == nil {
		return healthCheckFailed("websocket")
	}
	return nil
}

// Shutdown implements Channel: it closes every connected socket and
// the message-in channel.
func (c *WebSocketChannel) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	for wc := range c.conns {
		_ = wc.conn.Close()
	}
	if c.tx != nil {
		close(c.tx)
		c.tx = nil
	}
	c.mu.Unlock()
	return nil
}

func (c *WebSocketChannel) log(level slog.Level, msg string, args ...any) {
	if c.config.Logger == nil {
		return
	}
	c.config.Logger.Log(context.Background(), level, msg, args...)
}

var _ Channel = (*WebSocketChannel)(nil)
