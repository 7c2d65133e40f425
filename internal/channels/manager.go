package channels

import (
	"context"
	"log/slog"
	"sync"
)

// Manager coordinates multiple input channels and fans their message
// streams into one merged stream.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel

	// Logger is optional; nil disables logging, matching the nil-safe
	// optional-dependency idiom used by reasoning.Loop.
	Logger *slog.Logger
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{channels: make(map[string]Channel)}
}

// Add registers a channel under its own Name(). A later Add with the
// same name replaces the earlier registration.
func (m *Manager) Add(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
	m.log(slog.LevelDebug, "added channel", "channel", ch.Name())
}

// StartAll starts every registered channel and merges their message
// streams into one. A channel that fails to start is logged and
// skipped rather than failing the whole startup; StartAll only fails
// if every channel failed to start.
func (m *Manager) StartAll(ctx context.Context) (MessageStream, error) {
	m.mu.RLock()
	channels := make(map[string]Channel, len(m.channels))
	for name, ch := range m.channels {
		channels[name] = ch
	}
	m.mu.RUnlock()

	merged := make(chan IncomingMessage, 256)
	var wg sync.WaitGroup
	started := 0

	for name, ch := range channels {
		stream, err := ch.Start(ctx)
		if err != nil {
			m.log(slog.LevelError, "channel failed to start", "channel", name, "error", err)
			continue
		}
		started++
		m.log(slog.LevelInfo, "started channel", "channel", name)

		wg.Add(1)
		go func(stream MessageStream) {
			defer wg.Done()
			for msg := range stream {
				select {
				case merged <- msg:
				case <-ctx.Done():
					return
				}
			}
		}(stream)
	}

	if started == 0 {
		close(merged)
		return nil, startupFailed("all", errNoChannelsStarted)
	}

	go func() {
		wg.Wait()
		close(merged)
	}()

	return merged, nil
}

// Respond routes response to the channel that produced msg.
func (m *Manager) Respond(ctx context.Context, msg IncomingMessage, response OutgoingResponse) error {
	ch, ok := m.get(msg.Channel)
	if !ok {
		return sendFailed(msg.Channel, errChannelNotFound)
	}
	return ch.Respond(ctx, msg, response)
}

// SendStatus relays status to the named channel. A channel that isn't
// registered is silently ignored: status delivery is best-effort.
func (m *Manager) SendStatus(ctx context.Context, channelName string, status StatusUpdate, metadata []byte) error {
	ch, ok := m.get(channelName)
	if !ok {
		return nil
	}
	return ch.SendStatus(ctx, status, metadata)
}

// Broadcast sends response to userID on the named channel, for
// proactive notifications like heartbeat alerts.
func (m *Manager) Broadcast(ctx context.Context, channelName, userID string, response OutgoingResponse) error {
	ch, ok := m.get(channelName)
	if !ok {
		return sendFailed(channelName, errChannelNotFound)
	}
	return ch.Broadcast(ctx, userID, response)
}

// BroadcastAll sends response to userID on every registered channel,
// returning the per-channel outcome.
func (m *Manager) BroadcastAll(ctx context.Context, userID string, response OutgoingResponse) map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make(map[string]error, len(m.channels))
	for name, ch := range m.channels {
		results[name] = ch.Broadcast(ctx, userID, response)
	}
	return results
}

// HealthCheckAll probes every registered channel.
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make(map[string]error, len(m.channels))
	for name, ch := range m.channels {
		results[name] = ch.HealthCheck(ctx)
	}
	return results
}

// ShutdownAll shuts down every registered channel, logging but not
// failing on individual errors.
func (m *Manager) ShutdownAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, ch := range m.channels {
		if err := ch.Shutdown(ctx); err != nil {
			m.log(slog.LevelError, "channel shutdown failed", "channel", name, "error", err)
		}
	}
}

// Names returns the registered channel names.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

func (m *Manager) get(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

func (m *Manager) log(level slog.Level, msg string, args ...any) {
	if m.Logger == nil {
		return
	}
	m.Logger.Log(context.Background(), level, msg, args...)
}

type managerError string

func (e managerError) Error() string { return string(e) }

const (
	errNoChannelsStarted = managerError("no channels started successfully")
	errChannelNotFound   = managerError("channel not found")
)
