// Package broadcast implements the bounded publish/subscribe hub that
// fans reasoning-loop status events out to live listeners (browser tabs,
// webhook long-polls): every subscriber gets its own buffered channel, a
// process-wide subscriber ceiling is enforced with an atomic
// compare-and-swap so it fails closed rather than blocking, and a lagging
// subscriber drops events rather than stalling the publisher.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/agentcore/runtime/internal/metrics"
)

// BufferSize is the per-subscriber channel buffer.
const BufferSize = 256

// MaxSubscribers is the default process-wide subscriber ceiling.
const MaxSubscribers = 100

// EventKind tags the distinct status events the reasoning loop publishes.
type EventKind string

const (
	EventThinking       EventKind = "thinking"
	EventToolStarted    EventKind = "tool_started"
	EventToolCompleted  EventKind = "tool_completed"
	EventToolResult     EventKind = "tool_result"
	EventStreamChunk    EventKind = "stream_chunk"
	EventApprovalNeeded EventKind = "approval_needed"
	EventStatus         EventKind = "status"
	EventError          EventKind = "error"
	EventHeartbeat      EventKind = "heartbeat"
)

// Event is one published status update, scoped to the thread that
// produced it so a subscriber can filter to the threads it cares about.
type Event struct {
	Kind     EventKind
	ThreadID string
	Message  string
	ToolName string
	Content  string
	Error    string
}

// Hub is a bounded pub/sub broadcaster with a hard subscriber ceiling.
type Hub struct {
	maxSubscribers int64
	count          int64 // atomic

	mu          sync.RWMutex
	subscribers map[chan Event]struct{}

	// Metrics is optional; nil disables the Prometheus collectors below.
	Metrics *metrics.Metrics
}

// NewHub returns a Hub capped at MaxSubscribers.
func NewHub() *Hub {
	return NewHubWithCap(MaxSubscribers)
}

// NewHubWithCap returns a Hub capped at max subscribers.
func NewHubWithCap(max int) *Hub {
	return &Hub{maxSubscribers: int64(max), subscribers: make(map[chan Event]struct{})}
}

// WithMetrics attaches m to h and returns h, for constructor chaining:
// broadcast.NewHub().WithMetrics(m).
func (h *Hub) WithMetrics(m *metrics.Metrics) *Hub {
	h.Metrics = m
	return h
}

// Subscribe registers a new listener, returning its event channel and a
// cancel function the caller must invoke exactly once when done listening.
// ok is false once the hub is at its subscriber ceiling; the caller gets a
// nil channel and a no-op cancel in that case.
func (h *Hub) Subscribe() (events <-chan Event, cancel func(), ok bool) {
	for {
		current := atomic.LoadInt64(&h.count)
		if current >= h.maxSubscribers {
			return nil, func() {}, false
		}
		if atomic.CompareAndSwapInt64(&h.count, current, current+1) {
			break
		}
	}

	ch := make(chan Event, BufferSize)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	h.setSubscriberGauge()

	var once sync.Once
	release := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			h.mu.Unlock()
			close(ch)
			atomic.AddInt64(&h.count, -1)
			h.setSubscriberGauge()
		})
	}
	return ch, release, true
}

// Publish delivers event to every live subscriber. A subscriber whose
// buffer is full drops the event rather than blocking the publisher.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			if h.Metrics != nil {
				h.Metrics.BroadcastDropped.WithLabelValues(string(event.Kind)).Inc()
			}
		}
	}
}

func (h *Hub) setSubscriberGauge() {
	if h.Metrics == nil {
		return
	}
	h.Metrics.BroadcastSubscribers.Set(float64(h.SubscriberCount()))
}

// SubscriberCount reports the current number of live subscribers.
func (h *Hub) SubscriberCount() int {
	return int(atomic.LoadInt64(&h.count))
}
