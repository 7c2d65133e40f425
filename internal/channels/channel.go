// Package channels defines the unified incoming/outgoing message
// interface that every input adapter implements, plus the reference
// HTTP webhook and browser-event-stream adapters named in scope.
package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reason categorizes a channel failure, mirroring the taxonomy idiom
// used by internal/llmprovider and internal/egress.
type Reason string

const (
	ReasonStartupFailed     Reason = "startup_failed"
	ReasonSendFailed        Reason = "send_failed"
	ReasonHealthCheckFailed Reason = "health_check_failed"
)

// Error is a structured channel failure.
type Error struct {
	Reason Reason
	Name   string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("channel %s: %s: %v", e.Name, e.Reason, e.Cause)
	}
	return fmt.Sprintf("channel %s: %s", e.Name, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

func startupFailed(name string, cause error) error {
	return &Error{Reason: ReasonStartupFailed, Name: name, Cause: cause}
}

func sendFailed(name string, cause error) error {
	return &Error{Reason: ReasonSendFailed, Name: name, Cause: cause}
}

func healthCheckFailed(name string) error {
	return &Error{Reason: ReasonHealthCheckFailed, Name: name}
}

// IncomingMessage is one inbound message from any channel, normalized
// to the shape the router and session manager consume regardless of
// the adapter that produced it.
type IncomingMessage struct {
	ID         uuid.UUID
	Channel    string
	UserID     string
	UserName   string
	Content    string
	ThreadID   string
	ReceivedAt time.Time
	Metadata   json.RawMessage
}

// NewIncomingMessage builds a message stamped with the current time
// and a fresh id.
func NewIncomingMessage(channel, userID, content string) IncomingMessage {
	return IncomingMessage{
		ID:         uuid.New(),
		Channel:    channel,
		UserID:     userID,
		Content:    content,
		ReceivedAt: time.Now(),
	}
}

// WithThread returns a copy of m scoped to threadID.
func (m IncomingMessage) WithThread(threadID string) IncomingMessage {
	m.ThreadID = threadID
	return m
}

// WithUserName returns a copy of m carrying a display name.
func (m IncomingMessage) WithUserName(name string) IncomingMessage {
	m.UserName = name
	return m
}

// WithMetadata returns a copy of m carrying arbitrary channel-specific
// routing data (e.g. a chat id the adapter needs to deliver a reply).
func (m IncomingMessage) WithMetadata(metadata json.RawMessage) IncomingMessage {
	m.Metadata = metadata
	return m
}

// OutgoingResponse is the reasoning loop's reply, handed back to the
// channel that produced the IncomingMessage it answers.
type OutgoingResponse struct {
	Content  string
	ThreadID string
	Metadata json.RawMessage
}

// Text builds a bare-content response.
func Text(content string) OutgoingResponse {
	return OutgoingResponse{Content: content}
}

// InThread returns a copy of r scoped to threadID.
func (r OutgoingResponse) InThread(threadID string) OutgoingResponse {
	r.ThreadID = threadID
	return r
}

// StatusKind tags the distinct shapes a StatusUpdate can carry; Go has
// no enum-with-data, so the payload fields below are tagged by Kind
// instead, mirroring how internal/broadcast.Event already tags its
// payload fields by EventKind.
type StatusKind string

const (
	StatusThinking       StatusKind = "thinking"
	StatusToolStarted    StatusKind = "tool_started"
	StatusToolCompleted  StatusKind = "tool_completed"
	StatusToolResult     StatusKind = "tool_result"
	StatusStreamChunk    StatusKind = "stream_chunk"
	StatusGeneric        StatusKind = "status"
	StatusApprovalNeeded StatusKind = "approval_needed"
)

// StatusUpdate is a progress notification a channel may relay to its
// transport (e.g. as an SSE event or a chat "typing" indicator).
type StatusUpdate struct {
	Kind      StatusKind
	Message   string
	ToolName  string
	Success   bool
	Preview   string
	RequestID string
	Parameters json.RawMessage
}

// MessageStream is the channel of normalized messages a Channel
// produces once started.
type MessageStream <-chan IncomingMessage

// Channel is the uniform surface every input adapter implements.
// SendStatus, Broadcast, and Shutdown have no-op defaults via
// BaseChannel, mirroring tools.BaseTool: adapters that have nothing
// useful to do for a given method embed BaseChannel and override only
// what differs.
type Channel interface {
	Name() string
	Start(ctx context.Context) (MessageStream, error)
	Respond(ctx context.Context, msg IncomingMessage, response OutgoingResponse) error
	SendStatus(ctx context.Context, status StatusUpdate, metadata json.RawMessage) error
	Broadcast(ctx context.Context, userID string, response OutgoingResponse) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// BaseChannel supplies the common no-op defaults for the optional
// Channel methods, the way tools.BaseTool supplies defaults for the
// optional Tool methods.
type BaseChannel struct{}

func (BaseChannel) SendStatus(context.Context, StatusUpdate, json.RawMessage) error { return nil }
func (BaseChannel) Broadcast(context.Context, string, OutgoingResponse) error        { return nil }
func (BaseChannel) Shutdown(context.Context) error                                  { return nil }
