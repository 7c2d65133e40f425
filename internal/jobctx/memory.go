package jobctx

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of a ChatMessage.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCallRequest is an assistant-issued request to invoke a tool.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ChatMessage is one entry in a job's conversation memory.
type ChatMessage struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCallRequest
	ToolCallID string // set when Role == RoleTool
	IsError    bool   // set when Role == RoleTool and the tool invocation failed
}

// UserMessage constructs a user-role chat message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// AssistantMessage constructs an assistant-role chat message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

// SystemMessage constructs a system-role chat message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

// ToolResultMessage constructs a tool-result chat message tied to the
// originating tool-call id.
func ToolResultMessage(toolCallID, content string) ChatMessage {
	return ChatMessage{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

// ToolErrorMessage constructs a tool-result chat message marked as a failed
// invocation, so providers that track error status (e.g. Anthropic's
// tool_result is_error flag) can surface it to the model.
func ToolErrorMessage(toolCallID, content string) ChatMessage {
	return ChatMessage{Role: RoleTool, Content: content, ToolCallID: toolCallID, IsError: true}
}

// DefaultMaxConversationMessages is the default hard cap on a job's
// conversation memory.
const DefaultMaxConversationMessages = 100

// ConversationMemory is a job's bounded chat history. A leading system
// message, if present, is preserved across eviction; eviction otherwise
// removes the oldest non-system message.
type ConversationMemory struct {
	messages    []ChatMessage
	maxMessages int
}

// NewConversationMemory returns an empty conversation memory capped at
// maxMessages.
func NewConversationMemory(maxMessages int) *ConversationMemory {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxConversationMessages
	}
	return &ConversationMemory{maxMessages: maxMessages}
}

// Add appends a message, evicting the oldest non-system message if the cap
// is exceeded.
func (c *ConversationMemory) Add(message ChatMessage) {
	c.messages = append(c.messages, message)
	for len(c.messages) > c.maxMessages {
		if len(c.messages) > 0 && c.messages[0].Role == RoleSystem {
			if len(c.messages) > 1 {
				c.messages = append(c.messages[:1], c.messages[2:]...)
			} else {
				break
			}
		} else {
			c.messages = c.messages[1:]
		}
	}
}

// Messages returns every retained message, in order.
func (c *ConversationMemory) Messages() []ChatMessage {
	out := make([]ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// LastN returns the most recent n messages (or all messages, if fewer than
// n are retained).
func (c *ConversationMemory) LastN(n int) []ChatMessage {
	start := len(c.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]ChatMessage, len(c.messages)-start)
	copy(out, c.messages[start:])
	return out
}

// Clear empties the conversation.
func (c *ConversationMemory) Clear() {
	c.messages = nil
}

// Len returns the number of retained messages.
func (c *ConversationMemory) Len() int {
	return len(c.messages)
}

// Replace overwrites the retained messages wholesale, used by the
// reasoning loop's compaction step.
func (c *ConversationMemory) Replace(messages []ChatMessage) {
	c.messages = append([]ChatMessage(nil), messages...)
}

// ActionRecord is an immutable record of one tool invocation within a job.
// Sequence numbers are dense and strictly increasing within a job; raw
// output is retained for audit only and is never reinjected into the LLM
// conversation.
type ActionRecord struct {
	ID                   uuid.UUID
	Sequence             uint32
	ToolName             string
	Input                json.RawMessage
	OutputRaw            string
	OutputSanitized      string
	SanitizationWarnings []string
	Cost                 float64
	Duration             time.Duration
	Success              bool
	Error                string
	ExecutedAt           time.Time
	// ReviewRequired is set when the sanitized output matched a policy
	// rule whose action is Review: the action is not blocked, but should
	// be flagged for a human reviewer.
	ReviewRequired bool
}

// Memory is the combined conversation + action history for a single job.
type Memory struct {
	JobID        uuid.UUID
	Conversation *ConversationMemory
	Actions      []ActionRecord

	nextSequence uint32
}

// NewMemory returns empty memory for jobID with the default conversation
// cap.
func NewMemory(jobID uuid.UUID) *Memory {
	return &Memory{JobID: jobID, Conversation: NewConversationMemory(DefaultMaxConversationMessages)}
}

// AddMessage appends a conversation message.
func (m *Memory) AddMessage(message ChatMessage) {
	m.Conversation.Add(message)
}

// NextAction allocates the next dense sequence number for a new action
// record and sets its id, tool name, input and timestamp, leaving the
// outcome fields zero for the caller to fill in.
func (m *Memory) NextAction(toolName string, input json.RawMessage) ActionRecord {
	seq := m.nextSequence
	m.nextSequence++
	return ActionRecord{
		ID:         uuid.New(),
		Sequence:   seq,
		ToolName:   toolName,
		Input:      input,
		ExecutedAt: time.Now(),
	}
}

// RecordAction appends a completed action record.
func (m *Memory) RecordAction(action ActionRecord) {
	m.Actions = append(m.Actions, action)
}

// TotalCost sums the cost of every recorded action.
func (m *Memory) TotalCost() float64 {
	var total float64
	for _, a := range m.Actions {
		total += a.Cost
	}
	return total
}

// TotalDuration sums the duration of every recorded action.
func (m *Memory) TotalDuration() time.Duration {
	var total time.Duration
	for _, a := range m.Actions {
		total += a.Duration
	}
	return total
}

// SuccessfulActions counts recorded actions that succeeded.
func (m *Memory) SuccessfulActions() int {
	n := 0
	for _, a := range m.Actions {
		if a.Success {
			n++
		}
	}
	return n
}

// FailedActions counts recorded actions that failed.
func (m *Memory) FailedActions() int {
	n := 0
	for _, a := range m.Actions {
		if !a.Success {
			n++
		}
	}
	return n
}

// LastAction returns the most recently recorded action, if any.
func (m *Memory) LastAction() (ActionRecord, bool) {
	if len(m.Actions) == 0 {
		return ActionRecord{}, false
	}
	return m.Actions[len(m.Actions)-1], true
}

// ActionsByTool filters recorded actions by tool name.
func (m *Memory) ActionsByTool(toolName string) []ActionRecord {
	var out []ActionRecord
	for _, a := range m.Actions {
		if a.ToolName == toolName {
			out = append(out, a)
		}
	}
	return out
}
