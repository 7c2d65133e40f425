// Package reasoning drives the bounded dialogue between an LLM provider
// and the tool dispatcher: one iteration assembles a completion request,
// streams the response, and either terminates with a final answer,
// dispatches tool calls and continues, suspends for approval, or refuses
// on a safety block.
package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentcore/runtime/internal/broadcast"
	"github.com/agentcore/runtime/internal/jobctx"
	"github.com/agentcore/runtime/internal/llmprovider"
	"github.com/agentcore/runtime/internal/metrics"
	"github.com/agentcore/runtime/internal/obslog"
	"github.com/agentcore/runtime/internal/sessions"
	"github.com/agentcore/runtime/internal/tools"
	"github.com/agentcore/runtime/internal/tracing"
)

// DefaultMaxIterations is the default iteration cap per run.
const DefaultMaxIterations = 16

// MaxResponseTextSize bounds the accumulated assistant text per iteration
// (1MB), guarding against a malformed or adversarial stream.
const MaxResponseTextSize = 1 << 20

// MaxToolCallsPerIteration bounds how many tool calls a single assistant
// turn may request.
const MaxToolCallsPerIteration = 100

var errNoProvider = fmt.Errorf("reasoning: no provider configured")

const safetyRefusalMessage = "I can't continue with that request: a tool result was blocked by a safety policy."
const truncationMessage = "I've reached the maximum number of reasoning steps for this turn without finishing. Please let me know if you'd like me to continue."

// Config tunes a Loop's iteration cap, tool timeout, and compaction policy.
type Config struct {
	MaxIterations   int
	ToolCallTimeout time.Duration // 0 uses the dispatcher default
	Compaction      CompactionConfig
	SystemPreamble  string
}

// DefaultConfig returns the runtime's default tuning: 16 iterations, the
// dispatcher's own per-tool timeout, default compaction.
func DefaultConfig() Config {
	return Config{
		MaxIterations: DefaultMaxIterations,
		Compaction:    DefaultCompactionConfig(),
	}
}

func (c Config) sanitized() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	return c
}

// Loop wires an LLM provider, a tool registry/dispatcher, and the event
// broadcast hub into the bounded reasoning algorithm. Metrics and Logger
// are both optional: a nil value disables the corresponding observability
// calls rather than panicking, so a Loop built for a unit test need not
// wire either.
type Loop struct {
	Provider   llmprovider.Provider
	Registry   *tools.Registry
	Dispatcher *tools.Dispatcher
	Hub        *broadcast.Hub
	Config     Config
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Tracer     *tracing.Tracer
}

// NewLoop builds a Loop with DefaultConfig and no observability wiring.
func NewLoop(provider llmprovider.Provider, registry *tools.Registry, dispatcher *tools.Dispatcher, hub *broadcast.Hub) *Loop {
	return &Loop{Provider: provider, Registry: registry, Dispatcher: dispatcher, Hub: hub, Config: DefaultConfig()}
}

// ChunkKind tags a streamed Chunk's payload.
type ChunkKind string

const (
	ChunkText       ChunkKind = "text"
	ChunkDone       ChunkKind = "done"
	ChunkSuspended  ChunkKind = "suspended"
	ChunkTruncated  ChunkKind = "truncated"
	ChunkError      ChunkKind = "error"
)

// Chunk is one element of a Run's output stream.
type Chunk struct {
	Kind ChunkKind
	Text string
	Err  error
}

// ApprovalDecision resumes a thread suspended at ThreadAwaitingApproval.
type ApprovalDecision struct {
	RequestID string
	Approved  bool
}

// RunInput is everything one Run call needs: the resolved session/thread,
// the thread's memory, and either a new user message or a decision
// resuming a prior suspension.
type RunInput struct {
	Session     *sessions.Session
	ThreadID    uuid.UUID
	Memory      *jobctx.Memory
	UndoManager *sessions.UndoManager
	JobCtx      *jobctx.JobContext

	UserMessage string
	Resume      *ApprovalDecision
}

// Run executes the reasoning loop and streams its output. The returned
// channel is closed when the run terminates: with a final answer
// (ChunkDone), a suspension for approval (ChunkSuspended), a truncation
// notice (ChunkTruncated), or an unrecoverable error (ChunkError).
func (l *Loop) Run(ctx context.Context, in RunInput) (<-chan Chunk, error) {
	if l.Provider == nil {
		return nil, errNoProvider
	}
	if in.Session == nil || in.Memory == nil {
		return nil, fmt.Errorf("reasoning: session and memory are required")
	}

	cfg := l.Config.sanitized()
	out := make(chan Chunk, 8)

	startIteration := 0
	var resumePending *sessions.PendingApproval

	if in.Resume != nil {
		snapshot, ok := in.Session.ThreadSnapshot(in.ThreadID)
		if !ok || snapshot.Status != sessions.ThreadAwaitingApproval || snapshot.Pending == nil {
			return nil, fmt.Errorf("reasoning: thread is not awaiting approval")
		}
		if snapshot.Pending.RequestID != in.Resume.RequestID {
			return nil, fmt.Errorf("reasoning: approval decision for request %s does not match pending request %s", in.Resume.RequestID, snapshot.Pending.RequestID)
		}
		resumePending = snapshot.Pending
		startIteration = snapshot.SavedIteration
	} else {
		if strings.TrimSpace(in.UserMessage) == "" {
			return nil, fmt.Errorf("reasoning: user message is required to start a new turn")
		}
		in.Memory.AddMessage(jobctx.UserMessage(in.UserMessage))
		if in.UndoManager != nil {
			in.UndoManager.Checkpoint(in.Memory.Conversation.Len(), in.Memory.Conversation.Messages(), "new turn")
		}
	}

	in.Session.SetThreadActive(in.ThreadID)

	go func() {
		defer close(out)
		runCtx := ctx
		if l.Tracer != nil {
			var span trace.Span
			runCtx, span = l.Tracer.ReasoningTurn(ctx, in.ThreadID.String())
			defer span.End()
		}
		l.run(runCtx, in, cfg, startIteration, resumePending, out)
	}()

	return out, nil
}

func (l *Loop) run(ctx context.Context, in RunInput, cfg Config, startIteration int, resumePending *sessions.PendingApproval, out chan<- Chunk) {
	if resumePending != nil {
		if !l.resolvePendingApproval(ctx, in, cfg, resumePending, out) {
			return
		}
	}

	for iteration := startIteration; iteration < cfg.MaxIterations; iteration++ {
		select {
		case <-ctx.Done():
			in.Session.SetThreadIdle(in.ThreadID)
			l.countIteration("error")
			out <- Chunk{Kind: ChunkError, Err: ctx.Err()}
			return
		default:
		}

		if cfg.Compaction.ShouldCompact(in.Memory.Conversation.Messages()) {
			in.Memory.Conversation.Replace(Compact(in.Memory.Conversation.Messages(), cfg.Compaction))
		}

		l.publish(broadcast.Event{Kind: broadcast.EventThinking, ThreadID: in.ThreadID.String()})
		l.log(ctx, in.ThreadID, slog.LevelDebug, "reasoning loop iteration starting", "iteration", iteration)

		turnStart := time.Now()
		toolCalls, text, err := l.streamTurn(ctx, in, cfg, out)
		l.observeTurnDuration(time.Since(turnStart))
		if err != nil {
			in.Session.SetThreadIdle(in.ThreadID)
			l.countIteration("error")
			l.log(ctx, in.ThreadID, slog.LevelError, "reasoning loop turn failed", "iteration", iteration, "error", err)
			out <- Chunk{Kind: ChunkError, Err: err}
			return
		}

		if len(toolCalls) == 0 {
			in.Memory.AddMessage(jobctx.AssistantMessage(text))
			in.Session.SetThreadIdle(in.ThreadID)
			l.countIteration("done")
			out <- Chunk{Kind: ChunkDone, Text: text}
			return
		}

		in.Memory.AddMessage(jobctx.ChatMessage{Role: jobctx.RoleAssistant, Content: text, ToolCalls: toolCalls})

		suspended, refused := l.dispatchToolCalls(ctx, in, cfg, iteration, toolCalls, out)
		if suspended {
			l.countIteration("suspended")
			return // ChunkSuspended already emitted by dispatchToolCalls
		}
		if refused {
			in.Memory.AddMessage(jobctx.AssistantMessage(safetyRefusalMessage))
			in.Session.SetThreadIdle(in.ThreadID)
			l.countIteration("refused")
			out <- Chunk{Kind: ChunkDone, Text: safetyRefusalMessage}
			return
		}
		l.countIteration("tool_call")
	}

	in.Session.SetThreadIdle(in.ThreadID)
	l.log(ctx, in.ThreadID, slog.LevelWarn, "reasoning loop hit iteration cap", "max_iterations", cfg.MaxIterations)
	out <- Chunk{Kind: ChunkTruncated, Text: truncationMessage}
}

// streamTurn assembles a completion request from the current conversation
// and tool definitions, streams the response, and collects any requested
// tool calls alongside the accumulated assistant text.
func (l *Loop) streamTurn(ctx context.Context, in RunInput, cfg Config, out chan<- Chunk) ([]jobctx.ToolCallRequest, string, error) {
	schemas := l.Registry.Schemas()
	req := &llmprovider.CompletionRequest{
		System:   cfg.SystemPreamble,
		Messages: in.Memory.Conversation.Messages(),
		Tools:    schemas,
	}

	llmCtx := ctx
	var span trace.Span
	if l.Tracer != nil {
		llmCtx, span = l.Tracer.LLMRequest(ctx, l.Provider.Name(), "")
		defer span.End()
	}

	var stream <-chan *llmprovider.CompletionChunk
	var err error
	if len(schemas) > 0 && l.Provider.SupportsTools() {
		stream, err = l.Provider.CompleteWithTools(llmCtx, req)
	} else {
		stream, err = l.Provider.Complete(llmCtx, req)
	}
	if err != nil {
		if span != nil {
			tracing.RecordError(span, err)
		}
		return nil, "", err
	}

	var textBuilder strings.Builder
	var toolCalls []jobctx.ToolCallRequest

	for chunk := range stream {
		if chunk.Error != nil {
			if span != nil {
				tracing.RecordError(span, chunk.Error)
			}
			return nil, "", chunk.Error
		}
		if chunk.Text != "" {
			if textBuilder.Len()+len(chunk.Text) > MaxResponseTextSize {
				return nil, "", fmt.Errorf("reasoning: response text exceeds maximum size of %d bytes", MaxResponseTextSize)
			}
			textBuilder.WriteString(chunk.Text)
			out <- Chunk{Kind: ChunkText, Text: chunk.Text}
			l.publish(broadcast.Event{Kind: broadcast.EventStreamChunk, ThreadID: in.ThreadID.String(), Content: chunk.Text})
		}
		if chunk.ToolCall != nil {
			if len(toolCalls) >= MaxToolCallsPerIteration {
				return nil, "", fmt.Errorf("reasoning: tool calls exceed maximum of %d per iteration", MaxToolCallsPerIteration)
			}
			toolCalls = append(toolCalls, *chunk.ToolCall)
		}
	}

	return toolCalls, textBuilder.String(), nil
}

// dispatchToolCalls runs each tool call through the dispatcher in order.
// It returns suspended=true if a call required approval (a ChunkSuspended
// has already been emitted and the thread parked), or refused=true if a
// call's result was blocked by the safety layer (leak or policy).
func (l *Loop) dispatchToolCalls(ctx context.Context, in RunInput, cfg Config, iteration int, toolCalls []jobctx.ToolCallRequest, out chan<- Chunk) (suspended, refused bool) {
	for _, call := range toolCalls {
		l.publish(broadcast.Event{Kind: broadcast.EventToolStarted, ThreadID: in.ThreadID.String(), ToolName: call.Name})

		toolCtx := ctx
		var span trace.Span
		if l.Tracer != nil {
			toolCtx, span = l.Tracer.ToolExecution(ctx, call.Name)
		}

		req := tools.Request{
			ToolName:  call.Name,
			Params:    call.Arguments,
			JobCtx:    in.JobCtx,
			Memory:    in.Memory,
			RequestID: call.ID,
			Timeout:   cfg.ToolCallTimeout,
		}
		dispatchStart := time.Now()
		result, err := l.Dispatcher.Dispatch(toolCtx, req)
		l.observeToolDuration(call.Name, time.Since(dispatchStart))
		if span != nil {
			tracing.RecordError(span, err)
			span.End()
		}

		if err != nil {
			if approvalErr, ok := err.(*tools.ApprovalRequiredError); ok {
				pending := sessions.PendingApproval{
					RequestID:   approvalErr.Pending.RequestID,
					ToolName:    approvalErr.Pending.ToolName,
					Description: approvalErr.Pending.Description,
					Parameters:  approvalErr.Pending.Parameters,
				}
				in.Session.SuspendThreadForApproval(in.ThreadID, pending, iteration)
				l.publish(broadcast.Event{Kind: broadcast.EventApprovalNeeded, ThreadID: in.ThreadID.String(), ToolName: call.Name})
				l.countToolExecution(call.Name, "approval_required")
				out <- Chunk{Kind: ChunkSuspended, Text: approvalErr.Pending.RequestID}
				return true, false
			}

			if (result.LeakBlocked || result.PolicyBlocked) && isNotAuthorized(err) {
				outcome := "leak_blocked"
				if result.PolicyBlocked {
					outcome = "policy_blocked"
				}
				l.countToolExecution(call.Name, outcome)
				l.publish(broadcast.Event{Kind: broadcast.EventError, ThreadID: in.ThreadID.String(), ToolName: call.Name, Error: err.Error()})
				return false, true
			}

			l.countToolExecution(call.Name, "error")
			in.Memory.AddMessage(jobctx.ToolErrorMessage(call.ID, err.Error()))
			l.publish(broadcast.Event{Kind: broadcast.EventToolCompleted, ThreadID: in.ThreadID.String(), ToolName: call.Name, Error: err.Error()})
			continue
		}

		l.countToolExecution(call.Name, "success")
		in.Memory.AddMessage(jobctx.ToolResultMessage(call.ID, result.Content))
		l.publish(broadcast.Event{Kind: broadcast.EventToolResult, ThreadID: in.ThreadID.String(), ToolName: call.Name, Content: previewContent(result.Content)})
		l.publish(broadcast.Event{Kind: broadcast.EventToolCompleted, ThreadID: in.ThreadID.String(), ToolName: call.Name})
	}
	return false, false
}

// resolvePendingApproval dispatches the single tool call a thread
// suspended on, now that a decision has been made, and folds its result
// into the conversation before the caller resumes the main loop. Returns
// false if a fresh safety refusal short-circuits the run.
func (l *Loop) resolvePendingApproval(ctx context.Context, in RunInput, cfg Config, pending *sessions.PendingApproval, out chan<- Chunk) bool {
	req := tools.Request{
		ToolName:  pending.ToolName,
		Params:    pending.Parameters,
		JobCtx:    in.JobCtx,
		Memory:    in.Memory,
		RequestID: pending.RequestID,
		Approved:  in.Resume.Approved,
		Timeout:   cfg.ToolCallTimeout,
	}

	if !in.Resume.Approved {
		in.Memory.AddMessage(jobctx.ToolErrorMessage(pending.RequestID, "tool call denied by user"))
		return true
	}

	result, err := l.Dispatcher.Dispatch(ctx, req)
	if err != nil {
		if (result.LeakBlocked || result.PolicyBlocked) && isNotAuthorized(err) {
			in.Memory.AddMessage(jobctx.AssistantMessage(safetyRefusalMessage))
			in.Session.SetThreadIdle(in.ThreadID)
			out <- Chunk{Kind: ChunkDone, Text: safetyRefusalMessage}
			return false
		}
		in.Memory.AddMessage(jobctx.ToolErrorMessage(pending.RequestID, err.Error()))
		return true
	}

	in.Memory.AddMessage(jobctx.ToolResultMessage(pending.RequestID, result.Content))
	return true
}

func isNotAuthorized(err error) bool {
	toolErr, ok := err.(*tools.Error)
	return ok && toolErr.Kind == tools.ErrNotAuthorized
}

func previewContent(content string) string {
	const maxPreview = 500
	if len(content) <= maxPreview {
		return content
	}
	return content[:maxPreview] + "…"
}

func (l *Loop) publish(event broadcast.Event) {
	if l.Hub == nil {
		return
	}
	l.Hub.Publish(event)
}

func (l *Loop) countIteration(outcome string) {
	if l.Metrics == nil {
		return
	}
	l.Metrics.LoopIterations.WithLabelValues(outcome).Inc()
}

func (l *Loop) observeTurnDuration(d time.Duration) {
	if l.Metrics == nil {
		return
	}
	l.Metrics.LoopTurnDuration.WithLabelValues(l.Provider.Name()).Observe(d.Seconds())
}

func (l *Loop) countToolExecution(toolName, outcome string) {
	if l.Metrics == nil {
		return
	}
	l.Metrics.ToolExecutions.WithLabelValues(toolName, outcome).Inc()
}

func (l *Loop) observeToolDuration(toolName string, d time.Duration) {
	if l.Metrics == nil {
		return
	}
	l.Metrics.ToolExecutionDuration.WithLabelValues(toolName).Observe(d.Seconds())
}

func (l *Loop) log(ctx context.Context, threadID uuid.UUID, level slog.Level, msg string, args ...any) {
	if l.Logger == nil {
		return
	}
	logger := obslog.FromContext(obslog.WithThreadID(ctx, threadID.String()), l.Logger)
	logger.Log(ctx, level, msg, args...)
}
