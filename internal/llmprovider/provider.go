// Package llmprovider abstracts over LLM backends so the reasoning loop can
// call a single Complete/CompleteWithTools surface regardless of which
// vendor is behind it, and can retry or fail over using the same
// FailoverReason taxonomy no matter which provider produced the error.
package llmprovider

import (
	"context"
	"math"
	"time"

	"github.com/agentcore/runtime/internal/jobctx"
	"github.com/agentcore/runtime/internal/tools"
)

// Model describes one model a provider exposes.
type Model struct {
	ID             string
	Name           string
	ContextSize    int
	SupportsVision bool
}

// CompletionRequest is a single turn sent to a provider: a system preamble,
// the conversation so far, and the tool definitions available this turn.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []jobctx.ChatMessage
	Tools     []tools.Schema
	MaxTokens int
}

// CompletionChunk is one streamed event from Complete. A terminal chunk has
// Done set; only one of Text/ToolCall/Error is normally populated per
// non-terminal chunk.
type CompletionChunk struct {
	Text         string
	ToolCall     *jobctx.ToolCallRequest
	Done         bool
	InputTokens  int
	OutputTokens int
	Error        error
}

// Provider is the uniform surface the reasoning loop calls into. A provider
// implementation owns its own retry/backoff and translates vendor-specific
// errors into ProviderError so the loop's retry policy is vendor-agnostic.
type Provider interface {
	Name() string
	Models() []Model
	SupportsTools() bool

	// Complete streams a single-turn completion. The returned channel is
	// closed after a terminal (Done or Error) chunk is sent.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// CompleteWithTools is Complete with req.Tools required to be
	// non-empty; providers that cannot offer tool use return an error
	// immediately rather than silently ignoring the tool definitions.
	CompleteWithTools(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// CountTokens returns a rough token-count estimate for req, used to
	// decide whether a request fits in the model's context window and
	// when compaction should trigger.
	CountTokens(req *CompletionRequest) int
}

// BaseProvider holds the retry configuration shared by every reference
// provider and the exponential-backoff loop they run their stream-creation
// attempt through.
type BaseProvider struct {
	name       string
	maxRetries int
	retryDelay time.Duration
}

// NewBaseProvider returns a BaseProvider with sane defaults (3 retries,
// 1s base delay) applied to non-positive inputs.
func NewBaseProvider(name string, maxRetries int, retryDelay time.Duration) BaseProvider {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return BaseProvider{name: name, maxRetries: maxRetries, retryDelay: retryDelay}
}

func (b *BaseProvider) MaxRetries() int           { return b.maxRetries }
func (b *BaseProvider) RetryDelay() time.Duration { return b.retryDelay }

// RetryStream runs attempt, which should create and return a stream-like
// value (or an error), retrying non-nil errors classified as retryable with
// exponential backoff (retryDelay * 2^n) up to maxRetries times. It returns
// the last attempt's result and error once attempts are exhausted, a
// non-retryable error occurs, or ctx is done during the backoff wait.
func (b *BaseProvider) RetryStream(ctx context.Context, isRetryable func(error) bool, attempt func() error) error {
	var lastErr error
	for n := 0; n <= b.maxRetries; n++ {
		lastErr = attempt()
		if lastErr == nil {
			return nil
		}
		if isRetryable == nil || !isRetryable(lastErr) || n == b.maxRetries {
			return lastErr
		}
		backoff := b.retryDelay * time.Duration(math.Pow(2, float64(n)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}
