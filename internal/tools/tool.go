package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentcore/runtime/internal/jobctx"
)

// Output is the result of a successful tool execution.
type Output struct {
	// Result is the JSON-shaped value the reasoning loop sees (after
	// sanitization, if the tool requires it).
	Result json.RawMessage
	// Raw is the pre-sanitization output, retained for the action log
	// only; it is never reinjected into the LLM conversation.
	Raw      string
	Cost     *float64
	Duration time.Duration
}

// TextOutput wraps a plain string result as a JSON string value.
func TextOutput(text string, duration time.Duration) Output {
	encoded, _ := json.Marshal(text)
	return Output{Result: encoded, Raw: text, Duration: duration}
}

// JSONOutput wraps an arbitrary JSON-marshalable value as a result.
func JSONOutput(value any, duration time.Duration) Output {
	encoded, err := json.Marshal(value)
	if err != nil {
		encoded = []byte(`null`)
	}
	return Output{Result: encoded, Duration: duration}
}

// WithCost attaches a cost estimate to an output, returning the receiver
// for chaining.
func (o Output) WithCost(cost float64) Output {
	o.Cost = &cost
	return o
}

// Schema is a tool's declarative contract for LLM function calling:
// name, description, and a JSON Schema for its parameters.
type Schema struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Tool is the uniform invocation surface every built-in and
// extension-host-backed capability implements.
type Tool interface {
	Name() string
	Description() string
	ParametersSchema() json.RawMessage

	// Execute runs the tool. jobCtx is nil only in tests that exercise a
	// tool outside of a job (e.g. echo); production dispatch always
	// supplies one.
	Execute(ctx context.Context, params json.RawMessage, jobCtx *jobctx.JobContext) (Output, error)

	// EstimatedCost and EstimatedDuration return nil when a tool cannot
	// usefully estimate either ahead of execution.
	EstimatedCost(params json.RawMessage) *float64
	EstimatedDuration(params json.RawMessage) *time.Duration

	RequiresSanitization() bool
	RequiresApproval() bool
}

// SchemaOf returns t's declarative contract.
func SchemaOf(t Tool) Schema {
	return Schema{Name: t.Name(), Description: t.Description(), Parameters: t.ParametersSchema()}
}

// BaseTool supplies the common defaults (sanitize, no approval, no cost/
// duration estimate) so built-in tools only override what differs.
type BaseTool struct{}

func (BaseTool) EstimatedCost(json.RawMessage) *float64           { return nil }
func (BaseTool) EstimatedDuration(json.RawMessage) *time.Duration { return nil }
func (BaseTool) RequiresSanitization() bool                       { return true }
func (BaseTool) RequiresApproval() bool                           { return false }
