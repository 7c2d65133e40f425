// Package builtin implements the agent's built-in tool bodies: small,
// self-contained capabilities that exercise the tool dispatch pipeline
// end to end. Only the http tool reaches an external service.
package builtin

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentcore/runtime/internal/jobctx"
	"github.com/agentcore/runtime/internal/tools"
)

// EchoTool echoes its input message back unchanged. Useful for testing
// the dispatch pipeline in isolation.
type EchoTool struct {
	tools.BaseTool
}

func NewEchoTool() *EchoTool { return &EchoTool{} }

func (*EchoTool) Name() string        { return "echo" }
func (*EchoTool) Description() string { return "Echoes back the input message. Useful for testing." }

func (*EchoTool) ParametersSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"message": {"type": "string", "description": "The message to echo back"}
		},
		"required": ["message"]
	}`)
}

func (*EchoTool) RequiresSanitization() bool { return false } // trusted internal tool

func (*EchoTool) Execute(_ context.Context, params json.RawMessage, _ *jobctx.JobContext) (tools.Output, error) {
	var in struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(params, &in); err != nil || in.Message == "" {
		return tools.Output{}, tools.InvalidParameters("missing 'message' parameter")
	}
	return tools.TextOutput(in.Message, time.Millisecond), nil
}
