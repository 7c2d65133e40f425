package builtin

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentcore/runtime/internal/jobctx"
	"github.com/agentcore/runtime/internal/tools"
)

// ShellTool is a placeholder for sandboxed code/script execution. No
// sandbox executor is wired in yet (WASM via the extension host is the
// eventual path, not a bare subprocess) so every call fails closed with
// a Sandbox error rather than shelling out unsandboxed.
type ShellTool struct {
	tools.BaseTool
}

func NewShellTool() *ShellTool { return &ShellTool{} }

func (*ShellTool) Name() string { return "shell" }
func (*ShellTool) Description() string {
	return "Execute a script in a sandboxed environment. Not yet available in this deployment."
}

func (*ShellTool) ParametersSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"language": {"type": "string", "enum": ["python", "javascript", "shell"]},
			"code": {"type": "string"},
			"input": {"type": "string"}
		},
		"required": ["language", "code"]
	}`)
}

func (*ShellTool) RequiresApproval() bool { return true }

func (*ShellTool) Execute(_ context.Context, _ json.RawMessage, _ *jobctx.JobContext) (tools.Output, error) {
	return tools.Output{}, tools.Sandbox("sandboxed script execution is not implemented in this deployment")
}
