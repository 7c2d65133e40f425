package builtin

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/agentcore/runtime/internal/jobctx"
	"github.com/agentcore/runtime/internal/tools"
)

// HelpTool lists the tools currently registered in the dispatch registry,
// along with their descriptions.
type HelpTool struct {
	tools.BaseTool
	registry *tools.Registry
}

func NewHelpTool(registry *tools.Registry) *HelpTool { return &HelpTool{registry: registry} }

func (*HelpTool) Name() string        { return "help" }
func (*HelpTool) Description() string { return "List the tools available to the agent right now." }

func (*HelpTool) ParametersSchema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (*HelpTool) RequiresSanitization() bool { return false }

func (t *HelpTool) Execute(_ context.Context, _ json.RawMessage, _ *jobctx.JobContext) (tools.Output, error) {
	start := time.Now()
	schemas := t.registry.Schemas()

	entries := make([]map[string]string, 0, len(schemas))
	for _, s := range schemas {
		entries = append(entries, map[string]string{
			"name":        s.Name,
			"description": s.Description,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i]["name"] < entries[j]["name"] })

	return tools.JSONOutput(entries, time.Since(start)), nil
}
