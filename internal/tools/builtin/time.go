package builtin

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agentcore/runtime/internal/jobctx"
	"github.com/agentcore/runtime/internal/tools"
)

// TimeTool reports the current time, optionally in a named timezone.
type TimeTool struct {
	tools.BaseTool
}

func NewTimeTool() *TimeTool { return &TimeTool{} }

func (*TimeTool) Name() string        { return "time" }
func (*TimeTool) Description() string { return "Get the current date and time, optionally in a named IANA timezone." }

func (*TimeTool) ParametersSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"timezone": {"type": "string", "description": "IANA timezone name, e.g. 'America/New_York'. Defaults to UTC."}
		}
	}`)
}

func (*TimeTool) RequiresSanitization() bool { return false }

func (*TimeTool) Execute(_ context.Context, params json.RawMessage, _ *jobctx.JobContext) (tools.Output, error) {
	var in struct {
		Timezone string `json:"timezone"`
	}
	_ = json.Unmarshal(params, &in)

	loc := time.UTC
	if in.Timezone != "" {
		l, err := time.LoadLocation(in.Timezone)
		if err != nil {
			return tools.Output{}, tools.InvalidParameters("unknown timezone: " + in.Timezone)
		}
		loc = l
	}

	now := time.Now().In(loc)
	return tools.JSONOutput(map[string]string{
		"iso8601":  now.Format(time.RFC3339),
		"timezone": loc.String(),
	}, time.Microsecond), nil
}
