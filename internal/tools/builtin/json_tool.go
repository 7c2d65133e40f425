package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agentcore/runtime/internal/jobctx"
	"github.com/agentcore/runtime/internal/tools"
)

// JSONTool parses, queries, stringifies, and validates JSON data. Query
// paths use a dotted field language with optional `[idx]` array indexing,
// e.g. "foo.bar[0].baz".
type JSONTool struct {
	tools.BaseTool
}

func NewJSONTool() *JSONTool { return &JSONTool{} }

func (*JSONTool) Name() string { return "json" }
func (*JSONTool) Description() string {
	return "Parse, query, and transform JSON data. Supports JSONPath-like queries."
}

func (*JSONTool) ParametersSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"operation": {"type": "string", "enum": ["parse", "query", "stringify", "validate"]},
			"data": {"description": "JSON data to operate on (string for parse, any value otherwise)"},
			"path": {"type": "string", "description": "dotted + [idx] path for query operation"}
		},
		"required": ["operation", "data"]
	}`)
}

func (*JSONTool) RequiresSanitization() bool { return false } // internal tool, no external data

func (*JSONTool) Execute(_ context.Context, params json.RawMessage, _ *jobctx.JobContext) (tools.Output, error) {
	start := time.Now()

	var in struct {
		Operation string          `json:"operation"`
		Data      json.RawMessage `json:"data"`
		Path      string          `json:"path"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return tools.Output{}, tools.InvalidParameters("invalid parameters: " + err.Error())
	}
	if in.Operation == "" {
		return tools.Output{}, tools.InvalidParameters("missing 'operation' parameter")
	}
	if len(in.Data) == 0 {
		return tools.Output{}, tools.InvalidParameters("missing 'data' parameter")
	}

	switch in.Operation {
	case "parse":
		var dataStr string
		if err := json.Unmarshal(in.Data, &dataStr); err != nil {
			return tools.Output{}, tools.InvalidParameters("'data' must be a string for parse operation")
		}
		var parsed any
		if err := json.Unmarshal([]byte(dataStr), &parsed); err != nil {
			return tools.Output{}, tools.InvalidParameters("invalid JSON: " + err.Error())
		}
		return tools.JSONOutput(parsed, time.Since(start)), nil

	case "stringify":
		var value any
		if err := json.Unmarshal(in.Data, &value); err != nil {
			return tools.Output{}, tools.ExecutionFailed("failed to decode data: " + err.Error())
		}
		pretty, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return tools.Output{}, tools.ExecutionFailed("failed to stringify: " + err.Error())
		}
		return tools.JSONOutput(string(pretty), time.Since(start)), nil

	case "query":
		if in.Path == "" {
			return tools.Output{}, tools.InvalidParameters("missing 'path' parameter for query")
		}
		var value any
		if err := json.Unmarshal(in.Data, &value); err != nil {
			return tools.Output{}, tools.ExecutionFailed("failed to decode data: " + err.Error())
		}
		result, err := queryJSON(value, in.Path)
		if err != nil {
			return tools.Output{}, err
		}
		return tools.JSONOutput(result, time.Since(start)), nil

	case "validate":
		var dataStr string
		valid := true
		if err := json.Unmarshal(in.Data, &dataStr); err == nil {
			var probe any
			valid = json.Unmarshal([]byte(dataStr), &probe) == nil
		}
		return tools.JSONOutput(map[string]bool{"valid": valid}, time.Since(start)), nil

	default:
		return tools.Output{}, tools.InvalidParameters("unknown operation: " + in.Operation)
	}
}

// queryJSON walks a dotted path with optional [idx] array indexing over an
// already-decoded JSON value.
func queryJSON(data any, path string) (any, error) {
	current := data
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			continue
		}

		field := segment
		var indices []int
		for {
			open := strings.IndexByte(field, '[')
			if open < 0 {
				break
			}
			closeIdx := strings.IndexByte(field, ']')
			if closeIdx < open {
				return nil, tools.InvalidParameters("malformed path segment: " + segment)
			}
			idx, err := strconv.Atoi(field[open+1 : closeIdx])
			if err != nil {
				return nil, tools.InvalidParameters("invalid array index: " + field[open+1:closeIdx])
			}
			indices = append(indices, idx)
			field = field[:open] + field[closeIdx+1:]
		}

		if field != "" {
			obj, ok := current.(map[string]any)
			if !ok {
				return nil, tools.ExecutionFailed("field not found: " + field)
			}
			next, ok := obj[field]
			if !ok {
				return nil, tools.ExecutionFailed("field not found: " + field)
			}
			current = next
		}

		for _, idx := range indices {
			arr, ok := current.([]any)
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, tools.ExecutionFailed(fmt.Sprintf("array index out of bounds: %d", idx))
			}
			current = arr[idx]
		}
	}
	return current, nil
}
