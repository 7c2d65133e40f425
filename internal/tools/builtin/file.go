package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/agentcore/runtime/internal/jobctx"
	"github.com/agentcore/runtime/internal/tools"
)

// Workspace scopes file access to a single root directory, rejecting any
// path that would escape it.
type Workspace struct {
	root string
}

// NewWorkspace returns a Workspace rooted at root, creating the directory
// if it does not already exist.
func NewWorkspace(root string) (*Workspace, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Workspace{root: abs}, nil
}

func (w *Workspace) resolve(path string) (string, error) {
	if path == "" || strings.HasPrefix(path, "/") || strings.Contains(path, "..") || strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("path escapes workspace: %q", path)
	}
	joined := filepath.Join(w.root, path)
	if !strings.HasPrefix(joined, w.root+string(filepath.Separator)) && joined != w.root {
		return "", fmt.Errorf("path escapes workspace: %q", path)
	}
	return joined, nil
}

// ReadFileTool reads a workspace-scoped file's contents.
type ReadFileTool struct {
	tools.BaseTool
	ws *Workspace
}

func NewReadFileTool(ws *Workspace) *ReadFileTool { return &ReadFileTool{ws: ws} }

func (*ReadFileTool) Name() string                         { return "file_read" }
func (*ReadFileTool) Description() string                  { return "Read a file from the job's workspace." }
func (*ReadFileTool) RequiresSanitization() bool            { return false }
func (*ReadFileTool) ParametersSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)
}

func (t *ReadFileTool) Execute(_ context.Context, params json.RawMessage, _ *jobctx.JobContext) (tools.Output, error) {
	start := time.Now()
	var in struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(params, &in); err != nil || in.Path == "" {
		return tools.Output{}, tools.InvalidParameters("missing 'path' parameter")
	}
	full, err := t.ws.resolve(in.Path)
	if err != nil {
		return tools.Output{}, tools.NotAuthorized(err.Error())
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return tools.Output{}, tools.ExecutionFailed("file not found: " + in.Path)
		}
		return tools.Output{}, tools.ExecutionFailed(err.Error())
	}
	return tools.TextOutput(string(data), time.Since(start)), nil
}

// WriteFileTool writes content to a workspace-scoped file, creating
// parent directories as needed.
type WriteFileTool struct {
	tools.BaseTool
	ws *Workspace
}

func NewWriteFileTool(ws *Workspace) *WriteFileTool { return &WriteFileTool{ws: ws} }

func (*WriteFileTool) Name() string              { return "file_write" }
func (*WriteFileTool) Description() string       { return "Write content to a file in the job's workspace." }
func (*WriteFileTool) RequiresSanitization() bool { return false }
func (*WriteFileTool) RequiresApproval() bool     { return true } // destructive: overwrites files
func (*WriteFileTool) ParametersSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"path": {"type": "string"}, "content": {"type": "string"}},
		"required": ["path", "content"]
	}`)
}

func (t *WriteFileTool) Execute(_ context.Context, params json.RawMessage, _ *jobctx.JobContext) (tools.Output, error) {
	start := time.Now()
	var in struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(params, &in); err != nil || in.Path == "" {
		return tools.Output{}, tools.InvalidParameters("missing 'path' parameter")
	}
	full, err := t.ws.resolve(in.Path)
	if err != nil {
		return tools.Output{}, tools.NotAuthorized(err.Error())
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return tools.Output{}, tools.ExecutionFailed(err.Error())
	}
	if err := os.WriteFile(full, []byte(in.Content), 0o644); err != nil {
		return tools.Output{}, tools.ExecutionFailed(err.Error())
	}
	return tools.JSONOutput(map[string]any{"bytes_written": len(in.Content)}, time.Since(start)), nil
}

// ListDirTool lists the entries of a workspace-scoped directory.
type ListDirTool struct {
	tools.BaseTool
	ws *Workspace
}

func NewListDirTool(ws *Workspace) *ListDirTool { return &ListDirTool{ws: ws} }

func (*ListDirTool) Name() string              { return "file_list" }
func (*ListDirTool) Description() string       { return "List the entries of a directory in the job's workspace." }
func (*ListDirTool) RequiresSanitization() bool { return false }
func (*ListDirTool) ParametersSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}}}`)
}

func (t *ListDirTool) Execute(_ context.Context, params json.RawMessage, _ *jobctx.JobContext) (tools.Output, error) {
	start := time.Now()
	var in struct {
		Path string `json:"path"`
	}
	_ = json.Unmarshal(params, &in)

	target := t.ws.root
	if in.Path != "" {
		full, err := t.ws.resolve(in.Path)
		if err != nil {
			return tools.Output{}, tools.NotAuthorized(err.Error())
		}
		target = full
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		if os.IsNotExist(err) {
			return tools.Output{}, tools.ExecutionFailed("directory not found: " + in.Path)
		}
		return tools.Output{}, tools.ExecutionFailed(err.Error())
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return tools.JSONOutput(names, time.Since(start)), nil
}
