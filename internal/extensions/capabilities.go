package extensions

import (
	"strings"
)

// MinPollIntervalMs is the floor below which a channel-mode extension's poll
// interval is clamped.
const MinPollIntervalMs int64 = 30_000

// DefaultEmitRatePerMinute and DefaultEmitRatePerHour bound an extension's
// emit_message capability absent an explicit override.
const (
	DefaultEmitRatePerMinute = 100
	DefaultEmitRatePerHour   = 5000
	DefaultMaxMessageSize    = 64 * 1024
	DefaultCallbackTimeoutMs = 30_000
)

// EmitRateLimitConfig bounds emit_message calls per module.
type EmitRateLimitConfig struct {
	MessagesPerMinute int
	MessagesPerHour   int
}

// HTTPEndpointConfig declares an HTTP route a channel-mode extension wants
// the webhook server to expose on its behalf.
type HTTPEndpointConfig struct {
	Path          string
	Methods       []string
	RequireSecret bool
}

// PostWebhook is a convenience constructor for the common POST-webhook
// endpoint shape.
func PostWebhook(path string) HTTPEndpointConfig {
	return HTTPEndpointConfig{Path: path, Methods: []string{"POST"}, RequireSecret: true}
}

// PollConfig is a channel-mode extension's declared polling behavior.
type PollConfig struct {
	IntervalMs int64
	Enabled    bool
}

// Capabilities is the capability surface granted to a single prepared
// extension module: which tools it may call into, which workspace paths it
// may touch, whether and how often it may poll, and its emit-rate budget.
type Capabilities struct {
	ToolCapabilities  []string
	AllowedPaths      []string
	AllowPolling      bool
	MinPollIntervalMs int64
	WorkspacePrefix   string
	EmitRateLimit     EmitRateLimitConfig
	MaxMessageSize    int
	CallbackTimeoutMs int64
}

// ForChannel returns the default capability set for a named channel-mode
// extension, namespacing its workspace prefix by channel name.
func ForChannel(name string) Capabilities {
	return Capabilities{
		MinPollIntervalMs: MinPollIntervalMs,
		WorkspacePrefix:   "channels/" + name + "/",
		EmitRateLimit: EmitRateLimitConfig{
			MessagesPerMinute: DefaultEmitRatePerMinute,
			MessagesPerHour:   DefaultEmitRatePerHour,
		},
		MaxMessageSize:    DefaultMaxMessageSize,
		CallbackTimeoutMs: DefaultCallbackTimeoutMs,
	}
}

// WithPath appends an allowed workspace path.
func (c Capabilities) WithPath(path string) Capabilities {
	c.AllowedPaths = append(append([]string{}, c.AllowedPaths...), path)
	return c
}

// WithPolling enables polling. The requested interval is not stored;
// ValidatePollInterval applies the floor when an interval is checked.
func (c Capabilities) WithPolling(intervalMs int64) Capabilities {
	c.AllowPolling = true
	if intervalMs < c.MinPollIntervalMs {
		intervalMs = c.MinPollIntervalMs
	}
	return c
}

// WithEmitRateLimit overrides the emit-rate budget.
func (c Capabilities) WithEmitRateLimit(cfg EmitRateLimitConfig) Capabilities {
	c.EmitRateLimit = cfg
	return c
}

// WithCallbackTimeout overrides the callback timeout in milliseconds.
func (c Capabilities) WithCallbackTimeout(ms int64) Capabilities {
	c.CallbackTimeoutMs = ms
	return c
}

// WithToolCapabilities overrides the set of tool names this module may
// invoke.
func (c Capabilities) WithToolCapabilities(tools []string) Capabilities {
	c.ToolCapabilities = tools
	return c
}

// IsPathAllowed reports whether path exactly matches one of the declared
// allowed paths.
func (c Capabilities) IsPathAllowed(path string) bool {
	for _, p := range c.AllowedPaths {
		if p == path {
			return true
		}
	}
	return false
}

// ValidatePollInterval checks an extension's requested poll interval
// against the configured floor. It errors if the module never declared
// polling; an interval below the floor returns the floor together with a
// poll-interval-too-short error.
func (c Capabilities) ValidatePollInterval(moduleName string, intervalMs int64) (int64, error) {
	if !c.AllowPolling {
		return 0, newError(ErrPollIntervalTooShort, moduleName, "module has not declared polling")
	}
	if intervalMs < c.MinPollIntervalMs {
		return c.MinPollIntervalMs, pollIntervalTooShort(moduleName, intervalMs, c.MinPollIntervalMs)
	}
	return intervalMs, nil
}

// PrefixWorkspacePath joins path under the module's workspace prefix.
func (c Capabilities) PrefixWorkspacePath(path string) string {
	return c.WorkspacePrefix + strings.TrimPrefix(path, "/")
}

// ValidateWorkspacePath rejects absolute paths, parent-directory escapes,
// and null bytes, then returns the namespaced path.
func (c Capabilities) ValidateWorkspacePath(moduleName, path string) (string, error) {
	if strings.HasPrefix(path, "/") {
		return "", newError(ErrWorkspaceEscape, moduleName, "absolute paths are not allowed: "+path)
	}
	if strings.Contains(path, "..") {
		return "", newError(ErrWorkspaceEscape, moduleName, "parent directory references are not allowed: "+path)
	}
	if strings.ContainsRune(path, 0) {
		return "", newError(ErrWorkspaceEscape, moduleName, "null byte in path")
	}
	return c.PrefixWorkspacePath(path), nil
}
