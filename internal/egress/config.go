package egress

import "strings"

// SandboxPolicy is the top-level network access posture for a job or
// extension module.
type SandboxPolicy int

const (
	PolicyReadOnly SandboxPolicy = iota
	PolicyWorkspaceWrite
	PolicyFullAccess
)

// ParseSandboxPolicy parses a policy name, accepting the aliases the
// reference configuration format uses.
func ParseSandboxPolicy(s string) (SandboxPolicy, bool) {
	switch strings.ToLower(s) {
	case "readonly", "ro":
		return PolicyReadOnly, true
	case "workspacewrite", "workspace_write", "rw":
		return PolicyWorkspaceWrite, true
	case "fullaccess", "full_access", "full", "none":
		return PolicyFullAccess, true
	default:
		return 0, false
	}
}

// AllowsWrites reports whether the policy permits workspace writes.
func (p SandboxPolicy) AllowsWrites() bool {
	return p == PolicyWorkspaceWrite || p == PolicyFullAccess
}

// HasFullNetwork reports whether the policy bypasses the egress decider
// entirely.
func (p SandboxPolicy) HasFullNetwork() bool {
	return p == PolicyFullAccess
}

// IsSandboxed reports whether the policy is anything other than full
// access.
func (p SandboxPolicy) IsSandboxed() bool {
	return p != PolicyFullAccess
}

// DeciderFor returns the NetworkPolicyDecider appropriate for policy,
// falling back to the provided default decider for ReadOnly/WorkspaceWrite.
func DeciderFor(policy SandboxPolicy, def NetworkPolicyDecider) NetworkPolicyDecider {
	if policy.HasFullNetwork() {
		return AllowAllDecider{}
	}
	return def
}

// ResourceLimits bounds an extension module's resource consumption.
type ResourceLimits struct {
	MemoryBytes   int64
	Fuel          uint64
	Timeout       int64 // nanoseconds
	MaxOutputBytes int
}

// DefaultToolResourceLimits returns the default limits for tool-mode
// extension modules: 10 MiB memory, 1M fuel, 30s wall-clock.
func DefaultToolResourceLimits() ResourceLimits {
	return ResourceLimits{
		MemoryBytes:    10 * 1024 * 1024,
		Fuel:           1_000_000,
		Timeout:        30_000_000_000,
		MaxOutputBytes: 64 * 1024,
	}
}

// DefaultChannelResourceLimits returns the default limits for channel-mode
// extension modules: 50 MiB memory, 10M fuel, 60s wall-clock.
func DefaultChannelResourceLimits() ResourceLimits {
	return ResourceLimits{
		MemoryBytes:    50 * 1024 * 1024,
		Fuel:           10_000_000,
		Timeout:        60_000_000_000,
		MaxOutputBytes: 64 * 1024,
	}
}
