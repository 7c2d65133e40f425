package extensions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentcore/runtime/internal/egress"
)

// ModuleFunc is the entrypoint of a prepared extension module: given a
// JSON-encoded params string and a Host granting mediated capabilities, it
// returns a JSON-encoded output string or an error. No real WASM engine is
// wired (see DESIGN.md); ModuleFunc stands in for the module's compiled
// `execute` export, and a future real engine can satisfy this same shape.
type ModuleFunc func(ctx context.Context, host *Host, paramsJSON string) (string, error)

// PreparedModule is a compiled (here: registered) extension module, cached
// by name.
type PreparedModule struct {
	Name        string
	Description string
	Limits      egress.ResourceLimits
	fn          ModuleFunc
}

// Request is a single invocation of a prepared module.
type Request struct {
	ParamsJSON string
	Caps       Capabilities
	Decider    egress.NetworkPolicyDecider
	Secrets    SecretReader
	Workspace  WorkspaceStore
	Emitter    Emitter
	Logger     func(level, message string)
}

// Response is the result of a successful module invocation.
type Response struct {
	OutputJSON string
}

// SecretReader resolves named secrets on behalf of a module's
// secret_exists/secret_read capability.
type SecretReader interface {
	Exists(name string) bool
	Read(name string) (string, bool)
}

// WorkspaceStore backs a module's workspace_read/workspace_write capability.
type WorkspaceStore interface {
	Read(path string) (string, bool)
	Write(path string, content string) error
}

// Emitter backs a channel-mode module's emit_message capability.
type Emitter interface {
	Emit(payload string) error
}

// Runtime is the Extension Host: it compiles (registers) modules once,
// caching them by name, and instantiates a fresh execution context for
// every call.
type Runtime struct {
	mu      sync.RWMutex
	modules map[string]*PreparedModule
}

// NewRuntime returns an empty Extension Host.
func NewRuntime() *Runtime {
	return &Runtime{modules: map[string]*PreparedModule{}}
}

// Prepare registers a module under name with the given limits. If a module
// is already cached under name, the cached module is returned unchanged —
// re-preparing the same name with different content has no effect until the
// module is explicitly Removed first. This mirrors the exact compile-once
// caching semantics of the host this runtime replaces.
func (r *Runtime) Prepare(name, description string, limits egress.ResourceLimits, fn ModuleFunc) (*PreparedModule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.modules[name]; ok {
		return existing, nil
	}
	if fn == nil {
		return nil, startupFailed(name, "module has no entrypoint")
	}
	module := &PreparedModule{Name: name, Description: description, Limits: limits, fn: fn}
	r.modules[name] = module
	return module, nil
}

// Get returns a cached module by name.
func (r *Runtime) Get(name string) (*PreparedModule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// Remove evicts a cached module, allowing a subsequent Prepare under the
// same name to take effect.
func (r *Runtime) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.modules, name)
}

// List returns the names of every cached module.
func (r *Runtime) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	return names
}

// Clear evicts every cached module.
func (r *Runtime) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules = map[string]*PreparedModule{}
}

// Execute instantiates a fresh Host (fuel meter, capability bindings) for
// this call and invokes the module's entrypoint, bounding it by the
// module's wall-clock timeout. Fuel exhaustion, timeout, and panics are
// mapped to distinct error kinds; no state is shared between invocations.
func (r *Runtime) Execute(ctx context.Context, module *PreparedModule, req Request) (resp Response, err error) {
	timeout := time.Duration(module.Limits.Timeout)
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	host := &Host{
		module:    module.Name,
		fuel:      NewFuelMeter(module.Limits.Fuel),
		caps:      req.Caps,
		decider:   req.Decider,
		secrets:   req.Secrets,
		workspace: req.Workspace,
		emitter:   req.Emitter,
		logFn:     req.Logger,
	}

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: newError(ErrPanicked, module.Name, fmt.Sprintf("module panicked: %v", p))}
			}
		}()
		out, callErr := module.fn(callCtx, host, req.ParamsJSON)
		done <- result{out: out, err: callErr}
	}()

	select {
	case <-callCtx.Done():
		if host.fuel.Exhausted() {
			return Response{}, fuelExhausted(module.Name, module.Limits.Fuel)
		}
		return Response{}, newError(ErrTimeout, module.Name, "wall-clock timeout exceeded")
	case res := <-done:
		if res.err != nil {
			if host.fuel.Exhausted() {
				return Response{}, fuelExhausted(module.Name, module.Limits.Fuel)
			}
			if extErr, ok := res.err.(*Error); ok {
				return Response{}, extErr
			}
			return Response{}, newError(ErrCallbackFailed, module.Name, res.err.Error())
		}
		return Response{OutputJSON: res.out}, nil
	}
}

// FuelMeter is an abstract execution-step budget, decremented by the host
// on every mediated capability call, used as a CPU surrogate independent of
// wall-clock time.
type FuelMeter struct {
	mu        sync.Mutex
	remaining uint64
	limit     uint64
}

// NewFuelMeter returns a FuelMeter with the given budget.
func NewFuelMeter(limit uint64) *FuelMeter {
	return &FuelMeter{remaining: limit, limit: limit}
}

// Consume charges n units of fuel, returning false if the budget is
// exhausted.
func (f *FuelMeter) Consume(n uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > f.remaining {
		f.remaining = 0
		return false
	}
	f.remaining -= n
	return true
}

// Exhausted reports whether the fuel budget has been fully consumed.
func (f *FuelMeter) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remaining == 0
}
