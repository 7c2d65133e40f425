package extensions

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agentcore/runtime/internal/egress"
)

// fuelPerHostCall is charged against a module's fuel budget for every
// mediated capability invocation, independent of wall-clock cost.
const fuelPerHostCall uint64 = 1000

// Host is the capability surface exposed to a single module invocation. It
// never hands the module a raw secret value directly to store; secrets are
// requested by name and resolved through the host.
type Host struct {
	module    string
	fuel      *FuelMeter
	caps      Capabilities
	decider   egress.NetworkPolicyDecider
	secrets   SecretReader
	workspace WorkspaceStore
	emitter   Emitter
	logFn     func(level, message string)

	emittedThisMinute int
	emittedThisHour   int
}

func (h *Host) charge() error {
	if !h.fuel.Consume(fuelPerHostCall) {
		return fuelExhausted(h.module, 0)
	}
	return nil
}

// HTTPRequest performs an outbound HTTP call mediated by the configured
// NetworkPolicyDecider; the module never sees raw credentials, the host
// injects them per the decider's AllowWithCredentials instructions.
func (h *Host) HTTPRequest(ctx context.Context, method, url string, headers map[string]string, body []byte) (status int, respBody []byte, err error) {
	if err := h.charge(); err != nil {
		return 0, nil, err
	}

	req, ok := egress.RequestFromURL(method, url)
	if !ok {
		return 0, nil, newError(ErrInvalidResponse, h.module, "unable to parse request url")
	}

	decision := h.decider.Decide(req)
	if !decision.IsAllowed() {
		return 0, nil, newError(ErrPathNotAllowed, h.module, "egress denied: "+decision.Reason)
	}

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return 0, nil, newError(ErrInvalidResponse, h.module, err.Error())
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	if decision.Kind == egress.DecisionAllowWithCredentials && h.secrets != nil {
		secretValue, found := h.secrets.Read(decision.SecretName)
		if found {
			switch decision.Location.Kind {
			case egress.LocationAuthorizationBearer:
				httpReq.Header.Set("Authorization", "Bearer "+secretValue)
			case egress.LocationHeader:
				httpReq.Header.Set(decision.Location.Name, secretValue)
			case egress.LocationQueryParam:
				q := httpReq.URL.Query()
				q.Set(decision.Location.Name, secretValue)
				httpReq.URL.RawQuery = q.Encode()
			}
		}
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, nil, newError(ErrCallbackFailed, h.module, err.Error())
	}
	defer resp.Body.Close()

	const maxCapturedBody = 1 << 20
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCapturedBody))
	if err != nil {
		return resp.StatusCode, nil, newError(ErrCallbackFailed, h.module, err.Error())
	}
	return resp.StatusCode, data, nil
}

// SecretExists reports whether a named secret is resolvable, without
// revealing its value.
func (h *Host) SecretExists(name string) (bool, error) {
	if err := h.charge(); err != nil {
		return false, err
	}
	if h.secrets == nil {
		return false, nil
	}
	return h.secrets.Exists(name), nil
}

// SecretRead resolves a named secret's value through the SecretReader
// carried by the Request passed to Execute. It makes no capability check
// of its own and reports not found when no reader was supplied.
func (h *Host) SecretRead(name string) (string, bool, error) {
	if err := h.charge(); err != nil {
		return "", false, err
	}
	if h.secrets == nil {
		return "", false, nil
	}
	v, ok := h.secrets.Read(name)
	return v, ok, nil
}

// WorkspaceRead reads a namespaced workspace path.
func (h *Host) WorkspaceRead(path string) (string, bool, error) {
	if err := h.charge(); err != nil {
		return "", false, err
	}
	scoped, err := h.caps.ValidateWorkspacePath(h.module, path)
	if err != nil {
		return "", false, err
	}
	if h.workspace == nil {
		return "", false, nil
	}
	v, ok := h.workspace.Read(scoped)
	return v, ok, nil
}

// WorkspaceWrite writes content to a namespaced workspace path.
func (h *Host) WorkspaceWrite(path, content string) error {
	if err := h.charge(); err != nil {
		return err
	}
	scoped, err := h.caps.ValidateWorkspacePath(h.module, path)
	if err != nil {
		return err
	}
	if h.workspace == nil {
		return newError(ErrCallbackFailed, h.module, "no workspace store configured")
	}
	return h.workspace.Write(scoped, content)
}

// Log records a module log line at the given level.
func (h *Host) Log(level, message string) {
	if h.logFn != nil {
		h.logFn(level, fmt.Sprintf("[%s] %s", h.module, message))
	}
}

// EmitMessage publishes a channel-mode module event, subject to the
// module's configured per-minute/per-hour caps. The emit counts live on
// this Host, which Execute builds fresh for every call, and are never
// reset on a time window, so each cap bounds the emits of one invocation.
func (h *Host) EmitMessage(payload string) error {
	if err := h.charge(); err != nil {
		return err
	}
	if h.emitter == nil {
		return newError(ErrCallbackFailed, h.module, "module is not channel-mode: no emitter configured")
	}
	limit := h.caps.EmitRateLimit
	if limit.MessagesPerMinute > 0 && h.emittedThisMinute >= limit.MessagesPerMinute {
		return newError(ErrEmitRateLimited, h.module, "per-minute emit rate exceeded")
	}
	if limit.MessagesPerHour > 0 && h.emittedThisHour >= limit.MessagesPerHour {
		return newError(ErrEmitRateLimited, h.module, "per-hour emit rate exceeded")
	}
	if h.caps.MaxMessageSize > 0 && len(payload) > h.caps.MaxMessageSize {
		return newError(ErrInvalidResponse, h.module, "message exceeds max size")
	}
	if err := h.emitter.Emit(payload); err != nil {
		return newError(ErrCallbackFailed, h.module, err.Error())
	}
	h.emittedThisMinute++
	h.emittedThisHour++
	return nil
}
