package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/agentcore/runtime/internal/egress"
	"github.com/agentcore/runtime/internal/jobctx"
	"github.com/agentcore/runtime/internal/safety"
	"github.com/agentcore/runtime/internal/tools"
)

// HTTPTool makes outbound HTTP requests to external APIs, guarded by an
// SSRF-aware URL guard and scanned for credential leakage before the
// request leaves the process. When decider/resolver are configured it
// also consults the egress policy decider and injects the resolved
// credential for hosts with a CredentialMapping, instead of requiring
// the caller to pass secrets in as tool parameters.
type HTTPTool struct {
	tools.BaseTool
	client   *http.Client
	guard    *egress.URLGuard
	leaks    *safety.LeakDetector
	decider  egress.NetworkPolicyDecider
	resolver egress.CredentialResolver
}

// NewHTTPTool builds an HTTPTool guarded by guard, defaulting to a 30s
// client timeout and no credential injection.
func NewHTTPTool(guard *egress.URLGuard) *HTTPTool {
	return &HTTPTool{
		client: &http.Client{Timeout: 30 * time.Second},
		guard:  guard,
		leaks:  safety.NewLeakDetector(),
	}
}

// NewHTTPToolWithPolicy builds an HTTPTool that additionally consults
// decider for allow/deny and resolver for credential injection on
// hosts with a CredentialMapping.
func NewHTTPToolWithPolicy(guard *egress.URLGuard, decider egress.NetworkPolicyDecider, resolver egress.CredentialResolver) *HTTPTool {
	t := NewHTTPTool(guard)
	t.decider = decider
	t.resolver = resolver
	return t
}

func (*HTTPTool) Name() string { return "http" }
func (*HTTPTool) Description() string {
	return "Make HTTP requests to external APIs. Supports GET, POST, PUT, DELETE, PATCH."
}

func (*HTTPTool) ParametersSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"method": {"type": "string", "enum": ["GET", "POST", "PUT", "DELETE", "PATCH"]},
			"url": {"type": "string"},
			"headers": {"type": "object", "additionalProperties": {"type": "string"}},
			"body": {"description": "request body for POST/PUT/PATCH"},
			"timeout_secs": {"type": "integer"}
		},
		"required": ["method", "url"]
	}`)
}

func (*HTTPTool) EstimatedDuration(json.RawMessage) *time.Duration {
	d := 5 * time.Second
	return &d
}

func (*HTTPTool) RequiresSanitization() bool { return true } // external data always needs sanitization
func (*HTTPTool) RequiresApproval() bool     { return true } // external network call

func (t *HTTPTool) Execute(ctx context.Context, params json.RawMessage, _ *jobctx.JobContext) (tools.Output, error) {
	start := time.Now()

	var in struct {
		Method     string            `json:"method"`
		URL        string            `json:"url"`
		Headers    map[string]string `json:"headers"`
		Body       json.RawMessage   `json:"body"`
		TimeoutSec int               `json:"timeout_secs"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return tools.Output{}, tools.InvalidParameters("invalid parameters: " + err.Error())
	}
	if in.Method == "" || in.URL == "" {
		return tools.Output{}, tools.InvalidParameters("missing 'method' or 'url' parameter")
	}

	if err := t.guard.Check(in.URL); err != nil {
		return tools.Output{}, tools.NotAuthorized(err.Error())
	}

	query := map[string]string{}
	if t.decider != nil {
		req, ok := egress.RequestFromURL(in.Method, in.URL)
		if !ok {
			return tools.Output{}, tools.InvalidParameters("invalid request: unable to parse host from url")
		}
		decision := t.decider.Decide(req)
		if !decision.IsAllowed() {
			return tools.Output{}, tools.NotAuthorized("egress policy denied: " + decision.Reason)
		}
		if decision.Kind == egress.DecisionAllowWithCredentials && t.resolver != nil {
			value, err := t.resolver.Resolve(ctx, decision.SecretName, decision.Location)
			if err != nil {
				return tools.Output{}, tools.ExternalService(err.Error())
			}
			if in.Headers == nil {
				in.Headers = map[string]string{}
			}
			egress.Inject(decision.Location, value, in.Headers, query)
			if len(query) > 0 {
				in.URL = appendQuery(in.URL, query)
			}
		}
	}

	var bodyBytes []byte
	if len(in.Body) > 0 {
		bodyBytes = in.Body
	}

	if leak := t.scanOutbound(in.URL, in.Headers, bodyBytes); leak != nil {
		return tools.Output{}, leak
	}

	var reader io.Reader
	if len(bodyBytes) > 0 {
		reader = bytes.NewReader(bodyBytes)
	}
	httpReq, err := http.NewRequestWithContext(ctx, in.Method, in.URL, reader)
	if err != nil {
		return tools.Output{}, tools.InvalidParameters("invalid request: " + err.Error())
	}
	for k, v := range in.Headers {
		httpReq.Header.Set(k, v)
	}
	if len(bodyBytes) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return tools.Output{}, tools.Timeout(t.client.Timeout)
		}
		return tools.Output{}, tools.ExternalService(err.Error())
	}
	defer resp.Body.Close()

	const maxBody = 5 << 20
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return tools.Output{}, tools.ExternalService("failed to read response body: " + err.Error())
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}

	var bodyValue any = string(respBody)
	var probe any
	if json.Unmarshal(respBody, &probe) == nil {
		bodyValue = probe
	}

	result := map[string]any{
		"status":  resp.StatusCode,
		"headers": respHeaders,
		"body":    bodyValue,
	}
	out := tools.JSONOutput(result, time.Since(start))
	out.Raw = string(respBody)
	return out, nil
}

func appendQuery(rawURL string, params map[string]string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := parsed.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

func (t *HTTPTool) scanOutbound(url string, headers map[string]string, body []byte) error {
	text := url
	for name, value := range headers {
		text += " " + name + ": " + value
	}
	if len(body) > 0 {
		text += " " + string(body)
	}
	scan, err := t.leaks.ScanAndClean(text)
	if err != nil || scan.Blocked {
		return tools.NotAuthorized("request blocked: potential secret leakage in outbound request")
	}
	return nil
}
