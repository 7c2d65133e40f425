package egress

import "strings"

// CredentialLocation names where a decider should inject an outbound
// credential.
type CredentialLocation struct {
	Kind  CredentialLocationKind
	Name  string // header or query-param name; empty for AuthorizationBearer
}

type CredentialLocationKind string

const (
	LocationAuthorizationBearer CredentialLocationKind = "authorization_bearer"
	LocationHeader              CredentialLocationKind = "header"
	LocationQueryParam          CredentialLocationKind = "query_param"
)

// CredentialMapping associates a host with the secret that should be
// injected for requests to it.
type CredentialMapping struct {
	Domain     string
	SecretName string
	Location   CredentialLocation
}

// NetworkRequest is the fingerprint an egress decider evaluates.
type NetworkRequest struct {
	Method string
	URL    string
	Host   string
	Path   string
}

// RequestFromURL builds a NetworkRequest from a method and a URL string.
func RequestFromURL(method, url string) (NetworkRequest, bool) {
	host, ok := ExtractHost(url)
	if !ok {
		return NetworkRequest{}, false
	}
	return NetworkRequest{
		Method: method,
		URL:    url,
		Host:   host,
		Path:   ExtractPath(url),
	}, true
}

// DecisionKind enumerates the shapes of NetworkDecision.
type DecisionKind string

const (
	DecisionAllow                DecisionKind = "allow"
	DecisionAllowWithCredentials DecisionKind = "allow_with_credentials"
	DecisionDeny                 DecisionKind = "deny"
)

// NetworkDecision is the result of evaluating a NetworkRequest.
type NetworkDecision struct {
	Kind       DecisionKind
	SecretName string
	Location   CredentialLocation
	Reason     string
}

// IsAllowed reports whether the decision permits the request.
func (d NetworkDecision) IsAllowed() bool {
	return d.Kind == DecisionAllow || d.Kind == DecisionAllowWithCredentials
}

func allow() NetworkDecision { return NetworkDecision{Kind: DecisionAllow} }

func allowWithCredentials(secretName string, loc CredentialLocation) NetworkDecision {
	return NetworkDecision{Kind: DecisionAllowWithCredentials, SecretName: secretName, Location: loc}
}

func deny(reason string) NetworkDecision {
	return NetworkDecision{Kind: DecisionDeny, Reason: reason}
}

// NetworkPolicyDecider decides how (or whether) an outbound request may
// proceed.
type NetworkPolicyDecider interface {
	Decide(req NetworkRequest) NetworkDecision
}

// DefaultPolicyDecider consults a DomainAllowlist, then a set of
// CredentialMappings, to decide a request.
type DefaultPolicyDecider struct {
	Allowlist   *DomainAllowlist
	Credentials []CredentialMapping
}

// NewDefaultPolicyDecider builds a decider from an allowlist and credential
// mapping set.
func NewDefaultPolicyDecider(allowlist *DomainAllowlist, creds []CredentialMapping) *DefaultPolicyDecider {
	return &DefaultPolicyDecider{Allowlist: allowlist, Credentials: creds}
}

// Decide implements NetworkPolicyDecider.
func (d *DefaultPolicyDecider) Decide(req NetworkRequest) NetworkDecision {
	allowed, reason := d.Allowlist.IsAllowed(req.Host)
	if !allowed {
		return deny(reason)
	}
	if mapping, ok := d.findCredential(req.Host); ok {
		return allowWithCredentials(mapping.SecretName, mapping.Location)
	}
	return allow()
}

func (d *DefaultPolicyDecider) findCredential(host string) (CredentialMapping, bool) {
	host = strings.ToLower(host)
	for _, m := range d.Credentials {
		if strings.ToLower(m.Domain) == host {
			return m, true
		}
	}
	return CredentialMapping{}, false
}

// AllowAllDecider permits every request; used when the top-level sandbox
// policy is "full access".
type AllowAllDecider struct{}

func (AllowAllDecider) Decide(NetworkRequest) NetworkDecision { return allow() }

// DenyAllDecider denies every request with a fixed reason.
type DenyAllDecider struct {
	Reason string
}

func (d DenyAllDecider) Decide(NetworkRequest) NetworkDecision { return deny(d.Reason) }

// DefaultCredentialMappings returns the runtime's default credential
// injection mappings for the two reference LLM provider APIs.
func DefaultCredentialMappings() []CredentialMapping {
	return []CredentialMapping{
		{
			Domain:     "api.openai.com",
			SecretName: "OPENAI_API_KEY",
			Location:   CredentialLocation{Kind: LocationAuthorizationBearer},
		},
		{
			Domain:     "api.anthropic.com",
			SecretName: "ANTHROPIC_API_KEY",
			Location:   CredentialLocation{Kind: LocationHeader, Name: "x-api-key"},
		},
	}
}
