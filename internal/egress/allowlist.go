// Package egress decides whether an outbound request from a tool or
// extension module is allowed, denied, or allowed with injected
// credentials, and guards direct-HTTP tool calls against SSRF.
package egress

import "strings"

// DomainPattern is a single allowlist entry, optionally a wildcard.
type DomainPattern struct {
	pattern    string
	isWildcard bool
	baseDomain string
}

// NewDomainPattern parses a pattern string. A leading "*." marks it as a
// wildcard matching the base domain and any sub-label.
func NewDomainPattern(pattern string) DomainPattern {
	isWildcard := strings.HasPrefix(pattern, "*.")
	base := pattern
	if isWildcard {
		base = pattern[2:]
	}
	return DomainPattern{
		pattern:    pattern,
		isWildcard: isWildcard,
		baseDomain: strings.ToLower(base),
	}
}

// Matches reports whether host satisfies this pattern.
func (p DomainPattern) Matches(host string) bool {
	host = strings.ToLower(host)
	if p.isWildcard {
		if host == p.baseDomain {
			return true
		}
		return strings.HasSuffix(host, "."+p.baseDomain)
	}
	return host == p.baseDomain
}

// DomainAllowlist is an ordered set of DomainPatterns. An empty allowlist
// denies every request.
type DomainAllowlist struct {
	patterns []DomainPattern
}

// NewDomainAllowlist builds an allowlist from the given pattern strings.
func NewDomainAllowlist(patterns ...string) *DomainAllowlist {
	a := &DomainAllowlist{}
	for _, p := range patterns {
		a.Add(p)
	}
	return a
}

// EmptyDomainAllowlist returns an allowlist with no entries — it denies
// every host.
func EmptyDomainAllowlist() *DomainAllowlist {
	return &DomainAllowlist{}
}

// Add appends a pattern to the allowlist.
func (a *DomainAllowlist) Add(pattern string) {
	a.patterns = append(a.patterns, NewDomainPattern(pattern))
}

// IsAllowed reports whether host matches any pattern in the allowlist.
func (a *DomainAllowlist) IsAllowed(host string) (bool, string) {
	if len(a.patterns) == 0 {
		return false, "empty allowlist"
	}
	for _, p := range a.patterns {
		if p.Matches(host) {
			return true, ""
		}
	}
	joined := make([]string, len(a.patterns))
	for i, p := range a.patterns {
		joined[i] = p.pattern
	}
	return false, "host '" + host + "' not in allowlist: [" + strings.Join(joined, ", ") + "]"
}

// ExtractHost extracts the lowercased host (without port) from a URL
// string. It returns ("", false) if the URL has no recognized scheme.
func ExtractHost(url string) (string, bool) {
	rest, ok := strings.CutPrefix(url, "https://")
	if !ok {
		rest, ok = strings.CutPrefix(url, "http://")
		if !ok {
			return "", false
		}
	}

	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		rest = rest[:idx]
	}
	if idx := strings.IndexByte(rest, '?'); idx >= 0 {
		rest = rest[:idx]
	}

	if strings.HasPrefix(rest, "[") {
		if end := strings.IndexByte(rest, ']'); end >= 0 {
			host := strings.ToLower(rest[1:end])
			if host == "" {
				return "", false
			}
			return host, true
		}
	}

	if idx := strings.LastIndexByte(rest, ':'); idx >= 0 {
		port := rest[idx+1:]
		allDigits := len(port) > 0
		for _, r := range port {
			if r < '0' || r > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			rest = rest[:idx]
		}
	}

	rest = strings.ToLower(rest)
	if rest == "" {
		return "", false
	}
	return rest, true
}

// ExtractPath extracts the URL path component, defaulting to "/".
func ExtractPath(url string) string {
	idx := strings.Index(url, "://")
	if idx < 0 {
		return "/"
	}
	rest := url[idx+3:]
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return "/"
	}
	return rest[slash:]
}

// DefaultAllowlist returns the runtime's default domain allowlist: package
// registries, docs, VCS hosts, and the reference LLM provider APIs.
func DefaultAllowlist() *DomainAllowlist {
	return NewDomainAllowlist(
		"crates.io",
		"*.crates.io",
		"registry.npmjs.org",
		"proxy.golang.org",
		"pypi.org",
		"*.pypi.org",
		"docs.rs",
		"pkg.go.dev",
		"github.com",
		"raw.githubusercontent.com",
		"api.github.com",
		"api.openai.com",
		"api.anthropic.com",
	)
}
