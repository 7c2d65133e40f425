package egress

import (
	"fmt"
	"strings"

	"github.com/agentcore/runtime/internal/net/ssrf"
)

// URLGuard is the pre-decider check for direct HTTP tool calls: it accepts
// only https, rejects localhost and its wildcard suffixes, and rejects
// literal IPs that are private, loopback, link-local, or the cloud metadata
// endpoint.
type URLGuard struct{}

// NewURLGuard returns a URLGuard.
func NewURLGuard() *URLGuard {
	return &URLGuard{}
}

// Check validates a URL against the SSRF guard rules, returning an error if
// the request must be rejected before ever reaching the egress decider.
func (g *URLGuard) Check(rawURL string) error {
	if !strings.HasPrefix(rawURL, "https://") {
		return fmt.Errorf("url guard: only https is permitted")
	}
	host, ok := ExtractHost(rawURL)
	if !ok {
		return fmt.Errorf("url guard: unable to parse host from url")
	}
	if ssrf.IsBlockedHostname(host) {
		return ssrf.NewSSRFBlockedError(fmt.Sprintf("blocked hostname: %s", host))
	}
	if ssrf.IsPrivateIPAddress(host) {
		return ssrf.NewSSRFBlockedError(fmt.Sprintf("blocked: private/internal address: %s", host))
	}
	return nil
}
