package safety

import "regexp"

// PolicyAction is the action taken when a PolicyRule matches.
type PolicyAction string

const (
	ActionWarn     PolicyAction = "warn"
	ActionBlock    PolicyAction = "block"
	ActionReview   PolicyAction = "review"
	ActionSanitize PolicyAction = "sanitize"
)

// PolicyRule is a single content-matching safety rule.
type PolicyRule struct {
	ID          string
	Description string
	Severity    Severity
	Action      PolicyAction
	pattern     *regexp.Regexp
}

// NewPolicyRule compiles pattern and returns a PolicyRule. It panics on an
// invalid regex: rule sets are compile-time-known, so a bad pattern is a
// programmer error, not a runtime condition to handle gracefully.
func NewPolicyRule(id, description, pattern string, severity Severity, action PolicyAction) PolicyRule {
	return PolicyRule{
		ID:          id,
		Description: description,
		Severity:    severity,
		Action:      action,
		pattern:     regexp.MustCompile(pattern),
	}
}

// Matches reports whether content matches the rule's pattern.
func (r PolicyRule) Matches(content string) bool {
	return r.pattern.MatchString(content)
}

// Policy is an ordered set of PolicyRules.
type Policy struct {
	rules []PolicyRule
}

// NewPolicy returns an empty Policy.
func NewPolicy() *Policy {
	return &Policy{}
}

// AddRule appends a rule to the policy.
func (p *Policy) AddRule(rule PolicyRule) {
	p.rules = append(p.rules, rule)
}

// Rules returns the policy's rules.
func (p *Policy) Rules() []PolicyRule {
	return p.rules
}

// Check returns every rule that matches content.
func (p *Policy) Check(content string) []PolicyRule {
	var matched []PolicyRule
	for _, r := range p.rules {
		if r.Matches(content) {
			matched = append(matched, r)
		}
	}
	return matched
}

// IsBlocked reports whether any matching rule's action is Block.
func (p *Policy) IsBlocked(content string) bool {
	for _, r := range p.Check(content) {
		if r.Action == ActionBlock {
			return true
		}
	}
	return false
}

// DefaultPolicy returns the runtime's default safety policy rule set.
func DefaultPolicy() *Policy {
	p := NewPolicy()

	p.AddRule(NewPolicyRule(
		"system_file_access",
		"Attempt to access system files",
		`(?i)(/etc/passwd|/etc/shadow|\.ssh/|\.aws/credentials)`,
		SeverityCritical, ActionBlock,
	))
	p.AddRule(NewPolicyRule(
		"crypto_private_key",
		"Potential cryptocurrency private key",
		`(?i)(private.?key|seed.?phrase|mnemonic).{0,20}[0-9a-f]{64}`,
		SeverityCritical, ActionBlock,
	))
	p.AddRule(NewPolicyRule(
		"sql_pattern",
		"SQL-like pattern detected",
		`(?i)(DROP\s+TABLE|DELETE\s+FROM|INSERT\s+INTO|UPDATE\s+\w+\s+SET)`,
		SeverityMedium, ActionWarn,
	))
	p.AddRule(NewPolicyRule(
		"shell_injection",
		"Potential shell command injection",
		"(?i)(;\\s*rm\\s+-rf|;\\s*curl\\s+.*\\|\\s*sh|`.*`)",
		SeverityCritical, ActionBlock,
	))
	p.AddRule(NewPolicyRule(
		"excessive_urls",
		"Excessive number of URLs detected",
		`(https?://[^\s]+\s*){10,}`,
		SeverityLow, ActionWarn,
	))
	p.AddRule(NewPolicyRule(
		"encoded_exploit",
		"Potential encoded exploit payload",
		`(?i)(base64_decode|eval\s*\(\s*base64|atob\s*\()`,
		SeverityHigh, ActionSanitize,
	))
	p.AddRule(NewPolicyRule(
		"obfuscated_string",
		"Potential obfuscated content",
		`[^\s]{500,}`,
		SeverityMedium, ActionWarn,
	))

	return p
}
