package safety

import (
	"regexp"
	"sort"
	"strings"
)

// Severity is a totally ordered safety severity level.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// InjectionWarning describes one detected prompt-injection pattern occurrence.
type InjectionWarning struct {
	Pattern     string
	Severity    Severity
	Start       int
	End         int
	Description string
}

// BlockReason tags why SafetyLayer.SanitizeOutput hard-blocked content.
type BlockReason string

const (
	BlockNone   BlockReason = ""
	BlockLeak   BlockReason = "leak"
	BlockPolicy BlockReason = "policy"
)

// SanitizedOutput is the result of running the Sanitizer over external content.
type SanitizedOutput struct {
	Content     string
	Warnings    []InjectionWarning
	WasModified bool
	// Blocked is set by SafetyLayer.SanitizeOutput when a leak or policy
	// rule hard-blocked the content rather than merely sanitizing it; the
	// Sanitizer itself never sets this field.
	Blocked     bool
	BlockReason BlockReason
	// ReviewRequired is set when a matched policy rule's action is
	// ActionReview: content is not blocked or altered, but the action
	// should be flagged for a human reviewer.
	ReviewRequired bool
}

type literalPattern struct {
	pattern     string
	severity    Severity
	description string
}

type regexPattern struct {
	re          *regexp.Regexp
	name        string
	severity    Severity
	description string
}

// Sanitizer detects and neutralizes prompt-injection attempts in text that
// originated outside the trust boundary (tool output, extension responses).
type Sanitizer struct {
	literals []literalPattern
	literal  *regexp.Regexp // single alternation over all literal patterns, case-insensitive
	regexes  []regexPattern
}

// NewSanitizer builds a Sanitizer with the default injection pattern set.
func NewSanitizer() *Sanitizer {
	literals := []literalPattern{
		{"ignore previous", SeverityHigh, "Attempt to override previous instructions"},
		{"ignore all previous", SeverityCritical, "Attempt to override all previous instructions"},
		{"disregard", SeverityMedium, "Potential instruction override"},
		{"forget everything", SeverityHigh, "Attempt to reset context"},
		{"you are now", SeverityHigh, "Attempt to change assistant role"},
		{"act as", SeverityMedium, "Potential role manipulation"},
		{"pretend to be", SeverityMedium, "Potential role manipulation"},
		{"system:", SeverityCritical, "Attempt to inject system message"},
		{"assistant:", SeverityHigh, "Attempt to inject assistant response"},
		{"user:", SeverityHigh, "Attempt to inject user message"},
		{"<|", SeverityCritical, "Potential special token injection"},
		{"|>", SeverityCritical, "Potential special token injection"},
		{"[INST]", SeverityCritical, "Potential instruction token injection"},
		{"[/INST]", SeverityCritical, "Potential instruction token injection"},
		{"new instructions", SeverityHigh, "Attempt to provide new instructions"},
		{"updated instructions", SeverityHigh, "Attempt to update instructions"},
		{"```system", SeverityHigh, "Potential code block instruction injection"},
		{"```bash\nsudo", SeverityMedium, "Potential dangerous command injection"},
	}

	quoted := make([]string, len(literals))
	for i, l := range literals {
		quoted[i] = regexp.QuoteMeta(l.pattern)
	}
	literalRe := regexp.MustCompile("(?i)(" + strings.Join(quoted, "|") + ")")

	regexes := []regexPattern{
		{regexp.MustCompile(`(?i)base64[:\s]+[A-Za-z0-9+/=]{50,}`), "base64_payload", SeverityMedium, "Potential encoded payload"},
		{regexp.MustCompile(`(?i)eval\s*\(`), "eval_call", SeverityHigh, "Potential code evaluation attempt"},
		{regexp.MustCompile(`(?i)exec\s*\(`), "exec_call", SeverityHigh, "Potential code execution attempt"},
		{regexp.MustCompile("\x00"), "null_byte", SeverityCritical, "Null byte injection attempt"},
	}

	return &Sanitizer{literals: literals, literal: literalRe, regexes: regexes}
}

// Sanitize scans content for injection patterns and, when a Critical-severity
// match is found, escapes the content. It never mutates content absent a
// Critical match. was_modified reports whether escaping changed the text, so
// it is also false when a Critical match needs no escaping (a role marker
// that does not start a line, or a token that is already escaped).
func (s *Sanitizer) Sanitize(content string) SanitizedOutput {
	var warnings []InjectionWarning

	for _, m := range s.literal.FindAllStringSubmatchIndex(content, -1) {
		start, end := m[0], m[1]
		matched := strings.ToLower(content[start:end])
		info := s.lookupLiteral(matched)
		warnings = append(warnings, InjectionWarning{
			Pattern:     info.pattern,
			Severity:    info.severity,
			Start:       start,
			End:         end,
			Description: info.description,
		})
	}

	for _, rp := range s.regexes {
		for _, loc := range rp.re.FindAllStringIndex(content, -1) {
			warnings = append(warnings, InjectionWarning{
				Pattern:     rp.name,
				Severity:    rp.severity,
				Start:       loc[0],
				End:         loc[1],
				Description: rp.description,
			})
		}
	}

	sort.SliceStable(warnings, func(i, j int) bool {
		return warnings[i].Severity > warnings[j].Severity
	})

	hasCritical := false
	for _, w := range warnings {
		if w.Severity == SeverityCritical {
			hasCritical = true
			break
		}
	}

	out := content
	modified := false
	if hasCritical {
		out = s.escapeContent(content)
		modified = out != content
	}

	return SanitizedOutput{Content: out, Warnings: warnings, WasModified: modified}
}

// Detect returns the warnings Sanitize would produce without modifying content.
func (s *Sanitizer) Detect(content string) []InjectionWarning {
	return s.Sanitize(content).Warnings
}

func (s *Sanitizer) lookupLiteral(lowerMatch string) literalPattern {
	for _, l := range s.literals {
		if strings.ToLower(l.pattern) == lowerMatch {
			return l
		}
	}
	// Regexp alternation guarantees a match against one of the literals, but
	// fall back defensively rather than panic on an unexpected mismatch.
	return literalPattern{pattern: lowerMatch, severity: SeverityMedium, description: "unknown pattern"}
}

// escapeContent neutralizes special framing tokens and role markers with a
// backslash escape. "<|", "[INST]" and "[/INST]" are escaped by prefixing
// the token, which leaves the token itself intact in the output; escapeSpan
// guards against re-escaping those on a later pass by skipping any
// occurrence already preceded by a backslash, so sanitize stays idempotent
// on its own output. "|>" is escaped by inserting the backslash inside the
// token instead, which breaks the adjacency outright and needs no such
// guard.
func (s *Sanitizer) escapeContent(content string) string {
	escaped := content
	escaped = escapeSpan(escaped, "<|", `\<|`)
	escaped = strings.ReplaceAll(escaped, "|>", `|\>`)
	escaped = escapeSpan(escaped, "[INST]", `\[INST]`)
	escaped = escapeSpan(escaped, "[/INST]", `\[/INST]`)
	escaped = strings.ReplaceAll(escaped, "\x00", "")

	lines := strings.Split(escaped, "\n")
	for i, line := range lines {
		lowerLine := strings.ToLower(line)
		trimmedLower := strings.TrimLeft(lowerLine, " \t")
		for _, marker := range []string{"system:", "user:", "assistant:"} {
			if strings.HasPrefix(trimmedLower, marker) {
				lines[i] = "[ESCAPED] " + line
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

// escapeSpan replaces every occurrence of token with replacement, except
// occurrences immediately preceded by a backslash, which are left alone on
// the assumption that a prior pass already escaped them.
func escapeSpan(content, token, replacement string) string {
	var b strings.Builder
	rest := content
	for {
		idx := strings.Index(rest, token)
		if idx < 0 {
			b.WriteString(rest)
			break
		}
		if idx > 0 && rest[idx-1] == '\\' {
			b.WriteString(rest[:idx+len(token)])
		} else {
			b.WriteString(rest[:idx])
			b.WriteString(replacement)
		}
		rest = rest[idx+len(token):]
	}
	return b.String()
}
