package safety

import (
	"fmt"
	"strings"
)

// Config tunes the SafetyLayer's thresholds and feature gates.
type Config struct {
	MaxOutputLength        int
	InjectionCheckEnabled  bool
}

// DefaultConfig returns the runtime's default safety configuration.
func DefaultConfig() Config {
	return Config{
		MaxOutputLength:       100_000,
		InjectionCheckEnabled: true,
	}
}

// SafetyLayer composes the validator, sanitizer, policy, and leak detector
// into the single gate every tool output crosses before reaching the LLM.
type SafetyLayer struct {
	Validator    *Validator
	Sanitizer    *Sanitizer
	Policy       *Policy
	LeakDetector *LeakDetector
	Config       Config
}

// NewSafetyLayer builds a SafetyLayer from its defaults.
func NewSafetyLayer() *SafetyLayer {
	return &SafetyLayer{
		Validator:    NewValidator(),
		Sanitizer:    NewSanitizer(),
		Policy:       DefaultPolicy(),
		LeakDetector: NewLeakDetector(),
		Config:       DefaultConfig(),
	}
}

// ValidateInput applies the validator to a piece of untrusted input text.
func (s *SafetyLayer) ValidateInput(text string) ValidationResult {
	return s.Validator.Validate(text)
}

// CheckPolicy returns every policy rule that matches content.
func (s *SafetyLayer) CheckPolicy(content string) []PolicyRule {
	return s.Policy.Check(content)
}

const truncationNotice = "[Output truncated: exceeded maximum length]"
const leakBlockedNotice = "[Output blocked due to potential secret leakage]"
const policyBlockedNotice = "[Output blocked by safety policy]"

// SanitizeOutput runs the full output gate: length truncation, leak
// scan/redaction, policy evaluation, then prompt-injection detection. Any
// hard block short-circuits the remaining steps.
func (s *SafetyLayer) SanitizeOutput(toolName, text string) SanitizedOutput {
	if len(text) > s.Config.MaxOutputLength {
		return SanitizedOutput{
			Content:     truncationNotice,
			WasModified: true,
			Warnings: []InjectionWarning{{
				Pattern:     "output_too_long",
				Severity:    SeverityLow,
				Description: "output exceeded maximum length and was truncated",
			}},
		}
	}

	leakResult, err := s.LeakDetector.ScanAndClean(text)
	if err != nil {
		return SanitizedOutput{Content: leakBlockedNotice, WasModified: true, Blocked: true, BlockReason: BlockLeak}
	}
	content := text
	modified := false
	if leakResult.RedactedContent != "" && leakResult.RedactedContent != text {
		content = leakResult.RedactedContent
		modified = true
	}

	violations := s.Policy.Check(content)
	reviewRequired := false
	for _, v := range violations {
		if v.Action == ActionBlock {
			return SanitizedOutput{Content: policyBlockedNotice, WasModified: true, Blocked: true, BlockReason: BlockPolicy}
		}
		if v.Action == ActionSanitize {
			modified = true
		}
		if v.Action == ActionReview {
			reviewRequired = true
		}
	}

	if s.Config.InjectionCheckEnabled {
		sanitized := s.Sanitizer.Sanitize(content)
		content = sanitized.Content
		modified = modified || sanitized.WasModified
		return SanitizedOutput{Content: content, Warnings: sanitized.Warnings, WasModified: modified, ReviewRequired: reviewRequired}
	}

	return SanitizedOutput{Content: content, WasModified: modified, ReviewRequired: reviewRequired}
}

// WrapForLLM frames sanitized tool output in a structural container that
// separates trusted instructions from untrusted data, using distinct
// escaping rules for the attribute values and the body content.
func WrapForLLM(toolName, content string, sanitized bool) string {
	return fmt.Sprintf(
		"<tool_output name=\"%s\" sanitized=\"%t\">\n%s\n</tool_output>",
		escapeXMLAttr(toolName), sanitized, escapeXMLContent(content),
	)
}

func escapeXMLAttr(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"\"", "&quot;",
		"<", "&lt;",
		">", "&gt;",
	)
	return r.Replace(s)
}

func escapeXMLContent(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return r.Replace(s)
}
