// Package safety gatekeeps every string that crosses the trust boundary
// into or out of the LLM and into or out of extension calls.
package safety

import "strings"

// ValidationErrorCode classifies why an input failed validation.
type ValidationErrorCode string

const (
	CodeEmpty             ValidationErrorCode = "empty"
	CodeTooLong           ValidationErrorCode = "too_long"
	CodeTooShort          ValidationErrorCode = "too_short"
	CodeInvalidFormat     ValidationErrorCode = "invalid_format"
	CodeForbiddenContent  ValidationErrorCode = "forbidden_content"
	CodeInvalidEncoding   ValidationErrorCode = "invalid_encoding"
	CodeSuspiciousPattern ValidationErrorCode = "suspicious_pattern"
)

// ValidationError describes a single field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
	Code    ValidationErrorCode
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationResult aggregates errors and warnings from a validation pass.
type ValidationResult struct {
	IsValid  bool
	Errors   []ValidationError
	Warnings []string
}

func okResult() ValidationResult {
	return ValidationResult{IsValid: true}
}

func errResult(errs ...ValidationError) ValidationResult {
	return ValidationResult{IsValid: false, Errors: errs}
}

// WithWarning returns a copy of r with an additional warning appended.
func (r ValidationResult) WithWarning(w string) ValidationResult {
	r.Warnings = append(append([]string{}, r.Warnings...), w)
	return r
}

// Merge combines r with other, preserving validity only if both are valid.
func (r ValidationResult) Merge(other ValidationResult) ValidationResult {
	merged := ValidationResult{
		IsValid:  r.IsValid && other.IsValid,
		Errors:   append(append([]ValidationError{}, r.Errors...), other.Errors...),
		Warnings: append(append([]string{}, r.Warnings...), other.Warnings...),
	}
	return merged
}

// Validator enforces length, encoding, and forbidden-substring rules on
// untrusted input text.
type Validator struct {
	MaxLength        int
	MinLength        int
	ForbiddenPattern map[string]struct{}
}

// NewValidator returns a Validator with the default 100 KiB / 1 byte bounds.
func NewValidator() *Validator {
	return &Validator{
		MaxLength:        100 * 1024,
		MinLength:        1,
		ForbiddenPattern: map[string]struct{}{},
	}
}

// WithMaxLength returns v with MaxLength set to max.
func (v *Validator) WithMaxLength(max int) *Validator {
	v.MaxLength = max
	return v
}

// WithMinLength returns v with MinLength set to min.
func (v *Validator) WithMinLength(min int) *Validator {
	v.MinLength = min
	return v
}

// ForbidPattern registers an additional case-insensitive forbidden substring.
func (v *Validator) ForbidPattern(pattern string) *Validator {
	v.ForbiddenPattern[strings.ToLower(pattern)] = struct{}{}
	return v
}

// Validate checks input against length, encoding, and forbidden-pattern rules,
// returning warnings for high whitespace ratio or excessive character runs.
func (v *Validator) Validate(input string) ValidationResult {
	if len(input) == 0 {
		return errResult(ValidationError{
			Field:   "input",
			Message: "input must not be empty",
			Code:    CodeEmpty,
		})
	}

	result := okResult()

	if len(input) > v.MaxLength {
		result = result.Merge(errResult(ValidationError{
			Field:   "input",
			Message: "input exceeds maximum length",
			Code:    CodeTooLong,
		}))
	}
	if len(input) < v.MinLength {
		result = result.Merge(errResult(ValidationError{
			Field:   "input",
			Message: "input is shorter than the minimum length",
			Code:    CodeTooShort,
		}))
	}

	if strings.ContainsRune(input, '\x00') {
		result = result.Merge(errResult(ValidationError{
			Field:   "input",
			Message: "input contains a null byte",
			Code:    CodeInvalidEncoding,
		}))
	}

	lower := strings.ToLower(input)
	for pattern := range v.ForbiddenPattern {
		if strings.Contains(lower, pattern) {
			result = result.Merge(errResult(ValidationError{
				Field:   "input",
				Message: "input contains forbidden content: " + pattern,
				Code:    CodeForbiddenContent,
			}))
			break
		}
	}

	if len(input) > 100 && whitespaceRatio(input) > 0.9 {
		result = result.WithWarning("Input has unusually high whitespace ratio")
	}
	if hasExcessiveRepetition(input) {
		result = result.WithWarning("Input has excessive character repetition")
	}

	return result
}

// ValidateToolParams recursively validates every string value reachable from
// a decoded JSON value (objects, arrays, and scalars).
func (v *Validator) ValidateToolParams(value any) ValidationResult {
	switch t := value.(type) {
	case string:
		return v.Validate(t)
	case map[string]any:
		result := okResult()
		for _, child := range t {
			result = result.Merge(v.ValidateToolParams(child))
		}
		return result
	case []any:
		result := okResult()
		for _, child := range t {
			result = result.Merge(v.ValidateToolParams(child))
		}
		return result
	default:
		return okResult()
	}
}

func whitespaceRatio(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	ws := 0
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			ws++
		}
	}
	return float64(ws) / float64(len([]rune(s)))
}

// hasExcessiveRepetition reports a run of more than 20 identical characters
// within an input of at least 50 characters.
func hasExcessiveRepetition(s string) bool {
	runes := []rune(s)
	if len(runes) < 50 {
		return false
	}
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run > 20 {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
