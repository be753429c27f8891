package security

import (
	"regexp"
	"strings"
	"unicode"
)

// PromptInjectionResult reports what the screen found in one input.
type PromptInjectionResult struct {
	Safe     bool     // true when no injection patterns matched
	Patterns []string // matched patterns, empty when safe
}

// PromptValidator screens free-form text for common prompt injection
// patterns before it is handed to the agents. No filter of this kind
// is complete; it catches the common phrasings, and the surfaces using
// it treat a hit as a signal to log, not a reason to reject, because
// legitimate business rules are written in imperative language too.
type PromptValidator struct {
	patterns []*regexp.Regexp
}

// NewPromptValidator creates a screen with the default pattern set.
func NewPromptValidator() *PromptValidator {
	patterns := []string{
		// System prompt override attempts
		`(?i)ignore\s+(all\s+)?(previous|above|prior)\s+(instructions?|prompts?|rules?)`,
		`(?i)disregard\s+(all\s+)?(previous|above|prior)\s+(instructions?|prompts?)`,
		`(?i)forget\s+(all\s+)?(previous|above|prior)\s+(instructions?|context)`,
		`(?i)override\s+(all\s+)?(previous|above|prior)\s+(instructions?|rules?)`,

		// Role reassignment
		`(?i)^(pretend|act|behave|imagine)\s+(you\s+are|to\s+be|as\s+if|like)`,
		`(?i)^you\s+are\s+now\s+a`,
		`(?i)^from\s+now\s+on,?\s+you\s+(are|will|must)`,

		// Instruction injection
		`(?i)^new\s+(instruction|task)\s*:`,
		`(?i)^admin\s*(mode|override|command)\s*:`,

		// Delimiter manipulation
		`(?i)\]\s*\[\s*(system|assistant|instruction)`,
		`(?i)</?(system|instruction|prompt)>`,
		`(?i)---+\s*(system|new\s+instruction)`,

		// Jailbreak phrasings
		`(?i)do\s+anything\s+now`,
		`(?i)jailbreak`,
		`(?i)bypass\s+(safety|filter|restrictions?)`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile(p); err == nil {
			compiled = append(compiled, re)
		}
	}
	return &PromptValidator{patterns: compiled}
}

// Validate screens input and returns every pattern that matched.
func (v *PromptValidator) Validate(input string) PromptInjectionResult {
	normalized := normalizeInput(input)

	var detected []string
	for _, re := range v.patterns {
		if re.MatchString(normalized) {
			detected = append(detected, re.String())
		}
	}
	return PromptInjectionResult{
		Safe:     len(detected) == 0,
		Patterns: detected,
	}
}

// IsSafe reports whether no patterns matched.
func (v *PromptValidator) IsSafe(input string) bool {
	return v.Validate(input).Safe
}

// normalizeInput strips zero-width and combining characters that could
// split a pattern, and collapses all whitespace runs to single spaces.
func normalizeInput(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Cf, r) || unicode.Is(unicode.Mn, r) {
			continue
		}
		if unicode.IsSpace(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
