// Package jsonrepair recovers parseable JSON from the near-JSON text that
// language models emit: prose before the payload, truncated objects,
// ellipsis placeholders, trailing commas.
//
// Repair is conservative. It never rewrites content inside string literals
// and never invents openers; it only trims the surrounding noise and appends
// the closers a truncated payload is missing. Valid JSON passes through
// unchanged, so repairing twice is the same as repairing once.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrUnparseable indicates the input could not be parsed even after repair.
var ErrUnparseable = errors.New("unparseable JSON")

var (
	ellipsisPattern      = regexp.MustCompile(`\[\s*\.\.\.\s*\]`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// Repair applies a best-effort cleanup pass to near-JSON text:
//
//  1. Extract the outermost {...} or [...] span, dropping prose around it.
//  2. Collapse ellipsis placeholders ("[...]") to empty arrays.
//  3. Append the closers that unmatched openers still need, innermost first.
//  4. Strip trailing commas immediately before a closer.
//
// The result is not guaranteed to parse; callers should retry json.Unmarshal
// and fall back to their own degraded value if it still fails.
func Repair(s string) string {
	s = extractSpan(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	s = ellipsisPattern.ReplaceAllString(s, "[]")
	s = closeUnmatched(s)
	s = trailingCommaPattern.ReplaceAllString(s, "$1")
	return s
}

// Parse unmarshals raw into v, applying Repair and retrying once when the
// direct parse fails. Returns ErrUnparseable when both attempts fail.
func Parse(raw string, v any) error {
	trimmed := strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}

	repaired := Repair(trimmed)
	if repaired != "" {
		if err := json.Unmarshal([]byte(repaired), v); err == nil {
			return nil
		}
	}

	return ErrUnparseable
}

// extractSpan returns the substring from the first { or [ through the last
// } or ]. When no closer follows the opener, the tail is kept as-is so that
// closeUnmatched can finish the job. Returns "" when no opener exists.
func extractSpan(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	end := strings.LastIndexAny(s, "}]")
	if end <= start {
		return s[start:]
	}
	return s[start : end+1]
}

// closeUnmatched appends the closers that unmatched { and [ openers still
// need, innermost first. Brackets inside string literals are ignored. Extra
// closers are left alone; only openers are balanced.
func closeUnmatched(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}':
			if n := len(stack); n > 0 && stack[n-1] == '{' {
				stack = stack[:n-1]
			}
		case ']':
			if n := len(stack); n > 0 && stack[n-1] == '[' {
				stack = stack[:n-1]
			}
		}
	}

	// An unterminated string literal has to be closed before any bracket
	// closer can take effect.
	if inString {
		s += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			s += "}"
		} else {
			s += "]"
		}
	}
	return s
}
