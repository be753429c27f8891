// Package security provides input validators for the file and model
// boundaries of the rule assistant.
//
// # Validators
//
// Path: confines file access to a set of allowed root directories,
// guarding against path traversal (CWE-22). Document ingestion and
// artifact downloads both validate user-supplied paths through it.
//
//	paths, err := security.NewPath([]string{dataDir})
//	if _, err := paths.Validate(userInput); err != nil {
//	    return fmt.Errorf("invalid path: %w", err)
//	}
//
// PromptValidator: screens free-form rule text for common prompt
// injection patterns before it reaches the agents. Detection is
// advisory; the chat surface logs findings rather than rejecting
// input, since rule descriptions legitimately contain imperative
// language.
//
//	screen := security.NewPromptValidator()
//	if res := screen.Validate(message); !res.Safe {
//	    logger.Warn("possible prompt injection", "patterns", res.Patterns)
//	}
//
// # Error Handling
//
// Path validation errors never echo the offending path. The caller
// knows what it passed in; repeating it in the error would leak
// probed filesystem locations into logs and API responses.
package security
