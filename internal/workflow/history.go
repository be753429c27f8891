package workflow

import (
	"fmt"
	"strings"

	"github.com/rulesmith/rulesmith/internal/llm"
)

// historyWindow is how many trailing complete exchanges are rendered
// into the workflow input as conversational context.
const historyWindow = 3

// withHistoryContext prepends recent conversation to userText so the
// parser sees continuity without consuming raw history objects.
// Exchanges whose assistant side is empty (the in-flight one) are
// skipped before the window is taken.
func withHistoryContext(userText string, history []llm.Exchange) string {
	complete := history[:0:0]
	for _, ex := range history {
		if strings.TrimSpace(ex.Assistant) != "" {
			complete = append(complete, ex)
		}
	}
	if len(complete) > historyWindow {
		complete = complete[len(complete)-historyWindow:]
	}
	if len(complete) == 0 {
		return userText
	}

	lines := make([]string, 0, 2*len(complete))
	for _, ex := range complete {
		lines = append(lines, "User: "+ex.User, "Assistant: "+ex.Assistant)
	}
	return fmt.Sprintf("Previous conversation:\n%s\n\nCurrent request: %s",
		strings.Join(lines, "\n"), userText)
}
