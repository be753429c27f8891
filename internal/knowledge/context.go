package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// PromptContext retrieves the top matches for query and renders them
// as a prompt context block. ok is false when no knowledge base is
// available (nil base, unreachable store, or zero chunks); callers
// then go to the model without retrieval context. A failed search
// degrades to the no-context block instead, because a broken retriever
// must not stop the agents that prompt with it.
func PromptContext(ctx context.Context, base Base, query string, topK int, logger *slog.Logger) (string, bool) {
	if base == nil {
		return "", false
	}
	if logger == nil {
		logger = slog.Default()
	}

	stats, err := base.Stats(ctx)
	if err != nil {
		logger.Warn("knowledge base unavailable, continuing without context",
			slog.String("error", err.Error()))
		return "", false
	}
	if stats.Chunks == 0 {
		return "", false
	}

	hits, err := base.Search(ctx, query, topK)
	if err != nil {
		logger.Warn("knowledge retrieval failed, continuing without relevant context",
			slog.String("error", err.Error()))
		hits = nil
	}
	return ContextBlock(hits), true
}

// ContextBlock renders search hits as the document context section of
// a model prompt.
func ContextBlock(hits []SearchResult) string {
	var b strings.Builder
	b.WriteString("Context from Knowledge Base (relevant documents/chunks):\n")
	if len(hits) == 0 {
		b.WriteString("No relevant context found.\n\n")
	} else {
		for _, hit := range hits {
			fmt.Fprintf(&b, "--- Document: %s ---\n%s\n\n", hit.Record.Source, hit.Record.Text)
		}
	}
	b.WriteString("------------------------\n\n")
	return b.String()
}
