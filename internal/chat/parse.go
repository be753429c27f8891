package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rulesmith/rulesmith/internal/rules"
)

// Summary carried by the placeholder rule when parsing is requested
// before any documents were ingested.
const knowledgeBaseEmptySummary = "Knowledge base not built. Please upload documents and build the knowledge base first."

// ParseOnly runs just the parser: retrieval-grounded structuring with
// no conflict analysis and no generation. Clients that extract rules
// in bulk use it and defer analysis to the follow-up flows. An empty
// knowledge base yields a placeholder rule instead of a model call.
func (s *Service) ParseOnly(ctx context.Context, req Request) (Reply, error) {
	sn, err := s.resolveSession(req)
	if err != nil {
		return Reply{}, err
	}

	if strings.TrimSpace(req.Message) == "" {
		return Reply{SessionID: sn.ID, Text: emptyMessageReply}, nil
	}

	if !s.knowledgeReady(ctx) {
		rule := rules.Rule{
			Name:    "Knowledge Base Empty",
			Summary: knowledgeBaseEmptySummary,
		}
		s.recordTurn(sn.ID, req.Message, rule.Summary, &rule)
		return Reply{SessionID: sn.ID, Text: rule.Summary, Rule: &rule}, nil
	}

	rule, err := s.parser.Parse(ctx, req.Message, sn.History)
	if err != nil {
		return Reply{}, fmt.Errorf("parsing rule: %w", err)
	}

	text := rule.Summary
	if text == "" {
		text = "No summary available."
	}
	s.recordTurn(sn.ID, req.Message, text, &rule)

	return Reply{SessionID: sn.ID, Text: text, Rule: &rule}, nil
}

// knowledgeReady reports whether retrieval has anything to ground on.
// A failing stats call counts as not ready.
func (s *Service) knowledgeReady(ctx context.Context) bool {
	if s.kb == nil {
		return false
	}
	stats, err := s.kb.Stats(ctx)
	if err != nil {
		s.logger.Warn("reading knowledge base stats", slog.String("error", err.Error()))
		return false
	}
	return stats.Chunks > 0
}
