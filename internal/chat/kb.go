package chat

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rulesmith/rulesmith/internal/knowledge"
	"github.com/rulesmith/rulesmith/internal/persist"
)

// BuildKnowledgeBase ingests documents into the shared knowledge base
// and records the update. Backends that keep file snapshots get one
// written; the update lands in the change log either way.
func (s *Service) BuildKnowledgeBase(ctx context.Context, paths []string) knowledge.BuildResult {
	if s.kb == nil {
		return knowledge.BuildResult{Status: "No knowledge base configured."}
	}

	result := s.kb.Build(ctx, paths)
	if !result.OK {
		return result
	}

	if snap, ok := s.kb.(persist.Snapshotter); ok {
		if saved, msg := s.persist.SaveKnowledgeBase(snap, ""); !saved {
			s.logger.Warn("saving knowledge base snapshot", slog.String("message", msg))
		}
		return result
	}

	err := s.persist.LogChange(persist.ComponentKnowledgeBase, "Knowledge base updated", map[string]any{
		"chunks_count": result.Chunks,
	})
	if err != nil {
		s.logger.Warn("recording knowledge base change log entry",
			slog.String("error", err.Error()))
	}
	return result
}

// KnowledgeStats reports the current corpus size and sources.
func (s *Service) KnowledgeStats(ctx context.Context) (knowledge.Stats, error) {
	if s.kb == nil {
		return knowledge.Stats{}, errors.New("no knowledge base configured")
	}
	return s.kb.Stats(ctx)
}
