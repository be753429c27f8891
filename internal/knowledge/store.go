package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rulesmith/rulesmith/internal/rag"
)

// Store is the in-memory knowledge base. Records live in an ordered
// slice; merges are copy-on-write so snapshots and concurrent searches
// never observe a half-built corpus.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pipeline

	mu      sync.RWMutex
	records []Record
}

var _ Base = (*Store)(nil)

// NewStore creates an empty in-memory knowledge base.
func NewStore(embedder *rag.BatchEmbedder, logger *slog.Logger, opts ...Option) *Store {
	return &Store{pipeline: newPipeline(embedder, logger, opts)}
}

// Build reads the documents at paths, chunks and embeds them, and merges
// the result into the corpus. Unreadable documents are skipped with a
// warning and chunks whose embeddings fail are dropped; the returned
// status names which of the distinct outcomes happened.
func (s *Store) Build(ctx context.Context, paths []string) BuildResult {
	fresh, failStatus := s.ingest(ctx, paths)
	if failStatus != "" {
		return BuildResult{Status: failStatus, Chunks: s.Len()}
	}

	s.mu.Lock()
	merged := len(s.records) > 0
	combined := make([]Record, 0, len(s.records)+len(fresh))
	combined = append(combined, s.records...)
	combined = append(combined, fresh...)
	s.records = dedupeKeepLast(combined)
	total := len(s.records)
	s.mu.Unlock()

	verb := "built"
	if merged {
		verb = "merged"
	}
	s.logger.Info("knowledge base updated",
		slog.Int("new_chunks", len(fresh)),
		slog.Int("total_chunks", total),
	)

	return BuildResult{
		Status: fmt.Sprintf("Knowledge base %s successfully with %d chunks.", verb, total),
		Chunks: total,
		OK:     true,
	}
}

// Search embeds the query and returns the topK most similar records by
// cosine similarity. An empty corpus returns nil without touching the
// embedder.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	s.mu.RLock()
	records := make([]Record, len(s.records))
	copy(records, s.records)
	s.mu.RUnlock()

	if len(records) == 0 {
		return nil, nil
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	vectors := make([][]float32, len(records))
	for i, r := range records {
		vectors[i] = r.Embedding
	}

	ranked := rag.Rank(queryVec, vectors, topK)
	results := make([]SearchResult, 0, len(ranked))
	for _, hit := range ranked {
		results = append(results, SearchResult{
			Record: records[hit.Index],
			Score:  hit.Score,
		})
	}
	return results, nil
}

// Stats reports the chunk count and the distinct sources in first-seen
// order.
func (s *Store) Stats(context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool, len(s.records))
	var sources []string
	for _, r := range s.records {
		if !seen[r.Source] {
			seen[r.Source] = true
			sources = append(sources, r.Source)
		}
	}
	return Stats{Chunks: len(s.records), Sources: sources}, nil
}

// Len returns the number of records in the corpus.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records returns a copy of the corpus in order.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
