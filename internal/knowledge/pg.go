package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/rulesmith/rulesmith/internal/rag"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// upsertDocumentSQL registers a source document, refreshing updated_at
// when the same name is ingested again.
const upsertDocumentSQL = `INSERT INTO documents (name)
	VALUES ($1)
	ON CONFLICT (name) DO UPDATE SET updated_at = now()
	RETURNING id`

// upsertChunkSQL inserts a chunk, refreshing the embedding when the same
// (document, content) pair is ingested again. This mirrors the in-memory
// store's dedupe-keep-last merge.
const upsertChunkSQL = `INSERT INTO document_chunks (document_id, chunk_index, content, embedding)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (document_id, md5(content)) DO UPDATE SET
		chunk_index = EXCLUDED.chunk_index,
		embedding = EXCLUDED.embedding`

const searchChunksSQL = `SELECT d.name, c.content, c.embedding, 1 - (c.embedding <=> $1) AS similarity
	FROM document_chunks c
	JOIN documents d ON d.id = c.document_id
	WHERE c.embedding IS NOT NULL
	ORDER BY c.embedding <=> $1
	LIMIT $2`

const countChunksSQL = `SELECT COUNT(*) FROM document_chunks`

const listSourcesSQL = `SELECT d.name
	FROM documents d
	WHERE EXISTS (SELECT 1 FROM document_chunks c WHERE c.document_id = d.id)
	ORDER BY d.created_at, d.name`

// PGStore is the knowledge base backed by PostgreSQL + pgvector, for
// deployments where multiple instances share one corpus.
//
// PGStore is safe for concurrent use by multiple goroutines.
type PGStore struct {
	pipeline
	pool *pgxpool.Pool
}

var _ Base = (*PGStore)(nil)

// NewPGStore creates a PostgreSQL-backed knowledge base. The schema is
// managed by the db package's migrations.
func NewPGStore(pool *pgxpool.Pool, embedder *rag.BatchEmbedder, logger *slog.Logger, opts ...Option) (*PGStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	return &PGStore{
		pipeline: newPipeline(embedder, logger, opts),
		pool:     pool,
	}, nil
}

// Build ingests the documents at paths and upserts the resulting chunks
// in one transaction. Same status semantics as the in-memory store; a
// database failure is reported through the status, not an error.
func (s *PGStore) Build(ctx context.Context, paths []string) BuildResult {
	fresh, failStatus := s.ingest(ctx, paths)
	if failStatus != "" {
		return BuildResult{Status: failStatus, Chunks: s.countQuiet(ctx)}
	}

	merged := s.countQuiet(ctx) > 0

	if err := s.storeRecords(ctx, fresh); err != nil {
		s.logger.Error("storing knowledge base records",
			slog.String("error", err.Error()),
		)
		return BuildResult{
			Status: fmt.Sprintf("Knowledge base build failed: %v", err),
			Chunks: s.countQuiet(ctx),
		}
	}

	total := s.countQuiet(ctx)
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

// storeRecords upserts documents and chunks atomically.
func (s *PGStore) storeRecords(ctx context.Context, records []Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	docIDs := make(map[string]uuid.UUID)
	chunkIndex := make(map[string]int)

	for _, r := range records {
		docID, ok := docIDs[r.Source]
		if !ok {
			if err := tx.QueryRow(ctx, upsertDocumentSQL, r.Source).Scan(&docID); err != nil {
				return fmt.Errorf("upserting document %q: %w", r.Source, err)
			}
			docIDs[r.Source] = docID
		}

		idx := chunkIndex[r.Source]
		chunkIndex[r.Source] = idx + 1

		vec := pgvector.NewVector(r.Embedding)
		if _, err := tx.Exec(ctx, upsertChunkSQL, docID, idx, r.Text, vec); err != nil {
			return fmt.Errorf("upserting chunk %d of %q: %w", idx, r.Source, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing knowledge base transaction: %w", err)
	}
	return nil
}

// Search embeds the query and returns the topK most similar chunks by
// cosine similarity. An empty corpus returns nil without touching the
// embedder.
func (s *PGStore) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	count, err := s.count(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.pool.Query(ctx, searchChunksSQL, pgvector.NewVector(queryVec), topK)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r     Record
			vec   pgvector.Vector
			score float64
		)
		if err := rows.Scan(&r.Source, &r.Text, &vec, &score); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		r.Embedding = vec.Slice()
		results = append(results, SearchResult{Record: r, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return results, nil
}

// Stats reports the chunk count and source names in ingestion order.
func (s *PGStore) Stats(ctx context.Context) (Stats, error) {
	count, err := s.count(ctx, s.pool)
	if err != nil {
		return Stats{}, err
	}

	rows, err := s.pool.Query(ctx, listSourcesSQL)
	if err != nil {
		return Stats{}, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return Stats{}, fmt.Errorf("scanning source: %w", err)
		}
		sources = append(sources, name)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("iterating sources: %w", err)
	}

	return Stats{Chunks: count, Sources: sources}, nil
}

func (s *PGStore) count(ctx context.Context, q querier) (int, error) {
	var count int
	if err := q.QueryRow(ctx, countChunksSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// countQuiet is count for paths that must not fail; errors degrade to 0.
func (s *PGStore) countQuiet(ctx context.Context) int {
	count, err := s.count(ctx, s.pool)
	if err != nil {
		s.logger.Warn("counting chunks", slog.String("error", err.Error()))
		return 0
	}
	return count
}
