package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"
)

// VectorDimension is the embedding dimensionality used across the system.
// gemini-embedding-001 supports truncation to 768 via OutputDimensionality;
// the pgvector schema in db/migrations declares vector(768) to match.
const VectorDimension int32 = 768

const (
	defaultBatchSize   = 100
	defaultMaxAttempts = 5
	defaultBaseDelay   = 5 * time.Second
)

// Embedding pairs an input text with its vector. A nil Vector means
// embedding failed for that text after all retries.
type Embedding struct {
	Text   string
	Vector []float32
}

// BatchEmbedder embeds texts through a Genkit embedder in bounded batches,
// retrying each batch with exponential backoff before giving up on it.
//
// A batch that exhausts its retries marks every text in it with a nil
// vector; other batches are unaffected. The output always pairs positionally
// with the input.
type BatchEmbedder struct {
	embedder    ai.Embedder
	logger      *slog.Logger
	batchSize   int
	maxAttempts int
	baseDelay   time.Duration
}

// EmbedderOption configures a BatchEmbedder.
type EmbedderOption func(*BatchEmbedder)

// WithBatchSize overrides the per-request batch size limit.
func WithBatchSize(n int) EmbedderOption {
	return func(b *BatchEmbedder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithMaxAttempts overrides the per-batch attempt count.
func WithMaxAttempts(n int) EmbedderOption {
	return func(b *BatchEmbedder) {
		if n > 0 {
			b.maxAttempts = n
		}
	}
}

// WithBaseDelay overrides the first retry delay. Subsequent retries double it.
func WithBaseDelay(d time.Duration) EmbedderOption {
	return func(b *BatchEmbedder) {
		if d > 0 {
			b.baseDelay = d
		}
	}
}

// NewBatchEmbedder creates a BatchEmbedder around a Genkit embedder.
// A nil logger falls back to slog.Default().
func NewBatchEmbedder(embedder ai.Embedder, logger *slog.Logger, opts ...EmbedderOption) *BatchEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &BatchEmbedder{
		embedder:    embedder,
		logger:      logger,
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// EmbedAll embeds every text, preserving positional pairing. Failed batches
// leave nil vectors; EmbedAll itself never fails. Cancelling ctx stops
// retry sleeps and leaves the remaining texts unembedded.
func (b *BatchEmbedder) EmbedAll(ctx context.Context, texts []string) []Embedding {
	out := make([]Embedding, len(texts))
	for i, t := range texts {
		out[i].Text = t
	}

	for start := 0; start < len(texts); start += b.batchSize {
		if ctx.Err() != nil {
			b.logger.Warn("embedding aborted, context cancelled",
				"embedded", start, "remaining", len(texts)-start)
			break
		}

		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := b.embedBatch(ctx, texts[start:end])
		if err != nil {
			b.logger.Warn("embedding batch failed after retries",
				"batch_start", start, "batch_size", end-start, "error", err)
			continue
		}
		for j, v := range vectors {
			out[start+j].Vector = v
		}
	}
	return out
}

// EmbedQuery embeds a single query string, with the same retry policy as
// batch embedding. Unlike EmbedAll it returns an error, since retrieval
// cannot proceed without a query vector.
func (b *BatchEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := b.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// embedBatch embeds one batch, retrying with exponential backoff
// (baseDelay * 2^attempt) between attempts.
func (b *BatchEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	docs := make([]*ai.Document, len(batch))
	for i, t := range batch {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	var lastErr error
	delay := b.baseDelay

	for attempt := 0; attempt < b.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		dim := VectorDimension
		resp, err := b.embedder.Embed(ctx, &ai.EmbedRequest{
			Input:   docs,
			Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
		})
		if err != nil {
			lastErr = err
			b.logger.Debug("embedding attempt failed",
				"attempt", attempt+1, "max_attempts", b.maxAttempts, "error", err)
			continue
		}
		if len(resp.Embeddings) != len(batch) {
			lastErr = fmt.Errorf("embedder returned %d embeddings for %d inputs",
				len(resp.Embeddings), len(batch))
			continue
		}

		vectors := make([][]float32, len(batch))
		for i, e := range resp.Embeddings {
			vectors[i] = e.Embedding
		}
		return vectors, nil
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", b.maxAttempts, lastErr)
}
