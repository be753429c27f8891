package knowledge

import (
	"context"
	"log/slog"

	"github.com/rulesmith/rulesmith/internal/rag"
)

const (
	defaultChunkSize    = 500
	defaultChunkOverlap = 50
)

// Build outcome messages, surfaced directly to users by the CLI and API.
const (
	statusNoDocuments = "No readable documents found."
	statusNoChunks    = "No text chunks created from documents."
	statusEmbedFailed = "Embedding failed for all chunks."
)

// pipeline is the read -> chunk -> embed front half of a build, shared
// by the in-memory and PostgreSQL stores.
type pipeline struct {
	embedder     *rag.BatchEmbedder
	reader       Reader
	logger       *slog.Logger
	chunkSize    int
	chunkOverlap int
}

// Option configures a store's ingestion pipeline.
type Option func(*pipeline)

// WithReader replaces the default FileReader.
func WithReader(r Reader) Option {
	return func(p *pipeline) { p.reader = r }
}

// WithChunking overrides the default chunk size and overlap.
func WithChunking(size, overlap int) Option {
	return func(p *pipeline) {
		p.chunkSize = size
		p.chunkOverlap = overlap
	}
}

func newPipeline(embedder *rag.BatchEmbedder, logger *slog.Logger, opts []Option) pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := pipeline{
		embedder:     embedder,
		reader:       FileReader{},
		logger:       logger,
		chunkSize:    defaultChunkSize,
		chunkOverlap: defaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// ingest reads, chunks, and embeds the documents at paths. Chunks whose
// embeddings fail are dropped. When nothing survives, the second return
// carries the status explaining which stage came up empty.
func (p *pipeline) ingest(ctx context.Context, paths []string) ([]Record, string) {
	docs := p.readDocuments(paths)
	if len(docs) == 0 {
		return nil, statusNoDocuments
	}

	var sources []string
	var texts []string
	for _, doc := range docs {
		for _, chunk := range rag.Chunk(doc.Text, p.chunkSize, p.chunkOverlap) {
			sources = append(sources, doc.Name)
			texts = append(texts, chunk)
		}
	}
	if len(texts) == 0 {
		return nil, statusNoChunks
	}

	embeddings := p.embedder.EmbedAll(ctx, texts)
	fresh := make([]Record, 0, len(embeddings))
	for i, emb := range embeddings {
		if emb.Vector == nil {
			continue
		}
		fresh = append(fresh, Record{
			Source:    sources[i],
			Text:      emb.Text,
			Embedding: emb.Vector,
		})
	}
	if len(fresh) == 0 {
		return nil, statusEmbedFailed
	}

	p.logger.Debug("ingested documents",
		slog.Int("documents", len(docs)),
		slog.Int("chunks", len(texts)),
		slog.Int("embedded", len(fresh)),
	)
	return fresh, ""
}

func (p *pipeline) readDocuments(paths []string) []Document {
	docs := make([]Document, 0, len(paths))
	for _, path := range paths {
		doc, err := p.reader.Read(path)
		if err != nil {
			p.logger.Warn("skipping unreadable document",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

// dedupeKeepLast removes (source, text) duplicates, keeping each pair's
// last occurrence in its original position. Re-ingesting a document
// therefore replaces its old vectors instead of stacking new ones.
func dedupeKeepLast(records []Record) []Record {
	type key struct {
		source string
		text   string
	}
	last := make(map[key]int, len(records))
	for i, r := range records {
		last[key{r.Source, r.Text}] = i
	}
	out := make([]Record, 0, len(last))
	for i, r := range records {
		if last[key{r.Source, r.Text}] == i {
			out = append(out, r)
		}
	}
	return out
}
