package knowledge

import "context"

// Record is one chunk of the knowledge corpus: the source document it
// came from, the chunk text, and its embedding vector. A nil embedding
// marks a chunk whose embedding failed; such records are dropped before
// they reach the store.
type Record struct {
	Source    string    `json:"source"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// SearchResult is a single retrieval hit with its cosine similarity.
type SearchResult struct {
	Record Record
	Score  float64
}

// BuildResult reports the outcome of a knowledge-base build. Build never
// fails hard; Status carries the human-readable outcome either way.
type BuildResult struct {
	Status string // outcome message shown to the user
	Chunks int    // records in the store after the build
	OK     bool   // whether any new records landed
}

// Stats summarizes the corpus for status surfaces.
type Stats struct {
	Chunks  int      `json:"chunks"`
	Sources []string `json:"sources"` // distinct, in first-seen order
}

// Base is the knowledge-base surface the CLI and HTTP layers consume.
// Store and PGStore both implement it; the storage backend setting
// decides which one gets wired in.
type Base interface {
	Build(ctx context.Context, paths []string) BuildResult
	Search(ctx context.Context, query string, topK int) ([]SearchResult, error)
	Stats(ctx context.Context) (Stats, error)
}
