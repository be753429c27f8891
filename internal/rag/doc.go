// Package rag implements the retrieval pipeline primitives: character
// chunking, batched embedding with retry, and cosine-similarity ranking.
//
// The pieces are deliberately independent. Chunk is a pure function,
// BatchEmbedder owns the oracle round-trips and their failure policy, and
// Rank scores pre-computed vectors without any I/O. The knowledge package
// composes all three into the knowledge-base build and search flows.
//
// Failure policy: embedding failures are partial, never fatal. A batch that
// exhausts its retries yields nil vectors for every text in it, and ranking
// silently skips records whose vectors are missing or mismatched. Callers
// decide what an empty result means.
package rag
