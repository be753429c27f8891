// Package knowledge manages the chunked, embedded document corpus that
// grounds rule extraction.
//
// Two stores expose the same surface: [Store] keeps records in memory
// with a flock-guarded JSON snapshot on disk, and [PGStore] keeps them
// in PostgreSQL + pgvector for shared deployments. [Base] is the common
// interface the CLI and HTTP layers consume.
//
// # Build Semantics
//
// Building is best-effort and never returns an error. Unreadable
// documents are skipped, chunks whose embeddings fail are dropped, and
// the outcome is reported as a human-readable status string. Rebuilding
// merges into the existing corpus: records are deduplicated on
// (source, text) keeping the newest occurrence, so re-ingested
// documents refresh their vectors instead of accumulating duplicates.
//
// # Retrieval Flow
//
//	Document (reader) -> Chunks -> Embeddings -> Records
//	                                                |
//	                              (when searching)  v
//	                     Query Embedding -> Cosine Ranking -> Results
package knowledge
