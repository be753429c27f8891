package rag

import "log/slog"

// Chunk splits text into windows of size characters, each window starting
// size-overlap characters after the previous one. The final window may be
// shorter. Character means rune, so multi-byte text never splits mid-glyph.
//
// Overlap is clamped to size-1 (the window must advance), and to 0 when
// size is 1. Empty text or a non-positive size yields no chunks; both are
// logged at debug level rather than treated as errors.
func Chunk(text string, size, overlap int) []string {
	if text == "" {
		slog.Debug("chunking skipped: empty text")
		return nil
	}
	if size < 1 {
		slog.Debug("chunking skipped: invalid chunk size", "chunk_size", size)
		return nil
	}

	if overlap < 0 {
		overlap = 0
	}
	if size > 1 {
		if overlap > size-1 {
			overlap = size - 1
		}
	} else {
		overlap = 0
	}

	runes := []rune(text)
	step := size - overlap

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
