package rag

import (
	"math"
	"sort"
)

// Scored identifies a ranked candidate by its position in the input slice.
type Scored struct {
	Index int
	Score float64
}

// Rank scores candidate vectors against the query by cosine similarity and
// returns the top K, highest score first. Candidates whose vector is nil or
// whose length differs from the query are skipped. Ties keep input order.
//
// An empty result means nothing was rankable; Rank never fails.
func Rank(query []float32, candidates [][]float32, topK int) []Scored {
	if len(query) == 0 || len(candidates) == 0 || topK <= 0 {
		return nil
	}

	scored := make([]Scored, 0, len(candidates))
	for i, c := range candidates {
		if len(c) != len(query) {
			continue
		}
		scored = append(scored, Scored{Index: i, Score: cosineSimilarity(query, c)})
	}
	if len(scored) == 0 {
		return nil
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK]
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
