// Package local provides a zero-network Reranker baseline — useful as a
// default when no cross-encoder API is configured, or in tests.
package local

import (
	"context"
	"math"
	"strings"
)

// Reranker scores (query, passage) pairs by lexical term overlap. It makes
// no external calls, mirroring the teacher's ScoreReranker baseline: a
// reranker that degrades to "no reranking API available" gracefully rather
// than failing the whole retrieval path.
type Reranker struct{}

// NewReranker creates a lexical-overlap Reranker.
func NewReranker() *Reranker {
	return &Reranker{}
}

// Predict scores each passage against query using normalized term overlap
// (a token-level Jaccard-ish score). An empty passages slice returns an
// empty, non-error result.
func (r *Reranker) Predict(_ context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	queryTerms := tokenSet(query)
	scores := make([]float64, len(passages))
	for i, p := range passages {
		scores[i] = overlapScore(queryTerms, tokenSet(p))
	}
	return scores, nil
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// overlapScore returns |a ∩ b| / sqrt(|a| * |b|) (cosine similarity over
// binary term-presence vectors), 0 when either side is empty.
func overlapScore(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var shared int
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	return float64(shared) / math.Sqrt(float64(len(a)*len(b)))
}
