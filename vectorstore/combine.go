// Package vectorstore supplies the shared combined-score ranking logic used
// by every recall.VectorStore backend, grounded on
// original_source/src/memory/vector_store.py's vector_search: oversample
// the ANN candidate set, blend similarity rank with stored utility, then
// truncate to k.
package vectorstore

import (
	"sort"

	"github.com/nevindra/recall"
)

// OversampleFactor is how many extra ANN candidates a backend should fetch
// before combined-score truncation (§4.2).
const OversampleFactor = 2

const (
	rankWeight     = 0.7
	utilityWeight  = 0.3
	defaultUtility = 0.5
)

// candidate is a backend-agnostic ANN hit, ordered nearest-first by the
// backend's own similarity metric.
type candidate struct {
	Chunk recall.MemoryChunk
}

// Combine applies the 0.7*rank_score + 0.3*utility_score formula to
// similarity-ordered candidates (nearest first) and returns the top k,
// descending by combined score. Candidates with UtilityScore == 0 are
// treated as the unset default 0.5, matching the Python source's dict.get
// fallback.
func Combine(ordered []recall.MemoryChunk, k int) []recall.ScoredChunk {
	n := len(ordered)
	scored := make([]recall.ScoredChunk, n)
	for i, c := range ordered {
		rankScore := 1.0 - float64(i)/float64(max(n, 1))
		utility := c.UtilityScore
		if utility == 0 {
			utility = defaultUtility
		}
		scored[i] = recall.ScoredChunk{
			MemoryChunk: c,
			Score:       rankWeight*rankScore + utilityWeight*utility,
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
