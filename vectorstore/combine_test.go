package vectorstore

import (
	"testing"

	"github.com/nevindra/recall"
)

// TestCombine_MonotoneInRankAndUtility checks P7: the combined score is
// monotone in both ANN rank and stored utility.
func TestCombine_MonotoneInRankAndUtility(t *testing.T) {
	ordered := []recall.MemoryChunk{
		{ID: "best-rank-low-utility", UtilityScore: 0.1},
		{ID: "worse-rank-high-utility", UtilityScore: 0.9},
	}
	scored := Combine(ordered, 2)

	byID := map[string]float64{}
	for _, s := range scored {
		byID[s.ID] = s.Score
	}

	// Same rank position comparison: a strictly better utility at a worse
	// rank position should still score lower than the same rank position
	// with higher utility (utility component is monotone).
	sameRank := Combine([]recall.MemoryChunk{
		{ID: "low-utility", UtilityScore: 0.1},
	}, 1)
	highUtility := Combine([]recall.MemoryChunk{
		{ID: "high-utility", UtilityScore: 0.9},
	}, 1)
	if highUtility[0].Score <= sameRank[0].Score {
		t.Fatalf("combined score not monotone in utility: high=%v low=%v", highUtility[0].Score, sameRank[0].Score)
	}

	// Rank monotonicity: earlier position (better ANN rank) with equal
	// utility scores higher.
	rankOnly := Combine([]recall.MemoryChunk{
		{ID: "first", UtilityScore: 0.5},
		{ID: "second", UtilityScore: 0.5},
	}, 2)
	if rankOnly[0].Score <= rankOnly[1].Score {
		t.Fatalf("combined score not monotone in rank: first=%v second=%v", rankOnly[0].Score, rankOnly[1].Score)
	}
}

func TestCombine_WeightsSumToFormula(t *testing.T) {
	ordered := []recall.MemoryChunk{{ID: "only", UtilityScore: 1.0}}
	scored := Combine(ordered, 1)
	// n=1: rankScore = 1 - 0/1 = 1.0; combined = 0.7*1.0 + 0.3*1.0 = 1.0
	if got, want := scored[0].Score, 1.0; got != want {
		t.Fatalf("Score = %v, want %v", got, want)
	}
}

func TestCombine_UnsetUtilityDefaultsToHalf(t *testing.T) {
	ordered := []recall.MemoryChunk{{ID: "only"}}
	scored := Combine(ordered, 1)
	// combined = 0.7*1.0 + 0.3*0.5 = 0.85
	if got, want := scored[0].Score, 0.85; got != want {
		t.Fatalf("Score = %v, want %v", got, want)
	}
}

func TestCombine_TruncatesToK(t *testing.T) {
	ordered := []recall.MemoryChunk{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	scored := Combine(ordered, 2)
	if len(scored) != 2 {
		t.Fatalf("len(scored) = %d, want 2", len(scored))
	}
}

func TestCombine_EmptyInput(t *testing.T) {
	scored := Combine(nil, 5)
	if len(scored) != 0 {
		t.Fatalf("len(scored) = %d, want 0", len(scored))
	}
}
