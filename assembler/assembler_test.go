package assembler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nevindra/recall"
)

// fakeVectorStore and fakeGraphStore give the assembler deterministic
// backends to retrieve from, the same "construct a fake, assert on
// exported behavior" style the teacher's store tests use.
type fakeVectorStore struct {
	hits []recall.ScoredChunk
}

func (f *fakeVectorStore) Persist(context.Context, recall.MemoryChunk) error { return nil }
func (f *fakeVectorStore) Search(context.Context, []float32, int) ([]recall.ScoredChunk, error) {
	return f.hits, nil
}

type fakeGraphStore struct {
	relationships []recall.Relationship
}

func (f *fakeGraphStore) PersistEntities(context.Context, []recall.Entity) error           { return nil }
func (f *fakeGraphStore) PersistRelationships(context.Context, []recall.Relationship) error { return nil }
func (f *fakeGraphStore) Query(context.Context, string, *recall.Predicate) ([]recall.Relationship, error) {
	return nil, nil
}
func (f *fakeGraphStore) QueryByObject(context.Context, string, *recall.Predicate) ([]recall.Relationship, error) {
	return nil, nil
}
func (f *fakeGraphStore) SearchRelationships(context.Context, []string, int) ([]recall.Relationship, error) {
	return f.relationships, nil
}
func (f *fakeGraphStore) MarkContradiction(context.Context, string, string) error { return nil }

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return [][]float32{make([]float32, f.dim)}, nil
}
func (f *fakeEmbedder) Dimensions() int { return f.dim }
func (f *fakeEmbedder) Name() string    { return "fake" }

// passthroughReranker returns 1.0 for every passage, isolating tests that
// don't care about rerank behavior.
type passthroughReranker struct{}

func (passthroughReranker) Predict(_ context.Context, _ string, passages []string) ([]float64, error) {
	scores := make([]float64, len(passages))
	for i := range scores {
		scores[i] = 1.0
	}
	return scores, nil
}

// emptyReranker asserts B2: predicting over an empty slice returns empty,
// no error.
type emptyReranker struct{ t *testing.T }

func (e emptyReranker) Predict(_ context.Context, _ string, passages []string) ([]float64, error) {
	if len(passages) != 0 {
		e.t.Fatalf("expected empty passages, got %d", len(passages))
	}
	return nil, nil
}

func TestRetrieve_EmptyHistory_B1(t *testing.T) {
	a := New(&fakeVectorStore{}, &fakeGraphStore{}, &fakeEmbedder{dim: 4}, emptyReranker{t: t})

	out, err := a.Retrieve(context.Background(), "hello", nil)
	require.NoError(t, err)
	require.Equal(t, "## Recent Conversation\n\n\n## Relevant Memories\n", out)
}

func TestTemporalDecay_Tiers(t *testing.T) {
	a := New(&fakeVectorStore{}, &fakeGraphStore{}, &fakeEmbedder{dim: 4}, passthroughReranker{})

	fresh := recall.RetrievedContext{FactType: recall.FactEpisodic, UtilityScore: 0.6, CreatedAt: recall.Now()}
	aged := recall.RetrievedContext{FactType: recall.FactEpisodic, UtilityScore: 0.6, CreatedAt: recall.Now().Add(-60 * 24 * time.Hour)}

	freshDecay := a.temporalDecay(fresh)
	agedDecay := a.temporalDecay(aged)

	require.InDelta(t, 1.0, freshDecay, 1e-9)
	require.InDelta(t, 0.5, agedDecay, 1e-9)
}

func TestTemporalDecay_CoreNeverDecays(t *testing.T) {
	a := New(&fakeVectorStore{}, &fakeGraphStore{}, &fakeEmbedder{dim: 4}, passthroughReranker{})
	old := recall.RetrievedContext{FactType: recall.FactCore, UtilityScore: 0.3, CreatedAt: recall.Now().Add(-999 * 24 * time.Hour)}
	require.Equal(t, 1.0, a.temporalDecay(old))
}

func TestRenderRelationship_PastTense(t *testing.T) {
	rel := recall.Relationship{Subject: "User", Predicate: recall.PredicateBrokeUpWith, Object: "Giana"}
	require.Equal(t, "User broke up with Giana (no longer together)", renderRelationship(rel))
}

func TestRenderRelationship_CompletedStatusDefault(t *testing.T) {
	rel := recall.Relationship{Subject: "User", Predicate: recall.PredicateWorksAt, Object: "Acme", Status: recall.StatusCompleted}
	require.Equal(t, "User WORKS_AT Acme (completed)", renderRelationship(rel))
}

func TestRenderRelationship_Default(t *testing.T) {
	rel := recall.Relationship{Subject: "User", Predicate: recall.PredicateLivesIn, Object: "Boston"}
	require.Equal(t, "User LIVES_IN Boston", renderRelationship(rel))
}

func TestGraphLeg_FiltersSupersededAndExpired(t *testing.T) {
	stmt := "User WORKS_AT NewCorp"
	expired := recall.Now().Add(-time.Hour)
	graph := &fakeGraphStore{relationships: []recall.Relationship{
		{Subject: "User", Predicate: recall.PredicateWorksAt, Object: "Acme", SupersededBy: &stmt, CreatedAt: recall.Now(), Confidence: 1.0},
		{Subject: "User", Predicate: recall.PredicateVisiting, Object: "Rome", ValidUntil: &expired, CreatedAt: recall.Now(), Confidence: 1.0},
		{Subject: "User", Predicate: recall.PredicateWorksAt, Object: "NewCorp", CreatedAt: recall.Now(), Confidence: 1.0, Status: recall.StatusOngoing},
	}}
	a := New(&fakeVectorStore{}, graph, &fakeEmbedder{dim: 4}, passthroughReranker{})

	out, err := a.graphLeg(context.Background(), "Tell me about User")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "User WORKS_AT NewCorp", out[0].Content)
}

func TestFormatMemories_TokenBudgetTruncation_B6(t *testing.T) {
	// six 20-token-ish candidates (80 chars => 20 tokens each), budget 50
	// tokens => at most floor(50/20)=2 bullets, dropped not mid-truncated.
	content := strings.Repeat("x", 80)
	candidates := make([]recall.RetrievedContext, 6)
	for i := range candidates {
		candidates[i] = recall.RetrievedContext{Content: content, Final: float64(6 - i)}
	}

	out := formatMemories(candidates, 50)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	for _, l := range lines {
		require.True(t, strings.HasPrefix(l, "- "))
		require.False(t, strings.HasSuffix(l, "...")) // never truncated mid-entry
	}
}

func TestDedup_KeepsHigherFinal(t *testing.T) {
	candidates := []recall.RetrievedContext{
		{Content: "same", Source: recall.SourceVector, Final: 0.2},
		{Content: "same", Source: recall.SourceVector, Final: 0.9},
	}
	out := dedup(candidates)
	require.Len(t, out, 1)
	require.Equal(t, 0.9, out[0].Final)
}

func TestRerank_EmptyCandidates_B2(t *testing.T) {
	a := New(&fakeVectorStore{}, &fakeGraphStore{}, &fakeEmbedder{dim: 4}, emptyReranker{t: t})
	out := a.rerank(context.Background(), "q", nil, "")
	require.Empty(t, out)
}

func TestRerank_TopicBoost(t *testing.T) {
	a := New(&fakeVectorStore{}, &fakeGraphStore{}, &fakeEmbedder{dim: 4}, passthroughReranker{})
	candidates := []recall.RetrievedContext{
		{Content: "discussed the new basketball app launch", Final: 1.0},
		{Content: "unrelated content", Final: 1.0},
	}
	out := a.rerank(context.Background(), "q", candidates, "basketball app launch")
	require.InDelta(t, topicBoostMultiplier, out[0].Final, 1e-9)
	require.InDelta(t, 1.0, out[1].Final, 1e-9)
}

func TestExtractEntityNames(t *testing.T) {
	names := extractEntityNames("What is my project status with Acme?")
	require.Contains(t, names, "Acme")
	require.Contains(t, names, "User")
}

type hopAwareGraphStore struct {
	fakeGraphStore
	traversed bool
}

func (h *hopAwareGraphStore) Traverse(context.Context, []string, int, int) ([]recall.Relationship, error) {
	h.traversed = true
	return []recall.Relationship{{Subject: "User", Predicate: recall.PredicateWorksAt, Object: "Acme", CreatedAt: recall.Now(), Confidence: 1.0}}, nil
}

func TestGraphAwareRetrieval_UsesHopTraversalWhenSupported(t *testing.T) {
	store := &hopAwareGraphStore{}
	a := New(&fakeVectorStore{}, store, &fakeEmbedder{dim: 4}, passthroughReranker{}, WithGraphAwareRetrieval(2))

	out, err := a.graphLeg(context.Background(), "tell me about User")
	require.NoError(t, err)
	require.True(t, store.traversed)
	require.Len(t, out, 1)
}

func TestGraphAwareRetrieval_FallsBackWithoutHopTraversable(t *testing.T) {
	a := New(&fakeVectorStore{}, &fakeGraphStore{}, &fakeEmbedder{dim: 4}, passthroughReranker{}, WithGraphAwareRetrieval(2))
	_, err := a.graphLeg(context.Background(), "tell me about User")
	require.NoError(t, err)
}

func TestVectorLeg_CombinesStoreHits(t *testing.T) {
	vec := &fakeVectorStore{hits: []recall.ScoredChunk{
		{MemoryChunk: recall.MemoryChunk{Content: "hello", FactType: recall.FactEpisodic, UtilityScore: 0.6, CreatedAt: recall.Now()}, Score: 0.8},
	}}
	a := New(vec, &fakeGraphStore{}, &fakeEmbedder{dim: 4}, passthroughReranker{})

	out, err := a.vectorLeg(context.Background(), "hi")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, recall.SourceVector, out[0].Source)
	require.Equal(t, 0.8, out[0].Relevance)
}
