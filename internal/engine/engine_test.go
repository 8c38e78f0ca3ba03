package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nevindra/recall"
	"github.com/nevindra/recall/assembler"
	"github.com/nevindra/recall/observer"
)

type fakeVectorStore struct{ persisted []recall.MemoryChunk }

func (f *fakeVectorStore) Persist(_ context.Context, c recall.MemoryChunk) error {
	f.persisted = append(f.persisted, c)
	return nil
}
func (f *fakeVectorStore) Search(context.Context, []float32, int) ([]recall.ScoredChunk, error) {
	return nil, nil
}

type fakeGraphStore struct{}

func (fakeGraphStore) PersistEntities(context.Context, []recall.Entity) error           { return nil }
func (fakeGraphStore) PersistRelationships(context.Context, []recall.Relationship) error { return nil }
func (fakeGraphStore) Query(context.Context, string, *recall.Predicate) ([]recall.Relationship, error) {
	return nil, nil
}
func (fakeGraphStore) QueryByObject(context.Context, string, *recall.Predicate) ([]recall.Relationship, error) {
	return nil, nil
}
func (fakeGraphStore) SearchRelationships(context.Context, []string, int) ([]recall.Relationship, error) {
	return nil, nil
}
func (fakeGraphStore) MarkContradiction(context.Context, string, string) error { return nil }

type fakeEmbedder struct{}

func (fakeEmbedder) Name() string    { return "fake" }
func (fakeEmbedder) Dimensions() int { return 4 }
func (fakeEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return [][]float32{{0, 0, 0, 0}}, nil
}

type passthroughReranker struct{}

func (passthroughReranker) Predict(_ context.Context, _ string, passages []string) ([]float64, error) {
	out := make([]float64, len(passages))
	for i := range out {
		out[i] = 1.0
	}
	return out, nil
}

// scriptedGenerator streams a fixed set of text deltas and answers the
// Observer's grading prompt with DISCARD, so ProcessTurn short-circuits
// quickly in tests.
type scriptedGenerator struct {
	deltas []string
}

func (s *scriptedGenerator) Name() string { return "scripted" }

func (s *scriptedGenerator) Chat(context.Context, recall.ChatRequest) (recall.ChatResponse, error) {
	return recall.ChatResponse{Content: "DISCARD"}, nil
}

func (s *scriptedGenerator) Stream(_ context.Context, _ recall.ChatRequest, ch chan<- recall.StreamEvent) (recall.ChatResponse, error) {
	var full strings.Builder
	for _, d := range s.deltas {
		ch <- recall.StreamEvent{Type: recall.EventTextDelta, Content: d}
		full.WriteString(d)
	}
	close(ch)
	return recall.ChatResponse{Content: full.String(), Usage: recall.Usage{InputTokens: 1, OutputTokens: 1}}, nil
}

func newTestEngine(t *testing.T, gen *scriptedGenerator) *Engine {
	t.Helper()
	vectors := &fakeVectorStore{}
	graph := fakeGraphStore{}
	emb := fakeEmbedder{}

	asm := assembler.New(vectors, graph, emb, passthroughReranker{})
	obs := observer.New(gen, emb, graph, vectors)

	return New(gen, emb, passthroughReranker{}, vectors, graph, asm, obs)
}

func TestHandleTurn_StreamsAssistantText(t *testing.T) {
	gen := &scriptedGenerator{deltas: []string{"Hel", "lo!"}}
	e := newTestEngine(t, gen)

	out, err := e.HandleTurn(context.Background(), "conv-1", 0, "hi", nil)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	var got strings.Builder
	for chunk := range out {
		got.WriteString(chunk)
	}
	if got.String() != "Hello!" {
		t.Fatalf("streamed text = %q, want %q", got.String(), "Hello!")
	}
}

func TestHandleTurn_SpawnsObserverAfterStreamCompletes(t *testing.T) {
	gen := &scriptedGenerator{deltas: []string{"ok"}}
	e := newTestEngine(t, gen)

	out, err := e.HandleTurn(context.Background(), "conv-1", 0, "hi", nil)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	for range out {
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestHandleTurn_ConcurrentTurnsBoundedByObserverConcurrency(t *testing.T) {
	gen := &scriptedGenerator{deltas: []string{"x"}}
	e := newTestEngine(t, gen)
	WithObserverConcurrency(1)(e)

	for i := 0; i < 3; i++ {
		out, err := e.HandleTurn(context.Background(), "conv-1", i, "hi", nil)
		if err != nil {
			t.Fatalf("HandleTurn() error = %v", err)
		}
		for range out {
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}
