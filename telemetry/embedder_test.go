package telemetry

import (
	"context"
	"errors"
	"testing"
)

type fakeEmbedderCalls struct {
	dim     int
	vectors [][]float32
	err     error
}

func (f *fakeEmbedderCalls) Name() string       { return "fake-embedder" }
func (f *fakeEmbedderCalls) Dimensions() int    { return f.dim }
func (f *fakeEmbedderCalls) Embed(context.Context, []string) ([][]float32, error) {
	return f.vectors, f.err
}

func TestWrapEmbedder_ReturnsVectors(t *testing.T) {
	inst := testInstruments(t)
	fe := &fakeEmbedderCalls{dim: 4, vectors: [][]float32{{1, 2, 3, 4}}}
	e := WrapEmbedder(fe, inst)

	out, err := e.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(out) != 1 || len(out[0]) != 4 {
		t.Fatalf("Embed() = %v, want one 4-dim vector", out)
	}
}

func TestWrapEmbedder_PropagatesError(t *testing.T) {
	inst := testInstruments(t)
	fe := &fakeEmbedderCalls{dim: 4, err: errors.New("rate limited")}
	e := WrapEmbedder(fe, inst)

	if _, err := e.Embed(context.Background(), []string{"hello"}); err == nil {
		t.Fatal("Embed() expected error, got nil")
	}
}
