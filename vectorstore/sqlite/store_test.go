package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nevindra/recall"
)

func newTestStore(t *testing.T, dimension int) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memories.db")
	store, err := New(path, dimension)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return store
}

func TestStore_PersistAndSearch(t *testing.T) {
	store := newTestStore(t, 3)
	ctx := context.Background()

	chunks := []recall.MemoryChunk{
		{ID: "a", Content: "alpha", Embedding: []float32{1, 0, 0}, UtilityScore: 0.9, ChunkType: recall.ChunkConversation, FactType: recall.FactCore},
		{ID: "b", Content: "beta", Embedding: []float32{0, 1, 0}, UtilityScore: 0.1, ChunkType: recall.ChunkConversation, FactType: recall.FactEpisodic},
	}
	for _, c := range chunks {
		if err := store.Persist(ctx, c); err != nil {
			t.Fatalf("Persist(%s) error = %v", c.ID, err)
		}
	}

	hits, err := store.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}
	if hits[0].ID != "a" {
		t.Fatalf("hits[0].ID = %q, want %q (closest vector should rank first)", hits[0].ID, "a")
	}
}

// TestStore_Persist_SchemaMismatch covers B3: embedding length mismatch
// raises *recall.ErrSchemaMismatch and does not partially insert.
func TestStore_Persist_SchemaMismatch(t *testing.T) {
	store := newTestStore(t, 4)
	ctx := context.Background()

	err := store.Persist(ctx, recall.MemoryChunk{ID: "bad", Embedding: []float32{1, 2, 3}})
	if err == nil {
		t.Fatal("Persist() expected error, got nil")
	}
	var mismatch *recall.ErrSchemaMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("Persist() error = %v, want *recall.ErrSchemaMismatch", err)
	}
	if mismatch.Expected != 4 || mismatch.Got != 3 {
		t.Fatalf("mismatch = %+v, want Expected=4 Got=3", mismatch)
	}

	hits, err := store.Search(ctx, []float32{1, 1, 1, 1}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("len(hits) = %d, want 0 (rejected insert must not partially persist)", len(hits))
	}
}

func TestStore_Search_Empty(t *testing.T) {
	store := newTestStore(t, 3)
	hits, err := store.Search(context.Background(), []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("len(hits) = %d, want 0", len(hits))
	}
}
