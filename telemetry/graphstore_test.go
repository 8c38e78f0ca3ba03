package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/nevindra/recall"
)

type fakeGraphStoreCalls struct {
	relationships []recall.Relationship
	err           error
	markCalled    bool
}

func (f *fakeGraphStoreCalls) PersistEntities(context.Context, []recall.Entity) error { return f.err }
func (f *fakeGraphStoreCalls) PersistRelationships(context.Context, []recall.Relationship) error {
	return f.err
}
func (f *fakeGraphStoreCalls) Query(context.Context, string, *recall.Predicate) ([]recall.Relationship, error) {
	return f.relationships, f.err
}
func (f *fakeGraphStoreCalls) QueryByObject(context.Context, string, *recall.Predicate) ([]recall.Relationship, error) {
	return f.relationships, f.err
}
func (f *fakeGraphStoreCalls) SearchRelationships(context.Context, []string, int) ([]recall.Relationship, error) {
	return f.relationships, f.err
}
func (f *fakeGraphStoreCalls) MarkContradiction(context.Context, string, string) error {
	f.markCalled = true
	return f.err
}

func TestWrapGraphStore_SearchRelationships(t *testing.T) {
	inst := testInstruments(t)
	fg := &fakeGraphStoreCalls{relationships: []recall.Relationship{{Subject: "User", Predicate: recall.PredicateLivesIn, Object: "Boston"}}}
	s := WrapGraphStore(fg, inst)

	out, err := s.SearchRelationships(context.Background(), []string{"User"}, 10)
	if err != nil {
		t.Fatalf("SearchRelationships() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("SearchRelationships() = %v, want 1", out)
	}
}

func TestWrapGraphStore_MarkContradiction_PropagatesCall(t *testing.T) {
	inst := testInstruments(t)
	fg := &fakeGraphStoreCalls{}
	s := WrapGraphStore(fg, inst)

	if err := s.MarkContradiction(context.Background(), "id-1", "new statement"); err != nil {
		t.Fatalf("MarkContradiction() error = %v", err)
	}
	if !fg.markCalled {
		t.Fatal("MarkContradiction() did not reach underlying store")
	}
}

func TestWrapGraphStore_PropagatesError(t *testing.T) {
	inst := testInstruments(t)
	fg := &fakeGraphStoreCalls{err: errors.New("connection refused")}
	s := WrapGraphStore(fg, inst)

	if _, err := s.Query(context.Background(), "User", nil); err == nil {
		t.Fatal("Query() expected error, got nil")
	}
}

// hopTraversableGraphStoreCalls additionally implements Traverse, exercising
// the capability pass-through WrapGraphStore performs.
type hopTraversableGraphStoreCalls struct {
	fakeGraphStoreCalls
	traversed bool
}

func (h *hopTraversableGraphStoreCalls) Traverse(context.Context, []string, int, int) ([]recall.Relationship, error) {
	h.traversed = true
	return []recall.Relationship{{Subject: "User", Predicate: recall.PredicateWorksAt, Object: "Acme"}}, nil
}

func TestWrapGraphStore_PreservesHopTraversable(t *testing.T) {
	inst := testInstruments(t)
	fg := &hopTraversableGraphStoreCalls{}
	s := WrapGraphStore(fg, inst)

	traversable, ok := s.(hopTraversable)
	if !ok {
		t.Fatal("WrapGraphStore() dropped the Traverse capability")
	}
	out, err := traversable.Traverse(context.Background(), []string{"User"}, 2, 10)
	if err != nil {
		t.Fatalf("Traverse() error = %v", err)
	}
	if !fg.traversed {
		t.Fatal("Traverse() did not reach underlying store")
	}
	if len(out) != 1 {
		t.Fatalf("Traverse() = %v, want 1", out)
	}
}

func TestWrapGraphStore_WithoutTraverse_DoesNotImplementHopTraversable(t *testing.T) {
	inst := testInstruments(t)
	fg := &fakeGraphStoreCalls{}
	s := WrapGraphStore(fg, inst)

	if _, ok := s.(hopTraversable); ok {
		t.Fatal("WrapGraphStore() falsely claims Traverse support for a non-traversable store")
	}
}
