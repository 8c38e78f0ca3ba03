package graph_test

import (
	"context"
	"testing"

	"github.com/nevindra/recall"
	"github.com/nevindra/recall/graph/memory"
)

// backends lists every recall.GraphStore implementation exercised by this
// conformance suite. graph/falkor is excluded — it needs a live FalkorDB
// connection and is covered by its own package tests instead.
func backends(t *testing.T) map[string]recall.GraphStore {
	t.Helper()
	return map[string]recall.GraphStore{
		"memory": memory.New(),
	}
}

func predPtr(p recall.Predicate) *recall.Predicate { return &p }

// TestConformance_QueryRoundTrip enforces I1: a persisted relationship is
// retrievable by Query on its subject.
func TestConformance_QueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := store.PersistRelationships(ctx, []recall.Relationship{
				{Subject: "Alice", Predicate: recall.PredicateLivesIn, Object: "Boston"},
			})
			if err != nil {
				t.Fatalf("persist: %v", err)
			}

			got, err := store.Query(ctx, "Alice", nil)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(got) != 1 || got[0].Object != "Boston" {
				t.Fatalf("want one relationship to Boston, got %+v", got)
			}
		})
	}
}

// TestConformance_QueryByObjectSymmetric enforces I2: QueryByObject finds
// relationships where the queried name is the object, not the subject.
func TestConformance_QueryByObjectSymmetric(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := store.PersistRelationships(ctx, []recall.Relationship{
				{Subject: "Alice", Predicate: recall.PredicateWorksAt, Object: "Acme"},
			})
			if err != nil {
				t.Fatalf("persist: %v", err)
			}

			bySubject, err := store.Query(ctx, "Acme", nil)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(bySubject) != 0 {
				t.Fatalf("Acme is not a subject here, got %+v", bySubject)
			}

			byObject, err := store.QueryByObject(ctx, "Acme", nil)
			if err != nil {
				t.Fatalf("query by object: %v", err)
			}
			if len(byObject) != 1 || byObject[0].Subject != "Alice" {
				t.Fatalf("want Alice->Acme, got %+v", byObject)
			}
		})
	}
}

// TestConformance_PredicateFilter enforces that a predicate filter narrows
// both Query and QueryByObject.
func TestConformance_PredicateFilter(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := store.PersistRelationships(ctx, []recall.Relationship{
				{Subject: "Alice", Predicate: recall.PredicateWorksAt, Object: "Acme"},
				{Subject: "Alice", Predicate: recall.PredicateLivesIn, Object: "Boston"},
			})
			if err != nil {
				t.Fatalf("persist: %v", err)
			}

			got, err := store.Query(ctx, "Alice", predPtr(recall.PredicateLivesIn))
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(got) != 1 || got[0].Object != "Boston" {
				t.Fatalf("predicate filter should isolate LIVES_IN, got %+v", got)
			}
		})
	}
}

// TestConformance_SearchDedupAndLimit enforces I3: SearchRelationships
// deduplicates identical (subject, predicate, object) tuples and honors
// limit.
func TestConformance_SearchDedupAndLimit(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := store.PersistRelationships(ctx, []recall.Relationship{
				{Subject: "Alice", Predicate: recall.PredicateLivesIn, Object: "Boston"},
				{Subject: "Alice", Predicate: recall.PredicateLivesIn, Object: "Boston"},
				{Subject: "Alice", Predicate: recall.PredicateWorksAt, Object: "Acme"},
			})
			if err != nil {
				t.Fatalf("persist: %v", err)
			}

			got, err := store.SearchRelationships(ctx, []string{"Alice"}, 10)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("want deduped to 2 distinct tuples, got %d: %+v", len(got), got)
			}

			limited, err := store.SearchRelationships(ctx, []string{"Alice"}, 1)
			if err != nil {
				t.Fatalf("search limited: %v", err)
			}
			if len(limited) != 1 {
				t.Fatalf("want limit honored, got %d", len(limited))
			}
		})
	}
}

// TestConformance_MarkContradictionInPlace enforces I4: contradiction
// resolution edits the existing record rather than deleting it.
func TestConformance_MarkContradictionInPlace(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := store.PersistRelationships(ctx, []recall.Relationship{
				{ID: "r1", Subject: "Alice", Predicate: recall.PredicateLivesIn, Object: "Boston", Status: recall.StatusOngoing},
			})
			if err != nil {
				t.Fatalf("persist: %v", err)
			}

			if err := store.MarkContradiction(ctx, "r1", "Alice LIVES_IN Seattle"); err != nil {
				t.Fatalf("mark contradiction: %v", err)
			}

			got, err := store.Query(ctx, "Alice", nil)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("contradiction must edit in place, not delete; got %d rows", len(got))
			}
			rel := got[0]
			if rel.Status != recall.StatusCompleted {
				t.Fatalf("want status completed, got %q", rel.Status)
			}
			if rel.SupersededBy == nil || *rel.SupersededBy != "Alice LIVES_IN Seattle" {
				t.Fatalf("want superseded_by set, got %+v", rel.SupersededBy)
			}
		})
	}
}
