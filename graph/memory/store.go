// Package memory implements recall.GraphStore as a process-local backend:
// maps and slices behind a sync.RWMutex, modeled on
// original_source/src/memory/graph_store.py's InMemoryGraphStore. This is
// the default backend, and the fallback the orchestrator uses when the
// configured external graph backend is unreachable at startup (§6.4).
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/nevindra/recall"
)

// Store is a sync.RWMutex-guarded in-memory recall.GraphStore.
type Store struct {
	mu            sync.RWMutex
	entities      map[string]*recall.Entity
	relationships []*recall.Relationship
	nextID        int
}

var _ recall.GraphStore = (*Store)(nil)

// New creates an empty in-memory graph store.
func New() *Store {
	return &Store{entities: make(map[string]*recall.Entity)}
}

// PersistEntities upserts by Name: FirstMentioned is set on first insert,
// LastMentioned refreshed on every call, Attributes merged with new keys
// winning on conflict.
func (s *Store) PersistEntities(_ context.Context, entities []recall.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := recall.Now()
	for _, e := range entities {
		existing, ok := s.entities[e.Name]
		if !ok {
			stored := e
			stored.FirstMentioned = now
			stored.LastMentioned = now
			if stored.Attributes == nil {
				stored.Attributes = map[string]any{}
			}
			s.entities[e.Name] = &stored
			continue
		}
		existing.LastMentioned = now
		if e.Type != "" {
			existing.Type = e.Type
		}
		if existing.Attributes == nil {
			existing.Attributes = map[string]any{}
		}
		for k, v := range e.Attributes {
			existing.Attributes[k] = v
		}
	}
	return nil
}

// PersistRelationships appends records, filling in defaults
// (Source=user_stated, Confidence=1.0, CreatedAt=now) per §4.1.
func (s *Store) PersistRelationships(_ context.Context, relationships []recall.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range relationships {
		rel := r
		if rel.ID == "" {
			rel.ID = s.allocID()
		}
		if rel.Source == "" {
			rel.Source = recall.SourceUserStated
		}
		if rel.Source == recall.SourceUserStated && rel.Confidence == 0 {
			rel.Confidence = 1.0
		}
		if rel.CreatedAt.IsZero() {
			rel.CreatedAt = recall.Now()
		}
		s.relationships = append(s.relationships, &rel)
	}
	return nil
}

func (s *Store) allocID() string {
	s.nextID++
	return strconv.Itoa(s.nextID)
}

// Query lists relationships whose subject matches subject, optionally
// filtered by predicate.
func (s *Store) Query(_ context.Context, subject string, predicate *recall.Predicate) ([]recall.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []recall.Relationship
	for _, r := range s.relationships {
		if r.Subject != subject {
			continue
		}
		if predicate != nil && r.Predicate != *predicate {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

// QueryByObject is the symmetric counterpart of Query, matching on object.
func (s *Store) QueryByObject(_ context.Context, object string, predicate *recall.Predicate) ([]recall.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []recall.Relationship
	for _, r := range s.relationships {
		if r.Object != object {
			continue
		}
		if predicate != nil && r.Predicate != *predicate {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

// SearchRelationships returns relationships where subject OR object is in
// names, newest first, deduplicated by (subject, predicate, object), at
// most limit rows.
func (s *Store) SearchRelationships(_ context.Context, names []string, limit int) ([]recall.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	candidates := make([]*recall.Relationship, len(s.relationships))
	copy(candidates, s.relationships)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})

	seen := make(map[[3]string]bool)
	var out []recall.Relationship
	for _, r := range candidates {
		if !wanted[r.Subject] && !wanted[r.Object] {
			continue
		}
		key := [3]string{r.Subject, string(r.Predicate), r.Object}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, *r)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// MarkContradiction sets Status=completed, SupersededBy=supersedingStatement,
// and Metadata["superseded_at"] on the existing record. Idempotent.
func (s *Store) MarkContradiction(_ context.Context, existingID string, supersedingStatement string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.relationships {
		if r.ID != existingID {
			continue
		}
		stmt := supersedingStatement
		r.SupersededBy = &stmt
		r.Status = recall.StatusCompleted
		if r.Metadata == nil {
			r.Metadata = map[string]any{}
		}
		r.Metadata["still_valid"] = false
		r.Metadata["superseded_at"] = recall.Now()
		return nil
	}
	return nil
}
