package recall

import "context"

// GraphStore persists typed entities and directed, labeled relationships
// with temporal/supersession fields (§4.1). Two backends share this exact
// contract: graph/memory (default, in-process) and graph/falkor (FalkorDB
// over RESP). The orchestrator falls back to graph/memory when the
// configured backend is unreachable at startup (§6.4).
type GraphStore interface {
	// PersistEntities upserts by Name: FirstMentioned is set on first
	// insert, LastMentioned refreshed on every call, and Attributes are
	// merged with new keys winning on conflict.
	PersistEntities(ctx context.Context, entities []Entity) error
	// PersistRelationships appends records. Callers are expected to have
	// already filled Source/Confidence/CreatedAt; a nil/zero CreatedAt is
	// filled in at persistence time.
	PersistRelationships(ctx context.Context, relationships []Relationship) error
	// Query lists relationships whose subject matches, optionally filtered
	// by predicate.
	Query(ctx context.Context, subject string, predicate *Predicate) ([]Relationship, error)
	// QueryByObject is the symmetric counterpart of Query, matching on
	// object instead of subject.
	QueryByObject(ctx context.Context, object string, predicate *Predicate) ([]Relationship, error)
	// SearchRelationships returns relationships where subject OR object is
	// in names, newest first, deduplicated by (subject, predicate, object),
	// at most limit rows.
	SearchRelationships(ctx context.Context, names []string, limit int) ([]Relationship, error)
	// MarkContradiction sets Status=completed, SupersededBy=supersedingStatement,
	// and Metadata["superseded_at"] on the existing record identified by
	// existingID. Idempotent; existingID may be a store-native id or a
	// string form of one (§4.1).
	MarkContradiction(ctx context.Context, existingID string, supersedingStatement string) error
}

// VectorStore persists memory chunks keyed by id with nearest-neighbour
// search and metadata-weighted reranking (§4.2).
type VectorStore interface {
	// Persist inserts chunk. Returns *ErrSchemaMismatch if len(chunk.Embedding)
	// does not match the dimension the store was initialized with.
	Persist(ctx context.Context, chunk MemoryChunk) error
	// Search returns up to k chunks ordered by combined score
	// (0.7*rank_score + 0.3*utility_score), oversampling the ANN candidate
	// set by at least 2x before truncating to k (§4.2).
	Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error)
}
