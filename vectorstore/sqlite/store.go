// Package sqlite implements recall.VectorStore over a local SQLite database
// (modernc.org/sqlite, pure Go, no cgo), with brute-force cosine similarity
// over JSON-serialized embeddings. This is the default backend: it needs no
// external service and matches the teacher's single-connection, WAL-free
// local-store pattern.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nevindra/recall"
	"github.com/nevindra/recall/vectorstore"
)

// Store is a recall.VectorStore backed by a single *sql.DB connection.
type Store struct {
	db        *sql.DB
	dimension int
	log       *slog.Logger
}

var _ recall.VectorStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger overrides the default discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New opens dbPath (created if absent) bound to a fixed embedding
// dimension. Schema mismatches at Persist time are reported as
// *recall.ErrSchemaMismatch, never silently truncated.
func New(dbPath string, dimension int, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/sqlite: open %s: %w", dbPath, err)
	}
	// A single connection serializes all access, avoiding SQLITE_BUSY
	// errors under concurrent observer writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dimension: dimension, log: slog.New(discardHandler{})}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Init creates the memories table if it does not already exist.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	s.log.Debug("initializing vector store schema")

	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	summary TEXT NOT NULL,
	embedding TEXT NOT NULL,
	chunk_type TEXT NOT NULL,
	source_conversation_id TEXT NOT NULL,
	turn_index INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	last_accessed_at TEXT NOT NULL,
	access_count INTEGER NOT NULL,
	retrieval_queries TEXT NOT NULL,
	utility_score REAL NOT NULL,
	fact_type TEXT NOT NULL
)`)
	if err != nil {
		s.log.Error("vector store schema init failed", "error", err)
		return fmt.Errorf("vectorstore/sqlite: init: %w", err)
	}

	s.log.Info("vector store schema ready", "elapsed", time.Since(start))
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// Persist inserts chunk, failing with *recall.ErrSchemaMismatch if its
// embedding dimension does not match the store's configured dimension.
func (s *Store) Persist(ctx context.Context, chunk recall.MemoryChunk) error {
	if len(chunk.Embedding) != s.dimension {
		return &recall.ErrSchemaMismatch{Expected: s.dimension, Got: len(chunk.Embedding)}
	}

	embeddingJSON, err := json.Marshal(chunk.Embedding)
	if err != nil {
		return fmt.Errorf("vectorstore/sqlite: marshal embedding: %w", err)
	}
	queriesJSON, err := json.Marshal(chunk.RetrievalQueries)
	if err != nil {
		return fmt.Errorf("vectorstore/sqlite: marshal retrieval queries: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO memories (
	id, content, summary, embedding, chunk_type, source_conversation_id,
	turn_index, created_at, last_accessed_at, access_count,
	retrieval_queries, utility_score, fact_type
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.Content, chunk.Summary, string(embeddingJSON), string(chunk.ChunkType),
		chunk.SourceConversationID, chunk.TurnIndex,
		chunk.CreatedAt.Format(time.RFC3339), chunk.LastAccessedAt.Format(time.RFC3339),
		chunk.AccessCount, string(queriesJSON), chunk.UtilityScore, string(chunk.FactType),
	)
	if err != nil {
		return fmt.Errorf("vectorstore/sqlite: persist %s: %w", chunk.ID, err)
	}
	return nil
}

// Search ranks every stored chunk by brute-force cosine similarity against
// vector, oversamples by vectorstore.OversampleFactor, then truncates to k
// via the shared combined-score formula.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]recall.ScoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, content, summary, embedding, chunk_type, source_conversation_id,
       turn_index, created_at, last_accessed_at, access_count,
       retrieval_queries, utility_score, fact_type
FROM memories`)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/sqlite: search: %w", err)
	}
	defer rows.Close()

	type scoredCandidate struct {
		chunk      recall.MemoryChunk
		similarity float64
	}
	var candidates []scoredCandidate

	for rows.Next() {
		var (
			chunk                      recall.MemoryChunk
			embeddingJSON, queriesJSON string
			createdAt, lastAccessed    string
		)
		if err := rows.Scan(
			&chunk.ID, &chunk.Content, &chunk.Summary, &embeddingJSON, &chunk.ChunkType,
			&chunk.SourceConversationID, &chunk.TurnIndex, &createdAt, &lastAccessed,
			&chunk.AccessCount, &queriesJSON, &chunk.UtilityScore, &chunk.FactType,
		); err != nil {
			return nil, fmt.Errorf("vectorstore/sqlite: scan row: %w", err)
		}

		var embedding []float32
		if err := json.Unmarshal([]byte(embeddingJSON), &embedding); err != nil {
			return nil, fmt.Errorf("vectorstore/sqlite: unmarshal embedding for %s: %w", chunk.ID, err)
		}
		_ = json.Unmarshal([]byte(queriesJSON), &chunk.RetrievalQueries)
		chunk.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		chunk.LastAccessedAt, _ = time.Parse(time.RFC3339, lastAccessed)
		chunk.Embedding = embedding

		candidates = append(candidates, scoredCandidate{chunk: chunk, similarity: cosineSimilarity(vector, embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorstore/sqlite: iterate rows: %w", err)
	}

	s.log.Debug("vector search scanned candidates", "count", len(candidates))

	// Order nearest-first by raw similarity, oversampling before combined-score truncation.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].similarity > candidates[j].similarity })
	desc := make([]recall.MemoryChunk, len(candidates))
	for i, c := range candidates {
		desc[i] = c.chunk
	}

	oversampled := k * vectorstore.OversampleFactor
	if oversampled > 0 && oversampled < len(desc) {
		desc = desc[:oversampled]
	}
	return vectorstore.Combine(desc, k), nil
}

// cosineSimilarity returns 0 when either vector is empty or the magnitude
// product is zero, matching the Python source's guard.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0.0
	}
	return dot / denom
}

// discardHandler is a no-op slog.Handler used as the zero-value logger.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
