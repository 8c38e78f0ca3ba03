// Package postgres implements recall.VectorStore using PostgreSQL with
// pgvector, giving native ANN search via an HNSW index instead of the
// brute-force scan vectorstore/sqlite uses. Grounded on the teacher's
// store/postgres package: externally-owned *pgxpool.Pool, Option-configured
// HNSW tuning, idempotent Init.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/recall"
	"github.com/nevindra/recall/vectorstore"
)

// Store is a recall.VectorStore backed by PostgreSQL + pgvector.
type Store struct {
	pool *pgxpool.Pool
	cfg  config
}

var _ recall.VectorStore = (*Store)(nil)

type config struct {
	embeddingDimension int
	hnswM              int
	hnswEFConstruction int
	hnswEFSearch       int
}

// Option configures a Store.
type Option func(*config)

// WithEmbeddingDimension sets the vector column width. Required for
// Persist's dimension check to be meaningful; a 0 dimension accepts an
// untyped vector column and never returns *recall.ErrSchemaMismatch.
func WithEmbeddingDimension(dim int) Option {
	return func(c *config) { c.embeddingDimension = dim }
}

// WithHNSWM sets the HNSW m parameter (max connections per node).
func WithHNSWM(m int) Option { return func(c *config) { c.hnswM = m } }

// WithEFConstruction sets the HNSW ef_construction build-time parameter.
func WithEFConstruction(ef int) Option { return func(c *config) { c.hnswEFConstruction = ef } }

// WithEFSearch sets the HNSW ef_search query-time parameter, applied by a
// single SET statement in Init. That SET takes effect only on the pooled
// connection that runs it; other connections in the pool keep the default.
func WithEFSearch(ef int) Option { return func(c *config) { c.hnswEFSearch = ef } }

// New creates a Store using an existing pool. The caller owns the pool and
// is responsible for closing it.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}
	return &Store{pool: pool, cfg: cfg}
}

func (s *Store) vectorType() string {
	if s.cfg.embeddingDimension > 0 {
		return fmt.Sprintf("vector(%d)", s.cfg.embeddingDimension)
	}
	return "vector"
}

func (s *Store) hnswWithClause() string {
	var parts []string
	if s.cfg.hnswM > 0 {
		parts = append(parts, fmt.Sprintf("m = %d", s.cfg.hnswM))
	}
	if s.cfg.hnswEFConstruction > 0 {
		parts = append(parts, fmt.Sprintf("ef_construction = %d", s.cfg.hnswEFConstruction))
	}
	if len(parts) == 0 {
		return ""
	}
	return " WITH (" + strings.Join(parts, ", ") + ")"
}

// Init creates the pgvector extension, the memories table, and its HNSW
// index. Safe to call multiple times.
func (s *Store) Init(ctx context.Context) error {
	vtype := s.vectorType()
	hnswWith := s.hnswWithClause()

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			summary TEXT NOT NULL,
			embedding %s,
			chunk_type TEXT NOT NULL,
			source_conversation_id TEXT NOT NULL,
			turn_index INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			last_accessed_at TIMESTAMPTZ NOT NULL,
			access_count INTEGER NOT NULL,
			retrieval_queries JSONB NOT NULL,
			utility_score DOUBLE PRECISION NOT NULL,
			fact_type TEXT NOT NULL
		)`, vtype),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS memories_embedding_idx ON memories USING hnsw (embedding vector_cosine_ops)%s`, hnswWith),
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("vectorstore/postgres: init: %w", err)
		}
	}

	if s.cfg.hnswEFSearch > 0 {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf("SET hnsw.ef_search = %d", s.cfg.hnswEFSearch)); err != nil {
			return fmt.Errorf("vectorstore/postgres: set ef_search: %w", err)
		}
	}
	return nil
}

// Persist upserts chunk. Returns *recall.ErrSchemaMismatch if the store was
// configured with a fixed dimension and chunk.Embedding doesn't match.
func (s *Store) Persist(ctx context.Context, chunk recall.MemoryChunk) error {
	if s.cfg.embeddingDimension > 0 && len(chunk.Embedding) != s.cfg.embeddingDimension {
		return &recall.ErrSchemaMismatch{Expected: s.cfg.embeddingDimension, Got: len(chunk.Embedding)}
	}

	embStr := serializeEmbedding(chunk.Embedding)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO memories (
			id, content, summary, embedding, chunk_type, source_conversation_id,
			turn_index, created_at, last_accessed_at, access_count,
			retrieval_queries, utility_score, fact_type
		) VALUES ($1, $2, $3, $4::vector, $5, $6, $7, $8, $9, $10, $11::jsonb, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			summary = EXCLUDED.summary,
			embedding = EXCLUDED.embedding,
			chunk_type = EXCLUDED.chunk_type,
			source_conversation_id = EXCLUDED.source_conversation_id,
			turn_index = EXCLUDED.turn_index,
			last_accessed_at = EXCLUDED.last_accessed_at,
			access_count = EXCLUDED.access_count,
			retrieval_queries = EXCLUDED.retrieval_queries,
			utility_score = EXCLUDED.utility_score,
			fact_type = EXCLUDED.fact_type`,
		chunk.ID, chunk.Content, chunk.Summary, embStr, string(chunk.ChunkType), chunk.SourceConversationID,
		chunk.TurnIndex, chunk.CreatedAt, chunk.LastAccessedAt, chunk.AccessCount,
		jsonArray(chunk.RetrievalQueries), chunk.UtilityScore, string(chunk.FactType),
	)
	if err != nil {
		return fmt.Errorf("vectorstore/postgres: persist %s: %w", chunk.ID, err)
	}
	return nil
}

// Search performs ANN search via pgvector's <=> cosine-distance operator
// under the HNSW index, oversampling by vectorstore.OversampleFactor before
// applying the shared combined-score truncation to k.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]recall.ScoredChunk, error) {
	embStr := serializeEmbedding(vector)
	limit := k * vectorstore.OversampleFactor

	rows, err := s.pool.Query(ctx,
		`SELECT id, content, summary, chunk_type, source_conversation_id, turn_index,
		        created_at, last_accessed_at, access_count, retrieval_queries,
		        utility_score, fact_type
		 FROM memories
		 ORDER BY embedding <=> $1::vector
		 LIMIT $2`,
		embStr, limit)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/postgres: search: %w", err)
	}
	defer rows.Close()

	var ordered []recall.MemoryChunk
	for rows.Next() {
		var chunk recall.MemoryChunk
		var queriesJSON []byte
		if err := rows.Scan(
			&chunk.ID, &chunk.Content, &chunk.Summary, &chunk.ChunkType, &chunk.SourceConversationID,
			&chunk.TurnIndex, &chunk.CreatedAt, &chunk.LastAccessedAt, &chunk.AccessCount,
			&queriesJSON, &chunk.UtilityScore, &chunk.FactType,
		); err != nil {
			return nil, fmt.Errorf("vectorstore/postgres: scan row: %w", err)
		}
		_ = json.Unmarshal(queriesJSON, &chunk.RetrievalQueries)
		ordered = append(ordered, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorstore/postgres: iterate rows: %w", err)
	}

	return vectorstore.Combine(ordered, k), nil
}

func serializeEmbedding(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func jsonArray(items []string) string {
	parts := make([]string, len(items))
	for i, s := range items {
		parts[i] = strconv.Quote(s)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
