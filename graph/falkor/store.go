// Package falkor implements recall.GraphStore over FalkorDB, a
// Redis-protocol labeled-property graph database, via go-redis's generic
// command dispatch and FalkorDB's Cypher-over-RESP GRAPH.QUERY command.
// Query shapes are modeled directly on
// original_source/src/memory/graph_store.py's FalkorGraphStore.
package falkor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nevindra/recall"
)

// Store is a recall.GraphStore backed by a FalkorDB graph, addressed by
// host:port and a graph (database) id.
type Store struct {
	client  *redis.Client
	graphID string
	log     *slog.Logger
}

var _ recall.GraphStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger overrides the default discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New dials host:port and returns a Store bound to graphID. It pings the
// server before returning so callers can fall back to graph/memory on
// connection failure (§6.4) without a query round-trip.
func New(ctx context.Context, host string, port int, graphID string, opts ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%d", host, port)})
	s := &Store{client: client, graphID: graphID, log: slog.New(discardHandler{})}
	for _, opt := range opts {
		opt(s)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("falkor: connect to %s:%d: %w", host, port, err)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) query(ctx context.Context, cypher string, params map[string]any) ([][]any, error) {
	stmt := cypher
	if len(params) > 0 {
		stmt = cypherParams(params) + " " + cypher
	}
	res, err := s.client.Do(ctx, "GRAPH.QUERY", s.graphID, stmt).Result()
	if err != nil {
		return nil, fmt.Errorf("falkor: query: %w", err)
	}
	return decodeRows(res), nil
}

// cypherParams renders FalkorDB's "CYPHER k=v ..." parameter prefix, the
// mechanism RedisGraph/FalkorDB uses for parameterized GRAPH.QUERY calls.
func cypherParams(params map[string]any) string {
	var b strings.Builder
	b.WriteString("CYPHER")
	for k, v := range params {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(literal(v))
	}
	return b.String()
}

func literal(v any) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case float64, int, int64:
		return fmt.Sprintf("%v", t)
	case []string:
		parts := make([]string, len(t))
		for i, s := range t {
			parts[i] = strconv.Quote(s)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return strconv.Quote(fmt.Sprintf("%v", t))
	}
}

// decodeRows extracts the data-row section (index 1) of a GRAPH.QUERY
// reply: [header, rows, statistics].
func decodeRows(res any) [][]any {
	top, ok := res.([]any)
	if !ok || len(top) < 2 {
		return nil
	}
	rows, ok := top[1].([]any)
	if !ok {
		return nil
	}
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		if row, ok := r.([]any); ok {
			out = append(out, row)
		}
	}
	return out
}

// PersistEntities upserts Entity nodes keyed by name.
func (s *Store) PersistEntities(ctx context.Context, entities []recall.Entity) error {
	for _, e := range entities {
		attrs, err := json.Marshal(e.Attributes)
		if err != nil {
			return fmt.Errorf("falkor: marshal attributes for %q: %w", e.Name, err)
		}
		category := string(e.Type)
		if category == "" {
			category = "Entity"
		}
		cypher := `MERGE (memo:Entity {name:$name})
SET memo.category = $category,
    memo.attributes = $attributes,
    memo.last_mentioned = $current_ts`
		_, err = s.query(ctx, cypher, map[string]any{
			"name":       e.Name,
			"category":   category,
			"attributes": string(attrs),
			"current_ts": recall.Now().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// PersistRelationships creates a (Person)-[predicate]->(Entity) edge per
// relationship. The predicate is interpolated directly into the Cypher edge
// label since relationship types cannot be parameterized.
func (s *Store) PersistRelationships(ctx context.Context, relationships []recall.Relationship) error {
	for _, r := range relationships {
		metadata, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("falkor: marshal metadata for %s: %w", r.Statement(), err)
		}

		status := "null"
		if r.Status != "" {
			status = strconv.Quote(string(r.Status))
		}
		validUntil := "null"
		if r.ValidUntil != nil {
			validUntil = strconv.Quote(r.ValidUntil.Format(time.RFC3339))
		}
		supersededBy := "null"
		if r.SupersededBy != nil {
			supersededBy = strconv.Quote(*r.SupersededBy)
		}
		source := r.Source
		if source == "" {
			source = recall.SourceUserStated
		}
		confidence := r.Confidence
		if source == recall.SourceUserStated && confidence == 0 {
			confidence = 1.0
		}

		predicate := sanitizeLabel(string(r.Predicate))
		cypher := fmt.Sprintf(`MERGE (subject:Person {name:$subject})
MERGE (object:Entity {name:$object})
MERGE (subject)-[relation:%s]->(object)
SET relation.metadata = $metadata,
    relation.created_at = $current_ts,
    relation.still_valid = true,
    relation.status = %s,
    relation.valid_until = %s,
    relation.superseded_by = %s,
    relation.source = $source,
    relation.confidence = $confidence`, predicate, status, validUntil, supersededBy)

		_, err = s.query(ctx, cypher, map[string]any{
			"subject":    r.Subject,
			"object":     r.Object,
			"metadata":   string(metadata),
			"current_ts": recall.Now().Format(time.RFC3339),
			"source":     string(source),
			"confidence": confidence,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// sanitizeLabel keeps only characters Cypher allows in an unquoted
// relationship type, defaulting to RELATED_TO for anything else.
func sanitizeLabel(p string) string {
	if p == "" {
		return "RELATED_TO"
	}
	for _, r := range p {
		if !(r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return "RELATED_TO"
		}
	}
	return p
}

const relationshipColumns = `subject.name AS subject, type(relation) AS predicate, object.name AS object,
       relation.metadata AS metadata, id(relation) AS rel_id, relation.created_at AS created_at,
       relation.status AS status, relation.valid_until AS valid_until, relation.superseded_by AS superseded_by,
       relation.source AS source, relation.confidence AS confidence`

// Query lists relationships whose subject matches, optionally filtered by predicate.
func (s *Store) Query(ctx context.Context, subject string, predicate *recall.Predicate) ([]recall.Relationship, error) {
	edge := "-[relation]->"
	if predicate != nil {
		edge = fmt.Sprintf("-[relation:%s]->", sanitizeLabel(string(*predicate)))
	}
	cypher := fmt.Sprintf("MATCH (subject {name:$subject})%s(object)\nRETURN %s", edge, relationshipColumns)
	rows, err := s.query(ctx, cypher, map[string]any{"subject": subject})
	if err != nil {
		return nil, err
	}
	return rowsToRelationships(rows), nil
}

// QueryByObject is the symmetric counterpart of Query, matching on object.
func (s *Store) QueryByObject(ctx context.Context, object string, predicate *recall.Predicate) ([]recall.Relationship, error) {
	edge := "-[relation]->"
	if predicate != nil {
		edge = fmt.Sprintf("-[relation:%s]->", sanitizeLabel(string(*predicate)))
	}
	cypher := fmt.Sprintf("MATCH (subject)%s(object {name:$object})\nRETURN %s", edge, relationshipColumns)
	rows, err := s.query(ctx, cypher, map[string]any{"object": object})
	if err != nil {
		return nil, err
	}
	return rowsToRelationships(rows), nil
}

// SearchRelationships returns relationships touching any of names, newest
// first, up to limit.
func (s *Store) SearchRelationships(ctx context.Context, names []string, limit int) ([]recall.Relationship, error) {
	cypher := fmt.Sprintf(`MATCH (subject)-[relation]->(object)
WHERE subject.name IN $names OR object.name IN $names
RETURN %s
ORDER BY relation.created_at DESC
LIMIT $limit`, relationshipColumns)
	rows, err := s.query(ctx, cypher, map[string]any{"names": names, "limit": limit})
	if err != nil {
		return nil, err
	}
	return rowsToRelationships(rows), nil
}

// Traverse widens SearchRelationships to a multi-hop neighborhood: starting
// from seeds, it walks up to hops edges in either direction and returns
// every relationship touched along the way, newest first, up to limit. It
// satisfies assembler.HopTraversable, which the assembler uses when built
// with WithGraphAwareRetrieval; graph/memory does not implement this, so
// the assembler's single-hop behavior is the default everywhere else.
func (s *Store) Traverse(ctx context.Context, seeds []string, hops int, limit int) ([]recall.Relationship, error) {
	if hops < 1 {
		hops = 1
	}
	cypher := fmt.Sprintf(`MATCH (subject)-[relation*1..%d]-(object)
WHERE subject.name IN $names
UNWIND relation AS rel
WITH subject, object, rel
RETURN subject.name AS subject, type(rel) AS predicate, object.name AS object,
       rel.metadata AS metadata, id(rel) AS rel_id, rel.created_at AS created_at,
       rel.status AS status, rel.valid_until AS valid_until, rel.superseded_by AS superseded_by,
       rel.source AS source, rel.confidence AS confidence
ORDER BY rel.created_at DESC
LIMIT $limit`, hops)
	rows, err := s.query(ctx, cypher, map[string]any{"names": seeds, "limit": limit})
	if err != nil {
		return nil, err
	}
	return rowsToRelationships(rows), nil
}

// MarkContradiction flips an existing edge's temporal fields in place.
// FalkorDB's id() function returns an integer node/edge id; a digit-string
// existingID is coerced to int to match it.
func (s *Store) MarkContradiction(ctx context.Context, existingID string, supersedingStatement string) error {
	var relID any = existingID
	if n, err := strconv.Atoi(existingID); err == nil {
		relID = n
	}
	cypher := `MATCH ()-[relation]->()
WHERE id(relation) = $rel_id
SET relation.status = $status,
    relation.still_valid = false,
    relation.superseded_by = $superseded_by,
    relation.superseded_at = $current_ts`
	_, err := s.query(ctx, cypher, map[string]any{
		"status":        string(recall.StatusCompleted),
		"rel_id":        relID,
		"superseded_by": supersedingStatement,
		"current_ts":    recall.Now().Format(time.RFC3339),
	})
	return err
}

func rowsToRelationships(rows [][]any) []recall.Relationship {
	out := make([]recall.Relationship, 0, len(rows))
	for _, row := range rows {
		if len(row) < 11 {
			continue
		}
		var metadata map[string]any
		if raw, ok := row[3].(string); ok && raw != "" {
			_ = json.Unmarshal([]byte(raw), &metadata)
		}
		rel := recall.Relationship{
			ID:         fmt.Sprintf("%v", row[4]),
			Subject:    fmt.Sprintf("%v", row[0]),
			Predicate:  recall.Predicate(fmt.Sprintf("%v", row[1])),
			Object:     fmt.Sprintf("%v", row[2]),
			Metadata:   metadata,
			CreatedAt:  parseTime(row[5]),
			Source:     recall.RelationshipSource(stringOrDefault(row[9], string(recall.SourceUserStated))),
			Confidence: floatOrDefault(row[10], 1.0),
		}
		if status, ok := row[6].(string); ok && status != "" && status != "null" {
			rel.Status = recall.RelationshipStatus(status)
		}
		if vu, ok := row[7].(string); ok && vu != "" && vu != "null" {
			t := parseTime(vu)
			rel.ValidUntil = &t
		}
		if sb, ok := row[8].(string); ok && sb != "" && sb != "null" {
			rel.SupersededBy = &sb
		}
		out = append(out, rel)
	}
	return out
}

func parseTime(v any) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return recall.Now()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return recall.Now()
}

func stringOrDefault(v any, def string) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return def
	}
	return s
}

func floatOrDefault(v any, def float64) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
	}
	return def
}

// discardHandler is a no-op slog.Handler used as the zero-value logger.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
