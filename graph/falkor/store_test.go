package falkor

import (
	"testing"
	"time"

	"github.com/nevindra/recall"
)

func TestLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "Acme", `"Acme"`},
		{"string with quote", `say "hi"`, `"say \"hi\""`},
		{"float", 1.5, "1.5"},
		{"int", 42, "42"},
		{"string slice", []string{"a", "b"}, `["a","b"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := literal(tt.in); got != tt.want {
				t.Fatalf("literal(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCypherParams(t *testing.T) {
	got := cypherParams(map[string]any{"name": "Acme"})
	if got != `CYPHER name="Acme"` {
		t.Fatalf("cypherParams() = %q, want %q", got, `CYPHER name="Acme"`)
	}
	if got := cypherParams(nil); got != "CYPHER" {
		t.Fatalf("cypherParams(nil) = %q, want %q", got, "CYPHER")
	}
}

func TestSanitizeLabel(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "RELATED_TO"},
		{"WORKS_AT", "WORKS_AT"},
		{"works-at; DROP TABLE", "RELATED_TO"},
		{"LIVES_IN_2024", "LIVES_IN_2024"},
	}
	for _, tt := range tests {
		if got := sanitizeLabel(tt.in); got != tt.want {
			t.Fatalf("sanitizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeRows(t *testing.T) {
	reply := []any{
		[]any{"subject"},                                  // header
		[]any{[]any{"User"}, []any{"Acme"}},                // data rows
		[]any{"stats"},                                     // statistics
	}
	rows := decodeRows(reply)
	if len(rows) != 2 {
		t.Fatalf("decodeRows() returned %d rows, want 2", len(rows))
	}

	if got := decodeRows("not a graph reply"); got != nil {
		t.Fatalf("decodeRows(malformed) = %v, want nil", got)
	}
	if got := decodeRows([]any{[]any{"only header"}}); got != nil {
		t.Fatalf("decodeRows(short reply) = %v, want nil", got)
	}
}

func TestRowsToRelationships(t *testing.T) {
	now := time.Now().UTC().Format(time.RFC3339)
	rows := [][]any{
		{"User", "WORKS_AT", "Acme", `{"since":"2024"}`, "17", now, "ongoing", "", "", "user_stated", 1.0},
	}
	rels := rowsToRelationships(rows)
	if len(rels) != 1 {
		t.Fatalf("len(rels) = %d, want 1", len(rels))
	}
	rel := rels[0]
	if rel.Subject != "User" || rel.Predicate != "WORKS_AT" || rel.Object != "Acme" {
		t.Fatalf("rel = %+v, unexpected subject/predicate/object", rel)
	}
	if rel.ID != "17" {
		t.Fatalf("rel.ID = %q, want %q", rel.ID, "17")
	}
	if rel.Status != recall.StatusOngoing {
		t.Fatalf("rel.Status = %q, want %q", rel.Status, recall.StatusOngoing)
	}
	if rel.SupersededBy != nil {
		t.Fatalf("rel.SupersededBy = %v, want nil", rel.SupersededBy)
	}
	if rel.Confidence != 1.0 {
		t.Fatalf("rel.Confidence = %v, want 1.0", rel.Confidence)
	}
	if rel.Metadata["since"] != "2024" {
		t.Fatalf("rel.Metadata = %+v, want since=2024", rel.Metadata)
	}

	// A short row is skipped rather than panicking.
	if got := rowsToRelationships([][]any{{"too", "short"}}); len(got) != 0 {
		t.Fatalf("rowsToRelationships(short row) = %v, want empty", got)
	}
}

func TestRowsToRelationships_SupersededAndValidUntil(t *testing.T) {
	now := time.Now().UTC().Format(time.RFC3339)
	rows := [][]any{
		{"User", "WORKS_AT", "Acme", "", "1", now, "completed", now, "User WORKS_AT NewCorp", "user_stated", 1.0},
	}
	rel := rowsToRelationships(rows)[0]
	if rel.Status != recall.StatusCompleted {
		t.Fatalf("rel.Status = %q, want completed", rel.Status)
	}
	if rel.ValidUntil == nil {
		t.Fatal("rel.ValidUntil = nil, want set")
	}
	if rel.SupersededBy == nil || *rel.SupersededBy != "User WORKS_AT NewCorp" {
		t.Fatalf("rel.SupersededBy = %v, want \"User WORKS_AT NewCorp\"", rel.SupersededBy)
	}
}

func TestFloatOrDefault(t *testing.T) {
	if got := floatOrDefault(0.3, 1.0); got != 0.3 {
		t.Fatalf("floatOrDefault(0.3) = %v, want 0.3", got)
	}
	if got := floatOrDefault("0.7", 1.0); got != 0.7 {
		t.Fatalf("floatOrDefault(\"0.7\") = %v, want 0.7", got)
	}
	if got := floatOrDefault(nil, 1.0); got != 1.0 {
		t.Fatalf("floatOrDefault(nil) = %v, want default 1.0", got)
	}
}

func TestStringOrDefault(t *testing.T) {
	if got := stringOrDefault("assistant_inferred", "user_stated"); got != "assistant_inferred" {
		t.Fatalf("stringOrDefault() = %q, want %q", got, "assistant_inferred")
	}
	if got := stringOrDefault("", "user_stated"); got != "user_stated" {
		t.Fatalf("stringOrDefault(empty) = %q, want default", got)
	}
	if got := stringOrDefault(nil, "user_stated"); got != "user_stated" {
		t.Fatalf("stringOrDefault(nil) = %q, want default", got)
	}
}

func TestParseTime(t *testing.T) {
	ref := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := parseTime(ref.Format(time.RFC3339)); !got.Equal(ref) {
		t.Fatalf("parseTime() = %v, want %v", got, ref)
	}
	// Malformed input falls back to now rather than panicking or zero-valuing.
	if got := parseTime("not-a-time"); got.IsZero() {
		t.Fatal("parseTime(malformed) returned zero time, want fallback to now")
	}
	if got := parseTime(42); got.IsZero() {
		t.Fatal("parseTime(non-string) returned zero time, want fallback to now")
	}
}
