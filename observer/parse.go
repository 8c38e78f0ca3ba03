package observer

import (
	"encoding/json"
	"strings"

	"github.com/nevindra/recall"
)

// extractionWire mirrors §4.3.4's extraction output shape for JSON decoding.
type extractionWire struct {
	FactType      string `json:"fact_type"`
	Entities      []entityWire
	Relationships []relationshipWire
}

type entityWire struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

type relationshipWire struct {
	Subject   string         `json:"subject"`
	Predicate string         `json:"predicate"`
	Object    string         `json:"object"`
	Metadata  map[string]any `json:"metadata"`
}

// contradictionsWire mirrors the contradiction-detection prompt's output.
type contradictionsWire struct {
	Contradictions []contradictionWire `json:"contradictions"`
}

type contradictionWire struct {
	ExistingID        string `json:"existing_id"`
	ExistingStatement string `json:"existing_statement"`
	Reason            string `json:"reason"`
	TemporalType      string `json:"temporal_type"`
	Confidence        string `json:"confidence"`
}

// parseJSON runs the four-strategy tolerant ladder from §4.3.2: direct
// parse, then a fenced code block, then the first balanced {...} slice,
// then text trimmed of any preamble/postamble. The first strategy that
// produces valid JSON wins.
func parseJSON(raw string, out any) bool {
	trimmed := strings.TrimSpace(raw)
	if start := strings.IndexAny(trimmed, "{["); start != -1 {
		if end := strings.LastIndexAny(trimmed, "}]"); end > start {
			trimmed = trimmed[start : end+1]
		}
	}
	candidates := []string{raw, fencedBlock(raw), braceSlice(raw), trimmed}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if json.Unmarshal([]byte(c), out) == nil {
			return true
		}
	}
	return false
}

// fencedBlock extracts the content of the first ```-delimited code block,
// stripping an optional language tag on the opening fence.
func fencedBlock(s string) string {
	start := strings.Index(s, "```")
	if start == -1 {
		return ""
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl != -1 && nl < 20 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end == -1 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// braceSlice returns the text between the first '{' and its matching
// closing '}', tracking nesting depth so embedded objects don't truncate
// it early.
func braceSlice(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// ParseExtraction decodes a generator response into a recall.ExtractionResult
// using the tolerant ladder. An unparseable response yields
// recall.EmptyExtraction() — the turn is never aborted on a malformed
// extraction (§4.3.2).
func ParseExtraction(raw string) recall.ExtractionResult {
	var wire extractionWire
	if !parseJSON(raw, &wire) {
		return recall.EmptyExtraction()
	}

	factType := recall.FactType(wire.FactType)
	switch factType {
	case recall.FactCore, recall.FactEpisodic, recall.FactPreference:
	default:
		factType = recall.FactEpisodic
	}

	entities := make([]recall.Entity, 0, len(wire.Entities))
	for _, e := range wire.Entities {
		if e.Name == "" {
			continue
		}
		entities = append(entities, recall.Entity{
			Name:       e.Name,
			Type:       recall.EntityType(e.Type),
			Attributes: e.Attributes,
		})
	}

	relationships := make([]recall.Relationship, 0, len(wire.Relationships))
	for _, r := range wire.Relationships {
		if r.Subject == "" || r.Predicate == "" || r.Object == "" {
			continue
		}
		relationships = append(relationships, recall.Relationship{
			Subject:   r.Subject,
			Predicate: recall.Predicate(r.Predicate),
			Object:    r.Object,
			Metadata:  r.Metadata,
		})
	}

	return recall.ExtractionResult{
		Ok:            true,
		FactType:      factType,
		Entities:      entities,
		Relationships: relationships,
	}
}

// ParseContradictions decodes the contradiction-detection prompt's
// response. An unparseable response returns (nil, false) so the caller can
// fall back to the simple same-subject-and-predicate rule (§4.3.1 stage 4).
func ParseContradictions(raw string) ([]recall.Contradiction, bool) {
	var wire contradictionsWire
	if !parseJSON(raw, &wire) {
		return nil, false
	}
	out := make([]recall.Contradiction, 0, len(wire.Contradictions))
	for _, c := range wire.Contradictions {
		if c.ExistingID == "" {
			continue
		}
		out = append(out, recall.Contradiction{
			ExistingID:   c.ExistingID,
			Reason:       c.Reason,
			TemporalType: c.TemporalType,
			Confidence:   c.Confidence,
		})
	}
	return out, true
}

// ParseQueries decodes a JSON array of strings. An unparseable response
// yields nil.
func ParseQueries(raw string) []string {
	var queries []string
	if parseJSON(raw, &queries) {
		return queries
	}
	return nil
}
