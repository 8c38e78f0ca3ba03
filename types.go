// Package recall implements a local, privacy-first conversational memory
// engine: an Observer distillation pipeline, a dual-store (vector + typed
// graph) persistence model with temporal contradiction resolution, and a
// Context Assembler that merges, decays, filters, and reranks candidates
// under a token budget.
package recall

import "time"

// --- Utility grading (§3.3) ---

// UtilityGrade classifies how memorable a turn is. Both a canonical
// three-level family and a legacy four-level alias are exposed; only the
// numeric Score is ever persisted.
type UtilityGrade string

const (
	GradeDiscard   UtilityGrade = "DISCARD"
	GradeStore     UtilityGrade = "STORE"
	GradeImportant UtilityGrade = "IMPORTANT"

	// Legacy four-level aliases, kept for grader prompts/parsers that still
	// emit them.
	GradeLow    UtilityGrade = "LOW"
	GradeMedium UtilityGrade = "MEDIUM"
	GradeHigh   UtilityGrade = "HIGH"
)

// Score maps a grade to its utility_score per §3.3. Unknown grades score 0.
func (g UtilityGrade) Score() float64 {
	switch g {
	case GradeDiscard:
		return 0.0
	case GradeStore, GradeMedium:
		return 0.6
	case GradeLow:
		return 0.3
	case GradeImportant, GradeHigh:
		return 1.0
	default:
		return 0.0
	}
}

// ParseUtilityGrade parses a single-word grader response. Unknown or
// malformed input defaults to GradeLow per §4.3.1 stage 1 / §7's
// "Unknown utility word" policy.
func ParseUtilityGrade(word string) UtilityGrade {
	switch UtilityGrade(word) {
	case GradeDiscard, GradeStore, GradeImportant, GradeLow, GradeMedium, GradeHigh:
		return UtilityGrade(word)
	default:
		return GradeLow
	}
}

// --- MemoryChunk (§3.1, vector-store record) ---

type ChunkType string

const (
	ChunkConversation ChunkType = "conversation"
	ChunkDocument     ChunkType = "document"
)

type FactType string

const (
	FactCore       FactType = "core"
	FactEpisodic   FactType = "episodic"
	FactPreference FactType = "preference"
)

// MemoryChunk is the vector-store record defined in §3.1. It is created
// exclusively by the Observer and never mutated after insertion except for
// LastAccessedAt/AccessCount on retrieval.
type MemoryChunk struct {
	ID                   string    `json:"id"`
	Content              string    `json:"content"`
	Summary              string    `json:"summary"`
	Embedding            []float32 `json:"-"`
	ChunkType            ChunkType `json:"chunk_type"`
	SourceConversationID string    `json:"source_conversation_id"`
	TurnIndex            int       `json:"turn_index"`
	CreatedAt            time.Time `json:"created_at"`
	LastAccessedAt       time.Time `json:"last_accessed_at"`
	AccessCount          int       `json:"access_count"`
	RetrievalQueries     []string  `json:"retrieval_queries"`
	UtilityScore         float64   `json:"utility_score"`
	FactType             FactType  `json:"fact_type"`
}

// ScoredChunk pairs a MemoryChunk with its combined vector-store score.
type ScoredChunk struct {
	MemoryChunk
	Score float64
}

// --- Entity and Relationship (§3.2, graph-store records) ---

type EntityType string

const (
	EntityPerson       EntityType = "Person"
	EntityPlace        EntityType = "Place"
	EntityOrganization EntityType = "Organization"
	EntityTechnology   EntityType = "Technology"
	EntityConcept      EntityType = "Concept"
	EntityEvent        EntityType = "Event"
)

// Entity is keyed by Name. Attributes is a flat string-to-scalar bag (age,
// role, relation, etc).
type Entity struct {
	Name           string         `json:"name"`
	Type           EntityType     `json:"type"`
	Attributes     map[string]any `json:"attributes,omitempty"`
	FirstMentioned time.Time      `json:"first_mentioned"`
	LastMentioned  time.Time      `json:"last_mentioned"`
}

// Predicate is a controlled-vocabulary relationship label. It is
// string-backed with an open "Other" escape (§9 design note: either a closed
// enum or a string with known constants is acceptable as long as the
// contradiction logic reasons about the ongoing/completed family, not the
// exact spelling).
type Predicate string

// Predicate families, grouped per §3.2/§4.3.4's extraction rules. Not
// exhaustive — the extraction prompt may emit any schemaful label; these
// constants exist so contradiction detection and relationship-formatting
// code can recognize the common cases by name.
const (
	// Identity / familial
	PredicateSiblingOf Predicate = "SIBLING_OF"
	PredicateParentOf  Predicate = "PARENT_OF"
	PredicateChildOf   Predicate = "CHILD_OF"
	PredicateSpouseOf  Predicate = "SPOUSE_OF"

	// Social
	PredicateFriendOf     Predicate = "FRIEND_OF"
	PredicateDating       Predicate = "DATING"
	PredicateMarriedTo    Predicate = "MARRIED_TO"
	PredicateBrokeUpWith  Predicate = "BROKE_UP_WITH"
	PredicateDivorcedFrom Predicate = "DIVORCED_FROM"

	// Professional
	PredicateWorksAt     Predicate = "WORKS_AT"
	PredicateWorksOn     Predicate = "WORKS_ON"
	PredicateManages     Predicate = "MANAGES"
	PredicateColleagueOf Predicate = "COLLEAGUE_OF"
	PredicateResignedFrom Predicate = "RESIGNED_FROM"
	PredicateFiredFrom   Predicate = "FIRED_FROM"
	PredicateQuit        Predicate = "QUIT"

	// Spatial — ongoing
	PredicateLivesIn     Predicate = "LIVES_IN"
	PredicateVisiting    Predicate = "VISITING"
	PredicateTravelingTo Predicate = "TRAVELING_TO"

	// Spatial — completed
	PredicateReturnedHome Predicate = "RETURNED_HOME"
	PredicateLeft         Predicate = "LEFT"
	PredicateMovedFrom    Predicate = "MOVED_FROM"
	PredicateMovedTo      Predicate = "MOVED_TO"
	PredicateArrivedAt    Predicate = "ARRIVED_AT"

	// Ownership
	PredicateOwns Predicate = "OWNS"
	PredicateHas  Predicate = "HAS"

	// Emotional
	PredicateFeelsAbout Predicate = "FEELS_ABOUT"
	PredicatePrefers    Predicate = "PREFERS"
	PredicateDislikes   Predicate = "DISLIKES"
)

type RelationshipStatus string

const (
	StatusOngoing   RelationshipStatus = "ongoing"
	StatusCompleted RelationshipStatus = "completed"
	StatusPlanned   RelationshipStatus = "planned"
)

type RelationshipSource string

const (
	SourceUserStated       RelationshipSource = "user_stated"
	SourceAssistantInferred RelationshipSource = "assistant_inferred"
)

// Relationship is the append-only graph-store edge record of §3.2.
// Contradiction resolution mutates only Status, SupersededBy, and
// Metadata["still_valid"]/Metadata["superseded_at"] on the existing record
// (§3.4) — it is never deleted.
type Relationship struct {
	ID         string             `json:"id"`
	Subject    string             `json:"subject"`
	Predicate  Predicate          `json:"predicate"`
	Object     string             `json:"object"`
	Metadata   map[string]any     `json:"metadata,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	Status     RelationshipStatus `json:"status,omitempty"`
	ValidUntil *time.Time         `json:"valid_until,omitempty"`
	SupersededBy *string          `json:"superseded_by,omitempty"`
	Source     RelationshipSource `json:"source"`
	Confidence float64            `json:"confidence"`
}

// Statement renders "subject predicate object", the exact form
// mark_contradiction's superseding_statement argument takes (§4.1,
// §4.3.1 stage 4).
func (r Relationship) Statement() string {
	return r.Subject + " " + string(r.Predicate) + " " + r.Object
}

// --- Observer output (§4.3, §9's tagged-variant design note) ---

// ExtractionResult is the sum type Ok{...} | Empty described in §9:
// Ok is true when extraction produced structured data; an Empty result
// (Ok=false) carries zero entities/relationships and is what the tolerant
// parser returns on exhaustion.
type ExtractionResult struct {
	Ok            bool
	FactType      FactType
	Entities      []Entity
	Relationships []Relationship
}

// EmptyExtraction is the canonical Empty variant.
func EmptyExtraction() ExtractionResult {
	return ExtractionResult{Ok: false, FactType: FactEpisodic}
}

// ObserverOutput is Observer.ProcessTurn's result: what, if anything, was
// persisted for this turn.
type ObserverOutput struct {
	Grade         UtilityGrade
	Chunk         *MemoryChunk
	Entities      []Entity
	Relationships []Relationship
	Contradictions []Contradiction
}

// Contradiction records a single act of supersession performed during
// stage 4 of the Observer pipeline.
type Contradiction struct {
	ExistingID   string
	Reason       string
	TemporalType string // state_completion | mutual_exclusion | attribute_update | ""
	Confidence   string // high | medium | low
}

// --- Context Assembler intermediate types (§4.4) ---

// RetrievalSource distinguishes the assembler's two retrieval legs.
type RetrievalSource string

const (
	SourceVector RetrievalSource = "vector"
	SourceGraph  RetrievalSource = "graph"
)

// RetrievedContext is one candidate flowing through the assembler pipeline
// (retrieval → decay → merge → rerank → format).
type RetrievedContext struct {
	Content   string
	Source    RetrievalSource
	Relevance float64 // raw leg-specific score before decay
	Temporal  float64 // decay multiplier
	Final     float64 // relevance * temporal * rerank * boosts

	FactType     FactType
	UtilityScore float64
	CreatedAt    time.Time
}

// --- LLM protocol types consumed by Generator/Embedder/Reranker ---

type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

func UserMessage(text string) ChatMessage      { return ChatMessage{Role: "user", Content: text} }
func SystemMessage(text string) ChatMessage    { return ChatMessage{Role: "system", Content: text} }
func AssistantMessage(text string) ChatMessage { return ChatMessage{Role: "assistant", Content: text} }

// ResponseSchema tells the provider to enforce structured JSON output. When
// set on a ChatRequest, the provider translates it to its native structured
// output mechanism.
type ResponseSchema struct {
	Name   string `json:"name"`
	Schema []byte `json:"schema"`
}

type ChatRequest struct {
	Messages       []ChatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	ResponseSchema *ResponseSchema `json:"response_schema,omitempty"`
}

type ChatResponse struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StreamEventType identifies the kind of a streamed generator event.
type StreamEventType string

const EventTextDelta StreamEventType = "text-delta"

// StreamEvent carries an incremental chunk of a streaming Generator
// response.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`
}
