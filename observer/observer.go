// Package observer implements the per-turn distillation pipeline (§4.3):
// grade the turn, fan out extraction/summarization/query-generation,
// source-tag and merge the two extraction halves, detect and resolve
// contradictions against the graph store, then persist.
package observer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nevindra/recall"
	"github.com/nevindra/recall/prompts"
)

// Observer runs the distillation pipeline for one completed turn.
type Observer struct {
	generator recall.Generator
	embedder  recall.Embedder
	graph     recall.GraphStore
	vectors   recall.VectorStore
	log       *slog.Logger
	cost      *CostTracker
}

// Option configures an Observer.
type Option func(*Observer)

// WithLogger overrides the default discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Observer) { o.log = l }
}

// WithCostTracking prices every generator call a turn makes (the utility
// grade, the 4-way extraction fan-out, and one contradiction check per
// merged relationship that has existing facts) and reports the turn's
// total USD cost through tracker (see cost.go).
func WithCostTracking(tracker *CostTracker) Option {
	return func(o *Observer) { o.cost = tracker }
}

// New builds an Observer. gen is expected to already be wrapped with
// recall.WithRetry by the caller (§4.3.2's "every generator call is
// wrapped in retry" applies at the Generator boundary, not per call site).
func New(gen recall.Generator, emb recall.Embedder, graph recall.GraphStore, vectors recall.VectorStore, opts ...Option) *Observer {
	o := &Observer{generator: gen, embedder: emb, graph: graph, vectors: vectors, log: slog.New(discardHandler{})}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Turn is the input to ProcessTurn: one completed user/assistant exchange.
type Turn struct {
	UserText       string
	AssistantText  string
	ConversationID string
	TurnIndex      int
}

// ProcessTurn runs the full five-stage pipeline. It never returns an error
// to the caller (§4.3.2): failures degrade to a partially-empty
// ObserverOutput, logged but not propagated.
func (o *Observer) ProcessTurn(ctx context.Context, turn Turn) recall.ObserverOutput {
	combined := turn.UserText + "\n" + turn.AssistantText
	usage := &usageAccumulator{}
	defer o.reportCost(ctx, usage)

	grade := o.grade(ctx, combined, usage)
	if grade == recall.GradeDiscard {
		return recall.ObserverOutput{Grade: grade}
	}

	extraction := o.fanOut(ctx, turn, combined, usage)

	merged := mergeExtraction(extraction.user, extraction.assistant)

	contradictions := o.resolveContradictions(ctx, merged.Relationships, usage)

	chunk := &recall.MemoryChunk{
		ID:                   recall.NewID(),
		Content:              combined,
		Summary:              extraction.summary,
		ChunkType:            recall.ChunkConversation,
		SourceConversationID: turn.ConversationID,
		TurnIndex:            turn.TurnIndex,
		CreatedAt:            recall.Now(),
		LastAccessedAt:       recall.Now(),
		RetrievalQueries:     extraction.queries,
		UtilityScore:         grade.Score(),
		FactType:             merged.FactType,
	}

	o.embed(ctx, chunk)
	o.persist(ctx, chunk, merged.Entities, merged.Relationships)

	return recall.ObserverOutput{
		Grade:          grade,
		Chunk:          chunk,
		Entities:       merged.Entities,
		Relationships:  merged.Relationships,
		Contradictions: contradictions,
	}
}

// grade runs stage 1: the utility-grading gatekeeper. A malformed or
// unparseable response defaults to LOW per §4.3.1/§7.
func (o *Observer) grade(ctx context.Context, combined string, usage *usageAccumulator) recall.UtilityGrade {
	resp, err := o.generator.Chat(ctx, recall.ChatRequest{
		Messages: []recall.ChatMessage{recall.UserMessage(prompts.Render(prompts.UtilityTemplate, map[string]string{"text": combined}))},
	})
	usage.add(resp.Usage)
	if err != nil {
		o.log.Warn("utility grading failed", "error", err)
		return recall.GradeLow
	}
	return recall.ParseUtilityGrade(strings.TrimSpace(resp.Content))
}

type fanOutResult struct {
	user      recall.ExtractionResult
	assistant recall.ExtractionResult
	summary   string
	queries   []string
}

// fanOut runs stage 2: four concurrent generator calls.
func (o *Observer) fanOut(ctx context.Context, turn Turn, combined string, usage *usageAccumulator) fanOutResult {
	var result fanOutResult
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		result.user = o.extract(gctx, turn.UserText, usage)
		return nil
	})
	g.Go(func() error {
		result.assistant = o.extract(gctx, turn.AssistantText, usage)
		return nil
	})
	g.Go(func() error {
		result.summary = o.summarize(gctx, combined, usage)
		return nil
	})
	g.Go(func() error {
		result.queries = o.generateQueries(gctx, combined, usage)
		return nil
	})

	// Sub-calls already swallow their own errors into empty results, so
	// g.Wait() cannot fail; it only blocks until all four finish.
	_ = g.Wait()
	return result
}

func (o *Observer) extract(ctx context.Context, text string, usage *usageAccumulator) recall.ExtractionResult {
	if strings.TrimSpace(text) == "" {
		return recall.EmptyExtraction()
	}
	resp, err := o.generator.Chat(ctx, recall.ChatRequest{
		Messages: []recall.ChatMessage{recall.UserMessage(prompts.Render(prompts.ExtractionTemplate, map[string]string{"text": text}))},
	})
	usage.add(resp.Usage)
	if err != nil {
		o.log.Warn("extraction failed", "error", err)
		return recall.EmptyExtraction()
	}
	return ParseExtraction(resp.Content)
}

func (o *Observer) summarize(ctx context.Context, combined string, usage *usageAccumulator) string {
	resp, err := o.generator.Chat(ctx, recall.ChatRequest{
		Messages: []recall.ChatMessage{recall.UserMessage(prompts.Render(prompts.SummaryTemplate, map[string]string{"text": combined}))},
	})
	usage.add(resp.Usage)
	if err != nil {
		o.log.Warn("summarization failed", "error", err)
		return ""
	}
	return strings.TrimSpace(resp.Content)
}

func (o *Observer) generateQueries(ctx context.Context, combined string, usage *usageAccumulator) []string {
	resp, err := o.generator.Chat(ctx, recall.ChatRequest{
		Messages: []recall.ChatMessage{recall.UserMessage(prompts.Render(prompts.QueriesTemplate, map[string]string{"text": combined}))},
	})
	usage.add(resp.Usage)
	if err != nil {
		o.log.Warn("retrieval query generation failed", "error", err)
		return nil
	}
	return ParseQueries(resp.Content)
}

type mergedExtraction struct {
	FactType      recall.FactType
	Entities      []recall.Entity
	Relationships []recall.Relationship
}

// mergeExtraction implements stage 3: tag user-side relationships
// user_stated/1.0 and assistant-side assistant_inferred/0.3, drop any
// assistant relationship whose (subject, predicate) collides with a
// user-stated one (I3), and union the entities. fact_type comes from the
// user-side extraction, defaulting to episodic.
func mergeExtraction(user, assistant recall.ExtractionResult) mergedExtraction {
	userKeys := make(map[[2]string]bool, len(user.Relationships))
	relationships := make([]recall.Relationship, 0, len(user.Relationships)+len(assistant.Relationships))

	for _, r := range user.Relationships {
		r.Source = recall.SourceUserStated
		r.Confidence = 1.0
		relationships = append(relationships, r)
		userKeys[[2]string{r.Subject, string(r.Predicate)}] = true
	}
	for _, r := range assistant.Relationships {
		key := [2]string{r.Subject, string(r.Predicate)}
		if userKeys[key] {
			continue
		}
		r.Source = recall.SourceAssistantInferred
		r.Confidence = 0.3
		relationships = append(relationships, r)
	}

	entities := unionEntities(user.Entities, assistant.Entities)

	factType := user.FactType
	if !user.Ok || factType == "" {
		factType = recall.FactEpisodic
	}

	return mergedExtraction{FactType: factType, Entities: entities, Relationships: relationships}
}

func unionEntities(a, b []recall.Entity) []recall.Entity {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]recall.Entity, 0, len(a)+len(b))
	for _, e := range append(append([]recall.Entity{}, a...), b...) {
		if seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		out = append(out, e)
	}
	return out
}

// resolveContradictions implements stage 4: for each merged relationship,
// fetch existing relationships about the same entities (by subject AND by
// object — broader than the reference implementation's subject-only
// lookup, since a contradiction can equally be phrased with the entity as
// the object; see DESIGN.md), ask the contradiction-detection prompt, and
// act only on high-confidence results.
func (o *Observer) resolveContradictions(ctx context.Context, relationships []recall.Relationship, usage *usageAccumulator) []recall.Contradiction {
	var out []recall.Contradiction
	for _, rel := range relationships {
		existing := o.existingFacts(ctx, rel)
		if len(existing) == 0 {
			continue
		}

		contradictions, ok := o.detectContradictions(ctx, rel, existing, usage)
		if !ok {
			contradictions = simpleContradictionCheck(rel, existing)
		}

		for _, c := range contradictions {
			if c.Confidence != "high" {
				continue
			}
			if err := o.graph.MarkContradiction(ctx, c.ExistingID, rel.Statement()); err != nil {
				o.log.Warn("mark contradiction failed", "existing_id", c.ExistingID, "error", err)
				continue
			}
			out = append(out, c)
		}
	}
	return out
}

func (o *Observer) existingFacts(ctx context.Context, rel recall.Relationship) []recall.Relationship {
	bySubject, err := o.graph.Query(ctx, rel.Subject, nil)
	if err != nil {
		o.log.Warn("query by subject failed", "subject", rel.Subject, "error", err)
	}
	byObject, err := o.graph.QueryByObject(ctx, rel.Object, nil)
	if err != nil {
		o.log.Warn("query by object failed", "object", rel.Object, "error", err)
	}
	return append(bySubject, byObject...)
}

func (o *Observer) detectContradictions(ctx context.Context, rel recall.Relationship, existing []recall.Relationship, usage *usageAccumulator) ([]recall.Contradiction, bool) {
	resp, err := o.generator.Chat(ctx, recall.ChatRequest{
		Messages: []recall.ChatMessage{recall.UserMessage(prompts.Render(prompts.ContradictionTemplate, map[string]string{
			"new":      rel.Statement(),
			"existing": formatExisting(existing),
		}))},
	})
	usage.add(resp.Usage)
	if err != nil {
		o.log.Warn("contradiction detection failed", "error", err)
		return nil, false
	}
	return ParseContradictions(resp.Content)
}

func formatExisting(existing []recall.Relationship) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range existing {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, `{"id": %q, "subject": %q, "predicate": %q, "object": %q}`, e.ID, e.Subject, e.Predicate, e.Object)
	}
	b.WriteByte(']')
	return b.String()
}

// simpleContradictionCheck is the §4.3.1 stage 4 fallback used when the
// contradiction prompt's response fails to parse: same (subject,
// predicate) with a different object is a high-confidence contradiction.
func simpleContradictionCheck(rel recall.Relationship, existing []recall.Relationship) []recall.Contradiction {
	var out []recall.Contradiction
	for _, e := range existing {
		if e.Subject == rel.Subject && e.Predicate == rel.Predicate && e.Object != rel.Object {
			out = append(out, recall.Contradiction{
				ExistingID:   e.ID,
				Reason:       "same subject and predicate with a different object",
				TemporalType: "mutual_exclusion",
				Confidence:   "high",
			})
		}
	}
	return out
}

// embed computes the chunk's vector-store embedding from its content. A
// failure leaves Embedding nil; vectorstore.Persist will then surface
// *recall.ErrSchemaMismatch rather than silently storing a dimensionless row.
func (o *Observer) embed(ctx context.Context, chunk *recall.MemoryChunk) {
	vectors, err := o.embedder.Embed(ctx, []string{chunk.Content})
	if err != nil || len(vectors) == 0 {
		o.log.Warn("embedding failed", "error", err)
		return
	}
	chunk.Embedding = vectors[0]
}

// persist runs stage 5: the chunk and the entities+relationships are
// written in parallel.
func (o *Observer) persist(ctx context.Context, chunk *recall.MemoryChunk, entities []recall.Entity, relationships []recall.Relationship) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := o.vectors.Persist(gctx, *chunk); err != nil {
			o.log.Error("persist chunk failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := o.graph.PersistEntities(gctx, entities); err != nil {
			o.log.Error("persist entities failed", "error", err)
			return nil
		}
		if err := o.graph.PersistRelationships(gctx, relationships); err != nil {
			o.log.Error("persist relationships failed", "error", err)
		}
		return nil
	})

	_ = g.Wait()
}

// reportCost prices usage against o.cost (a no-op if tracking isn't
// configured) and reports the turn's total. Deferred in ProcessTurn so the
// discard-grade early return still gets charged for its one Chat call.
func (o *Observer) reportCost(ctx context.Context, usage *usageAccumulator) {
	if o.cost == nil {
		return
	}
	input, output := usage.totals()
	o.cost.Report(ctx, input, output)
}

// discardHandler is a no-op slog.Handler used as the zero-value logger.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
