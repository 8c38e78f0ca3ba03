// Package assembler implements the Context Assembler (§4.4): it retrieves
// from the vector and graph stores in parallel, applies temporal decay,
// merges and deduplicates candidates, reranks them, and formats the
// survivors into a token-budgeted context string for the generator.
package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nevindra/recall"
)

// defaults mirror the literal values used in spec.md's worked examples
// (§4.4, §8) so a default-configured Assembler reproduces them.
const (
	defaultMaxContextTokens   = 2000
	defaultSlidingWindow      = 800
	defaultVectorTopK         = 10
	defaultGraphTopK          = 10
	defaultFinalK             = 8
	defaultDecayCoreDays      = 0 // 0 disables decay
	defaultDecayHighDays      = 180
	defaultDecayMediumDays    = 60
	defaultDecayLowDays       = 14
	recencyBoostWindow        = 7 * 24 * time.Hour
	recencyBoostMultiplier    = 1.3
	statusOngoingMultiplier   = 1.2
	statusCompletedMultiplier = 0.8
	topicBoostMultiplier      = 1.4

	graphLegBaseConfidenceWeight = 0.4
)

// Assembler implements §4.4's Retrieve algorithm over a VectorStore,
// GraphStore, Embedder, and Reranker.
type Assembler struct {
	vectors  recall.VectorStore
	graph    recall.GraphStore
	embedder recall.Embedder
	reranker recall.Reranker

	maxContextTokens  int
	slidingWindow     int
	vectorTopK        int
	graphTopK         int
	finalK            int
	decayCoreDays     int
	decayHighDays     int
	decayMediumDays   int
	decayLowDays      int

	hopTraversal int // 0 disables the graph-aware supplement (§ GraphAwareAssembler)

	log *slog.Logger
}

// Option configures an Assembler, matching the teacher's
// NewHybridRetriever/RetrieverOption functional-options idiom.
type Option func(*Assembler)

// WithMaxContextTokens sets the total assembled-context budget (default 2000).
func WithMaxContextTokens(n int) Option { return func(a *Assembler) { a.maxContextTokens = n } }

// WithSlidingWindowTokens sets the verbatim recent-dialogue budget W (default 800).
func WithSlidingWindowTokens(n int) Option { return func(a *Assembler) { a.slidingWindow = n } }

// WithVectorTopK sets k_v, the pre-rerank vector candidate count (default 10).
func WithVectorTopK(n int) Option { return func(a *Assembler) { a.vectorTopK = n } }

// WithGraphTopK sets k_g, the pre-rerank graph candidate count (default 10).
func WithGraphTopK(n int) Option { return func(a *Assembler) { a.graphTopK = n } }

// WithFinalK sets final_k, the number of candidates rendered after rerank (default 8).
func WithFinalK(n int) Option { return func(a *Assembler) { a.finalK = n } }

// WithDecayHalfLives sets the half-life (in days) for each utility tier; 0
// for core disables decay entirely, per §6.3.
func WithDecayHalfLives(core, high, medium, low int) Option {
	return func(a *Assembler) {
		a.decayCoreDays, a.decayHighDays, a.decayMediumDays, a.decayLowDays = core, high, medium, low
	}
}

// WithLogger overrides the default discard logger.
func WithLogger(l *slog.Logger) Option { return func(a *Assembler) { a.log = l } }

// WithGraphAwareRetrieval opts into multi-hop graph retrieval: when the
// configured GraphStore also satisfies HopTraversable, the graph leg widens
// to maxHops before scoring. A GraphStore that doesn't implement
// HopTraversable silently keeps the spec's exact single-hop behavior.
func WithGraphAwareRetrieval(maxHops int) Option {
	return func(a *Assembler) { a.hopTraversal = maxHops }
}

// HopTraversable is an optional GraphStore capability (satisfied by
// graph/falkor, not graph/memory) letting the assembler widen the graph
// leg beyond spec.md's single-hop search_relationships call.
type HopTraversable interface {
	Traverse(ctx context.Context, seeds []string, hops int, limit int) ([]recall.Relationship, error)
}

// New builds an Assembler over the given capabilities with spec-default
// configuration, overridable via opts.
func New(vectors recall.VectorStore, graph recall.GraphStore, embedder recall.Embedder, reranker recall.Reranker, opts ...Option) *Assembler {
	a := &Assembler{
		vectors:         vectors,
		graph:           graph,
		embedder:        embedder,
		reranker:        reranker,
		maxContextTokens: defaultMaxContextTokens,
		slidingWindow:    defaultSlidingWindow,
		vectorTopK:       defaultVectorTopK,
		graphTopK:        defaultGraphTopK,
		finalK:           defaultFinalK,
		decayCoreDays:    defaultDecayCoreDays,
		decayHighDays:    defaultDecayHighDays,
		decayMediumDays:  defaultDecayMediumDays,
		decayLowDays:     defaultDecayLowDays,
		log:              slog.New(discardHandler{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Retrieve implements §4.4 steps 1-7: sliding window, parallel vector+graph
// retrieval, temporal decay, merge/dedup, rerank, and budgeted formatting.
// Assembler errors never abort the turn (§7): a failed leg degrades to an
// empty result for that leg, and the sliding window alone is always
// returned even if both legs fail.
func (a *Assembler) Retrieve(ctx context.Context, query string, history []recall.ChatMessage) (string, error) {
	slidingWindow := a.buildSlidingWindow(history)
	remaining := maxInt(0, a.maxContextTokens-countTokens(slidingWindow))

	vectorLeg, graphLeg := a.retrieveLegs(ctx, query)

	candidates := append(vectorLeg, graphLeg...)
	for i := range candidates {
		candidates[i].Temporal = a.temporalDecay(candidates[i])
		candidates[i].Final = candidates[i].Relevance * candidates[i].Temporal
	}

	candidates = dedup(candidates)
	candidates = a.rerank(ctx, query, candidates, lastUserMessage(history))

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Final > candidates[j].Final })
	if len(candidates) > a.finalK {
		candidates = candidates[:a.finalK]
	}

	memories := formatMemories(candidates, remaining)
	return buildFinalContext(slidingWindow, memories), nil
}

// retrieveLegs runs the vector and graph legs concurrently (§4.4 step 3).
// A leg that errors logs a warning and contributes no candidates rather
// than failing the whole retrieval.
func (a *Assembler) retrieveLegs(ctx context.Context, query string) ([]recall.RetrievedContext, []recall.RetrievedContext) {
	var vectorLeg, graphLeg []recall.RetrievedContext
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		results, err := a.vectorLeg(gctx, query)
		if err != nil {
			a.log.Warn("vector leg failed", "error", err)
			return nil
		}
		vectorLeg = results
		return nil
	})
	g.Go(func() error {
		results, err := a.graphLeg(gctx, query)
		if err != nil {
			a.log.Warn("graph leg failed", "error", err)
			return nil
		}
		graphLeg = results
		return nil
	})
	_ = g.Wait()

	return vectorLeg, graphLeg
}

func (a *Assembler) vectorLeg(ctx context.Context, query string) ([]recall.RetrievedContext, error) {
	vectors, err := a.embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := a.vectors.Search(ctx, vectors[0], a.vectorTopK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	out := make([]recall.RetrievedContext, len(hits))
	for i, hit := range hits {
		out[i] = recall.RetrievedContext{
			Content:      hit.Content,
			Source:       recall.SourceVector,
			Relevance:    hit.Score,
			FactType:     hit.FactType,
			UtilityScore: hit.UtilityScore,
			CreatedAt:    hit.CreatedAt,
		}
	}
	return out, nil
}

// graphLeg implements §4.4 step 3's graph retrieval: extract candidate
// entity names, search relationships, filter superseded/expired facts,
// score by confidence/recency/status, render, and stop after k_g accepted
// rows.
func (a *Assembler) graphLeg(ctx context.Context, query string) ([]recall.RetrievedContext, error) {
	names := extractEntityNames(query)
	if len(names) == 0 {
		return nil, nil
	}

	relationships, err := a.searchGraph(ctx, names)
	if err != nil {
		return nil, err
	}

	now := recall.Now()
	out := make([]recall.RetrievedContext, 0, a.graphTopK)
	for _, rel := range relationships {
		if len(out) >= a.graphTopK {
			break
		}
		if rel.SupersededBy != nil {
			continue
		}
		if rel.ValidUntil != nil && rel.ValidUntil.Before(now) {
			continue
		}

		relevance := graphLegBaseConfidenceWeight * rel.Confidence
		if now.Sub(rel.CreatedAt) <= recencyBoostWindow {
			relevance *= recencyBoostMultiplier
		}
		switch rel.Status {
		case recall.StatusOngoing, "":
			relevance *= statusOngoingMultiplier
		case recall.StatusCompleted:
			relevance *= statusCompletedMultiplier
		}

		out = append(out, recall.RetrievedContext{
			Content:   renderRelationship(rel),
			Source:    recall.SourceGraph,
			Relevance: relevance,
			CreatedAt: rel.CreatedAt,
			// Graph candidates carry no fact_type/utility_score of their
			// own; default to the episodic/medium tier, matching
			// original_source's RetrievedContext dataclass defaults.
			FactType:     "",
			UtilityScore: 0.5,
		})
	}
	return out, nil
}

// searchGraph calls SearchRelationships, optionally widened first to a
// traversal of a.hopTraversal hops when the configured GraphStore satisfies
// HopTraversable and WithGraphAwareRetrieval was used (the opt-in
// supplement beyond spec.md's single-hop call).
func (a *Assembler) searchGraph(ctx context.Context, names []string) ([]recall.Relationship, error) {
	limit := 2 * a.graphTopK

	if a.hopTraversal > 0 {
		if hop, ok := a.graph.(HopTraversable); ok {
			rels, err := hop.Traverse(ctx, names, a.hopTraversal, limit)
			if err == nil {
				return rels, nil
			}
			a.log.Warn("hop traversal failed, falling back to single-hop search", "error", err)
		}
	}

	return a.graph.SearchRelationships(ctx, names, limit)
}

// temporalDecay implements §4.4 step 4 / original_source's
// _calculate_temporal_decay: core facts never decay; otherwise the
// half-life is chosen by utility tier, and a half-life of 0 also disables
// decay.
func (a *Assembler) temporalDecay(c recall.RetrievedContext) float64 {
	if c.FactType == recall.FactCore {
		return 1.0
	}

	var halfLifeDays int
	switch {
	case c.UtilityScore >= 0.9:
		halfLifeDays = a.decayHighDays
	case c.UtilityScore >= 0.5:
		halfLifeDays = a.decayMediumDays
	default:
		halfLifeDays = a.decayLowDays
	}
	if halfLifeDays == 0 {
		return 1.0
	}

	ageDays := recall.Now().Sub(c.CreatedAt).Hours() / 24
	return math.Pow(0.5, ageDays/float64(halfLifeDays))
}

// dedup implements §4.4 step 5: key by (content, source), keep the higher
// Final on collision.
func dedup(candidates []recall.RetrievedContext) []recall.RetrievedContext {
	type key struct {
		content string
		source  recall.RetrievalSource
	}
	seen := make(map[key]int, len(candidates))
	out := make([]recall.RetrievedContext, 0, len(candidates))
	for _, c := range candidates {
		k := key{c.Content, c.Source}
		if idx, ok := seen[k]; ok {
			if c.Final > out[idx].Final {
				out[idx] = c
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, c)
	}
	return out
}

// rerank implements §4.4 step 6: call the reranker over (query, content)
// pairs, multiply Final by the returned score (0/nil treated as 1.0), then
// apply the recency-of-topic boost when the last user message is a
// case-insensitive substring of the candidate content.
func (a *Assembler) rerank(ctx context.Context, query string, candidates []recall.RetrievedContext, lastUser string) []recall.RetrievedContext {
	if len(candidates) == 0 {
		return candidates
	}

	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = c.Content
	}

	scores, err := a.reranker.Predict(ctx, query, passages)
	if err != nil {
		a.log.Warn("rerank failed, leaving relevance-ordered scores unchanged", "error", err)
		scores = nil
	}

	lastUserLower := strings.ToLower(strings.TrimSpace(lastUser))
	for i := range candidates {
		score := 1.0
		if i < len(scores) && scores[i] != 0 {
			score = scores[i]
		}
		candidates[i].Final *= score

		if lastUserLower != "" && strings.Contains(strings.ToLower(candidates[i].Content), lastUserLower) {
			candidates[i].Final *= topicBoostMultiplier
		}
	}
	return candidates
}

// buildSlidingWindow implements §4.4 step 1: walk history newest-to-oldest,
// appending ROLE: content lines until W would be exceeded, then reverse
// into chronological order.
func (a *Assembler) buildSlidingWindow(history []recall.ChatMessage) string {
	var lines []string
	tokens := 0
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		msgTokens := countTokens(msg.Content)
		if tokens+msgTokens > a.slidingWindow {
			break
		}
		lines = append([]string{fmt.Sprintf("%s: %s", strings.ToUpper(msg.Role), msg.Content)}, lines...)
		tokens += msgTokens
	}
	return strings.Join(lines, "\n")
}

// lastUserMessage returns the most recent history entry with Role=="user".
func lastUserMessage(history []recall.ChatMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return history[i].Content
		}
	}
	return ""
}

// formatMemories implements §4.4 step 7: emit "- {content}" lines in
// order, stopping before exceeding maxTokens — a candidate that would
// overflow the budget is dropped, not truncated mid-entry.
func formatMemories(candidates []recall.RetrievedContext, maxTokens int) string {
	var lines []string
	tokens := 0
	for _, c := range candidates {
		entryTokens := countTokens(c.Content)
		if tokens+entryTokens > maxTokens {
			break
		}
		lines = append(lines, "- "+c.Content)
		tokens += entryTokens
	}
	return strings.Join(lines, "\n")
}

func buildFinalContext(slidingWindow, memories string) string {
	return fmt.Sprintf("## Recent Conversation\n%s\n\n## Relevant Memories\n%s", slidingWindow, memories)
}

// countTokens approximates token count as max(1, len(text)/4) per §4.4 step 1.
func countTokens(text string) int {
	return maxInt(1, len(text)/4)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// discardHandler is a no-op slog.Handler used as the zero-value logger.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
