// Command recall wires an Engine up from configuration and runs it as a
// one-turn-per-line REPL: it reads a user message from stdin, assembles
// context, streams a reply to stdout, and spawns the Observer for that
// turn, draining the observer task pool on interrupt. It is glue for the
// orchestration layer (§4.5), not a chat UI — terminal chat UI is an
// external collaborator out of this spec's scope (§1), the same way the
// teacher's cmd/oasis/main.go is frontend wiring, not the frontend itself.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/recall"
	"github.com/nevindra/recall/assembler"
	"github.com/nevindra/recall/graph"
	"github.com/nevindra/recall/internal/config"
	"github.com/nevindra/recall/internal/engine"
	"github.com/nevindra/recall/observer"
	"github.com/nevindra/recall/providers/httpllm"
	"github.com/nevindra/recall/providers/local"
	"github.com/nevindra/recall/telemetry"
	"github.com/nevindra/recall/vectorstore/postgres"
	"github.com/nevindra/recall/vectorstore/sqlite"
)

// shutdownGrace bounds how long main waits for in-flight observer tasks to
// drain on interrupt (§5's "awaits in-flight observers once, then exits").
const shutdownGrace = 30 * time.Second

func main() {
	cfg := config.Load(os.Getenv("RECALL_CONFIG_PATH"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	inst, shutdownTelemetry, err := telemetry.Init(ctx, nil)
	if err != nil {
		log.Fatalf("telemetry init: %v", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	gen := telemetry.WrapGenerator(
		recall.WithRetry(httpllm.NewProvider(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL, httpllm.WithName(cfg.LLM.Provider))),
		cfg.LLM.Model, inst,
	)
	emb := telemetry.WrapEmbedder(
		httpllm.NewProvider(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.BaseURL,
			httpllm.WithName(cfg.Embedding.Provider),
			httpllm.WithEmbeddingModel(cfg.Embedding.Model),
			httpllm.WithDimensions(cfg.Embedding.Dimensions)),
		inst,
	)
	rerank := telemetry.WrapReranker(newReranker(cfg), inst)

	vectors, err := newVectorStore(ctx, cfg)
	if err != nil {
		// §6.4: vector store unavailable at startup is fatal.
		log.Fatalf("vector store init: %v", err)
	}
	vectors = telemetry.WrapVectorStore(vectors, inst)

	graphStore := telemetry.WrapGraphStore(
		graph.New(ctx, graph.Config{Backend: cfg.Graph.Backend, Host: cfg.Graph.Host, Port: cfg.Graph.Port, GraphID: cfg.Graph.GraphID}, slog.Default()),
		inst,
	)

	asm := assembler.New(vectors, graphStore, emb, rerank,
		assembler.WithMaxContextTokens(cfg.Memory.MaxContextTokens),
		assembler.WithSlidingWindowTokens(cfg.Memory.SlidingWindowTokens),
		assembler.WithVectorTopK(cfg.Memory.VectorSearchTopK),
		assembler.WithGraphTopK(cfg.Memory.GraphSearchTopK),
		assembler.WithFinalK(cfg.Memory.RerankTopK),
		assembler.WithDecayHalfLives(
			cfg.Memory.TemporalDecayCoreDays,
			cfg.Memory.TemporalDecayHighDays,
			cfg.Memory.TemporalDecayMediumDays,
			cfg.Memory.TemporalDecayLowDays,
		),
	)

	obs := observer.New(gen, emb, graphStore, vectors,
		observer.WithCostTracking(observer.NewCostTracker(cfg.LLM.Model, inst.Cost, func(ctx context.Context, usd float64, inputTokens, outputTokens int) {
			inst.CostTotal.Add(ctx, usd)
			inst.TokenUsage.Add(ctx, int64(inputTokens+outputTokens))
		})),
	)

	eng := engine.New(gen, emb, rerank, vectors, graphStore, asm, obs,
		engine.WithObserverConcurrency(cfg.Memory.ObserverConcurrency),
		engine.WithLogger(slog.Default()),
	)

	runREPL(ctx, eng)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := eng.Shutdown(shutdownCtx); err != nil {
		log.Printf("observer drain: %v", err)
	}
}

// newReranker returns providers/local's zero-network lexical-overlap
// Reranker for every cfg.Reranker.Provider value, "none" included.
func newReranker(cfg config.Config) recall.Reranker {
	return local.NewReranker()
}

// newVectorStore builds the configured VectorStore backend. A failure here
// is fatal (§6.4): unlike the graph store, there is no in-memory fallback —
// a vector store is required for startup to proceed.
func newVectorStore(ctx context.Context, cfg config.Config) (recall.VectorStore, error) {
	if cfg.VectorStore.Backend == "postgres" {
		pool, err := pgxpool.New(ctx, cfg.VectorStore.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
		store := postgres.New(pool, postgres.WithEmbeddingDimension(cfg.VectorStore.EmbeddingDimension))
		if err := store.Init(ctx); err != nil {
			return nil, fmt.Errorf("postgres init: %w", err)
		}
		return store, nil
	}

	store, err := sqlite.New(cfg.VectorStore.DSN, cfg.VectorStore.EmbeddingDimension)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// runREPL reads one line per turn from stdin and drives the engine until
// ctx is cancelled or stdin closes.
func runREPL(ctx context.Context, eng *engine.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	conversationID := recall.NewID()
	var history []recall.ChatMessage
	turn := 0

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		userText := scanner.Text()
		if userText == "" {
			continue
		}

		stream, err := eng.HandleTurn(ctx, conversationID, turn, userText, history)
		if err != nil {
			fmt.Fprintf(os.Stderr, "turn failed: %v\n", err)
			continue
		}

		var assistantText string
		for chunk := range stream {
			fmt.Print(chunk)
			assistantText += chunk
		}
		fmt.Println()

		history = append(history, recall.UserMessage(userText), recall.AssistantMessage(assistantText))
		turn++
	}
}
