// Package engine owns the long-lived, turn-shaped orchestration described
// in §4.5: a single handle over the capabilities, the Context Assembler,
// and the Observer, constructed once at startup. It generalizes the
// teacher's internal/app.App (a chat-frontend-shaped "scoped handle"
// struct wired up via a Deps/functional-options combo) one level further,
// since this spec's orchestration has no frontend of its own — callers
// drive it turn by turn.
package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nevindra/recall"
	"github.com/nevindra/recall/assembler"
	"github.com/nevindra/recall/observer"
)

// Engine is the scoped handle every turn is processed through.
type Engine struct {
	generator recall.Generator
	embedder  recall.Embedder
	reranker  recall.Reranker
	vectors   recall.VectorStore
	graph     recall.GraphStore

	assembler *assembler.Assembler
	observer  *observer.Observer
	tasks     *observerTaskSet

	log *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger overrides the default discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithObserverConcurrency bounds how many observer tasks may run
// concurrently across all conversations (§4.5's observer_concurrency,
// default 2).
func WithObserverConcurrency(n int) Option {
	return func(e *Engine) { e.tasks = newObserverTaskSet(n) }
}

// New builds an Engine. gen/emb/reranker/vectors/graph are expected to
// already be wrapped with whatever cross-cutting decorators the caller
// wants (recall.WithRetry, telemetry.Wrap*) — the Engine composes them,
// it doesn't wrap them itself.
func New(gen recall.Generator, emb recall.Embedder, reranker recall.Reranker, vectors recall.VectorStore, graph recall.GraphStore, asm *assembler.Assembler, obs *observer.Observer, opts ...Option) *Engine {
	e := &Engine{
		generator: gen,
		embedder:  emb,
		reranker:  reranker,
		vectors:   vectors,
		graph:     graph,
		assembler: asm,
		observer:  obs,
		tasks:     newObserverTaskSet(2),
		log:       slog.New(discardHandler{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleTurn implements §4.5: retrieve context (blocking), then return a
// channel that streams the assistant's response. The goroutine feeding
// that channel spawns the Observer for this turn after the stream ends
// without error and before it closes the channel — so a caller that drains
// the channel before the next call to HandleTurn has spawned this turn's
// observer first — but the task itself completes asynchronously with no
// ordering guarantee relative to other turns' observer tasks (§5).
func (e *Engine) HandleTurn(ctx context.Context, conversationID string, turnIndex int, userText string, history []recall.ChatMessage) (<-chan string, error) {
	contextBlock, err := e.assembler.Retrieve(ctx, userText, history)
	if err != nil {
		e.log.Warn("context retrieval failed, continuing without it", "error", err)
		contextBlock = ""
	}

	messages := make([]recall.ChatMessage, 0, len(history)+3)
	if contextBlock != "" {
		messages = append(messages, recall.SystemMessage(contextBlock))
	}
	messages = append(messages, history...)
	messages = append(messages, recall.UserMessage(userText))

	upstream := make(chan recall.StreamEvent)
	out := make(chan string)

	go func() {
		defer close(out)
		var assistantText strings.Builder

		done := make(chan recall.ChatResponse, 1)
		errCh := make(chan error, 1)
		go func() {
			resp, err := e.generator.Stream(ctx, recall.ChatRequest{Messages: messages}, upstream)
			errCh <- err
			done <- resp
		}()

		for ev := range upstream {
			if ev.Type != recall.EventTextDelta {
				continue
			}
			assistantText.WriteString(ev.Content)
			out <- ev.Content
		}

		if err := <-errCh; err != nil {
			e.log.Error("generator stream failed", "error", err)
			return
		}
		<-done

		e.spawnObserver(ctx, conversationID, turnIndex, userText, assistantText.String())
	}()

	return out, nil
}

// spawnObserver runs the distillation pipeline for one completed turn on
// the engine's bounded task pool.
func (e *Engine) spawnObserver(ctx context.Context, conversationID string, turnIndex int, userText, assistantText string) {
	e.tasks.Spawn(ctx, func(taskCtx context.Context) {
		e.observer.ProcessTurn(taskCtx, observer.Turn{
			UserText:       userText,
			AssistantText:  assistantText,
			ConversationID: conversationID,
			TurnIndex:      turnIndex,
		})
	})
}

// Shutdown waits for every spawned observer task to finish, bounded by ctx.
// It does not cancel in-flight tasks.
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.tasks.WaitAll(ctx)
}

// discardHandler is a no-op slog.Handler used as the zero-value logger.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
