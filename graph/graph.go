// Package graph wires a recall.GraphStore from configuration, falling back
// to an in-process store when the configured backend is unreachable.
package graph

import (
	"context"
	"log/slog"

	"github.com/nevindra/recall"
	"github.com/nevindra/recall/graph/falkor"
	"github.com/nevindra/recall/graph/memory"
)

// Config selects and configures a GraphStore backend.
type Config struct {
	Backend string // "memory" | "falkor"
	Host    string
	Port    int
	GraphID string
}

// New builds the configured backend. On "falkor", a connection failure logs
// a warning and falls back to an in-memory store (§6.4) rather than failing
// startup — memory is always available as a last resort.
func New(ctx context.Context, cfg Config, log *slog.Logger) recall.GraphStore {
	if log == nil {
		log = slog.New(discardHandler{})
	}
	if cfg.Backend != "falkor" {
		return memory.New()
	}

	store, err := falkor.New(ctx, cfg.Host, cfg.Port, cfg.GraphID)
	if err != nil {
		log.Warn("falkordb unavailable; falling back to in-memory graph store", "error", err)
		return memory.New()
	}
	return store
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
