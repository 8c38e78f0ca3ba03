package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nevindra/recall"
)

// graphStoreWrapper instruments every recall.GraphStore call.
type graphStoreWrapper struct {
	recall.GraphStore
	inst *Instruments
}

// WrapGraphStore returns a recall.GraphStore that instruments every call
// against inst. If s also implements the assembler package's HopTraversable
// capability (graph/falkor.Store does), the returned value does too, so
// wrapping never silently drops graph-aware retrieval.
func WrapGraphStore(s recall.GraphStore, inst *Instruments) recall.GraphStore {
	if traversable, ok := s.(hopTraversable); ok {
		return &traversableGraphStoreWrapper{
			graphStoreWrapper: graphStoreWrapper{GraphStore: s, inst: inst},
			traversable:       traversable,
		}
	}
	return &graphStoreWrapper{GraphStore: s, inst: inst}
}

// hopTraversable mirrors assembler.HopTraversable without importing the
// assembler package (which would create an import cycle with telemetry's
// call sites); Go structural typing lets graph/falkor.Store satisfy both.
type hopTraversable interface {
	Traverse(ctx context.Context, seeds []string, hops int, limit int) ([]recall.Relationship, error)
}

type traversableGraphStoreWrapper struct {
	graphStoreWrapper
	traversable hopTraversable
}

func (w *traversableGraphStoreWrapper) Traverse(ctx context.Context, seeds []string, hops int, limit int) ([]recall.Relationship, error) {
	ctx, span := w.inst.Tracer.Start(ctx, "graphstore.traverse", trace.WithAttributes(
		AttrGraphStoreOp.String("traverse"),
	))
	defer span.End()

	attrs := []attribute.KeyValue{AttrGraphStoreOp.String("traverse")}

	start := time.Now()
	rels, err := w.traversable.Traverse(ctx, seeds, hops, limit)
	elapsed := time.Since(start)

	w.inst.GraphStoreDuration.Record(ctx, float64(elapsed.Milliseconds()), metricOpt(attrs))
	w.inst.GraphStoreOps.Add(ctx, 1, counterOpt(attrs))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return rels, nil
}

func (w *graphStoreWrapper) instrument(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := w.inst.Tracer.Start(ctx, "graphstore."+op, trace.WithAttributes(
		AttrGraphStoreOp.String(op),
	))
	defer span.End()

	attrs := []attribute.KeyValue{AttrGraphStoreOp.String(op)}

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	w.inst.GraphStoreDuration.Record(ctx, float64(elapsed.Milliseconds()), metricOpt(attrs))
	w.inst.GraphStoreOps.Add(ctx, 1, counterOpt(attrs))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (w *graphStoreWrapper) PersistEntities(ctx context.Context, entities []recall.Entity) error {
	return w.instrument(ctx, "persist_entities", func(ctx context.Context) error {
		return w.GraphStore.PersistEntities(ctx, entities)
	})
}

func (w *graphStoreWrapper) PersistRelationships(ctx context.Context, relationships []recall.Relationship) error {
	return w.instrument(ctx, "persist_relationships", func(ctx context.Context) error {
		return w.GraphStore.PersistRelationships(ctx, relationships)
	})
}

func (w *graphStoreWrapper) MarkContradiction(ctx context.Context, existingID, supersedingStatement string) error {
	return w.instrument(ctx, "mark_contradiction", func(ctx context.Context) error {
		return w.GraphStore.MarkContradiction(ctx, existingID, supersedingStatement)
	})
}

func (w *graphStoreWrapper) Query(ctx context.Context, subject string, predicate *recall.Predicate) ([]recall.Relationship, error) {
	ctx, span := w.inst.Tracer.Start(ctx, "graphstore.query", trace.WithAttributes(
		AttrGraphStoreOp.String("query"),
	))
	defer span.End()
	attrs := []attribute.KeyValue{AttrGraphStoreOp.String("query")}

	start := time.Now()
	rels, err := w.GraphStore.Query(ctx, subject, predicate)
	elapsed := time.Since(start)

	w.inst.GraphStoreDuration.Record(ctx, float64(elapsed.Milliseconds()), metricOpt(attrs))
	w.inst.GraphStoreOps.Add(ctx, 1, counterOpt(attrs))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return rels, nil
}

func (w *graphStoreWrapper) QueryByObject(ctx context.Context, object string, predicate *recall.Predicate) ([]recall.Relationship, error) {
	ctx, span := w.inst.Tracer.Start(ctx, "graphstore.query_by_object", trace.WithAttributes(
		AttrGraphStoreOp.String("query_by_object"),
	))
	defer span.End()
	attrs := []attribute.KeyValue{AttrGraphStoreOp.String("query_by_object")}

	start := time.Now()
	rels, err := w.GraphStore.QueryByObject(ctx, object, predicate)
	elapsed := time.Since(start)

	w.inst.GraphStoreDuration.Record(ctx, float64(elapsed.Milliseconds()), metricOpt(attrs))
	w.inst.GraphStoreOps.Add(ctx, 1, counterOpt(attrs))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return rels, nil
}

func (w *graphStoreWrapper) SearchRelationships(ctx context.Context, names []string, limit int) ([]recall.Relationship, error) {
	ctx, span := w.inst.Tracer.Start(ctx, "graphstore.search_relationships", trace.WithAttributes(
		AttrGraphStoreOp.String("search_relationships"),
	))
	defer span.End()
	attrs := []attribute.KeyValue{AttrGraphStoreOp.String("search_relationships")}

	start := time.Now()
	rels, err := w.GraphStore.SearchRelationships(ctx, names, limit)
	elapsed := time.Since(start)

	w.inst.GraphStoreDuration.Record(ctx, float64(elapsed.Milliseconds()), metricOpt(attrs))
	w.inst.GraphStoreOps.Add(ctx, 1, counterOpt(attrs))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return rels, nil
}
