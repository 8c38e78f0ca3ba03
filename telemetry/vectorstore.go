package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nevindra/recall"
)

// vectorStoreWrapper instruments a recall.VectorStore's Persist and Search
// calls.
type vectorStoreWrapper struct {
	recall.VectorStore
	inst *Instruments
}

// WrapVectorStore returns a recall.VectorStore that instruments every
// Persist and Search call against inst.
func WrapVectorStore(s recall.VectorStore, inst *Instruments) recall.VectorStore {
	return &vectorStoreWrapper{VectorStore: s, inst: inst}
}

func (w *vectorStoreWrapper) Persist(ctx context.Context, chunk recall.MemoryChunk) error {
	ctx, span := w.inst.Tracer.Start(ctx, "vectorstore.persist", trace.WithAttributes(
		AttrVectorStoreOp.String("persist"),
	))
	defer span.End()

	attrs := []attribute.KeyValue{AttrVectorStoreOp.String("persist")}

	start := time.Now()
	err := w.VectorStore.Persist(ctx, chunk)
	elapsed := time.Since(start)

	w.inst.VectorStoreDuration.Record(ctx, float64(elapsed.Milliseconds()), metricOpt(attrs))
	w.inst.VectorStoreOps.Add(ctx, 1, counterOpt(attrs))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (w *vectorStoreWrapper) Search(ctx context.Context, vector []float32, k int) ([]recall.ScoredChunk, error) {
	ctx, span := w.inst.Tracer.Start(ctx, "vectorstore.search", trace.WithAttributes(
		AttrVectorStoreOp.String("search"),
		AttrVectorStoreK.Int(k),
	))
	defer span.End()

	attrs := []attribute.KeyValue{AttrVectorStoreOp.String("search")}

	start := time.Now()
	hits, err := w.VectorStore.Search(ctx, vector, k)
	elapsed := time.Since(start)

	w.inst.VectorStoreDuration.Record(ctx, float64(elapsed.Milliseconds()), metricOpt(attrs))
	w.inst.VectorStoreOps.Add(ctx, 1, counterOpt(attrs))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return hits, nil
}
