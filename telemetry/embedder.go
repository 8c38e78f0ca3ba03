package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nevindra/recall"
)

// embedderWrapper instruments a recall.Embedder's Embed calls.
type embedderWrapper struct {
	recall.Embedder
	inst *Instruments
}

// WrapEmbedder returns a recall.Embedder that instruments every Embed call
// against inst.
func WrapEmbedder(e recall.Embedder, inst *Instruments) recall.Embedder {
	return &embedderWrapper{Embedder: e, inst: inst}
}

func (w *embedderWrapper) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := w.inst.Tracer.Start(ctx, "embedding.embed", trace.WithAttributes(
		AttrLLMProvider.String(w.Embedder.Name()),
		AttrEmbedTextCount.Int(len(texts)),
		AttrEmbedDimensions.Int(w.Embedder.Dimensions()),
	))
	defer span.End()

	attrs := []attribute.KeyValue{AttrLLMProvider.String(w.Embedder.Name())}

	start := time.Now()
	vectors, err := w.Embedder.Embed(ctx, texts)
	elapsed := time.Since(start)

	w.inst.EmbedDuration.Record(ctx, float64(elapsed.Milliseconds()), metricOpt(attrs))
	w.inst.EmbedRequests.Add(ctx, 1, counterOpt(attrs))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return vectors, nil
}
