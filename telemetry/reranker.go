package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nevindra/recall"
)

// rerankerWrapper instruments a recall.Reranker's Predict calls.
type rerankerWrapper struct {
	recall.Reranker
	inst *Instruments
}

// WrapReranker returns a recall.Reranker that instruments every Predict
// call against inst.
func WrapReranker(r recall.Reranker, inst *Instruments) recall.Reranker {
	return &rerankerWrapper{Reranker: r, inst: inst}
}

func (w *rerankerWrapper) Predict(ctx context.Context, query string, passages []string) ([]float64, error) {
	ctx, span := w.inst.Tracer.Start(ctx, "rerank.predict", trace.WithAttributes(
		AttrRerankPassageCount.Int(len(passages)),
	))
	defer span.End()

	attrs := []attribute.KeyValue{}

	start := time.Now()
	scores, err := w.Reranker.Predict(ctx, query, passages)
	elapsed := time.Since(start)

	w.inst.RerankDuration.Record(ctx, float64(elapsed.Milliseconds()), metricOpt(attrs))
	w.inst.RerankRequests.Add(ctx, 1, counterOpt(attrs))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return scores, nil
}
