package telemetry

import (
	"testing"

	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	lognoop "go.opentelemetry.io/otel/log/noop"
)

// testInstruments builds an Instruments backed entirely by OTEL no-op
// providers, so wrapper tests exercise the decorator logic (span/metric
// call sequencing, error propagation) without needing a live collector.
func testInstruments(t *testing.T) *Instruments {
	t.Helper()

	tracer := tracenoop.NewTracerProvider().Tracer(scopeName)
	meter := metricnoop.NewMeterProvider().Meter(scopeName)
	logger := lognoop.NewLoggerProvider().Logger(scopeName)

	tokenUsage, _ := meter.Int64Counter("llm.token.usage")
	costTotal, _ := meter.Float64Counter("llm.cost.total")
	llmRequests, _ := meter.Int64Counter("llm.requests")
	llmDuration, _ := meter.Float64Histogram("llm.duration")
	embedRequests, _ := meter.Int64Counter("embedding.requests")
	embedDuration, _ := meter.Float64Histogram("embedding.duration")
	rerankRequests, _ := meter.Int64Counter("rerank.requests")
	rerankDuration, _ := meter.Float64Histogram("rerank.duration")
	vectorStoreOps, _ := meter.Int64Counter("vectorstore.ops")
	vectorStoreDuration, _ := meter.Float64Histogram("vectorstore.duration")
	graphStoreOps, _ := meter.Int64Counter("graphstore.ops")
	graphStoreDuration, _ := meter.Float64Histogram("graphstore.duration")

	return &Instruments{
		Tracer:              tracer,
		Meter:                meter,
		Logger:               logger,
		TokenUsage:           tokenUsage,
		CostTotal:            costTotal,
		LLMRequests:          llmRequests,
		LLMDuration:          llmDuration,
		EmbedRequests:        embedRequests,
		EmbedDuration:        embedDuration,
		RerankRequests:       rerankRequests,
		RerankDuration:       rerankDuration,
		VectorStoreOps:       vectorStoreOps,
		VectorStoreDuration:  vectorStoreDuration,
		GraphStoreOps:        graphStoreOps,
		GraphStoreDuration:   graphStoreDuration,
		Cost:                 NewCostCalculator(nil),
	}
}
