package telemetry

import (
	"context"
	"time"

	recalllog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nevindra/recall"
)

// generatorWrapper instruments a recall.Generator with traces, token/cost
// metrics, and logs. Adapted from the teacher's provider wrapper; trimmed of
// tool-calling instrumentation since recall.Generator has no ChatWithTools
// method. model is the model name billed against inst.Cost, since
// recall.ChatRequest carries no model field (a Generator is bound to one
// model at construction, per the httpllm.Provider pattern).
type generatorWrapper struct {
	recall.Generator
	inst  *Instruments
	model string
}

// WrapGenerator returns a recall.Generator that instruments every Chat and
// Stream call against inst. model names the backing model for cost lookups.
func WrapGenerator(g recall.Generator, model string, inst *Instruments) recall.Generator {
	return &generatorWrapper{Generator: g, inst: inst, model: model}
}

func (w *generatorWrapper) Chat(ctx context.Context, req recall.ChatRequest) (recall.ChatResponse, error) {
	ctx, span := w.inst.Tracer.Start(ctx, "llm.chat", trace.WithAttributes(
		AttrLLMProvider.String(w.Generator.Name()),
		AttrLLMModel.String(w.model),
		AttrLLMMethod.String("chat"),
	))
	defer span.End()

	attrs := []attribute.KeyValue{
		AttrLLMProvider.String(w.Generator.Name()),
		AttrLLMModel.String(w.model),
		AttrLLMMethod.String("chat"),
	}

	start := time.Now()
	resp, err := w.Generator.Chat(ctx, req)
	elapsed := time.Since(start)

	w.inst.LLMDuration.Record(ctx, float64(elapsed.Milliseconds()), metricOpt(attrs))
	w.inst.LLMRequests.Add(ctx, 1, counterOpt(attrs))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}

	cost := w.inst.Cost.Calculate(w.model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	span.SetAttributes(
		AttrTokensInput.Int(resp.Usage.InputTokens),
		AttrTokensOutput.Int(resp.Usage.OutputTokens),
		AttrCostUSD.Float64(cost),
	)
	w.inst.TokenUsage.Add(ctx, int64(resp.Usage.InputTokens+resp.Usage.OutputTokens), counterOpt(attrs))
	w.inst.CostTotal.Add(ctx, cost, float64CounterOpt(attrs))

	var rec recalllog.Record
	rec.SetBody(recalllog.StringValue("llm chat completed"))
	rec.AddAttributes(
		recalllog.KeyValue{Key: "llm.model", Value: recalllog.StringValue(w.model)},
		recalllog.KeyValue{Key: "llm.cost_usd", Value: recalllog.Float64Value(cost)},
	)
	w.inst.Logger.Emit(ctx, rec)

	return resp, nil
}

func (w *generatorWrapper) Stream(ctx context.Context, req recall.ChatRequest, ch chan<- recall.StreamEvent) (recall.ChatResponse, error) {
	ctx, span := w.inst.Tracer.Start(ctx, "llm.stream", trace.WithAttributes(
		AttrLLMProvider.String(w.Generator.Name()),
		AttrLLMModel.String(w.model),
		AttrLLMMethod.String("stream"),
	))
	defer span.End()

	attrs := []attribute.KeyValue{
		AttrLLMProvider.String(w.Generator.Name()),
		AttrLLMModel.String(w.model),
		AttrLLMMethod.String("stream"),
	}

	// Tee the caller's channel so we can count chunks without altering
	// delivery order or timing.
	tee := make(chan recall.StreamEvent)
	chunks := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(ch)
		for ev := range tee {
			chunks++
			ch <- ev
		}
	}()

	start := time.Now()
	resp, err := w.Generator.Stream(ctx, req, tee)
	// Stream is responsible for closing tee itself (per the recall.Generator
	// contract); wait for the forwarding goroutine to drain and close ch.
	<-done
	elapsed := time.Since(start)

	w.inst.LLMDuration.Record(ctx, float64(elapsed.Milliseconds()), metricOpt(attrs))
	w.inst.LLMRequests.Add(ctx, 1, counterOpt(attrs))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}

	cost := w.inst.Cost.Calculate(w.model, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	w.inst.TokenUsage.Add(ctx, int64(resp.Usage.InputTokens+resp.Usage.OutputTokens), counterOpt(attrs))
	w.inst.CostTotal.Add(ctx, cost, float64CounterOpt(attrs))
	span.SetAttributes(
		AttrStreamChunks.Int(chunks),
		AttrTokensInput.Int(resp.Usage.InputTokens),
		AttrTokensOutput.Int(resp.Usage.OutputTokens),
		AttrCostUSD.Float64(cost),
	)

	return resp, nil
}
