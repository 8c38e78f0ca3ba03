package observer

import (
	"context"
	"sync"

	"github.com/nevindra/recall"
	"github.com/nevindra/recall/telemetry"
)

// usageAccumulator sums token usage across every generator call one
// ProcessTurn invocation makes (grading, the 4-way extraction fan-out, and
// any contradiction checks). The fan-out stage calls add concurrently, so
// access is mutex-guarded.
type usageAccumulator struct {
	mu           sync.Mutex
	input        int
	output       int
}

func (u *usageAccumulator) add(usage recall.Usage) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.input += usage.InputTokens
	u.output += usage.OutputTokens
}

func (u *usageAccumulator) totals() (input, output int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.input, u.output
}

// CostTracker prices a turn's total generator usage with
// telemetry.CostCalculator and records it against an OTEL counter, making a
// turn's LLM cost visible even though it now fans out to several calls
// instead of the teacher's single agent-loop call.
type CostTracker struct {
	model  string
	calc   *telemetry.CostCalculator
	record func(ctx context.Context, usd float64, inputTokens, outputTokens int)
}

// NewCostTracker builds a CostTracker that prices calls against model and
// reports them through record. record is typically a closure over an
// *telemetry.Instruments counter (CostTotal/TokenUsage); it may be nil, in
// which case Report only computes the cost without emitting it anywhere
// (useful for tests).
func NewCostTracker(model string, calc *telemetry.CostCalculator, record func(ctx context.Context, usd float64, inputTokens, outputTokens int)) *CostTracker {
	return &CostTracker{model: model, calc: calc, record: record}
}

// Report prices inputTokens/outputTokens and forwards the result to the
// configured recorder.
func (t *CostTracker) Report(ctx context.Context, inputTokens, outputTokens int) float64 {
	usd := t.calc.Calculate(t.model, inputTokens, outputTokens)
	if t.record != nil {
		t.record(ctx, usd, inputTokens, outputTokens)
	}
	return usd
}
