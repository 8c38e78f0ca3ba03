package telemetry

import "testing"

func TestCostCalculator_KnownModel(t *testing.T) {
	c := NewCostCalculator(nil)
	got := c.Calculate("gpt-4o-mini", 1_000_000, 1_000_000)
	want := 0.15 + 0.60
	if got != want {
		t.Fatalf("Calculate() = %v, want %v", got, want)
	}
}

func TestCostCalculator_UnknownModel(t *testing.T) {
	c := NewCostCalculator(nil)
	if got := c.Calculate("nonexistent-model", 1000, 1000); got != 0.0 {
		t.Fatalf("Calculate() for unknown model = %v, want 0.0", got)
	}
}

func TestCostCalculator_Override(t *testing.T) {
	c := NewCostCalculator(map[string]ModelPricing{
		"gpt-4o-mini": {InputPerMillion: 1.0, OutputPerMillion: 2.0},
	})
	got := c.Calculate("gpt-4o-mini", 1_000_000, 1_000_000)
	if got != 3.0 {
		t.Fatalf("Calculate() with override = %v, want 3.0", got)
	}
}

func TestCostCalculator_ZeroCostLocalModel(t *testing.T) {
	c := NewCostCalculator(nil)
	if got := c.Calculate("ollama", 50_000, 50_000); got != 0.0 {
		t.Fatalf("Calculate() for ollama = %v, want 0.0", got)
	}
}
