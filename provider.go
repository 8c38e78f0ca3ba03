package recall

import "context"

// Generator abstracts the chat-style LLM backend consumed by the Observer
// pipeline and the main response loop (§6.1). Implementations MAY fall back
// across model names.
type Generator interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// Stream streams text-delta events into ch, then returns the final
	// accumulated response. ch is closed when streaming completes or on
	// error.
	Stream(ctx context.Context, req ChatRequest, ch chan<- StreamEvent) (ChatResponse, error)
	// Name returns the provider name (e.g. "gemini", "ollama").
	Name() string
}

// Embedder abstracts text embedding (§6.1). Every call in the system must
// agree on Dimensions(); the vector store enforces this at insert time.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}

// Reranker scores (query, passage) pairs by semantic relevance (§6.1).
// Higher is more relevant; an empty input MUST return an empty output with
// no error (§8 B2).
type Reranker interface {
	Predict(ctx context.Context, query string, passages []string) ([]float64, error)
}
