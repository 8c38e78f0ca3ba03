package httpllm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/nevindra/recall"
)

// Provider implements recall.Generator and recall.Embedder for any
// OpenAI-compatible HTTP API: OpenAI, OpenRouter, Groq, Together, DeepSeek,
// Ollama, vLLM, LM Studio, or a local model server.
type Provider struct {
	apiKey     string
	model      string
	embedModel string
	dimensions int
	baseURL    string
	client     *http.Client
	name       string
	logger     *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithName overrides the provider name reported by Name() (default "openai").
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithHTTPClient overrides the *http.Client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithEmbeddingModel sets the model name sent to the embeddings endpoint
// (defaults to the chat model if unset, which is wrong for most providers —
// callers embedding text should always set this explicitly).
func WithEmbeddingModel(model string) Option {
	return func(p *Provider) { p.embedModel = model }
}

// WithDimensions declares the embedding vector length Dimensions() reports.
// The vector store uses this to reject schema-mismatched inserts (§6.1).
func WithDimensions(d int) Option {
	return func(p *Provider) { p.dimensions = d }
}

// WithLogger sets a structured logger for provider warnings.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// NewProvider creates an OpenAI-compatible Generator/Embedder.
//
// baseURL is the API base (e.g. "https://api.openai.com/v1",
// "http://localhost:11434/v1"). The /chat/completions and /embeddings paths
// are appended automatically.
func NewProvider(apiKey, model, baseURL string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:     apiKey,
		model:      model,
		embedModel: model,
		dimensions: 1536,
		baseURL:    baseURL,
		client:     &http.Client{},
		name:       "openai",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider name (default "openai", configurable via WithName).
func (p *Provider) Name() string { return p.name }

// Dimensions returns the declared embedding vector length.
func (p *Provider) Dimensions() int { return p.dimensions }

// Chat sends a non-streaming chat request and returns the complete response.
func (p *Provider) Chat(ctx context.Context, req recall.ChatRequest) (recall.ChatResponse, error) {
	body := buildChatBody(p.model, req, false)
	resp, err := p.sendHTTP(ctx, "/chat/completions", body)
	if err != nil {
		return recall.ChatResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return recall.ChatResponse{}, p.httpErr(resp)
	}

	var wire chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return recall.ChatResponse{}, &recall.ErrLLM{Provider: p.name, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return parseChatResponse(wire), nil
}

// Stream streams text-delta events into ch, then returns the final
// accumulated response. ch is closed when streaming completes or on error.
func (p *Provider) Stream(ctx context.Context, req recall.ChatRequest, ch chan<- recall.StreamEvent) (recall.ChatResponse, error) {
	body := buildChatBody(p.model, req, true)

	resp, err := p.sendHTTP(ctx, "/chat/completions", body)
	if err != nil {
		close(ch)
		return recall.ChatResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		close(ch)
		return recall.ChatResponse{}, p.httpErr(resp)
	}

	return streamSSE(ctx, resp.Body, ch)
}

// Embed embeds a batch of texts. The provider returns them in request order.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	body := embeddingRequest{Model: p.embedModel, Input: texts}
	resp, err := p.sendHTTP(ctx, "/embeddings", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.httpErr(resp)
	}

	var wire embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, &recall.ErrLLM{Provider: p.name, Message: fmt.Sprintf("decode response: %v", err)}
	}

	out := make([][]float32, len(wire.Data))
	for _, d := range wire.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func parseChatResponse(wire chatResponse) recall.ChatResponse {
	var content string
	if len(wire.Choices) > 0 && wire.Choices[0].Message != nil {
		content = wire.Choices[0].Message.Content
	}
	resp := recall.ChatResponse{Content: content}
	if wire.Usage != nil {
		resp.Usage = recall.Usage{
			InputTokens:  wire.Usage.PromptTokens,
			OutputTokens: wire.Usage.CompletionTokens,
		}
	}
	return resp
}

// sendHTTP marshals body and POSTs it to baseURL+path.
func (p *Provider) sendHTTP(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &recall.ErrLLM{Provider: p.name, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, &recall.ErrLLM{Provider: p.name, Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	return p.client.Do(httpReq)
}

// httpErr reads the response body and returns an ErrHTTP for retry
// middleware, honoring the Retry-After header when present.
func (p *Provider) httpErr(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return &recall.ErrHTTP{
		Status:     resp.StatusCode,
		Body:       string(body),
		RetryAfter: recall.ParseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

var (
	_ recall.Generator = (*Provider)(nil)
	_ recall.Embedder  = (*Provider)(nil)
)
