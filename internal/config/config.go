// Package config loads recall's TOML configuration, the same
// defaults-then-file-then-env layering the teacher's config package uses,
// adapted to this project's sections: the LLM/embedding/reranker backends,
// the two storage backends, and the Context Assembler's tunables (§6.3).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration object. Every field has a usable
// default from Default(), so a missing TOML file or env var never
// prevents startup.
type Config struct {
	LLM         LLMConfig         `toml:"llm"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Reranker    RerankerConfig    `toml:"reranker"`
	Graph       GraphConfig       `toml:"graph"`
	VectorStore VectorStoreConfig `toml:"vectorstore"`
	Memory      MemoryConfig      `toml:"memory"`
}

// LLMConfig selects the chat-completion backend the Observer pipeline and
// the main response loop share.
type LLMConfig struct {
	Provider string `toml:"provider"` // "openai", "gemini", "ollama", ...
	Model    string `toml:"model"`
	BaseURL  string `toml:"base_url"`
	APIKey   string `toml:"api_key"`
}

// EmbeddingConfig selects the embedding backend. Dimensions must agree
// with VectorStoreConfig.EmbeddingDimension; the vector store enforces
// this at insert time with *recall.ErrSchemaMismatch.
type EmbeddingConfig struct {
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	Dimensions int    `toml:"dimensions"`
}

// RerankerConfig holds the [reranker] table. cmd/recall does not act on it:
// every Provider value, "none" included, gets providers/local's
// lexical-overlap Reranker, and the assembler always calls Predict.
type RerankerConfig struct {
	Provider string `toml:"provider"` // "local", "none"
	Model    string `toml:"model"`
}

// GraphConfig selects and configures the GraphStore backend (§4.1).
type GraphConfig struct {
	Backend string `toml:"backend"` // "memory", "falkor"
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GraphID string `toml:"graph_id"`
}

// VectorStoreConfig selects and configures the VectorStore backend (§4.2).
type VectorStoreConfig struct {
	Backend            string `toml:"backend"` // "sqlite", "postgres"
	DSN                string `toml:"dsn"`
	EmbeddingDimension int    `toml:"embedding_dimension"`
}

// MemoryConfig tunes the Context Assembler and the observer task pool
// (§4.4, §4.5). Defaults match the literal values used in §4.4/§8's
// worked examples so the shipped behavior matches the spec's examples
// exactly.
type MemoryConfig struct {
	MaxContextTokens    int `toml:"max_context_tokens"`
	SlidingWindowTokens int `toml:"sliding_window_tokens"`
	VectorSearchTopK    int `toml:"vector_search_top_k"`
	GraphSearchTopK     int `toml:"graph_search_top_k"`
	RerankTopK          int `toml:"rerank_top_k"`

	TemporalDecayCoreDays   int `toml:"temporal_decay_core"`
	TemporalDecayHighDays   int `toml:"temporal_decay_high"`
	TemporalDecayMediumDays int `toml:"temporal_decay_medium"`
	TemporalDecayLowDays    int `toml:"temporal_decay_low"`

	ObserverConcurrency int `toml:"observer_concurrency"`
}

// Default returns a Config with every default from §4.4/§8 applied.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4.1-mini",
			BaseURL:  "https://api.openai.com/v1",
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			BaseURL:    "https://api.openai.com/v1",
			Dimensions: 1536,
		},
		Reranker: RerankerConfig{
			Provider: "local",
			Model:    "cross-encoder/ms-marco-MiniLM-L-6-v2",
		},
		Graph: GraphConfig{
			Backend: "memory",
			Host:    "localhost",
			Port:    6379,
			GraphID: "recall",
		},
		VectorStore: VectorStoreConfig{
			Backend:            "sqlite",
			DSN:                "recall.db",
			EmbeddingDimension: 1536,
		},
		Memory: MemoryConfig{
			MaxContextTokens:    2000,
			SlidingWindowTokens: 800,
			VectorSearchTopK:    10,
			GraphSearchTopK:     10,
			RerankTopK:          8,

			TemporalDecayCoreDays:   0,
			TemporalDecayHighDays:   180,
			TemporalDecayMediumDays: 60,
			TemporalDecayLowDays:    14,

			ObserverConcurrency: 2,
		},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins). path
// defaults to "recall.toml" when empty; a missing or unparseable file is
// not an error — Load falls back to defaults and env overrides.
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "recall.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	if v := os.Getenv("RECALL_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("RECALL_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("RECALL_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("RECALL_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("RECALL_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("RECALL_GRAPH_BACKEND"); v != "" {
		cfg.Graph.Backend = v
	}
	if v := os.Getenv("RECALL_GRAPH_HOST"); v != "" {
		cfg.Graph.Host = v
	}
	if v := os.Getenv("RECALL_VECTORSTORE_BACKEND"); v != "" {
		cfg.VectorStore.Backend = v
	}
	if v := os.Getenv("RECALL_VECTORSTORE_DSN"); v != "" {
		cfg.VectorStore.DSN = v
	}

	// The embedding backend's API key defaults to the LLM backend's when
	// both ride the same provider account (the common case: one OpenAI
	// key for chat and embeddings).
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}

	return cfg
}
