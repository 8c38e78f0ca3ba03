package telemetry

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for the capability spans and metrics this package emits.
var (
	AttrLLMModel    = attribute.Key("llm.model")
	AttrLLMProvider = attribute.Key("llm.provider")
	AttrLLMMethod   = attribute.Key("llm.method")

	AttrTokensInput  = attribute.Key("llm.tokens.input")
	AttrTokensOutput = attribute.Key("llm.tokens.output")
	AttrCostUSD      = attribute.Key("llm.cost_usd")
	AttrStreamChunks = attribute.Key("llm.stream_chunks")

	AttrEmbedTextCount  = attribute.Key("embed.text_count")
	AttrEmbedDimensions = attribute.Key("embed.dimensions")

	AttrRerankPassageCount = attribute.Key("rerank.passage_count")

	AttrVectorStoreOp = attribute.Key("vectorstore.op")
	AttrVectorStoreK  = attribute.Key("vectorstore.k")

	AttrGraphStoreOp = attribute.Key("graphstore.op")
)
