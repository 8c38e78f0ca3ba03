package httpllm

import "github.com/nevindra/recall"

// buildChatBody translates a recall.ChatRequest into the OpenAI-compatible
// wire format, including the JSON-schema-constrained response_format used by
// the Observer's grading/extraction/contradiction calls (§4.3).
func buildChatBody(model string, req recall.ChatRequest, stream bool) chatRequest {
	messages := make([]message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, message{Role: m.Role, Content: m.Content})
	}

	body := chatRequest{
		Model:       model,
		Messages:    messages,
		Stream:      stream,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if stream {
		body.StreamOptions = &streamOptions{IncludeUsage: true}
	}
	if req.ResponseSchema != nil {
		body.ResponseFormat = &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   req.ResponseSchema.Name,
				Schema: req.ResponseSchema.Schema,
				Strict: true,
			},
		}
	}
	return body
}
