package httpllm

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/nevindra/recall"
)

// streamSSE reads an SSE stream from body, sends text-delta events to ch, and
// returns the fully accumulated response. The channel is closed when
// streaming completes.
//
// SSE format expected:
//
//	data: {"choices":[...]}\n
//	data: [DONE]\n
func streamSSE(ctx context.Context, body io.Reader, ch chan<- recall.StreamEvent) (recall.ChatResponse, error) {
	defer close(ch)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var fullContent strings.Builder
	var usage recall.Usage

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		if len(chunk.Choices) == 0 {
			if chunk.Usage != nil {
				usage.InputTokens = chunk.Usage.PromptTokens
				usage.OutputTokens = chunk.Usage.CompletionTokens
			}
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta != nil && delta.Content != "" {
			fullContent.WriteString(delta.Content)
			select {
			case ch <- recall.StreamEvent{Type: recall.EventTextDelta, Content: delta.Content}:
			case <-ctx.Done():
				return recall.ChatResponse{}, ctx.Err()
			}
		}

		if chunk.Usage != nil {
			usage.InputTokens = chunk.Usage.PromptTokens
			usage.OutputTokens = chunk.Usage.CompletionTokens
		}
	}

	if err := scanner.Err(); err != nil {
		return recall.ChatResponse{}, err
	}

	return recall.ChatResponse{
		Content: fullContent.String(),
		Usage:   usage,
	}, nil
}
