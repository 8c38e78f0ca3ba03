package recall

import (
	"fmt"
	"strconv"
	"time"
)

// ErrLLM wraps a failure from a Generator or Embedder backend.
type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP is returned by HTTP-based capability adapters on a non-2xx response.
// RetryAfter is populated from the Retry-After header when present, so retry
// middleware can honor server-requested backoff.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ParseRetryAfter parses an HTTP Retry-After header value, which is either
// a number of seconds or an HTTP-date. Returns 0 if the header is absent or
// unparsable.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// ErrSchemaMismatch is returned by a VectorStore when the embedding
// dimension presented at insert time does not match the dimension the
// store was initialized with.
type ErrSchemaMismatch struct {
	Expected int
	Got      int
}

func (e *ErrSchemaMismatch) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: store expects %d, got %d", e.Expected, e.Got)
}

// ErrNotFound indicates a lookup by id found nothing.
type ErrNotFound struct {
	Kind string
	ID   string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}
