package recall

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"
)

// retryGenerator wraps a Generator and automatically retries transient
// failures — HTTP 429/503 from the local provider adapter, or a transient
// timeout (§4.3.2: "every generator call is wrapped in retry-with-
// exponential-backoff on transient timeouts") — with exponential backoff.
type retryGenerator struct {
	inner       Generator
	maxAttempts int
	baseDelay   time.Duration
	timeout     time.Duration // overall timeout across all attempts; 0 = no limit
}

// RetryOption configures a retryGenerator.
type RetryOption func(*retryGenerator)

// RetryMaxAttempts sets the maximum number of attempts (default: 3, per
// §4.3.2/§5's "up to 3 attempts").
func RetryMaxAttempts(n int) RetryOption {
	return func(r *retryGenerator) { r.maxAttempts = n }
}

// RetryBaseDelay sets the initial backoff delay before the second attempt
// (default: 2s, per §5's "2s, 4s, 8s"). Each subsequent delay doubles.
func RetryBaseDelay(d time.Duration) RetryOption {
	return func(r *retryGenerator) { r.baseDelay = d }
}

// RetryTimeout bounds the entire retry sequence (default: 180s per-call
// timeout from §5). The zero value disables the timeout.
func RetryTimeout(d time.Duration) RetryOption {
	return func(r *retryGenerator) { r.timeout = d }
}

// WithRetry wraps g with automatic retry on transient errors. Retries use
// exponential backoff with jitter; an HTTP error's Retry-After header, if
// present, is honored as a floor on the delay.
func WithRetry(g Generator, opts ...RetryOption) Generator {
	r := &retryGenerator{
		inner:       g,
		maxAttempts: 3,
		baseDelay:   2 * time.Second,
		timeout:     180 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *retryGenerator) Name() string { return r.inner.Name() }

func (r *retryGenerator) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return retryCall(ctx, r.maxAttempts, r.baseDelay, r.inner.Name(), func() (ChatResponse, error) {
		return r.inner.Chat(ctx, req)
	})
}

// Stream implements Generator with retry. Retries are only performed if no
// tokens have been written to ch yet — once streaming has started, errors
// pass through immediately to avoid sending duplicate content. ch is always
// closed before returning.
func (r *retryGenerator) Stream(ctx context.Context, req ChatRequest, ch chan<- StreamEvent) (ChatResponse, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	var lastErr error
	for i := 0; i < r.maxAttempts; i++ {
		mid := make(chan StreamEvent, 64)
		var (
			resp      ChatResponse
			streamErr error
		)
		done := make(chan struct{})
		go func() {
			defer close(done)
			resp, streamErr = r.inner.Stream(ctx, req, mid)
		}()

		var tokensSent bool
		for ev := range mid {
			tokensSent = true
			ch <- ev
		}
		<-done

		if streamErr == nil || !isTransient(streamErr) || tokensSent {
			close(ch)
			return resp, streamErr
		}

		lastErr = streamErr
		log.Printf("[retry] %s: transient error (attempt %d/%d), retrying", r.inner.Name(), i+1, r.maxAttempts)
		if i < r.maxAttempts-1 {
			delay := retryDelay(r.baseDelay, i, streamErr)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				close(ch)
				return ChatResponse{}, ctx.Err()
			case <-timer.C:
			}
		}
	}
	close(ch)
	return ChatResponse{}, lastErr
}

// withTimeout returns a child context with a deadline if r.timeout is set.
func (r *retryGenerator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	deadline := time.Now().Add(r.timeout)
	if existing, ok := ctx.Deadline(); ok && existing.Before(deadline) {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, deadline)
}

// isTransient reports whether err is retryable: an HTTP 429/503, or a
// timeout (context deadline exceeded, or the net package's generic timeout
// interface).
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var herr *ErrHTTP
	if errors.As(err, &herr) && (herr.Status == 429 || herr.Status == 503) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return true
	}
	return false
}

// retryAfterOf extracts the Retry-After duration from an ErrHTTP, or 0.
func retryAfterOf(err error) time.Duration {
	var e *ErrHTTP
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// retryDelay computes the delay before retry attempt i, using exponential
// backoff as a floor and the server's Retry-After value (if present) as a
// minimum. The effective delay is max(backoff, retryAfter).
func retryDelay(base time.Duration, i int, err error) time.Duration {
	backoff := retryBackoff(base, i)
	if ra := retryAfterOf(err); ra > backoff {
		return ra
	}
	return backoff
}

// retryCall calls fn up to maxAttempts times, sleeping between transient failures.
func retryCall[T any](ctx context.Context, maxAttempts int, base time.Duration, name string, fn func() (T, error)) (T, error) {
	var zero T
	var last error
	for i := 0; i < maxAttempts; i++ {
		result, err := fn()
		if err == nil || !isTransient(err) {
			return result, err
		}
		last = err
		log.Printf("[retry] %s: transient error (attempt %d/%d), retrying", name, i+1, maxAttempts)
		if i < maxAttempts-1 {
			delay := retryDelay(base, i, err)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return zero, last
}

// retryBackoff returns the delay for retry i (0-indexed).
// Exponential: base * 2^i, plus up to 50% random jitter.
func retryBackoff(base time.Duration, i int) time.Duration {
	exp := base * (1 << i)
	jitter := time.Duration(rand.Int63n(int64(exp)/2 + 1))
	return exp + jitter
}

// compile-time check
var _ Generator = (*retryGenerator)(nil)
