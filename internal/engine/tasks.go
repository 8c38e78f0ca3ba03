package engine

import (
	"context"
	"sync"
)

// observerTaskSet bounds the number of concurrently running observer tasks
// with a semaphore permit pool, the same sem := make(chan struct{}, n)
// idiom the teacher's workflow_steps.go uses for executeForEach, widened
// from a single ForEach step's lifetime to the engine's entire lifetime.
type observerTaskSet struct {
	sem    chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	cancel []context.CancelFunc
}

// newObserverTaskSet creates a task set that runs at most concurrency
// observer tasks at once. concurrency <= 0 is treated as 1.
func newObserverTaskSet(concurrency int) *observerTaskSet {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &observerTaskSet{sem: make(chan struct{}, concurrency)}
}

// Spawn runs fn in a background goroutine once a permit is available,
// tracked by the task set's WaitGroup. fn receives a context derived from
// the engine's lifetime context, cancelable via CancelAll.
func (s *observerTaskSet) Spawn(ctx context.Context, fn func(context.Context)) {
	taskCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = append(s.cancel, cancel)
	s.mu.Unlock()

	s.wg.Add(1)
	s.sem <- struct{}{}
	go func() {
		defer s.wg.Done()
		defer func() { <-s.sem }()
		defer cancel()
		fn(taskCtx)
	}()
}

// WaitAll blocks until every spawned task has completed or ctx is
// canceled, whichever comes first.
func (s *observerTaskSet) WaitAll(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelAll cancels every task spawned so far, whether or not it has
// started running.
func (s *observerTaskSet) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.cancel {
		cancel()
	}
}
