// Package limiter provides a fixed-size slot pool that bounds how many tasks
// run at once, independent of what the tasks do.
package limiter

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Limiter admits at most Size tasks at a time; excess callers queue until a slot frees.
type Limiter struct {
	sem       *semaphore.Weighted
	size      int
	onAcquire func()
	onRelease func()
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithHooks registers callbacks invoked when a slot is taken and given back.
func WithHooks(onAcquire, onRelease func()) Option {
	return func(l *Limiter) {
		l.onAcquire = onAcquire
		l.onRelease = onRelease
	}
}

// New creates a Limiter with size slots.
func New(size int, opts ...Option) (*Limiter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("limiter size must be > 0, got %d", size)
	}
	l := &Limiter{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Size returns the number of slots.
func (l *Limiter) Size() int {
	return l.size
}

// Do waits for a slot, runs fn, and frees the slot. It returns early only if ctx
// ends before a slot is available.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context)) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()
	fn(ctx)
	return nil
}

func (l *Limiter) acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire slot: %w", err)
	}
	if l.onAcquire != nil {
		l.onAcquire()
	}
	return nil
}

func (l *Limiter) release() {
	if l.onRelease != nil {
		l.onRelease()
	}
	l.sem.Release(1)
}

// Map calls fn for every item, each in its own goroutine, with at most
// l.Size() calls in flight. Results keep item order regardless of completion
// order. If ctx ends while items are still waiting for a slot, Map waits for
// the running calls and returns the context error.
func Map[T, R any](ctx context.Context, l *Limiter, items []T, fn func(context.Context, T) R) ([]R, error) {
	results := make([]R, len(items))
	var (
		wg  sync.WaitGroup
		err error
	)
	for i, item := range items {
		if err = l.acquire(ctx); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer l.release()
			results[i] = fn(ctx, item)
		}()
	}
	wg.Wait()
	if err != nil {
		return nil, err
	}
	return results, nil
}
