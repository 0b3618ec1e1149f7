package reactor

import (
	"context"
	"errors"
	"sync"
)

// ErrPending is returned by Future.Result when the future has not resolved.
var ErrPending = errors.New("future has not resolved")

type waiter struct {
	r *Reactor
	t *task
}

// Future is a value that resolves exactly once. It may be completed from any
// goroutine; reactor tasks waiting on it through Await are rescheduled on
// their own reactor when it resolves.
type Future[T any] struct {
	mu      sync.Mutex
	done    bool
	val     T
	err     error
	ch      chan struct{}
	waiters []waiter
}

// NewFuture returns an unresolved future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{ch: make(chan struct{})}
}

// Resolved returns a future that is already complete.
func Resolved[T any](v T, err error) *Future[T] {
	f := NewFuture[T]()
	f.Complete(v, err)
	return f
}

// Async runs fn on its own goroutine and returns a future for its result.
// This is how blocking device and fabric operations are turned into
// completions a reactor task can await.
func Async[T any](fn func() (T, error)) *Future[T] {
	f := NewFuture[T]()
	go func() {
		v, err := fn()
		f.Complete(v, err)
	}()
	return f
}

// Complete resolves the future. Only the first call has any effect; it
// reports whether this call resolved the future.
func (f *Future[T]) Complete(v T, err error) bool {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return false
	}
	f.done = true
	f.val = v
	f.err = err
	waiters := f.waiters
	f.waiters = nil
	close(f.ch)
	f.mu.Unlock()

	for _, w := range waiters {
		w.r.schedule(w.t)
	}
	return true
}

// Done reports whether the future has resolved.
func (f *Future[T]) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Result returns the resolved value, or ErrPending.
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.done {
		var zero T
		return zero, ErrPending
	}
	return f.val, f.err
}

// Wait returns a channel closed when the future resolves.
func (f *Future[T]) Wait() <-chan struct{} {
	return f.ch
}

// Get blocks the calling goroutine until the future resolves or ctx is done.
// It must not be used from a reactor task; use Await there.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.ch:
		return f.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// subscribe registers t to be rescheduled on r at resolution. It returns
// false when the future is already resolved.
func (f *Future[T]) subscribe(r *Reactor, t *task) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return false
	}
	f.waiters = append(f.waiters, waiter{r: r, t: t})
	return true
}

// Await suspends the calling task until f resolves and returns its result.
// Other tasks on the same reactor run while this one is suspended.
func Await[T any](rc *Context, f *Future[T]) (T, error) {
	if f.subscribe(rc.r, rc.t) {
		rc.t.park()
	}
	return f.Result()
}
