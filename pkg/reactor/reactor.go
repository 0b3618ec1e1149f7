// Package reactor implements the cooperative, poll-driven execution core of
// the node. One Reactor exists per logical core. A reactor owns every device
// object created on it: tasks run one at a time, never preempted, and only
// give up the reactor while awaiting a Future. Device state is therefore
// mutated without locks, and the only way to reach it is through the
// *Context a reactor hands to the task it is running.
//
// Work enters a reactor in two ways: Spawn (non-blocking, bounded queue,
// returns a Future) and BlockOn (the caller waits, driving the poll loop
// itself when no other goroutine is).
package reactor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/nexusd/internal/logger"
)

var (
	// ErrQueueFull is returned by Spawn when the submission queue is at
	// capacity. Nothing is enqueued.
	ErrQueueFull = errors.New("reactor submission queue full")

	// ErrShutdown is returned when work is submitted to, or awaited on, a
	// reactor that has stopped. For BlockOn this is a fatal scheduling error:
	// the future can never make progress.
	ErrShutdown = errors.New("reactor is shut down")

	// ErrAlreadyRunning is returned by Run when the reactor is already driven
	// by a Run loop.
	ErrAlreadyRunning = errors.New("reactor is already running")
)

// DefaultQueueDepth bounds the submission queue when no depth is configured.
const DefaultQueueDepth = 1024

// blockOnRetry is how often a BlockOn caller re-checks whether it can take
// over driving the reactor while another goroutine holds it.
const blockOnRetry = time.Millisecond

// State is the lifecycle state of a reactor.
type State int32

const (
	StateInit State = iota
	StateRunning
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Metrics receives reactor observations. A nil Metrics disables collection.
type Metrics interface {
	ObservePoll(core int, tasks int)
	SetQueueDepth(core int, depth int)
	IncRejected(core int)
}

// Reactor is a single-threaded cooperative scheduler bound to one core.
type Reactor struct {
	core       int
	name       string
	queueDepth int
	metrics    Metrics

	mu       sync.Mutex
	incoming []*task            // bounded by queueDepth
	ready    []*task            // resumptions and reactor-local spawns
	live     map[*task]struct{} // started and not finished

	drive   sync.Mutex // held by whichever goroutine is polling
	running atomic.Bool
	state   atomic.Int32
	wake    chan struct{}
	stop    chan struct{}
	stopped sync.Once

	// Owned by the driver; touched only while drive is held.
	pollers []*Poller
	locals  map[any]any
}

// New creates a reactor for the given core. Core 0 is the init reactor.
func New(core, queueDepth int, m Metrics) *Reactor {
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	name := fmt.Sprintf("core-%d", core)
	if core == 0 {
		name = "init"
	}
	return &Reactor{
		core:       core,
		name:       name,
		queueDepth: queueDepth,
		metrics:    m,
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		live:       make(map[*task]struct{}),
		locals:     make(map[any]any),
	}
}

// Core returns the logical core this reactor is bound to.
func (r *Reactor) Core() int { return r.core }

// Name returns the reactor's thread name ("init" for core 0).
func (r *Reactor) Name() string { return r.name }

// State returns the current lifecycle state.
func (r *Reactor) State() State { return State(r.state.Load()) }

// IsShutdown reports whether the reactor has stopped accepting work.
func (r *Reactor) IsShutdown() bool { return r.State() == StateShutdown }

// Queued returns the number of submitted tasks not yet picked up.
func (r *Reactor) Queued() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.incoming)
}

func (r *Reactor) notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// submit is the single entry point for foreign work. Bounded submissions
// are rejected with ErrQueueFull when the queue is at capacity.
func (r *Reactor) submit(t *task, bounded bool) error {
	r.mu.Lock()
	if r.IsShutdown() {
		r.mu.Unlock()
		return ErrShutdown
	}
	if bounded {
		if len(r.incoming) >= r.queueDepth {
			r.mu.Unlock()
			if r.metrics != nil {
				r.metrics.IncRejected(r.core)
			}
			return ErrQueueFull
		}
		r.incoming = append(r.incoming, t)
	} else {
		r.ready = append(r.ready, t)
	}
	depth := len(r.incoming)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SetQueueDepth(r.core, depth)
	}
	r.notify()
	return nil
}

func (r *Reactor) notifyIfPending() {
	r.mu.Lock()
	pending := len(r.ready) + len(r.incoming)
	r.mu.Unlock()
	if pending > 0 {
		r.notify()
	}
}

// schedule makes a suspended task runnable again. On a stopped reactor the
// task is cancelled with ErrShutdown instead.
func (r *Reactor) schedule(t *task) {
	r.mu.Lock()
	if r.IsShutdown() {
		r.mu.Unlock()
		t.cancel(ErrShutdown)
		return
	}
	r.ready = append(r.ready, t)
	r.mu.Unlock()
	r.notify()
}

// track records t as started. It reports false once the reactor has stopped.
func (r *Reactor) track(t *task) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.IsShutdown() {
		return false
	}
	r.live[t] = struct{}{}
	return true
}

func (r *Reactor) untrack(t *task) {
	r.mu.Lock()
	delete(r.live, t)
	r.mu.Unlock()
}

// poll runs one iteration: every runnable task is stepped once, then due
// pollers run. Must be called with drive held. Returns the amount of work
// done.
func (r *Reactor) poll() int {
	r.mu.Lock()
	batch := append(r.ready, r.incoming...)
	r.ready = nil
	r.incoming = nil
	r.mu.Unlock()

	for _, t := range batch {
		t.step(r)
	}

	n := len(batch) + r.runPollers(time.Now())
	if r.metrics != nil {
		r.metrics.ObservePoll(r.core, n)
		if len(batch) > 0 {
			r.metrics.SetQueueDepth(r.core, r.Queued())
		}
	}
	return n
}

// Poll runs a single iteration if no other goroutine is driving the reactor.
// It reports whether it polled.
func (r *Reactor) Poll() bool {
	if !r.drive.TryLock() {
		return false
	}
	defer r.drive.Unlock()
	r.poll()
	return true
}

// idleWait returns how long the driver may sleep before a poller is due.
// Must be called with drive held.
func (r *Reactor) idleWait(now time.Time) time.Duration {
	wait := time.Second
	for _, p := range r.pollers {
		if d := p.next.Sub(now); d < wait {
			wait = d
		}
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

// Run drives the reactor on the calling goroutine, locked to its OS thread,
// until Shutdown is called or ctx is cancelled.
func (r *Reactor) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer r.running.Store(false)

	if !r.state.CompareAndSwap(int32(StateInit), int32(StateRunning)) && r.IsShutdown() {
		return ErrShutdown
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	logger.Debug("Reactor started", logger.KeyCore, r.core, logger.KeyThread, r.name)
	defer logger.Debug("Reactor stopped", logger.KeyCore, r.core)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		if r.IsShutdown() {
			return nil
		}

		r.drive.Lock()
		n := r.poll()
		wait := r.idleWait(time.Now())
		r.drive.Unlock()

		if n > 0 {
			continue
		}

		timer.Reset(wait)
		select {
		case <-ctx.Done():
			r.Shutdown()
			return ctx.Err()
		case <-r.stop:
			return nil
		case <-r.wake:
		case <-timer.C:
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

// Shutdown stops the reactor. Every outstanding task, queued or suspended in
// Await, is failed with ErrShutdown, and BlockOn callers return ErrShutdown.
// A task that is running at that moment finishes its current step, but its
// result is already ErrShutdown.
func (r *Reactor) Shutdown() {
	r.stopped.Do(func() {
		r.mu.Lock()
		r.state.Store(int32(StateShutdown))
		pending := make([]*task, 0, len(r.ready)+len(r.incoming)+len(r.live))
		pending = append(pending, r.ready...)
		pending = append(pending, r.incoming...)
		for t := range r.live {
			pending = append(pending, t)
		}
		r.ready = nil
		r.incoming = nil
		clear(r.live)
		r.mu.Unlock()

		close(r.stop)

		for _, t := range pending {
			t.cancel(ErrShutdown)
		}
		logger.Debug("Reactor shut down", logger.KeyCore, r.core, logger.KeyCount, len(pending))
	})
}

// Spawn submits fn to the reactor's bounded queue without waiting and returns
// a future for its result. Submissions to one reactor start in FIFO order.
// If the queue is full, nothing is enqueued and ErrQueueFull is returned.
func Spawn[T any](r *Reactor, fn func(rc *Context) (T, error)) (*Future[T], error) {
	fut := NewFuture[T]()
	if err := r.submit(futureTask(fut, fn), true); err != nil {
		return nil, err
	}
	return fut, nil
}

// BlockOn runs fn on the reactor and blocks the calling goroutine until it
// completes. If no other goroutine is driving the reactor, the caller drives
// the poll loop itself. BlockOn must not be called from a reactor task.
func BlockOn[T any](r *Reactor, fn func(rc *Context) (T, error)) (T, error) {
	var zero T

	fut := NewFuture[T]()
	if err := r.submit(futureTask(fut, fn), false); err != nil {
		return zero, err
	}

	// A wake-up consumed here may have been meant for a Run loop.
	defer r.notifyIfPending()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		if fut.Done() {
			return fut.Result()
		}
		if r.IsShutdown() {
			return zero, ErrShutdown
		}

		wait := blockOnRetry
		if r.drive.TryLock() {
			n := r.poll()
			idle := r.idleWait(time.Now())
			r.drive.Unlock()
			if n > 0 {
				continue
			}
			wait = idle
		}

		timer.Reset(wait)
		select {
		case <-fut.Wait():
		case <-r.stop:
		case <-r.wake:
		case <-timer.C:
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

func futureTask[T any](fut *Future[T], fn func(rc *Context) (T, error)) *task {
	var zero T
	t := newTask(func(rc *Context) {
		v, err := fn(rc)
		fut.Complete(v, err)
	})
	t.abort = func(err error) { fut.Complete(zero, err) }
	t.onPanic = func(p any) { fut.Complete(zero, fmt.Errorf("reactor task panicked: %v", p)) }
	return t
}
