package reactor

import (
	"time"

	"github.com/marmos91/nexusd/internal/logger"
)

// Context is the token a reactor passes to the task it is running. Holding a
// *Context means the caller is executing on that reactor; objects owned by a
// reactor take one on every mutating call. A Context must not be retained or
// handed to another goroutine.
type Context struct {
	r *Reactor
	t *task
}

// Reactor returns the reactor running the task.
func (rc *Context) Reactor() *Reactor { return rc.r }

// Core returns the core the task runs on.
func (rc *Context) Core() int { return rc.r.core }

// Thread returns the name of the execution context ("init" on core 0).
func (rc *Context) Thread() string { return rc.r.name }

// Spawn starts fn as a new task on the same reactor. Local spawns bypass the
// submission queue and are never rejected.
func (rc *Context) Spawn(fn func(rc *Context)) {
	rc.r.schedule(newTask(fn))
}

// Yield lets every other runnable task on the reactor run before resuming.
func (rc *Context) Yield() {
	rc.r.schedule(rc.t)
	rc.t.park()
}

// Local returns the reactor-local value stored under key, creating it with
// init on first use. Reactor-local values are reachable only from tasks on
// that reactor.
func (rc *Context) Local(key any, init func() any) any {
	v, ok := rc.r.locals[key]
	if !ok {
		v = init()
		rc.r.locals[key] = v
	}
	return v
}

// SpawnFuture starts fn as a local task and returns a future for its result.
// It is how a task fans work out and later awaits each branch.
func SpawnFuture[T any](rc *Context, fn func(rc *Context) (T, error)) *Future[T] {
	fut := NewFuture[T]()
	rc.r.schedule(futureTask(fut, fn))
	return fut
}

// Poller is a recurring function run by the reactor between task batches.
type Poller struct {
	name     string
	interval time.Duration
	next     time.Time
	fn       func(rc *Context)
	running  bool
	removed  bool
}

// Name returns the poller's name.
func (p *Poller) Name() string { return p.name }

// RegisterPoller schedules fn to run every interval on the reactor. The
// function runs as a task and may await; a poller never overlaps itself.
func (rc *Context) RegisterPoller(name string, interval time.Duration, fn func(rc *Context)) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	p := &Poller{
		name:     name,
		interval: interval,
		next:     time.Now().Add(interval),
		fn:       fn,
	}
	rc.r.pollers = append(rc.r.pollers, p)
	logger.Debug("Poller registered", logger.KeyCore, rc.r.core, logger.KeyPoller, name)
	return p
}

// UnregisterPoller removes p from the reactor. A run in progress completes.
func (rc *Context) UnregisterPoller(p *Poller) {
	if p == nil || p.removed {
		return
	}
	p.removed = true
	pollers := rc.r.pollers[:0]
	for _, q := range rc.r.pollers {
		if q != p {
			pollers = append(pollers, q)
		}
	}
	rc.r.pollers = pollers
}

// runPollers steps every due poller. Must be called with drive held.
func (r *Reactor) runPollers(now time.Time) int {
	if len(r.pollers) == 0 {
		return 0
	}

	due := make([]*Poller, 0, len(r.pollers))
	for _, p := range r.pollers {
		if !p.running && !p.removed && !now.Before(p.next) {
			due = append(due, p)
		}
	}

	for _, p := range due {
		p.running = true
		p.next = now.Add(p.interval)
		t := newTask(func(rc *Context) {
			defer func() { p.running = false }()
			p.fn(rc)
		})
		t.step(r)
	}
	return len(due)
}
