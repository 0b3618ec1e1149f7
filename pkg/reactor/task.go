package reactor

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/marmos91/nexusd/internal/logger"
)

// task is a unit of cooperative work. It runs on its own goroutine but only
// while holding the reactor baton: the driver hands the baton over through
// resume and waits on yield until the task suspends or finishes.
type task struct {
	fn      func(rc *Context)
	abort   func(err error) // resolves the task's result when it is cancelled
	onPanic func(p any)

	resume  chan struct{}
	yield   chan struct{}
	started bool
	done    bool

	// kill is closed when the reactor stops. A parked task then exits
	// instead of waiting for a resume that will never come.
	kill     chan struct{}
	killOnce sync.Once
	exiting  bool // set on the task goroutine only
}

func newTask(fn func(rc *Context)) *task {
	return &task{
		fn:     fn,
		resume: make(chan struct{}),
		yield:  make(chan struct{}),
		kill:   make(chan struct{}),
	}
}

// cancel resolves the task's result with err and releases its goroutine if
// it is parked. Safe to call more than once and from any goroutine.
func (t *task) cancel(err error) {
	t.killOnce.Do(func() {
		if t.abort != nil {
			t.abort(err)
		}
		close(t.kill)
	})
}

func (t *task) killed() bool {
	select {
	case <-t.kill:
		return true
	default:
		return false
	}
}

// step runs t until it suspends or finishes. Called only by the driver.
func (t *task) step(r *Reactor) {
	if t.done || t.killed() {
		return
	}
	if !t.started {
		if !r.track(t) {
			t.cancel(ErrShutdown)
			return
		}
		t.started = true
		go t.run(r)
	} else {
		select {
		case t.resume <- struct{}{}:
		case <-t.kill:
			return
		}
	}
	<-t.yield
}

func (t *task) run(r *Reactor) {
	rc := &Context{r: r, t: t}
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Reactor task panicked",
				logger.KeyCore, r.core,
				logger.KeyError, fmt.Sprint(p),
				"stack", string(debug.Stack()))
			if t.onPanic != nil {
				t.onPanic(p)
			}
		}
		r.untrack(t)
		if t.exiting {
			return
		}
		t.done = true
		t.yield <- struct{}{}
	}()
	t.fn(rc)
}

// park hands the baton back to the driver and blocks until rescheduled. A
// task cancelled while parked never returns from park.
func (t *task) park() {
	t.yield <- struct{}{}
	select {
	case <-t.resume:
	case <-t.kill:
		t.exiting = true
		runtime.Goexit()
	}
}
