package reactor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marmos91/nexusd/internal/logger"
)

// Group is the set of reactors of a node, one per core. Core 0 is the init
// reactor: the only one the request bridge submits to.
type Group struct {
	reactors []*Reactor
}

// NewGroup creates cores reactors, each with the given queue depth.
func NewGroup(cores, queueDepth int, m Metrics) *Group {
	if cores <= 0 {
		cores = 1
	}
	g := &Group{reactors: make([]*Reactor, cores)}
	for i := range g.reactors {
		g.reactors[i] = New(i, queueDepth, m)
	}
	return g
}

// Init returns the init reactor.
func (g *Group) Init() *Reactor {
	return g.reactors[0]
}

// Get returns the reactor bound to core, or nil.
func (g *Group) Get(core int) *Reactor {
	if core < 0 || core >= len(g.reactors) {
		return nil
	}
	return g.reactors[core]
}

// All returns every reactor in core order.
func (g *Group) All() []*Reactor {
	return append([]*Reactor(nil), g.reactors...)
}

// Len returns the number of reactors.
func (g *Group) Len() int {
	return len(g.reactors)
}

// Run drives every reactor on its own goroutine until ctx is cancelled or
// Shutdown is called, then waits for all of them to stop.
func (g *Group) Run(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	logger.Info("Starting reactors", logger.KeyCount, len(g.reactors))

	for _, r := range g.reactors {
		wg.Add(1)
		go func(r *Reactor) {
			defer wg.Done()
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				mu.Lock()
				errs = append(errs, fmt.Errorf("reactor %d: %w", r.core, err))
				mu.Unlock()
			}
		}(r)
	}

	wg.Wait()
	return errors.Join(errs...)
}

// Shutdown stops every reactor.
func (g *Group) Shutdown() {
	for _, r := range g.reactors {
		r.Shutdown()
	}
}
