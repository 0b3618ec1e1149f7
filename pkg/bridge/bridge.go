// Package bridge is the boundary between the multi-threaded request layer and
// the reactors. Request handlers never touch device objects directly: they
// hand a closure to the init reactor with Call (and wait) or Submit (and
// receive the result later), and get back values and status errors.
package bridge

import (
	"github.com/marmos91/nexusd/pkg/reactor"
)

// Result is the eventual outcome of a submitted operation. Err is the
// operation's own error, not yet mapped to a status.
type Result[R any] struct {
	Value R
	Err   error
}

// Call runs op on r, blocks until it completes and maps the success value
// with mapFn. Failures, including scheduling failures, come back as status
// errors (see ToStatus).
func Call[I, A any](r *reactor.Reactor, op func(rc *reactor.Context) (I, error), mapFn func(I) A) (A, error) {
	v, err := reactor.BlockOn(r, op)
	if err != nil {
		var zero A
		return zero, ToStatus(err)
	}
	return mapFn(v), nil
}

// Submit enqueues op on r without waiting. The returned channel yields exactly
// one Result and is then closed. If r cannot accept the operation, nothing is
// enqueued and a ResourceExhausted status error is returned. Dropping the
// channel does not cancel the operation.
func Submit[R any](r *reactor.Reactor, op func(rc *reactor.Context) (R, error)) (<-chan Result[R], error) {
	fut, err := reactor.Spawn(r, op)
	if err != nil {
		return nil, ToStatus(err)
	}

	ch := make(chan Result[R], 1)
	go func() {
		<-fut.Wait()
		v, err := fut.Result()
		ch <- Result[R]{Value: v, Err: err}
		close(ch)
	}()
	return ch, nil
}

// Identity is a mapFn for Call when the operation already returns the
// response type.
func Identity[T any](v T) T { return v }
