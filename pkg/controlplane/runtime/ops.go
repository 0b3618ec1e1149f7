package runtime

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/marmos91/nexusd/internal/telemetry"
	"github.com/marmos91/nexusd/pkg/bridge"
	"github.com/marmos91/nexusd/pkg/reactor"
)

// mutate runs a configuration-changing op on the init reactor and exports
// the configuration when it succeeds. Failures come back as status errors;
// a failed export comes back as DataLoss with the change still applied.
func mutate[T any](ctx context.Context, r *Runtime, span string, op func(rc *reactor.Context) (T, error), attrs ...attribute.KeyValue) (T, error) {
	ctx, s := telemetry.StartAdminSpan(ctx, span, attrs...)
	defer s.End()

	v, err := bridge.SyncConfig(ctx, r, func() (T, error) {
		return bridge.Call(r.init, op, bridge.Identity[T])
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
	}
	return v, err
}

// submit is mutate for operations that must not tie up the init reactor
// while they wait on a device: op is queued with bridge.Submit and the caller
// waits for its result or for ctx. An op abandoned on ctx still runs to
// completion. A full queue fails fast with ResourceExhausted.
func submit[T any](ctx context.Context, r *Runtime, span string, op func(rc *reactor.Context) (T, error), attrs ...attribute.KeyValue) (T, error) {
	ctx, s := telemetry.StartAdminSpan(ctx, span, attrs...)
	defer s.End()

	v, err := bridge.SyncConfig(ctx, r, func() (T, error) {
		return awaitSubmit(ctx, r.init, op)
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
	}
	return v, err
}

func awaitSubmit[T any](ctx context.Context, rr *reactor.Reactor, op func(rc *reactor.Context) (T, error)) (T, error) {
	var zero T

	ch, err := bridge.Submit(rr, op)
	if err != nil {
		return zero, err
	}
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, bridge.ToStatus(res.Err)
		}
		return res.Value, nil
	case <-ctx.Done():
		return zero, bridge.ToStatus(ctx.Err())
	}
}

// query runs a read-only op on the init reactor and maps its result.
func query[I, A any](r *Runtime, op func(rc *reactor.Context) (I, error), mapFn func(I) A) (A, error) {
	return bridge.Call(r.init, op, mapFn)
}

// offload runs a blocking call off the reactor and suspends the calling
// task until it finishes.
func offload[T any](rc *reactor.Context, fn func() (T, error)) (T, error) {
	return reactor.Await(rc, reactor.Async(fn))
}
