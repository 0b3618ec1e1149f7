package runtime

import (
	"context"

	"github.com/marmos91/nexusd/internal/telemetry"
	"github.com/marmos91/nexusd/pkg/ana"
	"github.com/marmos91/nexusd/pkg/bridge"
	"github.com/marmos91/nexusd/pkg/nexus"
	"github.com/marmos91/nexusd/pkg/pool"
	"github.com/marmos91/nexusd/pkg/reactor"
)

// CreateNexus creates a nexus over the given children.
func (r *Runtime) CreateNexus(ctx context.Context, spec nexus.Spec) (nexus.Info, error) {
	return mutate(ctx, r, telemetry.SpanNexusCreate, func(rc *reactor.Context) (nexus.Info, error) {
		n, err := nexus.Create(rc, spec)
		if err != nil {
			return nexus.Info{}, err
		}
		return n.Info(), nil
	}, telemetry.NexusUUID(spec.UUID), telemetry.NexusName(spec.Name), telemetry.NexusSize(spec.Size))
}

// PublishNexus shares a nexus over proto and returns its URI.
func (r *Runtime) PublishNexus(ctx context.Context, id string, proto pool.ShareProtocol) (string, error) {
	return mutate(ctx, r, telemetry.SpanNexusPublish, func(rc *reactor.Context) (string, error) {
		n, err := nexus.Lookup(rc, id)
		if err != nil {
			return "", err
		}
		return n.Share(rc, proto)
	}, telemetry.NexusUUID(id), telemetry.Protocol(proto.String()))
}

// UnpublishNexus stops sharing a nexus.
func (r *Runtime) UnpublishNexus(ctx context.Context, id string) error {
	_, err := mutate(ctx, r, telemetry.SpanNexusUnpublish, func(rc *reactor.Context) (struct{}, error) {
		n, err := nexus.Lookup(rc, id)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, n.Unshare(rc)
	}, telemetry.NexusUUID(id))
	return err
}

// DestroyNexus destroys a nexus. A nexus that does not exist is not an
// error.
func (r *Runtime) DestroyNexus(ctx context.Context, id string) error {
	_, err := mutate(ctx, r, telemetry.SpanNexusDestroy, func(rc *reactor.Context) (struct{}, error) {
		return struct{}{}, nexus.Destroy(rc, id)
	}, telemetry.NexusUUID(id))
	return err
}

// RemoveChild removes a child from a nexus and releases its reservation.
func (r *Runtime) RemoveChild(ctx context.Context, id, uri string) (nexus.Info, error) {
	return mutate(ctx, r, telemetry.SpanNexusRemoveChild, func(rc *reactor.Context) (nexus.Info, error) {
		n, err := nexus.Lookup(rc, id)
		if err != nil {
			return nexus.Info{}, err
		}
		if err := n.RemoveChild(rc, uri); err != nil {
			return nexus.Info{}, err
		}
		return n.Info(), nil
	}, telemetry.NexusUUID(id), telemetry.ChildURI(uri))
}

// SetANAState changes the ANA state of a published nexus.
func (r *Runtime) SetANAState(ctx context.Context, id string, state ana.State) error {
	_, err := mutate(ctx, r, telemetry.SpanNexusSetANA, func(rc *reactor.Context) (struct{}, error) {
		n, err := nexus.Lookup(rc, id)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, n.SetANAState(rc, state)
	}, telemetry.NexusUUID(id), telemetry.ANAState(state.String()))
	return err
}

// GetANAState returns the ANA state of a published nexus.
func (r *Runtime) GetANAState(id string) (ana.State, error) {
	return query(r, func(rc *reactor.Context) (ana.State, error) {
		n, err := nexus.Lookup(rc, id)
		if err != nil {
			return 0, err
		}
		return n.ANAState(rc)
	}, bridge.Identity[ana.State])
}

// GetNexus returns a nexus by UUID or name. Info is taken on the reactor;
// the nexus itself never leaves it.
func (r *Runtime) GetNexus(id string) (nexus.Info, error) {
	return query(r, func(rc *reactor.Context) (nexus.Info, error) {
		n, err := nexus.Lookup(rc, id)
		if err != nil {
			return nexus.Info{}, err
		}
		return n.Info(), nil
	}, bridge.Identity[nexus.Info])
}

// ListNexuses returns every nexus in creation order.
func (r *Runtime) ListNexuses() ([]nexus.Info, error) {
	return query(r, listNexuses, bridge.Identity[[]nexus.Info])
}

func listNexuses(rc *reactor.Context) ([]nexus.Info, error) {
	ns := nexus.List(rc)
	out := make([]nexus.Info, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Info())
	}
	return out, nil
}
