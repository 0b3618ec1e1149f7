package runtime

import (
	"context"

	"github.com/marmos91/nexusd/internal/telemetry"
	"github.com/marmos91/nexusd/pkg/bridge"
	"github.com/marmos91/nexusd/pkg/pool"
	"github.com/marmos91/nexusd/pkg/reactor"
)

// CreatePool creates a pool on a single disk URI.
func (r *Runtime) CreatePool(ctx context.Context, name string, disks []string) (pool.Info, error) {
	return submit(ctx, r, telemetry.SpanPoolCreate, func(rc *reactor.Context) (pool.Info, error) {
		return offload(rc, func() (pool.Info, error) { return r.pools.CreatePool(name, disks) })
	}, telemetry.Pool(name))
}

// DestroyPool destroys a pool and every replica on it.
func (r *Runtime) DestroyPool(ctx context.Context, name string) error {
	_, err := submit(ctx, r, telemetry.SpanPoolDestroy, func(rc *reactor.Context) (struct{}, error) {
		return offload(rc, func() (struct{}, error) { return struct{}{}, r.pools.DestroyPool(name) })
	}, telemetry.Pool(name))
	return err
}

// GetPool returns a pool by name.
func (r *Runtime) GetPool(name string) (pool.Info, error) {
	return query(r, func(rc *reactor.Context) (pool.Info, error) {
		return r.pools.GetPool(name)
	}, bridge.Identity[pool.Info])
}

// ListPools returns every pool, sorted by name.
func (r *Runtime) ListPools() ([]pool.Info, error) {
	return query(r, func(rc *reactor.Context) ([]pool.Info, error) {
		return r.pools.ListPools(), nil
	}, bridge.Identity[[]pool.Info])
}

// CreateReplica carves a replica out of a pool.
func (r *Runtime) CreateReplica(ctx context.Context, spec pool.ReplicaSpec) (pool.ReplicaInfo, error) {
	return submit(ctx, r, telemetry.SpanReplicaCreate, func(rc *reactor.Context) (pool.ReplicaInfo, error) {
		return offload(rc, func() (pool.ReplicaInfo, error) { return r.pools.CreateReplica(spec) })
	}, telemetry.ReplicaUUID(spec.UUID), telemetry.Pool(spec.Pool), telemetry.Protocol(spec.Share.String()))
}

// ShareReplica changes how a replica is exported and returns its URI.
func (r *Runtime) ShareReplica(ctx context.Context, id string, proto pool.ShareProtocol) (string, error) {
	return mutate(ctx, r, telemetry.SpanReplicaShare, func(rc *reactor.Context) (string, error) {
		return offload(rc, func() (string, error) { return r.pools.ShareReplica(id, proto) })
	}, telemetry.ReplicaUUID(id), telemetry.Protocol(proto.String()))
}

// DestroyReplica unshares a replica and frees its space.
func (r *Runtime) DestroyReplica(ctx context.Context, id string) error {
	_, err := submit(ctx, r, telemetry.SpanReplicaDestroy, func(rc *reactor.Context) (struct{}, error) {
		return offload(rc, func() (struct{}, error) { return struct{}{}, r.pools.DestroyReplica(id) })
	}, telemetry.ReplicaUUID(id))
	return err
}

// GetReplica returns a replica by UUID.
func (r *Runtime) GetReplica(id string) (pool.ReplicaInfo, error) {
	return query(r, func(rc *reactor.Context) (pool.ReplicaInfo, error) {
		return r.pools.GetReplica(id)
	}, bridge.Identity[pool.ReplicaInfo])
}

// ListReplicas returns every replica, sorted by UUID.
func (r *Runtime) ListReplicas() ([]pool.ReplicaInfo, error) {
	return query(r, func(rc *reactor.Context) ([]pool.ReplicaInfo, error) {
		return r.pools.ListReplicas(), nil
	}, bridge.Identity[[]pool.ReplicaInfo])
}
