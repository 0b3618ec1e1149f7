package runtime

import (
	"context"
	"fmt"

	"github.com/marmos91/nexusd/internal/logger"
	"github.com/marmos91/nexusd/internal/telemetry"
	"github.com/marmos91/nexusd/pkg/ana"
	"github.com/marmos91/nexusd/pkg/bridge"
	"github.com/marmos91/nexusd/pkg/controlplane/models"
	"github.com/marmos91/nexusd/pkg/nexus"
	"github.com/marmos91/nexusd/pkg/pool"
	"github.com/marmos91/nexusd/pkg/reactor"
)

// Snapshot captures the node's current configuration.
func (r *Runtime) Snapshot() (*models.Snapshot, error) {
	nexuses, err := query(r, listNexuses, bridge.Identity[[]nexus.Info])
	if err != nil {
		return nil, err
	}

	snap := &models.Snapshot{}
	for _, p := range r.pools.ListPools() {
		mp := &models.Pool{Name: p.Name}
		if err := mp.SetDisks(p.Disks); err != nil {
			return nil, err
		}
		snap.Pools = append(snap.Pools, mp)
	}
	for _, rep := range r.pools.ListReplicas() {
		snap.Replicas = append(snap.Replicas, &models.Replica{
			UUID:   rep.UUID,
			Pool:   rep.Pool,
			Size:   rep.Size,
			Offset: rep.Offset,
			Thin:   rep.Thin,
			Share:  shareName(rep.Share),
		})
	}
	for i, info := range nexuses {
		mn := &models.Nexus{
			UUID:     info.UUID,
			Name:     info.Name,
			Size:     info.Size,
			Position: i,
		}
		children := make([]string, 0, len(info.Children))
		for _, c := range info.Children {
			children = append(children, c.URI)
		}
		if err := mn.SetChildren(children); err != nil {
			return nil, err
		}
		if info.ShareURI != "" {
			mn.Share = pool.ShareNvmf.String()
			mn.ANAState = info.ANAState
		}
		snap.Nexuses = append(snap.Nexuses, mn)
	}
	return snap, nil
}

func shareName(p pool.ShareProtocol) string {
	if p == pool.ShareNone {
		return ""
	}
	return p.String()
}

// exportConfig writes the current configuration to the store.
func (r *Runtime) exportConfig(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	ctx, span := telemetry.StartAdminSpan(ctx, telemetry.SpanConfigExport)
	defer span.End()

	snap, err := r.Snapshot()
	if err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("failed to capture config: %w", err)
	}
	if err := r.store.SaveSnapshot(ctx, snap); err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("failed to save config: %w", err)
	}

	logger.DebugCtx(ctx, "Config exported", "pools", len(snap.Pools), "replicas", len(snap.Replicas),
		"nexuses", len(snap.Nexuses))
	return nil
}

// LoadFromStore recreates the stored pools, replicas and nexuses, in that
// order. Objects that fail to come back are logged and skipped so one bad
// entry does not keep the node down. Nothing is exported while loading.
func (r *Runtime) LoadFromStore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	ctx, span := telemetry.StartAdminSpan(ctx, telemetry.SpanConfigImport)
	defer span.End()

	snap, err := r.store.LoadSnapshot(ctx)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("failed to load config: %w", err)
	}
	if snap.Empty() {
		logger.InfoCtx(ctx, "No stored configuration")
		return nil
	}

	var failed int
	for _, p := range snap.Pools {
		if err := r.importPool(p); err != nil {
			failed++
			logger.WarnCtx(ctx, "Failed to restore pool", logger.KeyPool, p.Name, logger.Err(err))
		}
	}
	for _, rep := range snap.Replicas {
		if err := r.importReplica(rep); err != nil {
			failed++
			logger.WarnCtx(ctx, "Failed to restore replica", logger.KeyReplica, rep.UUID, logger.Err(err))
		}
	}
	for _, n := range snap.Nexuses {
		if err := r.importNexus(n); err != nil {
			failed++
			logger.WarnCtx(ctx, "Failed to restore nexus", logger.KeyNexus, n.Name, logger.Err(err))
		}
	}

	logger.InfoCtx(ctx, "Stored configuration loaded", "pools", len(snap.Pools), "replicas", len(snap.Replicas),
		"nexuses", len(snap.Nexuses), "failed", failed)
	return nil
}

func (r *Runtime) importPool(p *models.Pool) error {
	disks, err := p.GetDisks()
	if err != nil {
		return err
	}
	_, err = query(r, func(rc *reactor.Context) (pool.Info, error) {
		return offload(rc, func() (pool.Info, error) { return r.pools.CreatePool(p.Name, disks) })
	}, bridge.Identity[pool.Info])
	return err
}

func (r *Runtime) importReplica(rep *models.Replica) error {
	share, err := pool.ParseShareProtocol(rep.Share)
	if err != nil {
		return err
	}
	offset := rep.Offset
	spec := pool.ReplicaSpec{
		UUID:  rep.UUID,
		Pool:  rep.Pool,
		Size:  rep.Size,
		Thin:  rep.Thin,
		Share: share,
		At:    &offset,
	}
	_, err = query(r, func(rc *reactor.Context) (pool.ReplicaInfo, error) {
		return offload(rc, func() (pool.ReplicaInfo, error) { return r.pools.CreateReplica(spec) })
	}, bridge.Identity[pool.ReplicaInfo])
	return err
}

func (r *Runtime) importNexus(m *models.Nexus) error {
	children, err := m.GetChildren()
	if err != nil {
		return err
	}
	share, err := pool.ParseShareProtocol(m.Share)
	if err != nil {
		return err
	}
	var state ana.State
	restoreANA := false
	if share != pool.ShareNone && m.ANAState != "" {
		if state, err = ana.ParseState(m.ANAState); err != nil {
			return err
		}
		restoreANA = state != ana.Optimized
	}

	_, err = query(r, func(rc *reactor.Context) (struct{}, error) {
		n, err := nexus.Create(rc, nexus.Spec{UUID: m.UUID, Name: m.Name, Size: m.Size, Children: children})
		if err != nil {
			return struct{}{}, err
		}
		if share == pool.ShareNone {
			return struct{}{}, nil
		}
		if _, err := n.Share(rc, share); err != nil {
			return struct{}{}, err
		}
		if restoreANA {
			return struct{}{}, n.SetANAState(rc, state)
		}
		return struct{}{}, nil
	}, bridge.Identity[struct{}])
	return err
}
