// Package pool manages storage pools and the replicas carved from them.
//
// A pool wraps one disk device. Replicas are contiguous regions of that disk
// placed first-fit; each replica is registered as a block device under its
// UUID so local nexus children can open it, and can be shared over nvmf as
// namespace 1 of the subsystem <host-nqn>:<uuid>.
//
// The Manager is safe for concurrent use. Its calls block on device I/O, so
// reactor tasks drive them through reactor.Async.
package pool

import (
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/nexusd/internal/logger"
	"github.com/marmos91/nexusd/pkg/bdev"
	nerrors "github.com/marmos91/nexusd/pkg/errors"
	"github.com/marmos91/nexusd/pkg/nvmf"
)

// Pool is a disk replicas are allocated from.
type Pool struct {
	name     string
	disks    []string
	disk     bdev.Device
	replicas map[string]*Replica
}

// Info is a snapshot of a pool.
type Info struct {
	Name     string   `json:"name"`
	Disks    []string `json:"disks"`
	Capacity uint64   `json:"capacity"`
	Used     uint64   `json:"used"`
	Replicas int      `json:"replicas"`
}

func (p *Pool) used() uint64 {
	var n uint64
	for _, r := range p.replicas {
		n += r.size
	}
	return n
}

func (p *Pool) info() Info {
	return Info{
		Name:     p.name,
		Disks:    slices.Clone(p.disks),
		Capacity: p.disk.Size(),
		Used:     p.used(),
		Replicas: len(p.replicas),
	}
}

// allocate finds the lowest offset where size bytes fit between existing
// replicas.
func (p *Pool) allocate(size uint64) (uint64, bool) {
	extents := make([]*Replica, 0, len(p.replicas))
	for _, r := range p.replicas {
		extents = append(extents, r)
	}
	sort.Slice(extents, func(i, j int) bool { return extents[i].offset < extents[j].offset })

	var off uint64
	for _, r := range extents {
		if r.offset-off >= size {
			return off, true
		}
		off = r.offset + r.size
	}
	if p.disk.Size()-off >= size {
		return off, true
	}
	return 0, false
}

// fits reports whether [off, off+size) lies on the disk and overlaps no
// replica.
func (p *Pool) fits(off, size uint64) bool {
	if off > p.disk.Size() || p.disk.Size()-off < size {
		return false
	}
	for _, r := range p.replicas {
		if off < r.offset+r.size && r.offset < off+size {
			return false
		}
	}
	return true
}

// Manager owns the pools and replicas of a node.
type Manager struct {
	devices *bdev.Registry
	target  *nvmf.Target
	hostNQN string

	mu       sync.Mutex
	pools    map[string]*Pool
	replicas map[string]*Replica
}

// NewManager creates a manager that registers devices in devices and shares
// replicas on target under hostNQN.
func NewManager(devices *bdev.Registry, target *nvmf.Target, hostNQN string) *Manager {
	if hostNQN == "" {
		hostNQN = nvmf.DefaultHostNQN
	}
	return &Manager{
		devices:  devices,
		target:   target,
		hostNQN:  hostNQN,
		pools:    make(map[string]*Pool),
		replicas: make(map[string]*Replica),
	}
}

// CreatePool creates a pool on a single disk URI. Creating a pool that
// already exists with the same disks returns it unchanged.
func (m *Manager) CreatePool(name string, disks []string) (Info, error) {
	if name == "" {
		return Info{}, nerrors.NewInvalidArgument("pool", "pool name is required")
	}
	if len(disks) != 1 {
		return Info{}, nerrors.NewInvalidArgument(name, "a pool needs exactly one disk")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.pools[name]; ok {
		if !slices.Equal(p.disks, disks) {
			return Info{}, nerrors.NewAlreadyExists("pool", name)
		}
		return p.info(), nil
	}

	spec, err := bdev.ParseDiskURI(disks[0])
	if err != nil {
		return Info{}, err
	}
	disk, err := bdev.Open(spec)
	if err != nil {
		return Info{}, err
	}
	if err := m.devices.Add(disk); err != nil {
		_ = disk.Close()
		return Info{}, err
	}

	p := &Pool{
		name:     name,
		disks:    slices.Clone(disks),
		disk:     disk,
		replicas: make(map[string]*Replica),
	}
	m.pools[name] = p

	logger.Info("Pool created", logger.KeyPool, name, logger.KeyURI, disks[0], logger.Size(disk.Size()))
	return p.info(), nil
}

// DestroyPool destroys every replica on the pool and closes its disk.
func (m *Manager) DestroyPool(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[name]
	if !ok {
		return nerrors.NewNotFound("pool", name)
	}
	for id := range p.replicas {
		if err := m.destroyReplicaLocked(id); err != nil {
			return err
		}
	}

	m.devices.Remove(p.disk.Name())
	delete(m.pools, name)
	if err := p.disk.Close(); err != nil {
		logger.Warn("Pool disk close error", logger.KeyPool, name, logger.Err(err))
	}

	logger.Info("Pool destroyed", logger.KeyPool, name)
	return nil
}

// GetPool returns a snapshot of the named pool.
func (m *Manager) GetPool(name string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[name]
	if !ok {
		return Info{}, nerrors.NewNotFound("pool", name)
	}
	return p.info(), nil
}

// ListPools returns every pool, sorted by name.
func (m *Manager) ListPools() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Info, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, p.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ReplicaSpec describes a replica to create.
type ReplicaSpec struct {
	UUID  string
	Pool  string
	Size  uint64
	Thin  bool
	Share ShareProtocol
	// At places the replica at a fixed disk offset, as recorded when it was
	// first created. Nil allocates first-fit.
	At *uint64
}

// CreateReplica carves a replica out of a pool and shares it as requested.
// Sizes are rounded up to the pool's block size. Re-creating an existing
// replica with the same pool and size only applies the share protocol.
func (m *Manager) CreateReplica(spec ReplicaSpec) (ReplicaInfo, error) {
	if _, err := uuid.Parse(spec.UUID); err != nil {
		return ReplicaInfo{}, nerrors.NewInvalidArgument(spec.UUID, "replica uuid is not a valid uuid")
	}
	if spec.Size == 0 {
		return ReplicaInfo{}, nerrors.NewInvalidArgument(spec.UUID, "replica size must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[spec.Pool]
	if !ok {
		return ReplicaInfo{}, nerrors.NewNotFound("pool", spec.Pool)
	}

	bs := uint64(p.disk.BlockSize())
	size := (spec.Size + bs - 1) / bs * bs

	if r, ok := m.replicas[spec.UUID]; ok {
		if r.pool != spec.Pool || r.size != size {
			return ReplicaInfo{}, nerrors.NewAlreadyExists("replica", spec.UUID)
		}
		if err := m.shareLocked(r, spec.Share); err != nil {
			return ReplicaInfo{}, err
		}
		return r.info(), nil
	}

	var off uint64
	if spec.At != nil {
		off, ok = *spec.At, p.fits(*spec.At, size)
	} else {
		off, ok = p.allocate(size)
	}
	if !ok {
		return ReplicaInfo{}, nerrors.Newf(nerrors.ErrResourceExhausted,
			"pool %s has no room for %d bytes", spec.Pool, size)
	}

	r := &Replica{
		uuid:   spec.UUID,
		pool:   spec.Pool,
		base:   p.disk,
		offset: off,
		size:   size,
		thin:   spec.Thin,
		uri:    LocalURI(spec.UUID),
	}
	if err := m.devices.Add(r); err != nil {
		return ReplicaInfo{}, err
	}
	p.replicas[r.uuid] = r
	m.replicas[r.uuid] = r

	if err := m.shareLocked(r, spec.Share); err != nil {
		_ = m.destroyReplicaLocked(r.uuid)
		return ReplicaInfo{}, err
	}

	logger.Info("Replica created", logger.KeyReplica, r.uuid, logger.KeyPool, r.pool,
		logger.Size(size), logger.KeyOffset, off, "thin", r.thin, "share", r.share.String())
	return r.info(), nil
}

// ShareReplica changes how a replica is exported and returns its URI.
// Sharing with the current protocol is a no-op.
func (m *Manager) ShareReplica(id string, proto ShareProtocol) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.replicas[id]
	if !ok {
		return "", nerrors.NewNotFound("replica", id)
	}
	if err := m.shareLocked(r, proto); err != nil {
		return "", err
	}
	return r.uri, nil
}

func (m *Manager) shareLocked(r *Replica, proto ShareProtocol) error {
	if r.share == proto {
		return nil
	}

	nqn := nvmf.ReplicaNQN(m.hostNQN, r.uuid)
	switch proto {
	case ShareNone:
		if err := m.target.RemoveSubsystem(nqn); err != nil && !nerrors.IsNotFound(err) {
			return err
		}
		r.uri = LocalURI(r.uuid)
	case ShareNvmf:
		_, err := m.target.AddSubsystem(nqn, r, nvmf.SubsystemOptions{
			UUID:               r.uuid,
			ReservationCapable: true,
		})
		if err != nil {
			return err
		}
		r.uri = nvmf.URI(m.target.Address(), nqn)
	default:
		return nerrors.NewInvalidArgument(r.uuid, "unsupported share protocol")
	}

	r.share = proto
	logger.Info("Replica share changed", logger.KeyReplica, r.uuid, "share", proto.String(), logger.KeyShareURI, r.uri)
	return nil
}

// DestroyReplica unshares a replica and frees its space.
func (m *Manager) DestroyReplica(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyReplicaLocked(id)
}

func (m *Manager) destroyReplicaLocked(id string) error {
	r, ok := m.replicas[id]
	if !ok {
		return nerrors.NewNotFound("replica", id)
	}
	if err := m.shareLocked(r, ShareNone); err != nil {
		return err
	}

	m.devices.Remove(r.uuid)
	_ = r.Close()
	delete(m.replicas, id)
	if p, ok := m.pools[r.pool]; ok {
		delete(p.replicas, id)
	}

	logger.Info("Replica destroyed", logger.KeyReplica, id, logger.KeyPool, r.pool)
	return nil
}

// GetReplica returns a snapshot of a replica.
func (m *Manager) GetReplica(id string) (ReplicaInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.replicas[id]
	if !ok {
		return ReplicaInfo{}, nerrors.NewNotFound("replica", id)
	}
	return r.info(), nil
}

// ListReplicas returns every replica, sorted by UUID.
func (m *Manager) ListReplicas() []ReplicaInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ReplicaInfo, 0, len(m.replicas))
	for _, r := range m.replicas {
		out = append(out, r.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out
}

// Close destroys every pool. Used on shutdown.
func (m *Manager) Close() {
	for _, p := range m.ListPools() {
		if err := m.DestroyPool(p.Name); err != nil {
			logger.Warn("Pool close error", logger.KeyPool, p.Name, logger.Err(err))
		}
	}
}
