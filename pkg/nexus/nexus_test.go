package nexus

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nexusd/pkg/ana"
	"github.com/marmos91/nexusd/pkg/bdev"
	nerrors "github.com/marmos91/nexusd/pkg/errors"
	"github.com/marmos91/nexusd/pkg/nvmf"
	"github.com/marmos91/nexusd/pkg/pool"
	"github.com/marmos91/nexusd/pkg/reactor"
	"github.com/marmos91/nexusd/pkg/reservation"
)

const (
	nexusUUID   = "2a3c7f41-85d1-4a8b-9a1e-3f6b2c4d5e60"
	nexus2UUID  = "7e8f9a0b-1c2d-4e3f-8a5b-6c7d8e9f0a1b"
	replicaUUID = "cdc2a7db-3ac3-403a-af80-7fadc1581c47"
)

// flakyDevice is a malloc device whose reads or writes can be made to fail.
type flakyDevice struct {
	*bdev.Malloc
	failReads  atomic.Bool
	failWrites atomic.Bool
}

func newFlaky(name string, size uint64) *flakyDevice {
	return &flakyDevice{Malloc: bdev.NewMalloc(name, size, 512)}
}

func (d *flakyDevice) ReadAt(p []byte, off uint64) error {
	if d.failReads.Load() {
		return errors.New("injected read error")
	}
	return d.Malloc.ReadAt(p, off)
}

func (d *flakyDevice) WriteAt(p []byte, off uint64) error {
	if d.failWrites.Load() {
		return errors.New("injected write error")
	}
	return d.Malloc.WriteAt(p, off)
}

type node struct {
	r       *reactor.Reactor
	devices *bdev.Registry
	target  *nvmf.Target
	pools   *pool.Manager
}

func newNode(t *testing.T, fabric *nvmf.Fabric, address string, mutate func(o *Options)) *node {
	t.Helper()

	n := &node{
		r:       reactor.New(0, 64, nil),
		devices: bdev.NewRegistry(),
		target:  nvmf.NewTarget(address),
	}
	n.pools = pool.NewManager(n.devices, n.target, "")
	if fabric != nil {
		require.NoError(t, fabric.Listen(n.target))
	}

	opts := Options{
		ReservationsEnabled: true,
		ANAEnabled:          true,
		KeepAliveInterval:   time.Millisecond,
		Devices:             n.devices,
		Target:              n.target,
		Transport:           fabric,
	}
	if fabric == nil {
		opts.Transport = nil
	}
	if mutate != nil {
		mutate(&opts)
	}
	n.do(t, func(rc *reactor.Context) error {
		Configure(rc, opts)
		return nil
	})
	t.Cleanup(n.r.Shutdown)
	return n
}

func (n *node) try(fn func(rc *reactor.Context) error) error {
	_, err := reactor.BlockOn(n.r, func(rc *reactor.Context) (struct{}, error) {
		return struct{}{}, fn(rc)
	})
	return err
}

func (n *node) do(t *testing.T, fn func(rc *reactor.Context) error) {
	t.Helper()
	require.NoError(t, n.try(fn))
}

func (n *node) create(spec Spec) (*Nexus, error) {
	return reactor.BlockOn(n.r, func(rc *reactor.Context) (*Nexus, error) {
		return Create(rc, spec)
	})
}

func (n *node) write(id string, p []byte, off uint64) error {
	return n.try(func(rc *reactor.Context) error {
		nx, err := Lookup(rc, id)
		if err != nil {
			return err
		}
		return nx.Write(rc, p, off)
	})
}

func (n *node) read(id string, p []byte, off uint64) error {
	return n.try(func(rc *reactor.Context) error {
		nx, err := Lookup(rc, id)
		if err != nil {
			return err
		}
		return nx.Read(rc, p, off)
	})
}

func (n *node) info(t *testing.T, id string) Info {
	t.Helper()
	info, err := reactor.BlockOn(n.r, func(rc *reactor.Context) (Info, error) {
		nx, err := Lookup(rc, id)
		if err != nil {
			return Info{}, err
		}
		return nx.Info(), nil
	})
	require.NoError(t, err)
	return info
}

func TestCreateValidation(t *testing.T) {
	n := newNode(t, nil, "127.0.0.1:8420", nil)

	tests := []struct {
		name string
		spec Spec
	}{
		{"bad uuid", Spec{UUID: "nexus-1", Size: 1 << 20, Children: []string{"malloc:///m?size_mb=1"}}},
		{"zero size", Spec{UUID: nexusUUID, Children: []string{"malloc:///m?size_mb=1"}}},
		{"no children", Spec{UUID: nexusUUID, Size: 1 << 20}},
		{"bad child uri", Spec{UUID: nexusUUID, Size: 1 << 20, Children: []string{"iscsi://x/y"}}},
		{"duplicate child", Spec{UUID: nexusUUID, Size: 1 << 20, Children: []string{"bdev:///a", "bdev:///a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.create(tt.spec)
			assert.True(t, nerrors.IsInvalidArgument(err), "got %v", err)
		})
	}

	n.do(t, func(rc *reactor.Context) error {
		assert.Empty(t, List(rc))
		return nil
	})
}

func TestCreateOpensEveryChild(t *testing.T) {
	n := newNode(t, nil, "127.0.0.1:8420", nil)

	nx, err := n.create(Spec{
		UUID:     nexusUUID,
		Name:     "nexus0",
		Size:     1 << 20,
		Children: []string{"malloc:///m0?size_mb=1", "malloc:///m1?size_mb=1"},
	})
	require.NoError(t, err)
	assert.Equal(t, StateOpen, nx.State())

	info := n.info(t, "nexus0")
	assert.Equal(t, nexusUUID, info.UUID)
	require.Len(t, info.Children, 2)
	for _, c := range info.Children {
		assert.Equal(t, ChildOpen, c.State)
		assert.Equal(t, uint64(1<<20), c.Size)
	}

	require.NoError(t, n.write(nexusUUID, []byte("mirrored"), 4096))
	for _, name := range []string{"m0", "m1"} {
		dev, ok := n.devices.Lookup(name)
		require.True(t, ok)
		buf := make([]byte, 8)
		require.NoError(t, dev.ReadAt(buf, 4096))
		assert.Equal(t, "mirrored", string(buf), "child %s", name)
	}

	buf := make([]byte, 8)
	require.NoError(t, n.read(nexusUUID, buf, 4096))
	assert.Equal(t, "mirrored", string(buf))

	t.Run("out of range", func(t *testing.T) {
		err := n.write(nexusUUID, make([]byte, 1024), 1<<20-512)
		assert.True(t, nerrors.IsInvalidArgument(err))
	})

	t.Run("idempotent create", func(t *testing.T) {
		again, err := n.create(Spec{
			UUID:     nexusUUID,
			Name:     "nexus0",
			Size:     1 << 20,
			Children: []string{"malloc:///m0?size_mb=1", "malloc:///m1?size_mb=1"},
		})
		require.NoError(t, err)
		assert.Same(t, nx, again)
	})

	t.Run("conflicting create", func(t *testing.T) {
		_, err := n.create(Spec{UUID: nexusUUID, Name: "nexus0", Size: 2 << 20, Children: []string{"malloc:///m0?size_mb=2"}})
		assert.Equal(t, nerrors.ErrAlreadyExists, nerrors.CodeOf(err))

		_, err = n.create(Spec{UUID: nexus2UUID, Name: "nexus0", Size: 1 << 20, Children: []string{"malloc:///x?size_mb=1"}})
		assert.Equal(t, nerrors.ErrAlreadyExists, nerrors.CodeOf(err))
	})
}

func TestCreateSizeMismatchReleasesEveryChild(t *testing.T) {
	n := newNode(t, nil, "127.0.0.1:8420", nil)

	_, err := n.create(Spec{
		UUID:     nexusUUID,
		Size:     1 << 20,
		Children: []string{"malloc:///m0?size_mb=1", "malloc:///m1?size_mb=2"},
	})
	require.Error(t, err)
	assert.True(t, nerrors.IsInvalidArgument(err))

	assert.Empty(t, n.devices.Names(), "created child devices are released")
	err = n.try(func(rc *reactor.Context) error {
		_, err := Lookup(rc, nexusUUID)
		return err
	})
	assert.True(t, nerrors.IsNotFound(err))
}

func TestCreatePartialIsDegraded(t *testing.T) {
	n := newNode(t, nil, "127.0.0.1:8420", nil)

	nx, err := n.create(Spec{
		UUID:     nexusUUID,
		Size:     1 << 20,
		Children: []string{"malloc:///m0?size_mb=1", "loopback:///missing"},
	})
	require.NoError(t, err)
	assert.Equal(t, StateDegraded, nx.State())

	info := n.info(t, nexusUUID)
	assert.Equal(t, ChildOpen, info.Children[0].State)
	assert.Equal(t, ChildFaulted, info.Children[1].State)
	assert.NotEmpty(t, info.Children[1].Reason)

	require.NoError(t, n.write(nexusUUID, []byte{1, 2, 3}, 0))
}

func TestCreateWithoutUsableChildrenFails(t *testing.T) {
	n := newNode(t, nil, "127.0.0.1:8420", nil)

	_, err := n.create(Spec{UUID: nexusUUID, Size: 1 << 20, Children: []string{"loopback:///missing"}})
	require.Error(t, err)
	assert.True(t, nerrors.IsNotFound(err))

	n.do(t, func(rc *reactor.Context) error {
		assert.Empty(t, List(rc))
		return nil
	})
}

func TestWriteFanOutFaultsExactlyTheFailedChildren(t *testing.T) {
	n := newNode(t, nil, "127.0.0.1:8420", nil)
	good, bad := newFlaky("good", 1<<20), newFlaky("bad", 1<<20)
	require.NoError(t, n.devices.Add(good))
	require.NoError(t, n.devices.Add(bad))

	_, err := n.create(Spec{UUID: nexusUUID, Size: 1 << 20, Children: []string{"bdev:///good", "bdev:///bad"}})
	require.NoError(t, err)

	bad.failWrites.Store(true)
	err = n.write(nexusUUID, []byte("x"), 0)
	require.Error(t, err)
	assert.Equal(t, nerrors.ErrInternal, nerrors.CodeOf(err))

	info := n.info(t, nexusUUID)
	assert.Equal(t, StateDegraded, info.State)
	assert.Equal(t, ChildOpen, info.Children[0].State)
	assert.Equal(t, ChildFaulted, info.Children[1].State)

	// Faulted is sticky; later writes only go to the open child.
	bad.failWrites.Store(false)
	require.NoError(t, n.write(nexusUUID, []byte("y"), 0))
	assert.Equal(t, ChildFaulted, n.info(t, nexusUUID).Children[1].State)

	good.failWrites.Store(true)
	err = n.write(nexusUUID, []byte("z"), 0)
	require.Error(t, err)
	assert.Equal(t, StateFaulted, n.info(t, nexusUUID).State)

	err = n.write(nexusUUID, []byte("z"), 0)
	assert.Equal(t, nerrors.ErrFailedPrecondition, nerrors.CodeOf(err))
}

func TestReadFailsOverToNextOpenChild(t *testing.T) {
	n := newNode(t, nil, "127.0.0.1:8420", nil)
	first, second := newFlaky("first", 1<<20), newFlaky("second", 1<<20)
	require.NoError(t, n.devices.Add(first))
	require.NoError(t, n.devices.Add(second))

	_, err := n.create(Spec{UUID: nexusUUID, Size: 1 << 20, Children: []string{"bdev:///first", "bdev:///second"}})
	require.NoError(t, err)
	require.NoError(t, n.write(nexusUUID, []byte("data"), 0))

	first.failReads.Store(true)
	buf := make([]byte, 4)
	require.NoError(t, n.read(nexusUUID, buf, 0))
	assert.Equal(t, "data", string(buf))

	info := n.info(t, nexusUUID)
	assert.Equal(t, ChildFaulted, info.Children[0].State)
	assert.Equal(t, StateDegraded, info.State)
}

func TestShareAndANA(t *testing.T) {
	n := newNode(t, nil, "10.1.0.2:8420", nil)

	_, err := n.create(Spec{UUID: nexusUUID, Name: "nexus0", Size: 1 << 20, Children: []string{"malloc:///m0?size_mb=1"}})
	require.NoError(t, err)

	err = n.try(func(rc *reactor.Context) error {
		nx, _ := Lookup(rc, nexusUUID)
		return nx.SetANAState(rc, ana.NonOptimized)
	})
	assert.Equal(t, nerrors.ErrFailedPrecondition, nerrors.CodeOf(err), "unpublished nexus has no path state")

	uri, err := reactor.BlockOn(n.r, func(rc *reactor.Context) (string, error) {
		nx, _ := Lookup(rc, nexusUUID)
		return nx.Share(rc, pool.ShareNvmf)
	})
	require.NoError(t, err)
	nqn := nvmf.NexusNQN(nvmf.DefaultHostNQN, nexusUUID)
	assert.Equal(t, "nvmf://10.1.0.2:8420/"+nqn, uri)

	// An initiator connected before the change sees it on its next query.
	sess, err := n.target.Connect(nvmf.DefaultHostNQN, "initiator", nqn)
	require.NoError(t, err)
	assert.Equal(t, ana.Optimized, sess.ANAState())

	n.do(t, func(rc *reactor.Context) error {
		nx, _ := Lookup(rc, "nexus0")
		if err := nx.SetANAState(rc, ana.NonOptimized); err != nil {
			return err
		}
		return nx.SetANAState(rc, ana.NonOptimized)
	})
	assert.Equal(t, ana.NonOptimized, sess.ANAState())
	assert.Equal(t, "non-optimized", n.info(t, nexusUUID).ANAState)

	t.Run("I/O through the published path", func(t *testing.T) {
		ctx := t.Context()
		require.NoError(t, sess.WriteAt(ctx, []byte("remote"), 512))
		buf := make([]byte, 6)
		require.NoError(t, n.read(nexusUUID, buf, 512))
		assert.Equal(t, "remote", string(buf))
	})

	t.Run("share is idempotent", func(t *testing.T) {
		again, err := reactor.BlockOn(n.r, func(rc *reactor.Context) (string, error) {
			nx, _ := Lookup(rc, nexusUUID)
			return nx.Share(rc, pool.ShareNvmf)
		})
		require.NoError(t, err)
		assert.Equal(t, uri, again)
	})

	t.Run("unshare", func(t *testing.T) {
		n.do(t, func(rc *reactor.Context) error {
			nx, _ := Lookup(rc, nexusUUID)
			return nx.Unshare(rc)
		})
		assert.False(t, sess.Alive())
		assert.Empty(t, n.info(t, nexusUUID).ShareURI)
	})
}

func TestShareWithANADisabled(t *testing.T) {
	n := newNode(t, nil, "10.1.0.2:8420", func(o *Options) { o.ANAEnabled = false })

	_, err := n.create(Spec{UUID: nexusUUID, Size: 1 << 20, Children: []string{"malloc:///m0?size_mb=1"}})
	require.NoError(t, err)

	err = n.try(func(rc *reactor.Context) error {
		nx, _ := Lookup(rc, nexusUUID)
		if _, err := nx.Share(rc, pool.ShareNvmf); err != nil {
			return err
		}
		return nx.SetANAState(rc, ana.Inaccessible)
	})
	assert.Equal(t, nerrors.ErrFailedPrecondition, nerrors.CodeOf(err))

	sub, ok := n.target.Subsystem(nvmf.NexusNQN(nvmf.DefaultHostNQN, nexusUUID))
	require.True(t, ok)
	assert.Equal(t, ana.Optimized, sub.ANAState())
}

func TestRemoveChild(t *testing.T) {
	n := newNode(t, nil, "127.0.0.1:8420", nil)

	_, err := n.create(Spec{UUID: nexusUUID, Size: 1 << 20, Children: []string{"malloc:///m0?size_mb=1", "malloc:///m1?size_mb=1"}})
	require.NoError(t, err)

	remove := func(uri string) error {
		return n.try(func(rc *reactor.Context) error {
			nx, _ := Lookup(rc, nexusUUID)
			return nx.RemoveChild(rc, uri)
		})
	}

	require.NoError(t, remove("malloc:///m1?size_mb=1"))
	info := n.info(t, nexusUUID)
	assert.Equal(t, StateOpen, info.State)
	assert.Len(t, info.Children, 1)
	_, ok := n.devices.Lookup("m1")
	assert.False(t, ok)

	err = remove("malloc:///m0?size_mb=1")
	assert.Equal(t, nerrors.ErrFailedPrecondition, nerrors.CodeOf(err))
	assert.True(t, nerrors.IsNotFound(remove("bdev:///nope")))
}

func TestDestroy(t *testing.T) {
	n := newNode(t, nil, "127.0.0.1:8420", nil)

	_, err := n.create(Spec{UUID: nexusUUID, Size: 1 << 20, Children: []string{"malloc:///m0?size_mb=1"}})
	require.NoError(t, err)
	n.do(t, func(rc *reactor.Context) error {
		nx, _ := Lookup(rc, nexusUUID)
		_, err := nx.Share(rc, pool.ShareNvmf)
		return err
	})

	n.do(t, func(rc *reactor.Context) error { return Destroy(rc, nexusUUID) })
	n.do(t, func(rc *reactor.Context) error { return Destroy(rc, nexusUUID) })

	assert.Empty(t, n.target.SubsystemNQNs())
	assert.Empty(t, n.devices.Names())
	assert.True(t, nerrors.IsNotFound(n.write(nexusUUID, []byte{1}, 0)))
}

func newReplicaNode(t *testing.T, fabric *nvmf.Fabric, address string) *node {
	t.Helper()
	n := newNode(t, fabric, address, nil)
	_, err := n.pools.CreatePool("tpool", []string{"malloc:///disk0?size_mb=64"})
	require.NoError(t, err)
	_, err = n.pools.CreateReplica(pool.ReplicaSpec{UUID: replicaUUID, Pool: "tpool", Size: 32 << 20, Thin: true, Share: pool.ShareNvmf})
	require.NoError(t, err)
	return n
}

// Two nexuses on two nodes attach the same shared replica. The one that
// connects last preempts the reservation; the first one's writes fail.
func TestSecondNexusPreemptsSharedReplica(t *testing.T) {
	fabric := nvmf.NewFabric()
	a := newReplicaNode(t, fabric, "10.1.0.2:8420")
	b := newNode(t, fabric, "10.1.0.3:8420", nil)

	_, err := a.create(Spec{UUID: nexusUUID, Size: 32 << 20, Children: []string{"loopback:///" + replicaUUID}})
	require.NoError(t, err)
	_, err = reactor.BlockOn(a.r, func(rc *reactor.Context) (string, error) {
		nx, _ := Lookup(rc, nexusUUID)
		return nx.Share(rc, pool.ShareNvmf)
	})
	require.NoError(t, err)
	require.NoError(t, a.write(nexusUUID, []byte("first"), 0))

	replicaNQN := nvmf.ReplicaNQN(nvmf.DefaultHostNQN, replicaUUID)
	sub, ok := a.target.Subsystem(replicaNQN)
	require.True(t, ok)
	rep := sub.Namespace().Report()
	require.NotNil(t, rep.Holder())
	assert.Equal(t, uint64(0x12345678), rep.Holder().Key)

	child := "nvmf://10.1.0.2:8420/" + replicaNQN
	_, err = b.create(Spec{UUID: nexus2UUID, Size: 32 << 20, Children: []string{child}})
	require.NoError(t, err)

	rep = sub.Namespace().Report()
	assert.Len(t, rep.Registrants, 1)
	assert.Equal(t, uint16(0xffff), rep.Registrants[0].CntlID)
	var hostB string
	b.do(t, func(rc *reactor.Context) error {
		hostB = HostID(rc)
		return nil
	})
	assert.Equal(t, hostB, rep.Holder().HostID)

	// Every write from the preempted host keeps failing with the conflict,
	// not just the one that faulted the child.
	for i := range 3 {
		err = a.write(nexusUUID, []byte("stale"), 0)
		require.Error(t, err, "write %d", i)
		assert.True(t, nerrors.IsReservationConflict(err), "write %d: got %v", i, err)
	}
	infoA := a.info(t, nexusUUID)
	assert.Equal(t, StateFaulted, infoA.State)
	require.Len(t, infoA.Children, 1)
	assert.Equal(t, ChildFaulted, infoA.Children[0].State)
	assert.NotEmpty(t, infoA.Children[0].Reason)

	require.NoError(t, b.write(nexus2UUID, []byte("second"), 0))
	buf := make([]byte, 6)
	require.NoError(t, b.read(nexus2UUID, buf, 0))
	assert.Equal(t, "second", string(buf))
}

func TestReacquireByHolderIsNoop(t *testing.T) {
	fabric := nvmf.NewFabric()
	a := newReplicaNode(t, fabric, "10.1.0.2:8420")
	b := newNode(t, fabric, "10.1.0.3:8420", nil)

	child := "nvmf://10.1.0.2:8420/" + nvmf.ReplicaNQN(nvmf.DefaultHostNQN, replicaUUID)
	_, err := b.create(Spec{UUID: nexus2UUID, Size: 32 << 20, Children: []string{child}})
	require.NoError(t, err)

	sub, _ := a.target.Subsystem(nvmf.ReplicaNQN(nvmf.DefaultHostNQN, replicaUUID))
	before := sub.Namespace().Report()

	ctrl, err := reactor.BlockOn(b.r, func(rc *reactor.Context) (*reservation.Controller, error) {
		nx, err := Lookup(rc, nexus2UUID)
		if err != nil {
			return nil, err
		}
		return nx.Children()[0].Reservation(), nil
	})
	require.NoError(t, err)
	require.NotNil(t, ctrl)

	action, err := ctrl.Acquire(t.Context())
	require.NoError(t, err)
	assert.Equal(t, reservation.ActionHeld, action)

	after := sub.Namespace().Report()
	assert.Equal(t, before, after)
}

func TestReservationsDisabled(t *testing.T) {
	fabric := nvmf.NewFabric()
	a := newReplicaNode(t, fabric, "10.1.0.2:8420")
	b := newNode(t, fabric, "10.1.0.3:8420", func(o *Options) { o.ReservationsEnabled = false })

	child := "nvmf://10.1.0.2:8420/" + nvmf.ReplicaNQN(nvmf.DefaultHostNQN, replicaUUID)
	_, err := b.create(Spec{UUID: nexus2UUID, Size: 32 << 20, Children: []string{child}})
	require.NoError(t, err)

	sub, _ := a.target.Subsystem(nvmf.ReplicaNQN(nvmf.DefaultHostNQN, replicaUUID))
	assert.Empty(t, sub.Namespace().Report().Registrants)
	require.NoError(t, b.write(nexus2UUID, []byte("x"), 0))
}

func TestKeepAliveFaultsChildWhenSessionDies(t *testing.T) {
	fabric := nvmf.NewFabric()
	a := newReplicaNode(t, fabric, "10.1.0.2:8420")
	b := newNode(t, fabric, "10.1.0.3:8420", nil)

	child := "nvmf://10.1.0.2:8420/" + nvmf.ReplicaNQN(nvmf.DefaultHostNQN, replicaUUID)
	_, err := b.create(Spec{UUID: nexus2UUID, Size: 32 << 20, Children: []string{child}})
	require.NoError(t, err)

	_, err = a.pools.ShareReplica(replicaUUID, pool.ShareNone)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return b.info(t, nexus2UUID).State == StateFaulted
	}, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, b.info(t, nexus2UUID).Children[0].Reason, "keep-alive")
}
