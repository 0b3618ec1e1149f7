package pool

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/marmos91/nexusd/pkg/bdev"
	nerrors "github.com/marmos91/nexusd/pkg/errors"
)

// ShareProtocol is how a replica is exported.
type ShareProtocol int

const (
	ShareNone ShareProtocol = iota
	ShareNvmf
)

func (p ShareProtocol) String() string {
	switch p {
	case ShareNone:
		return "none"
	case ShareNvmf:
		return "nvmf"
	default:
		return fmt.Sprintf("ShareProtocol(%d)", int(p))
	}
}

// ParseShareProtocol parses "none" or "nvmf" (case-insensitive). The empty
// string means none.
func ParseShareProtocol(s string) (ShareProtocol, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return ShareNone, nil
	case "nvmf":
		return ShareNvmf, nil
	default:
		return 0, nerrors.NewInvalidArgument(s, "unsupported share protocol")
	}
}

func (p ShareProtocol) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *ShareProtocol) UnmarshalText(text []byte) error {
	v, err := ParseShareProtocol(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Replica is a fixed-size region of a pool's disk. It is itself a block
// device: nexus children open it by UUID through the device registry, and
// the nvmf target exports it when shared.
type Replica struct {
	uuid   string
	pool   string
	base   bdev.Device
	offset uint64
	size   uint64
	thin   bool

	share  ShareProtocol
	uri    string
	closed atomic.Bool
}

var _ bdev.Device = (*Replica)(nil)

func (r *Replica) Name() string      { return r.uuid }
func (r *Replica) UUID() string      { return r.uuid }
func (r *Replica) Size() uint64      { return r.size }
func (r *Replica) BlockSize() uint32 { return r.base.BlockSize() }

// Pool returns the name of the pool the replica lives on.
func (r *Replica) Pool() string { return r.pool }

// Thin reports whether the replica was created thin-provisioned.
func (r *Replica) Thin() bool { return r.thin }

func (r *Replica) check(p []byte, off uint64) error {
	if r.closed.Load() {
		return nerrors.New(nerrors.ErrNotFound, "replica "+r.uuid+" is destroyed")
	}
	return bdev.CheckRange(r.uuid, r.size, off, len(p))
}

func (r *Replica) ReadAt(p []byte, off uint64) error {
	if err := r.check(p, off); err != nil {
		return err
	}
	return r.base.ReadAt(p, r.offset+off)
}

func (r *Replica) WriteAt(p []byte, off uint64) error {
	if err := r.check(p, off); err != nil {
		return err
	}
	return r.base.WriteAt(p, r.offset+off)
}

func (r *Replica) Flush() error {
	if r.closed.Load() {
		return nil
	}
	return r.base.Flush()
}

// Close detaches the replica from its disk. The disk stays open.
func (r *Replica) Close() error {
	r.closed.Store(true)
	return nil
}

// ReplicaInfo is a snapshot of a replica.
type ReplicaInfo struct {
	UUID   string        `json:"uuid"`
	Pool   string        `json:"pool"`
	Size   uint64        `json:"size"`
	Thin   bool          `json:"thin"`
	Offset uint64        `json:"offset"`
	Share  ShareProtocol `json:"share"`
	URI    string        `json:"uri"`
}

func (r *Replica) info() ReplicaInfo {
	return ReplicaInfo{
		UUID:   r.uuid,
		Pool:   r.pool,
		Size:   r.size,
		Thin:   r.thin,
		Offset: r.offset,
		Share:  r.share,
		URI:    r.uri,
	}
}

// LocalURI is the URI of an unshared replica.
func LocalURI(uuid string) string {
	return "bdev:///" + uuid
}
