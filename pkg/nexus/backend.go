package nexus

import (
	"github.com/marmos91/nexusd/pkg/nvmf"
	"github.com/marmos91/nexusd/pkg/reactor"
)

// backend exports a published nexus to the nvmf target. Target sessions run
// on host goroutines, so every call enters the owning reactor through
// BlockOn and finds the nexus by UUID there.
type backend struct {
	owner     *reactor.Reactor
	uuid      string
	size      uint64
	blockSize uint32
}

var _ nvmf.Backend = (*backend)(nil)

func (b *backend) Size() uint64 { return b.size }

func (b *backend) BlockSize() uint32 {
	if b.blockSize == 0 {
		return 512
	}
	return b.blockSize
}

func (b *backend) run(fn func(rc *reactor.Context, n *Nexus) error) error {
	_, err := reactor.BlockOn(b.owner, func(rc *reactor.Context) (struct{}, error) {
		n, err := Lookup(rc, b.uuid)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, fn(rc, n)
	})
	return err
}

func (b *backend) ReadAt(p []byte, off uint64) error {
	return b.run(func(rc *reactor.Context, n *Nexus) error { return n.Read(rc, p, off) })
}

func (b *backend) WriteAt(p []byte, off uint64) error {
	return b.run(func(rc *reactor.Context, n *Nexus) error { return n.Write(rc, p, off) })
}

func (b *backend) Flush() error {
	return b.run(func(rc *reactor.Context, n *Nexus) error { return n.Flush(rc) })
}
