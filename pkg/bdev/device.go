// Package bdev provides the block devices pools are carved from and the
// node-wide device table children resolve loopback URIs against.
//
// Devices stand in for hardware: they are safe for concurrent use and their
// calls block, so reactor code issues them through reactor.Async and awaits
// the completion.
package bdev

import (
	"fmt"
	"sort"
	"sync"

	nerrors "github.com/marmos91/nexusd/pkg/errors"
)

// DefaultBlockSize is used when a device URI does not specify blk_size.
const DefaultBlockSize = 512

// Device is a fixed-size, byte-addressable block device.
type Device interface {
	Name() string
	UUID() string
	Size() uint64
	BlockSize() uint32
	ReadAt(p []byte, off uint64) error
	WriteAt(p []byte, off uint64) error
	Flush() error
	Close() error
}

// CheckRange validates an I/O of length n at off against a device of size.
func CheckRange(name string, size uint64, off uint64, n int) error {
	if n < 0 || off > size || uint64(n) > size-off {
		return nerrors.NewInvalidArgument(name, fmt.Sprintf("I/O out of range: offset %d length %d size %d", off, n, size))
	}
	return nil
}

// Registry is the node-wide table of open devices, keyed by name with UUID
// aliases.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device
	aliases map[string]string
}

// NewRegistry creates an empty device table.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[string]Device),
		aliases: make(map[string]string),
	}
}

// Add registers d. Names and UUIDs must be unique.
func (r *Registry) Add(d Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[d.Name()]; ok {
		return nerrors.NewAlreadyExists("device", d.Name())
	}
	r.devices[d.Name()] = d
	if u := d.UUID(); u != "" && u != d.Name() {
		r.aliases[u] = d.Name()
	}
	return nil
}

// Lookup finds a device by name or UUID.
func (r *Registry) Lookup(nameOrUUID string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.devices[nameOrUUID]; ok {
		return d, true
	}
	if name, ok := r.aliases[nameOrUUID]; ok {
		d, ok := r.devices[name]
		return d, ok
	}
	return nil, false
}

// Remove unregisters the device with the given name and returns it.
func (r *Registry) Remove(name string) (Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[name]
	if !ok {
		return nil, false
	}
	delete(r.devices, name)
	delete(r.aliases, d.UUID())
	return d, true
}

// Names returns every registered device name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.devices))
	for n := range r.devices {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
