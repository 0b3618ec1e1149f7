package bdev

import (
	"sync"

	"github.com/google/uuid"
)

// Malloc is a RAM-backed device.
type Malloc struct {
	name      string
	uuid      string
	blockSize uint32

	mu   sync.RWMutex
	data []byte
}

// NewMalloc allocates a zeroed in-memory device.
func NewMalloc(name string, size uint64, blockSize uint32) *Malloc {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	return &Malloc{
		name:      name,
		uuid:      uuid.NewString(),
		blockSize: blockSize,
		data:      make([]byte, size),
	}
}

func (m *Malloc) Name() string      { return m.name }
func (m *Malloc) UUID() string      { return m.uuid }
func (m *Malloc) Size() uint64      { return uint64(len(m.data)) }
func (m *Malloc) BlockSize() uint32 { return m.blockSize }

func (m *Malloc) ReadAt(p []byte, off uint64) error {
	if err := CheckRange(m.name, m.Size(), off, len(p)); err != nil {
		return err
	}
	m.mu.RLock()
	copy(p, m.data[off:])
	m.mu.RUnlock()
	return nil
}

func (m *Malloc) WriteAt(p []byte, off uint64) error {
	if err := CheckRange(m.name, m.Size(), off, len(p)); err != nil {
		return err
	}
	m.mu.Lock()
	copy(m.data[off:], p)
	m.mu.Unlock()
	return nil
}

func (m *Malloc) Flush() error { return nil }
func (m *Malloc) Close() error { return nil }
