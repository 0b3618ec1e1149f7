package bdev

import (
	"encoding/binary"
	"fmt"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/marmos91/nexusd/internal/logger"
)

var (
	keyUUID     = []byte("meta/uuid")
	blockPrefix = []byte("blk/")
)

// Badger is a persistent device storing one key per written block in a
// BadgerDB. Blocks never written read back as zeroes.
type Badger struct {
	name      string
	uuid      string
	size      uint64
	blockSize uint32
	db        *badgerdb.DB
}

// OpenBadger opens (or creates) a badger-backed device at path. An empty path
// opens an in-memory database.
func OpenBadger(name, path string, size uint64, blockSize uint32) (*Badger, error) {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}

	opts := badgerdb.DefaultOptions(path).WithLogger(badgerLogger{device: name})
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger device %q: %w", name, err)
	}

	d := &Badger{name: name, size: size, blockSize: blockSize, db: db}
	if err := d.loadUUID(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// loadUUID reads the persisted device UUID, generating one on first open.
func (d *Badger) loadUUID() error {
	return d.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyUUID)
		if err == badgerdb.ErrKeyNotFound {
			d.uuid = uuid.NewString()
			return txn.Set(keyUUID, []byte(d.uuid))
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			d.uuid = string(val)
			return nil
		})
	})
}

func blockKey(idx uint64) []byte {
	key := make([]byte, len(blockPrefix)+8)
	copy(key, blockPrefix)
	binary.BigEndian.PutUint64(key[len(blockPrefix):], idx)
	return key
}

func (d *Badger) Name() string      { return d.name }
func (d *Badger) UUID() string      { return d.uuid }
func (d *Badger) Size() uint64      { return d.size }
func (d *Badger) BlockSize() uint32 { return d.blockSize }

func (d *Badger) ReadAt(p []byte, off uint64) error {
	if err := CheckRange(d.name, d.size, off, len(p)); err != nil {
		return err
	}

	bs := uint64(d.blockSize)
	return d.db.View(func(txn *badgerdb.Txn) error {
		for done := 0; done < len(p); {
			pos := off + uint64(done)
			idx, within := pos/bs, pos%bs
			n := int(min(bs-within, uint64(len(p)-done)))
			dst := p[done : done+n]

			item, err := txn.Get(blockKey(idx))
			switch {
			case err == badgerdb.ErrKeyNotFound:
				clear(dst)
			case err != nil:
				return err
			default:
				if err := item.Value(func(val []byte) error {
					copy(dst, val[within:])
					return nil
				}); err != nil {
					return err
				}
			}
			done += n
		}
		return nil
	})
}

func (d *Badger) WriteAt(p []byte, off uint64) error {
	if err := CheckRange(d.name, d.size, off, len(p)); err != nil {
		return err
	}

	bs := uint64(d.blockSize)
	return d.db.Update(func(txn *badgerdb.Txn) error {
		for done := 0; done < len(p); {
			pos := off + uint64(done)
			idx, within := pos/bs, pos%bs
			n := int(min(bs-within, uint64(len(p)-done)))

			block := make([]byte, bs)
			if within != 0 || uint64(n) != bs {
				item, err := txn.Get(blockKey(idx))
				if err != nil && err != badgerdb.ErrKeyNotFound {
					return err
				}
				if err == nil {
					val, err := item.ValueCopy(nil)
					if err != nil {
						return err
					}
					copy(block, val)
				}
			}
			copy(block[within:], p[done:done+n])

			if err := txn.Set(blockKey(idx), block); err != nil {
				return err
			}
			done += n
		}
		return nil
	})
}

// Flush syncs the value log to disk.
func (d *Badger) Flush() error {
	if d.db.Opts().InMemory {
		return nil
	}
	return d.db.Sync()
}

// CacheStats reports the badger cache counters for cacheType "block" or
// "index". A disabled cache reports zeroes.
func (d *Badger) CacheStats(cacheType string) (hits, misses uint64, ratio float64) {
	m := d.db.BlockCacheMetrics()
	if cacheType == "index" {
		m = d.db.IndexCacheMetrics()
	}
	return m.Hits(), m.Misses(), m.Ratio()
}

func (d *Badger) Close() error {
	return d.db.Close()
}

// badgerLogger routes badger's own logging through the node logger. Badger's
// informational chatter is demoted to debug.
type badgerLogger struct {
	device string
}

func (l badgerLogger) Errorf(format string, args ...any) {
	logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.KeyDevice, l.device)
}

func (l badgerLogger) Warningf(format string, args ...any) {
	logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.KeyDevice, l.device)
}

func (l badgerLogger) Infof(format string, args ...any) {
	logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.KeyDevice, l.device)
}

func (l badgerLogger) Debugf(format string, args ...any) {
	logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.KeyDevice, l.device)
}
