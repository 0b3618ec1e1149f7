package bdev

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	nerrors "github.com/marmos91/nexusd/pkg/errors"
)

// Disk URI schemes pools can be created on.
const (
	SchemeMalloc = "malloc"
	SchemeBadger = "badger"
)

// DiskSpec is a parsed disk URI such as malloc:///disk0?size_mb=64 or
// badger:///var/lib/nexusd/disk0?size_mb=1024&blk_size=4096.
type DiskSpec struct {
	URI       string
	Scheme    string
	Name      string
	Path      string
	Size      uint64
	BlockSize uint32
}

// ParseDiskURI parses and validates a disk URI.
func ParseDiskURI(uri string) (*DiskSpec, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, nerrors.Wrap(nerrors.ErrInvalidArgument, err, "invalid disk uri")
	}

	spec := &DiskSpec{URI: uri, Scheme: u.Scheme, BlockSize: DefaultBlockSize}

	switch u.Scheme {
	case SchemeMalloc:
		spec.Name = strings.Trim(u.Path, "/")
		if spec.Name == "" || strings.Contains(spec.Name, "/") {
			return nil, nerrors.NewInvalidArgument(uri, "malloc uri needs a single path segment naming the device")
		}
	case SchemeBadger:
		if u.Path == "" || u.Path == "/" {
			return nil, nerrors.NewInvalidArgument(uri, "badger uri needs a directory path")
		}
		spec.Path = u.Path
		spec.Name = path.Base(u.Path)
	case "":
		return nil, nerrors.NewInvalidArgument(uri, "missing uri scheme")
	default:
		return nil, nerrors.NewInvalidArgument(uri, "unsupported uri scheme "+strconv.Quote(u.Scheme))
	}

	q := u.Query()
	switch {
	case q.Has("size_mb"):
		mb, err := strconv.ParseUint(q.Get("size_mb"), 10, 64)
		if err != nil || mb == 0 {
			return nil, nerrors.NewInvalidArgument(uri, "size_mb must be a positive integer")
		}
		spec.Size = mb << 20
	case q.Has("num_blocks"):
		blocks, err := strconv.ParseUint(q.Get("num_blocks"), 10, 64)
		if err != nil || blocks == 0 {
			return nil, nerrors.NewInvalidArgument(uri, "num_blocks must be a positive integer")
		}
		spec.Size = blocks
	default:
		return nil, nerrors.NewInvalidArgument(uri, "missing size_mb or num_blocks")
	}

	if q.Has("blk_size") {
		bs, err := strconv.ParseUint(q.Get("blk_size"), 10, 32)
		if err != nil || bs == 0 || bs&(bs-1) != 0 {
			return nil, nerrors.NewInvalidArgument(uri, "blk_size must be a power of two")
		}
		spec.BlockSize = uint32(bs)
	}
	if q.Has("num_blocks") {
		spec.Size *= uint64(spec.BlockSize)
	}

	return spec, nil
}

// Open creates the device a disk spec describes.
func Open(spec *DiskSpec) (Device, error) {
	switch spec.Scheme {
	case SchemeMalloc:
		return NewMalloc(spec.Name, spec.Size, spec.BlockSize), nil
	case SchemeBadger:
		d, err := OpenBadger(spec.Name, spec.Path, spec.Size, spec.BlockSize)
		if err != nil {
			return nil, nerrors.Wrap(nerrors.ErrInternal, err, "failed to open disk")
		}
		return d, nil
	default:
		return nil, nerrors.NewInvalidArgument(spec.URI, "unsupported uri scheme "+strconv.Quote(spec.Scheme))
	}
}
