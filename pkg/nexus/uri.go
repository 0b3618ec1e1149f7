package nexus

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/marmos91/nexusd/pkg/bdev"
	nerrors "github.com/marmos91/nexusd/pkg/errors"
	"github.com/marmos91/nexusd/pkg/nvmf"
)

// Child URI schemes.
const (
	SchemeLoopback = "loopback"
	SchemeBdev     = "bdev"
	SchemeMalloc   = "malloc"
	SchemeNvmf     = "nvmf"
)

// ChildURI is a parsed child URI.
type ChildURI struct {
	Raw    string
	Scheme string

	// Device names the local device for loopback and bdev children.
	Device string
	// Disk describes the device a malloc child creates.
	Disk *bdev.DiskSpec

	// Address and NQN locate the subsystem of an nvmf child.
	Address string
	NQN     string
}

// Local reports whether the child is backed by a device on this node.
func (u *ChildURI) Local() bool {
	return u.Scheme != SchemeNvmf
}

func (u *ChildURI) String() string { return u.Raw }

func invalidURI(raw, msg string) error {
	return nerrors.NewInvalidArgument(raw, msg)
}

// ParseChildURI parses one of:
//
//	loopback:///<device-or-uuid>
//	bdev:///<device-or-uuid>
//	malloc:///<name>?size_mb=<n>[&blk_size=<n>]
//	nvmf://<host>[:<port>]/<subsystem-nqn>
//
// Any other input is an invalid argument.
func ParseChildURI(raw string) (*ChildURI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, nerrors.Wrap(nerrors.ErrInvalidArgument, err, "invalid child uri")
	}

	out := &ChildURI{Raw: raw, Scheme: u.Scheme}
	switch u.Scheme {
	case SchemeLoopback, SchemeBdev:
		if u.Host != "" {
			return nil, invalidURI(raw, "local uri must not have a host")
		}
		out.Device = strings.Trim(u.Path, "/")
		if out.Device == "" || strings.Contains(out.Device, "/") {
			return nil, invalidURI(raw, "local uri needs a single path segment naming the device")
		}

	case SchemeMalloc:
		spec, err := bdev.ParseDiskURI(raw)
		if err != nil {
			return nil, err
		}
		out.Device = spec.Name
		out.Disk = spec

	case SchemeNvmf:
		if u.Host == "" {
			return nil, invalidURI(raw, "nvmf uri needs a target address")
		}
		host, port := u.Hostname(), u.Port()
		if port == "" {
			port = strconv.Itoa(nvmf.DefaultPort)
		} else if p, err := strconv.ParseUint(port, 10, 16); err != nil || p == 0 {
			return nil, invalidURI(raw, "invalid port "+strconv.Quote(port))
		}
		if host == "" {
			return nil, invalidURI(raw, "nvmf uri needs a target address")
		}
		out.Address = net.JoinHostPort(host, port)

		out.NQN = strings.TrimPrefix(u.Path, "/")
		if out.NQN == "" {
			return nil, invalidURI(raw, "nvmf uri needs a subsystem nqn")
		}
		if err := nvmf.ValidateNQN(out.NQN); err != nil {
			return nil, invalidURI(raw, "invalid subsystem nqn")
		}

	case "":
		return nil, invalidURI(raw, "missing uri scheme")
	default:
		return nil, invalidURI(raw, "unsupported uri scheme "+strconv.Quote(u.Scheme))
	}
	return out, nil
}
