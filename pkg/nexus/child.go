package nexus

import (
	"context"
	"fmt"

	"github.com/marmos91/nexusd/internal/logger"
	"github.com/marmos91/nexusd/pkg/bdev"
	nerrors "github.com/marmos91/nexusd/pkg/errors"
	"github.com/marmos91/nexusd/pkg/nvmf"
	"github.com/marmos91/nexusd/pkg/reactor"
	"github.com/marmos91/nexusd/pkg/reservation"
)

// ChildState is the connection state of a nexus child.
type ChildState int

const (
	ChildInit ChildState = iota
	ChildConnecting
	ChildOpen
	ChildFaulted
	ChildClosed
)

func (s ChildState) String() string {
	switch s {
	case ChildInit:
		return "init"
	case ChildConnecting:
		return "connecting"
	case ChildOpen:
		return "open"
	case ChildFaulted:
		return "faulted"
	case ChildClosed:
		return "closed"
	default:
		return fmt.Sprintf("ChildState(%d)", int(s))
	}
}

func (s ChildState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ChildState) UnmarshalText(text []byte) error {
	for v := ChildInit; v <= ChildClosed; v++ {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown child state %q", text)
}

// endpoint is the I/O path to a child's storage. Calls block.
type endpoint interface {
	Size() uint64
	BlockSize() uint32
	ReadAt(ctx context.Context, p []byte, off uint64) error
	WriteAt(ctx context.Context, p []byte, off uint64) error
	Flush(ctx context.Context) error
	Close() error
}

type deviceEndpoint struct {
	dev bdev.Device
}

func (e deviceEndpoint) Size() uint64      { return e.dev.Size() }
func (e deviceEndpoint) BlockSize() uint32 { return e.dev.BlockSize() }

func (e deviceEndpoint) ReadAt(ctx context.Context, p []byte, off uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.dev.ReadAt(p, off)
}

func (e deviceEndpoint) WriteAt(ctx context.Context, p []byte, off uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.dev.WriteAt(p, off)
}

func (e deviceEndpoint) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.dev.Flush()
}

// Close does not close the device: local devices belong to their pool.
func (e deviceEndpoint) Close() error { return nil }

type sessionEndpoint struct {
	*nvmf.Session
	info nvmf.NamespaceInfo
}

func (e sessionEndpoint) Size() uint64      { return e.info.Size }
func (e sessionEndpoint) BlockSize() uint32 { return e.info.BlockSize }

// Child is one storage leg of a nexus. It is owned by the nexus's reactor and
// every mutating call takes that reactor's *reactor.Context.
type Child struct {
	uri   *ChildURI
	opts  *Options
	nexus string
	state ChildState
	cause error

	ep      endpoint
	session *nvmf.Session
	resv    *reservation.Controller
	created bdev.Device
	poller  *reactor.Poller

	onFault func(rc *reactor.Context, c *Child)
}

func newChild(uri *ChildURI, nexus string, opts *Options) *Child {
	return &Child{uri: uri, nexus: nexus, opts: opts}
}

// URI returns the child's URI as given at creation.
func (c *Child) URI() string { return c.uri.Raw }

// State returns the current state.
func (c *Child) State() ChildState { return c.state }

// Reason returns why the child faulted, if it did.
func (c *Child) Reason() string {
	if c.cause == nil {
		return ""
	}
	return c.cause.Error()
}

// Cause returns the error that faulted the child, or nil.
func (c *Child) Cause() error { return c.cause }

// Size returns the size of the connected storage, or 0 before connect.
func (c *Child) Size() uint64 {
	if c.ep == nil {
		return 0
	}
	return c.ep.Size()
}

// Reservation returns the reservation controller of a shared child, or nil.
func (c *Child) Reservation() *reservation.Controller { return c.resv }

func (c *Child) setState(s ChildState) {
	if c.state == s {
		return
	}
	logger.Debug("Child state changed", logger.KeyNexus, c.nexus, logger.KeyChild, c.uri.Raw,
		"from", c.state.String(), logger.KeyState, s.String())
	c.state = s
}

// Connect opens the child and checks that its size is size. Shared
// namespaces get the write-exclusive reservation before the child is Open.
// On failure the child is Faulted and its connection released.
func (c *Child) Connect(rc *reactor.Context, size uint64) error {
	switch c.state {
	case ChildOpen:
		return nil
	case ChildInit:
	default:
		return nerrors.Newf(nerrors.ErrFailedPrecondition, "child %s is %s", c.uri.Raw, c.state)
	}

	c.setState(ChildConnecting)
	if err := c.connect(rc, size); err != nil {
		c.release()
		c.cause = err
		c.setState(ChildFaulted)
		return err
	}

	c.setState(ChildOpen)
	if c.session != nil {
		c.startKeepAlive(rc)
	}
	return nil
}

func (c *Child) connect(rc *reactor.Context, size uint64) error {
	opts := c.opts

	switch c.uri.Scheme {
	case SchemeNvmf:
		if opts.Transport == nil {
			return nerrors.New(nerrors.ErrInternal, "no fabric transport configured")
		}
		sess, err := reactor.Await(rc, reactor.Async(func() (*nvmf.Session, error) {
			return opts.Transport.Dial(opts.Context, c.uri.Address, opts.HostNQN, opts.HostID, c.uri.NQN)
		}))
		if err != nil {
			return nerrors.Wrap(nerrors.CodeOf(err), err, "failed to connect to "+c.uri.Address)
		}
		c.attach(sess)

	case SchemeMalloc:
		dev, err := bdev.Open(c.uri.Disk)
		if err != nil {
			return err
		}
		if err := opts.Devices.Add(dev); err != nil {
			return err
		}
		c.created = dev
		c.ep = deviceEndpoint{dev: dev}

	default:
		dev, ok := opts.Devices.Lookup(c.uri.Device)
		if !ok {
			return nerrors.NewNotFound("device", c.uri.Device)
		}

		// A replica this node shares is reached through the local target so
		// that its reservation applies here too.
		nqn := nvmf.ReplicaNQN(opts.HostNQN, dev.UUID())
		if opts.Target != nil && opts.sharedLocally(nqn) {
			sess, err := opts.Target.Connect(opts.HostNQN, opts.HostID, nqn)
			if err != nil {
				return err
			}
			c.attach(sess)
		} else {
			c.ep = deviceEndpoint{dev: dev}
		}
	}

	if got := c.ep.Size(); got != size {
		return nerrors.NewInvalidArgument(c.uri.Raw,
			fmt.Sprintf("child size %d does not match nexus size %d", got, size))
	}

	if c.session != nil && c.session.Identify().ReservationCapable && opts.ReservationsEnabled {
		c.resv = reservation.NewController(c.session, opts.ReservationKey, c.session.SubNQN(), opts.ReservationMetrics)
		_, err := reactor.Await(rc, reactor.Async(func() (reservation.Action, error) {
			return c.resv.Acquire(opts.Context)
		}))
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Child) attach(sess *nvmf.Session) {
	c.session = sess
	c.ep = sessionEndpoint{Session: sess, info: sess.Identify()}
}

func (c *Child) startKeepAlive(rc *reactor.Context) {
	sess := c.session
	ctx := c.opts.Context
	c.poller = rc.RegisterPoller("keepalive "+c.uri.Raw, c.opts.KeepAliveInterval, func(rc *reactor.Context) {
		if c.state != ChildOpen {
			return
		}
		_, err := reactor.Await(rc, reactor.Async(func() (struct{}, error) {
			return struct{}{}, sess.KeepAlive(ctx)
		}))
		if err != nil {
			c.Fault(rc, fmt.Errorf("keep-alive failed: %w", err))
		}
	})
}

// Fault moves an Open or Connecting child to Faulted. Faulted is sticky.
func (c *Child) Fault(rc *reactor.Context, cause error) {
	if c.state != ChildOpen && c.state != ChildConnecting {
		return
	}

	rc.UnregisterPoller(c.poller)
	c.poller = nil
	c.cause = cause
	c.setState(ChildFaulted)

	logger.Warn("Child faulted", logger.KeyNexus, c.nexus, logger.KeyChild, c.uri.Raw, logger.KeyReason, c.Reason())
	if c.opts.Metrics != nil {
		c.opts.Metrics.IncChildFault()
	}
	if c.onFault != nil {
		c.onFault(rc, c)
	}
}

func (c *Child) io(rc *reactor.Context, fn func(ctx context.Context, ep endpoint) error) error {
	if c.state != ChildOpen {
		return nerrors.Newf(nerrors.ErrFailedPrecondition, "child %s is %s", c.uri.Raw, c.state)
	}
	ep, ctx := c.ep, c.opts.Context
	_, err := reactor.Await(rc, reactor.Async(func() (struct{}, error) {
		return struct{}{}, fn(ctx, ep)
	}))
	return err
}

// ReadAt reads from the child. Only Open children serve I/O.
func (c *Child) ReadAt(rc *reactor.Context, p []byte, off uint64) error {
	return c.io(rc, func(ctx context.Context, ep endpoint) error { return ep.ReadAt(ctx, p, off) })
}

// WriteAt writes to the child. Only Open children serve I/O.
func (c *Child) WriteAt(rc *reactor.Context, p []byte, off uint64) error {
	return c.io(rc, func(ctx context.Context, ep endpoint) error { return ep.WriteAt(ctx, p, off) })
}

// Flush flushes the child.
func (c *Child) Flush(rc *reactor.Context) error {
	return c.io(rc, func(ctx context.Context, ep endpoint) error { return ep.Flush(ctx) })
}

// Close moves the child to Closed and drops its connection. With release
// set, a held reservation is released first.
func (c *Child) Close(rc *reactor.Context, release bool) {
	if c.state == ChildClosed {
		return
	}

	rc.UnregisterPoller(c.poller)
	c.poller = nil

	if release && c.resv != nil && c.session.Alive() {
		resv, ctx := c.resv, c.opts.Context
		_, err := reactor.Await(rc, reactor.Async(func() (struct{}, error) {
			return struct{}{}, resv.Release(ctx)
		}))
		if err != nil {
			logger.Warn("Reservation release failed", logger.KeyChild, c.uri.Raw, logger.Err(err))
		}
	}

	c.release()
	c.setState(ChildClosed)
}

// release drops the connection and any device the child created.
func (c *Child) release() {
	if c.ep != nil {
		_ = c.ep.Close()
	}
	if c.created != nil {
		c.opts.Devices.Remove(c.created.Name())
		_ = c.created.Close()
		c.created = nil
	}
}

// ChildInfo is a snapshot of a child.
type ChildInfo struct {
	URI    string     `json:"uri"`
	State  ChildState `json:"state"`
	Reason string     `json:"reason,omitempty"`
	Size   uint64     `json:"size"`
}

func (c *Child) info() ChildInfo {
	return ChildInfo{URI: c.uri.Raw, State: c.state, Reason: c.Reason(), Size: c.Size()}
}
