// Package nexus implements the virtual block device that aggregates replica
// children behind one address.
//
// A nexus and its children are owned by the reactor they were created on.
// They live in that reactor's local storage and every operation takes the
// reactor's *reactor.Context, so callers on other goroutines reach them only
// through the task bridge. Writes fan out to every Open child and succeed
// only when all of them do; reads are served by the first Open child.
package nexus

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/nexusd/internal/logger"
	"github.com/marmos91/nexusd/pkg/ana"
	"github.com/marmos91/nexusd/pkg/bdev"
	nerrors "github.com/marmos91/nexusd/pkg/errors"
	"github.com/marmos91/nexusd/pkg/nvmf"
	"github.com/marmos91/nexusd/pkg/pool"
	"github.com/marmos91/nexusd/pkg/reactor"
)

// State is the state of a nexus.
type State int

const (
	// StateInit means children are still connecting.
	StateInit State = iota
	// StateOpen means every child is Open.
	StateOpen
	// StateDegraded means at least one child is Open and one is not.
	StateDegraded
	// StateFaulted means no child is Open.
	StateFaulted
	// StateDestroyed is terminal.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateOpen:
		return "open"
	case StateDegraded:
		return "degraded"
	case StateFaulted:
		return "faulted"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for v := StateInit; v <= StateDestroyed; v++ {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown nexus state %q", text)
}

// Spec describes a nexus to create.
type Spec struct {
	// UUID identifies the nexus. Generated when empty.
	UUID string
	// Name defaults to the UUID.
	Name     string
	Size     uint64
	Children []string
}

// Nexus is a virtual block device over one or more children.
type Nexus struct {
	uuid      string
	name      string
	size      uint64
	blockSize uint32
	uris      []string
	children  []*Child
	state     State

	opts  *Options
	owner *reactor.Reactor

	ana      *ana.Controller
	shareNQN string
	shareURI string
}

// UUID returns the nexus UUID.
func (n *Nexus) UUID() string { return n.uuid }

// Name returns the nexus name.
func (n *Nexus) Name() string { return n.name }

// Size returns the size in bytes.
func (n *Nexus) Size() uint64 { return n.size }

// BlockSize returns the largest block size among the children.
func (n *Nexus) BlockSize() uint32 { return n.blockSize }

// State returns the current state.
func (n *Nexus) State() State { return n.state }

// Children returns the children in creation order.
func (n *Nexus) Children() []*Child { return slices.Clone(n.children) }

// ShareURI returns the URI the nexus is published under, or "".
func (n *Nexus) ShareURI() string { return n.shareURI }

// Create creates and opens a nexus on the calling reactor. Children connect
// concurrently. A child whose size differs from spec.Size aborts creation
// with an invalid-argument error and every child is released. Creation fails
// when no child could be opened; when only some could, the nexus is Degraded.
// Creating a nexus that already exists with the same size and children
// returns the existing one.
func Create(rc *reactor.Context, spec Spec) (*Nexus, error) {
	reg := registryOf(rc)

	if spec.UUID == "" {
		spec.UUID = uuid.NewString()
	} else if _, err := uuid.Parse(spec.UUID); err != nil {
		return nil, nerrors.NewInvalidArgument(spec.UUID, "nexus uuid is not a valid uuid")
	}
	if spec.Name == "" {
		spec.Name = spec.UUID
	}

	if n, ok := reg.nexuses[spec.UUID]; ok {
		return n.recreate(spec)
	}
	if n, err := Lookup(rc, spec.Name); err == nil {
		return nil, nerrors.NewAlreadyExists("nexus", n.name)
	}

	if spec.Size == 0 {
		return nil, nerrors.NewInvalidArgument(spec.Name, "nexus size must be positive")
	}
	if len(spec.Children) == 0 {
		return nil, nerrors.NewInvalidArgument(spec.Name, "nexus needs at least one child")
	}

	n := &Nexus{
		uuid:  spec.UUID,
		name:  spec.Name,
		size:  spec.Size,
		uris:  slices.Clone(spec.Children),
		state: StateInit,
		opts:  reg.opts,
		owner: rc.Reactor(),
	}

	seen := make(map[string]bool, len(spec.Children))
	for _, raw := range spec.Children {
		if seen[raw] {
			return nil, nerrors.NewInvalidArgument(raw, "duplicate child uri")
		}
		seen[raw] = true

		uri, err := ParseChildURI(raw)
		if err != nil {
			return nil, err
		}
		c := newChild(uri, n.name, n.opts)
		c.onFault = func(rc *reactor.Context, _ *Child) { n.updateState() }
		n.children = append(n.children, c)
	}

	// Reserve the identity while children connect.
	reg.add(n)

	start := time.Now()
	futs := make([]*reactor.Future[struct{}], len(n.children))
	for i, c := range n.children {
		futs[i] = reactor.SpawnFuture(rc, func(rc *reactor.Context) (struct{}, error) {
			return struct{}{}, c.Connect(rc, n.size)
		})
	}

	var firstErr, sizeErr error
	for i, f := range futs {
		if _, err := reactor.Await(rc, f); err != nil {
			logger.Warn("Child connect failed", logger.KeyNexus, n.name, logger.KeyChild, n.children[i].URI(), logger.Err(err))
			if firstErr == nil {
				firstErr = err
			}
			if sizeErr == nil && nerrors.IsInvalidArgument(err) {
				sizeErr = err
			}
		}
	}

	switch {
	case sizeErr != nil:
		n.abort(rc)
		return nil, sizeErr
	case n.openCount() == 0:
		n.abort(rc)
		return nil, nerrors.Wrap(nerrors.CodeOf(firstErr), firstErr, "no usable children for nexus "+n.name)
	}

	for _, c := range n.children {
		if c.state == ChildOpen && c.ep.BlockSize() > n.blockSize {
			n.blockSize = c.ep.BlockSize()
		}
	}
	n.updateState()

	logger.Info("Nexus created", logger.KeyNexus, n.name, logger.KeyUUID, n.uuid, logger.Size(n.size),
		logger.KeyState, n.state.String(), logger.KeyCount, len(n.children),
		logger.KeyDurationMs, time.Since(start).Milliseconds())
	return n, nil
}

func (n *Nexus) recreate(spec Spec) (*Nexus, error) {
	if n.state == StateInit {
		return nil, nerrors.Newf(nerrors.ErrFailedPrecondition, "nexus %s is being created", n.name)
	}
	if n.size != spec.Size || n.name != spec.Name || !slices.Equal(n.uris, spec.Children) {
		return nil, nerrors.NewAlreadyExists("nexus", n.uuid)
	}
	return n, nil
}

// abort releases every child of a nexus whose creation failed.
func (n *Nexus) abort(rc *reactor.Context) {
	for _, c := range n.children {
		c.Close(rc, true)
	}
	n.state = StateDestroyed
	registryOf(rc).remove(n.uuid)
}

func (n *Nexus) openCount() int {
	open := 0
	for _, c := range n.children {
		if c.state == ChildOpen {
			open++
		}
	}
	return open
}

func (n *Nexus) updateState() {
	if n.state == StateDestroyed {
		return
	}

	open := n.openCount()
	next := StateFaulted
	switch {
	case open > 0 && open == len(n.children):
		next = StateOpen
	case open > 0:
		next = StateDegraded
	}
	if next == n.state {
		return
	}

	logger.Info("Nexus state changed", logger.KeyNexus, n.name, "from", n.state.String(), logger.KeyState, next.String())
	n.state = next
	if n.opts.Metrics != nil {
		n.opts.Metrics.ObserveState(next.String())
	}
}

func (n *Nexus) checkIO(length int, off uint64) error {
	switch n.state {
	case StateDestroyed:
		return nerrors.NewNotFound("nexus", n.name)
	case StateFaulted:
		// A nexus that lost its children to another host's reservation keeps
		// reporting the conflict rather than its own state.
		if cause := n.conflictCause(); cause != nil {
			return &nerrors.Error{
				Code:     nerrors.ErrReservationConflict,
				Message:  "nexus is faulted",
				Resource: n.name,
				Err:      cause,
			}
		}
		return nerrors.Newf(nerrors.ErrFailedPrecondition, "nexus %s is %s", n.name, n.state)
	case StateInit:
		return nerrors.Newf(nerrors.ErrFailedPrecondition, "nexus %s is %s", n.name, n.state)
	}
	return bdev.CheckRange(n.name, n.size, off, length)
}

// conflictCause returns the fault cause of the first child that was faulted
// by a reservation conflict, or nil.
func (n *Nexus) conflictCause() error {
	for _, c := range n.children {
		if c.state == ChildFaulted && nerrors.IsReservationConflict(c.cause) {
			return c.cause
		}
	}
	return nil
}

func (n *Nexus) observe(op string, bytes int, start time.Time, err error) {
	if n.opts.Metrics != nil {
		n.opts.Metrics.ObserveIO(op, bytes, time.Since(start), err)
	}
}

// fanOut runs fn on every Open child concurrently, faults exactly the
// children that failed, and succeeds only if all of them succeeded.
func (n *Nexus) fanOut(rc *reactor.Context, op string, fn func(rc *reactor.Context, c *Child) error) error {
	var targets []*Child
	for _, c := range n.children {
		if c.state == ChildOpen {
			targets = append(targets, c)
		}
	}

	futs := make([]*reactor.Future[struct{}], len(targets))
	for i, c := range targets {
		futs[i] = reactor.SpawnFuture(rc, func(rc *reactor.Context) (struct{}, error) {
			return struct{}{}, fn(rc, c)
		})
	}

	var errs []error
	for i, f := range futs {
		if _, err := reactor.Await(rc, f); err != nil {
			targets[i].Fault(rc, fmt.Errorf("%s failed: %w", op, err))
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return n.ioError(op, errs, len(targets))
}

// ioError summarises child failures. A reservation conflict on any child
// makes the whole operation a reservation conflict.
func (n *Nexus) ioError(op string, errs []error, issued int) error {
	cause := errs[0]
	for _, err := range errs {
		if nerrors.IsReservationConflict(err) {
			cause = err
			break
		}
	}
	code := nerrors.CodeOf(cause)
	if code == nerrors.ErrFailedPrecondition || code == nerrors.ErrInvalidArgument {
		code = nerrors.ErrInternal
	}
	return &nerrors.Error{
		Code:     code,
		Message:  fmt.Sprintf("%s failed on %d of %d children", op, len(errs), issued),
		Resource: n.name,
		Err:      cause,
	}
}

// Write writes p at off to every Open child.
func (n *Nexus) Write(rc *reactor.Context, p []byte, off uint64) error {
	if err := n.checkIO(len(p), off); err != nil {
		return err
	}
	start := time.Now()
	err := n.fanOut(rc, "write", func(rc *reactor.Context, c *Child) error {
		return c.WriteAt(rc, p, off)
	})
	n.observe("write", len(p), start, err)
	return err
}

// Read reads from the first Open child, failing over to the next Open child
// when a read fails. The failed child is faulted.
func (n *Nexus) Read(rc *reactor.Context, p []byte, off uint64) error {
	if err := n.checkIO(len(p), off); err != nil {
		return err
	}

	start := time.Now()
	var errs []error
	for _, c := range n.children {
		if c.state != ChildOpen {
			continue
		}
		err := c.ReadAt(rc, p, off)
		if err == nil {
			n.observe("read", len(p), start, nil)
			return nil
		}
		c.Fault(rc, fmt.Errorf("read failed: %w", err))
		errs = append(errs, err)
	}

	var err error
	if len(errs) == 0 {
		err = nerrors.Newf(nerrors.ErrFailedPrecondition, "nexus %s has no open children", n.name)
	} else {
		err = n.ioError("read", errs, len(errs))
	}
	n.observe("read", len(p), start, err)
	return err
}

// Flush flushes every Open child.
func (n *Nexus) Flush(rc *reactor.Context) error {
	if err := n.checkIO(0, 0); err != nil {
		return err
	}
	start := time.Now()
	err := n.fanOut(rc, "flush", func(rc *reactor.Context, c *Child) error {
		return c.Flush(rc)
	})
	n.observe("flush", 0, start, err)
	return err
}

// Share publishes the nexus over proto and returns its URI. Publishing over
// nvmf exports subsystem <host-nqn>:nexus-<uuid> with the ANA state set to
// Optimized. Sharing with the current protocol returns the existing URI;
// ShareNone unpublishes.
func (n *Nexus) Share(rc *reactor.Context, proto pool.ShareProtocol) (string, error) {
	if n.state == StateDestroyed {
		return "", nerrors.NewNotFound("nexus", n.name)
	}

	switch proto {
	case pool.ShareNone:
		return "", n.Unshare(rc)
	case pool.ShareNvmf:
	default:
		return "", nerrors.NewInvalidArgument(proto.String(), "unsupported share protocol")
	}

	if n.shareURI != "" {
		return n.shareURI, nil
	}
	if n.opts.Target == nil {
		return "", nerrors.New(nerrors.ErrFailedPrecondition, "no nvmf target configured")
	}

	var ctrl *ana.Controller
	if n.opts.ANAEnabled {
		ctrl = ana.NewController()
	}

	nqn := nvmf.NexusNQN(n.opts.HostNQN, n.uuid)
	be := &backend{owner: n.owner, uuid: n.uuid, size: n.size, blockSize: n.blockSize}
	if _, err := n.opts.Target.AddSubsystem(nqn, be, nvmf.SubsystemOptions{UUID: n.uuid, ANA: ctrl}); err != nil {
		return "", err
	}

	n.ana = ctrl
	n.shareNQN = nqn
	n.shareURI = nvmf.URI(n.opts.Target.Address(), nqn)

	logger.Info("Nexus published", logger.KeyNexus, n.name, logger.KeyShareURI, n.shareURI,
		logger.KeyANAState, n.anaState().String())
	return n.shareURI, nil
}

// Unshare stops publishing the nexus. Unsharing an unpublished nexus
// succeeds.
func (n *Nexus) Unshare(rc *reactor.Context) error {
	if n.shareNQN == "" {
		return nil
	}
	if err := n.opts.Target.RemoveSubsystem(n.shareNQN); err != nil && !nerrors.IsNotFound(err) {
		return err
	}
	logger.Info("Nexus unpublished", logger.KeyNexus, n.name, logger.KeyShareURI, n.shareURI)
	n.ana = nil
	n.shareNQN = ""
	n.shareURI = ""
	return nil
}

func (n *Nexus) anaState() ana.State {
	if n.ana == nil {
		return ana.Optimized
	}
	return n.ana.State()
}

// SetANAState changes the path state of a published nexus. Setting the
// current state is a no-op. Connected initiators see the new state on their
// next query.
func (n *Nexus) SetANAState(rc *reactor.Context, s ana.State) error {
	if n.shareURI == "" {
		return nerrors.Newf(nerrors.ErrFailedPrecondition, "nexus %s is not published", n.name)
	}
	if n.ana == nil {
		return nerrors.Newf(nerrors.ErrFailedPrecondition, "ANA reporting is disabled for nexus %s", n.name)
	}

	changed, err := n.ana.Set(s)
	if err != nil {
		return err
	}
	if changed {
		logger.Info("Nexus ANA state changed", logger.KeyNexus, n.name, logger.KeyANAState, s.String())
	}
	return nil
}

// ANAState returns the path state of a published nexus.
func (n *Nexus) ANAState(rc *reactor.Context) (ana.State, error) {
	if n.shareURI == "" {
		return 0, nerrors.Newf(nerrors.ErrFailedPrecondition, "nexus %s is not published", n.name)
	}
	if n.ana == nil {
		return 0, nerrors.Newf(nerrors.ErrFailedPrecondition, "ANA reporting is disabled for nexus %s", n.name)
	}
	return n.ana.State(), nil
}

// RemoveChild closes and removes the child with the given URI, releasing
// its reservation. The last Open child cannot be removed.
func (n *Nexus) RemoveChild(rc *reactor.Context, uri string) error {
	if n.state == StateDestroyed {
		return nerrors.NewNotFound("nexus", n.name)
	}

	idx := slices.IndexFunc(n.children, func(c *Child) bool { return c.URI() == uri })
	if idx < 0 {
		return nerrors.NewNotFound("child", uri)
	}
	c := n.children[idx]
	if c.state == ChildOpen && n.openCount() == 1 {
		return nerrors.Newf(nerrors.ErrFailedPrecondition, "cannot remove the last open child of nexus %s", n.name)
	}

	c.Close(rc, true)
	n.children = slices.Delete(n.children, idx, idx+1)
	n.uris = slices.DeleteFunc(n.uris, func(u string) bool { return u == uri })
	n.updateState()

	logger.Info("Child removed", logger.KeyNexus, n.name, logger.KeyChild, uri)
	return nil
}

// Destroy unpublishes the nexus, releases reservations and closes every
// child. Destroying twice is a no-op.
func (n *Nexus) Destroy(rc *reactor.Context) error {
	if n.state == StateDestroyed {
		return nil
	}
	if err := n.Unshare(rc); err != nil {
		return err
	}
	for _, c := range n.children {
		c.Close(rc, true)
	}
	n.state = StateDestroyed
	registryOf(rc).remove(n.uuid)
	if n.opts.Metrics != nil {
		n.opts.Metrics.ObserveState(StateDestroyed.String())
	}

	logger.Info("Nexus destroyed", logger.KeyNexus, n.name, logger.KeyUUID, n.uuid)
	return nil
}

// Info is a snapshot of a nexus.
type Info struct {
	UUID     string      `json:"uuid"`
	Name     string      `json:"name"`
	Size     uint64      `json:"size"`
	State    State       `json:"state"`
	Children []ChildInfo `json:"children"`
	ShareURI string      `json:"share_uri,omitempty"`
	ANAState string      `json:"ana_state,omitempty"`
}

// Info returns a snapshot of the nexus.
func (n *Nexus) Info() Info {
	info := Info{
		UUID:     n.uuid,
		Name:     n.name,
		Size:     n.size,
		State:    n.state,
		Children: make([]ChildInfo, 0, len(n.children)),
		ShareURI: n.shareURI,
	}
	for _, c := range n.children {
		info.Children = append(info.Children, c.info())
	}
	if n.ana != nil {
		info.ANAState = n.ana.State().String()
	}
	return info
}
