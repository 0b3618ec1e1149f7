// Package nvmf models an NVMe over Fabrics target and its hosts at the command
// level: subsystems addressed by NQN exporting one namespace each, dynamic
// controllers per connected host, persistent reservations and ANA path state.
// The wire encoding is not modelled; hosts reach targets through a Transport,
// whose shipped implementation is the in-process Fabric.
package nvmf

import (
	"sort"
	"strings"
	"sync"

	"github.com/marmos91/nexusd/internal/logger"
	"github.com/marmos91/nexusd/pkg/ana"
	nerrors "github.com/marmos91/nexusd/pkg/errors"
)

// DefaultHostNQN is the NQN prefix used for subsystems and hosts of a node.
const DefaultHostNQN = "nqn.2019-05.io.openebs"

// DefaultPort is the NVMe-oF service port.
const DefaultPort = 8420

// ReplicaNQN returns the NQN a replica is shared under.
func ReplicaNQN(hostNQN, uuid string) string {
	return hostNQN + ":" + uuid
}

// NexusNQN returns the NQN a nexus is published under.
func NexusNQN(hostNQN, uuid string) string {
	return hostNQN + ":nexus-" + uuid
}

// URI returns the nvmf:// URI of a subsystem served at address.
func URI(address, nqn string) string {
	return "nvmf://" + address + "/" + nqn
}

// ValidateNQN checks the basic NQN shape.
func ValidateNQN(nqn string) error {
	if !strings.HasPrefix(nqn, "nqn.") || len(nqn) > 223 {
		return nerrors.NewInvalidArgument(nqn, "invalid NQN")
	}
	return nil
}

// SubsystemOptions configures a new subsystem.
type SubsystemOptions struct {
	// UUID identifies the exported namespace.
	UUID string
	// ReservationCapable enables persistent reservations on the namespace.
	ReservationCapable bool
	// ANA, when set, is reported to hosts as the path state. Without it the
	// path is always optimized.
	ANA *ana.Controller
}

// Subsystem is an NVMe subsystem exporting a single namespace (NSID 1).
type Subsystem struct {
	nqn    string
	target *Target
	ns     *Namespace
	ana    *ana.Controller

	mu          sync.Mutex
	controllers map[uint16]*Session
	nextCntlID  uint16
	removed     bool
}

// NQN returns the subsystem NQN.
func (s *Subsystem) NQN() string { return s.nqn }

// Namespace returns the exported namespace.
func (s *Subsystem) Namespace() *Namespace { return s.ns }

// ANAState returns the path state hosts currently see.
func (s *Subsystem) ANAState() ana.State {
	if s.ana == nil {
		return ana.Optimized
	}
	return s.ana.State()
}

// Controllers returns the number of connected hosts.
func (s *Subsystem) Controllers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.controllers)
}

func (s *Subsystem) isRemoved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removed
}

func (s *Subsystem) connect(hostNQN, hostID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed {
		return nil, nerrors.NewNotFound("subsystem", s.nqn)
	}

	// Dynamic controller model: IDs are allocated in order and never 0 or
	// 0xffff.
	for {
		s.nextCntlID++
		if s.nextCntlID == 0 || s.nextCntlID == 0xffff {
			continue
		}
		if _, taken := s.controllers[s.nextCntlID]; !taken {
			break
		}
	}

	sess := &Session{sub: s, hostNQN: hostNQN, hostID: hostID, cntlID: s.nextCntlID}
	s.controllers[sess.cntlID] = sess
	return sess, nil
}

func (s *Subsystem) disconnect(sess *Session) {
	s.mu.Lock()
	delete(s.controllers, sess.cntlID)
	s.mu.Unlock()
}

// Target is the NVMe-oF target of a node, serving subsystems at one address.
type Target struct {
	address string

	mu         sync.RWMutex
	subsystems map[string]*Subsystem
	closed     bool
}

// NewTarget creates a target for the given listen address.
func NewTarget(address string) *Target {
	return &Target{
		address:    address,
		subsystems: make(map[string]*Subsystem),
	}
}

// Address returns the address the target serves.
func (t *Target) Address() string { return t.address }

// AddSubsystem exports backend as namespace 1 of a new subsystem.
func (t *Target) AddSubsystem(nqn string, backend Backend, opts SubsystemOptions) (*Subsystem, error) {
	if err := ValidateNQN(nqn); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, nerrors.New(nerrors.ErrFailedPrecondition, "target is closed")
	}
	if _, ok := t.subsystems[nqn]; ok {
		return nil, nerrors.NewAlreadyExists("subsystem", nqn)
	}

	sub := &Subsystem{
		nqn:         nqn,
		target:      t,
		ns:          newNamespace(1, opts.UUID, backend, opts.ReservationCapable, nqn),
		ana:         opts.ANA,
		controllers: make(map[uint16]*Session),
	}
	t.subsystems[nqn] = sub

	logger.Info("Subsystem added", logger.KeyNQN, nqn, logger.KeyAddress, t.address,
		"reservations", opts.ReservationCapable, "ana", opts.ANA != nil)
	return sub, nil
}

// RemoveSubsystem stops exporting nqn. Connected hosts lose their
// controllers.
func (t *Target) RemoveSubsystem(nqn string) error {
	t.mu.Lock()
	sub, ok := t.subsystems[nqn]
	delete(t.subsystems, nqn)
	t.mu.Unlock()

	if !ok {
		return nerrors.NewNotFound("subsystem", nqn)
	}

	sub.mu.Lock()
	sub.removed = true
	n := len(sub.controllers)
	sub.controllers = make(map[uint16]*Session)
	sub.mu.Unlock()

	logger.Info("Subsystem removed", logger.KeyNQN, nqn, logger.KeyCount, n)
	return nil
}

// Subsystem returns the subsystem with the given NQN.
func (t *Target) Subsystem(nqn string) (*Subsystem, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sub, ok := t.subsystems[nqn]
	return sub, ok
}

// SubsystemNQNs returns the NQNs of every exported subsystem, sorted.
func (t *Target) SubsystemNQNs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	nqns := make([]string, 0, len(t.subsystems))
	for nqn := range t.subsystems {
		nqns = append(nqns, nqn)
	}
	sort.Strings(nqns)
	return nqns
}

// Connect attaches a host controller to subnqn.
func (t *Target) Connect(hostNQN, hostID, subnqn string) (*Session, error) {
	if hostID == "" {
		return nil, nerrors.NewInvalidArgument(hostNQN, "host ID is required")
	}

	t.mu.RLock()
	closed := t.closed
	sub, ok := t.subsystems[subnqn]
	t.mu.RUnlock()

	if closed {
		return nil, nerrors.New(nerrors.ErrInternal, "connection refused")
	}
	if !ok {
		return nil, nerrors.NewNotFound("subsystem", subnqn)
	}

	sess, err := sub.connect(hostNQN, hostID)
	if err != nil {
		return nil, err
	}

	logger.Debug("Host connected", logger.KeyNQN, subnqn, logger.KeyHostNQN, hostNQN,
		logger.KeyHostID, hostID, logger.KeyCntlID, sess.cntlID)
	return sess, nil
}

// Close removes every subsystem and refuses new connections.
func (t *Target) Close() {
	t.mu.Lock()
	t.closed = true
	nqns := make([]string, 0, len(t.subsystems))
	for nqn := range t.subsystems {
		nqns = append(nqns, nqn)
	}
	t.mu.Unlock()

	for _, nqn := range nqns {
		_ = t.RemoveSubsystem(nqn)
	}
}

func (t *Target) isClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}
