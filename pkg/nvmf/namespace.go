package nvmf

import (
	"sync"

	nerrors "github.com/marmos91/nexusd/pkg/errors"
	"github.com/marmos91/nexusd/pkg/reservation"
)

// Backend is the storage behind an exported namespace.
type Backend interface {
	Size() uint64
	BlockSize() uint32
	ReadAt(p []byte, off uint64) error
	WriteAt(p []byte, off uint64) error
	Flush() error
}

// NamespaceInfo is what Identify Namespace returns.
type NamespaceInfo struct {
	NSID               uint32
	UUID               string
	Size               uint64
	BlockSize          uint32
	ReservationCapable bool
}

// Namespace is an exported namespace together with its persistent
// reservation state. Registrations are per host ID.
type Namespace struct {
	nsid     uint32
	uuid     string
	backend  Backend
	resvCap  bool
	resource string

	mu          sync.Mutex
	order       []string          // registration order, for stable reports
	registrants map[string]uint64 // host ID -> key
	preempted   map[string]bool   // hosts whose registration was preempted
	rtype       reservation.Type
	holder      string
	generation  uint32
}

func newNamespace(nsid uint32, uuid string, backend Backend, resvCap bool, resource string) *Namespace {
	return &Namespace{
		nsid:        nsid,
		uuid:        uuid,
		backend:     backend,
		resvCap:     resvCap,
		resource:    resource,
		registrants: make(map[string]uint64),
		preempted:   make(map[string]bool),
	}
}

// Info returns the identify data of the namespace.
func (ns *Namespace) Info() NamespaceInfo {
	return NamespaceInfo{
		NSID:               ns.nsid,
		UUID:               ns.uuid,
		Size:               ns.backend.Size(),
		BlockSize:          ns.backend.BlockSize(),
		ReservationCapable: ns.resvCap,
	}
}

func (ns *Namespace) conflict() error {
	return nerrors.NewReservationConflict(ns.resource)
}

// checkIO gates I/O by reservation state. A host whose registration was
// preempted fails every command until it registers again; under a
// write-exclusive reservation only the holder may write.
func (ns *Namespace) checkIO(hostID string, write bool) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.preempted[hostID] {
		return ns.conflict()
	}
	if write && ns.rtype == reservation.TypeWriteExclusive && ns.holder != "" && ns.holder != hostID {
		return ns.conflict()
	}
	return nil
}

func (ns *Namespace) register(hostID string, key uint64) error {
	if !ns.resvCap {
		return nerrors.New(nerrors.ErrFailedPrecondition, "namespace does not support reservations")
	}
	if key == 0 {
		return nerrors.NewInvalidArgument(ns.resource, "reservation key must be non-zero")
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()

	if _, ok := ns.registrants[hostID]; !ok {
		ns.order = append(ns.order, hostID)
	}
	ns.registrants[hostID] = key
	delete(ns.preempted, hostID)
	ns.generation++
	return nil
}

func (ns *Namespace) unregister(hostID string, key uint64) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	cur, ok := ns.registrants[hostID]
	if !ok || cur != key {
		return ns.conflict()
	}
	ns.removeLocked(hostID)
	ns.generation++
	return nil
}

// removeLocked drops a registration, releasing the reservation if the host
// held it.
func (ns *Namespace) removeLocked(hostID string) {
	delete(ns.registrants, hostID)
	for i, h := range ns.order {
		if h == hostID {
			ns.order = append(ns.order[:i], ns.order[i+1:]...)
			break
		}
	}
	if ns.holder == hostID {
		ns.holder = ""
		ns.rtype = reservation.TypeNone
	}
}

func (ns *Namespace) acquire(hostID string, key uint64, t reservation.Type) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if cur, ok := ns.registrants[hostID]; !ok || cur != key {
		return ns.conflict()
	}
	switch ns.holder {
	case "":
		ns.holder = hostID
		ns.rtype = t
		ns.generation++
		return nil
	case hostID:
		if ns.rtype == t {
			return nil
		}
	}
	return ns.conflict()
}

// preempt removes every other registration carrying preemptKey and makes the
// issuer the holder with type t when the holder was among them (or there was
// no holder).
func (ns *Namespace) preempt(hostID string, key, preemptKey uint64, t reservation.Type) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if cur, ok := ns.registrants[hostID]; !ok || cur != key {
		return ns.conflict()
	}

	holderPreempted := ns.holder == "" || ns.holder == hostID
	for _, h := range append([]string(nil), ns.order...) {
		if h == hostID || ns.registrants[h] != preemptKey {
			continue
		}
		if h == ns.holder {
			holderPreempted = true
		}
		ns.removeLocked(h)
		ns.preempted[h] = true
	}

	if holderPreempted {
		ns.holder = hostID
		ns.rtype = t
	}
	ns.generation++
	return nil
}

func (ns *Namespace) release(hostID string, key uint64, t reservation.Type) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if cur, ok := ns.registrants[hostID]; !ok || cur != key {
		return ns.conflict()
	}
	if ns.holder != hostID {
		return nil
	}
	if ns.rtype != t {
		return nerrors.NewInvalidArgument(ns.resource, "release type does not match reservation")
	}
	ns.holder = ""
	ns.rtype = reservation.TypeNone
	ns.generation++
	return nil
}

// Report returns the current reservation state.
func (ns *Namespace) Report() *reservation.Report {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	rep := &reservation.Report{
		Generation:  ns.generation,
		Type:        ns.rtype,
		Registrants: make([]reservation.Registrant, 0, len(ns.order)),
	}
	for _, h := range ns.order {
		rep.Registrants = append(rep.Registrants, reservation.Registrant{
			HostID: h,
			Key:    ns.registrants[h],
			CntlID: reservation.DynamicCntlID,
			Holder: h == ns.holder,
		})
	}
	return rep
}
