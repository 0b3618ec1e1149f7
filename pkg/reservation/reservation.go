// Package reservation implements the persistent-reservation handshake a nexus
// performs on every shared child: make sure this host is registered with the
// configured key, then take a write-exclusive reservation, preempting any
// other holder. The last nexus to connect always wins; a preempted host
// finds out through reservation conflicts on its next I/O.
package reservation

import (
	"context"
	"fmt"

	"github.com/marmos91/nexusd/internal/logger"
	nerrors "github.com/marmos91/nexusd/pkg/errors"
)

// DefaultKey is the registration key used when none is configured.
const DefaultKey uint64 = 0x12345678

// DynamicCntlID is the controller ID reported for hosts connected through the
// dynamic controller model.
const DynamicCntlID uint16 = 0xffff

// Type is a reservation type. Values follow the NVMe encoding.
type Type uint8

const (
	TypeNone           Type = 0
	TypeWriteExclusive Type = 1
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeWriteExclusive:
		return "write-exclusive"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Registrant is one entry of a reservation report.
type Registrant struct {
	HostID string `json:"host_id"`
	Key    uint64 `json:"key"`
	CntlID uint16 `json:"cntlid"`
	Holder bool   `json:"holder"`
}

// Report is the reservation state of a namespace.
type Report struct {
	Generation  uint32       `json:"generation"`
	Type        Type         `json:"type"`
	Registrants []Registrant `json:"registrants"`
}

// Holder returns the registrant holding the reservation, or nil.
func (r *Report) Holder() *Registrant {
	for i := range r.Registrants {
		if r.Registrants[i].Holder {
			return &r.Registrants[i]
		}
	}
	return nil
}

// Find returns the registration of hostID, or nil.
func (r *Report) Find(hostID string) *Registrant {
	for i := range r.Registrants {
		if r.Registrants[i].HostID == hostID {
			return &r.Registrants[i]
		}
	}
	return nil
}

// Namespace is the host-side view of a reservation-capable namespace. Calls
// block until the target answers.
type Namespace interface {
	HostID() string
	ReservationReport(ctx context.Context) (*Report, error)
	ReservationRegister(ctx context.Context, key uint64) error
	ReservationUnregister(ctx context.Context, key uint64) error
	ReservationAcquire(ctx context.Context, key uint64, t Type) error
	ReservationPreempt(ctx context.Context, key, preemptKey uint64, t Type) error
	ReservationRelease(ctx context.Context, key uint64, t Type) error
}

// Action is what Acquire had to do.
type Action int

const (
	// ActionHeld means this host already held the reservation.
	ActionHeld Action = iota
	// ActionAcquired means the namespace had no reservation.
	ActionAcquired
	// ActionPreempted means another host's reservation was preempted.
	ActionPreempted
)

func (a Action) String() string {
	switch a {
	case ActionHeld:
		return "held"
	case ActionAcquired:
		return "acquired"
	case ActionPreempted:
		return "preempted"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Metrics receives reservation outcomes. A nil Metrics disables collection.
type Metrics interface {
	ObserveAcquire(action string)
	IncConflict()
}

// Controller runs the register/acquire/preempt handshake on one namespace.
type Controller struct {
	ns       Namespace
	key      uint64
	resource string
	metrics  Metrics
}

// NewController creates a controller that registers with key. resource names
// the namespace in logs and errors.
func NewController(ns Namespace, key uint64, resource string, m Metrics) *Controller {
	if key == 0 {
		key = DefaultKey
	}
	return &Controller{ns: ns, key: key, resource: resource, metrics: m}
}

// Key returns the registration key.
func (c *Controller) Key() uint64 { return c.key }

// Acquire makes this host the write-exclusive holder. It is idempotent: when
// the host already holds the reservation with its key, nothing is changed.
// Whether a reservation is "ours" is decided by key and by this session's
// host ID, which is not stable across restarts.
func (c *Controller) Acquire(ctx context.Context) (Action, error) {
	self := c.ns.HostID()

	rep, err := c.ns.ReservationReport(ctx)
	if err != nil {
		return 0, c.wrap(err, "reservation report failed")
	}

	if reg := rep.Find(self); reg == nil || reg.Key != c.key {
		if err := c.ns.ReservationRegister(ctx, c.key); err != nil {
			return 0, c.wrap(err, "reservation register failed")
		}
		logger.Debug("Registered reservation key",
			logger.KeyNQN, c.resource, logger.KeyHostID, self, logger.ResvKey(c.key))
	}

	holder := rep.Holder()
	if holder != nil && holder.HostID == self && holder.Key == c.key && rep.Type == TypeWriteExclusive {
		c.observe(ActionHeld)
		return ActionHeld, nil
	}

	if holder == nil {
		err := c.ns.ReservationAcquire(ctx, c.key, TypeWriteExclusive)
		if err == nil {
			c.log(ActionAcquired, "")
			return ActionAcquired, nil
		}
		if !nerrors.IsReservationConflict(err) {
			return 0, c.wrap(err, "reservation acquire failed")
		}

		// Someone took it between the report and the acquire.
		if rep, err = c.ns.ReservationReport(ctx); err != nil {
			return 0, c.wrap(err, "reservation report failed")
		}
		if holder = rep.Holder(); holder == nil {
			return 0, c.wrap(nerrors.NewReservationConflict(c.resource), "reservation acquire failed")
		}
	}

	if err := c.ns.ReservationPreempt(ctx, c.key, holder.Key, TypeWriteExclusive); err != nil {
		return 0, c.wrap(err, "reservation preempt failed")
	}
	c.log(ActionPreempted, holder.HostID)
	return ActionPreempted, nil
}

// Release drops the reservation if this host holds it and unregisters.
// Used on orderly teardown only; failover relies on preemption.
func (c *Controller) Release(ctx context.Context) error {
	rep, err := c.ns.ReservationReport(ctx)
	if err != nil {
		return c.wrap(err, "reservation report failed")
	}

	self := c.ns.HostID()
	if holder := rep.Holder(); holder != nil && holder.HostID == self {
		if err := c.ns.ReservationRelease(ctx, c.key, rep.Type); err != nil {
			return c.wrap(err, "reservation release failed")
		}
	}
	if reg := rep.Find(self); reg != nil {
		if err := c.ns.ReservationUnregister(ctx, reg.Key); err != nil {
			return c.wrap(err, "reservation unregister failed")
		}
	}
	return nil
}

func (c *Controller) log(action Action, previous string) {
	c.observe(action)
	logger.Info("Reservation acquired",
		logger.KeyNQN, c.resource,
		logger.KeyHostID, c.ns.HostID(),
		logger.ResvKey(c.key),
		logger.KeyResvType, TypeWriteExclusive.String(),
		logger.KeyResvAction, action.String(),
		logger.KeyResvHolder, previous)
}

func (c *Controller) observe(action Action) {
	if c.metrics != nil {
		c.metrics.ObserveAcquire(action.String())
	}
}

func (c *Controller) wrap(err error, msg string) error {
	if nerrors.IsReservationConflict(err) && c.metrics != nil {
		c.metrics.IncConflict()
	}
	return &nerrors.Error{Code: nerrors.CodeOf(err), Message: msg, Resource: c.resource, Err: err}
}
