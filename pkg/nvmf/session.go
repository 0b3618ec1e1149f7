package nvmf

import (
	"context"
	"sync/atomic"

	"github.com/marmos91/nexusd/pkg/ana"
	nerrors "github.com/marmos91/nexusd/pkg/errors"
	"github.com/marmos91/nexusd/pkg/reservation"
)

// Session is a host's controller on a subsystem. It is safe for concurrent
// use and its calls block until the target answers.
type Session struct {
	sub     *Subsystem
	hostNQN string
	hostID  string
	cntlID  uint16
	closed  atomic.Bool
}

var _ reservation.Namespace = (*Session)(nil)

// HostID returns the host identifier the session connected with.
func (s *Session) HostID() string { return s.hostID }

// HostNQN returns the host NQN.
func (s *Session) HostNQN() string { return s.hostNQN }

// CntlID returns the controller ID the target allocated.
func (s *Session) CntlID() uint16 { return s.cntlID }

// SubNQN returns the NQN of the connected subsystem.
func (s *Session) SubNQN() string { return s.sub.nqn }

// Identify returns the namespace identify data.
func (s *Session) Identify() NamespaceInfo {
	return s.sub.ns.Info()
}

// ANAState returns the path state as the target reports it right now.
func (s *Session) ANAState() ana.State {
	return s.sub.ANAState()
}

// Alive reports whether the controller still exists on the target.
func (s *Session) Alive() bool {
	return !s.closed.Load() && !s.sub.isRemoved() && !s.sub.target.isClosed()
}

func (s *Session) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.Alive() {
		return &nerrors.Error{Code: nerrors.ErrInternal, Message: "controller disconnected", Resource: s.sub.nqn}
	}
	return nil
}

func (s *Session) checkIO(ctx context.Context, write bool) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if s.ANAState() == ana.Inaccessible {
		return &nerrors.Error{Code: nerrors.ErrFailedPrecondition, Message: "ANA path inaccessible", Resource: s.sub.nqn}
	}
	return s.sub.ns.checkIO(s.hostID, write)
}

// ReadAt reads len(p) bytes at off from namespace 1.
func (s *Session) ReadAt(ctx context.Context, p []byte, off uint64) error {
	if err := s.checkIO(ctx, false); err != nil {
		return err
	}
	return s.sub.ns.backend.ReadAt(p, off)
}

// WriteAt writes p at off to namespace 1.
func (s *Session) WriteAt(ctx context.Context, p []byte, off uint64) error {
	if err := s.checkIO(ctx, true); err != nil {
		return err
	}
	return s.sub.ns.backend.WriteAt(p, off)
}

// Flush flushes namespace 1.
func (s *Session) Flush(ctx context.Context) error {
	if err := s.checkIO(ctx, true); err != nil {
		return err
	}
	return s.sub.ns.backend.Flush()
}

// KeepAlive fails once the controller is gone.
func (s *Session) KeepAlive(ctx context.Context) error {
	return s.check(ctx)
}

func (s *Session) ReservationReport(ctx context.Context) (*reservation.Report, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.sub.ns.Report(), nil
}

func (s *Session) ReservationRegister(ctx context.Context, key uint64) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.sub.ns.register(s.hostID, key)
}

func (s *Session) ReservationUnregister(ctx context.Context, key uint64) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.sub.ns.unregister(s.hostID, key)
}

func (s *Session) ReservationAcquire(ctx context.Context, key uint64, t reservation.Type) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.sub.ns.acquire(s.hostID, key, t)
}

func (s *Session) ReservationPreempt(ctx context.Context, key, preemptKey uint64, t reservation.Type) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.sub.ns.preempt(s.hostID, key, preemptKey, t)
}

func (s *Session) ReservationRelease(ctx context.Context, key uint64, t reservation.Type) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.sub.ns.release(s.hostID, key, t)
}

// Close disconnects the controller. Registrations survive disconnects.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.sub.disconnect(s)
	return nil
}
