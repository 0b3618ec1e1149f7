package nexus

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/nexusd/pkg/bdev"
	"github.com/marmos91/nexusd/pkg/nvmf"
	"github.com/marmos91/nexusd/pkg/reservation"
)

// DefaultKeepAliveInterval is how often networked children check their
// session when no interval is configured.
const DefaultKeepAliveInterval = time.Second

// Metrics receives nexus observations. A nil Metrics disables collection.
type Metrics interface {
	ObserveIO(op string, bytes int, d time.Duration, err error)
	ObserveState(state string)
	IncChildFault()
}

// Options is the node-wide nexus configuration. It is installed on a
// reactor with Configure and is read-only afterwards.
type Options struct {
	// HostNQN prefixes subsystem NQNs and identifies this node as a host.
	HostNQN string
	// HostID identifies this node to targets. It is generated per process.
	HostID string

	// ReservationKey is the key every nexus on the node registers with.
	ReservationKey uint64
	// ReservationsEnabled turns the reservation handshake on for
	// reservation-capable children.
	ReservationsEnabled bool
	// ANAEnabled attaches an ANA controller to published nexuses.
	ANAEnabled bool

	KeepAliveInterval time.Duration

	Devices   *bdev.Registry
	Target    *nvmf.Target
	Transport nvmf.Transport

	Metrics            Metrics
	ReservationMetrics reservation.Metrics

	// Context bounds the blocking device and fabric calls children make.
	Context context.Context
}

func (o Options) withDefaults() Options {
	if o.HostNQN == "" {
		o.HostNQN = nvmf.DefaultHostNQN
	}
	if o.HostID == "" {
		o.HostID = uuid.NewString()
	}
	if o.ReservationKey == 0 {
		o.ReservationKey = reservation.DefaultKey
	}
	if o.KeepAliveInterval <= 0 {
		o.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if o.Devices == nil {
		o.Devices = bdev.NewRegistry()
	}
	if o.Context == nil {
		o.Context = context.Background()
	}
	return o
}

func (o *Options) sharedLocally(nqn string) bool {
	_, ok := o.Target.Subsystem(nqn)
	return ok
}
