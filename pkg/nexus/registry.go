package nexus

import (
	"github.com/marmos91/nexusd/internal/logger"
	nerrors "github.com/marmos91/nexusd/pkg/errors"
	"github.com/marmos91/nexusd/pkg/reactor"
)

type registryKey struct{}

// registry holds the nexuses of one reactor. It lives in reactor-local
// storage, so only tasks on that reactor can reach it.
type registry struct {
	opts    *Options
	nexuses map[string]*Nexus
	order   []string
}

func registryOf(rc *reactor.Context) *registry {
	return rc.Local(registryKey{}, func() any {
		opts := Options{}.withDefaults()
		return &registry{opts: &opts, nexuses: make(map[string]*Nexus)}
	}).(*registry)
}

// Configure installs the nexus options on the calling reactor. Nexuses
// created before keep the options they were created with.
func Configure(rc *reactor.Context, opts Options) {
	opts = opts.withDefaults()
	registryOf(rc).opts = &opts
	logger.Debug("Nexus options configured", logger.KeyCore, rc.Core(), logger.KeyHostNQN, opts.HostNQN,
		logger.KeyHostID, opts.HostID, logger.ResvKey(opts.ReservationKey),
		"reservations", opts.ReservationsEnabled, "ana", opts.ANAEnabled)
}

// HostID returns the host ID the calling reactor's nexuses connect with.
func HostID(rc *reactor.Context) string {
	return registryOf(rc).opts.HostID
}

// Lookup finds a nexus by UUID or name.
func Lookup(rc *reactor.Context, id string) (*Nexus, error) {
	reg := registryOf(rc)
	if n, ok := reg.nexuses[id]; ok {
		return n, nil
	}
	for _, n := range reg.nexuses {
		if n.name == id {
			return n, nil
		}
	}
	return nil, nerrors.NewNotFound("nexus", id)
}

// List returns every nexus in creation order.
func List(rc *reactor.Context) []*Nexus {
	reg := registryOf(rc)
	out := make([]*Nexus, 0, len(reg.order))
	for _, id := range reg.order {
		out = append(out, reg.nexuses[id])
	}
	return out
}

// Destroy tears down the nexus with the given UUID or name. Destroying a
// nexus that does not exist succeeds.
func Destroy(rc *reactor.Context, id string) error {
	n, err := Lookup(rc, id)
	if nerrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return n.Destroy(rc)
}

func (reg *registry) add(n *Nexus) {
	reg.nexuses[n.uuid] = n
	reg.order = append(reg.order, n.uuid)
}

func (reg *registry) remove(id string) {
	delete(reg.nexuses, id)
	for i, u := range reg.order {
		if u == id {
			reg.order = append(reg.order[:i], reg.order[i+1:]...)
			break
		}
	}
}
