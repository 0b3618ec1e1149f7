package nvmf

import (
	"context"
	"sync"

	nerrors "github.com/marmos91/nexusd/pkg/errors"
)

// Transport connects hosts to remote subsystems.
type Transport interface {
	Dial(ctx context.Context, address, hostNQN, hostID, subnqn string) (*Session, error)
}

// Fabric is an in-process Transport: targets listen on an address string and
// hosts dial them directly. Several nodes in one process share a Fabric.
type Fabric struct {
	mu        sync.RWMutex
	listeners map[string]*Target
}

// NewFabric creates an empty fabric.
func NewFabric() *Fabric {
	return &Fabric{listeners: make(map[string]*Target)}
}

// Listen makes t reachable at its address.
func (f *Fabric) Listen(t *Target) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.listeners[t.Address()]; ok {
		return nerrors.NewAlreadyExists("listener", t.Address())
	}
	f.listeners[t.Address()] = t
	return nil
}

// Unlisten removes the listener at address. Existing sessions are unaffected.
func (f *Fabric) Unlisten(address string) {
	f.mu.Lock()
	delete(f.listeners, address)
	f.mu.Unlock()
}

// Dial connects to subnqn on the target listening at address.
func (f *Fabric) Dial(ctx context.Context, address, hostNQN, hostID, subnqn string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	t, ok := f.listeners[address]
	f.mu.RUnlock()

	if !ok {
		return nil, &nerrors.Error{Code: nerrors.ErrInternal, Message: "connection refused", Resource: address}
	}
	return t.Connect(hostNQN, hostID, subnqn)
}
