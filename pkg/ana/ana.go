// Package ana tracks the Asymmetric Namespace Access state a published nexus
// advertises to initiators on its path.
package ana

import (
	"fmt"
	"strings"
	"sync/atomic"

	nerrors "github.com/marmos91/nexusd/pkg/errors"
)

// State is an ANA path state. Values follow the NVMe ANA state encoding.
type State int32

const (
	Optimized    State = 0x1
	NonOptimized State = 0x2
	Inaccessible State = 0x3
)

func (s State) String() string {
	switch s {
	case Optimized:
		return "optimized"
	case NonOptimized:
		return "non-optimized"
	case Inaccessible:
		return "inaccessible"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Valid reports whether s is one of the three supported states.
func (s State) Valid() bool {
	return s == Optimized || s == NonOptimized || s == Inaccessible
}

// ParseState parses a state name. Both "non-optimized" and "non_optimized"
// are accepted.
func ParseState(name string) (State, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "optimized":
		return Optimized, nil
	case "non-optimized", "nonoptimized":
		return NonOptimized, nil
	case "inaccessible":
		return Inaccessible, nil
	default:
		return 0, nerrors.NewInvalidArgument(name, "unknown ANA state")
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ANA state %d", int32(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	v, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Controller holds the state of one published path. Reads and writes are
// atomic, so connected initiators observe a change as soon as Set returns.
type Controller struct {
	state atomic.Int32
}

// NewController returns a controller in the Optimized state.
func NewController() *Controller {
	c := &Controller{}
	c.state.Store(int32(Optimized))
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Set changes the state. Setting the current state is a no-op; the return
// value reports whether the state changed.
func (c *Controller) Set(s State) (bool, error) {
	if !s.Valid() {
		return false, nerrors.NewInvalidArgument(s.String(), "unknown ANA state")
	}
	old := State(c.state.Swap(int32(s)))
	return old != s, nil
}
