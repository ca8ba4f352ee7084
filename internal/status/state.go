package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/pulse/internal/bus"
)

// State is the connection status of one conversation socket as exposed to
// the view.
type State string

const (
	Connecting   State = "connecting"
	Connected    State = "connected"
	Disconnected State = "disconnected"
	Error        State = "error"
)

// validTransitions defines allowed state transitions. A failed dial or a
// transport fault passes through Error before the close moves it to
// Disconnected; only Disconnected retries.
var validTransitions = map[State][]State{
	Disconnected: {Connecting},
	Connecting:   {Connected, Error, Disconnected},
	Connected:    {Disconnected, Error},
	Error:        {Disconnected, Connecting},
}

// Machine tracks and enforces connection state transitions.
type Machine struct {
	mu      sync.RWMutex
	key     string
	current State
	bus     *bus.Bus
}

// NewMachine creates a machine for the socket registered under key,
// starting Disconnected.
func NewMachine(key string, b *bus.Bus) *Machine {
	return &Machine{
		key:     key,
		current: Disconnected,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
// Moving to the current state is a no-op.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.bus.Emit(bus.KindStatusChanged, StatusChange{
		Key:  m.key,
		From: from,
		To:   to,
	})
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	Key  string
	From State
	To   State
}
