package status

import (
	"testing"

	"github.com/matheus3301/pulse/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine("conversation:c1", nil)
	if m.Current() != Disconnected {
		t.Errorf("initial state = %s, want disconnected", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Disconnected, Connecting},
		{Connecting, Connected},
		{Connecting, Error},
		{Connecting, Disconnected},
		{Connected, Disconnected},
		{Connected, Error},
		{Error, Disconnected},
		{Error, Connecting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine("k", nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine("k", nil)
	if err := m.Transition(Connected); err == nil {
		t.Error("Transition(disconnected -> connected) should fail")
	}
	if m.Current() != Disconnected {
		t.Errorf("state = %s, want disconnected (should not have changed)", m.Current())
	}
}

func TestSameStateIsNoop(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("transport.", 10)
	defer unsub()

	m := NewMachine("k", b)
	if err := m.Transition(Disconnected); err != nil {
		t.Fatalf("Transition(disconnected -> disconnected) error = %v", err)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected event %v", evt)
	default:
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("transport.", 10)
	defer unsub()

	m := NewMachine("conversation:c1", b)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindStatusChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.Key != "conversation:c1" || change.From != Disconnected || change.To != Connecting {
		t.Errorf("change = %+v, want conversation:c1 disconnected -> connecting", change)
	}
}

// TestFailedDialCycle walks a dial failure followed by a successful retry:
// disconnected → connecting → error → disconnected → connecting → connected
func TestFailedDialCycle(t *testing.T) {
	m := NewMachine("k", nil)

	steps := []State{Connecting, Error, Disconnected, Connecting, Connected}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Connected {
		t.Errorf("final state = %s, want connected", m.Current())
	}
}

// TestErrorAloneDoesNotReconnect verifies the error state cannot jump back to
// connected without a new dial.
func TestErrorAloneDoesNotReconnect(t *testing.T) {
	m := NewMachine("k", nil)
	walkTo(t, m, Error)

	if err := m.Transition(Connected); err == nil {
		t.Fatal("Transition(error -> connected) should fail")
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Disconnected: {},
		Connecting:   {Connecting},
		Connected:    {Connecting, Connected},
		Error:        {Connecting, Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
