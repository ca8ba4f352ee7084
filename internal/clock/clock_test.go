package clock

import (
	"slices"
	"testing"
	"time"
)

func TestManualRunsDueTimersInOrder(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	var order []string
	m.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	m.AfterFunc(time.Second, func() { order = append(order, "a") })
	stopped := m.AfterFunc(time.Second, func() { order = append(order, "never") })
	if !stopped.Stop() {
		t.Error("Stop() on a pending timer should report true")
	}

	m.Advance(1500 * time.Millisecond)
	if !slices.Equal(order, []string{"a"}) {
		t.Errorf("order = %v, want [a]", order)
	}
	if n := m.Active(); n != 1 {
		t.Errorf("Active() = %d, want 1", n)
	}

	m.Advance(time.Second)
	if !slices.Equal(order, []string{"a", "b"}) {
		t.Errorf("order = %v, want [a b]", order)
	}
	if n := m.Active(); n != 0 {
		t.Errorf("Active() = %d, want 0", n)
	}
	if got, want := m.Scheduled(), []time.Duration{2 * time.Second, time.Second, time.Second}; !slices.Equal(got, want) {
		t.Errorf("Scheduled() = %v, want %v", got, want)
	}
}
