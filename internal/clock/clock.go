// Package clock provides the cancellable timer handles used by reconnect
// backoff, typing debounce and notification dismissal, plus a manual clock
// for tests.
package clock

import (
	"slices"
	"sync"
	"time"
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d.
type AfterFunc func(d time.Duration, f func()) Timer

// System schedules on the real clock.
func System(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Manual is a clock whose time only moves when Advance is called. Callbacks
// run synchronously inside Advance, in due order.
type Manual struct {
	mu        sync.Mutex
	now       time.Time
	timers    []*manualTimer
	scheduled []time.Duration
}

type manualTimer struct {
	m       *Manual
	due     time.Time
	f       func()
	stopped bool
	fired   bool
}

// NewManual returns a manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the manual clock's current time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc implements the AfterFunc signature.
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{m: m, due: m.now.Add(d), f: f}
	m.timers = append(m.timers, t)
	m.scheduled = append(m.scheduled, d)
	return t
}

// Advance moves time forward by d and runs every timer that became due.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	var due []*manualTimer
	for _, t := range m.timers {
		if !t.stopped && !t.fired && !t.due.After(m.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	m.mu.Unlock()

	slices.SortStableFunc(due, func(a, b *manualTimer) int { return a.due.Compare(b.due) })
	for _, t := range due {
		t.f()
	}
}

// Scheduled returns every delay passed to AfterFunc, in call order.
func (m *Manual) Scheduled() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.scheduled)
}

// Active returns the number of timers that are neither stopped nor fired.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
