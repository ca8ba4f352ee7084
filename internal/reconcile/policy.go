package reconcile

import "time"

// Defaults for the fuzzy echo matching.
const (
	DefaultEchoWindow      = 120 * time.Second
	DefaultDuplicateWindow = 3 * time.Second
	DefaultPendingLimit    = 100
)

// MatchPolicy parameterizes the best-effort content+time fingerprint used
// when the server does not round-trip the client temp id. Two identical
// messages from the same user inside EchoWindow can collapse into one; that
// is accepted behavior.
type MatchPolicy struct {
	// EchoWindow bounds how far an echo may be from its optimistic send.
	EchoWindow time.Duration
	// DuplicateWindow bounds re-delivery of an id-less frame.
	DuplicateWindow time.Duration
	// PendingLimit caps the optimistic send ring.
	PendingLimit int
}

// DefaultPolicy returns the standard windows.
func DefaultPolicy() MatchPolicy {
	return MatchPolicy{
		EchoWindow:      DefaultEchoWindow,
		DuplicateWindow: DefaultDuplicateWindow,
		PendingLimit:    DefaultPendingLimit,
	}
}

func (p MatchPolicy) withinEcho(a, b time.Time) bool {
	return within(a, b, p.EchoWindow)
}

func (p MatchPolicy) withinDuplicate(a, b time.Time) bool {
	return within(a, b, p.DuplicateWindow)
}

func within(a, b time.Time, window time.Duration) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return absDuration(a.Sub(b)) <= window
}
