package reconcile

import (
	"strings"
	"time"

	"github.com/matheus3301/pulse/internal/chat"
)

// PendingRing holds the most recent optimistic sends until they are matched
// to a server echo. The oldest entry is evicted once the ring is full. It is
// not safe for concurrent use; Store guards it.
type PendingRing struct {
	limit   int
	entries []chat.PendingOutgoing
}

// NewPendingRing creates a ring holding at most limit entries.
func NewPendingRing(limit int) *PendingRing {
	if limit <= 0 {
		limit = DefaultPendingLimit
	}
	return &PendingRing{limit: limit}
}

// Add appends p, evicting the oldest entry when full.
func (r *PendingRing) Add(p chat.PendingOutgoing) {
	if len(r.entries) >= r.limit {
		r.entries = r.entries[1:]
	}
	r.entries = append(r.entries, p)
}

// Remove drops the entry with the given temp id.
func (r *PendingRing) Remove(tempID string) bool {
	for i, p := range r.entries {
		if p.TempID == tempID {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Closest returns the entry with identical trimmed content whose send time is
// nearest to at, provided it lies within window.
func (r *PendingRing) Closest(content string, at time.Time, window time.Duration) (chat.PendingOutgoing, bool) {
	want := strings.TrimSpace(content)
	var (
		best     chat.PendingOutgoing
		bestDist time.Duration
		found    bool
	)
	for _, p := range r.entries {
		if strings.TrimSpace(p.Content) != want {
			continue
		}
		d := absDuration(at.Sub(p.CreatedAt))
		if d > window {
			continue
		}
		if !found || d < bestDist {
			best, bestDist, found = p, d, true
		}
	}
	return best, found
}

// Len returns the number of pending entries.
func (r *PendingRing) Len() int {
	return len(r.entries)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
