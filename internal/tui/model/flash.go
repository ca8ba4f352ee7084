package model

import (
	"sync"
	"time"
)

// Flash is the status line's transient message. Messages stack: dropping or
// outliving the newest one reveals the one beneath it. The zero value is
// ready to use.
type Flash struct {
	// Now defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	seq     int
	entries []flashEntry
}

type flashEntry struct {
	id      int
	msg     string
	expires time.Time
}

// Set shows msg for d and returns an id for Drop.
func (f *Flash) Set(msg string, d time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.entries = append(f.entries, flashEntry{id: f.seq, msg: msg, expires: f.now().Add(d)})
	return f.seq
}

// Drop removes the message Set returned id for, wherever it sits.
func (f *Flash) Drop(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.entries {
		if e.id == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return
		}
	}
}

// Get returns the newest unexpired message, or "".
func (f *Flash) Get() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	live := f.entries[:0]
	for _, e := range f.entries {
		if now.Before(e.expires) {
			live = append(live, e)
		}
	}
	f.entries = live
	if len(live) == 0 {
		return ""
	}
	return live[len(live)-1].msg
}

func (f *Flash) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}
