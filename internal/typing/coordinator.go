// Package typing sends the local user's typing signals and tracks which
// remote participants are typing.
package typing

import (
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v3"
	"go.uber.org/zap"

	"github.com/matheus3301/pulse/internal/chat"
	"github.com/matheus3301/pulse/internal/classify"
	"github.com/matheus3301/pulse/internal/clock"
	"github.com/matheus3301/pulse/internal/wire"
)

const (
	DefaultIdle = 3 * time.Second
	DefaultTTL  = 6 * time.Second
)

// Sender writes frames to the conversation socket.
type Sender interface {
	IsOpen() bool
	Send(v any) error
}

// Options configures a Coordinator. Zero values take defaults.
type Options struct {
	// Idle is how long after the last keystroke typing_stop is sent.
	Idle time.Duration
	// TTL drops a remote typist that never sent a stop.
	TTL   time.Duration
	After clock.AfterFunc
	// OnChange receives the remote typists whenever the set changes.
	OnChange func([]chat.TypingUser)
	Logger   *zap.Logger
}

type remoteTypist struct {
	user  chat.TypingUser
	timer clock.Timer
	gen   uint64
}

// Coordinator is idle until a keystroke or focus, then typing until the idle
// timer fires, the composer blurs, a message is sent or the view closes.
// Signals are dropped while the socket is closed.
type Coordinator struct {
	sender Sender
	self   chat.Identity
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	typing bool
	// announced is set once typing_start reached the socket; only then is a
	// typing_stop owed.
	announced bool
	timer     clock.Timer
	gen    uint64
	remote *orderedmap.OrderedMap[string, *remoteTypist]
}

// New creates a coordinator.
func New(sender Sender, self chat.Identity, opts Options) *Coordinator {
	if opts.Idle <= 0 {
		opts.Idle = DefaultIdle
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.After == nil {
		opts.After = clock.System
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		sender: sender,
		self:   self,
		opts:   opts,
		logger: logger,
		remote: orderedmap.NewOrderedMap[string, *remoteTypist](),
	}
}

// Keystroke starts typing if idle and restarts the idle timer. A start that
// could not be sent is retried on the next keystroke.
func (c *Coordinator) Keystroke() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typing = true
	if !c.announced {
		c.announced = c.signalLocked(wire.TypingStart)
	}
	c.armLocked()
}

// Focus starts typing if idle.
func (c *Coordinator) Focus() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.typing {
		return
	}
	c.typing = true
	c.announced = c.signalLocked(wire.TypingStart)
	c.armLocked()
}

// Blur stops typing.
func (c *Coordinator) Blur() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Sent stops typing after a message went out.
func (c *Coordinator) Sent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Close stops typing and cancels every timer. The remote set is cleared.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.stopLocked()
	for el := c.remote.Front(); el != nil; el = el.Next() {
		el.Value.timer.Stop()
	}
	changed := c.remote.Len() > 0
	c.remote = orderedmap.NewOrderedMap[string, *remoteTypist]()
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// Typing reports whether the local user is currently marked as typing.
func (c *Coordinator) Typing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}

func (c *Coordinator) armLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = c.opts.After(c.opts.Idle, func() { c.idleExpired(gen) })
}

func (c *Coordinator) idleExpired(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.timer = nil
	c.stopLocked()
}

func (c *Coordinator) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	if !c.typing {
		return
	}
	c.typing = false
	if c.announced {
		c.announced = false
		c.signalLocked(wire.TypingStop)
	}
}

func (c *Coordinator) signalLocked(frame wire.Typing) bool {
	if !c.sender.IsOpen() {
		return false
	}
	if err := c.sender.Send(frame); err != nil {
		c.logger.Debug("typing signal dropped", zap.String("type", frame.Type), zap.Error(err))
		return false
	}
	return true
}

// HandleRemote applies a typing event from another participant. Events from
// the local user are ignored.
func (c *Coordinator) HandleRemote(ev classify.TypingEvent) {
	if c.self.Matches(ev.User.UserID, ev.Username, ev.Email) {
		return
	}
	key := ev.User.Key
	if key == "" {
		key = chat.TypingKey(ev.User.UserID, ev.User.Name)
	}

	c.mu.Lock()
	changed := false
	if ev.Started {
		changed = c.upsertLocked(key, ev.User)
	} else if r, ok := c.remote.Get(key); ok {
		r.timer.Stop()
		c.remote.Delete(key)
		changed = true
	}
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

func (c *Coordinator) upsertLocked(key string, user chat.TypingUser) bool {
	user.Key = key
	r, ok := c.remote.Get(key)
	if !ok {
		r = &remoteTypist{}
	} else {
		r.timer.Stop()
	}
	changed := !ok || r.user != user
	r.user = user
	r.gen++
	gen := r.gen
	r.timer = c.opts.After(c.opts.TTL, func() { c.remoteExpired(key, gen) })
	c.remote.Set(key, r)
	return changed
}

func (c *Coordinator) remoteExpired(key string, gen uint64) {
	c.mu.Lock()
	r, ok := c.remote.Get(key)
	if !ok || r.gen != gen {
		c.mu.Unlock()
		return
	}
	c.remote.Delete(key)
	c.mu.Unlock()

	c.notify()
}

// Users returns the remote typists in the order they started typing.
func (c *Coordinator) Users() []chat.TypingUser {
	c.mu.Lock()
	defer c.mu.Unlock()
	users := make([]chat.TypingUser, 0, c.remote.Len())
	for el := c.remote.Front(); el != nil; el = el.Next() {
		users = append(users, el.Value.user)
	}
	return users
}

func (c *Coordinator) notify() {
	if c.opts.OnChange != nil {
		c.opts.OnChange(c.Users())
	}
}
