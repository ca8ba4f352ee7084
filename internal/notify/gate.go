// Package notify decides when an incoming message deserves a desktop
// notification.
package notify

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/pulse/internal/bus"
	"github.com/matheus3301/pulse/internal/chat"
	"github.com/matheus3301/pulse/internal/clock"
	"github.com/matheus3301/pulse/internal/metrics"
)

const (
	DefaultDismiss = 6 * time.Second
	maxBody        = 120
)

// Notification is what the platform shows.
type Notification struct {
	Title   string
	Body    string
	Tag     string
	OnClick func()
}

// Handle closes a shown notification.
type Handle interface {
	Close()
}

// Platform shows notifications.
type Platform interface {
	Granted() bool
	Show(n Notification) (Handle, error)
}

// Window is the surface hosting the conversation view.
type Window interface {
	Visible() bool
	Focused() bool
	Focus()
}

// Attentive reports whether the user is looking at w. Without a window there
// is nothing to draw attention to, so nil counts as attentive.
func Attentive(w Window) bool {
	return w == nil || (w.Visible() && w.Focused())
}

// Disabled is a platform without notification permission.
type Disabled struct{}

func (Disabled) Granted() bool                     { return false }
func (Disabled) Show(Notification) (Handle, error) { return nil, nil }

// Options configures a Gate. Zero values take defaults.
type Options struct {
	Dismiss time.Duration
	After   clock.AfterFunc
	Bus     *bus.Bus
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Gate shows at most one notification per message, and only when the user
// is not already looking at the conversation.
type Gate struct {
	platform Platform
	window   Window
	self     chat.Identity
	opts     Options
	logger   *zap.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// New creates a gate.
func New(platform Platform, window Window, self chat.Identity, opts Options) *Gate {
	if platform == nil {
		platform = Disabled{}
	}
	if opts.Dismiss <= 0 {
		opts.Dismiss = DefaultDismiss
	}
	if opts.After == nil {
		opts.After = clock.System
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		platform: platform,
		window:   window,
		self:     self,
		opts:     opts,
		logger:   logger,
		seen:     make(map[string]struct{}),
	}
}

// Consider shows a notification for m if permission is granted, the user is
// not attentive (see Attentive), m is not self-authored and m has not
// notified before. It reports whether a notification was shown.
func (g *Gate) Consider(m chat.Message) bool {
	if strings.TrimSpace(m.Content) == "" || m.Deleted {
		return false
	}
	if !g.platform.Granted() {
		return false
	}
	if Attentive(g.window) {
		return false
	}
	if g.self.IsSelf(m) {
		return false
	}

	key := dedupKey(m)
	g.mu.Lock()
	if _, ok := g.seen[key]; ok {
		g.mu.Unlock()
		return false
	}
	g.seen[key] = struct{}{}
	g.mu.Unlock()

	n := Notification{
		Title: title(m),
		Body:  truncate(m.Content, maxBody),
		Tag:   "pulse-" + key,
		OnClick: func() {
			if g.window != nil {
				g.window.Focus()
			}
		},
	}
	h, err := g.platform.Show(n)
	if err != nil {
		g.logger.Warn("notification failed", zap.String("message_id", m.ID), zap.Error(err))
		return false
	}
	if h != nil {
		g.opts.After(g.opts.Dismiss, h.Close)
	}
	g.opts.Metrics.NotificationShown()
	g.opts.Bus.Emit(bus.KindNotificationShown, n)
	return true
}

func dedupKey(m chat.Message) string {
	if k := m.Key(); k != "" {
		return k
	}
	return m.SenderID + "|" + m.SenderName + "|" + m.CreatedAt.Format(time.RFC3339Nano) + "|" + m.Content
}

func title(m chat.Message) string {
	switch {
	case m.SenderName != "":
		return m.SenderName
	case m.SenderID != "":
		return "User " + m.SenderID
	default:
		return "New message"
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
