package conversation

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/matheus3301/pulse/internal/bus"
	"github.com/matheus3301/pulse/internal/chat"
	"github.com/matheus3301/pulse/internal/clock"
	"github.com/matheus3301/pulse/internal/history"
	"github.com/matheus3301/pulse/internal/metrics"
	"github.com/matheus3301/pulse/internal/notify"
	"github.com/matheus3301/pulse/internal/reconcile"
	"github.com/matheus3301/pulse/internal/transport"
)

// HistoryFetcher loads a page of conversation history.
type HistoryFetcher interface {
	Fetch(ctx context.Context, conversationID string, limit, offset int) (*history.Page, error)
}

// Deps are the shared collaborators of every conversation view.
type Deps struct {
	ServerURL string
	Token     string
	Self      chat.Identity

	Registry     *transport.Registry
	Dialer       transport.Dialer
	History      HistoryFetcher
	HistoryLimit int
	Collaborator Collaborator
	Platform     notify.Platform
	Window       notify.Window
	Limiter      *rate.Limiter

	Policy         reconcile.MatchPolicy
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	TypingIdle     time.Duration
	TypingTTL      time.Duration
	NotifyDismiss  time.Duration

	Now   func() time.Time
	After clock.AfterFunc

	Bus     *bus.Bus
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Factory builds conversation views sharing one set of Deps.
type Factory struct {
	deps Deps
}

// NewFactory fills defaults and returns a factory.
func NewFactory(d Deps) *Factory {
	if d.Registry == nil {
		d.Registry = transport.NewRegistry()
	}
	if d.Collaborator == nil {
		d.Collaborator = BusCollaborator{Bus: d.Bus}
	}
	if d.Policy == (reconcile.MatchPolicy{}) {
		d.Policy = reconcile.DefaultPolicy()
	}
	if d.HistoryLimit <= 0 {
		d.HistoryLimit = history.DefaultLimit
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.After == nil {
		d.After = clock.System
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Factory{deps: d}
}

// Registry returns the socket registry shared by all views.
func (f *Factory) Registry() *transport.Registry {
	return f.deps.Registry
}

// Self returns the local identity.
func (f *Factory) Self() chat.Identity {
	return f.deps.Self
}

// View builds an unmounted view of conversationID.
func (f *Factory) View(conversationID string) (*View, error) {
	return newView(conversationID, f.deps)
}
