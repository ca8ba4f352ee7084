// Package app composes the client: config, logging, the archive and the
// conversation view factory, with their lifecycle.
package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/matheus3301/pulse/internal/archive"
	"github.com/matheus3301/pulse/internal/auth"
	"github.com/matheus3301/pulse/internal/bus"
	"github.com/matheus3301/pulse/internal/chat"
	"github.com/matheus3301/pulse/internal/config"
	"github.com/matheus3301/pulse/internal/conversation"
	"github.com/matheus3301/pulse/internal/history"
	"github.com/matheus3301/pulse/internal/lock"
	"github.com/matheus3301/pulse/internal/logging"
	"github.com/matheus3301/pulse/internal/metrics"
	"github.com/matheus3301/pulse/internal/notify"
	"github.com/matheus3301/pulse/internal/outbox"
	"github.com/matheus3301/pulse/internal/profile"
	"github.com/matheus3301/pulse/internal/store"
	"github.com/matheus3301/pulse/internal/transport"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
	Config  *config.Config
	// Owner names this process in the archive lease.
	Owner string
	// Console mirrors warnings to stderr.
	Console bool
}

// Lease records whether this process writes the archive.
type Lease struct {
	Lock     *lock.Lock
	ReadOnly bool
}

// Module returns the fx module composing all providers and lifecycle hooks.
// Front-ends may provide a notify.Platform and notify.Window; without them
// notifications are disabled and every view counts as attentive.
func Module(p Params) fx.Option {
	return fx.Module("pulse",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideMetrics,
			provideLease,
			provideStore,
			provideIdentity,
			provideHistory,
			provideRegistry,
			provideLimiter,
			provideArchive,
			provideFactory,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile, p.Console)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideMetrics() *metrics.Metrics {
	return metrics.New()
}

func provideLease(p Params, logger *zap.Logger) (*Lease, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	l, err := lock.Acquire(profile.Dir(p.Profile), p.Owner)
	if lock.IsHeld(err) {
		logger.Warn("archive held by another process, opening read-only", zap.Error(err))
		return &Lease{ReadOnly: true}, nil
	}
	if err != nil {
		return nil, err
	}
	logger.Info("archive lease acquired", zap.String("path", l.Path()))
	return &Lease{Lock: l}, nil
}

func provideStore(p Params, lease *Lease, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.Profile)
	open := store.Open
	if lease.ReadOnly {
		open = store.OpenReadOnly
	}
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath), zap.Bool("read_only", lease.ReadOnly))
	return db, nil
}

func provideIdentity(p Params, logger *zap.Logger) chat.Identity {
	cfg := p.Config
	self := auth.Identity(cfg.Token, chat.Identity{
		ID:       cfg.Identity.UserID,
		Username: cfg.Identity.Username,
		Email:    cfg.Identity.Email,
	})
	if !self.Known() {
		logger.Warn("local identity unknown, own messages cannot be recognized")
	}
	return self
}

func provideHistory(p Params, logger *zap.Logger) *history.Client {
	return history.NewClient(p.Config.ServerURL, p.Config.Token, p.Config.History.Timeout, logger.Named("history"))
}

func provideRegistry() *transport.Registry {
	return transport.NewRegistry()
}

func provideLimiter() *rate.Limiter {
	return outbox.NewLimiter()
}

func provideArchive(db *store.DB, b *bus.Bus, self chat.Identity, logger *zap.Logger) *archive.Engine {
	return archive.NewEngine(db, b, self, logger.Named("archive"))
}

type factoryIn struct {
	fx.In

	Params   Params
	Self     chat.Identity
	Registry *transport.Registry
	History  *history.Client
	Limiter  *rate.Limiter
	Bus      *bus.Bus
	Logger   *zap.Logger
	Metrics  *metrics.Metrics

	Platform notify.Platform `optional:"true"`
	Window   notify.Window   `optional:"true"`
}

func provideFactory(in factoryIn) *conversation.Factory {
	cfg := in.Params.Config
	platform := in.Platform
	if platform == nil || !cfg.Notify.Enabled {
		platform = notify.Disabled{}
	}
	return conversation.NewFactory(conversation.Deps{
		ServerURL:      cfg.ServerURL,
		Token:          cfg.Token,
		Self:           in.Self,
		Registry:       in.Registry,
		Dialer:         transport.DialWebsocket,
		History:        in.History,
		HistoryLimit:   cfg.History.Limit,
		Platform:       platform,
		Window:         in.Window,
		Limiter:        in.Limiter,
		InitialBackoff: cfg.Reconnect.Initial,
		MaxBackoff:     cfg.Reconnect.Max,
		TypingIdle:     cfg.Typing.Idle,
		TypingTTL:      cfg.Typing.TTL,
		NotifyDismiss:  cfg.Notify.Dismiss,
		Bus:            in.Bus,
		Logger:         in.Logger,
		Metrics:        in.Metrics,
	})
}

func registerLifecycle(lc fx.Lifecycle, p Params, lease *Lease, db *store.DB, engine *archive.Engine, registry *transport.Registry, m *metrics.Metrics, logger *zap.Logger) {
	var srv *metrics.Server
	if p.Config.MetricsAddr != "" {
		srv = metrics.NewServer(p.Config.MetricsAddr, m, logger)
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if !lease.ReadOnly {
				engine.Start(context.Background())
			}
			if srv != nil {
				srv.Start()
			}
			logger.Info("client started", zap.String("profile", p.Profile))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if n := registry.CloseAll(); n > 0 {
				logger.Info("closed sockets", zap.Int("count", n))
			}
			if !lease.ReadOnly {
				engine.Stop()
			}
			if srv != nil {
				if err := srv.Stop(ctx); err != nil {
					logger.Warn("error stopping metrics server", zap.Error(err))
				}
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lease.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
