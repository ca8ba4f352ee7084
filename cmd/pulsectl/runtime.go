package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"

	"github.com/matheus3301/pulse/internal/app"
	"github.com/matheus3301/pulse/internal/bus"
	"github.com/matheus3301/pulse/internal/chat"
	"github.com/matheus3301/pulse/internal/config"
	"github.com/matheus3301/pulse/internal/conversation"
	"github.com/matheus3301/pulse/internal/history"
	"github.com/matheus3301/pulse/internal/profile"
	"github.com/matheus3301/pulse/internal/store"
)

// runtime is the slice of the client graph a subcommand works with.
type runtime struct {
	Profile string
	Config  *config.Config
	Lease   *app.Lease
	DB      *store.DB
	Remote  *history.Client
	Factory *conversation.Factory
	Bus     *bus.Bus
	Self    chat.Identity
}

// withRuntime resolves the profile, starts the client graph, runs fn and
// stops the graph again. Commands that talk to the server pass remote.
func withRuntime(opts *rootOptions, owner string, remote bool, fn func(ctx context.Context, rt *runtime) error) error {
	cfg, err := config.Resolve(profile.ConfigPath(), profile.EnvPath(), ".env")
	if err != nil {
		return err
	}
	name := profile.Resolve(opts.profile, cfg)
	if err := profile.ValidateName(name); err != nil {
		return err
	}
	if remote {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	rt := &runtime{Profile: name, Config: cfg}
	fxApp := fx.New(
		app.Module(app.Params{Profile: name, Config: cfg, Owner: "pulsectl " + owner, Console: true}),
		fx.NopLogger,
		fx.Populate(&rt.Lease, &rt.DB, &rt.Remote, &rt.Factory, &rt.Bus, &rt.Self),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(context.Background(), rt)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := fxApp.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error stopping: %v\n", err)
	}
	return runErr
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}
