package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/pulse/internal/bus"
	"github.com/matheus3301/pulse/internal/chat"
	"github.com/matheus3301/pulse/internal/conversation"
	"github.com/matheus3301/pulse/internal/outbox"
	"github.com/matheus3301/pulse/internal/status"
	"github.com/matheus3301/pulse/internal/transport"
)

var errNoEcho = errors.New("message written but no echo received")

func newSendCommand(opts *rootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "send <conversation-id> <text...>",
		Short: "Send a message and wait for the server to confirm it",
		Args:  cobra.MinimumNArgs(2),
		Example: `  pulsectl send 42 "on my way"
  pulsectl send 42 hello --timeout 30s`,
		RunE: func(_ *cobra.Command, args []string) error {
			id, text := args[0], strings.Join(args[1:], " ")
			return withRuntime(opts, "send", true, func(ctx context.Context, rt *runtime) error {
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()

				events, unsubscribe := rt.Bus.Subscribe("", 256)
				defer unsubscribe()

				v, err := rt.Factory.View(id)
				if err != nil {
					return err
				}
				if err := v.Mount(ctx); err != nil {
					return err
				}
				defer v.Unmount()

				if err := waitConnected(ctx, v, events, transport.ConversationKey(id)); err != nil {
					return err
				}
				placeholder, err := v.Send(text)
				if err != nil {
					return err
				}
				confirmed, err := waitEcho(ctx, events, placeholder)
				if err != nil {
					return err
				}
				if opts.json {
					outputJSON(confirmed)
					return nil
				}
				fmt.Printf("sent %s\n", confirmed.ID)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "how long to wait for the connection and the echo")

	return cmd
}

func waitConnected(ctx context.Context, v *conversation.View, events <-chan bus.Event, key string) error {
	if v.Status() == status.Connected {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("connect: %w", ctx.Err())
		case evt := <-events:
			if c, ok := evt.Payload.(status.StatusChange); ok && c.Key == key && c.To == status.Connected {
				return nil
			}
			if e, ok := evt.Payload.(conversation.ServerError); ok && e.ConversationID == v.ID() {
				return fmt.Errorf("server: %s", e.Detail)
			}
		}
	}
}

// waitEcho blocks until the server confirms the placeholder under a real id
// or the frame write fails.
func waitEcho(ctx context.Context, events <-chan bus.Event, placeholder chat.Message) (chat.Message, error) {
	for {
		select {
		case <-ctx.Done():
			return placeholder, errNoEcho
		case evt := <-events:
			switch evt.Kind {
			case bus.KindMessageUpserted:
				m, ok := evt.Payload.(chat.Message)
				if ok && m.TempID == placeholder.TempID && !m.IsPlaceholder() {
					return m, nil
				}
			case bus.KindSendFailed:
				f, ok := evt.Payload.(outbox.SendFailed)
				if ok && f.TempID == placeholder.TempID {
					return placeholder, errors.New(f.Err)
				}
			}
		}
	}
}
