package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matheus3301/pulse/internal/bus"
	"github.com/matheus3301/pulse/internal/chat"
	"github.com/matheus3301/pulse/internal/conversation"
	"github.com/matheus3301/pulse/internal/status"
	"github.com/matheus3301/pulse/internal/transport"
)

func newTailCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tail <conversation-id>",
		Short: "Follow a conversation live until interrupted",
		Args:  cobra.ExactArgs(1),
		Example: `  pulsectl tail 42
  pulsectl tail 42 --json`,
		RunE: func(_ *cobra.Command, args []string) error {
			id := args[0]
			return withRuntime(opts, "tail", true, func(ctx context.Context, rt *runtime) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

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

				t := &tailer{id: id, key: transport.ConversationKey(id), self: rt.Self, json: opts.json, seen: make(map[string]string)}
				for {
					select {
					case <-ctx.Done():
						return nil
					case evt := <-events:
						t.handle(evt, v)
					}
				}
			})
		},
	}
}

// tailer prints each message once, then again only when its content,
// status or edit flag changes.
type tailer struct {
	id     string
	key    string
	self   chat.Identity
	json   bool
	seen   map[string]string
	typing string
}

func (t *tailer) handle(evt bus.Event, v *conversation.View) {
	switch evt.Kind {
	case bus.KindHistoryLoaded:
		if h, ok := evt.Payload.(conversation.HistoryLoaded); ok && h.ConversationID == t.id {
			for _, m := range h.Messages {
				t.print(m)
			}
		}
	case bus.KindMessageUpserted:
		if m, ok := evt.Payload.(chat.Message); ok && m.ConversationID == t.id {
			t.print(m)
		}
	case bus.KindStatusChanged:
		if c, ok := evt.Payload.(status.StatusChange); ok && c.Key == t.key {
			fmt.Fprintf(os.Stderr, "-- %s\n", c.To)
		}
	case bus.KindServerError:
		if e, ok := evt.Payload.(conversation.ServerError); ok && e.ConversationID == t.id {
			fmt.Fprintf(os.Stderr, "-- server: %s\n", e.Detail)
		}
	case bus.KindViewChanged:
		if id, ok := evt.Payload.(string); ok && id == t.id {
			t.printTyping(v.TypingUsers())
		}
	}
}

func (t *tailer) print(m chat.Message) {
	fingerprint := fmt.Sprintf("%s|%s|%t|%t", m.Content, m.Status, m.Edited, m.Deleted)
	// A confirmed echo replaces its placeholder under a new key.
	if m.TempID != "" && m.ID != m.TempID {
		if prev, ok := t.seen[m.TempID]; ok {
			delete(t.seen, m.TempID)
			t.seen[m.Key()] = prev
		}
	}
	if t.seen[m.Key()] == fingerprint {
		return
	}
	t.seen[m.Key()] = fingerprint
	if t.json {
		outputJSON(m)
		return
	}
	fmt.Println(formatMessage(m, t.self))
}

func (t *tailer) printTyping(users []chat.TypingUser) {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Name)
	}
	line := strings.Join(names, ", ")
	if line == t.typing {
		return
	}
	t.typing = line
	if line != "" {
		fmt.Fprintf(os.Stderr, "-- typing: %s\n", line)
	}
}
