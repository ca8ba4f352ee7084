package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/matheus3301/pulse/internal/chat"
	"github.com/matheus3301/pulse/internal/store"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var (
		remote bool
		limit  int
		before int64
		offset int
	)

	cmd := &cobra.Command{
		Use:   "history <conversation-id>",
		Short: "Print the messages of a conversation",
		Args:  cobra.ExactArgs(1),
		Example: `  pulsectl history 42
  pulsectl history 42 --before 1714557600000
  pulsectl history 42 --remote --offset 50`,
		RunE: func(_ *cobra.Command, args []string) error {
			id := args[0]
			return withRuntime(opts, "history", remote, func(ctx context.Context, rt *runtime) error {
				if remote {
					page, err := rt.Remote.Fetch(ctx, id, limit, offset)
					if err != nil {
						return err
					}
					if opts.json {
						outputJSON(page.Messages)
						return nil
					}
					printRemoteMessages(page.Messages, rt.Self)
					return nil
				}

				msgs, err := rt.DB.ListMessages(id, before, limit)
				if err != nil {
					return err
				}
				// Oldest first reads naturally in a terminal.
				slices.Reverse(msgs)
				if opts.json {
					outputJSON(msgs)
					return nil
				}
				printArchivedMessages(msgs)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "fetch from the server instead of the archive")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum messages")
	cmd.Flags().Int64Var(&before, "before", 0, "archive only: messages before this unix millisecond timestamp")
	cmd.Flags().IntVar(&offset, "offset", 0, "remote only: history offset")

	return cmd
}

func printArchivedMessages(msgs []store.Message) {
	if len(msgs) == 0 {
		fmt.Println("No messages.")
		return
	}
	for _, m := range msgs {
		sender := m.SenderName
		if m.FromMe {
			sender = "me"
		}
		body := m.Body
		if m.Deleted {
			body = "[deleted]"
		}
		fmt.Printf("%s  %-16s %s%s\n", formatMillis(m.Timestamp), sender, body, flags(m.Edited, m.Status))
	}
}

func printRemoteMessages(msgs []chat.Message, self chat.Identity) {
	if len(msgs) == 0 {
		fmt.Println("No messages.")
		return
	}
	for _, m := range msgs {
		fmt.Println(formatMessage(m, self))
	}
}

func formatMessage(m chat.Message, self chat.Identity) string {
	sender := m.SenderName
	if sender == "" {
		sender = m.SenderID
	}
	if self.IsSelf(m) {
		sender = "me"
	}
	when := "-"
	if !m.CreatedAt.IsZero() {
		when = m.CreatedAt.Local().Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("%s  %-16s %s%s", when, sender, m.Content, flags(m.Edited, m.Status))
}

func flags(edited bool, status string) string {
	out := ""
	if edited {
		out += " (edited)"
	}
	if status != "" {
		out += " [" + status + "]"
	}
	return out
}
