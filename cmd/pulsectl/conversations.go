package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matheus3301/pulse/internal/store"
)

func newConversationsCommand(opts *rootOptions) *cobra.Command {
	var (
		remote bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List conversations from the archive",
		Args:    cobra.NoArgs,
		Example: `  pulsectl conversations
  pulsectl conversations --remote`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withRuntime(opts, "conversations", remote, func(ctx context.Context, rt *runtime) error {
				if remote {
					if err := refreshConversations(ctx, rt, limit); err != nil {
						return err
					}
				}
				convs, err := rt.DB.ListConversations(limit, 0)
				if err != nil {
					return err
				}
				if opts.json {
					outputJSON(convs)
					return nil
				}
				printConversations(convs)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "refresh the list from the server first")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum conversations to list")

	return cmd
}

// refreshConversations merges the server listing into the archive. A
// read-only archive still lists what it has.
func refreshConversations(ctx context.Context, rt *runtime, limit int) error {
	convs, err := rt.Remote.Conversations(ctx, limit, 0)
	if err != nil {
		return err
	}
	if rt.Lease.ReadOnly {
		return nil
	}
	for _, c := range convs {
		row := &store.Conversation{ID: c.ID, Name: c.Name, Description: c.Description, IsGroup: c.IsGroup}
		if err := rt.DB.UpsertConversation(row); err != nil {
			return err
		}
	}
	return nil
}

func printConversations(convs []store.Conversation) {
	if len(convs) == 0 {
		fmt.Println("No conversations found.")
		return
	}
	for _, c := range convs {
		name := c.Name
		if c.IsGroup {
			name = "# " + name
		}
		when := "-"
		if c.LastMessageAt > 0 {
			when = humanize.Time(time.UnixMilli(c.LastMessageAt))
		}
		unread := ""
		if c.UnreadCount > 0 {
			unread = fmt.Sprintf("(%d)", c.UnreadCount)
		}
		fmt.Printf("%-12s %-28s %5s  %-14s %s\n", c.ID, name, unread, when, c.LastMessagePreview)
	}
}
