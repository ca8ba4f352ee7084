package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCommand(opts *rootOptions) *cobra.Command {
	var (
		conversationID string
		limit          int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search the archive",
		Args:  cobra.MinimumNArgs(1),
		Example: `  pulsectl search deploy
  pulsectl search "release notes" --conversation 42`,
		RunE: func(_ *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withRuntime(opts, "search", false, func(_ context.Context, rt *runtime) error {
				results, err := rt.DB.SearchMessages(query, conversationID, limit)
				if err != nil {
					return err
				}
				if opts.json {
					outputJSON(results)
					return nil
				}
				if len(results) == 0 {
					fmt.Println("No matches.")
					return nil
				}
				for _, r := range results {
					fmt.Printf("%-12s %s  %-16s %s\n", r.Message.ConversationID, formatMillis(r.Message.Timestamp), r.Message.SenderName, r.Snippet)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "limit the search to one conversation")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results")

	return cmd
}
