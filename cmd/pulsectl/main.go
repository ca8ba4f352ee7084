package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	profile string
	json    bool
}

func newPulsectlCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pulsectl",
		Short: "Inspect and script a pulse chat profile",
		Example: `  pulsectl conversations
  pulsectl history 42 --limit 20
  pulsectl search "release notes"
  pulsectl send 42 "on my way"`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.profile, "profile", "", "profile name (overrides config default)")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "output JSON")

	cmd.AddCommand(
		newConversationsCommand(opts),
		newHistoryCommand(opts),
		newSearchCommand(opts),
		newTailCommand(opts),
		newSendCommand(opts),
	)

	return cmd
}

func main() {
	if err := newPulsectlCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
