package main

import (
	"os"

	"github.com/spf13/cobra"
)

func NewShoutboxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "shoutbox",
		Short:        "Forum shoutbox real-time messaging service",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
	)

	return cmd
}

func main() {
	cmd := NewShoutboxCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
