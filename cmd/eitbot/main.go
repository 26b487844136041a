// Command eitbot runs the community bot of the electrical engineering course server.
//
// Usage:
//
//	export DISCORD_TOKEN="your-bot-token"
//	eitbot run --config ./data/config.yml
//
// The configuration can be checked without connecting to Discord:
//
//	eitbot validate --config ./data/config.yml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "./data/config.yml"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "eitbot",
		Short:         "Discord bot for onboarding, study groups and calendar reminders",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the YAML configuration")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := run(cmd.Context(), configPath)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to run: %s\n", err)
			}
			return err
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := validate(cmd, configPath)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "The configuration file seems to be invalid:\n%s\n", err)
			}
			return err
		},
	})

	return root
}
