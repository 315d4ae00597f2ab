// Package main provides storyctl, the operator CLI for the story API.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/maauso/story-api/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "storyctl",
		Short:        "Operate the story API database and media",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(MigrateCmd())
	rootCmd.AddCommand(SweepCmd())
	rootCmd.AddCommand(TokenCmd())

	return rootCmd
}

// loadConfig reads the same environment the server does.
func loadConfig() (*config.Config, error) {
	return config.Load()
}
