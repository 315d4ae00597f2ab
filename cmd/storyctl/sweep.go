package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maauso/story-api/internal/bootstrap"
)

func SweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired stories and their media once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger := cfg.NewLogger()
			deps, err := bootstrap.NewDependencies(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := deps.Close(); err != nil {
					logger.Warn("failed to close dependencies", slog.String("error", err.Error()))
				}
			}()

			n, err := deps.Stories.Purge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired stories\n", n)
			return nil
		},
	}
}
