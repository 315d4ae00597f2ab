package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maauso/story-api/internal/bootstrap"
	"github.com/maauso/story-api/internal/db"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, db.RunMigrations)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, db.MigrateDown)
		},
	})

	return cmd
}

func runMigrate(cmd *cobra.Command, step func(*sql.DB, string) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	conn, err := bootstrap.OpenDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(conn) }()

	if err := step(conn.DB, cfg.DBDriver); err != nil {
		return err
	}

	version, err := db.Version(conn.DB, cfg.DBDriver)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "database at version %d\n", version)
	return nil
}
