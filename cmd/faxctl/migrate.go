package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/fax-review-queue/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/repository/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations for the configured driver",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		switch cfg.DBDriver {
		case "postgres":
			err = postgres.Migrate(cfg.PostgresDSN, logger)
		default:
			err = sqlite.Migrate(cfg.SQLitePath, logger)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", cfg.DBDriver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
