package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kaiser100010/grc-system-sub002/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(cmd, func(a *app) error {
			if err := database.Migrate(cmd.Context(), a.pool); err != nil {
				return err
			}
			log.Info().Msg("migrations applied")
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(cmd, func(a *app) error {
			return database.MigrationStatus(cmd.Context(), a.pool)
		})
	},
}

func withPool(cmd *cobra.Command, fn func(*app) error) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	if a.pool == nil {
		return errNeedsPostgres
	}
	return fn(a)
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
}
