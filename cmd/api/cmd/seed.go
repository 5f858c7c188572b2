package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kaiser100010/grc-system-sub002/internal/seed"
)

var (
	seedEmail    string
	seedPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo data into an empty database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(cmd, func(a *app) error {
			return seed.Run(cmd.Context(), log, a.users, a.auth, a.resources, seed.Options{
				AdminEmail: seedEmail, AdminPassword: seedPassword,
			})
		})
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedEmail, "admin-email", "admin@grc.com", "administrator email")
	seedCmd.Flags().StringVar(&seedPassword, "admin-password", "", "administrator password")
	_ = seedCmd.MarkFlagRequired("admin-password")
}
