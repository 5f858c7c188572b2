package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kaiser100010/grc-system-sub002/internal/models"
	"github.com/kaiser100010/grc-system-sub002/internal/service"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
}

var (
	createEmail     string
	createPassword  string
	createFirstName string
	createLastName  string
	createRole      string
)

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user with an explicit role",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(cmd, func(a *app) error {
			u, err := a.auth.CreateUser(cmd.Context(), service.RegisterInput{
				Email:     createEmail,
				Password:  createPassword,
				FirstName: createFirstName,
				LastName:  createLastName,
			}, createRole)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", u.Email, u.Role, u.ID)
			return nil
		})
	},
}

func init() {
	f := usersCreateCmd.Flags()
	f.StringVar(&createEmail, "email", "", "login email")
	f.StringVar(&createPassword, "password", "", "initial password")
	f.StringVar(&createFirstName, "first-name", "", "first name")
	f.StringVar(&createLastName, "last-name", "", "last name")
	f.StringVar(&createRole, "role", models.RoleUser, "admin, manager, user, auditor or readonly")
	_ = usersCreateCmd.MarkFlagRequired("email")
	_ = usersCreateCmd.MarkFlagRequired("password")

	usersCmd.AddCommand(usersCreateCmd)
}
