// Package user implements "nexusctl user".
package user

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/nexusd/cmd/nexusctl/cmdutil"
	"github.com/marmos91/nexusd/internal/cli/output"
	"github.com/marmos91/nexusd/internal/cli/prompt"
	"github.com/marmos91/nexusd/pkg/apiclient"
	"github.com/marmos91/nexusd/pkg/controlplane/models"
)

// Cmd is the user subcommand.
var Cmd = &cobra.Command{
	Use:   "user",
	Short: "Manage control plane users",
	Long: `Manage the users that can log in to a node's API. Admins change the
node; viewers can only read it.`,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		users, err := client.ListUsers()
		if err != nil {
			return err
		}
		table := output.NewTable("USERNAME", "ROLE", "ENABLED", "LAST LOGIN")
		for _, u := range users {
			table.Row(u.Username, u.Role, enabled(u), lastLogin(u))
		}
		return cmdutil.PrintList(cmd, users, table, "No users.")
	},
}

var (
	createPassword string
	createRole     string
)

var createCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a user",
	Long: `Create a user. The password is prompted for when --password is omitted.

Examples:
  nexusctl user create ops --role viewer`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := createPassword
		if password == "" {
			var err error
			password, err = prompt.NewPassword("Password", models.MinPasswordLength)
			if err != nil {
				return err
			}
		}
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		u, err := client.CreateUser(&apiclient.CreateUserRequest{
			Username: args[0],
			Password: password,
			Role:     createRole,
		})
		if err != nil {
			return err
		}
		printer, err := cmdutil.Printer(cmd)
		if err != nil {
			return err
		}
		printer.Notice("User %q created", u.Username)
		return printer.Print(u, output.NewDetails().
			Row("Username", u.Username).
			Row("Role", u.Role).
			Row("Enabled", enabled(*u)))
	},
}

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		return cmdutil.RunDeleteWithConfirmation(cmd, "User", args[0], deleteForce, func() error {
			return client.DeleteUser(args[0])
		})
	},
}

var passwdUser string

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change a password",
	Long: `Change your own password, or reset another user's password with --user
(admin only).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}

		if passwdUser != "" {
			password, err := prompt.NewPassword("New password", models.MinPasswordLength)
			if err != nil {
				return err
			}
			if err := client.ResetUserPassword(passwdUser, password); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Password of %s reset\n", passwdUser)
			return nil
		}

		current, err := prompt.Password("Current password", 0)
		if err != nil {
			return err
		}
		password, err := prompt.NewPassword("New password", models.MinPasswordLength)
		if err != nil {
			return err
		}
		if err := client.ChangeOwnPassword(current, password); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Password changed")
		return nil
	},
}

func enabled(u apiclient.User) string {
	if u.Enabled {
		return "yes"
	}
	return "no"
}

func lastLogin(u apiclient.User) string {
	if u.LastLogin == nil {
		return "never"
	}
	return u.LastLogin.Local().Format("2006-01-02 15:04")
}

func init() {
	createCmd.Flags().StringVarP(&createPassword, "password", "p", "", "Password (prompted if omitted)")
	createCmd.Flags().StringVar(&createRole, "role", string(models.RoleViewer), "Role: admin or viewer")
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation")
	passwdCmd.Flags().StringVar(&passwdUser, "user", "", "Reset this user's password instead of your own")

	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(passwdCmd)
}
