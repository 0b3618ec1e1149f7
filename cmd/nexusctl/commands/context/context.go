// Package context implements "nexusctl context".
package context

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/nexusd/cmd/nexusctl/cmdutil"
	"github.com/marmos91/nexusd/internal/cli/output"
)

// Cmd is the context subcommand.
var Cmd = &cobra.Command{
	Use:   "context",
	Short: "Manage node contexts",
	Long: `Manage the nodes nexusctl knows about. "nexusctl login" creates a
context per node; every other command talks to the current one.`,
}

// contextView is the list view of one context.
type contextView struct {
	Name     string `json:"name" yaml:"name"`
	Current  bool   `json:"current" yaml:"current"`
	Server   string `json:"server" yaml:"server"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	LoggedIn bool   `json:"logged_in" yaml:"logged_in"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cmdutil.OpenStore()
		if err != nil {
			return err
		}
		current, _, _ := store.Current()

		views := []contextView{}
		table := output.NewTable("CURRENT", "NAME", "SERVER", "USER")
		for _, name := range store.Names() {
			ctx, _ := store.Get(name)
			v := contextView{Name: name, Current: name == current, Server: ctx.ServerURL, Username: ctx.Username, LoggedIn: ctx.LoggedIn()}
			views = append(views, v)
			marker := ""
			if v.Current {
				marker = "*"
			}
			table.Row(marker, name, v.Server, v.Username)
		}
		return cmdutil.PrintList(cmd, views, table, "No contexts. Run 'nexusctl login' first.")
	},
}

var useCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cmdutil.OpenStore()
		if err != nil {
			return err
		}
		if err := store.Use(args[0]); err != nil {
			return fmt.Errorf("%w: %s", err, args[0])
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q\n", args[0])
		return nil
	},
}

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cmdutil.OpenStore()
		if err != nil {
			return err
		}
		name, ctx, err := store.Current()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", name, ctx.ServerURL)
		return nil
	},
}

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cmdutil.OpenStore()
		if err != nil {
			return err
		}
		return cmdutil.RunDeleteWithConfirmation(cmd, "Context", args[0], deleteForce, func() error {
			return store.Delete(args[0])
		})
	},
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation")

	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(useCmd)
	Cmd.AddCommand(currentCmd)
	Cmd.AddCommand(deleteCmd)
}
