package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/nexusd/cmd/nexusctl/cmdutil"
	"github.com/marmos91/nexusd/internal/cli/credentials"
	"github.com/marmos91/nexusd/internal/cli/prompt"
	"github.com/marmos91/nexusd/pkg/apiclient"
)

var (
	loginUsername string
	loginPassword string
	loginContext  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to a node",
	Long: `Log in to a node and save its URL and tokens as a context. The new
context becomes current.

Examples:
  # Log in interactively
  nexusctl login --server http://10.1.0.2:10124

  # Log in non-interactively under a chosen context name
  nexusctl login --server http://10.1.0.2:10124 -u admin -p secret --name node-a`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the tokens of the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cmdutil.OpenStore()
		if err != nil {
			return err
		}
		if err := store.Logout(); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username (prompted if omitted)")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted if omitted)")
	loginCmd.Flags().StringVar(&loginContext, "name", "", "Context name (default: the node's host)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	store, err := cmdutil.OpenStore()
	if err != nil {
		return err
	}

	serverURL := cmdutil.Flags.ServerURL
	if serverURL == "" {
		if _, ctx, err := store.Current(); err == nil {
			serverURL = ctx.ServerURL
		}
	}
	if serverURL == "" {
		if serverURL, err = prompt.Input("Node URL", "http://localhost:10124"); err != nil {
			return err
		}
	}
	if !strings.Contains(serverURL, "://") {
		serverURL = "http://" + serverURL
	}

	username := loginUsername
	if username == "" {
		if username, err = prompt.Input("Username", "admin"); err != nil {
			return err
		}
	}
	password := loginPassword
	if password == "" {
		if password, err = prompt.Password("Password", 0); err != nil {
			return err
		}
	}

	tokens, err := apiclient.New(serverURL).Login(username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	name := loginContext
	if name == "" {
		name = credentials.ContextName(serverURL)
	}
	err = store.Set(name, &credentials.Context{
		ServerURL:    serverURL,
		Username:     username,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s (context %q)\n", serverURL, username, name)
	return nil
}
