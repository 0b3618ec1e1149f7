// Package cmdutil holds what nexusctl subcommands share: global flags, the
// authenticated client and output helpers.
package cmdutil

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/nexusd/internal/cli/credentials"
	"github.com/marmos91/nexusd/internal/cli/output"
	"github.com/marmos91/nexusd/internal/cli/prompt"
	"github.com/marmos91/nexusd/pkg/apiclient"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ServerURL    string
	Token        string
	Output       string
	ContextsFile string
}

// OpenStore opens the contexts file named by --contexts, or the default one.
func OpenStore() (*credentials.Store, error) {
	path := Flags.ContextsFile
	if path == "" {
		var err error
		if path, err = credentials.DefaultPath(); err != nil {
			return nil, err
		}
	}
	store, err := credentials.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open contexts: %w", err)
	}
	return store, nil
}

// GetAuthenticatedClient returns a client for the current context. --server
// and --token override it. An expired access token is refreshed and saved.
func GetAuthenticatedClient() (*apiclient.Client, error) {
	if Flags.ServerURL != "" && Flags.Token != "" {
		return apiclient.New(Flags.ServerURL).WithToken(Flags.Token), nil
	}

	store, err := OpenStore()
	if err != nil {
		return nil, err
	}
	_, ctx, err := store.Current()
	if err != nil {
		return nil, credentials.ErrNotLoggedIn
	}

	url := ctx.ServerURL
	if Flags.ServerURL != "" {
		url = Flags.ServerURL
	}
	if Flags.Token != "" {
		return apiclient.New(url).WithToken(Flags.Token), nil
	}

	token := ctx.AccessToken
	if ctx.IsExpired() && ctx.RefreshToken != "" {
		tokens, err := apiclient.New(url).RefreshToken(ctx.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("session expired: run 'nexusctl login' to re-authenticate")
		}
		if err := store.UpdateTokens(tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to save refreshed tokens: %w", err)
		}
		token = tokens.AccessToken
	}
	if token == "" {
		return nil, credentials.ErrNotLoggedIn
	}

	return apiclient.New(url).WithToken(token), nil
}

// Printer returns a printer for the --output flag writing to the command's
// stdout.
func Printer(cmd *cobra.Command) (*output.Printer, error) {
	format, err := output.ParseFormat(Flags.Output)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(cmd.OutOrStdout(), format), nil
}

// PrintList prints a list, or emptyMsg in table format when it is empty.
func PrintList(cmd *cobra.Command, data any, table *output.Table, emptyMsg string) error {
	p, err := Printer(cmd)
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable && table.Len() == 0 {
		p.Notice("%s", emptyMsg)
		return nil
	}
	return p.Print(data, table)
}

// RunDeleteWithConfirmation asks before deleting unless force is set.
func RunDeleteWithConfirmation(cmd *cobra.Command, resourceType, name string, force bool, deleteFn func() error) error {
	confirmed, err := prompt.Confirm(fmt.Sprintf("Delete %s %q", resourceType, name), force)
	if err != nil {
		if prompt.IsAborted(err) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "\nAborted.")
			return nil
		}
		return err
	}
	if !confirmed {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
		return nil
	}
	if err := deleteFn(); err != nil {
		return err
	}
	p, err := Printer(cmd)
	if err != nil {
		return err
	}
	p.Notice("%s %q deleted", resourceType, name)
	return nil
}

// ExplainError adds a hint to errors that have an obvious next step.
func ExplainError(err error) error {
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.IsDataLoss():
		return fmt.Errorf("%w (the change is live on the node but was not saved; retry or check the node's database)", err)
	case apiErr.StatusCode == 401:
		return fmt.Errorf("%w (run 'nexusctl login')", err)
	default:
		return err
	}
}
