// Package commands implements the nexusctl commands.
package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/marmos91/nexusd/cmd/nexusctl/cmdutil"
	ctxcmd "github.com/marmos91/nexusd/cmd/nexusctl/commands/context"
	nexuscmd "github.com/marmos91/nexusd/cmd/nexusctl/commands/nexus"
	poolcmd "github.com/marmos91/nexusd/cmd/nexusctl/commands/pool"
	replicacmd "github.com/marmos91/nexusd/cmd/nexusctl/commands/replica"
	usercmd "github.com/marmos91/nexusd/cmd/nexusctl/commands/user"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "nexusctl",
	Short: "nexusctl - manage nexusd storage nodes",
	Long: `nexusctl manages nexusd storage nodes through their admin API: pools,
replicas, nexuses and API users.

Log in to a node once; its URL and tokens are kept as a context, so you can
switch between nodes with "nexusctl context use".

Use "nexusctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return cmdutil.ExplainError(rootCmd.Execute())
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "nexusctl %s\n", Version)
		_, _ = fmt.Fprintf(out, "  Commit:     %s\n", Commit)
		_, _ = fmt.Fprintf(out, "  Built:      %s\n", Date)
		_, _ = fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cmdutil.Flags.ServerURL, "server", "", "Node URL (overrides the current context)")
	flags.StringVar(&cmdutil.Flags.Token, "token", "", "Bearer token (overrides the current context)")
	flags.StringVarP(&cmdutil.Flags.Output, "output", "o", "table", "Output format (table|json|yaml)")
	flags.StringVar(&cmdutil.Flags.ContextsFile, "contexts", "", "Contexts file (default: $XDG_CONFIG_HOME/nexusctl/contexts.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(ctxcmd.Cmd)
	rootCmd.AddCommand(poolcmd.Cmd)
	rootCmd.AddCommand(replicacmd.Cmd)
	rootCmd.AddCommand(nexuscmd.Cmd)
	rootCmd.AddCommand(usercmd.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
