package commands

import (
	"fmt"

	"github.com/marmos91/nexusd/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a sample configuration file with a freshly generated JWT secret.

Examples:
  # Write to $XDG_CONFIG_HOME/nexusd/config.yaml
  nexusd init

  # Write somewhere else, replacing an existing file
  nexusd init --config /etc/nexusd/config.yaml --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	var err error
	if path != "" {
		err = config.InitConfigToPath(path, initForce)
	} else {
		path, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", path)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Set node.host_nqn and node.nvmf_listen for this node")
	_, _ = fmt.Fprintf(out, "  2. Start the node with: nexusd start --config %s\n", path)
	return nil
}
