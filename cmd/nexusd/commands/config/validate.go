package config

import (
	"fmt"

	"github.com/marmos91/nexusd/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the nexusd configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  nexusd config validate
  nexusd config validate --config /etc/nexusd/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if !cfg.ControlPlane.HasJWTSecret() {
		warnings = append(warnings, "JWT secret not configured: the node will refuse to start")
	}
	if cfg.Nexus.ANAEnabled && !cfg.Nexus.ReservationsEnabled {
		warnings = append(warnings, "ANA is enabled without reservations: a second node can write to shared replicas")
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Host NQN:        %s\n", cfg.Node.HostNQN)
	_, _ = fmt.Fprintf(out, "  NVMe-oF listen:  %s\n", cfg.Node.NvmfListen)
	_, _ = fmt.Fprintf(out, "  API endpoint:    %s\n", cfg.ControlPlane.Endpoint)
	_, _ = fmt.Fprintf(out, "  Database type:   %s\n", cfg.Database.Type)
	_, _ = fmt.Fprintf(out, "  Reservations:    %t (key %s)\n", cfg.Nexus.ReservationsEnabled, cfg.Nexus.ReservationKey)
	_, _ = fmt.Fprintf(out, "  ANA:             %t\n", cfg.Nexus.ANAEnabled)

	return nil
}
