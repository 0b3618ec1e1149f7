// Package config implements the "nexusd config" subcommands.
package config

import "github.com/spf13/cobra"

// Cmd is the config subcommand.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

func init() {
	Cmd.AddCommand(schemaCmd)
	Cmd.AddCommand(validateCmd)
}
