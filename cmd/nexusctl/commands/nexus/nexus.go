// Package nexus implements "nexusctl nexus".
package nexus

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/nexusd/cmd/nexusctl/cmdutil"
	"github.com/marmos91/nexusd/internal/bytesize"
	"github.com/marmos91/nexusd/internal/cli/output"
	"github.com/marmos91/nexusd/pkg/apiclient"
)

// Cmd is the nexus subcommand.
var Cmd = &cobra.Command{
	Use:   "nexus",
	Short: "Manage nexuses",
	Long: `Manage nexuses: volumes that mirror writes across their children and
are published to hosts over nvmf.

Nexuses are addressed by UUID or by name.`,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List nexuses",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		nexuses, err := client.ListNexuses()
		if err != nil {
			return err
		}
		table := output.NewTable("UUID", "NAME", "SIZE", "STATE", "CHILDREN", "ANA", "SHARE")
		for _, n := range nexuses {
			table.Row(n.UUID, n.Name, bytesize.ByteSize(n.Size).String(), n.State,
				fmt.Sprintf("%d", len(n.Children)), n.ANAState, n.ShareURI)
		}
		return cmdutil.PrintList(cmd, nexuses, table, "No nexuses.")
	},
}

var getCmd = &cobra.Command{
	Use:   "get <uuid|name>",
	Short: "Show a nexus and its children",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		n, err := client.GetNexus(args[0])
		if err != nil {
			return err
		}
		return printNexus(cmd, n)
	},
}

var (
	createUUID     string
	createName     string
	createSize     bytesize.ByteSize
	createChildren []string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a nexus",
	Long: `Create a nexus over one or more children. Every child must have the size
of the nexus. A UUID is generated when --uuid is omitted.

Examples:
  nexusctl nexus create --name vol1 --size 1Gi \
    --child loopback:///cdc2a7db-3ac3-403a-af80-7fadc1581c47 \
    --child nvmf://10.1.0.3:8420/nqn.2019-05.io.openebs:cdc2a7db-3ac3-403a-af80-7fadc1581c47`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(createChildren) == 0 {
			return fmt.Errorf("at least one --child is required")
		}
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		n, err := client.CreateNexus(&apiclient.CreateNexusRequest{
			UUID:     createUUID,
			Name:     createName,
			Size:     createSize.Uint64(),
			Children: createChildren,
		})
		if err != nil {
			return err
		}
		return printNexus(cmd, n)
	},
}

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <uuid|name>",
	Short: "Destroy a nexus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		return cmdutil.RunDeleteWithConfirmation(cmd, "Nexus", args[0], deleteForce, func() error {
			return client.DeleteNexus(args[0])
		})
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish <uuid|name>",
	Short: "Publish a nexus over nvmf",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		uri, err := client.PublishNexus(args[0])
		if err != nil {
			return err
		}
		printer, err := cmdutil.Printer(cmd)
		if err != nil {
			return err
		}
		return printer.Print(apiclient.ShareResponse{URI: uri}, output.NewDetails().Row("URI", uri))
	},
}

var unpublishCmd = &cobra.Command{
	Use:   "unpublish <uuid|name>",
	Short: "Stop publishing a nexus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		if err := client.UnpublishNexus(args[0]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Nexus %s unpublished\n", args[0])
		return nil
	},
}

var removeChildCmd = &cobra.Command{
	Use:   "remove-child <uuid|name> <child-uri>",
	Short: "Remove a child from a nexus",
	Long: `Remove a child from a nexus. The child is closed and its reservation
released. The last child of a nexus cannot be removed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		n, err := client.RemoveChild(args[0], args[1])
		if err != nil {
			return err
		}
		return printNexus(cmd, n)
	},
}

var anaCmd = &cobra.Command{
	Use:   "ana",
	Short: "Inspect or change the ANA state of a published nexus",
}

var anaGetCmd = &cobra.Command{
	Use:   "get <uuid|name>",
	Short: "Show the ANA state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		state, err := client.GetANAState(args[0])
		if err != nil {
			return err
		}
		printer, err := cmdutil.Printer(cmd)
		if err != nil {
			return err
		}
		return printer.Print(map[string]string{"state": state}, output.NewDetails().Row("ANA state", state))
	},
}

var anaSetCmd = &cobra.Command{
	Use:       "set <uuid|name> <optimized|non-optimized|inaccessible>",
	Short:     "Change the ANA state",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"optimized", "non-optimized", "inaccessible"},
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		if err := client.SetANAState(args[0], args[1]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Nexus %s is now %s\n", args[0], args[1])
		return nil
	},
}

func printNexus(cmd *cobra.Command, n *apiclient.Nexus) error {
	printer, err := cmdutil.Printer(cmd)
	if err != nil {
		return err
	}
	if printer.Format() != output.FormatTable {
		return printer.Print(n, nil)
	}

	details := output.NewDetails().
		Row("UUID", n.UUID).
		Row("Name", n.Name).
		Row("Size", bytesize.ByteSize(n.Size).String()).
		Row("State", n.State)
	if n.ShareURI != "" {
		details.Row("Share URI", n.ShareURI)
	}
	if n.ANAState != "" {
		details.Row("ANA state", n.ANAState)
	}
	if err := printer.Print(n, details); err != nil {
		return err
	}

	children := output.NewTable("CHILD", "STATE", "REASON", "SIZE")
	for _, c := range n.Children {
		children.Row(c.URI, c.State, c.Reason, bytesize.ByteSize(c.Size).String())
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout())
	return printer.Print(n.Children, children)
}

func init() {
	createCmd.Flags().StringVar(&createUUID, "uuid", "", "Nexus UUID")
	createCmd.Flags().StringVar(&createName, "name", "", "Nexus name (defaults to the UUID)")
	createCmd.Flags().Var(&createSize, "size", "Nexus size, e.g. 1Gi")
	createCmd.Flags().StringArrayVar(&createChildren, "child", nil, "Child URI (repeatable)")
	_ = createCmd.MarkFlagRequired("size")
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation")

	anaCmd.AddCommand(anaGetCmd)
	anaCmd.AddCommand(anaSetCmd)

	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(publishCmd)
	Cmd.AddCommand(unpublishCmd)
	Cmd.AddCommand(removeChildCmd)
	Cmd.AddCommand(anaCmd)
}
