// Package replica implements "nexusctl replica".
package replica

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marmos91/nexusd/cmd/nexusctl/cmdutil"
	"github.com/marmos91/nexusd/internal/bytesize"
	"github.com/marmos91/nexusd/internal/cli/output"
	"github.com/marmos91/nexusd/pkg/apiclient"
)

// Cmd is the replica subcommand.
var Cmd = &cobra.Command{
	Use:   "replica",
	Short: "Manage replicas",
	Long: `Manage replicas: volumes carved out of a pool. A replica shared over
nvmf can be a child of a nexus on another node.`,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List replicas",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		replicas, err := client.ListReplicas()
		if err != nil {
			return err
		}
		return cmdutil.PrintList(cmd, replicas, replicaTable(replicas...), "No replicas.")
	},
}

var (
	createPool  string
	createSize  bytesize.ByteSize
	createThin  bool
	createShare string
)

var createCmd = &cobra.Command{
	Use:   "create [uuid]",
	Short: "Create a replica",
	Long: `Create a replica in a pool. A UUID is generated when none is given.

Examples:
  nexusctl replica create --pool tpool --size 10Gi --share nvmf
  nexusctl replica create cdc2a7db-3ac3-403a-af80-7fadc1581c47 --pool tpool --size 64Mi`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := uuid.NewString()
		if len(args) == 1 {
			parsed, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid replica uuid %q: %w", args[0], err)
			}
			id = parsed.String()
		}
		if createSize == 0 {
			return fmt.Errorf("--size is required")
		}

		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		r, err := client.CreateReplica(&apiclient.CreateReplicaRequest{
			UUID:  id,
			Pool:  createPool,
			Size:  createSize.Uint64(),
			Thin:  createThin,
			Share: createShare,
		})
		if err != nil {
			return err
		}
		printer, err := cmdutil.Printer(cmd)
		if err != nil {
			return err
		}
		printer.Notice("Replica %s created", r.UUID)
		return printer.Print(r, replicaTable(*r))
	},
}

var shareCmd = &cobra.Command{
	Use:   "share <uuid> <nvmf|none>",
	Short: "Share or unshare a replica",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		uri, err := client.ShareReplica(args[0], args[1])
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

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <uuid>",
	Short: "Destroy a replica",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		return cmdutil.RunDeleteWithConfirmation(cmd, "Replica", args[0], deleteForce, func() error {
			return client.DeleteReplica(args[0])
		})
	},
}

func replicaTable(replicas ...apiclient.Replica) *output.Table {
	table := output.NewTable("UUID", "POOL", "SIZE", "THIN", "SHARE", "URI")
	for _, r := range replicas {
		thin := "no"
		if r.Thin {
			thin = "yes"
		}
		table.Row(r.UUID, r.Pool, bytesize.ByteSize(r.Size).String(), thin, r.Share, r.URI)
	}
	return table
}

func init() {
	createCmd.Flags().StringVar(&createPool, "pool", "", "Pool to create the replica in")
	createCmd.Flags().Var(&createSize, "size", "Replica size, e.g. 10Gi")
	createCmd.Flags().BoolVar(&createThin, "thin", false, "Thin provision the replica")
	createCmd.Flags().StringVar(&createShare, "share", "", "Share protocol (nvmf or none)")
	_ = createCmd.MarkFlagRequired("pool")
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation")

	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(shareCmd)
	Cmd.AddCommand(deleteCmd)
}
