// Package pool implements "nexusctl pool".
package pool

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/nexusd/cmd/nexusctl/cmdutil"
	"github.com/marmos91/nexusd/internal/bytesize"
	"github.com/marmos91/nexusd/internal/cli/output"
	"github.com/marmos91/nexusd/pkg/apiclient"
)

// Cmd is the pool subcommand.
var Cmd = &cobra.Command{
	Use:   "pool",
	Short: "Manage storage pools",
	Long: `Manage the storage pools of a node. A pool owns one disk and carves
replicas out of it.`,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List pools",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		pools, err := client.ListPools()
		if err != nil {
			return err
		}
		return cmdutil.PrintList(cmd, pools, poolTable(pools...), "No pools.")
	},
}

var getCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Show a pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		p, err := client.GetPool(args[0])
		if err != nil {
			return err
		}
		printer, err := cmdutil.Printer(cmd)
		if err != nil {
			return err
		}
		return printer.Print(p, poolTable(*p))
	},
}

var createDisk string

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a pool",
	Long: `Create a pool on a single disk.

Examples:
  nexusctl pool create tpool --disk /dev/nvme1n1
  nexusctl pool create tpool --disk "malloc:///disk0?size_mb=1024"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		p, err := client.CreatePool(&apiclient.CreatePoolRequest{Name: args[0], Disks: []string{createDisk}})
		if err != nil {
			return err
		}
		printer, err := cmdutil.Printer(cmd)
		if err != nil {
			return err
		}
		printer.Notice("Pool %q created", p.Name)
		return printer.Print(p, poolTable(*p))
	},
}

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Destroy a pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		return cmdutil.RunDeleteWithConfirmation(cmd, "Pool", args[0], deleteForce, func() error {
			return client.DeletePool(args[0])
		})
	},
}

func poolTable(pools ...apiclient.Pool) *output.Table {
	table := output.NewTable("NAME", "DISKS", "CAPACITY", "USED", "REPLICAS")
	for _, p := range pools {
		table.Row(p.Name, strings.Join(p.Disks, ","),
			bytesize.ByteSize(p.Capacity).String(), bytesize.ByteSize(p.Used).String(),
			strconv.Itoa(p.Replicas))
	}
	return table
}

func init() {
	createCmd.Flags().StringVar(&createDisk, "disk", "", "Disk URI or device path")
	_ = createCmd.MarkFlagRequired("disk")
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation")

	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(deleteCmd)
}
