package commands

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/nexusd/cmd/nexusctl/cmdutil"
	"github.com/marmos91/nexusd/internal/cli/output"
	"github.com/marmos91/nexusd/pkg/apiclient"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show node status",
	Long: `Show whether the node is alive and ready, and how many objects it holds.

Examples:
  nexusctl status
  nexusctl status -o json`,
	RunE: runStatus,
}

// NodeStatus is the status view of a node.
type NodeStatus struct {
	Server   string `json:"server" yaml:"server"`
	Status   string `json:"status" yaml:"status"`
	Ready    bool   `json:"ready" yaml:"ready"`
	Uptime   string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Pools    int    `json:"pools" yaml:"pools"`
	Replicas int    `json:"replicas" yaml:"replicas"`
	Nexuses  int    `json:"nexuses" yaml:"nexuses"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	status := NodeStatus{Server: client.BaseURL(), Status: "unreachable"}

	if live, err := client.Health(); err != nil {
		status.Error = err.Error()
	} else {
		status.Status = live.Status
		var data struct {
			UptimeSec int64 `json:"uptime_sec"`
		}
		if json.Unmarshal(live.Data, &data) == nil {
			status.Uptime = output.Uptime(time.Duration(data.UptimeSec) * time.Second)
		}
	}

	if ready, err := client.Ready(); err == nil {
		status.Ready = ready.Status == "healthy"
		var counts struct {
			Pools    int `json:"pools"`
			Replicas int `json:"replicas"`
			Nexuses  int `json:"nexuses"`
		}
		if json.Unmarshal(ready.Data, &counts) == nil {
			status.Pools, status.Replicas, status.Nexuses = counts.Pools, counts.Replicas, counts.Nexuses
		}
	} else if status.Error == "" {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) {
			status.Error = apiErr.Message
		} else {
			status.Error = err.Error()
		}
	}

	p, err := cmdutil.Printer(cmd)
	if err != nil {
		return err
	}
	table := output.NewDetails().
		Row("Server", status.Server).
		Row("Status", status.Status).
		Row("Ready", yesNo(status.Ready)).
		Row("Uptime", status.Uptime).
		Row("Pools", itoa(status.Pools)).
		Row("Replicas", itoa(status.Replicas)).
		Row("Nexuses", itoa(status.Nexuses))
	if status.Error != "" {
		table.Row("Error", status.Error)
	}
	return p.Print(status, table)
}
