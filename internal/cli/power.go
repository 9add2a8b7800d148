package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clustervision/lunactl/internal/luna"
	"github.com/clustervision/lunactl/internal/tracker"
)

var powerActions = []struct {
	name  string
	short string
}{
	{"on", "Power nodes on"},
	{"off", "Power nodes off"},
	{"reset", "Hard-reset nodes"},
	{"cycle", "Power-cycle nodes"},
	{"status", "Report the power state of nodes"},
}

func (e *env) newPowerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "power",
		Short: "Control node power through their BMCs",
		Long: `Control node power through their BMCs.

A hostlist names one node (node001) or a range (node[001-004],gpu01).
Bulk actions run in the background on the daemon and are followed until
every node has answered.`,
	}
	for _, action := range powerActions {
		cmd.AddCommand(e.newPowerActionCmd(action.name, action.short))
	}
	return cmd
}

func (e *env) newPowerActionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <hostlist>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			hostlist := strings.TrimSpace(args[0])
			if hostlist == "" {
				return fmt.Errorf("hostlist cannot be empty")
			}
			job := tracker.Job{
				Label:  fmt.Sprintf("Power %s %s", action, hostlist),
				Format: tracker.ControlLines("power"),
			}

			var resp *luna.Response
			if action == "status" && singleHost(hostlist) {
				resp, err = a.Client.Fetch(cmd.Context(), luna.ControlTargetPath("power", hostlist, action))
			} else {
				resp, err = a.Client.Submit(cmd.Context(), luna.ControlPath("power", action), luna.ControlPayload("power", action, hostlist))
			}
			if err != nil {
				return err
			}
			return a.Complete(cmd.Context(), resp, job,
				fmt.Sprintf("Power %s finished for %s.", action, hostlist))
		},
	}
}

// singleHost reports whether hostlist names exactly one node.
func singleHost(hostlist string) bool {
	return !strings.ContainsAny(hostlist, "[],")
}
