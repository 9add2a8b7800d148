package cli

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clustervision/lunactl/internal/luna"
	"github.com/clustervision/lunactl/internal/tracker"
)

func (e *env) newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Inspect background requests on the daemon",
	}
	cmd.AddCommand(e.newRequestTrackCmd(), e.newRequestStatusCmd())
	return cmd
}

func (e *env) newRequestTrackCmd() *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "track <request-id>",
		Short: "Follow a request until the daemon reports it finished",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			if label == "" {
				label = "Request " + id
			}
			return a.Track(cmd.Context(), tracker.Job{RequestID: id, Label: label},
				fmt.Sprintf("Request %s finished.", id))
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "text shown while tracking")
	return cmd
}

// newRequestStatusCmd polls once and prints whatever the daemon has queued.
// The daemon drains messages on read, so lines shown here are not shown
// again by a later track.
func (e *env) newRequestStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <request-id>",
		Short: "Poll a request once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			resp, err := a.Client.Fetch(cmd.Context(), luna.StatusPath(id))
			if err != nil {
				return err
			}
			switch {
			case resp.StatusCode == http.StatusNotFound:
				a.Presenter.Success(fmt.Sprintf("Request %s finished.", id))
			case resp.OK():
				lines := tracker.MessageLines(resp)
				if len(lines) == 0 {
					lines = []string{fmt.Sprintf("Request %s is running.", id)}
				}
				for _, line := range lines {
					a.Presenter.Progress(line)
				}
			default:
				return resp.Err()
			}
			return nil
		},
	}
}
