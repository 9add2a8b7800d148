package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clustervision/lunactl/internal/luna"
	"github.com/clustervision/lunactl/internal/tracker"
)

func (e *env) newClusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Show or change cluster-wide settings",
	}
	cmd.AddCommand(e.newClusterShowCmd(), e.newClusterChangeCmd())
	return cmd
}

func (e *env) newClusterShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show cluster-wide settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			resp, err := a.Client.Fetch(cmd.Context(), luna.ConfigPath("cluster"))
			if err != nil {
				return err
			}
			if err := resp.Err(); err != nil {
				return err
			}
			return a.Presenter.Show("cluster", "", resp.Section("cluster"))
		},
	}
}

func (e *env) newClusterChangeCmd() *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "change",
		Short: "Change cluster-wide settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields, err := parseSets(sets)
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				return fmt.Errorf("nothing to change; use --set key=value")
			}
			a, err := e.application()
			if err != nil {
				return err
			}
			resp, err := a.Client.Submit(cmd.Context(), luna.ConfigPath("cluster"), luna.ConfigPayload("cluster", "", fields))
			if err != nil {
				return err
			}
			return a.Complete(cmd.Context(), resp, tracker.Job{Label: "Changing cluster"}, "Cluster updated.")
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field to set, as key=value (repeatable)")
	return cmd
}
