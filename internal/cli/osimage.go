package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clustervision/lunactl/internal/luna"
	"github.com/clustervision/lunactl/internal/tracker"
)

func (e *env) newPackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pack <name>",
		Short: "Pack an OS image for provisioning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			name := args[0]
			resp, err := a.Client.Fetch(cmd.Context(), luna.ConfigPath("osimage", name, "_pack"))
			if err != nil {
				return err
			}
			return a.Complete(cmd.Context(), resp,
				tracker.Job{Label: "Packing OS image " + name},
				fmt.Sprintf("OS image %s packed.", name))
		},
	}
}

func (e *env) newKernelCmd() *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "kernel <name>",
		Short: "Switch an OS image to another kernel version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version = strings.TrimSpace(version)
			if version == "" {
				return fmt.Errorf("--version is required")
			}
			a, err := e.application()
			if err != nil {
				return err
			}
			name := args[0]
			payload := luna.ConfigPayload("osimage", name, map[string]any{"kernelversion": version})
			resp, err := a.Client.Submit(cmd.Context(), luna.ConfigPath("osimage", name, "_kernel"), payload)
			if err != nil {
				return err
			}
			return a.Complete(cmd.Context(), resp,
				tracker.Job{Label: fmt.Sprintf("Updating kernel of OS image %s to %s", name, version)},
				fmt.Sprintf("OS image %s kernel updated.", name))
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "kernel version to install")
	return cmd
}
