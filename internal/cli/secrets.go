package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/clustervision/lunactl/internal/luna"
	"github.com/clustervision/lunactl/internal/ui"
)

var secretKinds = []string{"node", "group"}

func (e *env) newSecretsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Inspect node and group secrets",
	}
	cmd.AddCommand(e.newSecretsListCmd(), e.newSecretsShowCmd())
	return cmd
}

func (e *env) newSecretsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "list [node|group]",
		Short:     "List secrets, optionally for one kind of owner",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: secretKinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			segments := []string{"secrets"}
			segments = append(segments, args...)
			return e.showSecrets(cmd, segments...)
		},
	}
}

func (e *env) newSecretsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show node|group <name>",
		Short: "Show the secrets of one node or group",
		Args: cobra.MatchAll(cobra.ExactArgs(2), func(_ *cobra.Command, args []string) error {
			if args[0] != "node" && args[0] != "group" {
				return fmt.Errorf("invalid kind %q; want node or group", args[0])
			}
			return nil
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.showSecrets(cmd, "secrets", args[0], args[1])
		},
	}
}

func (e *env) showSecrets(cmd *cobra.Command, segments ...string) error {
	a, err := e.application()
	if err != nil {
		return err
	}
	resp, err := a.Client.Fetch(cmd.Context(), luna.ConfigPath(segments...))
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	section := resp.Section("secrets")
	if a.Presenter.Format != ui.FormatTable {
		return a.Presenter.Raw(section)
	}
	a.Presenter.Table("secret", []string{"kind", "owner", "name", "path"}, secretRows(section))
	return nil
}

// secretRows flattens {"<kind>": {"<owner>": [{"name", "path", ...}]}} into
// rows sorted by kind, owner and name. Secret content is never shown in a
// table.
func secretRows(section map[string]any) [][]string {
	var rows [][]string
	for kind, owners := range section {
		byOwner, ok := owners.(map[string]any)
		if !ok {
			continue
		}
		for owner, list := range byOwner {
			entries, ok := list.([]any)
			if !ok {
				continue
			}
			for _, entry := range entries {
				secret, ok := entry.(map[string]any)
				if !ok {
					continue
				}
				rows = append(rows, []string{
					kind,
					owner,
					ui.FormatValue(secret["name"]),
					ui.FormatValue(secret["path"]),
				})
			}
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		for k := range rows[i] {
			if rows[i][k] != rows[j][k] {
				return rows[i][k] < rows[j][k]
			}
		}
		return false
	})
	return rows
}
