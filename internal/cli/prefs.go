package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clustervision/lunactl/internal/prefs"
	"github.com/clustervision/lunactl/internal/ui"
)

func (e *env) newPrefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change output preferences",
	}
	cmd.AddCommand(e.newPrefsShowCmd(), e.newPrefsSetCmd())
	return cmd
}

func (e *env) newPrefsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored preferences",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			p, _ := prefs.Load(e.v.GetString("prefs"))
			format := e.v.GetString("output")
			if format == "" {
				format = p.Output
			}
			presenter := ui.NewPresenter(e.opts.Stdout, e.opts.Stderr, format, p.Theme)
			return presenter.Show("prefs", "", map[string]any{
				"output": p.Output,
				"theme":  p.Theme,
			})
		},
	}
}

func (e *env) newPrefsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set output (table, json, yaml) or theme",
		Long: fmt.Sprintf(`Set one preference.

  output  table, json or yaml
  theme   one of %s, or "next" to cycle`, strings.Join(ui.ThemeNames(), ", ")),
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			path := e.v.GetString("prefs")
			p, _ := prefs.Load(path)

			key, value := strings.ToLower(strings.TrimSpace(args[0])), strings.TrimSpace(args[1])
			if key == "theme" {
				resolved, err := resolveTheme(p.Theme, value)
				if err != nil {
					return err
				}
				value = resolved
			}
			if err := p.Set(key, value); err != nil {
				return err
			}
			if err := prefs.Save(path, p); err != nil {
				return err
			}

			presenter := ui.NewPresenter(e.opts.Stdout, e.opts.Stderr, ui.FormatTable, p.Theme)
			presenter.Success(fmt.Sprintf("Preference %s set to %s.", key, value))
			return nil
		},
	}
}

// resolveTheme maps value to a known theme name, case-insensitively.
func resolveTheme(current, value string) (string, error) {
	if strings.EqualFold(value, "next") {
		return ui.NextTheme(current), nil
	}
	for _, name := range ui.ThemeNames() {
		if strings.EqualFold(name, value) {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown theme %q (want %s)", value, strings.Join(ui.ThemeNames(), ", "))
}
