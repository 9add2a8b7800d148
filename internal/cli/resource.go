package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clustervision/lunactl/internal/luna"
	"github.com/clustervision/lunactl/internal/tracker"
)

// resource describes one config/<name> collection on the daemon.
type resource struct {
	name    string
	title   string
	short   string
	columns []string
	// newName is the payload field carrying the target of rename and clone.
	newName string
}

var resources = []resource{
	{
		name:    "node",
		title:   "Node",
		short:   "Manage nodes",
		columns: []string{"group", "osimage", "setupbmc", "status"},
		newName: "newnodename",
	},
	{
		name:    "group",
		title:   "Group",
		short:   "Manage node groups",
		columns: []string{"osimage", "setupbmc", "domain"},
		newName: "newgroupname",
	},
	{
		name:    "network",
		title:   "Network",
		short:   "Manage networks",
		columns: []string{"network", "dhcp", "zone"},
		newName: "newnetname",
	},
	{
		name:    "osimage",
		title:   "OS image",
		short:   "Manage OS images",
		columns: []string{"kernelversion", "distribution", "path"},
		newName: "newosimage",
	},
	{
		name:    "bmcsetup",
		title:   "BMC setup",
		short:   "Manage BMC setups",
		columns: []string{"userid", "username", "netchannel"},
		newName: "newbmcname",
	},
	{
		name:    "switch",
		title:   "Switch",
		short:   "Manage switches",
		columns: []string{"ipaddress", "oid", "read"},
		newName: "newswitchname",
	},
	{
		name:    "otherdev",
		title:   "Other device",
		short:   "Manage other devices",
		columns: []string{"ipaddress", "macaddress", "comment"},
		newName: "newotherdevname",
	},
}

// noun is the title as it reads mid-sentence; acronyms keep their case.
func (r resource) noun() string {
	first, rest, _ := strings.Cut(r.title, " ")
	if first != strings.ToUpper(first) {
		first = strings.ToLower(first)
	}
	if rest == "" {
		return first
	}
	return first + " " + rest
}

func (e *env) newResourceCmd(r resource) *cobra.Command {
	cmd := &cobra.Command{
		Use:   r.name,
		Short: r.short,
	}
	cmd.AddCommand(
		e.newListCmd(r),
		e.newShowCmd(r),
		e.newAddCmd(r),
		e.newChangeCmd(r),
		e.newRenameCmd(r),
		e.newCloneCmd(r),
		e.newRemoveCmd(r),
	)
	if r.name == "osimage" {
		cmd.AddCommand(e.newPackCmd(), e.newKernelCmd())
	}
	return cmd
}

func (e *env) newListCmd(r resource) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List every %s", r.noun()),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			resp, err := a.Client.Fetch(cmd.Context(), luna.ConfigPath(r.name))
			if err != nil {
				return err
			}
			if err := resp.Err(); err != nil {
				return err
			}
			return a.Presenter.List(r.name, r.columns, resp.Records(r.name))
		},
	}
}

func (e *env) newShowCmd(r resource) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: fmt.Sprintf("Show one %s", r.noun()),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			name := args[0]
			resp, err := a.Client.Fetch(cmd.Context(), luna.ConfigPath(r.name, name))
			if err != nil {
				return err
			}
			if err := resp.Err(); err != nil {
				return err
			}
			return a.Presenter.Show(r.name, name, resp.Records(r.name)[name])
		},
	}
}

func (e *env) newAddCmd(r resource) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: fmt.Sprintf("Add a %s", r.noun()),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseSets(sets)
			if err != nil {
				return err
			}
			name := args[0]
			return e.submit(cmd, r, name, luna.ConfigPath(r.name, name), fields,
				fmt.Sprintf("Adding %s %s", r.noun(), name),
				fmt.Sprintf("%s %s created.", r.title, name))
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field to set, as key=value (repeatable)")
	return cmd
}

func (e *env) newChangeCmd(r resource) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "change <name>",
		Short: fmt.Sprintf("Change fields of a %s", r.noun()),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseSets(sets)
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				return fmt.Errorf("nothing to change; use --set key=value")
			}
			name := args[0]
			return e.submit(cmd, r, name, luna.ConfigPath(r.name, name), fields,
				fmt.Sprintf("Changing %s %s", r.noun(), name),
				fmt.Sprintf("%s %s updated.", r.title, name))
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field to set, as key=value (repeatable)")
	return cmd
}

func (e *env) newRenameCmd(r resource) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <name> <new-name>",
		Short: fmt.Sprintf("Rename a %s", r.noun()),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, newName := args[0], args[1]
			fields := map[string]any{r.newName: newName}
			return e.submit(cmd, r, name, luna.ConfigPath(r.name, name), fields,
				fmt.Sprintf("Renaming %s %s", r.noun(), name),
				fmt.Sprintf("%s %s renamed to %s.", r.title, name, newName))
		},
	}
}

func (e *env) newCloneCmd(r resource) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "clone <name> <new-name>",
		Short: fmt.Sprintf("Clone a %s", r.noun()),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseSets(sets)
			if err != nil {
				return err
			}
			name, newName := args[0], args[1]
			fields[r.newName] = newName
			return e.submit(cmd, r, name, luna.ConfigPath(r.name, name, "_clone"), fields,
				fmt.Sprintf("Cloning %s %s", r.noun(), name),
				fmt.Sprintf("%s %s cloned as %s.", r.title, name, newName))
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field to set on the clone, as key=value (repeatable)")
	return cmd
}

func (e *env) newRemoveCmd(r resource) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"delete"},
		Short:   fmt.Sprintf("Remove a %s", r.noun()),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.application()
			if err != nil {
				return err
			}
			name := args[0]
			resp, err := a.Client.Remove(cmd.Context(), luna.ConfigPath(r.name, name))
			if err != nil {
				return err
			}
			return a.Complete(cmd.Context(), resp,
				tracker.Job{Label: fmt.Sprintf("Removing %s %s", r.noun(), name)},
				fmt.Sprintf("%s %s removed.", r.title, name))
		},
	}
}

// submit posts fields for name in the config envelope and completes the
// answer, tracking it when the daemon hands back a request id.
func (e *env) submit(cmd *cobra.Command, r resource, name, path string, fields map[string]any, label, confirmation string) error {
	a, err := e.application()
	if err != nil {
		return err
	}
	resp, err := a.Client.Submit(cmd.Context(), path, luna.ConfigPayload(r.name, name, fields))
	if err != nil {
		return err
	}
	return a.Complete(cmd.Context(), resp,
		tracker.Job{Label: label},
		confirmation)
}

// parseSets turns key=value flags into payload fields. Values that parse as
// JSON (true, 3, ["a"], {"k":1}) keep their type; everything else is a string.
func parseSets(sets []string) (map[string]any, error) {
	fields := make(map[string]any, len(sets))
	for _, set := range sets {
		key, value, ok := strings.Cut(set, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q; want key=value", set)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil && decoded != nil {
			fields[key] = decoded
		} else {
			fields[key] = value
		}
	}
	return fields, nil
}
