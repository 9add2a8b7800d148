package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clustervision/lunactl/internal/app"
	"github.com/clustervision/lunactl/internal/luna"
	"github.com/clustervision/lunactl/internal/progress"
	"github.com/clustervision/lunactl/internal/ui"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// Options configure the command tree. Zero values use the process's
// standard streams.
type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Indicator and PollInterval override the progress indicator and the
	// tracker interval; used by tests.
	Indicator    func() progress.Indicator
	PollInterval time.Duration
}

// env is shared by every command of one invocation.
type env struct {
	opts Options
	v    *viper.Viper
	app  *app.App
}

// Execute runs the command tree with args and returns the process exit code.
// Errors are reported once on stderr: daemon errors as "ERROR :: <message>
// (status N)", everything else as "luna: <error>".
func Execute(ctx context.Context, args []string, opts Options) int {
	opts = withDefaults(opts)
	e := &env{opts: opts, v: viper.New()}
	root := e.newRootCmd()
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		e.report(err)
		return 1
	}
	return 0
}

func withDefaults(opts Options) Options {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return opts
}

func (e *env) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "luna",
		Short: "Manage a Luna cluster from the command line",
		Long: `luna talks to the Luna daemon to manage nodes, groups, networks, OS images,
BMC setups, switches, other devices, secrets and cluster-wide settings.

Long-running actions (packing or cloning an OS image, kernel updates, bulk
power control) are followed until the daemon reports them finished.

Settings come from ~/.config/luna/luna.toml; flags and LUNA_* environment
variables override them.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(e.opts.Stdin)
	root.SetOut(e.opts.Stdout)
	root.SetErr(e.opts.Stderr)

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default ~/.config/luna/luna.toml)")
	flags.String("prefs", "", "preferences file (default ~/.config/luna/prefs.toml)")
	flags.String("endpoint", "", "daemon endpoint, host:port or URL")
	flags.String("username", "", "account to authenticate as")
	flags.StringP("output", "o", "", "output format: table, json or yaml")
	flags.Bool("debug", false, "enable debug logging on stderr")
	flags.Float64("poll-interval", 0, "seconds between status polls while tracking")

	for _, name := range []string{"config", "prefs", "endpoint", "username", "output", "debug", "poll-interval"} {
		_ = e.v.BindPFlag(name, flags.Lookup(name))
	}
	e.v.SetEnvPrefix("LUNA")
	e.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	e.v.AutomaticEnv()

	for _, r := range resources {
		root.AddCommand(e.newResourceCmd(r))
	}
	root.AddCommand(
		e.newPowerCmd(),
		e.newRequestCmd(),
		e.newClusterCmd(),
		e.newSecretsCmd(),
		e.newLoginCmd(),
		e.newLogoutCmd(),
		e.newPrefsCmd(),
		e.newVersionCmd(),
	)
	return root
}

// application builds the App on first use so commands that never talk to
// the daemon do not need a valid config.
func (e *env) application() (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}

	interval := e.opts.PollInterval
	if interval <= 0 {
		if secs := e.v.GetFloat64("poll-interval"); secs > 0 {
			interval = time.Duration(secs * float64(time.Second))
		}
	}

	a, err := app.New(app.Options{
		ConfigPath:   e.v.GetString("config"),
		PrefsPath:    e.v.GetString("prefs"),
		Endpoint:     e.v.GetString("endpoint"),
		Username:     e.v.GetString("username"),
		Password:     e.v.GetString("password"),
		Output:       e.v.GetString("output"),
		Debug:        e.v.GetBool("debug"),
		PollInterval: interval,
		Stdout:       e.opts.Stdout,
		Stderr:       e.opts.Stderr,
		Indicator:    e.opts.Indicator,
	})
	if err != nil {
		return nil, err
	}
	e.app = a
	return a, nil
}

func (e *env) report(err error) {
	var apiErr *luna.APIError
	if errors.As(err, &apiErr) {
		presenter := ui.NewPresenter(e.opts.Stdout, e.opts.Stderr, ui.FormatTable, "")
		if e.app != nil {
			presenter = e.app.Presenter
		}
		presenter.APIError(apiErr)
		return
	}
	fmt.Fprintf(e.opts.Stderr, "luna: %v\n", err)
}

func (e *env) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "luna %s\n", Version)
			return nil
		},
	}
}
