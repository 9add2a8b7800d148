package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/clustervision/lunactl/internal/config"
	"github.com/clustervision/lunactl/internal/logging"
	"github.com/clustervision/lunactl/internal/luna"
	"github.com/clustervision/lunactl/internal/prefs"
	"github.com/clustervision/lunactl/internal/progress"
	"github.com/clustervision/lunactl/internal/session"
	"github.com/clustervision/lunactl/internal/state"
	"github.com/clustervision/lunactl/internal/tracker"
	"github.com/clustervision/lunactl/internal/ui"
)

// Options configure the luna application. Empty fields keep the values from
// the config file and preferences.
type Options struct {
	ConfigPath   string
	PrefsPath    string // empty uses default ~/.config/luna/prefs.toml
	Endpoint     string
	Username     string
	Password     string
	Output       string
	Debug        bool
	PollInterval time.Duration

	Stdout io.Writer
	Stderr io.Writer

	// Indicator overrides the progress indicator factory.
	Indicator func() progress.Indicator
}

// App holds everything a command needs to talk to the daemon.
type App struct {
	Config     config.Config
	Prefs      prefs.Prefs
	PrefsPath  string
	Invocation string

	Logger    *slog.Logger
	Client    *luna.Client
	Session   *session.Session
	Store     *state.Store
	Tracker   *tracker.Tracker
	Presenter *ui.Presenter
}

// New loads configuration and preferences and wires the client, session,
// tracker and presenter together.
func New(opts Options) (*App, error) {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load luna config: %w", err)
	}
	applyOverrides(&cfg, opts)

	userPrefs, _ := prefs.Load(opts.PrefsPath)
	output := userPrefs.Output
	if v := strings.ToLower(strings.TrimSpace(opts.Output)); v != "" {
		if !prefs.ValidOutput(v) {
			return nil, fmt.Errorf("unsupported output %q (want table, json or yaml)", opts.Output)
		}
		output = v
	}

	invocation := logging.NewInvocationID()
	logger := logging.New(logging.Options{
		Writer:     stderr,
		Debug:      opts.Debug || logging.DebugFromEnv(),
		Invocation: invocation,
	})

	client, err := luna.NewClient(luna.Options{
		BaseURL:    cfg.BaseURL(),
		Timeout:    cfg.Timeout,
		Retries:    cfg.Retries,
		Insecure:   !cfg.VerifyCertificate,
		Invocation: invocation,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init luna client: %w", err)
	}

	sess := session.New(session.Options{
		Auth:      client,
		CachePath: cfg.TokenFile,
		Endpoint:  client.BaseURL(),
		Username:  cfg.Username,
		Password:  cfg.Password,
		Logger:    logger,
	})
	client.UseTokens(sess)

	newIndicator := opts.Indicator
	if newIndicator == nil {
		newIndicator = func() progress.Indicator { return progress.New(stdout) }
	}
	store := &state.Store{}

	return &App{
		Config:     cfg,
		Prefs:      userPrefs,
		PrefsPath:  opts.PrefsPath,
		Invocation: invocation,
		Logger:     logger,
		Client:     client,
		Session:    sess,
		Store:      store,
		Tracker: tracker.New(client,
			tracker.WithInterval(cfg.PollInterval),
			tracker.WithStore(store),
			tracker.WithLogger(logger),
			tracker.WithIndicator(newIndicator),
		),
		Presenter: ui.NewPresenter(stdout, stderr, output, userPrefs.Theme),
	}, nil
}

func applyOverrides(cfg *config.Config, opts Options) {
	if v := strings.TrimSpace(opts.Endpoint); v != "" {
		cfg.Endpoint = v
	}
	if v := strings.TrimSpace(opts.Username); v != "" {
		cfg.Username = v
	}
	if opts.Password != "" {
		cfg.Password = opts.Password
	}
	if opts.PollInterval > 0 {
		cfg.PollInterval = opts.PollInterval
	}
}

// Complete finishes a submitted action. A daemon error is returned as-is. An
// answer without request_id completed synchronously; its formatted lines, or
// confirmation when there are none, are printed. Otherwise the request is
// tracked and confirmation printed once the daemon reports it done.
func (a *App) Complete(ctx context.Context, resp *luna.Response, job tracker.Job, confirmation string) error {
	if err := resp.Err(); err != nil {
		return err
	}

	requestID := resp.RequestID()
	if requestID == "" {
		format := job.Format
		if format == nil {
			format = tracker.MessageLines
		}
		lines := format(resp)
		if len(lines) == 0 {
			lines = []string{confirmation}
		}
		for _, line := range lines {
			a.Presenter.Success(line)
		}
		return nil
	}

	job.RequestID = requestID
	return a.Track(ctx, job, confirmation)
}

// Track follows an existing request and prints confirmation on success.
func (a *App) Track(ctx context.Context, job tracker.Job, confirmation string) error {
	a.Logger.Debug("tracking request", slog.String("request_id", job.RequestID), slog.String("label", job.Label))

	out, err := a.Tracker.Track(ctx, job)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted; request %s may still be running on the daemon: %w", job.RequestID, err)
		}
		return err
	}
	if !out.Succeeded() {
		if derr := out.Err(); derr != nil {
			return derr
		}
		return fmt.Errorf("request %s failed", job.RequestID)
	}
	a.Presenter.Success(confirmation)
	return nil
}
