// Package app is the composition root of the luna command-line client.
//
// # Overview
//
// New loads the config file and user preferences, then wires the pieces
// every daemon command needs:
//
//	┌──────────────┐
//	│   New()      │
//	└──────┬───────┘
//	       ├─────> config.Load()      Read ~/.config/luna/luna.toml
//	       ├─────> prefs.Load()       Output format and theme
//	       ├─────> logging.New()      slog to stderr, tagged with an invocation id
//	       ├─────> luna.NewClient()   HTTP transport with retries
//	       ├─────> session.New()      Token cache; plugged into the client
//	       ├─────> tracker.New()      Status polling with a progress indicator
//	       └─────> ui.NewPresenter()  Tables, JSON or YAML on stdout
//
// # Completing actions
//
// Complete takes the daemon's answer to a submitted action. Errors are
// returned untouched so the caller reports them once. An answer without a
// request_id finished synchronously; one with a request_id is handed to the
// tracker, and the confirmation line is printed only after the daemon reports
// the job gone.
//
// # Overrides
//
// Options fields set from flags or LUNA_* environment variables win over the
// config file; empty fields leave the file's values in place.
package app
