package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Options configure New.
type Options struct {
	Writer     io.Writer
	Debug      bool
	Invocation string
}

// New returns a text logger. INFO and above by default; DEBUG with source
// locations when Debug is set. Every record carries the invocation id.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if opts.Debug {
		handlerOpts = &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true}
	}
	logger := slog.New(slog.NewTextHandler(w, handlerOpts))
	if opts.Invocation != "" {
		logger = logger.With(slog.String("invocation", opts.Invocation))
	}
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewInvocationID returns a fresh id correlating this process's log lines
// with the daemon's.
func NewInvocationID() string {
	return uuid.NewString()
}

// DebugFromEnv reports whether LUNA_DEBUG enables debug logging.
func DebugFromEnv() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LUNA_DEBUG"))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
