package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/clustervision/lunactl/internal/logging"
	"github.com/clustervision/lunactl/internal/luna"
	"github.com/clustervision/lunactl/internal/progress"
	"github.com/clustervision/lunactl/internal/state"
)

// DefaultInterval is the pause before every status poll and between
// consecutive progress lines.
const DefaultInterval = 2 * time.Second

var (
	// ErrBusy is returned when Track is called while another Track on the
	// same Tracker is still running.
	ErrBusy = errors.New("tracker already tracking a request")
	// ErrNoRequestID is returned when the job carries no request identifier.
	ErrNoRequestID = errors.New("no request id to track")
)

// State is the lifecycle of one tracked request.
type State int

const (
	// Submitted is a request handed back by the daemon, not yet polled.
	Submitted State = iota
	// Polling is a request whose status answers are still 200.
	Polling
	// TerminalSuccess is a request the daemon no longer knows (404).
	TerminalSuccess
	// TerminalFailure is a request that failed on the daemon or while polling.
	TerminalFailure
)

func (s State) String() string {
	switch s {
	case Submitted:
		return "submitted"
	case Polling:
		return "polling"
	case TerminalSuccess:
		return "succeeded"
	case TerminalFailure:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == TerminalSuccess || s == TerminalFailure
}

// Fetcher is the part of the transport the tracker needs.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (*luna.Response, error)
}

// Job describes one request to follow.
type Job struct {
	RequestID string
	// Label is shown next to the progress indicator, e.g. "Packing OS image compute".
	Label string
	// Format turns a 200 poll answer into display lines. Nil means MessageLines.
	Format Formatter
}

// Outcome is the result of Track.
type Outcome struct {
	State    State
	Polls    int
	Messages int
	// Last is the final status answer. On TerminalFailure caused by the
	// daemon it carries the status code and body to report.
	Last *luna.Response
}

// Succeeded reports whether the request finished successfully.
func (o Outcome) Succeeded() bool {
	return o.State == TerminalSuccess
}

// Err returns the daemon error behind a failed outcome, or nil. A poll that
// ended tracking with an unexpected 2xx code is reported as an error too.
func (o Outcome) Err() error {
	if o.State != TerminalFailure || o.Last == nil {
		return nil
	}
	if err := o.Last.Err(); err != nil {
		return err
	}
	msg := strings.TrimSpace(o.Last.Message())
	if msg == "" {
		msg = "unexpected status answer: " + http.StatusText(o.Last.StatusCode)
	}
	return &luna.APIError{StatusCode: o.Last.StatusCode, Message: msg, Raw: o.Last.Raw}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithInterval overrides DefaultInterval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithSleep replaces the context-aware sleep used between polls and lines.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(t *Tracker) {
		if sleep != nil {
			t.sleep = sleep
		}
	}
}

// WithIndicator sets the factory for the per-Track progress indicator.
func WithIndicator(newIndicator func() progress.Indicator) Option {
	return func(t *Tracker) {
		if newIndicator != nil {
			t.newIndicator = newIndicator
		}
	}
}

// WithStore shares the state store the indicator reads from.
func WithStore(store *state.Store) Option {
	return func(t *Tracker) {
		if store != nil {
			t.store = store
		}
	}
}

// WithLogger sets the logger for poll diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Tracker follows asynchronous daemon requests until they finish.
type Tracker struct {
	client       Fetcher
	interval     time.Duration
	sleep        func(context.Context, time.Duration) error
	newIndicator func() progress.Indicator
	store        *state.Store
	logger       *slog.Logger

	busy atomic.Bool
}

// New returns a Tracker polling through client.
func New(client Fetcher, opts ...Option) *Tracker {
	t := &Tracker{
		client:       client,
		interval:     DefaultInterval,
		sleep:        sleepContext,
		newIndicator: func() progress.Indicator { return progress.NewLines(io.Discard) },
		store:        &state.Store{},
		logger:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Interval returns the pause between polls.
func (t *Tracker) Interval() time.Duration {
	return t.interval
}

// Store returns the state store updated while tracking.
func (t *Tracker) Store() *state.Store {
	return t.store
}

// Track polls the status resource for job until the daemon reports it gone
// (success) or answers with any code other than 200 (failure). Progress lines
// are printed through the indicator in the order received, one interval
// apart. The returned error is non-nil only when polling itself broke down:
// a transport failure or context cancellation.
func (t *Tracker) Track(ctx context.Context, job Job) (Outcome, error) {
	requestID := strings.TrimSpace(job.RequestID)
	if requestID == "" {
		return Outcome{State: TerminalFailure}, ErrNoRequestID
	}
	if !t.busy.CompareAndSwap(false, true) {
		return Outcome{State: TerminalFailure}, ErrBusy
	}
	defer t.busy.Store(false)

	format := job.Format
	if format == nil {
		format = MessageLines
	}
	logger := t.logger.With(slog.String("request_id", requestID))

	out := Outcome{State: Submitted}
	t.store.Begin(requestID, job.Label, out.State.String())

	indicator := t.newIndicator()
	indicator.Start(job.Label, t.store)
	stopped := false
	stop := func() {
		if !stopped {
			stopped = true
			indicator.Stop()
		}
	}
	defer stop()

	path := luna.StatusPath(requestID)
	out.State = Polling
	t.store.Transition(out.State.String(), nil)

	var trackErr error
	for !out.State.Terminal() {
		if err := t.sleep(ctx, t.interval); err != nil {
			out.State, trackErr = TerminalFailure, fmt.Errorf("track request %s: %w", requestID, err)
			break
		}

		resp, err := t.client.Fetch(ctx, path)
		out.Polls++
		t.store.RecordPoll()
		if err != nil {
			out.State, trackErr = TerminalFailure, fmt.Errorf("poll request %s: %w", requestID, err)
			break
		}
		out.Last = resp
		logger.Debug("status poll", slog.Int("poll", out.Polls), slog.Int("status", resp.StatusCode))

		switch resp.StatusCode {
		case http.StatusNotFound:
			out.State = TerminalSuccess
		case http.StatusOK:
			lines := format(resp)
			t.store.RecordLines(lines)
			for i, line := range lines {
				if i > 0 {
					if err := t.sleep(ctx, t.interval); err != nil {
						out.State, trackErr = TerminalFailure, fmt.Errorf("track request %s: %w", requestID, err)
						break
					}
				}
				indicator.Println(line)
				out.Messages++
			}
		default:
			out.State = TerminalFailure
		}
	}

	stop()
	t.store.Transition(out.State.String(), trackErr)
	logger.Debug("request finished",
		slog.String("state", out.State.String()),
		slog.Int("polls", out.Polls),
		slog.Int("messages", out.Messages),
	)
	return out, trackErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
