package progress

import (
	"io"

	"golang.org/x/term"

	"github.com/clustervision/lunactl/internal/state"
)

// Indicator shows that a tracked request is still running.
//
// Start is called once per tracked request, Println any number of times
// while it runs, and Stop once when it reaches a terminal state. Stop must be
// safe to call on an Indicator that was never started.
type Indicator interface {
	Start(label string, store *state.Store)
	Println(line string)
	Stop()
}

// New returns a Spinner when w is a terminal and Lines otherwise.
func New(w io.Writer) Indicator {
	if IsTerminal(w) {
		return NewSpinner(w)
	}
	return NewLines(w)
}

// IsTerminal reports whether w is backed by a terminal file descriptor.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
