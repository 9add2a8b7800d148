package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/clustervision/lunactl/internal/state"
)

// Lines is the indicator used when output is not a terminal: the label is
// printed once and progress lines follow verbatim.
type Lines struct {
	mu  sync.Mutex
	out io.Writer
}

// NewLines returns a Lines indicator writing to w.
func NewLines(w io.Writer) *Lines {
	return &Lines{out: w}
}

// Start prints the label followed by "...". An empty label prints nothing.
func (l *Lines) Start(label string, _ *state.Store) {
	label = strings.TrimSpace(label)
	if label == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s...\n", label)
}

// Println prints line verbatim.
func (l *Lines) Println(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, line)
}

// Stop is a no-op; Lines has nothing to clear.
func (l *Lines) Stop() {}
