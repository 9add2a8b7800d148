package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/clustervision/lunactl/internal/state"
)

const (
	refreshInterval = 500 * time.Millisecond
	// stopTimeout bounds how long Stop waits for the final frame before
	// killing the program.
	stopTimeout = 250 * time.Millisecond
)

// Messages

type refreshMsg time.Time
type snapshotMsg state.Snapshot
type stopMsg struct{}

// Commands

func refreshCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		if store == nil {
			return snapshotMsg{}
		}
		return snapshotMsg(store.Snapshot())
	}
}

// model is the bubbletea model behind Spinner: one spinner glyph, the label
// and the poll counter read from the shared store.
type model struct {
	spinner spinner.Model
	label   string
	store   *state.Store
	snap    state.Snapshot
	done    bool

	labelStyle lipgloss.Style
	mutedStyle lipgloss.Style
}

func newModel(label string, store *state.Store) model {
	return model{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#bd93f9"))),
		),
		label:      label,
		store:      store,
		labelStyle: lipgloss.NewStyle().Bold(true),
		mutedStyle: lipgloss.NewStyle().Faint(true),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, fetchSnapshotCmd(m.store))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case refreshMsg:
		return m, fetchSnapshotCmd(m.store)
	case snapshotMsg:
		m.snap = state.Snapshot(msg)
		return m, refreshCmd(refreshInterval)
	case stopMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(m.labelStyle.Render(m.label))
	if m.snap.Polls > 0 {
		b.WriteString(" ")
		b.WriteString(m.mutedStyle.Render(fmt.Sprintf("(poll %d)", m.snap.Polls)))
	}
	b.WriteString("\n")
	return b.String()
}

// Spinner renders an animated indicator on a terminal. Lines printed while it
// runs appear above the spinner.
type Spinner struct {
	out io.Writer

	mu       sync.Mutex
	program  *tea.Program
	finished chan struct{}
	stopOnce sync.Once
}

// NewSpinner returns a Spinner writing to w.
func NewSpinner(w io.Writer) *Spinner {
	return &Spinner{out: w}
}

// Start launches the spinner program in the background. It does not read
// stdin and leaves signal handling to the caller.
func (s *Spinner) Start(label string, store *state.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.program != nil {
		return
	}

	p := tea.NewProgram(
		newModel(label, store),
		tea.WithOutput(s.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_, _ = p.Run()
	}()
	s.program = p
	s.finished = finished
}

// Println prints line above the spinner, or directly to the output when the
// spinner is not running.
func (s *Spinner) Println(line string) {
	s.mu.Lock()
	p, finished := s.program, s.finished
	s.mu.Unlock()

	if p == nil || closed(finished) {
		fmt.Fprintln(s.out, line)
		return
	}
	p.Println(line)
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Stop clears the spinner and stops the program. Calling Stop more than once,
// or before Start, is a no-op.
func (s *Spinner) Stop() {
	s.mu.Lock()
	p, finished := s.program, s.finished
	s.mu.Unlock()
	if p == nil {
		return
	}

	s.stopOnce.Do(func() {
		go p.Send(stopMsg{})
		select {
		case <-finished:
		case <-time.After(stopTimeout):
			p.Kill()
			<-finished
		}
	})
}
