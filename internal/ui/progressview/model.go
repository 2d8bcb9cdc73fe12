// Package progressview shows a running operation full-screen: the
// sections it walks through and every entity it touches, as they finish.
package progressview

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/lifeplan/internal/keys"
	"github.com/nhle/lifeplan/internal/progress"
	"github.com/nhle/lifeplan/internal/theme"
	"github.com/nhle/lifeplan/internal/ui"
)

type sectionMsg struct {
	path []string
}

type entryMsg struct {
	entry progress.Entry
}

// DoneMsg is sent once the operation has returned.
type DoneMsg struct {
	Summary string
	Err     error
}

type line struct {
	text   string
	failed bool
}

// Model is the Bubble Tea model of the progress view.
type Model struct {
	title        string
	keys         *keys.KeyMap
	spinner      spinner.Model
	help         help.Model
	layout       ui.Layout
	lines        []line
	offset       int
	failuresOnly bool
	counts       map[progress.Action]int
	failed       int
	done         bool
	summary      string
	err          error
}

// New creates a progress view titled title.
func New(title string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorYellow)

	return Model{
		title:   title,
		keys:    keys.DefaultKeyMap(),
		spinner: s,
		help:    help.New(),
		layout:  ui.NewLayout(80, 24),
		counts:  make(map[progress.Action]int),
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles operation events, window resizes and keys.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.help.Width = msg.Width
		return m, nil

	case sectionMsg:
		indent := strings.Repeat("  ", len(msg.path)-1)
		m.lines = append(m.lines, line{text: indent + theme.SubHeaderStyle.Render(msg.path[len(msg.path)-1])})
		return m, nil

	case entryMsg:
		m.counts[msg.entry.Action]++
		if msg.entry.Failed() {
			m.failed++
		}
		m.lines = append(m.lines, line{
			text:   strings.Repeat("  ", entryDepth(msg.entry)) + progress.FormatEntry(msg.entry),
			failed: msg.entry.Failed(),
		})
		return m, nil

	case DoneMsg:
		m.done = true
		m.summary = msg.Summary
		m.err = msg.Err
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Failures):
			m.failuresOnly = !m.failuresOnly
			m.offset = 0
		case key.Matches(msg, m.keys.Up):
			m.offset++
		case key.Matches(msg, m.keys.Down):
			m.offset = max(m.offset-1, 0)
		}
		return m, nil
	}
	return m, nil
}

// View renders the header, the visible window of lines and the key hints.
func (m Model) View() string {
	return m.layout.Frame(m.title, m.state(), m.visibleLines(), m.offset, m.help.View(m.keys))
}

// Done reports whether the operation has returned.
func (m Model) Done() bool {
	return m.done
}

// Err is the error the operation returned, if any.
func (m Model) Err() error {
	return m.err
}

func (m Model) visibleLines() []string {
	out := make([]string, 0, len(m.lines))
	for _, l := range m.lines {
		if m.failuresOnly && !l.failed {
			continue
		}
		out = append(out, l.text)
	}
	return out
}

func (m Model) state() string {
	counts := fmt.Sprintf("%d created  %d updated  %d archived  %d removed",
		m.counts[progress.ActionCreating],
		m.counts[progress.ActionUpdating],
		m.counts[progress.ActionArchiving],
		m.counts[progress.ActionRemoving],
	)
	if m.failed > 0 {
		counts += fmt.Sprintf("  %d failed", m.failed)
	}
	switch {
	case !m.done:
		return m.spinner.View() + " " + counts
	case m.err != nil:
		return "failed: " + m.err.Error()
	case m.summary != "":
		return m.summary
	}
	return "done  " + counts
}

func entryDepth(e progress.Entry) int {
	if e.Section == "" {
		return 0
	}
	return strings.Count(e.Section, " / ") + 1
}

// Sink forwards reporter events to a running program.
type Sink struct {
	send func(tea.Msg)
}

// NewSink returns a sink sending to p. Send returns immediately once p
// has exited, so a reporter outliving the view never blocks.
func NewSink(p *tea.Program) *Sink {
	return &Sink{send: p.Send}
}

func (s *Sink) SectionStarted(path []string) {
	s.send(sectionMsg{path: path})
}

func (s *Sink) SectionEnded([]string) {}

func (s *Sink) EntryDone(e progress.Entry) {
	s.send(entryMsg{entry: e})
}

// Run executes fn while the progress view renders on stderr. Quitting the
// view cancels the context handed to fn; Run still waits for fn to return.
func Run(
	ctx context.Context,
	title string,
	fn func(ctx context.Context, rep *progress.Reporter) (string, error),
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(title),
		tea.WithContext(ctx),
		tea.WithOutput(os.Stderr),
		tea.WithAltScreen(),
	)

	var (
		summary string
		opErr   error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		summary, opErr = fn(ctx, progress.New(NewSink(p)))
		p.Send(DoneMsg{Summary: summary, Err: opErr})
	}()

	_, err := p.Run()
	cancel()
	<-finished

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if opErr == nil && summary != "" {
		fmt.Fprintln(os.Stderr, summary)
	}
	return opErr
}
