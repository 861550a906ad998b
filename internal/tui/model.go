package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/termrelay/internal/errors"
	"github.com/Iron-Ham/termrelay/internal/util"
)

// Executor runs one command and returns its output.
type Executor interface {
	Execute(ctx context.Context, command string, timeout time.Duration) (string, error)
}

// chrome is the number of rows used by everything but the viewport:
// header (2), status line (1), input (1).
const chrome = 4

type entry struct {
	command string
	output  string
	err     error
	elapsed time.Duration
}

// resultMsg carries a finished invocation back into Update.
type resultMsg struct {
	entry
}

// Model is the console's Bubble Tea model.
type Model struct {
	parent  context.Context
	exec    Executor
	target  string
	timeout time.Duration

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	history []entry
	recall  []string
	// recallIdx indexes recall while browsing with up/down; len(recall) means
	// a fresh line.
	recallIdx int

	running bool
	started time.Time
	cancel  context.CancelFunc

	width, height int
	ready         bool
	quitting      bool
	err           error
}

// New creates a console that runs commands through exec. target is shown in
// the header; timeout is passed to every invocation (zero means the
// executor's default).
func New(ctx context.Context, exec Executor, target string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "relay> "
	ti.Placeholder = "command to run in the terminal"
	ti.PromptStyle = commandStyle
	ti.CharLimit = 4096
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = mutedStyle

	return Model{
		parent:  ctx,
		exec:    exec,
		target:  target,
		timeout: timeout,
		input:   ti,
		spinner: sp,
	}
}

// Err returns the error that ended the console, if the session became
// unusable.
func (m Model) Err() error {
	return m.err
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h := max(msg.Height-chrome, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, h)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = h
		}
		m.input.Width = max(msg.Width-len(m.input.Prompt)-1, 10)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case resultMsg:
		m.running = false
		m.cancel = nil
		m.history = append(m.history, msg.entry)
		m.refresh()
		if errors.Is(msg.err, errors.ErrSessionClosed) || errors.Is(msg.err, errors.ErrSessionBroken) {
			m.err = msg.err
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.running {
			m.cancel()
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case "ctrl+d":
		if m.running {
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case "up":
		if !m.running && m.recallIdx > 0 {
			m.recallIdx--
			m.input.SetValue(m.recall[m.recallIdx])
			m.input.CursorEnd()
		}
		return m, nil

	case "down":
		if !m.running && m.recallIdx < len(m.recall) {
			m.recallIdx++
			if m.recallIdx == len(m.recall) {
				m.input.SetValue("")
			} else {
				m.input.SetValue(m.recall[m.recallIdx])
				m.input.CursorEnd()
			}
		}
		return m, nil

	case "enter":
		if m.running {
			return m, nil
		}
		command := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		switch command {
		case "":
			return m, nil
		case "exit", "quit":
			m.quitting = true
			return m, tea.Quit
		}
		m.recall = append(m.recall, command)
		m.recallIdx = len(m.recall)
		return m.start(command)
	}

	if m.running {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// start marks an invocation as running and returns the command that
// performs it alongside the spinner tick.
func (m Model) start(command string) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(m.parent)
	m.running = true
	m.started = time.Now()
	m.cancel = cancel

	exec, timeout := m.exec, m.timeout
	run := func() tea.Msg {
		defer cancel()
		begin := time.Now()
		out, err := exec.Execute(ctx, command, timeout)
		return resultMsg{entry{command: command, output: out, err: err, elapsed: time.Since(begin)}}
	}
	return m, tea.Batch(run, m.spinner.Tick)
}

// refresh re-renders the history into the viewport and scrolls to the end.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(renderHistory(m.history, m.width))
	m.viewport.GotoBottom()
}

func renderHistory(history []entry, width int) string {
	var b strings.Builder
	for i, e := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		elapsed := e.elapsed.Round(time.Millisecond).String()
		b.WriteString(commandStyle.Render(util.FitWidth("› "+e.command, max(width-len(elapsed)-1, 10))))
		b.WriteString(" ")
		b.WriteString(mutedStyle.Render(elapsed))
		b.WriteString("\n")
		if e.err != nil {
			b.WriteString(errorStyle.Render(errors.Describe(e.err) + ": " + e.err.Error()))
			b.WriteString("\n")
			continue
		}
		if e.output != "" {
			b.WriteString(e.output)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "starting console..."
	}

	header := headerStyle.Width(m.width).Render(util.FitWidth("termrelay "+mutedStyle.Render(m.target), m.width))

	var status string
	if m.running {
		status = fmt.Sprintf("%s running for %s  %s", m.spinner.View(),
			time.Since(m.started).Round(100*time.Millisecond), mutedStyle.Render("ctrl+c cancel"))
	} else {
		status = mutedStyle.Render(fmt.Sprintf("%d run  •  ↑/↓ history  •  pgup/pgdn scroll  •  ctrl+d quit", len(m.history)))
	}

	return strings.Join([]string{header, m.viewport.View(), status, m.input.View()}, "\n")
}

// Run starts the console on the terminal and blocks until the user quits.
// It returns the error that made the session unusable, if any.
func Run(ctx context.Context, exec Executor, target string, timeout time.Duration) error {
	p := tea.NewProgram(New(ctx, exec, target, timeout), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok {
		return m.Err()
	}
	return nil
}
