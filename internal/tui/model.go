// Package tui renders the watch view: a self-refreshing list of discovered
// sessions. It is a pure consumer of the session engine; all state it shows
// comes out of one LoadSessions call.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/schlubbi/copilot-sessions/internal/config"
	"github.com/schlubbi/copilot-sessions/internal/logging"
	"github.com/schlubbi/copilot-sessions/internal/platform"
	"github.com/schlubbi/copilot-sessions/internal/session"
)

var uiLog = logging.ForComponent(logging.CompUI)

// Model is the bubbletea model for the watch view.
type Model struct {
	source  *session.DataSource
	watcher *session.Watcher
	cfg     *config.UserConfig

	sessions []session.Session

	filter    textinput.Model
	filtering bool

	spin        spinner.Model
	loading     bool
	pendingLoad bool
	lastRefresh time.Time

	// warning is a one-line storage caveat (network mounts etc.), shown in
	// the footer when non-empty.
	warning string

	width  int
	height int
}

// NewModel builds the watch model. A watcher that fails to start is not
// fatal; the poll timer still refreshes the view.
func NewModel(cfg *config.UserConfig, source *session.DataSource) Model {
	filter := textinput.New()
	filter.Placeholder = "filter"
	filter.CharLimit = 64
	filter.Width = 24

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot
	spin.Style = spinnerStyle

	watcher, err := session.NewWatcher(source.Root())
	if err != nil {
		uiLog.Debug("watcher_unavailable")
		watcher = nil
	}

	return Model{
		source:  source,
		watcher: watcher,
		cfg:     cfg,
		filter:  filter,
		spin:    spin,
		// Init fires the first discovery pass.
		loading: true,
		warning: platform.CheckFsnotifySupport(source.Root()),
	}
}

// Message types
type (
	sessionsLoadedMsg []session.Session
	pollTickMsg       time.Time
	storageChangedMsg struct{}
)

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.refreshCmd(), m.pollTickCmd(), m.spin.Tick}
	if m.watcher != nil {
		cmds = append(cmds, m.watchCmd())
	}
	return tea.Batch(cmds...)
}

// refreshCmd runs one discovery pass off the UI loop. LoadSessions blocks
// for CPU sampling windows and file tails, so it must never run inline in
// Update.
func (m Model) refreshCmd() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		return sessionsLoadedMsg(source.LoadSessions(context.Background()))
	}
}

func (m Model) pollTickCmd() tea.Cmd {
	return tea.Tick(m.cfg.PollInterval(), func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

// watchCmd blocks on the next storage change signal.
func (m Model) watchCmd() tea.Cmd {
	watcher := m.watcher
	return func() tea.Msg {
		if _, ok := <-watcher.Events(); !ok {
			return nil
		}
		return storageChangedMsg{}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case sessionsLoadedMsg:
		m.sessions = msg
		m.loading = false
		m.lastRefresh = time.Now()
		if m.pendingLoad {
			m.pendingLoad = false
			return m, m.startRefresh()
		}
		return m, nil

	case pollTickMsg:
		return m, tea.Batch(m.startRefresh(), m.pollTickCmd())

	case storageChangedMsg:
		return m, tea.Batch(m.startRefresh(), m.watchCmd())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// startRefresh kicks off a discovery pass unless one is already running.
// Overlapping passes would duplicate the external tool invocations, so
// refreshes serialize here and a request arriving mid-pass coalesces into
// one follow-up pass.
func (m *Model) startRefresh() tea.Cmd {
	if m.loading {
		m.pendingLoad = true
		return nil
	}
	m.loading = true
	return m.refreshCmd()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		switch msg.String() {
		case "esc":
			m.filtering = false
			m.filter.SetValue("")
			m.filter.Blur()
			return m, nil
		case "enter":
			m.filtering = false
			m.filter.Blur()
			return m, nil
		default:
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			return m, cmd
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		if m.watcher != nil {
			m.watcher.Close()
		}
		return m, tea.Quit
	case "r":
		return m, m.startRefresh()
	case "/":
		m.filtering = true
		m.filter.Focus()
		return m, textinput.Blink
	case "esc":
		m.filter.SetValue("")
		return m, nil
	}

	return m, nil
}

// visibleSessions applies the current filter.
func (m Model) visibleSessions() []session.Session {
	return session.Filter(m.sessions, m.filter.Value())
}
