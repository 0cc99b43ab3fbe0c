package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/botctl/internal/events"
)

// eventLine represents a formatted event for display.
type eventLine struct {
	Time  time.Time
	Text  string
	Style lipgloss.Style
}

// pendingAction is a destructive command waiting for y/n.
type pendingAction struct {
	name   string
	prompt string
	run    tea.Cmd
}

// model is the bubbletea model for the dashboard.
type model struct {
	// Sources
	eventChan <-chan events.Event
	views     Views
	notices   Notices
	conn      Connection
	commands  Commands

	// Event log
	eventLines []eventLine

	// Command state
	running        string
	confirm        *pendingAction
	lastMessage    string
	lastOK         bool
	commandTimeout time.Duration

	// UI state
	keys       keyMap
	help       help.Model
	spinner    spinner.Model
	width      int
	height     int
	scrollPos  int
	autoScroll bool

	onQuit func()
}

// eventMsg wraps an event for the bubbletea message system.
type eventMsg struct{ event events.Event }

func newModel(t *TUI) model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = styles.Spinner

	return model{
		eventChan:      t.eventChan,
		views:          t.views,
		notices:        t.notices,
		conn:           t.conn,
		commands:       t.commands,
		commandTimeout: t.commandTimeout,
		keys:           defaultKeyMap(),
		help:           help.New(),
		spinner:        sp,
		autoScroll:     true,
		onQuit:         t.onQuit,
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.eventChan),
		doTick(),
	)
}

// chromeLines is the number of rows used by everything except the event log.
func (m model) chromeLines() int {
	// border (2), header (1), dividers (4), summary panes (3)
	return 10 + m.noticeRows() + lipgloss.Height(m.renderFooter())
}

// visibleLines returns the number of event lines that fit in the viewport.
func (m model) visibleLines() int {
	return max(1, m.height-m.chromeLines())
}

func (m model) noticeRows() int {
	if m.notices == nil {
		return 1
	}
	return min(max(1, len(m.notices.Active())), maxNoticeRows)
}
