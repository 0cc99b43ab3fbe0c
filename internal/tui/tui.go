// Package tui provides a terminal dashboard for a botctl session using bubbletea.
package tui

import (
	"context"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/botctl/internal/client"
	"github.com/npratt/botctl/internal/conn"
	"github.com/npratt/botctl/internal/events"
	"github.com/npratt/botctl/internal/notify"
	"github.com/npratt/botctl/internal/views"
)

// defaultCommandTimeout bounds one key-triggered backend call.
const defaultCommandTimeout = 15 * time.Second

// Views is the read side of the session state.
type Views interface {
	Config() views.ConfigView
	Status() views.StatusView
	Stats() map[string]any
	SystemInfo() map[string]any
	Dirty() bool
	SuccessRate() (float64, bool)
}

// Notices lists and clears visible notifications.
type Notices interface {
	Active() []notify.Record
	DismissAll()
	SoundEnabled() bool
}

// Connection reports the channel state.
type Connection interface {
	State() conn.State
}

// Commands are the operator actions bound to keys.
type Commands interface {
	Start(ctx context.Context) client.Outcome
	Stop(ctx context.Context) client.Outcome
	Pause(ctx context.Context) client.Outcome
	Resume(ctx context.Context) client.Outcome
	EmergencyStop(ctx context.Context) client.Outcome
	SaveConfig(ctx context.Context) client.Outcome
	ReloadConfig(ctx context.Context) client.Outcome
	ResetConfig(ctx context.Context) client.Outcome
	ClearCache(ctx context.Context) client.Outcome
	ResetStats(ctx context.Context) client.Outcome
	ToggleSound() client.Outcome
}

// TUI is the terminal dashboard.
type TUI struct {
	eventChan      <-chan events.Event
	views          Views
	notices        Notices
	conn           Connection
	commands       Commands
	onQuit         func()
	out            io.Writer
	simple         bool
	commandTimeout time.Duration
}

// Option configures the TUI.
type Option func(*TUI)

// New creates a TUI fed by eventChan.
func New(eventChan <-chan events.Event, opts ...Option) *TUI {
	t := &TUI{
		eventChan:      eventChan,
		out:            os.Stdout,
		commandTimeout: defaultCommandTimeout,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// WithViews sets the state the panes render.
func WithViews(v Views) Option {
	return func(t *TUI) {
		t.views = v
	}
}

// WithNotices sets the notification source.
func WithNotices(n Notices) Option {
	return func(t *TUI) {
		t.notices = n
	}
}

// WithConnection sets the connection state source.
func WithConnection(c Connection) Option {
	return func(t *TUI) {
		t.conn = c
	}
}

// WithCommands binds operator keys to c.
func WithCommands(c Commands) Option {
	return func(t *TUI) {
		t.commands = c
	}
}

// WithOnQuit sets the callback invoked when the user quits.
func WithOnQuit(fn func()) Option {
	return func(t *TUI) {
		t.onQuit = fn
	}
}

// WithOutput sets where line mode writes.
func WithOutput(w io.Writer) Option {
	return func(t *TUI) {
		t.out = w
	}
}

// WithSimple forces line mode even on a terminal.
func WithSimple(simple bool) Option {
	return func(t *TUI) {
		t.simple = simple
	}
}

// WithCommandTimeout bounds each key-triggered command.
func WithCommandTimeout(d time.Duration) Option {
	return func(t *TUI) {
		if d > 0 {
			t.commandTimeout = d
		}
	}
}

// Run starts the dashboard and blocks until it exits. Without a usable
// terminal it falls back to printing one line per event.
func (t *TUI) Run() error {
	if t.simple || !isTerminal() || terminalTooSmall() {
		return t.runSimple()
	}

	m := newModel(t)

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
