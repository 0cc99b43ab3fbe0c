package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/botctl/internal/client"
	"github.com/npratt/botctl/internal/events"
)

const (
	// maxEventLines is the maximum number of event lines to keep in the buffer.
	maxEventLines = 1000
	// trimEventLines is the number of lines to remove when buffer exceeds max.
	trimEventLines = 100
	// tickInterval drives redraws so expired notices disappear.
	tickInterval = time.Second
)

// channelClosedMsg signals that the event channel was closed.
type channelClosedMsg struct{}

// tickMsg signals a periodic redraw.
type tickMsg time.Time

// outcomeMsg carries the result of a key-triggered command.
type outcomeMsg struct {
	name    string
	outcome client.Outcome
}

// waitForEvent creates a command that waits for the next event from the channel.
// Returns channelClosedMsg if the channel is closed.
func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return channelClosedMsg{}
		}
		return eventMsg{event: event}
	}
}

// doTick creates a command that waits for the tick interval and sends a tickMsg.
func doTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case eventMsg:
		m.handleEvent(msg.event)
		return m, waitForEvent(m.eventChan)

	case channelClosedMsg:
		slog.Info("event channel closed, exiting TUI")
		return m, tea.Quit

	case tickMsg:
		return m, doTick()

	case outcomeMsg:
		m.running = ""
		m.lastOK = msg.outcome.OK
		m.lastMessage = msg.outcome.Message
		if m.lastMessage == "" {
			m.lastMessage = msg.name + " done"
		}
		return m, nil

	case spinner.TickMsg:
		if m.running == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKey processes keyboard input and returns the updated model and command.
func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirm != nil {
		return m.handleConfirm(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.onQuit != nil {
			m.onQuit()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.autoScroll = false
		if m.scrollPos > 0 {
			m.scrollPos--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		maxScroll := len(m.eventLines) - m.visibleLines()
		if m.scrollPos < maxScroll {
			m.scrollPos++
		}
		if m.scrollPos >= maxScroll {
			m.autoScroll = true
		}
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.autoScroll = false
		m.scrollPos = 0
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.autoScroll = true
		m.scrollPos = max(0, len(m.eventLines)-m.visibleLines())
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		if m.notices != nil {
			m.notices.DismissAll()
		}
		return m, nil
	}

	if m.commands == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Start):
		return m.run("start", m.commands.Start)
	case key.Matches(msg, m.keys.Stop):
		return m.run("stop", m.commands.Stop)
	case key.Matches(msg, m.keys.Pause):
		return m.run("pause", m.commands.Pause)
	case key.Matches(msg, m.keys.Resume):
		return m.run("resume", m.commands.Resume)
	case key.Matches(msg, m.keys.Emergency):
		return m.run("emergency stop", m.commands.EmergencyStop)
	case key.Matches(msg, m.keys.Save):
		return m.run("save config", m.commands.SaveConfig)
	case key.Matches(msg, m.keys.Reload):
		return m.run("reload config", m.commands.ReloadConfig)
	case key.Matches(msg, m.keys.Reset):
		return m.ask("reset config", "Reset all configuration to defaults?", m.commands.ResetConfig)
	case key.Matches(msg, m.keys.ClearCache):
		return m.ask("clear cache", "Clear the browser cache? Logins are kept.", m.commands.ClearCache)
	case key.Matches(msg, m.keys.ResetStats):
		return m.ask("reset stats", "Reset all statistics?", m.commands.ResetStats)
	case key.Matches(msg, m.keys.Sound):
		out := m.commands.ToggleSound()
		m.lastOK = out.OK
		m.lastMessage = out.Message
		return m, nil
	}

	return m, nil
}

func (m model) handleConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	pending := m.confirm
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.confirm = nil
		m.running = pending.name
		return m, tea.Batch(m.spinner.Tick, pending.run)
	case key.Matches(msg, m.keys.Cancel), key.Matches(msg, m.keys.Quit):
		m.confirm = nil
		m.lastOK = true
		m.lastMessage = pending.name + " cancelled"
		return m, nil
	}
	return m, nil
}

// command wraps fn as a tea.Cmd bounded by the command timeout.
func (m model) command(name string, fn func(context.Context) client.Outcome) tea.Cmd {
	timeout := m.commandTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return outcomeMsg{name: name, outcome: fn(ctx)}
	}
}

// run starts a command unless another is in flight.
func (m model) run(name string, fn func(context.Context) client.Outcome) (tea.Model, tea.Cmd) {
	if m.running != "" {
		m.lastOK = false
		m.lastMessage = "busy: " + m.running
		return m, nil
	}
	m.running = name
	return m, tea.Batch(m.spinner.Tick, m.command(name, fn))
}

// ask holds a destructive command until the operator confirms it.
func (m model) ask(name, prompt string, fn func(context.Context) client.Outcome) (tea.Model, tea.Cmd) {
	if m.running != "" {
		m.lastOK = false
		m.lastMessage = "busy: " + m.running
		return m, nil
	}
	m.confirm = &pendingAction{name: name, prompt: prompt, run: m.command(name, fn)}
	return m, nil
}

// handleEvent appends a formatted line for event to the log.
func (m *model) handleEvent(event events.Event) {
	text := Format(event)
	if text == "" {
		return
	}

	m.eventLines = append(m.eventLines, eventLine{
		Time:  event.Timestamp(),
		Text:  text,
		Style: StyleForEvent(event),
	})

	if len(m.eventLines) > maxEventLines {
		m.eventLines = m.eventLines[trimEventLines:]
		m.scrollPos = max(0, m.scrollPos-trimEventLines)
	}

	if m.autoScroll {
		maxScroll := len(m.eventLines) - m.visibleLines()
		if maxScroll > 0 {
			m.scrollPos = maxScroll
		}
	}
}
