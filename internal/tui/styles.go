package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/botctl/internal/conn"
	"github.com/npratt/botctl/internal/events"
	"github.com/npratt/botctl/internal/notify"
)

// styles contains all lipgloss styles used by the TUI.
var styles = struct {
	// Layout styles
	Container lipgloss.Style
	Divider   lipgloss.Style

	// Header styles
	Title lipgloss.Style
	Dirty lipgloss.Style
	Label lipgloss.Style
	Value lipgloss.Style
	Muted lipgloss.Style

	// Footer styles
	Footer  lipgloss.Style
	Prompt  lipgloss.Style
	Spinner lipgloss.Style

	// Event styles
	Connection lipgloss.Style
	Update     lipgloss.Style
	Notice     lipgloss.Style
	Error      lipgloss.Style

	// Bot status colors
	StatusRunning lipgloss.Style
	StatusPaused  lipgloss.Style
	StatusStopped lipgloss.Style
	StatusUnknown lipgloss.Style

	// Notification colors
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Info      lipgloss.Style
	Emergency lipgloss.Style
}{
	Container: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")),

	Divider: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),

	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("212")),

	Dirty: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("214")),

	Label: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	Value: lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")),

	Muted: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),

	Footer: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	Prompt: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("214")),

	Spinner: lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")),

	Connection: lipgloss.NewStyle().
		Foreground(lipgloss.Color("177")),

	Update: lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")),

	Notice: lipgloss.NewStyle().
		Foreground(lipgloss.Color("114")),

	Error: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),

	StatusRunning: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("82")),

	StatusPaused: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	StatusStopped: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),

	StatusUnknown: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	Success: lipgloss.NewStyle().
		Foreground(lipgloss.Color("82")),

	Warning: lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")),

	Info: lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")),

	Emergency: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("231")).
		Background(lipgloss.Color("160")),
}

// StyleForEvent returns the appropriate style for an event.
func StyleForEvent(event events.Event) lipgloss.Style {
	switch e := event.(type) {
	case *events.ConnectionOpenedEvent, *events.ConnectionClosedEvent, *events.HealthRecoveredEvent:
		return styles.Connection
	case *events.ConnectionErrorEvent, *events.ErrorEvent, *events.HealthAlertEvent:
		return styles.Error
	case *events.NoticeAddedEvent:
		return styleForCategory(notify.ParseCategory(e.Category))
	case *events.BotStatusEvent:
		return styleForStatus(e.Status)
	default:
		return styles.Update
	}
}

// styleForCategory colors a notification.
func styleForCategory(c notify.Category) lipgloss.Style {
	switch c {
	case notify.Success:
		return styles.Success
	case notify.Error:
		return styles.Error
	case notify.Warning:
		return styles.Warning
	case notify.Emergency:
		return styles.Emergency
	default:
		return styles.Info
	}
}

// styleForStatus colors a bot status.
func styleForStatus(status string) lipgloss.Style {
	switch status {
	case "running":
		return styles.StatusRunning
	case "paused":
		return styles.StatusPaused
	case "stopped", "error":
		return styles.StatusStopped
	default:
		return styles.StatusUnknown
	}
}

// styleForConnection colors a connection state.
func styleForConnection(s conn.State) lipgloss.Style {
	switch s {
	case conn.Connected:
		return styles.StatusRunning
	case conn.Connecting:
		return styles.StatusPaused
	default:
		return styles.StatusStopped
	}
}
