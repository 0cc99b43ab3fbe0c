package tui

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"

	"github.com/npratt/botctl/internal/events"
	"github.com/npratt/botctl/internal/views"
)

const (
	maxTextLength     = 200
	maxStatKeys       = 4
	truncateIndicator = "..."
)

// Format converts an event to a human-readable string for display.
// Returns empty string for nil events and for events that only drive redraws.
func Format(event events.Event) string {
	if event == nil {
		return ""
	}

	switch e := event.(type) {
	case *events.ConnectionOpenedEvent:
		return fmt.Sprintf("connected: %s", safeString(e.URL))
	case *events.ConnectionClosedEvent:
		return formatConnectionClosed(e)
	case *events.ConnectionErrorEvent:
		return fmt.Sprintf("connection error: %s", truncate(e.Message, 100))
	case *events.BotStatusEvent:
		return formatBotStatus(e)
	case *events.StatsUpdateEvent:
		return formatStatsUpdate(e)
	case *events.BrowserStatusEvent:
		return formatBrowserStatus(e)
	case *events.TaskCompletedEvent:
		return formatTaskCompleted(e)
	case *events.ErrorEvent:
		return fmt.Sprintf("ERROR: %s", truncate(e.Message, 100))
	case *events.NoticeAddedEvent:
		return fmt.Sprintf("[%s] %s", e.Category, truncate(e.Message, maxTextLength))
	case *events.HealthAlertEvent:
		return fmt.Sprintf("[!] backend unreachable after %d probes", e.Failures)
	case *events.HealthRecoveredEvent:
		return "[+] backend reachable again"
	default:
		// system info, view changes, raw notifications and notice removal
		// are reflected in the panes
		return ""
	}
}

func formatConnectionClosed(e *events.ConnectionClosedEvent) string {
	switch {
	case e.Manual:
		return "disconnected"
	case e.Reason != "":
		return fmt.Sprintf("connection closed (%d: %s)", e.Code, truncate(e.Reason, 60))
	case e.Code != 0:
		return fmt.Sprintf("connection closed (%d)", e.Code)
	default:
		return "connection closed"
	}
}

func formatBotStatus(e *events.BotStatusEvent) string {
	text := safeString(e.StatusText)
	status := safeString(e.Status)
	if text != "" && !strings.EqualFold(text, status) {
		return fmt.Sprintf("bot %s: %s", status, truncate(text, 80))
	}
	return fmt.Sprintf("bot %s", status)
}

func formatStatsUpdate(e *events.StatsUpdateEvent) string {
	if len(e.Stats) == 0 {
		return ""
	}
	keys := slices.Sorted(maps.Keys(e.Stats))
	more := ""
	if len(keys) > maxStatKeys {
		more = fmt.Sprintf(" +%d", len(keys)-maxStatKeys)
		keys = keys[:maxStatKeys]
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(e.Stats[k])))
	}
	return "stats: " + strings.Join(parts, " ") + more
}

func formatBrowserStatus(e *events.BrowserStatusEvent) string {
	if msg, ok := e.Data["message"].(string); ok && msg != "" {
		return fmt.Sprintf("browser: %s", truncate(msg, 100))
	}
	if n, ok := views.ToFloat(e.Data["active_tabs"]); ok {
		return fmt.Sprintf("browser: %d active tabs", int(n))
	}
	return "browser status updated"
}

func formatTaskCompleted(e *events.TaskCompletedEvent) string {
	msg, _ := e.Data["message"].(string)
	tab, hasTab := views.ToFloat(e.Data["tab_id"])
	switch {
	case msg != "" && hasTab:
		return fmt.Sprintf("[+] tab %d: %s", int(tab), truncate(msg, 100))
	case msg != "":
		return fmt.Sprintf("[+] %s", truncate(msg, 100))
	case hasTab:
		return fmt.Sprintf("[+] tab %d task completed", int(tab))
	default:
		return "[+] task completed"
	}
}

// formatValue renders a stats value compactly.
func formatValue(v any) string {
	if n, ok := views.ToFloat(v); ok {
		return humanize.Commaf(n)
	}
	return truncate(fmt.Sprint(v), 30)
}

// formatBytes renders a byte count such as 4.3 GB.
func formatBytes(v any) string {
	n, ok := views.ToFloat(v)
	if !ok || n < 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}

// formatPercent renders a 0-100 value with one decimal.
func formatPercent(v any) string {
	n, ok := views.ToFloat(v)
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", n)
}

// truncate shortens text to maxLen, adding indicator if truncated.
func truncate(s string, maxLen int) string {
	s = safeString(s)
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= len(truncateIndicator) {
		return truncateIndicator
	}
	return s[:maxLen-len(truncateIndicator)] + truncateIndicator
}

// safeString sanitizes a string for display by removing control characters
// and limiting newlines.
func safeString(s string) string {
	s = stripANSI(s)

	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r == ' ' || !unicode.IsControl(r) {
			sb.WriteRune(r)
		}
	}

	result := sb.String()
	for strings.Contains(result, "  ") {
		result = strings.ReplaceAll(result, "  ", " ")
	}

	return strings.TrimSpace(result)
}

// ansiRegex matches ANSI escape sequences.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// stripANSI removes ANSI escape sequences from a string.
func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// formatUptime formats seconds as a human-readable duration.
// Returns "<60s" for under a minute, "Xm" for minutes, "Xh" for hours only,
// "Xh Ym" for hours and minutes, or "Xd Yh" past a day.
func formatUptime(v any) string {
	secs, ok := views.ToFloat(v)
	if !ok {
		return "-"
	}

	total := int64(secs)
	if total < 60 {
		return "<60s"
	}

	totalMinutes := total / 60
	hours := totalMinutes / 60
	minutes := totalMinutes % 60

	switch {
	case hours == 0:
		return fmt.Sprintf("%dm", minutes)
	case hours >= 24:
		return fmt.Sprintf("%dd %dh", hours/24, hours%24)
	case minutes == 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
}
