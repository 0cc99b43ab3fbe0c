package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/botctl/internal/conn"
	"github.com/npratt/botctl/internal/views"
)

const (
	minWidth  = 60
	minHeight = 20

	// maxNoticeRows caps how many notifications are shown at once.
	maxNoticeRows = 3
)

// View implements tea.Model. This renders the full dashboard.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.width < minWidth || m.height < minHeight {
		return m.renderTooSmall()
	}

	w := safeWidth(m.width - 4) // Account for container borders

	sections := []string{
		m.renderHeader(w),
		m.renderDivider(w),
		m.renderStats(),
		m.renderSystem(),
		m.renderConfig(),
		m.renderDivider(w),
		m.renderNotices(w),
		m.renderDivider(w),
		m.renderEvents(w),
		m.renderDivider(w),
		m.renderFooter(),
	}

	rendered := styles.Container.
		Width(safeWidth(m.width - 2)).
		Render(strings.Join(sections, "\n"))

	return lipgloss.Place(m.width, m.height, lipgloss.Left, lipgloss.Top, rendered)
}

// renderTooSmall renders a minimal message for terminals that are too small.
func (m model) renderTooSmall() string {
	return fmt.Sprintf("Terminal too small (%dx%d). Need %dx%d minimum.",
		m.width, m.height, minWidth, minHeight)
}

// renderHeader renders bot status on the left and connection state and
// sound on the right.
func (m model) renderHeader(w int) string {
	left := styles.Title.Render("botctl") + "  " + m.renderStatus()

	state := "unknown"
	stateStyle := styles.StatusUnknown
	if m.conn != nil {
		s := m.conn.State()
		state = s.String()
		stateStyle = styleForConnection(s)
	}
	right := stateStyle.Render("● " + state)
	if m.notices != nil {
		sound := "off"
		if m.notices.SoundEnabled() {
			sound = "on"
		}
		right += styles.Label.Render("  sound " + sound)
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		left,
		strings.Repeat(" ", max(1, w-lipgloss.Width(left)-lipgloss.Width(right))),
		right,
	)
}

// renderStatus renders the bot status with appropriate styling.
func (m model) renderStatus() string {
	if m.views == nil {
		return styles.StatusUnknown.Render("UNKNOWN")
	}
	s := m.views.Status()
	if s.State == "" {
		return styles.StatusUnknown.Render("UNKNOWN")
	}
	text := strings.ToUpper(s.State)
	if s.DisplayText != "" && !strings.EqualFold(s.DisplayText, s.State) {
		text += " " + safeString(s.DisplayText)
	}
	return styleForStatus(s.State).Render(text)
}

// statValue returns the first of keys present in m.
func statValue(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func field(label, value string) string {
	return styles.Label.Render(label+" ") + styles.Value.Render(value)
}

func (m model) renderStats() string {
	if m.views == nil {
		return styles.Muted.Render("stats unavailable")
	}
	stats := m.views.Stats()
	if len(stats) == 0 {
		return styles.Muted.Render("no statistics yet")
	}

	parts := []string{
		field("participations", formatValue(statValue(stats, "total_participations", "totalParticipations"))),
		field("won", formatValue(statValue(stats, "successful_participations", "successfulParticipations"))),
		field("failed", formatValue(statValue(stats, "failed_participations", "failedParticipations"))),
	}
	if rate, ok := m.views.SuccessRate(); ok {
		parts = append(parts, field("rate", fmt.Sprintf("%.1f%%", rate)))
	}
	if v := statValue(stats, "total_winnings", "totalWinnings"); v != nil {
		parts = append(parts, field("winnings", formatValue(v)))
	}
	return strings.Join(parts, "  ")
}

func (m model) renderSystem() string {
	if m.views == nil {
		return styles.Muted.Render("system info unavailable")
	}
	info := m.views.SystemInfo()
	if len(info) == 0 {
		return styles.Muted.Render("no system info yet")
	}

	mem := formatPercent(info["memory_percent"])
	if used, ok := info["memory_used"]; ok {
		mem += " (" + formatBytes(used) + ")"
	}
	parts := []string{
		field("cpu", formatPercent(info["cpu_percent"])),
		field("mem", mem),
	}
	if up, ok := info["uptime"]; ok {
		parts = append(parts, field("uptime", formatUptime(up)))
	}
	return strings.Join(parts, "  ")
}

func (m model) renderConfig() string {
	if m.views == nil {
		return styles.Muted.Render("config unavailable")
	}
	cfg := m.views.Config()
	if len(cfg.Fields) == 0 {
		return styles.Muted.Render("config not loaded")
	}

	number := func(key string) string {
		n, ok := cfg.Number(key)
		if !ok {
			return "-"
		}
		return formatValue(n)
	}
	onOff := func(key string) string {
		if cfg.Bool(key) {
			return "on"
		}
		return "off"
	}

	parts := []string{
		field("tabs", number(views.KeyNumTabs)),
		field("speed", number(views.KeyExecutionSpeed)+"x"),
		field("retries", number(views.KeyRetryAttempts)),
		field("proxies", fmt.Sprint(len(cfg.TabProxies))),
		field("headless", onOff(views.KeyHeadlessMode)),
	}
	line := strings.Join(parts, "  ")
	if m.views.Dirty() {
		line += "  " + styles.Dirty.Render("[unsaved]")
	}
	return line
}

// renderNotices shows the newest visible notifications.
func (m model) renderNotices(w int) string {
	if m.notices == nil {
		return styles.Muted.Render("no notifications")
	}
	active := m.notices.Active()
	if len(active) == 0 {
		return styles.Muted.Render("no notifications")
	}
	if len(active) > maxNoticeRows {
		active = active[len(active)-maxNoticeRows:]
	}

	lines := make([]string, 0, len(active))
	for _, r := range active {
		text := fmt.Sprintf("[%s] %s", r.Category, safeString(r.Message))
		if r.Persistent {
			text += " (d to dismiss)"
		}
		lines = append(lines, styleForCategory(r.Category).Render(truncate(text, w)))
	}
	return strings.Join(lines, "\n")
}

// renderDivider renders a horizontal divider line.
func (m model) renderDivider(w int) string {
	return styles.Divider.Render(strings.Repeat("─", w))
}

// renderEvents renders the scrollable event feed.
func (m model) renderEvents(w int) string {
	visible := m.visibleLines()

	if len(m.eventLines) == 0 {
		placeholder := "Waiting for events..."
		padding := strings.Repeat("\n", visible/2)
		lines := padding + lipgloss.PlaceHorizontal(w, lipgloss.Center, placeholder)
		return lines + strings.Repeat("\n", max(0, visible-visible/2-1))
	}

	scrollPos := safeScroll(m.scrollPos, len(m.eventLines), visible)
	endPos := min(scrollPos+visible, len(m.eventLines))

	var lines []string
	for _, el := range m.eventLines[scrollPos:endPos] {
		lines = append(lines, m.renderEventLine(el, w))
	}
	for len(lines) < visible {
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

// renderEventLine renders a single event with timestamp and styling.
func (m model) renderEventLine(el eventLine, maxWidth int) string {
	prefix := el.Time.Format("15:04:05") + " "

	textWidth := max(10, maxWidth-len(prefix))
	text := el.Text
	if len(text) > textWidth {
		text = text[:textWidth-3] + "..."
	}

	return styles.Label.Render(prefix) + el.Style.Render(text)
}

// renderFooter renders the command status line and key help.
func (m model) renderFooter() string {
	var status string
	switch {
	case m.confirm != nil:
		status = styles.Prompt.Render(m.confirm.prompt + " (y/n)")
	case m.running != "":
		status = m.spinner.View() + " " + styles.Footer.Render(m.running+"...")
	case m.lastMessage != "":
		style := styles.Success
		if !m.lastOK {
			style = styles.Error
		}
		status = style.Render(truncate(m.lastMessage, max(10, m.width-4)))
	}

	help := styles.Footer.Render(m.help.View(m.keys))
	if status == "" {
		return help
	}
	return status + "\n" + help
}

// safeWidth returns a width that is at least 1 to prevent negative values.
func safeWidth(w int) int {
	if w < 1 {
		return 1
	}
	return w
}

// safeScroll clamps scroll position to valid bounds.
func safeScroll(pos, totalLines, visibleLines int) int {
	if pos < 0 {
		return 0
	}
	maxScroll := totalLines - visibleLines
	if maxScroll < 0 {
		return 0
	}
	if pos > maxScroll {
		return maxScroll
	}
	return pos
}

// connLabel is the connection state as printed in line mode.
func connLabel(s conn.State) string {
	return "connection " + s.String()
}
