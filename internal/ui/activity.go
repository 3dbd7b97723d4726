package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/fieldtech/internal/logtail"
)

// activityLimit is how many log lines the activity view reads back.
const activityLimit = 500

// activityLine is a log entry as shown in the activity view.
type activityLine struct {
	entry logtail.Entry
}

func readActivityCmd(path string) tea.Cmd {
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		entries, err := logtail.ReadEntries(path, activityLimit)
		if err != nil {
			return activityMsg{err: err}
		}
		lines := make([]activityLine, 0, len(entries))
		for _, e := range entries {
			lines = append(lines, activityLine{entry: e})
		}
		return activityMsg{lines: lines}
	}
}

// handleActivityKey scrolls the activity log.
func (m Model) handleActivityKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Top):
		m.activityViewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.activityViewport.GotoBottom()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.activityViewport.HalfPageDown()
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.activityViewport.HalfPageUp()
		return m, nil
	}
	var cmd tea.Cmd
	m.activityViewport, cmd = m.activityViewport.Update(msg)
	return m, cmd
}

// updateActivityViewport re-renders the log lines, staying pinned to the
// bottom when the user has not scrolled up.
func (m *Model) updateActivityViewport() {
	follow := m.activityViewport.AtBottom() || m.activityViewport.TotalLineCount() == 0
	m.activityViewport.SetContent(m.renderActivityLines())
	if follow {
		m.activityViewport.GotoBottom()
	}
}

func (m Model) renderActivityLines() string {
	styles := m.theme.Styles()
	if len(m.activity) == 0 {
		return styles.MutedText.Render("No activity yet")
	}
	lines := make([]string, 0, len(m.activity))
	for _, line := range m.activity {
		lines = append(lines, m.formatActivityLine(line.entry))
	}
	return strings.Join(lines, "\n")
}

// formatActivityLine renders "15:04:05 WARN  message key=value".
func (m Model) formatActivityLine(e logtail.Entry) string {
	styles := m.theme.Styles()
	if e.Time.IsZero() && e.Level == "" {
		return styles.FaintText.Render(e.Raw)
	}

	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(styles.FaintText.Render(e.Time.Local().Format("15:04:05")))
		b.WriteString(" ")
	}
	b.WriteString(m.levelStyle(e.Level).Render(padLevel(e.Level)))
	b.WriteString(" ")
	b.WriteString(styles.Text.Render(e.Message))
	if e.Component != "" {
		b.WriteString(" ")
		b.WriteString(styles.AccentText.Render("[" + e.Component + "]"))
	}
	for _, k := range e.Keys {
		b.WriteString(" ")
		b.WriteString(styles.MutedText.Render(k + "=" + e.Fields[k]))
	}
	if e.Error != "" {
		b.WriteString(" ")
		b.WriteString(styles.DangerText.Render("error=" + e.Error))
	}
	return b.String()
}

func (m Model) levelStyle(level string) lipgloss.Style {
	styles := m.theme.Styles()
	switch strings.ToLower(level) {
	case "error", "fatal", "panic":
		return styles.DangerText
	case "warn", "warning":
		return styles.WarningText
	case "debug", "trace":
		return styles.FaintText
	default:
		return styles.InfoText
	}
}

func padLevel(level string) string {
	level = strings.ToUpper(level)
	if level == "WARNING" {
		level = "WARN"
	}
	for len(level) < 5 {
		level += " "
	}
	return level
}

// renderActivity renders the activity view.
func (m Model) renderActivity() string {
	title := "Activity"
	if m.logPath != "" {
		title += " " + truncateMiddle(m.logPath, max(m.width/2, 20))
	}
	return m.renderTitledBox(title, m.activityViewport.View(), m.width, m.contentHeight(), true)
}
