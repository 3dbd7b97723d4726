package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// renderHeader renders the status bar: connectivity, queue depth, last
// refresh and the signed-in technician.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < 100

	parts := []string{bg.Render("fieldtech", styles.Logo)}

	switch {
	case m.forced:
		parts = append(parts, bg.Render("● OFFLINE (manual)", styles.WarningText))
	case m.online:
		parts = append(parts, bg.Render("● ONLINE", styles.SuccessText))
	default:
		parts = append(parts, bg.Render("● OFFLINE", styles.DangerText))
	}

	pending := m.snapshot.PendingCount()
	pendingStyle := styles.MutedText
	if pending > 0 {
		pendingStyle = styles.WarningText.Bold(true)
	}
	label := "Pending sync:"
	if compact {
		label = "Pending:"
	}
	parts = append(parts,
		bg.Render(label, styles.MutedText)+bg.Space()+
			bg.Render(fmt.Sprintf("%d", pending), pendingStyle))

	parts = append(parts,
		bg.Render("Orders:", styles.MutedText)+bg.Space()+
			bg.Render(fmt.Sprintf("%d", len(m.snapshot.WorkOrders)), styles.Text))

	if m.syncing {
		parts = append(parts, bg.Render(m.spinner.View()+" syncing", styles.InfoText))
	}

	if ts := m.formatTimestamp(time.Now()); ts != "" {
		parts = append(parts, bg.Render(ts, styles.MutedText))
	}

	if !compact && m.auth != nil {
		if sess, ok := m.auth.Current(); ok && sess.Email != "" {
			parts = append(parts, bg.Render(truncate(sess.Email, 32), styles.FaintText))
		}
	}

	if m.snapshot.LastError != nil && m.snapshot.IsOffline() {
		parts = append(parts,
			bg.Render("LAST FETCH", styles.DangerText)+bg.Space()+
				bg.Render(truncate(describeError(m.snapshot.LastError), 40), styles.DangerText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

// formatTimestamp shows when the cache last refreshed from the server.
func (m Model) formatTimestamp(now time.Time) string {
	at := m.snapshot.LastUpdated
	if at.IsZero() {
		if m.snapshot.HasData {
			return ""
		}
		return "not refreshed yet"
	}
	return "refreshed " + relativeTime(at, now)
}

// renderCommandBar renders the flash line, or key hints when there is none.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Background)

	if m.flash.text != "" {
		style := styles.InfoText
		switch m.flash.level {
		case flashWarning:
			style = styles.WarningText
		case flashError:
			style = styles.DangerText
		}
		return bg.FillLine(bg.Render(truncate(m.flash.text, max(m.width-2, 1)), style), m.width)
	}

	var hints []hint
	switch m.currentView {
	case ViewEditor:
		hints = []hint{{"ctrl+n/p", "Status"}, {"ctrl+s", "Save"}, {"tab", "Field"}, {"esc", "Cancel"}}
	case ViewLogin:
		hints = []hint{{"enter", "Sign in"}, {"tab", "Field"}, {"ctrl+c", "Quit"}}
	case ViewActivity:
		hints = []hint{{"w", "Orders"}, {"j/k", "Scroll"}, {"g/G", "Top/Bottom"}, {"?", "Help"}, {"q", "Quit"}}
	default:
		hints = []hint{
			{"enter", "Edit"}, {"r", "Sync"}, {"o", "Offline"}, {"f", "Filter"},
			{"a", "Activity"}, {"tab", "Pane"}, {"?", "Help"}, {"q", "Quit"},
		}
	}

	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Accent)).Bold(true)
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, bg.Render(h.key, keyStyle)+bg.Space()+bg.Render(h.desc, styles.MutedText))
	}
	return bg.FillLine(bg.Space()+bg.Join(parts, "  "), m.width)
}

type hint struct {
	key  string
	desc string
}
