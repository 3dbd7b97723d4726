package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/fieldtech/internal/workorder"
)

// updateDetailViewport re-renders the detail pane for the selected order.
func (m *Model) updateDetailViewport() {
	wo, ok := m.selectedOrder()
	if !ok {
		m.detailViewport.SetContent("")
		return
	}
	m.detailViewport.SetContent(m.renderDetailContent(wo, max(m.detailViewport.Width, 20), time.Now()))
}

// renderDetailContent builds the detail text for one work order.
func (m Model) renderDetailContent(wo workorder.WorkOrder, width int, now time.Time) string {
	styles := m.theme.Styles()
	label := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Muted)).Width(10)

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Width(width).Render(wo.Title))
	b.WriteString("\n\n")

	row := func(name, value string) {
		b.WriteString(label.Render(name))
		b.WriteString(value)
		b.WriteString("\n")
	}

	row("Status", styles.StatusStyle(wo.Status).Render(wo.Status.Label()))
	row("Priority", styles.PriorityStyle(wo.Priority).Render(string(wo.Priority)))
	if !wo.UpdatedAt.IsZero() {
		row("Updated", fmt.Sprintf("%s (%s)", wo.UpdatedAt.Local().Format("Jan 2 15:04"), relativeTime(wo.UpdatedAt, now)))
	}
	if !wo.CreatedAt.IsZero() {
		row("Created", wo.CreatedAt.Local().Format("Jan 2 15:04"))
	}
	row("ID", styles.FaintText.Render(wo.ID.String()))

	if pending, ok := m.snapshot.PendingFor(wo.ID); ok {
		b.WriteString("\n")
		b.WriteString(styles.WarningText.Bold(true).Render("⟳ Pending sync"))
		b.WriteString("\n")
		b.WriteString(styles.MutedText.Render(fmt.Sprintf("Edited %s, not yet confirmed by the server.", relativeTime(pending.EnqueuedAt, now))))
		b.WriteString("\n")
		if authoritative, ok := m.authoritative(wo); ok && authoritative.Status != pending.Status {
			b.WriteString(styles.MutedText.Render("Server status: " + authoritative.Status.Label()))
			b.WriteString("\n")
		}
		b.WriteString(styles.FaintText.Render("D discards the queued edit."))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.AccentText.Bold(true).Render("Notes"))
	b.WriteString("\n")
	if strings.TrimSpace(wo.Description) == "" {
		b.WriteString(styles.FaintText.Render("No notes"))
	} else {
		b.WriteString(styles.Text.Width(width).Render(wo.Description))
	}
	b.WriteString("\n\n")

	b.WriteString(styles.AccentText.Bold(true).Render("Photos"))
	b.WriteString("\n")
	b.WriteString(m.renderPhotos(wo, width, now))
	return b.String()
}

func (m Model) renderPhotos(wo workorder.WorkOrder, width int, now time.Time) string {
	styles := m.theme.Styles()
	if m.photos == nil {
		return styles.FaintText.Render("Unavailable")
	}
	if !m.online {
		return styles.FaintText.Render("Photos load when back online")
	}
	ps, ok := m.photoCache[wo.ID]
	switch {
	case !ok || ps.loading:
		return styles.FaintText.Render("Loading...")
	case ps.err != nil:
		return styles.DangerText.Render("Could not load photos: " + describeError(ps.err))
	case len(ps.items) == 0:
		return styles.FaintText.Render("No photos")
	}

	lines := make([]string, 0, len(ps.items))
	for _, a := range ps.items {
		name := a.StoragePath
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
		line := styles.Text.Render(truncateMiddle(name, max(width-20, 12)))
		if !a.CreatedAt.IsZero() {
			line += " " + styles.MutedText.Render(relativeTime(a.CreatedAt, now))
		}
		if a.SignedURL == "" {
			line += " " + styles.WarningText.Render("(link unavailable)")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// ensurePhotos starts loading the selected order's photos when they are not
// cached. Photos are only fetched while online and signed in.
func (m *Model) ensurePhotos() tea.Cmd {
	if m.photos == nil || !m.online {
		return nil
	}
	token, ok := "", false
	if m.auth != nil {
		token, ok = m.auth.Token()
	}
	if !ok {
		return nil
	}
	wo, found := m.selectedOrder()
	if !found {
		return nil
	}
	if _, cached := m.photoCache[wo.ID]; cached {
		return nil
	}
	m.photoCache[wo.ID] = photoState{loading: true}
	return fetchPhotosCmd(m.ctx, m.photos, token, wo.ID)
}

func (m Model) authoritative(wo workorder.WorkOrder) (workorder.WorkOrder, bool) {
	if m.cache == nil {
		return workorder.WorkOrder{}, false
	}
	return m.cache.Authoritative(wo.ID)
}
