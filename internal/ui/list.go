package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/fieldtech/internal/workorder"
)

// Filter narrows the work order list.
type Filter int

const (
	FilterAll Filter = iota
	FilterOpen
	FilterPending
	FilterDone
)

// Label returns the display label for the filter.
func (f Filter) Label() string {
	switch f {
	case FilterOpen:
		return "Open"
	case FilterPending:
		return "Pending sync"
	case FilterDone:
		return "Done"
	default:
		return "All"
	}
}

// parseFilter maps a saved label back to its filter, defaulting to all.
func parseFilter(label string) Filter {
	for f := FilterAll; f <= FilterDone; f++ {
		if strings.EqualFold(f.Label(), label) {
			return f
		}
	}
	return FilterAll
}

// Next returns the following filter in the cycle.
func (f Filter) Next() Filter {
	if f >= FilterDone {
		return FilterAll
	}
	return f + 1
}

func isDone(s workorder.Status) bool {
	return s == workorder.StatusCompleted || s == workorder.StatusClosed
}

// visibleOrders returns the filtered work orders: open before done, then by
// priority, keeping the server's most-recent-first order within a group.
func (m Model) visibleOrders() []workorder.WorkOrder {
	items := make([]workorder.WorkOrder, 0, len(m.snapshot.WorkOrders))
	for _, wo := range m.snapshot.WorkOrders {
		switch m.filterMode {
		case FilterOpen:
			if isDone(wo.Status) {
				continue
			}
		case FilterPending:
			if !m.snapshot.IsPending(wo.ID) {
				continue
			}
		case FilterDone:
			if !isDone(wo.Status) {
				continue
			}
		}
		items = append(items, wo)
	}

	sort.SliceStable(items, func(i, j int) bool {
		di, dj := isDone(items[i].Status), isDone(items[j].Status)
		if di != dj {
			return !di
		}
		return items[i].Priority.Rank() < items[j].Priority.Rank()
	})
	return items
}

// selectedOrder returns the highlighted work order, if any.
func (m Model) selectedOrder() (workorder.WorkOrder, bool) {
	items := m.visibleOrders()
	if m.selectedRow < 0 || m.selectedRow >= len(items) {
		return workorder.WorkOrder{}, false
	}
	return items[m.selectedRow], true
}

// clampSelection keeps the cursor inside the list after data changes.
func (m *Model) clampSelection() {
	n := len(m.visibleOrders())
	if m.selectedRow >= n {
		m.selectedRow = n - 1
	}
	if m.selectedRow < 0 {
		m.selectedRow = 0
	}
}

// handleOrdersKey processes keyboard input for the work order view.
func (m Model) handleOrdersKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Tab) {
		m.focusedPane = 1 - m.focusedPane
		return m, nil
	}
	if key.Matches(msg, m.keys.CycleFilter) {
		m.filterMode = m.filterMode.Next()
		m.selectedRow = 0
		m.savePrefs()
		m.updateDetailViewport()
		cmd := m.ensurePhotos()
		return m, cmd
	}

	if key.Matches(msg, m.keys.Edit) {
		if wo, ok := m.selectedOrder(); ok {
			return m.openEditor(wo)
		}
		return m, nil
	}
	if key.Matches(msg, m.keys.Discard) {
		return m.discardSelected()
	}

	if m.focusedPane == 1 {
		var cmd tea.Cmd
		m.detailViewport, cmd = m.detailViewport.Update(msg)
		return m, cmd
	}

	count := len(m.visibleOrders())
	if count == 0 {
		return m, nil
	}

	prev := m.selectedRow
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.selectedRow < count-1 {
			m.selectedRow++
		}
	case key.Matches(msg, m.keys.Up):
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case key.Matches(msg, m.keys.Top):
		m.selectedRow = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selectedRow = count - 1
	case key.Matches(msg, m.keys.PageDown):
		m.selectedRow = min(m.selectedRow+m.contentHeight()/2, count-1)
	case key.Matches(msg, m.keys.PageUp):
		m.selectedRow = max(m.selectedRow-m.contentHeight()/2, 0)
	}

	if m.selectedRow != prev {
		m.detailViewport.GotoTop()
		m.updateDetailViewport()
		cmd := m.ensurePhotos()
		return m, cmd
	}
	return m, nil
}

// discardSelected drops the queued update of the highlighted work order.
func (m Model) discardSelected() (tea.Model, tea.Cmd) {
	wo, ok := m.selectedOrder()
	if !ok || m.engine == nil || !m.snapshot.IsPending(wo.ID) {
		return m, nil
	}
	removed, err := m.engine.Discard(wo.ID)
	switch {
	case err != nil:
		m.setFlash(flashError, "Discard failed: "+describeError(err))
	case removed:
		m.setFlash(flashInfo, fmt.Sprintf("Discarded queued update for %q.", truncate(wo.Title, 40)))
	}
	return m, fetchSnapshotCmd(m.cache)
}

// paneWidths splits the width between list and detail.
func (m Model) paneWidths() (list, detail int) {
	if m.width >= 160 {
		list = m.width * 35 / 100
	} else {
		list = m.width * 45 / 100
	}
	return list, m.width - list
}

// renderOrders renders the split list and detail panes.
func (m Model) renderOrders() string {
	styles := m.theme.Styles()
	height := m.contentHeight()

	if !m.snapshot.HasData && len(m.snapshot.WorkOrders) == 0 {
		msg := "Loading work orders..."
		if !m.online {
			msg = "Offline and nothing cached yet."
		}
		return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, styles.MutedText.Render(msg))
	}

	listWidth, detailWidth := m.paneWidths()

	listBg := m.theme.SurfaceAlt
	if m.focusedPane == 0 {
		listBg = m.theme.FocusBg
	}
	listPane := m.renderTitledBox(m.listTitle(), m.renderList(listWidth-2, height-2, listBg), listWidth, height, m.focusedPane == 0)

	var detail string
	if _, ok := m.selectedOrder(); ok {
		detail = m.detailViewport.View()
	} else {
		detail = styles.MutedText.Render("Select a work order")
	}
	detailPane := m.renderTitledBox("Details", detail, detailWidth, height, m.focusedPane == 1)

	return lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)
}

func (m Model) listTitle() string {
	total := len(m.snapshot.WorkOrders)
	if m.filterMode == FilterAll {
		return fmt.Sprintf("Work orders (%d)", total)
	}
	return fmt.Sprintf("Work orders (%d/%d) %s", len(m.visibleOrders()), total, m.filterMode.Label())
}

// renderList renders one row per work order, scrolled to keep the cursor
// visible.
func (m Model) renderList(width, height int, bgColor string) string {
	items := m.visibleOrders()
	if len(items) == 0 {
		return m.theme.Styles().MutedText.Render("Nothing matches " + strings.ToLower(m.filterMode.Label()))
	}

	start := 0
	if height > 0 && m.selectedRow >= height {
		start = m.selectedRow - height + 1
	}
	end := len(items)
	if height > 0 {
		end = min(start+height, len(items))
	}

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		selected := i == m.selectedRow
		rowBg := bgColor
		if selected {
			rowBg = m.theme.SelectionBg
		}
		lines = append(lines, NewBgStyle(rowBg).FillLine(m.formatRow(items[i], width, rowBg, selected), width))
	}
	return strings.Join(lines, "\n")
}

// formatRow renders "[status] title  priority ⟳".
func (m Model) formatRow(wo workorder.WorkOrder, width int, bgColor string, selected bool) string {
	styles := m.theme.Styles()
	bg := NewBgStyle(bgColor)

	status := styles.StatusStyle(wo.Status).Render(fmt.Sprintf("%-11s", wo.Status.Label()))
	priority := string(wo.Priority)
	marker := ""
	if m.snapshot.IsPending(wo.ID) {
		marker = " ⟳"
	}

	titleWidth := max(width-13-len(priority)-len(marker)-2, 8)

	titleStyle, priorityStyle, markerStyle := styles.Text, styles.PriorityStyle(wo.Priority), styles.WarningText
	if selected {
		sel := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.SelectionText))
		titleStyle, priorityStyle, markerStyle = sel.Bold(true), sel, sel
	}

	title := fmt.Sprintf("%-*s", titleWidth, truncate(wo.Title, titleWidth))
	return status + bg.Space() +
		bg.Render(title, titleStyle) + bg.Space() +
		bg.Render(priority, priorityStyle) +
		bg.Render(marker, markerStyle)
}
