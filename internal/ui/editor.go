package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/fieldtech/internal/apperr"
	"github.com/five82/fieldtech/internal/syncer"
	"github.com/five82/fieldtech/internal/workorder"
)

const (
	editorFocusStatus = iota
	editorFocusNotes
)

// editorState holds the status and notes being edited for one work order.
type editorState struct {
	target     workorder.WorkOrder
	status     workorder.Status
	notes      textarea.Model
	focus      int
	submitting bool
	err        string
}

func newEditorState() editorState {
	ta := textarea.New()
	ta.Placeholder = "Work performed, parts used, follow-up needed..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	return editorState{notes: ta}
}

func (e *editorState) resize(width, height int) {
	e.notes.SetWidth(max(width-8, 20))
	e.notes.SetHeight(max(height-12, 3))
}

// openEditor starts editing wo, prefilled with its current (overlaid) values.
func (m Model) openEditor(wo workorder.WorkOrder) (tea.Model, tea.Cmd) {
	m.editor.target = wo
	m.editor.status = wo.Status
	if !m.editor.status.Valid() {
		m.editor.status = workorder.StatusNew
	}
	m.editor.notes.SetValue(wo.Description)
	m.editor.focus = editorFocusStatus
	m.editor.notes.Blur()
	m.editor.submitting = false
	m.editor.err = ""
	m.currentView = ViewEditor
	return m, nil
}

// handleEditorKey processes keyboard input while editing.
func (m Model) handleEditorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editor.submitting {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Escape):
		m.editor.notes.Blur()
		m.currentView = ViewOrders
		return m, nil

	case key.Matches(msg, m.keys.Save):
		return m.submitEditor()

	case key.Matches(msg, m.keys.FocusNext):
		if m.editor.focus == editorFocusStatus {
			m.editor.focus = editorFocusNotes
			cmd := m.editor.notes.Focus()
			return m, cmd
		}
		m.editor.focus = editorFocusStatus
		m.editor.notes.Blur()
		return m, nil

	case key.Matches(msg, m.keys.NextStatus):
		m.editor.status = m.editor.status.Next()
		return m, nil

	case key.Matches(msg, m.keys.PrevStatus):
		m.editor.status = prevStatus(m.editor.status)
		return m, nil
	}

	if m.editor.focus == editorFocusStatus {
		switch msg.String() {
		case "right", "l", " ", "j", "down":
			m.editor.status = m.editor.status.Next()
		case "left", "h", "k", "up":
			m.editor.status = prevStatus(m.editor.status)
		case "enter":
			m.editor.focus = editorFocusNotes
			cmd := m.editor.notes.Focus()
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.editor.notes, cmd = m.editor.notes.Update(msg)
	return m, cmd
}

func prevStatus(s workorder.Status) workorder.Status {
	for i, known := range workorder.Statuses {
		if known == s {
			return workorder.Statuses[(i+len(workorder.Statuses)-1)%len(workorder.Statuses)]
		}
	}
	return workorder.Statuses[0]
}

// submitEditor hands the edit to the engine. Offline, it is queued.
func (m Model) submitEditor() (tea.Model, tea.Cmd) {
	if m.engine == nil {
		return m, nil
	}
	m.editor.submitting = true
	m.editor.err = ""
	notes := strings.TrimRight(m.editor.notes.Value(), "\n")
	return m, submitCmd(m.ctx, m.engine, m.token(), m.editor.target.ID, m.editor.status, notes, m.online)
}

func (m Model) handleSubmitResult(msg submitResultMsg) (tea.Model, tea.Cmd) {
	m.editor.submitting = false
	if msg.err != nil {
		if apperr.IsUnauthorized(msg.err) {
			// The edit stays in the editor; it is reopened after sign-in.
			next, cmd := m.handleUnauthorized(msg.err)
			model := next.(Model)
			model.login.returnTo = ViewEditor
			return model, cmd
		}
		m.editor.err = describeError(msg.err)
		return m, nil
	}

	m.editor.notes.Blur()
	m.currentView = ViewOrders
	title := truncate(m.editor.target.Title, 40)
	switch msg.outcome {
	case syncer.OutcomeQueued:
		m.setFlash(flashWarning, fmt.Sprintf("Saved %q offline. It will sync when the backend is reachable.", title))
	default:
		m.setFlash(flashInfo, fmt.Sprintf("Saved %q.", title))
	}
	return m, fetchSnapshotCmd(m.cache)
}

// updateInputs forwards non-key messages, such as cursor blinks, to the
// focused text input.
func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewEditor:
		m.editor.notes, cmd = m.editor.notes.Update(msg)
	case ViewLogin:
		var cmds [2]tea.Cmd
		m.login.email, cmds[0] = m.login.email.Update(msg)
		m.login.password, cmds[1] = m.login.password.Update(msg)
		cmd = tea.Batch(cmds[:]...)
	}
	return m, cmd
}

// renderEditor renders the status selector and notes field.
func (m Model) renderEditor() string {
	styles := m.theme.Styles()
	e := m.editor

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render(truncate(e.target.Title, max(m.width-8, 10))))
	b.WriteString("\n\n")

	statusLabel := styles.MutedText.Render("Status  ")
	if e.focus == editorFocusStatus {
		statusLabel = styles.AccentText.Bold(true).Render("Status ›")
	}
	b.WriteString(statusLabel)
	for _, s := range workorder.Statuses {
		b.WriteString(" ")
		if s == e.status {
			b.WriteString(styles.StatusStyle(s).Bold(true).Render(s.Label()))
			continue
		}
		b.WriteString(styles.FaintText.Render(s.Label()))
	}
	b.WriteString("\n\n")

	notesLabel := styles.MutedText.Render("Notes")
	if e.focus == editorFocusNotes {
		notesLabel = styles.AccentText.Bold(true).Render("Notes ›")
	}
	b.WriteString(notesLabel)
	b.WriteString("\n")
	b.WriteString(e.notes.View())
	b.WriteString("\n\n")

	switch {
	case e.submitting:
		b.WriteString(styles.InfoText.Render(m.spinner.View() + " saving..."))
	case e.err != "":
		b.WriteString(styles.DangerText.Render(e.err))
	case !m.online:
		b.WriteString(styles.WarningText.Render("Offline: saving queues this update until the backend is reachable."))
	}

	pane := lipgloss.NewStyle().Padding(1, 2).Render(b.String())
	return m.renderTitledBox("Update work order", pane, m.width, m.contentHeight(), true)
}
