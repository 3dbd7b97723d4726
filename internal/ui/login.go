package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/fieldtech/internal/apperr"
	"github.com/five82/fieldtech/internal/session"
)

// loginState is the sign-in form.
type loginState struct {
	email      textinput.Model
	password   textinput.Model
	focus      int // 0 = email, 1 = password
	submitting bool
	notice     string
	err        string
	// returnTo is the view shown after a successful sign-in.
	returnTo View
}

func newLoginState() loginState {
	email := newLoginInput("technician@example.com")
	password := newLoginInput("password")
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	return loginState{email: email, password: password, returnTo: ViewOrders}
}

func newLoginInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 256
	ti.Width = 40
	return ti
}

// focusCmd focuses the active field and returns its blink command.
func (l *loginState) focusCmd() tea.Cmd {
	if l.focus == 1 {
		l.email.Blur()
		return l.password.Focus()
	}
	l.password.Blur()
	return l.email.Focus()
}

// showLogin switches to the sign-in form, prefilled with the last email.
func (m *Model) showLogin(notice string) {
	m.login.notice = notice
	m.login.err = ""
	m.login.submitting = false
	m.login.password.SetValue("")
	m.login.returnTo = ViewOrders
	if m.auth != nil && m.login.email.Value() == "" {
		if sess, ok := m.auth.Current(); ok {
			m.login.email.SetValue(sess.Email)
		}
	}
	m.login.focus = 0
	if m.login.email.Value() != "" {
		m.login.focus = 1
	}
	m.login.focusCmd()
	m.currentView = ViewLogin
}

// handleLoginKey processes keyboard input on the sign-in form.
func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.login.submitting {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.FocusNext), msg.String() == "shift+tab", msg.String() == "up", msg.String() == "down":
		m.login.focus = 1 - m.login.focus
		cmd := m.login.focusCmd()
		return m, cmd

	case msg.String() == "enter":
		if m.login.focus == 0 {
			m.login.focus = 1
			cmd := m.login.focusCmd()
			return m, cmd
		}
		return m.submitLogin()

	case key.Matches(msg, m.keys.Escape):
		// Browsing cached data is still possible without a session.
		if m.snapshot.HasData {
			m.currentView = ViewOrders
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.login.focus == 0 {
		m.login.email, cmd = m.login.email.Update(msg)
	} else {
		m.login.password, cmd = m.login.password.Update(msg)
	}
	return m, cmd
}

func (m Model) submitLogin() (tea.Model, tea.Cmd) {
	email := strings.TrimSpace(m.login.email.Value())
	password := m.login.password.Value()
	if email == "" || password == "" {
		m.login.err = "Email and password are required."
		return m, nil
	}
	if m.signIn == nil {
		m.login.err = "Sign-in is not available."
		return m, nil
	}
	m.login.submitting = true
	m.login.err = ""
	return m, signInCmd(m.ctx, m.signIn, email, password)
}

func (m Model) handleSignInResult(msg signInResultMsg) (tea.Model, tea.Cmd) {
	m.login.submitting = false
	if msg.err != nil {
		if apperr.IsUnauthorized(msg.err) {
			m.login.err = "Email or password is incorrect."
		} else {
			m.login.err = "Sign-in failed: " + describeError(msg.err)
		}
		m.login.password.SetValue("")
		return m, nil
	}

	if m.auth != nil {
		if err := m.auth.Set(session.FromAuth(msg.email, msg.auth, time.Now())); err != nil {
			m.logger.WithError(err).Warn("failed to persist session")
			m.setFlash(flashWarning, "Signed in, but the session could not be saved: "+describeError(err))
		}
	}
	m.login.password.SetValue("")
	m.login.password.Blur()
	m.login.email.Blur()
	m.currentView = m.login.returnTo
	if m.flash.text == "" {
		m.setFlash(flashInfo, "Signed in as "+msg.email+".")
	}
	// Anything queued while signed out goes out now.
	next, cmd := m.startSync()
	return next, cmd
}

// renderLogin renders the centered sign-in form.
func (m Model) renderLogin() string {
	styles := m.theme.Styles()
	l := m.login

	label := func(text string, focused bool) string {
		if focused {
			return styles.AccentText.Bold(true).Render(text)
		}
		return styles.MutedText.Render(text)
	}

	var b strings.Builder
	b.WriteString(styles.Logo.Render("fieldtech"))
	b.WriteString(styles.MutedText.Render("  sign in"))
	b.WriteString("\n\n")
	if l.notice != "" {
		b.WriteString(styles.WarningText.Render(l.notice))
		b.WriteString("\n\n")
	}
	b.WriteString(label("Email", l.focus == 0))
	b.WriteString("\n")
	b.WriteString(l.email.View())
	b.WriteString("\n\n")
	b.WriteString(label("Password", l.focus == 1))
	b.WriteString("\n")
	b.WriteString(l.password.View())
	b.WriteString("\n\n")

	switch {
	case l.submitting:
		b.WriteString(styles.InfoText.Render(m.spinner.View() + " signing in..."))
	case l.err != "":
		b.WriteString(styles.DangerText.Render(l.err))
	case m.snapshot.PendingCount() > 0:
		b.WriteString(styles.WarningText.Render(plural(m.snapshot.PendingCount(), "queued update") + " will sync after sign-in."))
	}

	form := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 3).
		Width(56).
		Render(b.String())

	return lipgloss.Place(m.width, m.contentHeight(), lipgloss.Center, lipgloss.Center, form)
}
