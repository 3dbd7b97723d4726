package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/five82/fieldtech/internal/apperr"
	"github.com/five82/fieldtech/internal/backend"
	"github.com/five82/fieldtech/internal/connectivity"
	"github.com/five82/fieldtech/internal/logging"
	"github.com/five82/fieldtech/internal/prefs"
	"github.com/five82/fieldtech/internal/session"
	"github.com/five82/fieldtech/internal/state"
	"github.com/five82/fieldtech/internal/syncer"
	"github.com/five82/fieldtech/internal/workorder"
)

// Engine is the part of the sync engine the UI drives.
type Engine interface {
	SubmitUpdate(ctx context.Context, token string, workOrderID uuid.UUID, status workorder.Status, notes string, online bool) (syncer.Outcome, error)
	Drain(ctx context.Context, token string, online bool) (syncer.DrainResult, error)
	Refresh(ctx context.Context, token string) error
	Discard(workOrderID uuid.UUID) (bool, error)
}

// Connectivity reports and overrides the online signal.
type Connectivity interface {
	connectivity.Signal
	ForcedOffline() bool
	SetForcedOffline(forced bool)
}

// Auth holds the signed-in session.
type Auth interface {
	Current() (session.Session, bool)
	Token() (string, bool)
	Set(sess session.Session) error
	Clear() error
}

// Authenticator exchanges credentials for a session.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (backend.AuthSession, error)
}

// Photos lists a work order's attachments.
type Photos interface {
	List(ctx context.Context, token string, workOrderID uuid.UUID) ([]workorder.Attachment, error)
}

// View represents the current active view.
type View int

const (
	ViewOrders View = iota
	ViewActivity
	ViewEditor
	ViewLogin
)

// Options configures the UI.
type Options struct {
	Context     context.Context
	Engine      Engine
	Cache       *state.Store
	Monitor     Connectivity
	Auth        Auth
	SignIn      Authenticator
	Attachments Photos
	LogPath     string
	ThemeName   string
	// PrefsPath remembers theme and filter changes. Empty disables it.
	PrefsPath    string
	RefreshEvery time.Duration
	// Warnings are startup problems shown once in the flash line.
	Warnings []error
	Logger   logrus.FieldLogger
}

// photoState caches the attachment list of one work order.
type photoState struct {
	items   []workorder.Attachment
	err     error
	loading bool
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Dependencies
	ctx          context.Context
	engine       Engine
	cache        *state.Store
	monitor      Connectivity
	auth         Auth
	signIn       Authenticator
	photos       Photos
	logPath      string
	prefsPath    string
	logger       logrus.FieldLogger
	refreshEvery time.Duration

	// UI state
	theme       Theme
	keys        keyMap
	help        help.Model
	currentView View
	width       int
	height      int
	ready       bool
	focusedPane int // 0 = list, 1 = detail
	showHelp    bool

	// Data state
	cacheChanged chan struct{}
	unsubscribe  func()
	snapshot     state.Snapshot
	online       bool
	forced       bool
	lastUpdated  time.Time

	// Work order list
	selectedRow int
	filterMode  Filter

	// Detail pane
	detailViewport viewport.Model
	photoCache     map[uuid.UUID]photoState

	// Activity log
	activityViewport viewport.Model
	activity         []activityLine

	editor editorState
	login  loginState

	// Background sync feedback
	syncing bool
	spinner spinner.Model
	flash   flash
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	refresh := opts.RefreshEvery
	if refresh <= 0 {
		refresh = time.Second
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = "Dracula"
	}
	var saved prefs.Prefs
	if opts.PrefsPath != "" {
		saved = prefs.Load(opts.PrefsPath)
		if saved.Theme != "" {
			themeName = saved.Theme
		}
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	m := Model{
		ctx:          ctx,
		engine:       opts.Engine,
		cache:        opts.Cache,
		monitor:      opts.Monitor,
		auth:         opts.Auth,
		signIn:       opts.SignIn,
		photos:       opts.Attachments,
		logPath:      opts.LogPath,
		prefsPath:    opts.PrefsPath,
		logger:       logging.OrDiscard(opts.Logger),
		refreshEvery: refresh,
		theme:        GetTheme(themeName),
		keys:         DefaultKeyMap(),
		help:         help.New(),
		currentView:  ViewOrders,
		filterMode:   parseFilter(saved.Filter),
		photoCache:   make(map[uuid.UUID]photoState),
		spinner:      sp,

		detailViewport:   viewport.New(0, 0),
		activityViewport: viewport.New(0, 0),
		login:            newLoginState(),
		editor:           newEditorState(),
	}
	m.readConnectivity()

	if opts.Cache != nil {
		changed := make(chan struct{}, 1)
		m.cacheChanged = changed
		m.unsubscribe = opts.Cache.Subscribe(func(state.Snapshot) {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}

	if msg := joinWarnings(opts.Warnings); msg != "" {
		m.flash = flash{text: msg, level: flashWarning, at: time.Now()}
	}

	if !m.signedIn() {
		m.showLogin("")
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.refreshEvery),
		m.spinner.Tick,
	}
	if m.cache != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.cache), m.watchCache())
	}
	if m.currentView == ViewLogin {
		cmds = append(cmds, textinput.Blink)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.updateDetailViewport()
		m.updateActivityViewport()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		cmd := m.applySnapshot(state.Snapshot(msg))
		return m, cmd

	case cacheChangedMsg:
		cmd := m.applySnapshot(state.Snapshot(msg))
		return m, tea.Batch(cmd, m.watchCache())

	case submitResultMsg:
		return m.handleSubmitResult(msg)

	case syncResultMsg:
		return m.handleSyncResult(msg)

	case photosMsg:
		m.photoCache[msg.id] = photoState{items: msg.items, err: msg.err}
		if msg.err != nil && apperr.IsUnauthorized(msg.err) {
			return m.handleUnauthorized(msg.err)
		}
		m.updateDetailViewport()
		return m, nil

	case activityMsg:
		if msg.err == nil {
			m.activity = msg.lines
		}
		m.updateActivityViewport()
		return m, nil

	case signInResultMsg:
		return m.handleSignInResult(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.currentView == ViewEditor || m.currentView == ViewLogin {
		return m.updateInputs(msg)
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	return b.String()
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewActivity:
		return m.renderActivity()
	case ViewEditor:
		return m.renderEditor()
	case ViewLogin:
		return m.renderLogin()
	default:
		return m.renderOrders()
	}
}

// contentHeight is the space left under the header and command bar.
func (m Model) contentHeight() int {
	return max(m.height-2, 3)
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// Text entry owns the keyboard.
	switch m.currentView {
	case ViewEditor:
		return m.handleEditorKey(msg)
	case ViewLogin:
		return m.handleLoginKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()
		m.updateDetailViewport()
		m.updateActivityViewport()
		return m, nil

	case key.Matches(msg, m.keys.ViewOrders), key.Matches(msg, m.keys.Escape):
		m.currentView = ViewOrders
		return m, nil

	case key.Matches(msg, m.keys.ViewActivity):
		m.currentView = ViewActivity
		return m, readActivityCmd(m.logPath)

	case key.Matches(msg, m.keys.Sync):
		return m.startSync()

	case key.Matches(msg, m.keys.ToggleOffline):
		return m.toggleOffline()

	case key.Matches(msg, m.keys.SignOut):
		return m.signOut()
	}

	switch m.currentView {
	case ViewActivity:
		return m.handleActivityKey(msg)
	default:
		return m.handleOrdersKey(msg)
	}
}

func (m *Model) applySnapshot(snap state.Snapshot) tea.Cmd {
	m.snapshot = snap
	m.lastUpdated = time.Now()
	m.clampSelection()
	m.updateDetailViewport()
	return m.ensurePhotos()
}

// watchCache waits for the next cache change and delivers a fresh snapshot.
func (m Model) watchCache() tea.Cmd {
	if m.cache == nil || m.cacheChanged == nil {
		return nil
	}
	ctx, cache, changed := m.ctx, m.cache, m.cacheChanged
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			return cacheChangedMsg(cache.Snapshot())
		}
	}
}

// handleTick processes the refresh tick: connectivity, the activity tail and
// flash expiry. Cache changes arrive through watchCache; the background poller
// is what talks to the network.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	m.readConnectivity()
	if m.currentView == ViewActivity {
		cmds = append(cmds, readActivityCmd(m.logPath))
	}
	m.flash = m.flash.expire(time.Now())

	cmds = append(cmds, tickCmd(m.refreshEvery))
	return m, tea.Batch(cmds...)
}

// savePrefs remembers the theme and filter for the next run.
func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	p := prefs.Prefs{Theme: m.theme.Name, Filter: m.filterMode.Label()}
	if err := prefs.Save(m.prefsPath, p); err != nil {
		m.logger.WithError(err).Warn("failed to save preferences")
	}
}

func (m *Model) readConnectivity() {
	if m.monitor == nil {
		m.online = true
		return
	}
	m.online = m.monitor.Online()
	m.forced = m.monitor.ForcedOffline()
}

func (m Model) signedIn() bool {
	if m.auth == nil {
		return false
	}
	_, ok := m.auth.Token()
	return ok
}

func (m Model) token() string {
	if m.auth == nil {
		return ""
	}
	token, _ := m.auth.Token()
	return token
}

// startSync drains the queue and refreshes in the background.
func (m Model) startSync() (tea.Model, tea.Cmd) {
	if m.syncing || m.engine == nil {
		return m, nil
	}
	if !m.signedIn() {
		m.showLogin("Sign in to sync.")
		cmd := m.login.focusCmd()
		return m, cmd
	}
	m.syncing = true
	return m, syncCmd(m.ctx, m.engine, m.token(), m.online)
}

func (m Model) handleSyncResult(msg syncResultMsg) (tea.Model, tea.Cmd) {
	m.syncing = false
	if msg.err != nil {
		if apperr.IsUnauthorized(msg.err) {
			return m.handleUnauthorized(msg.err)
		}
		m.setFlash(flashError, "Sync failed: "+describeError(msg.err))
		return m, fetchSnapshotCmd(m.cache)
	}
	m.setFlash(flashInfo, describeDrain(msg.result, msg.online))
	// Drop cached photo lists so the detail pane picks up new uploads.
	m.photoCache = make(map[uuid.UUID]photoState)
	photos := m.ensurePhotos()
	return m, tea.Batch(fetchSnapshotCmd(m.cache), photos)
}

func (m Model) toggleOffline() (tea.Model, tea.Cmd) {
	if m.monitor == nil {
		return m, nil
	}
	forced := !m.monitor.ForcedOffline()
	m.monitor.SetForcedOffline(forced)
	m.readConnectivity()
	if forced {
		m.setFlash(flashWarning, "Offline mode on. Updates will be queued.")
		return m, nil
	}
	m.setFlash(flashInfo, "Offline mode off.")
	return m.startSync()
}

func (m Model) signOut() (tea.Model, tea.Cmd) {
	if m.auth != nil {
		if err := m.auth.Clear(); err != nil {
			m.logger.WithError(err).Warn("failed to clear session")
		}
	}
	m.photoCache = make(map[uuid.UUID]photoState)
	m.showLogin("Signed out.")
	cmd := m.login.focusCmd()
	return m, cmd
}

// handleUnauthorized drops the stored session and asks for credentials. The
// offline queue is left untouched.
func (m Model) handleUnauthorized(err error) (tea.Model, tea.Cmd) {
	m.logger.WithError(err).Warn("session rejected by backend")
	if m.auth != nil {
		if clearErr := m.auth.Clear(); clearErr != nil {
			m.logger.WithError(clearErr).Warn("failed to clear session")
		}
	}
	m.showLogin("Session expired. Sign in again; queued updates are kept.")
	cmd := m.login.focusCmd()
	return m, cmd
}

func (m *Model) resize() {
	height := m.contentHeight()
	_, detailWidth := m.paneWidths()
	m.detailViewport.Width = max(detailWidth-4, 10)
	m.detailViewport.Height = max(height-2, 1)
	m.activityViewport.Width = max(m.width-4, 10)
	m.activityViewport.Height = max(height-2, 1)
	m.editor.resize(m.width, height)
	m.help.Width = m.width
}

// Run starts the Bubble Tea program and blocks until it exits.
func Run(opts Options) error {
	m := New(opts)
	ctx := m.ctx
	if m.unsubscribe != nil {
		defer m.unsubscribe()
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

// cacheChangedMsg is a snapshot taken after a cache subscription fired.
type cacheChangedMsg state.Snapshot

type submitResultMsg struct {
	id      uuid.UUID
	outcome syncer.Outcome
	err     error
}

type syncResultMsg struct {
	result syncer.DrainResult
	online bool
	err    error
}

type photosMsg struct {
	id    uuid.UUID
	items []workorder.Attachment
	err   error
}

type activityMsg struct {
	lines []activityLine
	err   error
}

type signInResultMsg struct {
	email string
	auth  backend.AuthSession
	err   error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func submitCmd(ctx context.Context, engine Engine, token string, id uuid.UUID, status workorder.Status, notes string, online bool) tea.Cmd {
	return func() tea.Msg {
		outcome, err := engine.SubmitUpdate(ctx, token, id, status, notes, online)
		return submitResultMsg{id: id, outcome: outcome, err: err}
	}
}

func syncCmd(ctx context.Context, engine Engine, token string, online bool) tea.Cmd {
	return func() tea.Msg {
		result, err := engine.Drain(ctx, token, online)
		if err == nil && online && result.Attempted == 0 {
			// Nothing queued; still pull fresh data.
			err = engine.Refresh(ctx, token)
		}
		return syncResultMsg{result: result, online: online, err: err}
	}
}

func fetchPhotosCmd(ctx context.Context, photos Photos, token string, id uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		items, err := photos.List(ctx, token, id)
		return photosMsg{id: id, items: items, err: err}
	}
}

func signInCmd(ctx context.Context, auth Authenticator, email, password string) tea.Cmd {
	return func() tea.Msg {
		sess, err := auth.SignIn(ctx, email, password)
		return signInResultMsg{email: email, auth: sess, err: err}
	}
}
