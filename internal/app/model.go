// Package app is the lexnova terminal UI: one bubbletea model routing
// between the landing, login, join, dashboard, room, and report screens.
package app

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lexnova/lexnova/internal/api"
	"github.com/lexnova/lexnova/internal/call"
	"github.com/lexnova/lexnova/internal/report"
	"github.com/lexnova/lexnova/internal/state"
)

// Deps are the stores and factories the screens drive.
type Deps struct {
	Auth     *state.AuthStore
	Sessions *state.SessionStore
	Client   *api.Client

	// NewTransport returns a fresh transport for each room visit.
	NewTransport func() call.Transport
	RTCURL       string

	Gate         *report.Gate
	Certifier    report.Certifier // nil simulates certification
	CertifyDelay time.Duration
}

// Model is the root bubbletea model for the lexnova TUI.
type Model struct {
	deps Deps
	loc  Location

	// Token issued by the client join flow; it unlocks /room/:token for
	// participants who are not logged in.
	joinToken string
	// Signaling URL for the next room visit when the backend named one.
	rtcURL string

	// Screens. Only the one for loc.Route is non-nil.
	landing int
	login   *loginForm
	join    *joinForm
	dash    *dashboard
	room    *roomScreen
	report  *reportScreen

	roomGen int

	// UI state
	width  int
	height int

	// Errors
	errorMessage   string
	errorTransient bool

	initCmd  tea.Cmd
	quitting bool
}

// New creates a Model showing startPath.
func New(deps Deps, startPath string) Model {
	m := Model{deps: deps, width: 80, height: 24}
	m, cmd := m.navigate(startPath)
	m.initCmd = cmd
	return m
}

// Init returns the command for the starting screen.
func (m Model) Init() tea.Cmd {
	return m.initCmd
}

// Location returns the current route.
func (m Model) Location() Location {
	return m.loc
}

func (m Model) guard() Guard {
	return Guard{
		Authenticated: m.deps.Auth != nil && m.deps.Auth.IsAuthenticated(),
		JoinToken:     m.joinToken,
	}
}

// navigateCmd asks the router to move to path on the next update.
func navigateCmd(path string) tea.Cmd {
	return func() tea.Msg {
		return NavigateMsg{Path: path}
	}
}

// navigate leaves the current screen and enters the one path resolves to.
func (m Model) navigate(path string) (Model, tea.Cmd) {
	m = m.leave()
	m.loc = Resolve(path, m.guard())
	m.errorMessage = ""
	m.errorTransient = false
	if m.loc.Route != RouteRoom {
		m.rtcURL = ""
	}

	switch m.loc.Route {
	case RouteLogin:
		f := newLoginForm()
		m.login = &f
		return m, nil
	case RouteClientLogin:
		f := newJoinForm()
		m.join = &f
		return m, nil
	case RouteDashboard:
		return m.enterDashboard()
	case RouteRoom:
		return m.enterRoom(m.loc.Param)
	case RouteReport:
		return m.enterReport(m.loc.Param)
	}
	m.landing = 0
	return m, nil
}

// leave tears down the current screen. Leaving the room hangs up.
func (m Model) leave() Model {
	if m.room != nil {
		m.room.hangUp()
	}
	m.login = nil
	m.join = nil
	m.dash = nil
	m.room = nil
	m.report = nil
	return m
}

// safePath is where a finished or failed call returns to.
func (m Model) safePath() string {
	if m.guard().Authenticated {
		return "/dashboard"
	}
	return "/"
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// showError sets a banner error that clears itself.
func (m Model) showError(text string) (Model, tea.Cmd) {
	m.errorMessage = text
	m.errorTransient = true
	return m, clearTransientErrorCmd()
}

// errorText picks the message shown for err: a validation message as is,
// the backend's detail when present, otherwise fallback.
func errorText(err error, fallback string) string {
	if errors.Is(err, state.ErrValidation) {
		return state.ValidationMessage(err)
	}
	if d := api.DetailOf(err); d != "" {
		return d
	}
	return fallback
}

// requestTimeout bounds commands that do not go through the REST client.
const requestTimeout = 10 * time.Second

func background() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case NavigateMsg:
		return m.navigate(msg.Path)

	case LoginResultMsg:
		return m.handleLoginResult(msg)

	case RegisterResultMsg:
		return m.handleRegisterResult(msg)

	case JoinResultMsg:
		return m.handleJoinResult(msg)

	case SessionsLoadedMsg:
		return m.handleSessionsLoaded(msg)

	case SessionCreatedMsg:
		return m.handleSessionCreated(msg)

	case SessionStartedMsg:
		return m.handleSessionStarted(msg)

	case ScriptAnalyzedMsg:
		return m.handleScriptAnalyzed(msg)

	case RoomConnectedMsg:
		return m.handleRoomConnected(msg)

	case RoomConnectErrorMsg:
		return m.handleRoomConnectError(msg)

	case RoomEventMsg:
		return m.handleRoomEvent(msg)

	case RoomEventsClosedMsg:
		return m.handleRoomEventsClosed(msg)

	case RoomTickMsg:
		return m.handleRoomTick(msg)

	case ToggleAckMsg:
		return m.handleToggleAck(msg)

	case ReportLoadedMsg:
		return m.handleReportLoaded(msg)

	case ReportReviewedMsg:
		return m.handleReportReviewed(msg)

	case CertifyDoneMsg:
		return m.handleCertifyDone(msg)

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	// Cursor blinks and other bubbles messages go to the focused input.
	return m.updateFocusedInput(msg)
}

// handleKey routes key presses to the active screen.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == KeyCtrlC {
		return m.quit()
	}

	switch m.loc.Route {
	case RouteLanding:
		return m.updateLanding(msg)
	case RouteLogin:
		return m.updateLogin(msg)
	case RouteClientLogin:
		return m.updateJoin(msg)
	case RouteDashboard:
		return m.updateDashboard(msg)
	case RouteRoom:
		return m.updateRoom(msg)
	case RouteReport:
		return m.updateReport(msg)
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m = m.leave()
	m.quitting = true
	return m, tea.Quit
}

func (m Model) updateFocusedInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.login != nil:
		cmd = m.login.updateInput(msg)
	case m.join != nil:
		cmd = m.join.updateInput(msg)
	case m.dash != nil:
		cmd = m.dash.updateInput(msg)
	}
	return m, cmd
}

// View renders the active screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var body string
	switch m.loc.Route {
	case RouteLogin:
		body = m.viewLogin()
	case RouteClientLogin:
		body = m.viewJoin()
	case RouteDashboard:
		body = m.viewDashboard()
	case RouteRoom:
		body = m.viewRoom()
	case RouteReport:
		body = m.viewReport()
	default:
		body = m.viewLanding()
	}

	if m.errorMessage != "" {
		body = renderErrorBar(m.errorMessage, m.width) + "\n" + body
	}
	return body
}
