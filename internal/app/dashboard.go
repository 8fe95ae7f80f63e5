package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/lexnova/lexnova/internal/api"
	"github.com/lexnova/lexnova/internal/joincode"
	"github.com/lexnova/lexnova/internal/state"
	"github.com/lexnova/lexnova/internal/ui"
)

const (
	msgLoadFailed    = "Failed to load sessions. Please refresh."
	msgStartFailed   = "Could not start session. Please try again."
	msgAnalyzeFailed = "AI Analysis failed. Please try again."
	msgUploadLater   = "Session created but script upload failed. You can upload it later."
)

type dashboard struct {
	selected  int
	searching bool
	search    textinput.Model
	query     string

	create *createForm

	// Tokens from the last start, shown until dismissed.
	started *SessionStartedMsg
	// Session to enter as lawyer once its start returns.
	joinAfterStart string

	analysis *ScriptAnalyzedMsg
	busy     string
	notice   string
}

func newDashboard() dashboard {
	search := textinput.New()
	search.Placeholder = "search names or ids"
	search.Prompt = "/ "
	search.CharLimit = 100
	return dashboard{search: search}
}

func (d *dashboard) updateInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case d.create != nil:
		cmd = d.create.updateInput(msg)
	case d.searching:
		d.search, cmd = d.search.Update(msg)
	}
	return cmd
}

func (m Model) enterDashboard() (Model, tea.Cmd) {
	d := newDashboard()
	m.dash = &d
	return m, fetchSessionsCmd(m.deps.Sessions)
}

// fetchSessionsCmd refreshes the session cache.
func fetchSessionsCmd(store *state.SessionStore) tea.Cmd {
	return func() tea.Msg {
		return SessionsLoadedMsg{Err: store.FetchSessions(context.Background())}
	}
}

// startSessionCmd opens a session's room and returns the join tokens.
func startSessionCmd(store *state.SessionStore, sessionID string) tea.Cmd {
	return func() tea.Msg {
		tokens, err := store.StartSession(context.Background(), sessionID)
		return SessionStartedMsg{SessionID: sessionID, Tokens: tokens, Err: err}
	}
}

// analyzeScriptCmd asks the backend to summarize a session's script.
func analyzeScriptCmd(store *state.SessionStore, sessionID, content string) tea.Cmd {
	return func() tea.Msg {
		analysis, err := store.AnalyzeScript(context.Background(), content)
		return ScriptAnalyzedMsg{SessionID: sessionID, Analysis: analysis, Err: err}
	}
}

// visible returns the sessions matching the search query.
func (m Model) visible() []api.Session {
	return m.deps.Sessions.Filter(m.dash.query)
}

func (m Model) selectedSession() (api.Session, bool) {
	list := m.visible()
	if m.dash.selected < 0 || m.dash.selected >= len(list) {
		return api.Session{}, false
	}
	return list[m.dash.selected], true
}

func (m Model) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := m.dash
	if d.create != nil {
		return m.updateCreate(msg)
	}
	if d.searching {
		return m.updateSearch(msg)
	}

	switch msg.String() {
	case KeyQuit:
		return m.quit()

	case KeyDown, KeyJ:
		if d.selected < len(m.visible())-1 {
			d.selected++
		}

	case KeyUp, KeyK:
		if d.selected > 0 {
			d.selected--
		}

	case KeySearch:
		d.searching = true
		d.search.Focus()
		return m, textinput.Blink

	case KeyNew:
		f := newCreateForm()
		d.create = &f
		return m, textinput.Blink

	case KeyRefresh:
		d.busy = "Refreshing..."
		return m, fetchSessionsCmd(m.deps.Sessions)

	case KeyStart:
		if s, ok := m.selectedSession(); ok && d.busy == "" {
			d.busy = "Starting session..."
			return m, startSessionCmd(m.deps.Sessions, s.ID)
		}

	case KeyEnter:
		s, ok := m.selectedSession()
		if !ok {
			return m, nil
		}
		if d.started != nil && d.started.SessionID == s.ID && d.started.Tokens.LawyerToken != "" {
			return m.enterAsLawyer(d.started.Tokens)
		}
		if d.busy == "" {
			d.busy = "Starting session..."
			d.joinAfterStart = s.ID
			return m, startSessionCmd(m.deps.Sessions, s.ID)
		}

	case KeyReport:
		if s, ok := m.selectedSession(); ok {
			return m.navigate("/report/" + s.ID)
		}

	case KeyAnalyze:
		s, ok := m.selectedSession()
		if !ok || d.busy != "" {
			return m, nil
		}
		if strings.TrimSpace(s.ScriptContent) == "" {
			return m.showError("No script uploaded for this session")
		}
		d.busy = "Analyzing script..."
		return m, analyzeScriptCmd(m.deps.Sessions, s.ID, s.ScriptContent)

	case KeyLogout:
		m.deps.Auth.Logout()
		return m.navigate("/")

	case KeyEsc:
		d.started = nil
		d.analysis = nil
		d.notice = ""
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := m.dash
	switch msg.String() {
	case KeyEsc:
		d.searching = false
		d.search.Blur()
		d.search.SetValue("")
		d.query = ""
		d.selected = 0
		return m, nil
	case KeyEnter:
		d.searching = false
		d.search.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	d.search, cmd = d.search.Update(msg)
	d.query = d.search.Value()
	d.selected = 0
	return m, cmd
}

// enterAsLawyer joins the room with the lawyer token. A signaling URL
// returned by the backend wins over the configured one.
func (m Model) enterAsLawyer(tokens *api.StartTokens) (Model, tea.Cmd) {
	m.rtcURL = tokens.URL
	return m.navigate("/room/" + tokens.LawyerToken)
}

func (m Model) handleSessionsLoaded(msg SessionsLoadedMsg) (tea.Model, tea.Cmd) {
	if m.dash == nil {
		return m, nil
	}
	m.dash.busy = ""
	if msg.Err != nil {
		if errors.Is(msg.Err, api.ErrUnauthorized) {
			m.deps.Auth.Logout()
			var cmd tea.Cmd
			m, cmd = m.navigate("/login")
			m.login.err = "Your session has expired. Please log in again."
			return m, cmd
		}
		return m.showError(msgLoadFailed)
	}
	if n := len(m.visible()); m.dash.selected >= n {
		m.dash.selected = max(0, n-1)
	}
	return m, nil
}

func (m Model) handleSessionStarted(msg SessionStartedMsg) (tea.Model, tea.Cmd) {
	d := m.dash
	if d == nil {
		return m, nil
	}
	d.busy = ""
	joinNow := d.joinAfterStart == msg.SessionID
	d.joinAfterStart = ""
	if msg.Err != nil {
		return m.showError(errorText(msg.Err, msgStartFailed))
	}
	d.started = &msg
	if joinNow && msg.Tokens.LawyerToken != "" {
		return m.enterAsLawyer(msg.Tokens)
	}
	return m, nil
}

func (m Model) handleScriptAnalyzed(msg ScriptAnalyzedMsg) (tea.Model, tea.Cmd) {
	if m.dash == nil {
		return m, nil
	}
	m.dash.busy = ""
	if msg.Err != nil {
		return m.showError(errorText(msg.Err, msgAnalyzeFailed))
	}
	m.dash.analysis = &msg
	return m, nil
}

func (m Model) viewDashboard() string {
	d := m.dash
	if d.create != nil {
		return m.viewCreate()
	}

	var b strings.Builder
	user := ""
	if st := m.deps.Auth.State(); st.User != nil {
		user = st.User.Name
	}
	b.WriteString(ui.TitleStyle.Render("LexNova") + "  " + ui.HeaderStyle.Render("Sessions"))
	if user != "" {
		b.WriteString("  " + ui.DimStyle.Render(user))
	}
	b.WriteString("\n")
	b.WriteString(ui.DividerStyle.Render(strings.Repeat("─", max(m.width, 20))))
	b.WriteString("\n")

	if d.searching || d.query != "" {
		b.WriteString(d.search.View())
		b.WriteString("\n")
	}

	list := m.visible()
	switch {
	case m.deps.Sessions.Loading() && len(list) == 0:
		b.WriteString(ui.SpinnerStyle.Render("Loading sessions..."))
		b.WriteString("\n")
	case len(list) == 0:
		b.WriteString(ui.DimStyle.Render("No sessions. Press n to create one."))
		b.WriteString("\n")
	}
	for i, s := range list {
		b.WriteString(m.renderSessionRow(s, i == d.selected))
		b.WriteString("\n")
	}

	if d.started != nil {
		b.WriteString("\n")
		b.WriteString(renderStarted(d.started))
	}
	if d.analysis != nil {
		b.WriteString("\n")
		b.WriteString(renderAnalysis(d.analysis.Analysis, m.width))
	}
	if d.notice != "" {
		b.WriteString("\n" + ui.NoticeStyle.Render(d.notice) + "\n")
	}
	if d.busy != "" {
		b.WriteString("\n" + ui.SpinnerStyle.Render(d.busy) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(renderFooter(
		"j/k", "move", "/", "search", "n", "new", "s", "start", "enter", "join",
		"r", "report", "a", "analyze", "R", "refresh", "L", "logout", "q", "quit",
	))
	return b.String()
}

func (m Model) renderSessionRow(s api.Session, selected bool) string {
	names := fmt.Sprintf("%s & %s", s.GroomName, s.BrideName)
	date := s.Date
	if len(date) > 10 {
		date = date[:10]
	}
	code := ""
	if s.SessionCode != "" {
		code = joincode.Format(s.SessionCode)
	}
	row := fmt.Sprintf("%s %s %s %s",
		padRight(truncateToWidth(names, 36), 36),
		padRight(date, 11),
		padRight(code, 8),
		ui.StatusStyleFor(string(s.Status)).Render(string(s.Status)),
	)
	if selected {
		return ui.SelectedStyle.Render("▸ ") + row
	}
	return "  " + row
}

func renderStarted(msg *SessionStartedMsg) string {
	t := msg.Tokens
	var b strings.Builder
	b.WriteString(ui.PanelTitleActiveStyle.Render("Session started") + "\n")
	if t.RoomName != "" {
		b.WriteString(fmt.Sprintf("  room:   %s\n", t.RoomName))
	}
	b.WriteString(fmt.Sprintf("  groom:  %s\n", truncateToWidth(t.GroomToken, 60)))
	b.WriteString(fmt.Sprintf("  bride:  %s\n", truncateToWidth(t.BrideToken, 60)))
	b.WriteString(fmt.Sprintf("  lawyer: %s\n", truncateToWidth(t.LawyerToken, 60)))
	if t.Warning != "" {
		b.WriteString(ui.NoticeStyle.Render("  "+t.Warning) + "\n")
	}
	b.WriteString(ui.DimStyle.Render("  enter joins as lawyer") + "\n")
	return b.String()
}

func renderAnalysis(a *api.ScriptAnalysis, width int) string {
	var b strings.Builder
	b.WriteString(ui.PanelTitleActiveStyle.Render("Script analysis") + "\n")
	b.WriteString(fmt.Sprintf("  tone: %s  complexity: %s  questions: %d  ~%d min\n",
		a.Tone, a.Complexity, a.QuestionCount, a.EstimatedDurationMinutes))
	for _, line := range wrapText(a.Summary, max(width-4, 20)) {
		b.WriteString("  " + line + "\n")
	}
	for _, q := range a.KeyQuestions {
		b.WriteString(ui.DimStyle.Render("  • "+q) + "\n")
	}
	return b.String()
}
