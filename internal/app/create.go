package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/lexnova/lexnova/internal/api"
	"github.com/lexnova/lexnova/internal/state"
	"github.com/lexnova/lexnova/internal/ui"
)

// create form field indices
const (
	createGroom = iota
	createBride
	createDate
	createScript
	createVoice
	createStrictness
	createFieldCount
)

var (
	voiceOptions      = []string{api.VoiceWarm, api.VoiceAuthoritative, api.VoiceNeutral}
	strictnessOptions = []string{api.StrictnessLow, api.StrictnessHigh}
)

type createForm struct {
	inputs     [createScript + 1]textinput.Model // groom, bride, date, script
	voice      int
	strictness int
	focus      int
	submitting bool
	err        string
}

func newCreateForm() createForm {
	var f createForm
	placeholders := [...]string{
		createGroom:  "Groom's full name",
		createBride:  "Bride's full name",
		createDate:   "YYYY-MM-DD (default today)",
		createScript: "path/to/script.txt (optional)",
	}
	for i, p := range placeholders {
		in := textinput.New()
		in.Placeholder = p
		in.CharLimit = 200
		f.inputs[i] = in
	}
	f.inputs[createScript].CharLimit = 1024
	f.inputs[createGroom].Focus()

	def := api.DefaultAIConfig()
	f.voice = indexOf(voiceOptions, def.VoiceStyle)
	f.strictness = indexOf(strictnessOptions, def.Strictness)
	return f
}

func indexOf(options []string, v string) int {
	for i, o := range options {
		if o == v {
			return i
		}
	}
	return 0
}

func (f *createForm) setFocus(i int) {
	if f.focus < len(f.inputs) {
		f.inputs[f.focus].Blur()
	}
	f.focus = i
	if f.focus < len(f.inputs) {
		f.inputs[f.focus].Focus()
		f.inputs[f.focus].CursorEnd()
	}
}

func (f *createForm) updateInput(msg tea.Msg) tea.Cmd {
	if f.focus >= len(f.inputs) {
		return nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

// request builds the creation payload from the form, validating it locally.
func (f *createForm) request(now time.Time) (api.NewSession, string, error) {
	req := api.NewSession{
		GroomName: f.inputs[createGroom].Value(),
		BrideName: f.inputs[createBride].Value(),
		AIConfig: &api.AIConfig{
			VoiceStyle: voiceOptions[f.voice],
			Strictness: strictnessOptions[f.strictness],
		},
	}
	if err := state.ValidateNewSession(req); err != nil {
		return req, "", err
	}

	date, err := parseDate(f.inputs[createDate].Value(), now)
	if err != nil {
		return req, "", err
	}
	req.Date = date

	path := strings.TrimSpace(f.inputs[createScript].Value())
	if path != "" {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return req, "", fmt.Errorf("%w: Script file not found", state.ErrValidation)
		}
		if info.Size() > state.MaxScriptBytes {
			return req, "", fmt.Errorf("%w: File too large. Maximum size is 10MB.", state.ErrValidation)
		}
	}
	return req, path, nil
}

// parseDate accepts RFC 3339 or YYYY-MM-DD and returns RFC 3339. Empty
// means now.
func parseDate(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.Format(time.RFC3339), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(time.RFC3339), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t.Format(time.RFC3339), nil
	}
	return "", fmt.Errorf("%w: Date must be YYYY-MM-DD", state.ErrValidation)
}

// createSessionCmd creates the session and then uploads the script, if any.
func createSessionCmd(store *state.SessionStore, req api.NewSession, scriptPath string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		session, err := store.CreateSession(ctx, req)
		if err != nil {
			return SessionCreatedMsg{Err: err}
		}
		if scriptPath == "" {
			return SessionCreatedMsg{Session: session}
		}

		f, err := os.Open(scriptPath)
		if err != nil {
			return SessionCreatedMsg{Session: session, UploadErr: err}
		}
		defer f.Close()
		err = store.UploadScript(ctx, session.ID, filepath.Base(scriptPath), f)
		return SessionCreatedMsg{Session: session, UploadErr: err}
	}
}

func (m Model) updateCreate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := m.dash.create
	switch msg.String() {
	case KeyEsc:
		if !f.submitting {
			m.dash.create = nil
		}
		return m, nil

	case KeyTab, KeyDown:
		f.setFocus((f.focus + 1) % createFieldCount)
		return m, nil

	case KeyShiftTab, KeyUp:
		f.setFocus((f.focus - 1 + createFieldCount) % createFieldCount)
		return m, nil

	case KeyEnter:
		return m.submitCreate(time.Now())
	}

	switch f.focus {
	case createVoice:
		switch msg.String() {
		case KeyLeft, "h":
			f.voice = (f.voice - 1 + len(voiceOptions)) % len(voiceOptions)
		case KeyRight, "l":
			f.voice = (f.voice + 1) % len(voiceOptions)
		}
		return m, nil
	case createStrictness:
		switch msg.String() {
		case KeyLeft, "h":
			f.strictness = 0
		case KeyRight, "l":
			f.strictness = 1
		}
		return m, nil
	}
	return m, f.updateInput(msg)
}

func (m Model) submitCreate(now time.Time) (tea.Model, tea.Cmd) {
	f := m.dash.create
	if f.submitting {
		return m, nil
	}
	req, path, err := f.request(now)
	if err != nil {
		f.err = state.ValidationMessage(err)
		return m, nil
	}
	f.err = ""
	f.submitting = true
	return m, createSessionCmd(m.deps.Sessions, req, path)
}

func (m Model) handleSessionCreated(msg SessionCreatedMsg) (tea.Model, tea.Cmd) {
	d := m.dash
	if d == nil || d.create == nil {
		return m, nil
	}
	if errors.Is(msg.Err, state.ErrInFlight) {
		return m, nil
	}
	d.create.submitting = false
	if msg.Err != nil {
		d.create.err = errorText(msg.Err, "Failed to create session. Please try again.")
		return m, nil
	}

	d.create = nil
	d.selected = 0
	if msg.UploadErr != nil {
		return m.showError(msgUploadLater)
	}
	d.notice = fmt.Sprintf("Session created for %s & %s", msg.Session.GroomName, msg.Session.BrideName)
	return m, nil
}

func (m Model) viewCreate() string {
	f := m.dash.create
	content := ui.TitleStyle.Render("New Verification Session") + "\n\n"
	labels := [...]string{
		createGroom:  "Groom:",
		createBride:  "Bride:",
		createDate:   "Date:",
		createScript: "Script:",
	}
	for i, label := range labels {
		content += fmt.Sprintf("%s  %s\n\n", fieldLabel(label, f.focus == i), f.inputs[i].View())
	}
	content += fmt.Sprintf("%s  %s\n\n", fieldLabel("Voice:", f.focus == createVoice),
		renderRadio(voiceOptions, f.voice, f.focus == createVoice))
	content += fmt.Sprintf("%s  %s\n\n", fieldLabel("Strictness:", f.focus == createStrictness),
		renderRadio(strictnessOptions, f.strictness, f.focus == createStrictness))

	switch {
	case f.submitting:
		content += ui.SpinnerStyle.Render("Creating session...") + "\n\n"
	case f.err != "":
		content += ui.ErrorTextStyle.Render(f.err) + "\n\n"
	}

	content += renderFooter("enter", "create", "tab", "next", "←→", "choose", "esc", "cancel")
	return m.centered(content)
}
