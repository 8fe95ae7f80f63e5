package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/lexnova/lexnova/internal/api"
	"github.com/lexnova/lexnova/internal/joincode"
	"github.com/lexnova/lexnova/internal/ui"
)

// join form field indices
const (
	joinCode = iota
	joinName
	joinRole
	joinFieldCount
)

const (
	msgFillAllFields = "Please fill in all fields"
	msgJoinFailed    = "Failed to join session. Please check your session code and try again."
)

var joinRoles = []string{api.ParticipantGroom, api.ParticipantBride}

type joinForm struct {
	code       textinput.Model
	name       textinput.Model
	role       int // index into joinRoles
	focus      int
	submitting bool
	err        string
}

func newJoinForm() joinForm {
	code := textinput.New()
	code.Placeholder = "ABC-123"
	code.CharLimit = joincode.Length + 1
	code.Focus()

	name := textinput.New()
	name.Placeholder = "Full name as on your ID"
	name.CharLimit = 200

	return joinForm{code: code, name: name}
}

// Code returns the normalized session code.
func (f *joinForm) Code() string {
	return joincode.Normalize(f.code.Value())
}

func (f *joinForm) setFocus(i int) {
	f.code.Blur()
	f.name.Blur()
	f.focus = i
	switch i {
	case joinCode:
		f.code.Focus()
		f.code.CursorEnd()
	case joinName:
		f.name.Focus()
		f.name.CursorEnd()
	}
}

func (f *joinForm) updateInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch f.focus {
	case joinCode:
		f.code, cmd = f.code.Update(msg)
		f.reformatCode()
	case joinName:
		f.name, cmd = f.name.Update(msg)
	}
	return cmd
}

// reformatCode keeps the code input to [A-Z0-9], at most six characters,
// displayed as ABC-123.
func (f *joinForm) reformatCode() {
	formatted := joincode.Format(joincode.Normalize(f.code.Value()))
	if formatted != f.code.Value() {
		f.code.SetValue(formatted)
		f.code.CursorEnd()
	}
}

func (m Model) updateJoin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := m.join
	switch msg.String() {
	case KeyEsc:
		return m.navigate("/")

	case KeyTab, KeyDown:
		f.setFocus((f.focus + 1) % joinFieldCount)
		return m, nil

	case KeyShiftTab, KeyUp:
		f.setFocus((f.focus - 1 + joinFieldCount) % joinFieldCount)
		return m, nil

	case KeyEnter:
		return m.submitJoin()
	}

	if f.focus == joinRole {
		switch msg.String() {
		case KeyLeft, "h":
			f.role = 0
		case KeyRight, "l":
			f.role = 1
		}
		return m, nil
	}
	return m, f.updateInput(msg)
}

func (m Model) submitJoin() (tea.Model, tea.Cmd) {
	f := m.join
	if f.submitting {
		return m, nil
	}
	code := f.Code()
	name := strings.TrimSpace(f.name.Value())
	if code == "" || name == "" {
		f.err = msgFillAllFields
		return m, nil
	}
	if !joincode.Valid(code) {
		f.err = fmt.Sprintf("Session code must be %d letters or digits", joincode.Length)
		return m, nil
	}

	f.err = ""
	f.submitting = true
	return m, joinCmd(m.deps.Client, api.JoinRequest{
		SessionCode:     code,
		ParticipantName: name,
		ParticipantType: joinRoles[f.role],
	})
}

// joinCmd exchanges a session code for a room token.
func joinCmd(client *api.Client, req api.JoinRequest) tea.Cmd {
	return func() tea.Msg {
		res, err := client.Join(context.Background(), req)
		return JoinResultMsg{Result: res, Err: err}
	}
}

func (m Model) handleJoinResult(msg JoinResultMsg) (tea.Model, tea.Cmd) {
	if m.join == nil {
		return m, nil
	}
	m.join.submitting = false
	if msg.Err != nil {
		m.join.err = errorText(msg.Err, msgJoinFailed)
		return m, nil
	}
	m.joinToken = msg.Result.Token
	return m.navigate("/room/" + msg.Result.Token)
}

func (m Model) viewJoin() string {
	f := m.join
	content := ui.TitleStyle.Render("Join Verification Session") + "\n\n"
	content += fmt.Sprintf("%s  %s\n\n", fieldLabel("Code:", f.focus == joinCode), f.code.View())
	content += fmt.Sprintf("%s  %s\n\n", fieldLabel("Full name:", f.focus == joinName), f.name.View())
	content += fmt.Sprintf("%s  %s\n\n", fieldLabel("I am the:", f.focus == joinRole),
		renderRadio([]string{"Groom", "Bride"}, f.role, f.focus == joinRole))

	switch {
	case f.submitting:
		content += ui.SpinnerStyle.Render("Joining...") + "\n\n"
	case f.err != "":
		content += ui.ErrorTextStyle.Render(f.err) + "\n\n"
	}

	content += renderFooter("enter", "join", "tab", "next", "←→", "role", "esc", "back")
	return m.centered(content)
}
