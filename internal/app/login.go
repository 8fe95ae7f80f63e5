package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/lexnova/lexnova/internal/state"
	"github.com/lexnova/lexnova/internal/ui"
)

// login form field indices
const (
	loginEmail = iota
	loginPassword
	loginName
)

const msgLoginFailed = "Invalid email or password"

type loginForm struct {
	inputs     []textinput.Model
	focus      int
	register   bool
	submitting bool
	err        string
	notice     string
}

func newLoginForm() loginForm {
	email := textinput.New()
	email.Placeholder = "lawyer@firm.com"
	email.CharLimit = 254
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 128
	password.EchoMode = textinput.EchoPassword

	name := textinput.New()
	name.Placeholder = "Full name"
	name.CharLimit = 200

	return loginForm{inputs: []textinput.Model{email, password, name}}
}

func (f *loginForm) fieldCount() int {
	if f.register {
		return 3
	}
	return 2
}

func (f *loginForm) setFocus(i int) {
	f.inputs[f.focus].Blur()
	f.focus = i
	f.inputs[f.focus].Focus()
	f.inputs[f.focus].CursorEnd()
}

func (f *loginForm) updateInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := m.login
	switch msg.String() {
	case KeyEsc:
		return m.navigate("/")

	case KeyTab, KeyDown:
		f.setFocus((f.focus + 1) % f.fieldCount())
		return m, nil

	case KeyShiftTab, KeyUp:
		f.setFocus((f.focus - 1 + f.fieldCount()) % f.fieldCount())
		return m, nil

	case KeyToggleReg:
		f.register = !f.register
		f.err = ""
		f.notice = ""
		if f.focus >= f.fieldCount() {
			f.setFocus(loginEmail)
		}
		return m, nil

	case KeyEnter:
		return m.submitLogin()
	}

	return m, f.updateInput(msg)
}

func (m Model) submitLogin() (tea.Model, tea.Cmd) {
	f := m.login
	if f.submitting {
		return m, nil
	}
	email := f.inputs[loginEmail].Value()
	password := f.inputs[loginPassword].Value()

	if f.register {
		name := f.inputs[loginName].Value()
		if err := state.ValidateRegistration(email, password, name); err != nil {
			f.err = state.ValidationMessage(err)
			return m, nil
		}
		f.err = ""
		f.submitting = true
		return m, registerCmd(m.deps.Auth, email, password, name)
	}

	if err := state.ValidateCredentials(email, password); err != nil {
		f.err = state.ValidationMessage(err)
		return m, nil
	}
	f.err = ""
	f.submitting = true
	return m, loginCmd(m.deps.Auth, email, password)
}

// loginCmd exchanges credentials for a token.
func loginCmd(auth *state.AuthStore, email, password string) tea.Cmd {
	return func() tea.Msg {
		return LoginResultMsg{Err: auth.Login(context.Background(), email, password)}
	}
}

// registerCmd creates a lawyer account.
func registerCmd(auth *state.AuthStore, email, password, name string) tea.Cmd {
	return func() tea.Msg {
		return RegisterResultMsg{Err: auth.Register(context.Background(), email, password, name)}
	}
}

func (m Model) handleLoginResult(msg LoginResultMsg) (tea.Model, tea.Cmd) {
	if m.login == nil {
		return m, nil
	}
	m.login.submitting = false
	if msg.Err != nil {
		m.login.err = errorText(msg.Err, msgLoginFailed)
		return m, nil
	}
	return m.navigate("/dashboard")
}

func (m Model) handleRegisterResult(msg RegisterResultMsg) (tea.Model, tea.Cmd) {
	f := m.login
	if f == nil {
		return m, nil
	}
	f.submitting = false
	if msg.Err != nil {
		f.err = errorText(msg.Err, "Registration failed. Please try again.")
		return m, nil
	}
	f.register = false
	f.err = ""
	f.notice = "Account created. Please log in."
	f.inputs[loginPassword].SetValue("")
	f.inputs[loginName].SetValue("")
	f.setFocus(loginPassword)
	return m, nil
}

func (m Model) viewLogin() string {
	f := m.login
	title := "Lawyer Login"
	action := "log in"
	if f.register {
		title = "Create Account"
		action = "register"
	}

	content := ui.TitleStyle.Render(title) + "\n\n"
	content += fmt.Sprintf("%s  %s\n\n", fieldLabel("Email:", f.focus == loginEmail), f.inputs[loginEmail].View())
	content += fmt.Sprintf("%s  %s\n\n", fieldLabel("Password:", f.focus == loginPassword), f.inputs[loginPassword].View())
	if f.register {
		content += fmt.Sprintf("%s  %s\n\n", fieldLabel("Name:", f.focus == loginName), f.inputs[loginName].View())
	}

	switch {
	case f.submitting:
		content += ui.SpinnerStyle.Render("Please wait...") + "\n\n"
	case f.err != "":
		content += ui.ErrorTextStyle.Render(f.err) + "\n\n"
	case f.notice != "":
		content += ui.NoticeStyle.Render(f.notice) + "\n\n"
	}

	content += renderFooter("enter", action, "tab", "next", "ctrl+r", "login/register", "esc", "back")
	return m.centered(content)
}
