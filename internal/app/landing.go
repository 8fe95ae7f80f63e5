package app

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lexnova/lexnova/internal/ui"
)

var landingItems = []struct {
	label string
	path  string
}{
	{"Lawyer login", "/login"},
	{"Join a session", "/client-login"},
}

func (m Model) updateLanding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyEsc:
		return m.quit()
	case KeyUp, KeyK:
		if m.landing > 0 {
			m.landing--
		}
	case KeyDown, KeyJ, KeyTab:
		if m.landing < len(landingItems)-1 {
			m.landing++
		}
	case KeyEnter:
		return m.navigate(landingItems[m.landing].path)
	}
	return m, nil
}

func (m Model) viewLanding() string {
	var b strings.Builder
	b.WriteString(ui.TitleStyle.Render("LexNova"))
	b.WriteString("\n")
	b.WriteString(ui.DimStyle.Render("Remote legal verification"))
	b.WriteString("\n\n")
	for i, item := range landingItems {
		if i == m.landing {
			b.WriteString(ui.SelectedStyle.Render("▸ " + item.label))
		} else {
			b.WriteString("  " + item.label)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(renderFooter("↑↓", "select", "enter", "open", "q", "quit"))
	return m.centered(b.String())
}
