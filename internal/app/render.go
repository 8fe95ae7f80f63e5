package app

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lexnova/lexnova/internal/ui"
)

func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			switch {
			case current == "":
				current = word
			case len(current)+1+len(word) <= width:
				current += " " + word
			default:
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// renderFooter renders key/description pairs.
func renderFooter(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, ui.FooterKeyStyle.Render(pairs[i])+" "+ui.FooterDescStyle.Render(pairs[i+1]))
	}
	return strings.Join(parts, "  ")
}

func renderErrorBar(text string, width int) string {
	return ui.ErrorStyle.Render(truncateToWidth("✗ "+text, width))
}

func fieldLabel(label string, focused bool) string {
	style := lipgloss.NewStyle().Width(12)
	if focused {
		style = style.Bold(true).Foreground(ui.ColorViolet)
	} else {
		style = style.Foreground(ui.ColorWhite)
	}
	return style.Render(label)
}

func renderRadio(options []string, selected int, focused bool) string {
	var parts []string
	for i, opt := range options {
		if i != selected {
			parts = append(parts, ui.DimStyle.Render("○ "+opt))
			continue
		}
		style := lipgloss.NewStyle().Bold(true).Foreground(ui.ColorWhite)
		if focused {
			style = style.Foreground(ui.ColorViolet)
		}
		parts = append(parts, style.Render("● "+opt))
	}
	return strings.Join(parts, "   ")
}

// centered places a boxed form in the middle of the screen.
func (m Model) centered(content string) string {
	box := ui.BoxStyle.Render(content)
	return lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, box)
}
