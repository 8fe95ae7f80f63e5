// Package ui holds the lipgloss styles shared by the lexnova screens.
package ui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorViolet  = lipgloss.Color("#8B5CF6")
	ColorRed     = lipgloss.Color("#EF4444")
	ColorGreen   = lipgloss.Color("#10B981")
	ColorYellow  = lipgloss.Color("#EAB308")
	ColorGray    = lipgloss.Color("#71717A")
	ColorDimGray = lipgloss.Color("#3F3F46")
	ColorWhite   = lipgloss.Color("#F4F4F5")
)

// Base styles reused by UI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorViolet)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	LiveDotStyle = lipgloss.NewStyle().
			Foreground(ColorViolet).
			Bold(true)

	IdleDotStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	TimestampStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	BotLabelStyle = lipgloss.NewStyle().
			Foreground(ColorViolet).
			Bold(true)

	SpeakerLabelStyle = lipgloss.NewStyle().
				Foreground(ColorGray).
				Bold(true)

	PanelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorGray)

	PanelTitleActiveStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorViolet)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorViolet).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	StepCurrentStyle = lipgloss.NewStyle().
				Foreground(ColorViolet).
				Bold(true)

	StepCompletedStyle = lipgloss.NewStyle().
				Foreground(ColorGreen)

	StepPendingStyle = lipgloss.NewStyle().
				Foreground(ColorDimGray)

	RiskLowStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	RiskMediumStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	RiskHighStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	FlaggedStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	CertifiedStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorViolet)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorViolet).
			Padding(1, 2)
)

// StatusStyleFor colors a session status badge.
func StatusStyleFor(status string) lipgloss.Style {
	switch status {
	case "ready":
		return LiveDotStyle
	case "active":
		return RiskMediumStyle
	case "completed":
		return CertifiedStyle
	}
	return DimStyle
}
