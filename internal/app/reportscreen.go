package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lexnova/lexnova/internal/report"
	"github.com/lexnova/lexnova/internal/state"
	"github.com/lexnova/lexnova/internal/ui"
)

type reportScreen struct {
	sessionID  string
	viewer     *report.Viewer
	loading    bool
	err        string
	pending    bool // certify requested, result not back yet
	confirming bool // gate asked for review; waiting for y/n
	scroll     int
}

func (m Model) enterReport(sessionID string) (Model, tea.Cmd) {
	m.report = &reportScreen{sessionID: sessionID, loading: true}
	return m, fetchReportCmd(m.deps.Sessions, sessionID)
}

// fetchReportCmd loads the post-session report.
func fetchReportCmd(store *state.SessionStore, sessionID string) tea.Cmd {
	return func() tea.Msg {
		rep, err := store.FetchReport(context.Background(), sessionID)
		return ReportLoadedMsg{SessionID: sessionID, Report: rep, Err: err}
	}
}

// reviewCmd runs the certification gate.
func reviewCmd(v *report.Viewer) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := background()
		defer cancel()
		d, err := v.Review(ctx)
		return ReportReviewedMsg{Decision: d, Err: err}
	}
}

// certifyCmd issues the certificate.
func certifyCmd(v *report.Viewer, confirmed bool) tea.Cmd {
	return func() tea.Msg {
		return CertifyDoneMsg{Err: v.Certify(context.Background(), confirmed)}
	}
}

func (m Model) viewerOptions() []report.Option {
	var opts []report.Option
	if m.deps.Certifier != nil {
		opts = append(opts, report.WithCertifier(m.deps.Certifier))
	}
	if m.deps.Gate != nil {
		opts = append(opts, report.WithGate(m.deps.Gate))
	}
	if m.deps.CertifyDelay > 0 {
		opts = append(opts, report.WithDelay(m.deps.CertifyDelay))
	}
	return opts
}

func (m Model) handleReportLoaded(msg ReportLoadedMsg) (tea.Model, tea.Cmd) {
	r := m.report
	if r == nil || r.sessionID != msg.SessionID {
		return m, nil
	}
	r.loading = false
	if msg.Err != nil {
		r.err = errorText(msg.Err, state.MsgReportFailed)
		return m, nil
	}
	r.viewer = report.NewViewer(*msg.Report, m.viewerOptions()...)
	return m, reviewCmd(r.viewer)
}

func (m Model) handleReportReviewed(msg ReportReviewedMsg) (tea.Model, tea.Cmd) {
	if m.report == nil {
		return m, nil
	}
	if msg.Err != nil {
		return m.showError(fmt.Sprintf("Certification policy failed: %v", msg.Err))
	}
	return m, nil
}

func (m Model) handleCertifyDone(msg CertifyDoneMsg) (tea.Model, tea.Cmd) {
	r := m.report
	if r == nil {
		return m, nil
	}
	r.pending = false
	// Other failures are recorded by the viewer and shown from its snapshot.
	if errors.Is(msg.Err, report.ErrNeedsConfirmation) {
		r.confirming = true
	}
	return m, nil
}

func (m Model) updateReport(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	r := m.report
	if r.confirming {
		switch msg.String() {
		case KeyConfirm:
			r.confirming = false
			r.pending = true
			return m, certifyCmd(r.viewer, true)
		case "n", KeyEsc:
			r.confirming = false
		}
		return m, nil
	}

	switch msg.String() {
	case "b", KeyEsc:
		return m.navigate("/dashboard")

	case KeyQuit:
		return m.quit()

	case KeyDown, KeyJ:
		r.scroll++

	case KeyUp, KeyK:
		if r.scroll > 0 {
			r.scroll--
		}

	case KeyCertify:
		if r.viewer == nil || r.pending {
			return m, nil
		}
		snap := r.viewer.Snapshot()
		if snap.Certified || snap.Certifying {
			return m, nil
		}
		r.pending = true
		return m, certifyCmd(r.viewer, false)
	}
	return m, nil
}

func (m Model) viewReport() string {
	r := m.report
	width := max(m.width, 40)

	var b strings.Builder
	b.WriteString(ui.TitleStyle.Render("Session Report"))
	b.WriteString("  " + ui.DimStyle.Render(r.sessionID) + "\n")
	b.WriteString(ui.DividerStyle.Render(strings.Repeat("─", width)) + "\n")

	switch {
	case r.loading:
		b.WriteString(ui.SpinnerStyle.Render("Loading report...") + "\n")
		b.WriteString(renderFooter("b", "back"))
		return b.String()
	case r.err != "":
		b.WriteString(ui.ErrorTextStyle.Render(r.err) + "\n\n")
		b.WriteString(renderFooter("b", "back"))
		return b.String()
	}

	snap := r.viewer.Snapshot()
	fa := snap.Report.FraudAnalysis

	b.WriteString(fmt.Sprintf("%s %s   %s %d%%   %s %s\n",
		ui.PanelTitleStyle.Render("Risk:"),
		riskStyle(snap.Band).Render(fmt.Sprintf("%d/100 (%s)", fa.RiskScore, snap.Band)),
		ui.PanelTitleStyle.Render("Voice match:"),
		fa.VoiceMatchConfidence,
		ui.PanelTitleStyle.Render("Coercion:"),
		coercionText(fa.CoercionDetected),
	))
	if snap.Report.Duration != "" {
		b.WriteString(ui.DimStyle.Render("Duration: "+snap.Report.Duration) + "\n")
	}
	for _, note := range fa.Notes {
		for i, line := range wrapText(note, width-4) {
			bullet := "  "
			if i == 0 {
				bullet = "• "
			}
			b.WriteString("  " + bullet + line + "\n")
		}
	}

	b.WriteString("\n" + ui.PanelTitleStyle.Render("TRANSCRIPT") + "\n")
	b.WriteString(m.renderReportTranscript(snap, width, max(m.height-16, 4)))

	b.WriteString("\n" + renderCertification(r, snap) + "\n")

	if r.confirming {
		b.WriteString(renderFooter("y", "certify anyway", "n", "cancel"))
	} else {
		b.WriteString(renderFooter("c", "certify", "j/k", "scroll", "b", "back", "q", "quit"))
	}
	return b.String()
}

func (m Model) renderReportTranscript(snap report.Snapshot, width, height int) string {
	entries := snap.Report.Transcript
	if len(entries) == 0 {
		return ui.DimStyle.Render("No transcript recorded.") + "\n"
	}

	var lines []string
	for _, e := range entries {
		marker := "  "
		textStyle := lipgloss.NewStyle()
		if e.Flagged {
			marker = ui.FlaggedStyle.Render("⚑ ")
			textStyle = ui.FlaggedStyle
		}
		prefix := marker + ui.TimestampStyle.Render(e.Timestamp) + " " +
			ui.SpeakerLabelStyle.Render(strings.ToUpper(e.Speaker)+":") + " "
		wrapped := wrapText(e.Text, max(width-lipgloss.Width(prefix), 10))
		lines = append(lines, prefix+textStyle.Render(wrapped[0]))
		indent := strings.Repeat(" ", lipgloss.Width(prefix))
		for _, w := range wrapped[1:] {
			lines = append(lines, indent+textStyle.Render(w))
		}
	}

	start := min(m.report.scroll, max(len(lines)-height, 0))
	end := min(start+height, len(lines))
	return strings.Join(lines[start:end], "\n") + "\n"
}

func renderCertification(r *reportScreen, snap report.Snapshot) string {
	switch {
	case snap.Certified:
		return ui.CertifiedStyle.Render("✓ CERTIFIED " + snap.CertificationDate)
	case snap.Certifying || r.pending:
		return ui.SpinnerStyle.Render("Certifying...")
	case r.confirming:
		return ui.NoticeStyle.Render("Policy flagged this report for review. Certify anyway? (y/n)")
	case snap.Decision == report.DecisionBlock:
		return ui.ErrorTextStyle.Render("Certification blocked: coercion detected")
	case snap.Err != "":
		return ui.ErrorTextStyle.Render("Certification failed: " + snap.Err)
	}
	return ui.MutedStyle.Render("Not certified")
}

func riskStyle(band report.RiskBand) lipgloss.Style {
	switch band {
	case report.RiskLow:
		return ui.RiskLowStyle
	case report.RiskMedium:
		return ui.RiskMediumStyle
	}
	return ui.RiskHighStyle
}

func coercionText(detected bool) string {
	if detected {
		return ui.RiskHighStyle.Render("DETECTED")
	}
	return ui.RiskLowStyle.Render("none")
}
