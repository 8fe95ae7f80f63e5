package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lexnova/lexnova/internal/call"
	"github.com/lexnova/lexnova/internal/ui"
)

const toggleTimeout = 5 * time.Second

// roomScreen is one visit of the call room. gen ties asynchronous
// messages to the visit that issued them.
type roomScreen struct {
	gen       int
	url       string
	room      *call.Room
	transport call.Transport
	cancel    context.CancelFunc
}

// hangUp cancels a pending connect and closes the transport.
func (r *roomScreen) hangUp() {
	r.cancel()
	r.room.End(nil)
	if err := r.transport.Close(); err != nil {
		log.Printf("close transport: %v", err)
	}
}

func (m Model) enterRoom(token string) (Model, tea.Cmd) {
	url := m.deps.RTCURL
	if m.rtcURL != "" {
		url = m.rtcURL
	}
	m.rtcURL = ""
	m.roomGen++

	ctx, cancel := context.WithCancel(context.Background())
	r := &roomScreen{
		gen:       m.roomGen,
		url:       url,
		room:      call.NewRoom(token),
		transport: m.deps.NewTransport(),
		cancel:    cancel,
	}
	r.room.BeginConnect()
	m.room = r
	return m, connectRoomCmd(ctx, r.gen, r.transport, url, token)
}

// connectRoomCmd dials the transport.
func connectRoomCmd(ctx context.Context, gen int, t call.Transport, url, token string) tea.Cmd {
	return func() tea.Msg {
		if err := t.Connect(ctx, url, token); err != nil {
			return RoomConnectErrorMsg{Gen: gen, Err: err}
		}
		return RoomConnectedMsg{Gen: gen}
	}
}

// readRoomEventCmd reads the next transport event.
func readRoomEventCmd(gen int, t call.Transport) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-t.Events()
		if !ok {
			return RoomEventsClosedMsg{Gen: gen}
		}
		return RoomEventMsg{Gen: gen, Event: ev}
	}
}

func roomTickCmd(gen int) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return RoomTickMsg{Gen: gen}
	})
}

// toggleCmd asks the transport to switch a local track and reports back.
func toggleCmd(gen int, t call.Transport, media call.Media, seq uint64, enabled bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), toggleTimeout)
		defer cancel()
		var err error
		if media == call.Camera {
			err = t.SetCamera(ctx, enabled)
		} else {
			err = t.SetMicrophone(ctx, enabled)
		}
		return ToggleAckMsg{Gen: gen, Media: media, Seq: seq, Enabled: enabled, Err: err}
	}
}

// current reports whether gen belongs to the room on screen.
func (m Model) current(gen int) bool {
	return m.room != nil && m.room.gen == gen
}

func (m Model) handleRoomConnected(msg RoomConnectedMsg) (tea.Model, tea.Cmd) {
	if !m.current(msg.Gen) {
		return m, nil
	}
	if !m.room.room.Connected() {
		return m, nil
	}
	return m, tea.Batch(readRoomEventCmd(msg.Gen, m.room.transport), roomTickCmd(msg.Gen))
}

func (m Model) handleRoomConnectError(msg RoomConnectErrorMsg) (tea.Model, tea.Cmd) {
	if !m.current(msg.Gen) {
		return m, nil
	}
	log.Printf("room connect failed: %v", msg.Err)
	return m.endCall(fmt.Sprintf("Could not connect to the session: %v", msg.Err))
}

func (m Model) handleRoomEvent(msg RoomEventMsg) (tea.Model, tea.Cmd) {
	if !m.current(msg.Gen) {
		return m, nil
	}
	m.room.room.Apply(msg.Event)
	if d, ok := msg.Event.(call.Disconnected); ok {
		if d.Err != nil {
			return m.endCall(fmt.Sprintf("Connection lost: %v", d.Err))
		}
		return m.endCall("The session has ended.")
	}
	return m, readRoomEventCmd(msg.Gen, m.room.transport)
}

func (m Model) handleRoomEventsClosed(msg RoomEventsClosedMsg) (tea.Model, tea.Cmd) {
	if !m.current(msg.Gen) {
		return m, nil
	}
	return m.endCall("Connection lost")
}

func (m Model) handleRoomTick(msg RoomTickMsg) (tea.Model, tea.Cmd) {
	if !m.current(msg.Gen) {
		return m, nil
	}
	m.room.room.Tick()
	if m.room.room.State() != call.StateConnected {
		return m, nil
	}
	return m, roomTickCmd(msg.Gen)
}

func (m Model) handleToggleAck(msg ToggleAckMsg) (tea.Model, tea.Cmd) {
	if !m.current(msg.Gen) {
		return m, nil
	}
	m.room.room.Ack(msg.Media, msg.Seq, msg.Enabled, msg.Err)
	if msg.Err != nil {
		return m, clearTransientErrorCmd()
	}
	return m, nil
}

// endCall leaves the room for the safe screen and shows why.
func (m Model) endCall(reason string) (Model, tea.Cmd) {
	m, cmd := m.navigate(m.safePath())
	m.errorMessage = reason
	m.errorTransient = true
	return m, tea.Batch(cmd, clearTransientErrorCmd())
}

func (m Model) updateRoom(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	r := m.room
	switch msg.String() {
	case KeyEnd, KeyEsc:
		return m.navigate(m.safePath())

	case KeyQuit:
		return m.quit()

	case KeyMic:
		enabled, seq := r.room.Toggle(call.Microphone)
		return m, toggleCmd(r.gen, r.transport, call.Microphone, seq, enabled)

	case KeyCamera:
		enabled, seq := r.room.Toggle(call.Camera)
		return m, toggleCmd(r.gen, r.transport, call.Camera, seq, enabled)
	}
	return m, nil
}

func (m Model) viewRoom() string {
	room := m.room.room
	width := max(m.width, 40)

	var b strings.Builder
	b.WriteString(m.renderRoomHeader(width))
	b.WriteString("\n")
	b.WriteString(ui.DividerStyle.Render(strings.Repeat("─", width)))
	b.WriteString("\n")

	if room.State() == call.StateConnecting {
		b.WriteString(ui.SpinnerStyle.Render("Connecting to secure session..."))
		b.WriteString("\n")
	}

	left := renderParticipants(room, width/2-2)
	right := renderScript(room.Steps())
	cols := strings.Split(left, "\n")
	rows := strings.Split(right, "\n")
	for i := 0; i < max(len(cols), len(rows)); i++ {
		var l, r string
		if i < len(cols) {
			l = cols[i]
		}
		if i < len(rows) {
			r = rows[i]
		}
		b.WriteString(padRight(l, width/2) + r + "\n")
	}

	b.WriteString(ui.DividerStyle.Render(strings.Repeat("─", width)))
	b.WriteString("\n")
	b.WriteString(m.renderTranscript(width, max(m.height-18, 4)))

	if room.Err() != "" {
		b.WriteString(ui.ErrorTextStyle.Render(room.Err()))
		b.WriteString("\n")
	}
	b.WriteString(m.renderRoomFooter())
	return b.String()
}

func (m Model) renderRoomHeader(width int) string {
	room := m.room.room
	name := room.RoomName()
	if name == "" {
		name = "room"
	}
	dot := ui.IdleDotStyle.Render("○")
	if room.State() == call.StateConnected {
		dot = ui.LiveDotStyle.Render("●")
	}
	left := dot + " " + ui.TitleStyle.Render("SECURE SESSION: "+name)
	right := ui.TimestampStyle.Render(room.Elapsed())
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func renderParticipants(room *call.Room, width int) string {
	var b strings.Builder
	b.WriteString(ui.PanelTitleStyle.Render("AI AGENT") + "\n")
	if agent, ok := room.Agent(); ok {
		b.WriteString(ui.BotLabelStyle.Render("● "+truncateToWidth(agent.DisplayName(), width-2)) + "\n")
	} else {
		b.WriteString(ui.DimStyle.Render("Waiting for AI Agent...") + "\n")
	}
	b.WriteString("\n")
	b.WriteString(ui.PanelTitleStyle.Render("PARTICIPANTS") + "\n")

	local := "You"
	if role := room.LocalRole(); role != call.RoleUnknown {
		local = fmt.Sprintf("You (%s)", role)
	}
	b.WriteString("  " + local + "  " + mediaStatus(room) + "\n")
	for _, p := range room.Humans() {
		line := truncateToWidth(p.DisplayName(), width-12)
		if p.Role != call.RoleUnknown {
			line += ui.DimStyle.Render(" " + string(p.Role))
		}
		b.WriteString("  " + line + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func mediaStatus(room *call.Room) string {
	mic := ui.StepCompletedStyle.Render("mic on")
	if !room.MicEnabled() {
		mic = ui.ErrorTextStyle.Render("mic off")
	}
	cam := ui.StepCompletedStyle.Render("cam on")
	if !room.CameraEnabled() {
		cam = ui.ErrorTextStyle.Render("cam off")
	}
	return mic + " " + cam
}

func renderScript(steps []call.ScriptStep) string {
	var b strings.Builder
	b.WriteString(ui.PanelTitleStyle.Render("SCRIPT PROGRESS") + "\n")
	for _, s := range steps {
		switch s.Status {
		case call.StepCurrent:
			b.WriteString(ui.StepCurrentStyle.Render("▸ "+s.Label) + " " + ui.TimestampStyle.Render(s.Timestamp))
		case call.StepCompleted:
			b.WriteString(ui.StepCompletedStyle.Render("✓ " + s.Label))
		default:
			b.WriteString(ui.StepPendingStyle.Render("  " + s.Label))
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// renderTranscript shows the newest lines that fit in height.
func (m Model) renderTranscript(width, height int) string {
	lines := m.room.room.Transcript()
	if len(lines) == 0 {
		return ui.DimStyle.Render("Waiting for audio stream...") + "\n"
	}

	var out []string
	for _, l := range lines {
		label := l.Label()
		style := ui.SpeakerLabelStyle
		if l.FromAgent {
			style = ui.BotLabelStyle
		}
		prefix := ui.TimestampStyle.Render(l.At.Format("15:04:05")) + " " + style.Render(label+":") + " "
		wrapped := wrapText(l.Text, max(width-lipgloss.Width(prefix), 10))
		out = append(out, prefix+wrapped[0])
		indent := strings.Repeat(" ", lipgloss.Width(prefix))
		for _, w := range wrapped[1:] {
			out = append(out, indent+w)
		}
	}
	if len(out) > height {
		out = out[len(out)-height:]
	}
	return strings.Join(out, "\n") + "\n"
}

func (m Model) renderRoomFooter() string {
	mic := "mute"
	if !m.room.room.MicEnabled() {
		mic = "unmute"
	}
	cam := "camera off"
	if !m.room.room.CameraEnabled() {
		cam = "camera on"
	}
	return renderFooter("m", mic, "v", cam, "e", "end session", "q", "quit")
}
