package call

import (
	"fmt"
	"log"
	"time"
)

// State is the connection lifecycle of a Room.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateEnded:
		return "ended"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// TranscriptLine is one live transcript entry.
type TranscriptLine struct {
	Sender    string
	Text      string
	FromAgent bool
	At        time.Time
}

// Label returns the short sender label for display.
func (l TranscriptLine) Label() string {
	return SenderLabel(l.Sender, l.FromAgent)
}

// Media identifies a local track for toggles.
type Media int

const (
	Microphone Media = iota
	Camera
)

func (m Media) String() string {
	if m == Camera {
		return "camera"
	}
	return "microphone"
}

// toggle tracks a desired flag, the last value the transport confirmed,
// and the sequence number of the newest request.
type toggle struct {
	desired   bool
	confirmed bool
	seq       uint64
}

// Room is the call room controller. It is a plain state machine driven by
// one goroutine (the TUI update loop); it is not safe for concurrent use.
type Room struct {
	state     State
	localRole Role
	localName string
	roomName  string

	participants []Participant
	agent        string // identity of the agent, "" until one joins

	mic toggle
	cam toggle

	transcript []TranscriptLine
	steps      []ScriptStep
	elapsed    int // seconds

	err string
	now func() time.Time
}

// NewRoom creates a controller for token. The local role comes from the
// token's metadata claim; a token that cannot be parsed leaves it unknown.
func NewRoom(token string) *Room {
	r := &Room{
		mic:   toggle{desired: true, confirmed: true},
		cam:   toggle{desired: true, confirmed: true},
		steps: DefaultScriptSteps(),
		now:   time.Now,
	}
	if claims, err := ParseJoinToken(token); err == nil {
		r.localRole = claims.Role
		r.localName = claims.Name
		r.roomName = claims.Room
	} else {
		log.Printf("call: %v", err)
	}
	return r
}

// State returns the lifecycle state.
func (r *Room) State() State { return r.state }

// LocalRole returns the role the join token was issued for.
func (r *Room) LocalRole() Role { return r.localRole }

// LocalName returns the name in the join token.
func (r *Room) LocalName() string { return r.localName }

// RoomName returns the room name in the join token.
func (r *Room) RoomName() string { return r.roomName }

// Err returns the last recorded error message.
func (r *Room) Err() string { return r.err }

// ClearErr drops the recorded error.
func (r *Room) ClearErr() { r.err = "" }

// BeginConnect moves disconnected to connecting.
func (r *Room) BeginConnect() bool {
	if r.state != StateDisconnected {
		return false
	}
	r.state = StateConnecting
	return true
}

// Connected moves connecting to connected and resets the elapsed counter.
func (r *Room) Connected() bool {
	if r.state != StateConnecting {
		return false
	}
	r.state = StateConnected
	r.elapsed = 0
	return true
}

// End moves any state to ended. err is recorded when non-nil.
func (r *Room) End(err error) {
	if r.state == StateEnded {
		return
	}
	r.state = StateEnded
	if err != nil {
		r.err = err.Error()
	}
}

// Apply folds one transport event into the room. Events that arrive when
// the room is not connected are ignored, except Disconnected which always
// ends the call.
func (r *Room) Apply(ev Event) {
	if d, ok := ev.(Disconnected); ok {
		r.End(d.Err)
		return
	}
	if r.state != StateConnected {
		return
	}
	switch e := ev.(type) {
	case ParticipantJoined:
		r.join(e)
	case ParticipantLeft:
		r.leave(e.Identity)
	case DataReceived:
		if err := r.HandleData(e.Payload); err != nil {
			log.Printf("call: dropped data message from %q: %v", e.From, err)
		}
	}
}

func (r *Room) join(e ParticipantJoined) {
	for _, p := range r.participants {
		if p.Identity == e.Identity {
			return
		}
	}
	p := Participant{
		Identity: e.Identity,
		Name:     e.Name,
		Role:     ResolveRole(e.Identity, e.Name, e.Metadata),
	}
	r.participants = append(r.participants, p)
	if p.Role == RoleAgent && r.agent == "" {
		r.agent = p.Identity
	}
}

func (r *Room) leave(identity string) {
	for i, p := range r.participants {
		if p.Identity == identity {
			r.participants = append(r.participants[:i], r.participants[i+1:]...)
			break
		}
	}
	if r.agent != identity {
		return
	}
	r.agent = ""
	for _, p := range r.participants {
		if p.Role == RoleAgent {
			r.agent = p.Identity
			return
		}
	}
}

// Participants returns the remote participants in join order.
func (r *Room) Participants() []Participant {
	out := make([]Participant, len(r.participants))
	copy(out, r.participants)
	return out
}

// Agent returns the agent participant, if one is present.
func (r *Room) Agent() (Participant, bool) {
	for _, p := range r.participants {
		if p.Identity == r.agent {
			return p, true
		}
	}
	return Participant{}, false
}

// Humans returns the remote participants that are not the agent.
func (r *Room) Humans() []Participant {
	var out []Participant
	for _, p := range r.participants {
		if p.Identity != r.agent {
			out = append(out, p)
		}
	}
	return out
}

// HandleData applies one data-channel payload. Malformed payloads, unknown
// types, and unknown steps return an error and change nothing.
func (r *Room) HandleData(payload []byte) error {
	msg, err := DecodeDataMessage(payload)
	if err != nil {
		return err
	}
	switch msg.Type {
	case MessageTranscript:
		sender := msg.Sender
		if sender == "" {
			sender = "Unknown"
		}
		r.transcript = append(r.transcript, TranscriptLine{
			Sender:    sender,
			Text:      msg.Text,
			FromAgent: r.isAgentSender(sender),
			At:        r.now(),
		})
		return nil
	case MessageScriptUpdate:
		if msg.StepID == "" {
			return fmt.Errorf("script_update without stepId")
		}
		if !advance(r.steps, string(msg.StepID), r.now().Format("15:04")) {
			return fmt.Errorf("unknown step %q", msg.StepID)
		}
		return nil
	}
	return fmt.Errorf("unknown message type %q", msg.Type)
}

func (r *Room) isAgentSender(sender string) bool {
	if sender == AgentSenderName {
		return true
	}
	if agent, ok := r.Agent(); ok {
		return sender == agent.Name || sender == agent.Identity
	}
	return false
}

// Transcript returns the live transcript in arrival order.
func (r *Room) Transcript() []TranscriptLine {
	out := make([]TranscriptLine, len(r.transcript))
	copy(out, r.transcript)
	return out
}

// Steps returns the script steps in ordinal order.
func (r *Room) Steps() []ScriptStep {
	out := make([]ScriptStep, len(r.steps))
	copy(out, r.steps)
	return out
}

// MicEnabled returns the desired microphone state shown to the user.
func (r *Room) MicEnabled() bool { return r.mic.desired }

// CameraEnabled returns the desired camera state shown to the user.
func (r *Room) CameraEnabled() bool { return r.cam.desired }

func (r *Room) toggleFor(m Media) *toggle {
	if m == Camera {
		return &r.cam
	}
	return &r.mic
}

// Toggle flips the desired state of m and returns the value to request
// from the transport along with a sequence number for the acknowledgement.
func (r *Room) Toggle(m Media) (enabled bool, seq uint64) {
	t := r.toggleFor(m)
	t.desired = !t.desired
	t.seq++
	return t.desired, t.seq
}

// Ack records the transport's answer to a toggle request. Success confirms
// the requested value. Failure of the newest request reconciles the desired
// flag to the last confirmed value; either way the error is recorded.
func (r *Room) Ack(m Media, seq uint64, enabled bool, err error) {
	t := r.toggleFor(m)
	if err == nil {
		t.confirmed = enabled
		return
	}
	r.err = fmt.Sprintf("Could not turn %s %s: %v", m, onOff(enabled), err)
	if seq == t.seq {
		t.desired = t.confirmed
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// Tick advances the elapsed counter by one second while connected.
func (r *Room) Tick() {
	if r.state == StateConnected {
		r.elapsed++
	}
}

// Elapsed returns the time connected as HH:MM:SS.
func (r *Room) Elapsed() string {
	return FormatElapsed(r.elapsed)
}

// FormatElapsed renders seconds as HH:MM:SS.
func FormatElapsed(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
