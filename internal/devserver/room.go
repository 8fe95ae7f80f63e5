package devserver

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lexnova/lexnova/internal/api"
	"github.com/lexnova/lexnova/internal/call"
	"github.com/lexnova/lexnova/internal/transport/relay"
)

// The scripted agent's identity in every room.
const (
	agentIdentity = "agent-officiant"
	agentMetadata = `{"role":"agent"}`
)

// agentLines is what the agent says as it reaches each step.
var agentLines = []string{
	"Welcome. This session is recorded for legal verification. Please confirm you can hear me.",
	"Groom, please state your full name and hold your identity document to the camera.",
	"Bride, please state your full name and hold your identity document to the camera.",
	"Groom, do you consent to this marriage of your own free will?",
	"Bride, do you consent to this marriage of your own free will?",
	"Thank you. Both consents are recorded. This verification is complete.",
}

type member struct {
	identity string
	name     string
	metadata string

	writeMu sync.Mutex
	conn    *websocket.Conn
}

func (m *member) send(ev relay.Event) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := m.conn.WriteJSON(ev); err != nil {
		log.Printf("relay: write to %s: %v", m.identity, err)
	}
}

// Room is one relay room. The agent starts when the first participant
// joins and files the report when it reaches the last step.
type Room struct {
	name      string
	sessionID string
	stepDelay time.Duration
	onDone    func(sessionID string, transcript []api.TranscriptEntry, d time.Duration)

	mu         sync.Mutex
	members    map[string]*member
	transcript []api.TranscriptEntry
	started    time.Time
	agentOnce  sync.Once
	ctx        context.Context
	cancel     context.CancelFunc
}

func newRoom(name, sessionID string, stepDelay time.Duration, onDone func(string, []api.TranscriptEntry, time.Duration)) *Room {
	ctx, cancel := context.WithCancel(context.Background())
	return &Room{
		name:      name,
		sessionID: sessionID,
		stepDelay: stepDelay,
		onDone:    onDone,
		members:   make(map[string]*member),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Serve runs one participant's connection until it closes.
func (r *Room) Serve(conn *websocket.Conn, identity, name, metadata string) {
	m := &member{identity: identity, name: name, metadata: metadata, conn: conn}

	r.mu.Lock()
	if old, ok := r.members[identity]; ok {
		old.conn.Close()
	}
	existing := make([]*member, 0, len(r.members))
	for _, other := range r.members {
		existing = append(existing, other)
	}
	r.members[identity] = m
	r.mu.Unlock()

	m.send(relay.Event{Event: relay.EventJoined, Identity: agentIdentity, Name: call.AgentSenderName, Metadata: agentMetadata})
	for _, other := range existing {
		m.send(relay.Event{Event: relay.EventJoined, Identity: other.identity, Name: other.name, Metadata: other.metadata})
		other.send(relay.Event{Event: relay.EventJoined, Identity: identity, Name: name, Metadata: metadata})
	}
	r.agentOnce.Do(func() { go r.runAgent() })

	r.readLoop(m)

	r.mu.Lock()
	// A reconnect under the same identity replaced m; it did not leave.
	left := r.members[identity] == m
	if left {
		delete(r.members, identity)
	}
	others := r.snapshot()
	r.mu.Unlock()
	if left {
		for _, other := range others {
			other.send(relay.Event{Event: relay.EventLeft, Identity: identity})
		}
	}
	conn.Close()
}

func (r *Room) readLoop(m *member) {
	for {
		var cmd relay.Command
		if err := m.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("relay: %s: %v", m.identity, err)
			}
			return
		}
		switch cmd.Cmd {
		case relay.CmdTrack:
			if cmd.Kind != relay.KindAudio && cmd.Kind != relay.KindVideo {
				m.send(relay.Event{Event: relay.EventAck, Seq: cmd.Seq, Error: "unknown track kind " + strconv.Quote(cmd.Kind)})
				continue
			}
			m.send(relay.Event{Event: relay.EventAck, Seq: cmd.Seq, OK: true})
		case relay.CmdData:
			r.broadcast(m.identity, cmd.Payload)
			m.send(relay.Event{Event: relay.EventAck, Seq: cmd.Seq, OK: true})
		default:
			m.send(relay.Event{Event: relay.EventAck, Seq: cmd.Seq, Error: "unknown command " + strconv.Quote(cmd.Cmd)})
		}
	}
}

// snapshot returns the current members. Caller holds r.mu.
func (r *Room) snapshot() []*member {
	out := make([]*member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	return out
}

// broadcast sends payload from one identity to everyone else.
func (r *Room) broadcast(from string, payload []byte) {
	r.mu.Lock()
	targets := r.snapshot()
	r.mu.Unlock()
	for _, m := range targets {
		if m.identity != from {
			m.send(relay.Event{Event: relay.EventData, Identity: from, Payload: payload})
		}
	}
}

// runAgent walks the ceremony script, one step per stepDelay.
func (r *Room) runAgent() {
	r.mu.Lock()
	r.started = time.Now()
	r.mu.Unlock()

	for i, line := range agentLines {
		if i > 0 {
			select {
			case <-time.After(r.stepDelay):
			case <-r.ctx.Done():
				return
			}
		}
		r.broadcast(agentIdentity, call.EncodeScriptUpdate(strconv.Itoa(i+1)))
		r.say(line)
	}

	r.mu.Lock()
	transcript := append([]api.TranscriptEntry(nil), r.transcript...)
	elapsed := time.Since(r.started)
	r.mu.Unlock()
	if r.onDone != nil {
		r.onDone(r.sessionID, transcript, elapsed)
	}
}

func (r *Room) say(text string) {
	r.mu.Lock()
	entry := api.TranscriptEntry{
		ID:        strconv.Itoa(len(r.transcript) + 1),
		Timestamp: formatDuration(time.Since(r.started)),
		Speaker:   call.AgentSenderName,
		Role:      string(call.RoleAgent),
		Text:      text,
	}
	r.transcript = append(r.transcript, entry)
	r.mu.Unlock()
	r.broadcast(agentIdentity, call.EncodeTranscript(call.AgentSenderName, text))
}

// Close stops the agent and disconnects everyone.
func (r *Room) Close() {
	r.cancel()
	r.mu.Lock()
	members := r.snapshot()
	r.mu.Unlock()
	for _, m := range members {
		m.writeMu.Lock()
		m.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room closed"))
		m.writeMu.Unlock()
		m.conn.Close()
	}
}

// Hub owns the rooms of started sessions.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*Room)}
}

// Open returns the room called name, creating it if needed.
func (h *Hub) Open(name, sessionID string, stepDelay time.Duration, onDone func(string, []api.TranscriptEntry, time.Duration)) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[name]; ok {
		return r
	}
	r := newRoom(name, sessionID, stepDelay, onDone)
	h.rooms[name] = r
	return r
}

// Room returns the room called name.
func (h *Hub) Room(name string) (*Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[name]
	return r, ok
}

// Close closes every room.
func (h *Hub) Close() {
	h.mu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.rooms = make(map[string]*Room)
	h.mu.Unlock()
	for _, r := range rooms {
		r.Close()
	}
}
