// Package relay provides the protocol types and a call.Transport for the
// development backend's WebSocket relay room. Frames are JSON text
// messages, one per WebSocket message.
package relay

// Command names sent from a client to the relay.
const (
	CmdTrack = "track" // mute or unmute a local track
	CmdData  = "data"  // broadcast a data payload
)

// Event names streamed from the relay to clients.
const (
	EventJoined = "joined"
	EventLeft   = "left"
	EventData   = "data"
	EventAck    = "ack"
)

// Track kinds.
const (
	KindAudio = "audio"
	KindVideo = "video"
)

// TokenParam is the query parameter carrying the join token.
const TokenParam = "access_token"

// Command is sent from a client to the relay.
type Command struct {
	Cmd     string `json:"cmd"`
	Seq     uint64 `json:"seq,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Muted   *bool  `json:"muted,omitempty"`
	Payload []byte `json:"payload,omitempty"`
}

// Event is streamed from the relay to a client. Acks echo the command's
// Seq.
type Event struct {
	Event    string `json:"event"`
	Seq      uint64 `json:"seq,omitempty"`
	OK       bool   `json:"ok,omitempty"`
	Error    string `json:"error,omitempty"`
	Identity string `json:"identity,omitempty"`
	Name     string `json:"name,omitempty"`
	Metadata string `json:"metadata,omitempty"`
	Payload  []byte `json:"payload,omitempty"`
}

// BoolPtr returns a pointer to a bool value. Convenience for building commands.
func BoolPtr(b bool) *bool { return &b }
