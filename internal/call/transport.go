// Package call implements the call room controller: connection lifecycle,
// participants, media toggles, and the agent's data-channel messages.
package call

import "context"

// Transport is a real-time media session. Implementations push events on
// the channel returned by Events and close it after a Disconnected event.
type Transport interface {
	Connect(ctx context.Context, url, token string) error
	Events() <-chan Event
	SetMicrophone(ctx context.Context, enabled bool) error
	SetCamera(ctx context.Context, enabled bool) error
	Close() error
}

// Event is something the transport observed.
type Event interface {
	isEvent()
}

// ParticipantJoined is emitted for every remote participant present at
// connect time and for each one that joins later.
type ParticipantJoined struct {
	Identity string
	Name     string
	Metadata string
}

// ParticipantLeft is emitted when a remote participant leaves.
type ParticipantLeft struct {
	Identity string
}

// DataReceived carries one data-channel payload.
type DataReceived struct {
	From    string
	Payload []byte
}

// Disconnected is the last event on the channel. Err is nil for a clean
// local hangup.
type Disconnected struct {
	Err error
}

func (ParticipantJoined) isEvent() {}
func (ParticipantLeft) isEvent()   {}
func (DataReceived) isEvent()      {}
func (Disconnected) isEvent()      {}
