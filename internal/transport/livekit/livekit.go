// Package livekit adapts a LiveKit room to call.Transport.
package livekit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/lexnova/lexnova/internal/call"
)

// Transport is a call.Transport backed by a LiveKit room.
type Transport struct {
	mu    sync.Mutex
	room  *lksdk.Room
	local bool

	emitMu sync.Mutex
	events chan call.Event
	closed bool
	once   sync.Once
}

// New creates an unconnected LiveKit transport.
func New() *Transport {
	return &Transport{events: make(chan call.Event, 256)}
}

// Connect joins the room at url with token. Participants already present
// are emitted as ParticipantJoined events.
func (t *Transport) Connect(ctx context.Context, url, token string) error {
	cb := lksdk.NewRoomCallback()
	cb.OnParticipantConnected = func(rp *lksdk.RemoteParticipant) {
		t.emit(joined(rp))
	}
	cb.OnParticipantDisconnected = func(rp *lksdk.RemoteParticipant) {
		t.emit(call.ParticipantLeft{Identity: rp.Identity()})
	}
	cb.OnDataPacket = func(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
		pkt, ok := data.(*lksdk.UserDataPacket)
		if !ok {
			return
		}
		t.emit(call.DataReceived{From: params.SenderIdentity, Payload: pkt.Payload})
	}
	cb.OnDisconnected = func() {
		t.finish()
	}

	type result struct {
		room *lksdk.Room
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		room, err := lksdk.ConnectToRoomWithToken(url, token, cb, lksdk.WithAutoSubscribe(false))
		ch <- result{room, err}
	}()

	var res result
	select {
	case res = <-ch:
	case <-ctx.Done():
		// The SDK has no cancellable connect; hang up once it returns.
		go func() {
			if r := <-ch; r.room != nil {
				r.room.Disconnect()
			}
		}()
		return ctx.Err()
	}
	if res.err != nil {
		return fmt.Errorf("connect to livekit: %w", res.err)
	}

	t.mu.Lock()
	t.room = res.room
	t.mu.Unlock()

	for _, rp := range res.room.GetRemoteParticipants() {
		t.emit(joined(rp))
	}
	return nil
}

func joined(rp *lksdk.RemoteParticipant) call.ParticipantJoined {
	return call.ParticipantJoined{
		Identity: rp.Identity(),
		Name:     rp.Name(),
		Metadata: rp.Metadata(),
	}
}

// Events returns the event channel.
func (t *Transport) Events() <-chan call.Event {
	return t.events
}

// SetMicrophone mutes or unmutes every published local audio track.
func (t *Transport) SetMicrophone(ctx context.Context, enabled bool) error {
	return t.setMuted(lksdk.TrackKindAudio, !enabled)
}

// SetCamera mutes or unmutes every published local video track.
func (t *Transport) SetCamera(ctx context.Context, enabled bool) error {
	return t.setMuted(lksdk.TrackKindVideo, !enabled)
}

func (t *Transport) setMuted(kind lksdk.TrackKind, muted bool) error {
	t.mu.Lock()
	room := t.room
	t.mu.Unlock()
	if room == nil {
		return errors.New("not connected")
	}
	return muteTracks(room.LocalParticipant.TrackPublications(), kind, muted)
}

// muteTracks mutes or unmutes the local publications of kind. It fails when
// there is none, so the caller never confirms a toggle with no track behind
// it.
func muteTracks(pubs []lksdk.TrackPublication, kind lksdk.TrackKind, muted bool) error {
	matched := 0
	for _, pub := range pubs {
		local, ok := pub.(*lksdk.LocalTrackPublication)
		if !ok || pub.Kind() != kind {
			continue
		}
		local.SetMuted(muted)
		matched++
	}
	if matched == 0 {
		return fmt.Errorf("no local %s track published", kind)
	}
	return nil
}

// Close leaves the room.
func (t *Transport) Close() error {
	t.mu.Lock()
	room := t.room
	t.local = true
	t.mu.Unlock()
	if room != nil {
		room.Disconnect()
	}
	t.finish()
	return nil
}

// finish emits the final Disconnected event exactly once.
func (t *Transport) finish() {
	t.once.Do(func() {
		t.mu.Lock()
		local := t.local
		t.mu.Unlock()

		var err error
		if !local {
			err = errors.New("livekit room disconnected")
		}

		t.emitMu.Lock()
		defer t.emitMu.Unlock()
		select {
		case t.events <- call.Disconnected{Err: err}:
		default:
		}
		t.closed = true
		close(t.events)
	})
}

// emit never blocks the SDK's callback goroutines; a full buffer means the
// room screen is gone.
func (t *Transport) emit(ev call.Event) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.events <- ev:
	default:
	}
}
