package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lexnova/lexnova/internal/call"
)

// ErrClosed is returned by requests made after the connection is gone.
var ErrClosed = errors.New("relay connection closed")

// Transport connects to a relay room over WebSocket.
type Transport struct {
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	seq     uint64
	pending map[uint64]chan Event
	closed  bool
	local   bool // Close was called

	writeMu sync.Mutex
	events  chan call.Event
	done    chan struct{}
	once    sync.Once
}

// New creates an unconnected relay transport.
func New() *Transport {
	return &Transport{
		dialer:  websocket.DefaultDialer,
		pending: make(map[uint64]chan Event),
		events:  make(chan call.Event, 64),
		done:    make(chan struct{}),
	}
}

// Connect dials the relay at rawURL and starts reading events.
func (t *Transport) Connect(ctx context.Context, rawURL, token string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set(TokenParam, token)
	u.RawQuery = q.Encode()

	conn, _, err := t.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect to relay: %w", err)
	}

	t.mu.Lock()
	if t.local {
		// Closed while dialing: drop the attempt.
		t.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	t.conn = conn
	t.mu.Unlock()

	go t.readLoop(conn)
	return nil
}

// Events returns the event channel. It is closed after Disconnected.
func (t *Transport) Events() <-chan call.Event {
	return t.events
}

// SetMicrophone mutes or unmutes the local audio track and waits for the
// relay's acknowledgement.
func (t *Transport) SetMicrophone(ctx context.Context, enabled bool) error {
	return t.setTrack(ctx, KindAudio, enabled)
}

// SetCamera mutes or unmutes the local video track.
func (t *Transport) SetCamera(ctx context.Context, enabled bool) error {
	return t.setTrack(ctx, KindVideo, enabled)
}

// Publish broadcasts a data payload to the room.
func (t *Transport) Publish(ctx context.Context, payload []byte) error {
	_, err := t.request(ctx, Command{Cmd: CmdData, Payload: payload})
	return err
}

func (t *Transport) setTrack(ctx context.Context, kind string, enabled bool) error {
	ack, err := t.request(ctx, Command{Cmd: CmdTrack, Kind: kind, Muted: BoolPtr(!enabled)})
	if err != nil {
		return err
	}
	if !ack.OK {
		return fmt.Errorf("relay rejected %s change: %s", kind, ack.Error)
	}
	return nil
}

// request sends cmd and blocks until the matching ack or ctx is done.
func (t *Transport) request(ctx context.Context, cmd Command) (Event, error) {
	t.mu.Lock()
	if t.conn == nil || t.closed {
		t.mu.Unlock()
		return Event{}, ErrClosed
	}
	t.seq++
	cmd.Seq = t.seq
	ch := make(chan Event, 1)
	t.pending[cmd.Seq] = ch
	conn := t.conn
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, cmd.Seq)
		t.mu.Unlock()
	}()

	t.writeMu.Lock()
	err := conn.WriteJSON(cmd)
	t.writeMu.Unlock()
	if err != nil {
		return Event{}, fmt.Errorf("write command: %w", err)
	}

	select {
	case ack, ok := <-ch:
		if !ok {
			return Event{}, ErrClosed
		}
		return ack, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	var readErr error
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			readErr = err
			break
		}
		switch ev.Event {
		case EventAck:
			t.mu.Lock()
			ch := t.pending[ev.Seq]
			t.mu.Unlock()
			if ch != nil {
				select {
				case ch <- ev:
				default:
					log.Printf("relay: dropping duplicate ack %d", ev.Seq)
				}
			}
		case EventJoined:
			t.emit(call.ParticipantJoined{Identity: ev.Identity, Name: ev.Name, Metadata: ev.Metadata})
		case EventLeft:
			t.emit(call.ParticipantLeft{Identity: ev.Identity})
		case EventData:
			t.emit(call.DataReceived{From: ev.Identity, Payload: ev.Payload})
		default:
			log.Printf("relay: ignoring event %q", ev.Event)
		}
	}

	t.mu.Lock()
	local := t.local
	t.closed = true
	for seq, ch := range t.pending {
		close(ch)
		delete(t.pending, seq)
	}
	t.mu.Unlock()

	var err error
	if !local && !websocket.IsCloseError(readErr, websocket.CloseNormalClosure) {
		err = fmt.Errorf("relay disconnected: %w", readErr)
	}
	t.emit(call.Disconnected{Err: err})
	close(t.events)
}

// emit delivers ev unless the transport was closed locally and nobody is
// draining the channel any more.
func (t *Transport) emit(ev call.Event) {
	select {
	case t.events <- ev:
	case <-t.done:
		select {
		case t.events <- ev:
		default:
		}
	}
}

// Close hangs up. The event channel receives Disconnected{Err: nil}.
func (t *Transport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.local = true
	t.mu.Unlock()
	t.once.Do(func() { close(t.done) })
	if conn == nil {
		return nil
	}

	t.writeMu.Lock()
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()
	return conn.Close()
}
