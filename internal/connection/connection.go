// Package connection implements the stateful Connection wrapper and Pool,
// built on top of the framing package's FrameParser.
package connection

import (
	"errors"
	"sync"
	"time"

	"github.com/nzcore-project/nzcore/internal/framing"
	"github.com/nzcore-project/nzcore/internal/platform/ratelimiter"
)

// State is a Connection's lifecycle state. New starts a Connection in
// Connected, and Close moves it through Disconnecting to Disconnected.
// StateConnecting and StateError are declared, but nothing in this package
// sets them.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Stream is the reliable byte-stream a Connection wraps: any type with
// these Write and Close methods, such as a net.Conn TCP socket, satisfies it.
// This package ships no WebSocket adapter.
type Stream interface {
	Write(p []byte) (n int, err error)
	Close() error
}

// DisconnectReason names why a Connection left the Connected state.
type DisconnectReason string

const (
	ReasonFrameError        DisconnectReason = "frame_error"
	ReasonRemoteDisconnect  DisconnectReason = "remote_disconnect"
	ReasonPoolRemoved       DisconnectReason = "pool_removed"
	ReasonPoolFull          DisconnectReason = "pool_full"
	ReasonLocalClose        DisconnectReason = "local_close"
)

var ErrNotConnected = errors.New("connection: not connected")

// Connection is a stateful wrapper around a Stream: it owns a FrameParser,
// keep-alive bookkeeping, and byte counters. Concurrent Send calls are
// serialized by an internal mutex.
type Connection struct {
	ID     string
	PeerID string

	mu           sync.Mutex
	stream       Stream
	parser       *framing.FrameParser
	state        State
	lastActivity time.Time

	bytesIn  uint64
	bytesOut uint64

	onDisconnect func(id string, reason DisconnectReason)
	onFrame      func(id string, f framing.Frame)

	frameLimiter *ratelimiter.MapLimiter
}

// New constructs a Connected Connection wrapping stream.
func New(id, peerID string, stream Stream, maxFrameSize int) *Connection {
	return &Connection{
		ID:           id,
		PeerID:       peerID,
		stream:       stream,
		parser:       framing.NewFrameParser(maxFrameSize),
		state:        StateConnected,
		lastActivity: time.Now(),
	}
}

// OnDisconnect registers the callback invoked when the connection leaves
// the Connected state, so a ConnectionPool can remove it from its indices.
func (c *Connection) OnDisconnect(fn func(id string, reason DisconnectReason)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

// OnFrame registers the application handler for frames that are not
// auto-handled PING/DISCONNECT control frames.
func (c *Connection) OnFrame(fn func(id string, f framing.Frame)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFrame = fn
}

// SetFrameLimiter installs a per-peer token-bucket limiter gating inbound
// frames in Feed; PING, PONG and DISCONNECT frames are never throttled. A
// nil limiter disables throttling.
func (c *Connection) SetFrameLimiter(l *ratelimiter.MapLimiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frameLimiter = l
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastActivity returns the timestamp of the most recent send or receive.
func (c *Connection) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Send serializes concurrent writers and forwards the encoded frame to the
// underlying stream, returning after the stream's Write call returns.
func (c *Connection) Send(f framing.Frame) error {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	wire := framing.Encode(f)
	_, err := c.stream.Write(wire)
	if err == nil {
		c.bytesOut += uint64(len(wire))
		c.lastActivity = time.Now()
	}
	c.mu.Unlock()

	if err != nil {
		c.Close(ReasonLocalClose)
		return err
	}
	return nil
}

// Feed delivers newly-read bytes into the connection's FrameParser. Ping
// frames are answered with an immediate Pong carrying the same payload;
// Disconnect frames close the connection with ReasonRemoteDisconnect; every
// other frame type is handed to the OnFrame handler, except that frames
// other than PONG are dropped when the installed frame limiter refuses them.
// A structural framing error closes the connection with ReasonFrameError.
func (c *Connection) Feed(data []byte) error {
	c.mu.Lock()
	frames, err := c.parser.Feed(data)
	c.bytesIn += uint64(len(data))
	c.lastActivity = time.Now()
	c.mu.Unlock()

	if err != nil {
		c.Close(ReasonFrameError)
		return err
	}
	for _, f := range frames {
		switch f.Type {
		case framing.TypePing:
			_ = c.Send(framing.Frame{Type: framing.TypePong, Payload: f.Payload})
		case framing.TypeDisconnect:
			c.Close(ReasonRemoteDisconnect)
			return nil
		default:
			c.mu.Lock()
			limiter := c.frameLimiter
			handler := c.onFrame
			c.mu.Unlock()
			if f.Type != framing.TypePong && !limiter.Allow(c.PeerID, time.Now()) {
				continue
			}
			if handler != nil {
				handler(c.ID, f)
			}
		}
	}
	return nil
}

// Close transitions the connection through Disconnecting to Disconnected,
// closes the underlying stream, and fires the disconnect callback exactly
// once.
func (c *Connection) Close(reason DisconnectReason) {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnecting
	stream := c.stream
	cb := c.onDisconnect
	c.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}

	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()

	if cb != nil {
		cb(c.ID, reason)
	}
}

// ByteCounters returns cumulative bytes read and written on this connection.
func (c *Connection) ByteCounters() (in, out uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytesIn, c.bytesOut
}
