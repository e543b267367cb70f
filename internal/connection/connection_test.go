package connection

import (
	"net"
	"testing"
	"time"

	"github.com/nzcore-project/nzcore/internal/framing"
	"github.com/nzcore-project/nzcore/internal/platform/ratelimiter"
)

// pipeStream adapts one end of a net.Pipe to the Stream interface.
type pipeStream struct {
	conn net.Conn
}

func (s pipeStream) Write(p []byte) (int, error) { return s.conn.Write(p) }
func (s pipeStream) Close() error                { return s.conn.Close() }

func newConnPair(t *testing.T) (*Connection, net.Conn) {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	conn := New("conn-1", "peer-1", pipeStream{conn: clientSide}, 0)
	t.Cleanup(func() { conn.Close(ReasonLocalClose) })
	return conn, serverSide
}

func TestSendWritesEncodedFrame(t *testing.T) {
	conn, remote := newConnPair(t)
	defer remote.Close()

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, err := remote.Read(buf)
		if err != nil {
			done <- nil
			return
		}
		done <- buf[:n]
	}()

	if err := conn.Send(framing.Frame{Type: framing.TypeData, Payload: []byte("hi")}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	select {
	case got := <-done:
		want := framing.Encode(framing.Frame{Type: framing.TypeData, Payload: []byte("hi")})
		if string(got) != string(want) {
			t.Fatalf("got %x want %x", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for write")
	}
}

func TestFeedAutoRespondsToPing(t *testing.T) {
	conn, remote := newConnPair(t)
	defer remote.Close()

	pong := make(chan framing.Frame, 1)
	go func() {
		buf := make([]byte, 64)
		n, err := remote.Read(buf)
		if err != nil {
			return
		}
		parser := framing.NewFrameParser(0)
		frames, err := parser.Feed(buf[:n])
		if err != nil || len(frames) == 0 {
			return
		}
		pong <- frames[0]
	}()

	pingFrame := framing.Encode(framing.Frame{Type: framing.TypePing, Payload: []byte("rtt")})
	if err := conn.Feed(pingFrame); err != nil {
		t.Fatalf("feed failed: %v", err)
	}

	select {
	case f := <-pong:
		if f.Type != framing.TypePong || string(f.Payload) != "rtt" {
			t.Fatalf("unexpected pong frame: %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pong")
	}
}

func TestFeedDeliversApplicationFrames(t *testing.T) {
	conn, remote := newConnPair(t)
	defer remote.Close()

	delivered := make(chan framing.Frame, 1)
	conn.OnFrame(func(id string, f framing.Frame) {
		delivered <- f
	})

	dataFrame := framing.Encode(framing.Frame{Type: framing.TypeData, Payload: []byte("payload")})
	if err := conn.Feed(dataFrame); err != nil {
		t.Fatalf("feed failed: %v", err)
	}

	select {
	case f := <-delivered:
		if string(f.Payload) != "payload" {
			t.Fatalf("unexpected payload: %q", f.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestFeedThrottlesDataFramesOverLimit(t *testing.T) {
	conn, remote := newConnPair(t)
	defer remote.Close()

	var delivered int
	conn.OnFrame(func(id string, f framing.Frame) {
		delivered++
	})
	conn.SetFrameLimiter(ratelimiter.New(1, 1, time.Minute))

	dataFrame := framing.Encode(framing.Frame{Type: framing.TypeData, Payload: []byte("payload")})
	if err := conn.Feed(dataFrame); err != nil {
		t.Fatalf("first feed failed: %v", err)
	}
	if err := conn.Feed(dataFrame); err != nil {
		t.Fatalf("second feed failed: %v", err)
	}

	if delivered != 1 {
		t.Fatalf("expected exactly 1 delivered frame under the limiter's burst, got %d", delivered)
	}
}

func TestFeedClosesOnDisconnectFrame(t *testing.T) {
	conn, remote := newConnPair(t)
	defer remote.Close()

	disconnected := make(chan DisconnectReason, 1)
	conn.OnDisconnect(func(id string, reason DisconnectReason) {
		disconnected <- reason
	})

	discFrame := framing.Encode(framing.Frame{Type: framing.TypeDisconnect})
	if err := conn.Feed(discFrame); err != nil {
		t.Fatalf("feed failed: %v", err)
	}

	select {
	case reason := <-disconnected:
		if reason != ReasonRemoteDisconnect {
			t.Fatalf("expected ReasonRemoteDisconnect, got %v", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnect callback")
	}
	if conn.State() != StateDisconnected {
		t.Fatalf("expected StateDisconnected, got %v", conn.State())
	}
}
