// Package stunturn implements NAT-traversal STUN (RFC 5389) and TURN
// (RFC 5766) clients. The STUN client builds and parses messages with
// github.com/pion/stun/v2, which already implements RFC 5389's attribute
// framing (including the XOR-MAPPED-ADDRESS cookie math), so this package
// only adds the retry/timeout policy and its own error taxonomy.
package stunturn

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/pion/stun/v2"
)

// Default timeout and retry count for a single STUN Bind request.
const (
	DefaultSTUNTimeout = 5 * time.Second
	DefaultSTUNRetries = 3
)

// ErrSTUNTimeout is returned when every retry attempt times out.
var ErrSTUNTimeout = errors.New("stunturn: stun request timed out")

// MappedAddress is the resolved public endpoint a STUN server observed.
type MappedAddress struct {
	IP   net.IP
	Port int
}

// STUNError surfaces a STUN ERROR-CODE response.
type STUNError struct {
	Code   int
	Reason string
}

func (e *STUNError) Error() string {
	return fmt.Sprintf("stunturn: stun error %d: %s", e.Code, e.Reason)
}

// STUNClient issues Binding Requests over a UDP socket.
type STUNClient struct {
	conn    net.PacketConn
	timeout time.Duration
	retries int
	software string
}

// NewSTUNClient wraps an already-bound UDP PacketConn.
func NewSTUNClient(conn net.PacketConn) *STUNClient {
	return &STUNClient{
		conn:    conn,
		timeout: DefaultSTUNTimeout,
		retries: DefaultSTUNRetries,
		software: "nzcore",
	}
}

// Bind sends a Binding Request to serverAddr and returns the server's view
// of this socket's public address, retrying up to c.retries times on
// timeout.
func (c *STUNClient) Bind(serverAddr net.Addr) (*MappedAddress, error) {
	msg, err := stun.Build(stun.TransactionID, stun.BindingRequest, stun.NewSoftware(c.software), stun.Fingerprint)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		addr, err := c.roundTrip(msg, serverAddr)
		if err == nil {
			return addr, nil
		}
		lastErr = err
		if !errors.Is(err, ErrSTUNTimeout) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *STUNClient) roundTrip(req *stun.Message, serverAddr net.Addr) (*MappedAddress, error) {
	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	if _, err := c.conn.WriteTo(req.Raw, serverAddr); err != nil {
		return nil, err
	}

	buf := make([]byte, 1500)
	n, _, err := c.conn.ReadFrom(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, ErrSTUNTimeout
		}
		return nil, err
	}

	resp := &stun.Message{Raw: append([]byte(nil), buf[:n]...)}
	if err := resp.Decode(); err != nil {
		return nil, err
	}

	var stunErr stun.ErrorCodeAttribute
	if err := stunErr.GetFrom(resp); err == nil {
		return nil, &STUNError{Code: int(stunErr.Code), Reason: string(stunErr.Reason)}
	}

	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(resp); err == nil {
		return &MappedAddress{IP: xorAddr.IP, Port: xorAddr.Port}, nil
	}

	var mappedAddr stun.MappedAddress
	if err := mappedAddr.GetFrom(resp); err == nil {
		return &MappedAddress{IP: mappedAddr.IP, Port: mappedAddr.Port}, nil
	}

	return nil, errors.New("stunturn: response missing both XOR-MAPPED-ADDRESS and MAPPED-ADDRESS")
}
