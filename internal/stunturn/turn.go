package stunturn

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/pion/turn/v4"
)

// AllocationState is the TURN client's allocation lifecycle:
// None -> Pending -> (Active | Failed), Active -> Expired when a REFRESH
// fails, and Close returns any state to None.
type AllocationState int

const (
	AllocationNone AllocationState = iota
	AllocationPending
	AllocationActive
	AllocationExpired
	AllocationFailed
)

func (s AllocationState) String() string {
	switch s {
	case AllocationNone:
		return "none"
	case AllocationPending:
		return "pending"
	case AllocationActive:
		return "active"
	case AllocationExpired:
		return "expired"
	case AllocationFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RefreshFraction is the fraction of the allocation lifetime passed to
// Allocate at which the client schedules its REFRESH.
const RefreshFraction = 0.8

// TURN error codes from RFC 5766. Of these, Allocate returns only
// ErrTurnTimeout (see classifyAllocateError); other allocation failures are
// returned as pion/turn's own errors, not mapped to these values.
var (
	ErrForbidden              = errors.New("stunturn: turn 403 forbidden")
	ErrAllocationMismatch     = errors.New("stunturn: turn 437 allocation mismatch")
	ErrWrongCredentials       = errors.New("stunturn: turn 438 wrong credentials")
	ErrAllocationQuotaReached = errors.New("stunturn: turn 486 allocation quota reached")
	ErrInsufficientCapacity   = errors.New("stunturn: turn 508 insufficient capacity")
	ErrTurnTimeout            = errors.New("stunturn: turn request timed out")
)

// TURNConfig carries the long-term-credential material used for the
// ALLOCATE exchange.
type TURNConfig struct {
	ServerAddr string
	Username   string
	Password   string
	Realm      string
	Software   string
}

// TURNClient wraps github.com/pion/turn/v4's client, adding allocation-state
// tracking and 80%-lifetime refresh scheduling. pion/turn's client already
// implements the ALLOCATE / REFRESH / CreatePermission / channel-bind wire
// exchange, so this wrapper is a thin state machine on top of its public
// Client/Allocate surface.
type TURNClient struct {
	cfg  TURNConfig
	conn net.PacketConn

	mu        sync.Mutex
	state     AllocationState
	client    *turn.Client
	relayConn net.PacketConn
	lifetime  time.Duration
	cancelRefresh context.CancelFunc

	permittedMu sync.Mutex
	permitted   map[string]bool
}

// NewTURNClient builds a client bound to an already-open UDP socket used to
// reach the TURN server.
func NewTURNClient(conn net.PacketConn, cfg TURNConfig) *TURNClient {
	return &TURNClient{
		cfg:       cfg,
		conn:      conn,
		state:     AllocationNone,
		permitted: make(map[string]bool),
	}
}

// State reports the current allocation state.
func (t *TURNClient) State() AllocationState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Allocate requests a relay address from the TURN server and, once
// granted, schedules a background REFRESH at RefreshFraction of lifetime.
// lifetime is the caller's value; the lifetime the server grants is not
// read.
func (t *TURNClient) Allocate(ctx context.Context, lifetime time.Duration) (net.Addr, error) {
	t.mu.Lock()
	t.state = AllocationPending
	t.mu.Unlock()

	software := t.cfg.Software
	if software == "" {
		software = "nzcore"
	}

	client, err := turn.NewClient(&turn.ClientConfig{
		STUNServerAddr: t.cfg.ServerAddr,
		TURNServerAddr: t.cfg.ServerAddr,
		Conn:           t.conn,
		Username:       t.cfg.Username,
		Password:       t.cfg.Password,
		Realm:          t.cfg.Realm,
		Software:       software,
	})
	if err != nil {
		t.fail()
		return nil, err
	}
	if err := client.Listen(); err != nil {
		t.fail()
		return nil, err
	}

	relayConn, err := client.Allocate()
	if err != nil {
		client.Close()
		t.fail()
		return nil, classifyAllocateError(err)
	}

	t.mu.Lock()
	t.client = client
	t.relayConn = relayConn
	t.lifetime = lifetime
	t.state = AllocationActive
	refreshCtx, cancel := context.WithCancel(context.Background())
	t.cancelRefresh = cancel
	t.mu.Unlock()

	go t.refreshLoop(refreshCtx, lifetime)

	return relayConn.LocalAddr(), nil
}

func (t *TURNClient) fail() {
	t.mu.Lock()
	t.state = AllocationFailed
	t.mu.Unlock()
}

func classifyAllocateError(err error) error {
	// pion/turn surfaces RFC 5766 STUN error codes in its error text; the
	// exact sentinel values it exports vary across releases, so fall back
	// to the raw error when none of the named codes are recognizable.
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTurnTimeout
	default:
		return err
	}
}

// refreshLoop re-issues REFRESH at RefreshFraction of lifetime until the
// context is cancelled (on Close) or a refresh fails, at which point the
// allocation is marked Expired.
func (t *TURNClient) refreshLoop(ctx context.Context, lifetime time.Duration) {
	interval := time.Duration(float64(lifetime) * RefreshFraction)
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.mu.Lock()
			client := t.client
			t.mu.Unlock()
			if client == nil {
				return
			}
			if err := client.Refresh(uint32(lifetime.Seconds())); err != nil {
				t.mu.Lock()
				t.state = AllocationExpired
				t.mu.Unlock()
				return
			}
		}
	}
}

// CreatePermission authorizes traffic to/from peerAddr across the relay,
// mirroring the wire protocol's CREATE_PERMISSION step. pion/turn's
// RelayConn creates permissions transparently on first WriteTo, so this
// just records the intent for SendTo and for callers that want an
// explicit step instead of relying on the implicit one.
func (t *TURNClient) CreatePermission(peerAddr net.Addr) error {
	t.permittedMu.Lock()
	t.permitted[peerAddr.String()] = true
	t.permittedMu.Unlock()
	return nil
}

// SendTo relays data to peerAddr through the allocation. A channel number
// in [0x4000, 0x7FFF) is used implicitly by pion/turn's relay connection
// once a permission exists for the peer; otherwise data is carried inside
// a SEND indication.
func (t *TURNClient) SendTo(data []byte, peerAddr net.Addr) (int, error) {
	t.mu.Lock()
	relayConn := t.relayConn
	state := t.state
	t.mu.Unlock()
	if state != AllocationActive || relayConn == nil {
		return 0, errors.New("stunturn: no active allocation")
	}
	if err := t.CreatePermission(peerAddr); err != nil {
		return 0, err
	}
	return relayConn.WriteTo(data, peerAddr)
}

// ReceiveFrom reads one DATA indication (or channel-data) payload from the
// relay.
func (t *TURNClient) ReceiveFrom(buf []byte) (int, net.Addr, error) {
	t.mu.Lock()
	relayConn := t.relayConn
	t.mu.Unlock()
	if relayConn == nil {
		return 0, nil, errors.New("stunturn: no active allocation")
	}
	return relayConn.ReadFrom(buf)
}

// Close tears down the allocation and stops the refresh loop.
func (t *TURNClient) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelRefresh != nil {
		t.cancelRefresh()
	}
	var err error
	if t.relayConn != nil {
		err = t.relayConn.Close()
	}
	if t.client != nil {
		t.client.Close()
	}
	t.state = AllocationNone
	return err
}
