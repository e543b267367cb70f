package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nzcore-project/nzcore/internal/framing"
	"github.com/nzcore-project/nzcore/internal/platform/ratelimiter"
)

func frameFor(payload []byte) framing.Frame {
	return framing.Frame{Type: framing.TypeData, Payload: payload}
}

var (
	ErrPoolFull     = errors.New("connection: pool full")
	ErrNoConnection = errors.New("connection: no connection for peer")
)

// PoolConfig tunes a Pool's size limits and idle-sweep cadence.
type PoolConfig struct {
	MaxSize      int
	IdleTimeout  time.Duration
	CheckInterval time.Duration
	MinSize      int

	// FrameLimiter, if set, is installed on every connection the pool adds,
	// throttling inbound frames per peer (PING, PONG and DISCONNECT excepted).
	FrameLimiter *ratelimiter.MapLimiter
}

// DefaultPoolConfig returns the package's baseline defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxSize:       1000,
		IdleTimeout:   5 * time.Minute,
		CheckInterval: 1 * time.Minute,
		MinSize:       0,
	}
}

// BroadcastResult summarizes a best-effort fan-out.
type BroadcastResult struct {
	Total      int
	Successful int
	Failed     int
}

// Pool maintains two indices, by_id and by_peer, plus an idle-sweep
// goroutine that evicts connections past IdleTimeout while never
// dropping below MinSize.
type Pool struct {
	cfg PoolConfig

	mu     sync.Mutex
	byID   map[string]*Connection
	byPeer map[string]map[string]struct{}

	onAdded func(*Connection)

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewPool constructs a Pool and starts its background idle-sweep loop.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	p := &Pool{
		cfg:    cfg,
		byID:   make(map[string]*Connection),
		byPeer: make(map[string]map[string]struct{}),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go p.sweepLoop()
	return p
}

// OnConnectionAdded registers the connection_added callback.
func (p *Pool) OnConnectionAdded(fn func(*Connection)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onAdded = fn
}

// Add registers a connection in both indices, refusing with ErrPoolFull if
// the pool is already at max_size. A disconnect handler is wired so a
// closed connection removes itself automatically.
func (p *Pool) Add(conn *Connection) error {
	p.mu.Lock()
	if len(p.byID) >= p.cfg.MaxSize {
		p.mu.Unlock()
		return ErrPoolFull
	}
	p.byID[conn.ID] = conn
	if p.byPeer[conn.PeerID] == nil {
		p.byPeer[conn.PeerID] = make(map[string]struct{})
	}
	p.byPeer[conn.PeerID][conn.ID] = struct{}{}
	cb := p.onAdded
	p.mu.Unlock()

	conn.SetFrameLimiter(p.cfg.FrameLimiter)
	conn.OnDisconnect(func(id string, _ DisconnectReason) {
		p.removeLocked(id)
	})

	TotalCreated.Inc()
	ActiveConnections.Inc()
	if cb != nil {
		cb(conn)
	}
	return nil
}

// Remove drops id from both indices and closes the connection with
// ReasonPoolRemoved.
func (p *Pool) Remove(id string) {
	p.mu.Lock()
	conn, ok := p.byID[id]
	p.mu.Unlock()
	if !ok {
		return
	}
	conn.Close(ReasonPoolRemoved)
	p.removeLocked(id)
}

func (p *Pool) removeLocked(id string) {
	p.mu.Lock()
	conn, ok := p.byID[id]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.byID, id)
	if peers, ok := p.byPeer[conn.PeerID]; ok {
		delete(peers, id)
		if len(peers) == 0 {
			delete(p.byPeer, conn.PeerID)
		}
	}
	p.mu.Unlock()

	TotalDestroyed.Inc()
	ActiveConnections.Dec()
}

// Acquire returns any Connected connection to peerID, polling until one
// appears or ctx is done / timeout elapses.
func (p *Pool) Acquire(ctx context.Context, peerID string, timeout time.Duration) (*Connection, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if conn, ok := p.connectedForPeer(peerID); ok {
			TotalAcquired.Inc()
			return conn, nil
		}
		if time.Now().After(deadline) {
			AcquireErrors.Inc()
			return nil, ErrNoConnection
		}
		select {
		case <-ctx.Done():
			AcquireErrors.Inc()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Release marks a connection as no longer actively held by a caller. The
// pool itself does not track per-caller leases; Release only updates the
// total_released metric.
func (p *Pool) Release(*Connection) {
	TotalReleased.Inc()
}

func (p *Pool) connectedForPeer(peerID string) (*Connection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.byPeer[peerID] {
		if conn, ok := p.byID[id]; ok && conn.State() == StateConnected {
			return conn, true
		}
	}
	return nil, false
}

// Broadcast best-effort fans data out to every Connected connection except
// exclude.
func (p *Pool) Broadcast(payload []byte, exclude map[string]struct{}) BroadcastResult {
	p.mu.Lock()
	targets := make([]*Connection, 0, len(p.byID))
	for id, conn := range p.byID {
		if _, skip := exclude[id]; skip {
			continue
		}
		targets = append(targets, conn)
	}
	p.mu.Unlock()

	result := BroadcastResult{Total: len(targets)}
	for _, conn := range targets {
		if conn.State() != StateConnected {
			result.Failed++
			continue
		}
		if err := conn.Send(frameFor(payload)); err != nil {
			result.Failed++
			continue
		}
		result.Successful++
	}
	return result
}

// Size returns the current connection count.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byID)
}

// Stop halts the background idle-sweep goroutine.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.doneCh
}

func (p *Pool) sweepLoop() {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.sweepIdle()
		}
	}
}

func (p *Pool) sweepIdle() {
	p.mu.Lock()
	if len(p.byID) <= p.cfg.MinSize {
		p.mu.Unlock()
		return
	}
	now := time.Now()
	var victims []string
	budget := len(p.byID) - p.cfg.MinSize
	for id, conn := range p.byID {
		if budget <= 0 {
			break
		}
		if now.Sub(conn.LastActivity()) > p.cfg.IdleTimeout {
			victims = append(victims, id)
			budget--
		}
	}
	p.mu.Unlock()

	for _, id := range victims {
		p.Remove(id)
	}
}
