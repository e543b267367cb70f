package kademlia

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nzcore-project/nzcore/internal/nodeid"
	"github.com/nzcore-project/nzcore/internal/platform/ratelimiter"
	"github.com/nzcore-project/nzcore/internal/routingtable"
)

type pendingCall struct {
	resp chan Message
}

// Node is a Kademlia participant: it owns a RoutingTable, an in-memory
// value store, and the bookkeeping for outstanding RPCs. The value store
// (and the inbound limiter) are guarded by mu, the outstanding-RPC map by
// pendingMu.
type Node struct {
	self  nodeid.ID
	table *routingtable.Table
	send  Sender

	mu       sync.Mutex
	storage  map[string]StoredEntry
	pendingMu sync.Mutex
	pending  map[string]pendingCall

	inboundLimiter *ratelimiter.MapLimiter
}

// New constructs a Node bound to a routing table and an outbound Sender.
func New(self nodeid.ID, table *routingtable.Table, send Sender) *Node {
	return &Node{
		self:    self,
		table:   table,
		send:    send,
		storage: make(map[string]StoredEntry),
		pending: make(map[string]pendingCall),
	}
}

// SetInboundLimiter installs a per-sender token-bucket limiter gating
// inbound requests in HandleRPC. A nil limiter disables throttling.
// Responses routed back to a pending call are never throttled.
func (n *Node) SetInboundLimiter(l *ratelimiter.MapLimiter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.inboundLimiter = l
}

// HandleRPC dispatches one inbound message: every RPC first adds the
// sender to the routing table, then either resolves a pending call (for a
// response) or answers a request.
func (n *Node) HandleRPC(msg Message, from Address) {
	n.table.AddNode(routingtable.Contact{ID: msg.Sender, Address: from.Host, Port: from.Port})

	n.pendingMu.Lock()
	call, isResponse := n.pending[msg.RPCID]
	n.pendingMu.Unlock()
	if isResponse {
		select {
		case call.resp <- msg:
		default:
		}
		return
	}

	n.mu.Lock()
	limiter := n.inboundLimiter
	n.mu.Unlock()
	if !limiter.Allow(msg.Sender.String(), time.Now()) {
		return
	}

	switch msg.Method {
	case MethodPing:
		_ = n.send(from, Message{RPCID: msg.RPCID, Method: MethodPong, Sender: n.self})
	case MethodFindNode:
		closest := n.table.GetClosest(msg.Target, K)
		_ = n.send(from, Message{RPCID: msg.RPCID, Method: MethodFindNode, Sender: n.self, Nodes: closest})
	case MethodFindValue:
		n.mu.Lock()
		entry, ok := n.storage[msg.Key]
		n.mu.Unlock()
		if ok {
			_ = n.send(from, Message{RPCID: msg.RPCID, Method: MethodFindValue, Sender: n.self, Found: true, Value: entry.Value})
			return
		}
		closest := n.table.GetClosest(msg.Target, K)
		_ = n.send(from, Message{RPCID: msg.RPCID, Method: MethodFindValue, Sender: n.self, Found: false, Nodes: closest})
	case MethodStore:
		n.mu.Lock()
		n.storage[msg.Key] = StoredEntry{Value: msg.Value, StoredAt: time.Now(), StoredBy: msg.Sender}
		n.mu.Unlock()
		_ = n.send(from, Message{RPCID: msg.RPCID, Method: MethodStore, Sender: n.self, Ack: true})
	}
}

// call issues a request and waits up to RPCTimeout for the matching
// response, keyed by a fresh random rpc_id.
func (n *Node) call(ctx context.Context, addr Address, req Message) (Message, error) {
	req.RPCID = uuid.NewString()
	respCh := make(chan Message, 1)

	n.pendingMu.Lock()
	n.pending[req.RPCID] = pendingCall{resp: respCh}
	n.pendingMu.Unlock()
	defer func() {
		n.pendingMu.Lock()
		delete(n.pending, req.RPCID)
		n.pendingMu.Unlock()
	}()

	if err := n.send(addr, req); err != nil {
		return Message{}, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, RPCTimeout)
	defer cancel()
	select {
	case resp := <-respCh:
		return resp, nil
	case <-timeoutCtx.Done():
		return Message{}, timeoutCtx.Err()
	}
}

type candidate struct {
	contact routingtable.Contact
	queried bool
}

// FindNode runs the iterative FIND_NODE lookup, returning the k
// contacts closest to target by XOR distance.
func (n *Node) FindNode(ctx context.Context, target nodeid.ID) ([]routingtable.Contact, error) {
	return n.iterativeLookup(ctx, target, MethodFindNode, "")
}

// FindValue returns a locally stored value if present, else runs the same
// iterative lookup as FindNode using FIND_VALUE, stopping early the moment
// any node reports a value.
func (n *Node) FindValue(ctx context.Context, key string) ([]byte, bool, error) {
	n.mu.Lock()
	entry, ok := n.storage[key]
	n.mu.Unlock()
	if ok {
		return entry.Value, true, nil
	}

	target := nodeid.FromString(key)
	value, found, err := n.iterativeFindValue(ctx, target, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		n.mu.Lock()
		n.storage[key] = StoredEntry{Value: value, StoredAt: time.Now(), StoredBy: n.self}
		n.mu.Unlock()
	}
	return value, found, nil
}

// Put runs FindNode(key) then STOREs value in parallel to the k closest
// nodes, returning the acknowledgement count.
func (n *Node) Put(ctx context.Context, key string, value []byte) (int, error) {
	target := nodeid.FromString(key)
	closest, err := n.FindNode(ctx, target)
	if err != nil {
		return 0, err
	}

	var mu sync.Mutex
	acked := 0
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range closest {
		c := c
		g.Go(func() error {
			resp, err := n.call(gctx, Address{Host: c.Address, Port: c.Port}, Message{
				Method: MethodStore,
				Sender: n.self,
				Key:    key,
				Value:  value,
			})
			if err != nil {
				return nil // best-effort: a single failed STORE does not fail Put
			}
			if resp.Ack {
				mu.Lock()
				acked++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return acked, nil
}

func (n *Node) iterativeLookup(ctx context.Context, target nodeid.ID, method RPCMethod, key string) ([]routingtable.Contact, error) {
	seen := map[nodeid.ID]bool{n.self: true}
	candidates := make(map[nodeid.ID]*candidate)

	for _, c := range n.table.GetClosest(target, Alpha) {
		seen[c.ID] = true
		candidates[c.ID] = &candidate{contact: c}
	}

	// Each round issues up to Alpha concurrent RPCs and waits for all of
	// them (errgroup.Wait), so there is never more than one round's worth
	// of requests outstanding at a time: a round that adds zero new
	// contacts means nothing is left to learn, and the lookup stops.
	for {
		var toQuery []*candidate
		for _, c := range unqueriedClosest(candidates, target) {
			if len(toQuery) >= Alpha {
				break
			}
			toQuery = append(toQuery, c)
		}
		if len(toQuery) == 0 {
			break
		}

		var mu sync.Mutex
		newContacts := 0
		g, gctx := errgroup.WithContext(ctx)
		for _, cd := range toQuery {
			cd.queried = true
			contact := cd.contact
			g.Go(func() error {
				resp, err := n.call(gctx, Address{Host: contact.Address, Port: contact.Port}, Message{
					Method: method,
					Sender: n.self,
					Target: target,
					Key:    key,
				})
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					return nil
				}
				n.table.AddNode(contact)
				for _, nc := range resp.Nodes {
					if !seen[nc.ID] {
						seen[nc.ID] = true
						candidates[nc.ID] = &candidate{contact: nc}
						newContacts++
					}
				}
				return nil
			})
		}
		_ = g.Wait()

		if newContacts == 0 {
			break
		}
	}

	return closestContacts(candidates, target, K), nil
}

func (n *Node) iterativeFindValue(ctx context.Context, target nodeid.ID, key string) ([]byte, bool, error) {
	seen := map[nodeid.ID]bool{n.self: true}
	candidates := make(map[nodeid.ID]*candidate)
	for _, c := range n.table.GetClosest(target, Alpha) {
		seen[c.ID] = true
		candidates[c.ID] = &candidate{contact: c}
	}

	for {
		var toQuery []*candidate
		for _, c := range unqueriedClosest(candidates, target) {
			if len(toQuery) >= Alpha {
				break
			}
			toQuery = append(toQuery, c)
		}
		if len(toQuery) == 0 {
			return nil, false, nil
		}

		type result struct {
			value []byte
			found bool
		}
		var mu sync.Mutex
		var foundResult *result
		newContacts := 0

		g, gctx := errgroup.WithContext(ctx)
		for _, cd := range toQuery {
			cd.queried = true
			contact := cd.contact
			g.Go(func() error {
				resp, err := n.call(gctx, Address{Host: contact.Address, Port: contact.Port}, Message{
					Method: MethodFindValue,
					Sender: n.self,
					Target: target,
					Key:    key,
				})
				if err != nil {
					return nil
				}
				mu.Lock()
				defer mu.Unlock()
				if resp.Found {
					foundResult = &result{value: resp.Value, found: true}
					return nil
				}
				n.table.AddNode(contact)
				for _, nc := range resp.Nodes {
					if !seen[nc.ID] {
						seen[nc.ID] = true
						candidates[nc.ID] = &candidate{contact: nc}
						newContacts++
					}
				}
				return nil
			})
		}
		_ = g.Wait()

		if foundResult != nil {
			return foundResult.value, true, nil
		}
		if newContacts == 0 {
			return nil, false, nil
		}
	}
}

func unqueriedClosest(candidates map[nodeid.ID]*candidate, target nodeid.ID) []*candidate {
	var out []*candidate
	for _, c := range candidates {
		if !c.queried {
			out = append(out, c)
		}
	}
	ids := make([]nodeid.ID, len(out))
	byID := make(map[nodeid.ID]*candidate, len(out))
	for i, c := range out {
		ids[i] = c.contact.ID
		byID[c.contact.ID] = c
	}
	nodeid.SortByDistance(ids, target)
	sorted := make([]*candidate, len(ids))
	for i, id := range ids {
		sorted[i] = byID[id]
	}
	return sorted
}

func closestContacts(candidates map[nodeid.ID]*candidate, target nodeid.ID, n int) []routingtable.Contact {
	ids := make([]nodeid.ID, 0, len(candidates))
	byID := make(map[nodeid.ID]routingtable.Contact, len(candidates))
	for id, c := range candidates {
		ids = append(ids, id)
		byID[id] = c.contact
	}
	nodeid.SortByDistance(ids, target)
	if n > len(ids) {
		n = len(ids)
	}
	out := make([]routingtable.Contact, n)
	for i := 0; i < n; i++ {
		out[i] = byID[ids[i]]
	}
	return out
}
