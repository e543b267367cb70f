package routingtable

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/nzcore-project/nzcore/internal/nodeid"
)

// MaxPendingPings is the number of missed pongs before a node is evicted
// from the table.
const MaxPendingPings = 3

// DefaultRefreshInterval is the default per-bucket refresh window.
const DefaultRefreshInterval = time.Hour

// ErrSelf is returned by AddNode when asked to add the local node.
var ErrSelf = errors.New("routingtable: refusing to add self")

// AddOutcome reports the table-level result of AddNode.
type AddOutcome int

const (
	OutcomeNodeAdded AddOutcome = iota
	OutcomeNodeUpdated
	OutcomePingRequired
)

// Table wraps a KBucketList with a refresh policy and a pending-pings
// counter per NodeID.
type Table struct {
	local           nodeid.ID
	buckets         *KBucketList
	refreshInterval time.Duration

	mu             sync.Mutex
	lastRefresh    [256]time.Time
	pendingPings   map[nodeid.ID]int
	pingRequiredCb func(oldest Contact)
}

// New constructs a Table centered on local.
func New(local nodeid.ID, refreshInterval time.Duration) *Table {
	if refreshInterval <= 0 {
		refreshInterval = DefaultRefreshInterval
	}
	now := time.Now()
	t := &Table{
		local:           local,
		buckets:         NewKBucketList(local),
		refreshInterval: refreshInterval,
		pendingPings:    make(map[nodeid.ID]int),
	}
	for i := range t.lastRefresh {
		t.lastRefresh[i] = now
	}
	return t
}

// OnPingRequired registers the callback fired when a bucket signals
// ping_required (full, with a pending replacement waiting).
func (t *Table) OnPingRequired(fn func(oldest Contact)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pingRequiredCb = fn
}

// AddNode adds or refreshes a contact. Adding the local node is refused.
func (t *Table) AddNode(c Contact) (AddOutcome, error) {
	if c.ID == t.local {
		return 0, ErrSelf
	}
	t.mu.Lock()
	bucket := t.buckets.BucketFor(c.ID)
	result := bucket.Add(c)
	var cb func(Contact)
	var oldest Contact
	var fireCb bool
	if result == ResultPending {
		if o, ok := bucket.OldestContact(); ok {
			oldest = o
			cb = t.pingRequiredCb
			fireCb = cb != nil
		}
	}
	t.mu.Unlock()

	if fireCb {
		cb(oldest)
	}

	switch result {
	case ResultUpdated:
		return OutcomeNodeUpdated, nil
	case ResultPending:
		return OutcomePingRequired, nil
	default:
		return OutcomeNodeAdded, nil
	}
}

// HandlePong records a successful ping response by clearing the node's
// pending-ping count. The contact's position and LastSeen in its bucket are
// not changed.
func (t *Table) HandlePong(id nodeid.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pendingPings, id)
}

// HandlePingTimeout records a missed pong; after MaxPendingPings misses the
// node is removed from its bucket and its replacement (if any) promoted.
func (t *Table) HandlePingTimeout(id nodeid.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendingPings[id]++
	if t.pendingPings[id] >= MaxPendingPings {
		bucket := t.buckets.BucketFor(id)
		bucket.Remove(id)
		delete(t.pendingPings, id)
	}
}

// GetClosest returns the n contacts closest to target across the whole
// table.
func (t *Table) GetClosest(target nodeid.ID, n int) []Contact {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buckets.GetClosest(target, n)
}

// GetStaleBuckets returns indices of non-empty buckets whose last refresh
// predates refreshInterval.
func (t *Table) GetStaleBuckets() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	var stale []int
	for i := 0; i < 256; i++ {
		if t.buckets.BucketAt(i).Len() == 0 {
			continue
		}
		if now.Sub(t.lastRefresh[i]) > t.refreshInterval {
			stale = append(stale, i)
		}
	}
	return stale
}

// MarkRefreshed resets a bucket's last-refresh timestamp to now.
func (t *Table) MarkRefreshed(idx int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastRefresh[idx] = time.Now()
}

// GetNodeForRefresh generates a random NodeID whose BucketIndex relative to
// local is exactly idx (same first 255-idx bits as local, the next bit
// flipped, the rest free; see randomIDWithCommonPrefix) as the lookup target
// that will fill bucket idx, and also returns the closest known contact to it.
func (t *Table) GetNodeForRefresh(idx int) (nodeid.ID, Contact, error) {
	target, err := randomIDWithCommonPrefix(t.local, idx)
	if err != nil {
		return nodeid.ID{}, Contact{}, err
	}
	closest := t.GetClosest(target, 1)
	if len(closest) == 0 {
		return target, Contact{}, nil
	}
	return target, closest[0], nil
}

// randomIDWithCommonPrefix builds a random ID whose BucketIndex relative to
// local is exactly idx. nodeid.ID.BucketIndex measures distance from the
// least-significant bit (255 = differ at the top bit, 0 = differ only at
// the bottom bit), so the differing bit sits at bit position (255-idx)
// counted from the most significant bit; every bit before it must match
// local exactly, and every bit after it is free.
func randomIDWithCommonPrefix(local nodeid.ID, idx int) (nodeid.ID, error) {
	var out nodeid.ID
	if _, err := rand.Read(out[:]); err != nil {
		return nodeid.ID{}, err
	}
	positionFromMSB := (8*nodeid.Size - 1) - idx

	fullBytes := positionFromMSB / 8
	copy(out[:fullBytes], local[:fullBytes])

	remBits := positionFromMSB % 8
	if remBits > 0 {
		mask := byte(0xFF << uint(8-remBits))
		out[fullBytes] = (local[fullBytes] & mask) | (out[fullBytes] &^ mask)
	}

	// Flip the bit at positionFromMSB itself, so the resulting ID lands in
	// bucket idx exactly rather than a nearer one.
	flipByte := positionFromMSB / 8
	flipBit := positionFromMSB % 8
	out[flipByte] = local[flipByte] ^ (0x80 >> uint(flipBit))
	return out, nil
}
