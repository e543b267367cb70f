// Package routingtable implements the KBucket, KBucketList, and
// RoutingTable types underlying Kademlia peer discovery.
package routingtable

import (
	"time"

	"github.com/nzcore-project/nzcore/internal/nodeid"
)

// K is the maximum number of contacts a single bucket holds.
const K = 20

// Contact is a known peer, tracked for recency and update frequency.
type Contact struct {
	ID          nodeid.ID
	Address     string
	Port        int
	LastSeen    time.Time
	VectorClock uint64
}

// AddResult reports what KBucket.Add did.
type AddResult int

const (
	ResultAdded AddResult = iota
	ResultUpdated
	ResultPending
)

// KBucket holds up to K contacts in most-recent-last order, plus at most
// one pending replacement waiting on a ping to the oldest contact.
type KBucket struct {
	contacts []Contact
	pending  *Contact
}

// NewKBucket constructs an empty bucket.
func NewKBucket() *KBucket {
	return &KBucket{}
}

// Add inserts or refreshes contact per a three-way rule: an existing
// contact moves to the tail, a new contact is appended if there's room,
// and a full bucket reports eviction is needed instead.
func (b *KBucket) Add(contact Contact) AddResult {
	for i, existing := range b.contacts {
		if existing.ID == contact.ID {
			b.contacts = append(b.contacts[:i], b.contacts[i+1:]...)
			contact.LastSeen = time.Now()
			contact.VectorClock = existing.VectorClock + 1
			b.contacts = append(b.contacts, contact)
			return ResultUpdated
		}
	}
	if len(b.contacts) < K {
		contact.LastSeen = time.Now()
		b.contacts = append(b.contacts, contact)
		return ResultAdded
	}
	pending := contact
	pending.LastSeen = time.Now()
	b.pending = &pending
	return ResultPending
}

// OldestContact returns the bucket's least-recently-seen contact (the one
// requiring a ping_required challenge when a pending replacement exists).
func (b *KBucket) OldestContact() (Contact, bool) {
	if len(b.contacts) == 0 {
		return Contact{}, false
	}
	return b.contacts[0], true
}

// HasPending reports whether a pending replacement is waiting.
func (b *KBucket) HasPending() bool { return b.pending != nil }

// Remove drops id if present; if a pending replacement exists, it is
// promoted to the tail.
func (b *KBucket) Remove(id nodeid.ID) bool {
	for i, c := range b.contacts {
		if c.ID == id {
			b.contacts = append(b.contacts[:i], b.contacts[i+1:]...)
			if b.pending != nil {
				b.contacts = append(b.contacts, *b.pending)
				b.pending = nil
			}
			return true
		}
	}
	return false
}

// PromotePending clears and appends the pending contact to the tail, used
// when a ping to the oldest contact times out.
func (b *KBucket) PromotePending() bool {
	if b.pending == nil {
		return false
	}
	b.contacts = append(b.contacts, *b.pending)
	b.pending = nil
	return true
}

// Contacts returns a snapshot of all contacts currently in the bucket.
func (b *KBucket) Contacts() []Contact {
	out := make([]Contact, len(b.contacts))
	copy(out, b.contacts)
	return out
}

// Len returns the number of contacts currently held (excluding pending).
func (b *KBucket) Len() int { return len(b.contacts) }

// GetClosest stably sorts the bucket's contacts by distance to target and
// returns the first n.
func (b *KBucket) GetClosest(target nodeid.ID, n int) []Contact {
	contacts := b.Contacts()
	ids := make([]nodeid.ID, len(contacts))
	byID := make(map[nodeid.ID]Contact, len(contacts))
	for i, c := range contacts {
		ids[i] = c.ID
		byID[c.ID] = c
	}
	nodeid.SortByDistance(ids, target)
	if n > len(ids) {
		n = len(ids)
	}
	out := make([]Contact, n)
	for i := 0; i < n; i++ {
		out[i] = byID[ids[i]]
	}
	return out
}
