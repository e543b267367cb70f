package routingtable

import "github.com/nzcore-project/nzcore/internal/nodeid"

// KBucketList is an array of 256 buckets indexed by local.BucketIndex(id).
type KBucketList struct {
	local   nodeid.ID
	buckets [256]*KBucket
}

// NewKBucketList constructs a KBucketList centered on local.
func NewKBucketList(local nodeid.ID) *KBucketList {
	l := &KBucketList{local: local}
	for i := range l.buckets {
		l.buckets[i] = NewKBucket()
	}
	return l
}

// BucketFor returns the bucket contact.ID belongs to, relative to local.
func (l *KBucketList) BucketFor(id nodeid.ID) *KBucket {
	return l.buckets[l.local.BucketIndex(id)]
}

// BucketAt returns the bucket at a raw index (used by refresh scheduling).
func (l *KBucketList) BucketAt(idx int) *KBucket {
	return l.buckets[idx]
}

// Add dispatches contact to its bucket.
func (l *KBucketList) Add(contact Contact) AddResult {
	return l.BucketFor(contact.ID).Add(contact)
}

// GetClosest flattens all buckets' contacts, sorts by distance to target,
// and returns the first n.
func (l *KBucketList) GetClosest(target nodeid.ID, n int) []Contact {
	var all []Contact
	for _, b := range l.buckets {
		all = append(all, b.Contacts()...)
	}
	ids := make([]nodeid.ID, len(all))
	byID := make(map[nodeid.ID]Contact, len(all))
	for i, c := range all {
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
