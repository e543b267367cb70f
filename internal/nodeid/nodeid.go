// Package nodeid implements the 256-bit NodeID space: XOR distance,
// bucket indexing, and a stable sort by closeness to a target, shared
// by the routing table and Kademlia packages.
package nodeid

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Size is the NodeID length in bytes (256 bits).
const Size = 32

// ID is a 256-bit Kademlia node identifier.
type ID [Size]byte

// Random returns a CSPRNG-backed ID.
func Random() (ID, error) {
	var id ID
	if _, err := rand.Read(id[:]); err != nil {
		return ID{}, err
	}
	return id, nil
}

// FromPublicKey derives an ID as SHA-256(pk).
func FromPublicKey(pk []byte) ID {
	return ID(sha256.Sum256(pk))
}

// FromString derives an ID as SHA-256(s).
func FromString(s string) ID {
	return ID(sha256.Sum256([]byte(s)))
}

// Distance returns the bytewise XOR distance between id and other.
func (id ID) Distance(other ID) ID {
	var d ID
	for i := range id {
		d[i] = id[i] ^ other[i]
	}
	return d
}

// BucketIndex returns the 0-based index of the most-significant 1-bit of
// id.Distance(other), in range 0..=255: a difference in the top bit of the
// first byte yields 255 (farthest), a difference confined to the lowest
// bit of the last byte yields 0 (nearest). Identical IDs return 0 by
// convention.
func (id ID) BucketIndex(other ID) int {
	d := id.Distance(other)
	for byteIdx, b := range d {
		if b == 0 {
			continue
		}
		leadingZeros := 0
		for bit := 0; bit < 8; bit++ {
			if b&(0x80>>uint(bit)) != 0 {
				leadingZeros = bit
				break
			}
		}
		positionFromMSB := byteIdx*8 + leadingZeros
		return 8*Size - 1 - positionFromMSB
	}
	return 0
}

// Less reports whether id is closer (by XOR distance) to target than other.
func (id ID) Less(other, target ID) bool {
	da := id.Distance(target)
	db := other.Distance(target)
	for i := range da {
		if da[i] != db[i] {
			return da[i] < db[i]
		}
	}
	return false
}

// String renders an ID as 64-char lowercase hex, the wire convention
// used for NodeIDs everywhere else in the codebase.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// SortByDistance stably sorts ids by XOR distance to target, ascending.
func SortByDistance(ids []ID, target ID) {
	sort.SliceStable(ids, func(i, j int) bool {
		return ids[i].Less(ids[j], target)
	})
}
