// Package keymaterial implements BIP-39 mnemonic handling, seed derivation,
// HKDF subkey expansion, and secure-memory wiping for the node's identity.
package keymaterial

import "crypto/rand"

// Zeroizing wraps a sensitive byte slice so every call site can wipe it with
// the same one-liner, for a zero-on-every-exit-path discipline around key
// material.
type Zeroizing struct {
	b []byte
}

// NewZeroizing takes ownership of b; callers must not retain other references.
func NewZeroizing(b []byte) *Zeroizing {
	return &Zeroizing{b: b}
}

// Bytes returns the underlying slice. The caller must not retain it past Wipe.
func (z *Zeroizing) Bytes() []byte {
	if z == nil {
		return nil
	}
	return z.b
}

// Wipe overwrites the slice with random bytes and then zero. Sensitive
// key material should always expose an explicit wipe like this one.
func (z *Zeroizing) Wipe() {
	if z == nil || z.b == nil {
		return
	}
	_, _ = rand.Read(z.b)
	for i := range z.b {
		z.b[i] = 0
	}
	z.b = nil
}

// WipeBytes zero-fills b in place without going through a Zeroizing wrapper,
// for call sites holding a raw slice they don't otherwise need to carry.
func WipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
