// Package primitives wraps a fixed, audited cryptographic algorithm set:
// Ed25519, X25519, ChaCha20-Poly1305, BLAKE2b, and a CSPRNG. No algorithm
// agility is offered on purpose — callers pick the operation, not the
// cipher.
package primitives

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
)

var (
	ErrInvalidKeyLength   = errors.New("primitives: invalid key length")
	ErrInvalidNonceLength = errors.New("primitives: invalid nonce length")
	ErrInvalidTagLength   = errors.New("primitives: invalid tag length")
	ErrAeadAuthFailed     = errors.New("primitives: aead authentication failed")
)

// Sign produces a 64-byte Ed25519 signature from a 32-byte seed.
func Sign(seed, message []byte) ([]byte, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidKeyLength
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return ed25519.Sign(priv, message), nil
}

// Verify checks a 64-byte Ed25519 signature against a 32-byte public key.
func Verify(publicKey, message, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(publicKey, message, signature)
}

// PublicFromSeed returns the 32-byte Ed25519 public key for a 32-byte seed.
func PublicFromSeed(seed []byte) ([]byte, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidKeyLength
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return append([]byte(nil), priv.Public().(ed25519.PublicKey)...), nil
}

// X25519Basepoint computes the public key for a 32-byte X25519 private scalar.
func X25519Basepoint(priv []byte) ([]byte, error) {
	if len(priv) != 32 {
		return nil, ErrInvalidKeyLength
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

// X25519DH computes the shared secret for a 32-byte private scalar and a
// 32-byte peer public key.
func X25519DH(priv, peerPub []byte) ([]byte, error) {
	if len(priv) != 32 || len(peerPub) != 32 {
		return nil, ErrInvalidKeyLength
	}
	return curve25519.X25519(priv, peerPub)
}

// AEADSeal encrypts plaintext with ChaCha20-Poly1305 using a 32-byte key and
// 12-byte nonce, optionally authenticating aad. Output is ciphertext||tag.
func AEADSeal(key, nonce, plaintext, aad []byte) ([]byte, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKeyLength
	}
	if len(nonce) != chacha20poly1305.NonceSize {
		return nil, ErrInvalidNonceLength
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

// AEADOpen decrypts ciphertext (which must end with a 16-byte tag), returning
// ErrAeadAuthFailed on any authentication failure.
func AEADOpen(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKeyLength
	}
	if len(nonce) != chacha20poly1305.NonceSize {
		return nil, ErrInvalidNonceLength
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAeadAuthFailed
	}
	return plaintext, nil
}

// BLAKE2bSum hashes data to outLen bytes (1..64) with BLAKE2b.
func BLAKE2bSum(data []byte, outLen int) ([]byte, error) {
	if outLen < 1 || outLen > 64 {
		return nil, ErrInvalidKeyLength
	}
	h, err := blake2b.New(outLen, nil)
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return h.Sum(nil), nil
}

// RandomBytes returns n CSPRNG-backed random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// RandomSeed returns a fresh 32-byte seed.
func RandomSeed() ([]byte, error) { return RandomBytes(32) }

// RandomNonce returns a fresh 12-byte AEAD nonce.
func RandomNonce() ([]byte, error) { return RandomBytes(12) }

// RandomHex returns n random bytes encoded as a lowercase hex string (2n chars).
func RandomHex(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
