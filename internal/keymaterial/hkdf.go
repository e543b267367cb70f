package keymaterial

import (
	"crypto/hmac"
	"crypto/sha512"
	"errors"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// PRF selects the HMAC hash function used by HKDF Extract/Expand.
type PRF int

const (
	// PRFSHA512 uses HMAC-SHA-512 (128-byte block, 64-byte output).
	PRFSHA512 PRF = iota
	// PRFBlake2b512 uses HMAC-BLAKE2b-512, whose block size is 128 bytes, not 64.
	PRFBlake2b512
)

// ErrDerivedKeyTooLong reports a requested HKDF output exceeding 255*hLen.
var ErrDerivedKeyTooLong = errors.New("keymaterial: derived key length exceeds 255 * hash length")

func newHash(p PRF) func() hash.Hash {
	switch p {
	case PRFBlake2b512:
		return func() hash.Hash {
			h, err := blake2b.New512(nil)
			if err != nil {
				// blake2b.New512 only errors for an oversized key; nil key is always valid.
				panic(err)
			}
			return h
		}
	default:
		return sha512.New
	}
}

// HKDFExtract implements RFC 5869 step 1: PRK = HMAC-Hash(salt, IKM).
func HKDFExtract(prf PRF, salt, ikm []byte) []byte {
	newH := newHash(prf)
	if salt == nil {
		salt = make([]byte, newH().Size())
	}
	mac := hmac.New(newH, salt)
	mac.Write(ikm)
	return mac.Sum(nil)
}

// HKDFExpand implements RFC 5869 step 2: OKM = HKDF-Expand(PRK, info, L).
func HKDFExpand(prf PRF, prk, info []byte, length int) ([]byte, error) {
	newH := newHash(prf)
	hLen := newH().Size()
	if length > 255*hLen {
		return nil, ErrDerivedKeyTooLong
	}

	okm := make([]byte, 0, length+hLen)
	var t []byte
	mac := hmac.New(newH, prk)
	for counter := byte(1); len(okm) < length; counter++ {
		mac.Reset()
		mac.Write(t)
		mac.Write(info)
		mac.Write([]byte{counter})
		t = mac.Sum(nil)
		okm = append(okm, t...)
	}
	return okm[:length], nil
}

// HKDF runs Extract then Expand in one call, the common case for a single
// derivation with no pre-existing PRK.
func HKDF(prf PRF, salt, ikm, info []byte, length int) ([]byte, error) {
	prk := HKDFExtract(prf, salt, ikm)
	defer WipeBytes(prk)
	return HKDFExpand(prf, prk, info, length)
}

// Prefixes used to namespace HKDF context strings by purpose.
const (
	LabelKeyPrefix     = "nzcore:key:"
	LabelNoncePrefix   = "nzcore:nonce:"
	LabelSessionPrefix = "nzcore:session:"
	LabelBoxPrefix     = "nzcore:box:"
	LabelJWT           = "nzcore:jwt:v1"
)

// DeriveKey derives a length-byte key under "nzcore:key:<label>" using the
// BLAKE2b PRF, the PRF this package uses for all identity-adjacent
// derivations (see DeriveSessionKeys for the send/recv pair variant).
func DeriveKey(seed []byte, label string, length int) ([]byte, error) {
	return HKDF(PRFBlake2b512, nil, seed, []byte(LabelKeyPrefix+label), length)
}

// DeriveNonceBase derives a 12-byte nonce base under "nzcore:nonce:<label>".
func DeriveNonceBase(secret []byte, label string) ([]byte, error) {
	return HKDF(PRFBlake2b512, nil, secret, []byte(LabelNoncePrefix+label), 12)
}

// DeriveSessionKeys derives the (send, recv) 32-byte key pair for a session
// id, via "nzcore:session:<sid>‖0x01" and "‖0x02".
func DeriveSessionKeys(secret []byte, sessionID string) (send, recv []byte, err error) {
	sendInfo := append([]byte(LabelSessionPrefix+sessionID), 0x01)
	recvInfo := append([]byte(LabelSessionPrefix+sessionID), 0x02)
	send, err = HKDF(PRFBlake2b512, nil, secret, sendInfo, 32)
	if err != nil {
		return nil, nil, err
	}
	recv, err = HKDF(PRFBlake2b512, nil, secret, recvInfo, 32)
	if err != nil {
		return nil, nil, err
	}
	return send, recv, nil
}

// DeriveBoxKey derives a 32-byte AEAD key under "nzcore:box:<label>" from a
// shared secret.
func DeriveBoxKey(sharedSecret []byte, label string) ([]byte, error) {
	return HKDF(PRFBlake2b512, nil, sharedSecret, []byte(LabelBoxPrefix+label), 32)
}

// DeriveJWTKey derives the 32-byte HMAC key used to sign tokens for the
// administrative API. The administrative API itself lives outside this
// module; this derivation is kept here because the key is still part of
// the node's deterministic key-derivation hierarchy.
func DeriveJWTKey(seed []byte) ([]byte, error) {
	return HKDF(PRFBlake2b512, nil, seed, []byte(LabelJWT), 32)
}
