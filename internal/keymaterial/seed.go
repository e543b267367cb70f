package keymaterial

import "golang.org/x/crypto/blake2b"

// SeedFromEntropy derives the 32-byte deterministic seed from BIP-39 entropy
// via BLAKE2b-256. This intentionally departs from go-bip39's own NewSeed
// (PBKDF2-HMAC-SHA512 over the mnemonic string, salted with
// "mnemonic"+passphrase): BLAKE2b-256 is taken directly over the raw entropy
// bytes instead, so the mnemonic's passphrase extension is unused here and
// the seed is a pure function of the word list alone.
func SeedFromEntropy(entropy []byte) [32]byte {
	return blake2b.Sum256(entropy)
}

// SeedFromMnemonic is the mnemonic->seed convenience composing
// EntropyFromMnemonic and SeedFromEntropy.
func SeedFromMnemonic(mnemonic string) ([32]byte, error) {
	entropy, err := EntropyFromMnemonic(mnemonic)
	if err != nil {
		return [32]byte{}, err
	}
	defer WipeBytes(entropy)
	return SeedFromEntropy(entropy), nil
}

// Named HKDF labels for deriving the identity/ECDH key pair and session keys.
const (
	LabelIdentity = "identity"
	LabelECDH     = "ecdh"
	LabelSign     = "sign"
	LabelBox      = "box"
)
