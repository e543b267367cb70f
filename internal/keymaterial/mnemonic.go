package keymaterial

import (
	"errors"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// ErrInvalidMnemonic reports a mnemonic with an invalid word, word count, or
// checksum.
var ErrInvalidMnemonic = errors.New("keymaterial: invalid mnemonic")

// ValidEntropyBits lists the permitted entropy sizes: 128..256 in 32-bit
// steps, each producing a 12/15/18/21/24-word mnemonic.
var ValidEntropyBits = []int{128, 160, 192, 224, 256}

// NewMnemonic generates fresh entropy of the requested bit size and encodes
// it as a BIP-39 mnemonic. bits must be one of ValidEntropyBits.
func NewMnemonic(bits int) (mnemonic string, entropy []byte, err error) {
	if !isValidEntropyBits(bits) {
		return "", nil, ErrInvalidMnemonic
	}
	entropy, err = bip39.NewEntropy(bits)
	if err != nil {
		return "", nil, err
	}
	mnemonic, err = bip39.NewMnemonic(entropy)
	if err != nil {
		return "", nil, err
	}
	return mnemonic, entropy, nil
}

// EntropyFromMnemonic inverts entropy_to_mnemonic: it validates the word
// count, wordlist membership, and checksum, returning the raw entropy bytes.
func EntropyFromMnemonic(mnemonic string) ([]byte, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" || !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	entropy, err := bip39.MnemonicToByteArray(mnemonic, true)
	if err != nil {
		return nil, ErrInvalidMnemonic
	}
	return entropy, nil
}

// ValidateMnemonic reports whether mnemonic is well-formed per BIP-39: word
// count a multiple of 3, every word in the 2048-entry wordlist, and the
// trailing checksum bits matching SHA-256(entropy).
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(strings.TrimSpace(mnemonic))
}

// Wordlist returns the 2048-entry BIP-39 English wordlist backing
// entropy<->mnemonic mapping.
func Wordlist() []string {
	return bip39.GetWordList()
}

func isValidEntropyBits(bits int) bool {
	for _, v := range ValidEntropyBits {
		if v == bits {
			return true
		}
	}
	return false
}
