package keymaterial

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestMnemonicRoundTrip(t *testing.T) {
	mnemonic, entropy, err := NewMnemonic(256)
	if err != nil {
		t.Fatalf("new mnemonic failed: %v", err)
	}
	got, err := EntropyFromMnemonic(mnemonic)
	if err != nil {
		t.Fatalf("entropy from mnemonic failed: %v", err)
	}
	if !bytes.Equal(got, entropy) {
		t.Fatal("entropy_to_mnemonic(mnemonic_to_entropy(m)) must round-trip")
	}
	if !ValidateMnemonic(mnemonic) {
		t.Fatal("freshly generated mnemonic must validate")
	}
}

func TestMnemonicRejectsBadChecksum(t *testing.T) {
	words := Wordlist()
	if len(words) != 2048 {
		t.Fatalf("expected 2048-word list, got %d", len(words))
	}
	// 12 copies of the first word is exceedingly unlikely to carry a valid checksum.
	bad := ""
	for i := 0; i < 12; i++ {
		if i > 0 {
			bad += " "
		}
		bad += words[0]
	}
	if ValidateMnemonic(bad) {
		t.Skip("degenerate mnemonic happened to be checksum-valid")
	}
	if _, err := EntropyFromMnemonic(bad); err == nil {
		t.Fatal("expected ErrInvalidMnemonic for bad checksum")
	}
}

func TestDeterministicSeedAndIdentity(t *testing.T) {
	// The canonical all-"abandon" 12-word BIP-39 test mnemonic.
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	if !ValidateMnemonic(mnemonic) {
		t.Fatal("canonical test mnemonic must be valid")
	}

	entropy, err := EntropyFromMnemonic(mnemonic)
	if err != nil {
		t.Fatalf("entropy from mnemonic failed: %v", err)
	}
	wantHex := "00000000000000000000000000000000"[:32]
	if hex.EncodeToString(entropy) != wantHex {
		t.Fatalf("unexpected entropy: %x", entropy)
	}

	seed1, err := SeedFromMnemonic(mnemonic)
	if err != nil {
		t.Fatalf("seed from mnemonic failed: %v", err)
	}
	seed2, err := SeedFromMnemonic(mnemonic)
	if err != nil {
		t.Fatalf("seed from mnemonic failed: %v", err)
	}
	if seed1 != seed2 {
		t.Fatal("seed derivation must be a pure function of the mnemonic")
	}

	identitySeed1, err := DeriveKey(seed1[:], LabelIdentity, 32)
	if err != nil {
		t.Fatalf("derive identity key failed: %v", err)
	}
	identitySeed2, err := DeriveKey(seed2[:], LabelIdentity, 32)
	if err != nil {
		t.Fatalf("derive identity key failed: %v", err)
	}
	if !bytes.Equal(identitySeed1, identitySeed2) {
		t.Fatal("same mnemonic must yield the same derived identity seed across invocations")
	}
}

func TestNewMnemonicRejectsInvalidEntropyBits(t *testing.T) {
	if _, _, err := NewMnemonic(100); err == nil {
		t.Fatal("expected error for non-standard entropy size")
	}
}
