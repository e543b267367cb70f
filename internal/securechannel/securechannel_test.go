package securechannel

import (
	"bytes"
	"testing"

	"github.com/nzcore-project/nzcore/internal/primitives"
)

func TestConversationRoundTrip(t *testing.T) {
	ss, err := primitives.RandomSeed()
	if err != nil {
		t.Fatalf("random seed failed: %v", err)
	}

	a, err := New(ss, "nz/test", RoleA)
	if err != nil {
		t.Fatalf("new channel A failed: %v", err)
	}
	b, err := New(ss, "nz/test", RoleB)
	if err != nil {
		t.Fatalf("new channel B failed: %v", err)
	}

	frame1, err := a.Encrypt([]byte("msg-1"), nil)
	if err != nil {
		t.Fatalf("encrypt msg-1 failed: %v", err)
	}
	if frame1.Counter != 1 {
		t.Fatalf("expected counter 1, got %d", frame1.Counter)
	}
	got1, err := b.Decrypt(frame1, nil)
	if err != nil {
		t.Fatalf("decrypt msg-1 failed: %v", err)
	}
	if !bytes.Equal(got1, []byte("msg-1")) {
		t.Fatalf("unexpected plaintext: %q", got1)
	}

	frame2, err := a.Encrypt([]byte("msg-2"), nil)
	if err != nil {
		t.Fatalf("encrypt msg-2 failed: %v", err)
	}
	if frame2.Counter != 2 {
		t.Fatalf("expected counter 2, got %d", frame2.Counter)
	}

	if err := a.Rekey(); err != nil {
		t.Fatalf("rekey A failed: %v", err)
	}
	if err := b.Rekey(); err != nil {
		t.Fatalf("rekey B failed: %v", err)
	}

	frame3, err := a.Encrypt([]byte("msg-3"), nil)
	if err != nil {
		t.Fatalf("encrypt msg-3 failed: %v", err)
	}
	if frame3.Counter != 1 {
		t.Fatalf("expected counter to reset to 1 after rekey, got %d", frame3.Counter)
	}
	got3, err := b.Decrypt(frame3, nil)
	if err != nil {
		t.Fatalf("decrypt msg-3 after rekey failed: %v", err)
	}
	if !bytes.Equal(got3, []byte("msg-3")) {
		t.Fatalf("unexpected plaintext after rekey: %q", got3)
	}
}

func TestDecryptFailsOnTamperedCiphertext(t *testing.T) {
	ss, err := primitives.RandomSeed()
	if err != nil {
		t.Fatalf("random seed failed: %v", err)
	}
	a, err := New(ss, "nz/test", RoleA)
	if err != nil {
		t.Fatalf("new channel A failed: %v", err)
	}
	b, err := New(ss, "nz/test", RoleB)
	if err != nil {
		t.Fatalf("new channel B failed: %v", err)
	}

	frame, err := a.Encrypt([]byte("hello"), nil)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	frame.Ciphertext[0] ^= 0xFF

	if _, err := b.Decrypt(frame, nil); err != ErrDecryptFailed {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}
}

func TestMismatchedEpochFailsToDecrypt(t *testing.T) {
	ss, err := primitives.RandomSeed()
	if err != nil {
		t.Fatalf("random seed failed: %v", err)
	}
	a, err := New(ss, "nz/test", RoleA)
	if err != nil {
		t.Fatalf("new channel A failed: %v", err)
	}
	b, err := New(ss, "nz/test", RoleB)
	if err != nil {
		t.Fatalf("new channel B failed: %v", err)
	}

	if err := a.Rekey(); err != nil {
		t.Fatalf("rekey A failed: %v", err)
	}
	frame, err := a.Encrypt([]byte("out of sync"), nil)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := b.Decrypt(frame, nil); err != ErrDecryptFailed {
		t.Fatalf("expected ErrDecryptFailed from unsynced epoch, got %v", err)
	}
}
