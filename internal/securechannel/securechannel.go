// Package securechannel implements an epoch-keyed bidirectional AEAD
// channel, built on top of a shared secret produced by the handshake
// package.
package securechannel

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nzcore-project/nzcore/internal/keymaterial"
	"github.com/nzcore-project/nzcore/internal/primitives"
)

// Role selects which side of the channel a Channel instance represents; it
// determines which derived key pair is used for sending versus receiving.
type Role int

const (
	RoleA Role = iota
	RoleB
)

// ErrDecryptFailed is returned by Decrypt on AEAD authentication failure.
// The decrypt path is permissive: it does not itself enforce that the
// incoming counter matches recv_counter.
var ErrDecryptFailed = errors.New("securechannel: decryption failed")

// Sealed is the output of Encrypt: a self-describing AEAD frame.
type Sealed struct {
	Nonce      []byte
	Ciphertext []byte
	Tag        []byte
	Counter    uint32
	Epoch      uint32
}

// Channel is a bidirectional AEAD channel keyed from a shared secret,
// re-derived on every Rekey call. Not safe for concurrent use without an
// external lock; this confines each channel to a single owning task.
type Channel struct {
	sharedSecret []byte
	baseContext  string
	role         Role

	epoch uint32

	sendKey       []byte
	sendNonceBase []byte
	sendCounter   uint32

	recvKey       []byte
	recvNonceBase []byte
	recvCounter   uint32
}

// New constructs a Channel at epoch 0 and derives its initial key set.
func New(sharedSecret []byte, baseContext string, role Role) (*Channel, error) {
	c := &Channel{
		sharedSecret: sharedSecret,
		baseContext:  baseContext,
		role:         role,
	}
	if err := c.deriveEpochKeys(); err != nil {
		return nil, err
	}
	return c, nil
}

// Epoch returns the channel's current epoch.
func (c *Channel) Epoch() uint32 { return c.epoch }

// deriveEpochKeys (re)computes send/recv keys and nonce bases for the
// current epoch via the ctx_AB / ctx_BA derivation.
func (c *Channel) deriveEpochKeys() error {
	ctxAB := fmt.Sprintf("%s/epoch-%d/alice->bob", c.baseContext, c.epoch)
	ctxBA := fmt.Sprintf("%s/epoch-%d/bob->alice", c.baseContext, c.epoch)

	kAB, _, err := keymaterial.DeriveSessionKeys(c.sharedSecret, ctxAB)
	if err != nil {
		return err
	}
	kBA, _, err := keymaterial.DeriveSessionKeys(c.sharedSecret, ctxBA)
	if err != nil {
		return err
	}
	nonceAB, err := keymaterial.DeriveNonceBase(c.sharedSecret, ctxAB)
	if err != nil {
		return err
	}
	nonceBA, err := keymaterial.DeriveNonceBase(c.sharedSecret, ctxBA)
	if err != nil {
		return err
	}

	switch c.role {
	case RoleA:
		c.sendKey, c.sendNonceBase = kAB, nonceAB
		c.recvKey, c.recvNonceBase = kBA, nonceBA
	default:
		c.sendKey, c.sendNonceBase = kBA, nonceBA
		c.recvKey, c.recvNonceBase = kAB, nonceAB
	}
	c.sendCounter = 1
	c.recvCounter = 1
	return nil
}

// Encrypt seals plaintext under the current send key, stamping the nonce's
// last 4 bytes with the big-endian send counter, then advancing it.
func (c *Channel) Encrypt(plaintext, aad []byte) (Sealed, error) {
	counter := c.sendCounter
	c.sendCounter++

	nonce := append([]byte(nil), c.sendNonceBase...)
	binary.BigEndian.PutUint32(nonce[8:12], counter)

	sealed, err := primitives.AEADSeal(c.sendKey, nonce, plaintext, aad)
	if err != nil {
		return Sealed{}, err
	}
	ct, tag := sealed[:len(sealed)-16], sealed[len(sealed)-16:]
	return Sealed{
		Nonce:      nonce,
		Ciphertext: ct,
		Tag:        tag,
		Counter:    counter,
		Epoch:      c.epoch,
	}, nil
}

// Decrypt opens a Sealed frame under the current recv key. On success the
// recv counter advances; on AEAD failure it returns ErrDecryptFailed and
// leaves the counter untouched. No check is made that frame.Counter matches
// recv_counter: replay protection is the caller's responsibility, per
// this explicit permissive-decrypt contract.
func (c *Channel) Decrypt(frame Sealed, aad []byte) ([]byte, error) {
	sealed := append(append([]byte(nil), frame.Ciphertext...), frame.Tag...)
	plaintext, err := primitives.AEADOpen(c.recvKey, frame.Nonce, sealed, aad)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	c.recvCounter++
	return plaintext, nil
}

// Rekey advances to the next epoch, resetting both counters to 1 and
// re-deriving send/recv keys. The peer must rekey to the matching epoch
// before further communication succeeds.
func (c *Channel) Rekey() error {
	c.epoch++
	return c.deriveEpochKeys()
}
