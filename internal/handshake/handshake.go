// Package handshake implements a two-message authenticated X25519 key
// exchange: ephemeral Diffie-Hellman with Ed25519-signed transcripts, so
// neither side ever puts its long-term identity key on the wire, only a
// signature made with it over its ephemeral public key.
package handshake

import (
	"github.com/nzcore-project/nzcore/internal/primitives"
)

// TranscriptLabel is the domain-separation label signed alongside each
// ephemeral public key.
const TranscriptLabel = "NZ-CRYPTO-02/handshake/v1"

// AliceHello is the initiator's first (and only) outbound message.
type AliceHello struct {
	EphemeralPublic []byte
	Signature       []byte
}

// BobHello is the responder's reply, completing the exchange on B's side.
type BobHello struct {
	EphemeralPublic []byte
	Signature       []byte
}

// Initiator drives the A-side (Alice) of the handshake. Zero value is not
// usable; construct with NewInitiator.
type Initiator struct {
	identitySeed []byte
	ephPriv      []byte
	done         bool
}

// NewInitiator binds an initiator to the caller's long-term Ed25519 identity
// seed (32 bytes, referred to elsewhere as identity_seed).
func NewInitiator(identitySeed []byte) *Initiator {
	return &Initiator{identitySeed: identitySeed}
}

// Start performs step 1 (A.start): generate an ephemeral X25519 pair and
// sign the transcript label concatenated with the ephemeral public key.
func (i *Initiator) Start() (AliceHello, error) {
	if i.ephPriv != nil {
		return AliceHello{}, ErrAlreadyStarted
	}
	ephPriv, err := primitives.RandomSeed()
	if err != nil {
		return AliceHello{}, err
	}
	ephPub, err := primitives.X25519Basepoint(ephPriv)
	if err != nil {
		return AliceHello{}, err
	}
	sig, err := primitives.Sign(i.identitySeed, transcript(ephPub))
	if err != nil {
		return AliceHello{}, err
	}
	i.ephPriv = ephPriv
	return AliceHello{EphemeralPublic: ephPub, Signature: sig}, nil
}

// Finish performs step 3 (A.finish): verify B's transcript signature and
// compute the shared secret. Returns ErrIdentityInvalid on a bad signature,
// terminating the handshake with no retry.
func (i *Initiator) Finish(peerIdentityPublic []byte, hello BobHello) ([]byte, error) {
	if i.ephPriv == nil || i.done {
		return nil, ErrWrongState
	}
	if !primitives.Verify(peerIdentityPublic, transcript(hello.EphemeralPublic), hello.Signature) {
		return nil, ErrIdentityInvalid
	}
	ss, err := primitives.X25519DH(i.ephPriv, hello.EphemeralPublic)
	if err != nil {
		return nil, err
	}
	i.done = true
	return ss, nil
}

// Respond performs step 2 (B.respond) in a single call: verify A's
// transcript signature, generate B's own ephemeral pair, sign it, and
// derive the shared secret. Returns ErrIdentityInvalid on a bad signature.
func Respond(identitySeed, peerIdentityPublic []byte, hello AliceHello) (BobHello, []byte, error) {
	if !primitives.Verify(peerIdentityPublic, transcript(hello.EphemeralPublic), hello.Signature) {
		return BobHello{}, nil, ErrIdentityInvalid
	}
	ephPriv, err := primitives.RandomSeed()
	if err != nil {
		return BobHello{}, nil, err
	}
	ephPub, err := primitives.X25519Basepoint(ephPriv)
	if err != nil {
		return BobHello{}, nil, err
	}
	sig, err := primitives.Sign(identitySeed, transcript(ephPub))
	if err != nil {
		return BobHello{}, nil, err
	}
	ss, err := primitives.X25519DH(ephPriv, hello.EphemeralPublic)
	if err != nil {
		return BobHello{}, nil, err
	}
	return BobHello{EphemeralPublic: ephPub, Signature: sig}, ss, nil
}

func transcript(ephemeralPublic []byte) []byte {
	return append([]byte(TranscriptLabel), ephemeralPublic...)
}
