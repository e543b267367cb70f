package packetcodec

import (
	"errors"

	"github.com/nzcore-project/nzcore/internal/primitives"
)

// EncryptedVersion and EncryptedCipher identify the nz-crypto-01 envelope.
const (
	EncryptedVersion = "nz-crypto-01"
	EncryptedCipher  = "chacha20-poly1305"
)

// ErrPacketAuthFailed is raised on AEAD authentication failure during
// decryption.
var ErrPacketAuthFailed = errors.New("packetcodec: packet authentication failed")

// ErrUnsupportedEnvelope is raised when version or cipher don't match the
// fixed nz-crypto-01 values this codec supports.
var ErrUnsupportedEnvelope = errors.New("packetcodec: unsupported envelope version or cipher")

// EncryptedPacket is an AEAD-sealed packet between sender and receiver,
// keyed by a caller-supplied session key (e.g. a SecureChannel send key).
// Field names match the wire contract exactly so packets interoperate
// byte-for-byte with implementations that only see the JSON.
type EncryptedPacket struct {
	Version        string `json:"version"`
	Cipher         string `json:"cipher"`
	SenderNodeID   string `json:"sender_node_id"`
	ReceiverNodeID string `json:"receiver_node_id"`
	NonceB64       []byte `json:"nonce_b64"`
	TagB64         []byte `json:"tag_b64"`
	CiphertextB64  []byte `json:"ciphertext_b64"`
	Context        string `json:"context"`
}

// EncryptPacket seals plaintext with sessionKey, AAD = sender ‖ "->" ‖
// receiver, a fresh random 12-byte nonce. context is carried on the wire
// uninterpreted, for callers that want to label the packet's purpose
// (e.g. a channel or session identifier) without folding it into the AAD.
func EncryptPacket(sessionKey []byte, sender, receiver, context string, plaintext []byte) (*EncryptedPacket, error) {
	nonce, err := primitives.RandomNonce()
	if err != nil {
		return nil, err
	}
	aad := encryptedAAD(sender, receiver)
	sealed, err := primitives.AEADSeal(sessionKey, nonce, plaintext, aad)
	if err != nil {
		return nil, err
	}
	ciphertext, tag := splitSealedTag(sealed)
	return &EncryptedPacket{
		Version:        EncryptedVersion,
		Cipher:         EncryptedCipher,
		SenderNodeID:   sender,
		ReceiverNodeID: receiver,
		NonceB64:       nonce,
		TagB64:         tag,
		CiphertextB64:  ciphertext,
		Context:        context,
	}, nil
}

// DecryptPacket opens an EncryptedPacket, enforcing the fixed version and
// cipher before attempting the AEAD open.
func DecryptPacket(sessionKey []byte, pkt *EncryptedPacket) ([]byte, error) {
	if pkt.Version != EncryptedVersion || pkt.Cipher != EncryptedCipher {
		return nil, ErrUnsupportedEnvelope
	}
	aad := encryptedAAD(pkt.SenderNodeID, pkt.ReceiverNodeID)
	sealed := append(append([]byte(nil), pkt.CiphertextB64...), pkt.TagB64...)
	plaintext, err := primitives.AEADOpen(sessionKey, pkt.NonceB64, sealed, aad)
	if err != nil {
		return nil, ErrPacketAuthFailed
	}
	return plaintext, nil
}

func encryptedAAD(sender, receiver string) []byte {
	return []byte(sender + "->" + receiver)
}

// splitSealedTag splits AEADSeal's ciphertext||tag output into its two
// wire-separate parts: a 16-byte Poly1305 tag and the ciphertext it covers.
func splitSealedTag(sealed []byte) (ciphertext, tag []byte) {
	n := len(sealed) - 16
	return sealed[:n], sealed[n:]
}
