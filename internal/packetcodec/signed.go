package packetcodec

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/nzcore-project/nzcore/internal/primitives"
)

// VerifyReason is the stable taxonomy of signed-packet rejection reasons.
type VerifyReason string

const (
	ReasonMissingAuthOrBody  VerifyReason = "missing_auth_or_body"
	ReasonMissingAuthFields  VerifyReason = "missing_auth_fields"
	ReasonTimestampOutOfRng  VerifyReason = "timestamp_out_of_range"
	ReasonReplayNonce        VerifyReason = "replay_nonce"
	ReasonBodyHashMismatch   VerifyReason = "body_hash_mismatch"
	ReasonUnknownNode        VerifyReason = "unknown_node"
	ReasonInvalidSignature   VerifyReason = "invalid_signature"
	DefaultMaxSkewSeconds                 = 300
)

// VerifyError carries a stable reason code; Error returns that code.
type VerifyError struct {
	Reason VerifyReason
}

func (e *VerifyError) Error() string { return string(e.Reason) }

func verifyErr(reason VerifyReason) error { return &VerifyError{Reason: reason} }

// Auth is the signed envelope header.
type Auth struct {
	NodeID    string `json:"node_id"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
	BodyHash  string `json:"body_hash"`
	Signature string `json:"signature,omitempty"`
}

// SignedPacket is the outer envelope: auth header plus an arbitrary body.
type SignedPacket struct {
	Auth Auth `json:"auth"`
	Body any  `json:"body"`
}

// NodeKeyResolver looks up a node's Ed25519 public key by ID.
type NodeKeyResolver func(nodeID string) ([]byte, bool)

// NonceSeenOracle reports whether (nodeID, nonce) has already been
// consumed; a nil oracle disables replay checking.
type NonceSeenOracle func(nodeID, nonce string) bool

// SignPacket builds a SignedPacket: body_hash over the canonical body, an
// auth header with a fresh random nonce and current timestamp, then an
// Ed25519 signature over the canonical auth hash.
func SignPacket(nodeID string, identitySeed []byte, body any) (*SignedPacket, error) {
	bodyHash, err := canonicalSHA256Hex(body)
	if err != nil {
		return nil, err
	}
	nonce, err := primitives.RandomHex(16)
	if err != nil {
		return nil, err
	}
	auth := Auth{
		NodeID:    nodeID,
		Timestamp: time.Now().Unix(),
		Nonce:     nonce,
		BodyHash:  bodyHash,
	}
	authHash, err := canonicalSHA256Hex(authToMap(auth, false))
	if err != nil {
		return nil, err
	}
	sig, err := primitives.Sign(identitySeed, []byte(authHash))
	if err != nil {
		return nil, err
	}
	auth.Signature = base64.StdEncoding.EncodeToString(sig)
	return &SignedPacket{Auth: auth, Body: body}, nil
}

// VerifySignedPacket runs the full incoming verification chain, returning
// a *VerifyError with a stable reason on rejection.
func VerifySignedPacket(pkt *SignedPacket, maxSkewSec int64, resolveKey NodeKeyResolver, seenNonce NonceSeenOracle) error {
	if pkt == nil || pkt.Body == nil {
		return verifyErr(ReasonMissingAuthOrBody)
	}
	if pkt.Auth.NodeID == "" || pkt.Auth.Timestamp == 0 || pkt.Auth.Nonce == "" || pkt.Auth.BodyHash == "" || pkt.Auth.Signature == "" {
		return verifyErr(ReasonMissingAuthFields)
	}
	if maxSkewSec <= 0 {
		maxSkewSec = DefaultMaxSkewSeconds
	}
	now := time.Now().Unix()
	skew := now - pkt.Auth.Timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew > maxSkewSec {
		return verifyErr(ReasonTimestampOutOfRng)
	}
	if seenNonce != nil && seenNonce(pkt.Auth.NodeID, pkt.Auth.Nonce) {
		return verifyErr(ReasonReplayNonce)
	}

	wantBodyHash, err := canonicalSHA256Hex(pkt.Body)
	if err != nil {
		return err
	}
	if wantBodyHash != pkt.Auth.BodyHash {
		return verifyErr(ReasonBodyHashMismatch)
	}

	pubKey, ok := resolveKey(pkt.Auth.NodeID)
	if !ok {
		return verifyErr(ReasonUnknownNode)
	}

	authHash, err := canonicalSHA256Hex(authToMap(pkt.Auth, false))
	if err != nil {
		return err
	}
	sig, err := base64.StdEncoding.DecodeString(pkt.Auth.Signature)
	if err != nil {
		return verifyErr(ReasonInvalidSignature)
	}
	if !primitives.Verify(pubKey, []byte(authHash), sig) {
		return verifyErr(ReasonInvalidSignature)
	}
	return nil
}

func authToMap(a Auth, withSignature bool) map[string]any {
	m := map[string]any{
		"node_id":   a.NodeID,
		"timestamp": a.Timestamp,
		"nonce":     a.Nonce,
		"body_hash": a.BodyHash,
	}
	if withSignature && a.Signature != "" {
		m["signature"] = a.Signature
	}
	return m
}

func canonicalSHA256Hex(v any) (string, error) {
	canon, err := CanonicalJSON(normalizeForCanonical(v))
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}
