package packetcodec

import (
	"encoding/base64"
	"time"

	"github.com/nzcore-project/nzcore/internal/primitives"
)

// RoutingVersion identifies the nz-routing-crypto-01 envelope format.
const RoutingVersion = "nz-routing-crypto-01"

// RoutingVerifyReason is the stable failure taxonomy for the routing-packet
// envelope, distinct from the signed-packet taxonomy because the wire
// shapes (and hence failure points) differ.
type RoutingVerifyReason string

const (
	RoutingReasonUnsupportedVersion RoutingVerifyReason = "unsupported-version"
	RoutingReasonMissingNodeID      RoutingVerifyReason = "missing-node-id"
	RoutingReasonInvalidTimestamp   RoutingVerifyReason = "invalid-ts"
	RoutingReasonInvalidNonce       RoutingVerifyReason = "invalid-nonce"
	RoutingReasonMissingSignature   RoutingVerifyReason = "missing-signature"
	RoutingReasonTimestampSkew      RoutingVerifyReason = "ts-skew"
	RoutingReasonUnknownNode        RoutingVerifyReason = "unknown-node"
	RoutingReasonInvalidSignature   RoutingVerifyReason = "invalid-signature"
)

// RoutingVerifyError carries a stable routing-packet reason code.
type RoutingVerifyError struct {
	Reason RoutingVerifyReason
}

func (e *RoutingVerifyError) Error() string { return string(e.Reason) }

func routingErr(reason RoutingVerifyReason) error { return &RoutingVerifyError{Reason: reason} }

// RoutingPacket signs {version,node_id,ts_ms,nonce,payload} directly, with
// no separate auth sub-object.
type RoutingPacket struct {
	Version   string `json:"version"`
	NodeID    string `json:"node_id"`
	TimestampMillis int64 `json:"ts_ms"`
	Nonce     string `json:"nonce"`
	Payload   any    `json:"payload"`
	Signature string `json:"signature,omitempty"`
}

// SignRoutingPacket builds a RoutingPacket with a fresh nonce and current
// millisecond timestamp.
func SignRoutingPacket(nodeID string, identitySeed []byte, payload any) (*RoutingPacket, error) {
	nonce, err := primitives.RandomHex(16)
	if err != nil {
		return nil, err
	}
	pkt := &RoutingPacket{
		Version:         RoutingVersion,
		NodeID:          nodeID,
		TimestampMillis: time.Now().UnixMilli(),
		Nonce:           nonce,
		Payload:         payload,
	}
	canon, err := CanonicalJSON(normalizeForCanonical(routingSigningMap(pkt)))
	if err != nil {
		return nil, err
	}
	sig, err := primitives.Sign(identitySeed, canon)
	if err != nil {
		return nil, err
	}
	pkt.Signature = base64.StdEncoding.EncodeToString(sig)
	return pkt, nil
}

// VerifyRoutingPacket implements the routing-packet verification chain.
func VerifyRoutingPacket(pkt *RoutingPacket, maxSkewSec int64, resolveKey NodeKeyResolver) error {
	if pkt == nil || pkt.Version != RoutingVersion {
		return routingErr(RoutingReasonUnsupportedVersion)
	}
	if pkt.NodeID == "" {
		return routingErr(RoutingReasonMissingNodeID)
	}
	if pkt.TimestampMillis <= 0 {
		return routingErr(RoutingReasonInvalidTimestamp)
	}
	if pkt.Nonce == "" {
		return routingErr(RoutingReasonInvalidNonce)
	}
	if pkt.Signature == "" {
		return routingErr(RoutingReasonMissingSignature)
	}
	if maxSkewSec <= 0 {
		maxSkewSec = DefaultMaxSkewSeconds
	}
	nowMillis := time.Now().UnixMilli()
	skewMillis := nowMillis - pkt.TimestampMillis
	if skewMillis < 0 {
		skewMillis = -skewMillis
	}
	if skewMillis > maxSkewSec*1000 {
		return routingErr(RoutingReasonTimestampSkew)
	}

	pubKey, ok := resolveKey(pkt.NodeID)
	if !ok {
		return routingErr(RoutingReasonUnknownNode)
	}

	canon, err := CanonicalJSON(normalizeForCanonical(routingSigningMap(pkt)))
	if err != nil {
		return err
	}
	sig, err := base64.StdEncoding.DecodeString(pkt.Signature)
	if err != nil {
		return routingErr(RoutingReasonInvalidSignature)
	}
	if !primitives.Verify(pubKey, canon, sig) {
		return routingErr(RoutingReasonInvalidSignature)
	}
	return nil
}

func routingSigningMap(pkt *RoutingPacket) map[string]any {
	return map[string]any{
		"version": pkt.Version,
		"node_id": pkt.NodeID,
		"ts_ms":   pkt.TimestampMillis,
		"nonce":   pkt.Nonce,
		"payload": pkt.Payload,
	}
}
