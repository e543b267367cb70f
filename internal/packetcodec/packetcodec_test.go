package packetcodec

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/nzcore-project/nzcore/internal/primitives"
)

func TestCanonicalJSONKeyOrdering(t *testing.T) {
	v := map[string]any{"b": 1, "a": 2, "c": map[string]any{"z": 1, "y": 2}}
	got, err := CanonicalJSON(v)
	if err != nil {
		t.Fatalf("canonical json failed: %v", err)
	}
	want := `{"a":2,"b":1,"c":{"y":2,"z":1}}`
	if string(got) != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestCanonicalJSONOmitsNilFields(t *testing.T) {
	v := map[string]any{"a": 1, "b": nil}
	got, err := CanonicalJSON(v)
	if err != nil {
		t.Fatalf("canonical json failed: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("got %s", got)
	}
}

func identitySeed(t *testing.T) ([]byte, []byte) {
	t.Helper()
	seed, err := primitives.RandomSeed()
	if err != nil {
		t.Fatalf("random seed failed: %v", err)
	}
	pub, err := primitives.PublicFromSeed(seed)
	if err != nil {
		t.Fatalf("public from seed failed: %v", err)
	}
	return seed, pub
}

func TestSignedPacketRoundTrip(t *testing.T) {
	seed, pub := identitySeed(t)
	pkt, err := SignPacket("node-a", seed, map[string]any{"hello": "world"})
	if err != nil {
		t.Fatalf("sign packet failed: %v", err)
	}

	resolver := func(nodeID string) ([]byte, bool) {
		if nodeID == "node-a" {
			return pub, true
		}
		return nil, false
	}
	if err := VerifySignedPacket(pkt, 0, resolver, nil); err != nil {
		t.Fatalf("verify signed packet failed: %v", err)
	}
}

func TestSignedPacketRejectsUnknownNode(t *testing.T) {
	seed, _ := identitySeed(t)
	pkt, err := SignPacket("node-a", seed, map[string]any{"hello": "world"})
	if err != nil {
		t.Fatalf("sign packet failed: %v", err)
	}
	resolver := func(string) ([]byte, bool) { return nil, false }
	err = VerifySignedPacket(pkt, 0, resolver, nil)
	var verr *VerifyError
	if err == nil {
		t.Fatal("expected an error")
	}
	if !asVerifyError(err, &verr) || verr.Reason != ReasonUnknownNode {
		t.Fatalf("expected ReasonUnknownNode, got %v", err)
	}
}

func TestSignedPacketRejectsReplayNonce(t *testing.T) {
	seed, pub := identitySeed(t)
	pkt, err := SignPacket("node-a", seed, map[string]any{"hello": "world"})
	if err != nil {
		t.Fatalf("sign packet failed: %v", err)
	}
	resolver := func(string) ([]byte, bool) { return pub, true }
	seen := func(nodeID, nonce string) bool { return true }
	err = VerifySignedPacket(pkt, 0, resolver, seen)
	var verr *VerifyError
	if !asVerifyError(err, &verr) || verr.Reason != ReasonReplayNonce {
		t.Fatalf("expected ReasonReplayNonce, got %v", err)
	}
}

func TestRoutingPacketRoundTrip(t *testing.T) {
	seed, pub := identitySeed(t)
	pkt, err := SignRoutingPacket("node-a", seed, map[string]any{"op": "find_node"})
	if err != nil {
		t.Fatalf("sign routing packet failed: %v", err)
	}
	resolver := func(string) ([]byte, bool) { return pub, true }
	if err := VerifyRoutingPacket(pkt, 0, resolver); err != nil {
		t.Fatalf("verify routing packet failed: %v", err)
	}
}

func TestRoutingPacketRejectsWrongVersion(t *testing.T) {
	seed, pub := identitySeed(t)
	pkt, err := SignRoutingPacket("node-a", seed, map[string]any{"op": "find_node"})
	if err != nil {
		t.Fatalf("sign routing packet failed: %v", err)
	}
	pkt.Version = "nz-routing-crypto-00"
	resolver := func(string) ([]byte, bool) { return pub, true }
	err = VerifyRoutingPacket(pkt, 0, resolver)
	var rerr *RoutingVerifyError
	if !asRoutingVerifyError(err, &rerr) || rerr.Reason != RoutingReasonUnsupportedVersion {
		t.Fatalf("expected RoutingReasonUnsupportedVersion, got %v", err)
	}
}

func TestEncryptedPacketRoundTrip(t *testing.T) {
	key, err := primitives.RandomSeed()
	if err != nil {
		t.Fatalf("random seed failed: %v", err)
	}
	pkt, err := EncryptPacket(key, "node-a", "node-b", "nz/test", []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt packet failed: %v", err)
	}
	plaintext, err := DecryptPacket(key, pkt)
	if err != nil {
		t.Fatalf("decrypt packet failed: %v", err)
	}
	if !bytes.Equal(plaintext, []byte("payload")) {
		t.Fatalf("unexpected plaintext: %q", plaintext)
	}
}

func TestEncryptedPacketRejectsWrongVersion(t *testing.T) {
	key, err := primitives.RandomSeed()
	if err != nil {
		t.Fatalf("random seed failed: %v", err)
	}
	pkt, err := EncryptPacket(key, "node-a", "node-b", "nz/test", []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt packet failed: %v", err)
	}
	pkt.Version = "nz-crypto-00"
	if _, err := DecryptPacket(key, pkt); err != ErrUnsupportedEnvelope {
		t.Fatalf("expected ErrUnsupportedEnvelope, got %v", err)
	}
}

func TestEncryptedPacketWireFieldNames(t *testing.T) {
	key, err := primitives.RandomSeed()
	if err != nil {
		t.Fatalf("random seed failed: %v", err)
	}
	pkt, err := EncryptPacket(key, "node-a", "node-b", "nz/test", []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt packet failed: %v", err)
	}
	raw, err := json.Marshal(pkt)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, field := range []string{
		"version", "cipher", "sender_node_id", "receiver_node_id",
		"nonce_b64", "tag_b64", "ciphertext_b64", "context",
	} {
		if _, ok := doc[field]; !ok {
			t.Fatalf("wire document missing field %q: %s", field, raw)
		}
	}
	if len(pkt.TagB64) != 16 {
		t.Fatalf("expected 16-byte tag, got %d", len(pkt.TagB64))
	}
}

func asVerifyError(err error, target **VerifyError) bool {
	v, ok := err.(*VerifyError)
	if !ok {
		return false
	}
	*target = v
	return true
}

func asRoutingVerifyError(err error, target **RoutingVerifyError) bool {
	v, ok := err.(*RoutingVerifyError)
	if !ok {
		return false
	}
	*target = v
	return true
}
