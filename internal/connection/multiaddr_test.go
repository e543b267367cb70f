package connection

import "testing"

func TestFormatAndParsePeerMultiaddrRoundTrip(t *testing.T) {
	s, err := FormatPeerMultiaddr("203.0.113.9", 4001)
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}
	host, port, err := ParsePeerMultiaddr(s)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if host != "203.0.113.9" || port != 4001 {
		t.Fatalf("unexpected round trip: host=%q port=%d", host, port)
	}
}

func TestParsePeerMultiaddrRejectsMissingComponents(t *testing.T) {
	if _, _, err := ParsePeerMultiaddr("/ip4/203.0.113.9"); err == nil {
		t.Fatal("expected an error for a multiaddr missing a transport component")
	}
}
