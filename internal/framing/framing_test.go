package framing

import (
	"bytes"
	"testing"
)

func TestEncodeMatchesTestVector(t *testing.T) {
	got := Encode(Frame{Type: TypeData, Flags: 0, Payload: []byte("hello")})
	want := []byte{0x4E, 0x5A, 0x43, 0x4F, 0x00, 0x00, 0x00, 0x0B, 0x01, 0x00, 0x68, 0x65, 0x6C, 0x6C, 0x6F}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X want % X", got, want)
	}
}

func TestFrameParserRoundTrip(t *testing.T) {
	parser := NewFrameParser(0)
	wire := Encode(Frame{Type: TypeData, Flags: 0, Payload: []byte("hello")})

	frames, err := parser.Feed(wire)
	if err != nil {
		t.Fatalf("feed failed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Type != TypeData || !bytes.Equal(frames[0].Payload, []byte("hello")) {
		t.Fatalf("unexpected frame: %+v", frames[0])
	}
}

func TestFrameParserHandlesPartialReads(t *testing.T) {
	parser := NewFrameParser(0)
	wire := Encode(Frame{Type: TypePing, Flags: FlagRequestAck, Payload: []byte("ping-payload")})

	frames, err := parser.Feed(wire[:5])
	if err != nil {
		t.Fatalf("feed failed: %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("expected no frames from a partial header, got %d", len(frames))
	}

	frames, err = parser.Feed(wire[5:])
	if err != nil {
		t.Fatalf("feed failed: %v", err)
	}
	if len(frames) != 1 || frames[0].Type != TypePing {
		t.Fatalf("unexpected frames after completing the read: %+v", frames)
	}
}

func TestFrameParserDecodesMultipleFramesFromOneFeed(t *testing.T) {
	parser := NewFrameParser(0)
	wire := append(
		Encode(Frame{Type: TypeData, Flags: 0, Payload: []byte("one")}),
		Encode(Frame{Type: TypeData, Flags: 0, Payload: []byte("two")})...,
	)
	frames, err := parser.Feed(wire)
	if err != nil {
		t.Fatalf("feed failed: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if !bytes.Equal(frames[0].Payload, []byte("one")) || !bytes.Equal(frames[1].Payload, []byte("two")) {
		t.Fatalf("unexpected payloads: %+v", frames)
	}
}

func TestFrameParserRejectsInvalidMagicAndResets(t *testing.T) {
	parser := NewFrameParser(0)
	bad := []byte{0, 0, 0, 0, 0, 0, 0, 6, byte(TypeData), 0}
	if _, err := parser.Feed(bad); err != ErrInvalidMagic {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}

	good := Encode(Frame{Type: TypeData, Payload: []byte("x")})
	frames, err := parser.Feed(good)
	if err != nil {
		t.Fatalf("feed after reset failed: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected parser to resume cleanly after a reset, got %d frames", len(frames))
	}
}

func TestFrameParserRejectsOversizedFrame(t *testing.T) {
	parser := NewFrameParser(32)
	wire := Encode(Frame{Type: TypeData, Payload: make([]byte, 64)})
	if _, err := parser.Feed(wire); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestFrameParserAcceptsFrameAtExactMaxFrameSize(t *testing.T) {
	const maxFrameSize = 32
	parser := NewFrameParser(maxFrameSize)
	wire := Encode(Frame{Type: TypeData, Payload: make([]byte, maxFrameSize-6)})
	frames, err := parser.Feed(wire)
	if err != nil {
		t.Fatalf("expected a frame whose length field equals max_frame_size to parse, got %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
}

func TestFrameParserRejectsInvalidType(t *testing.T) {
	parser := NewFrameParser(0)
	wire := Encode(Frame{Type: TypeData, Payload: []byte("x")})
	wire[8] = 0 // no message type is defined as 0
	if _, err := parser.Feed(wire); err != ErrInvalidType {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
}
