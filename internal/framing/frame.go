// Package framing implements a fixed 10-byte-header binary framing, in the
// style of a Tor-cell reader/writer: a byte-slice-backed Frame type plus a
// streaming FrameParser that buffers partial reads.
package framing

import (
	"encoding/binary"
	"errors"
)

// Magic identifies an nzcore frame header.
const Magic uint32 = 0x4E5A434F

// HeaderLen is the fixed header size: magic(4) + length(4) + type(1) + flags(1).
const HeaderLen = 10

// DefaultMaxFrameSize bounds a single frame's length field (6 + payload
// length: every byte after the 4-byte magic); callers may configure a
// different ceiling, but the default caps it at 16 MiB.
const DefaultMaxFrameSize = 16 * 1024 * 1024

// MessageType enumerates the frame's application-visible kind.
type MessageType uint8

const (
	TypeData        MessageType = 1
	TypeControl     MessageType = 2
	TypePing        MessageType = 3
	TypePong        MessageType = 4
	TypeHandshake   MessageType = 5
	TypeAck         MessageType = 6
	TypeError       MessageType = 7
	TypeDisconnect  MessageType = 8
	TypeFragmented  MessageType = 9
	TypeCompressed  MessageType = 10
)

// MessageFlags is a bitfield of frame-level flags.
type MessageFlags uint8

const (
	FlagCompressed   MessageFlags = 0x01
	FlagEncrypted    MessageFlags = 0x02
	FlagPriority     MessageFlags = 0x04
	FlagRequestAck   MessageFlags = 0x08
	FlagLastFragment MessageFlags = 0x10
	FlagFirstFragment MessageFlags = 0x20
)

func (f MessageFlags) Has(bit MessageFlags) bool { return f&bit != 0 }

// Frame is one parsed nzcore frame.
type Frame struct {
	Type    MessageType
	Flags   MessageFlags
	Payload []byte
}

// Encode serializes f to the wire format: MAGIC | length:u32 BE | type:u8 |
// flags:u8 | payload, where length = 6 + len(payload).
func Encode(f Frame) []byte {
	length := uint32(6 + len(f.Payload))
	buf := make([]byte, HeaderLen+len(f.Payload))
	binary.BigEndian.PutUint32(buf[0:4], Magic)
	binary.BigEndian.PutUint32(buf[4:8], length)
	buf[8] = byte(f.Type)
	buf[9] = byte(f.Flags)
	copy(buf[HeaderLen:], f.Payload)
	return buf
}

// Frame-level structural errors. Any of these require the containing
// connection to close with reason frame_error.
var (
	ErrInvalidMagic   = errors.New("framing: invalid magic")
	ErrFrameTooLarge  = errors.New("framing: frame exceeds max_frame_size")
	ErrInvalidType    = errors.New("framing: invalid message type")
	ErrCorrupted      = errors.New("framing: corrupted frame")
)
