package framing

import "encoding/binary"

// FrameParser is a streaming decoder over an internal buffer: Feed appends
// newly arrived bytes, then greedily emits every complete frame found.
// Partial frames remain buffered until a later Feed completes them; no data
// is discarded on the happy path.
//
// On any structural error the parser resets its internal state (the buffer
// is dropped) and returns the error; the caller's connection must then
// close with reason frame_error.
type FrameParser struct {
	buf         []byte
	maxFrameSize int
}

// NewFrameParser constructs a parser with the given max_frame_size. A
// maxFrameSize of 0 selects DefaultMaxFrameSize.
func NewFrameParser(maxFrameSize int) *FrameParser {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &FrameParser{maxFrameSize: maxFrameSize}
}

// Feed appends data to the internal buffer and greedily decodes every
// complete frame now available.
func (p *FrameParser) Feed(data []byte) ([]Frame, error) {
	p.buf = append(p.buf, data...)

	var frames []Frame
	for {
		frame, consumed, err := p.tryParseOne()
		if err != nil {
			p.buf = nil
			return nil, err
		}
		if consumed == 0 {
			break
		}
		p.buf = p.buf[consumed:]
		frames = append(frames, frame)
	}
	return frames, nil
}

// tryParseOne attempts to decode a single frame from the head of p.buf.
// consumed == 0 means more bytes are needed; it is not an error.
func (p *FrameParser) tryParseOne() (frame Frame, consumed int, err error) {
	if len(p.buf) < HeaderLen {
		return Frame{}, 0, nil
	}
	magic := binary.BigEndian.Uint32(p.buf[0:4])
	if magic != Magic {
		return Frame{}, 0, ErrInvalidMagic
	}
	length := binary.BigEndian.Uint32(p.buf[4:8])
	if length < 6 {
		return Frame{}, 0, ErrCorrupted
	}
	if int(length) > p.maxFrameSize {
		return Frame{}, 0, ErrFrameTooLarge
	}
	totalSize := 4 + int(length) // magic(4) + length field's own 6 + payload
	if len(p.buf) < totalSize {
		return Frame{}, 0, nil // partial frame: wait for more bytes
	}

	typ := MessageType(p.buf[8])
	if !validMessageType(typ) {
		return Frame{}, 0, ErrInvalidType
	}
	flags := MessageFlags(p.buf[9])
	payloadLen := int(length) - 6
	payload := append([]byte(nil), p.buf[HeaderLen:HeaderLen+payloadLen]...)

	return Frame{Type: typ, Flags: flags, Payload: payload}, totalSize, nil
}

func validMessageType(t MessageType) bool {
	return t >= TypeData && t <= TypeCompressed
}
