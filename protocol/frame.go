package protocol

import (
	"errors"
	"fmt"
)

// Wire layout: STX CMD ASK LEN ETX CHECKSUM DATA(LEN bytes).
const headerLen = 6

var (
	// ErrShortFrame is returned when an inbound frame is smaller than the
	// fixed six byte header.
	ErrShortFrame = errors.New("protocol: frame shorter than header")
	// ErrTruncatedFrame is returned when a frame declares more payload bytes
	// than it carries.
	ErrTruncatedFrame = errors.New("protocol: frame payload truncated")
	// ErrPayloadTooLarge is returned by Encode when the payload exceeds the
	// single LEN byte of the frame header.
	ErrPayloadTooLarge = errors.New("protocol: payload exceeds 255 bytes")
)

// Response is a decoded inbound notification.
type Response struct {
	Cmd     byte
	Status  Status
	DataLen int
	Payload []byte
}

// Checksum returns the low byte of the sum of every byte in b.
func Checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

// Encode builds an outbound command frame. The checksum covers the five
// header bytes preceding it plus every data byte. The payload must fit the
// single LEN byte.
func Encode(cmd byte, data []byte) ([]byte, error) {
	if len(data) > 0xFF {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(data))
	}
	frame := make([]byte, headerLen+len(data))
	frame[0] = STX
	frame[1] = cmd
	frame[2] = 0x00
	frame[3] = byte(len(data))
	frame[4] = ETX
	frame[5] = Checksum(frame[:5]) + Checksum(data)
	copy(frame[headerLen:], data)
	return frame, nil
}

// Decode extracts command, status and payload from a raw notification.
// The receiver trusts the link: the magic bytes and checksum are not
// re-validated, only the bounds are guarded so corrupt frames surface as an
// error instead of a panic.
func Decode(raw []byte) (Response, error) {
	if len(raw) < headerLen {
		return Response{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(raw))
	}
	n := int(raw[3])
	if len(raw) < headerLen+n {
		return Response{}, fmt.Errorf("%w: declared %d, carried %d", ErrTruncatedFrame, n, len(raw)-headerLen)
	}
	return Response{
		Cmd:     raw[1],
		Status:  Status(raw[2]),
		DataLen: n,
		Payload: raw[headerLen : headerLen+n],
	}, nil
}
