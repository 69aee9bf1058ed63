// Package ubx encodes and decodes u-blox UBX binary frames.
//
// Wire layout: 0xB5 0x62 class id len_lo len_hi payload... ck_a ck_b.
// The checksum covers class, id, both length bytes and the payload; leaving
// out the length bytes makes the receiver drop the command silently.
package ubx

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	Sync1 = 0xB5
	Sync2 = 0x62

	// HeaderLen is sync(2) + class + id + length(2).
	HeaderLen = 6
	// Overhead is HeaderLen plus the two checksum bytes.
	Overhead = HeaderLen + 2

	// MaxPayload bounds what Decode and the stream assembler accept. The
	// largest message handled here is NAV-SAT with 255 satellites (3068 bytes).
	MaxPayload = 4096
)

// Frame is one UBX message.
type Frame struct {
	Class   uint8
	ID      uint8
	Payload []byte
}

func (f Frame) Is(class, id uint8) bool { return f.Class == class && f.ID == id }

func (f Frame) String() string {
	return fmt.Sprintf("%s len=%d", Name(f.Class, f.ID), len(f.Payload))
}

// Equal reports whether two frames carry the same class, id and payload.
func (f Frame) Equal(o Frame) bool {
	return f.Class == o.Class && f.ID == o.ID && bytes.Equal(f.Payload, o.Payload)
}

// Checksum returns the 8-bit Fletcher checksum over class, id, the little
// endian payload length and the payload.
func Checksum(class, id uint8, payload []byte) (ckA, ckB uint8) {
	n := len(payload)
	for _, b := range [4]byte{class, id, byte(n), byte(n >> 8)} {
		ckA += b
		ckB += ckA
	}
	for _, b := range payload {
		ckA += b
		ckB += ckA
	}
	return ckA, ckB
}

// Encode builds the wire frame for f.
func Encode(f Frame) []byte {
	buf := make([]byte, 0, Overhead+len(f.Payload))
	buf = append(buf, Sync1, Sync2, f.Class, f.ID)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(f.Payload)))
	buf = append(buf, f.Payload...)
	ckA, ckB := Checksum(f.Class, f.ID, f.Payload)
	return append(buf, ckA, ckB)
}

// FrameLen returns the total wire length of the frame starting at b[0], or
// false if the header is not yet complete or does not start with the sync
// marker.
func FrameLen(b []byte) (int, bool) {
	if len(b) < HeaderLen || b[0] != Sync1 || b[1] != Sync2 {
		return 0, false
	}
	return int(binary.LittleEndian.Uint16(b[4:6])) + Overhead, true
}

// Decode parses exactly one wire frame. It fails on a wrong sync marker, a
// length field that disagrees with len(b), or a checksum mismatch. The
// returned payload is a copy.
func Decode(b []byte) (Frame, bool) {
	total, ok := FrameLen(b)
	if !ok || total != len(b) {
		return Frame{}, false
	}
	class, id := b[2], b[3]
	payload := b[HeaderLen : total-2]
	ckA, ckB := Checksum(class, id, payload)
	if b[total-2] != ckA || b[total-1] != ckB {
		return Frame{}, false
	}
	return Frame{Class: class, ID: id, Payload: append([]byte(nil), payload...)}, true
}
