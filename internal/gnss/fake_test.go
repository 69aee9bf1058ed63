package gnss

import (
	"errors"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/ubx"
)

// fakeTransport serves rx, refilled from script one entry at a time, and
// answers writes through respond.
type fakeTransport struct {
	rx      []byte
	script  [][]byte
	writes  [][]byte
	respond func(f ubx.Frame) []byte
	failW   bool
	closed  int
}

func (f *fakeTransport) QueryAvailable() uint16 {
	if len(f.rx) == 0 && len(f.script) > 0 {
		f.rx = append(f.rx, f.script[0]...)
		f.script = f.script[1:]
	}
	if len(f.rx) > 0xFFFE {
		return 0xFFFE
	}
	return uint16(len(f.rx))
}

func (f *fakeTransport) ReadChunk(n int) []byte {
	if n > len(f.rx) {
		n = len(f.rx)
	}
	out := append([]byte(nil), f.rx[:n]...)
	f.rx = f.rx[n:]
	return out
}

func (f *fakeTransport) WriteChunk(p []byte) (int, error) {
	if f.failW {
		return 0, errors.New("nack")
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	if f.respond != nil {
		if fr, ok := ubx.Decode(p); ok {
			f.rx = append(f.rx, f.respond(fr)...)
		}
	}
	return len(p), nil
}

func (f *fakeTransport) Close() error {
	f.closed++
	return nil
}

func ackFor(class, id uint8) []byte {
	return ubx.Encode(ubx.Frame{Class: ubx.ClassACK, ID: ubx.IDAckAck, Payload: []byte{class, id}})
}

func nakFor(class, id uint8) []byte {
	return ubx.Encode(ubx.Frame{Class: ubx.ClassACK, ID: ubx.IDAckNak, Payload: []byte{class, id}})
}

func nmeaLine(payload string) string {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	const hex = "0123456789ABCDEF"
	return "$" + payload + "*" + string(hex[ck>>4]) + string(hex[ck&0x0F]) + "\r\n"
}

var (
	rmcActive = nmeaLine("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W")
	ggaFix    = nmeaLine("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")
)
