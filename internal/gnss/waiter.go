package gnss

import (
	"bytes"
	"context"
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/ubx"
)

var now = time.Now

// Result is the outcome of one command send.
type Result int

const (
	Timeout Result = iota
	Ack
	Nak
)

func (r Result) String() string {
	switch r {
	case Ack:
		return "ack"
	case Nak:
		return "nak"
	default:
		return "timeout"
	}
}

func (r Result) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// ackPrefix is the start of both markers, B5 62 05 01 (ACK) and
// B5 62 05 00 (NAK).
var ackPrefix = []byte{ubx.Sync1, ubx.Sync2, ubx.ClassACK}

// ackFrameLen is an ACK-ACK/NAK on the wire: header, 2 byte payload, checksum.
const ackFrameLen = ubx.Overhead + 2

// Waiter polls a transport for the acknowledgment of one command.
type Waiter struct {
	Transport    Transport
	PollInterval time.Duration
	MaxRead      int
	// Forward, if set, receives every byte read while waiting so that
	// interleaved NMEA and UBX output is not lost.
	Forward      func([]byte)
}

// Wait returns Ack or Nak once a matching marker is read, or Timeout once the
// deadline passes or ctx is done. It never sleeps past the deadline.
func (w *Waiter) Wait(ctx context.Context, class, id uint8, deadline time.Time) Result {
	interval := w.PollInterval
	if interval <= 0 {
		interval = DefaultAckPoll
	}
	maxRead := w.MaxRead
	if maxRead <= 0 {
		maxRead = DefaultMaxRead
	}

	var scratch []byte
	for {
		if n := int(w.Transport.QueryAvailable()); n > 0 {
			if n > maxRead {
				n = maxRead
			}
			p := w.Transport.ReadChunk(n)
			if len(p) > 0 {
				if w.Forward != nil {
					w.Forward(p)
				}
				scratch = append(scratch, p...)
				if r, ok := scanAck(scratch, class, id); ok {
					return r
				}
				// Keep enough tail for a marker split across reads.
				if keep := ackFrameLen - 1; len(scratch) > keep {
					scratch = append(scratch[:0], scratch[len(scratch)-keep:]...)
				}
			}
		}

		remaining := deadline.Sub(now())
		if remaining <= 0 {
			return Timeout
		}
		if remaining > interval {
			remaining = interval
		}
		if !sleepCtx(ctx, remaining) {
			return Timeout
		}
	}
}

// scanAck finds the first ACK or NAK in b that names class/id. Markers for
// other messages are skipped. A marker whose class/id bytes have not arrived
// yet reports no match so the caller reads more.
func scanAck(b []byte, class, id uint8) (Result, bool) {
	for off := 0; off+len(ackPrefix) < len(b); {
		i := bytes.Index(b[off:], ackPrefix)
		if i < 0 || off+i+len(ackPrefix) >= len(b) {
			return Timeout, false
		}
		at := off + i
		var r Result
		switch b[at+3] {
		case ubx.IDAckAck:
			r = Ack
		case ubx.IDAckNak:
			r = Nak
		default:
			off = at + 1
			continue
		}
		pl := at + ubx.HeaderLen
		if pl+2 > len(b) {
			return Timeout, false
		}
		if b[pl] != class || b[pl+1] != id {
			off = at + 1
			continue
		}
		return r, true
	}
	return Timeout, false
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
