// Package stream splits the interleaved DDC byte stream into NMEA lines and
// UBX frames.
//
// The receiver emits both protocols on one port with no separator between
// them. Bytes are consumed in arrival order: a UBX sync marker starts a binary
// frame, a newline ends a text line, and everything else accumulates into the
// current line. Corrupt frames are resynchronized one byte later and bad lines
// are dropped; nothing here returns an error.
package stream

import (
	"strings"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/ubx"
)

// MaxLine bounds one text line. NMEA 0183 caps sentences at 82 characters;
// the rest is headroom for proprietary $PUBX output.
const MaxLine = 256

type Kind int

const (
	KindLine Kind = iota + 1
	KindFrame
)

func (k Kind) String() string {
	switch k {
	case KindLine:
		return "line"
	case KindFrame:
		return "frame"
	default:
		return "unknown"
	}
}

// Message is one extracted unit in stream order.
type Message struct {
	Kind  Kind
	Line  string
	Frame ubx.Frame
}

// Stats counts what the assembler produced and threw away.
type Stats struct {
	Lines          uint64 `json:"lines"`
	Frames         uint64 `json:"frames"`
	LinesDropped   uint64 `json:"lines_dropped"`
	FramesRejected uint64 `json:"frames_rejected"`
	BytesDiscarded uint64 `json:"bytes_discarded"`
}

// Assembler is not safe for concurrent use.
type Assembler struct {
	buf   []byte // unconsumed input; starts with a partial frame when waiting
	line  []byte // current text line, without terminator
	queue []Message
	stats Stats
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Ingest appends p and extracts every complete line and frame it can.
func (a *Assembler) Ingest(p []byte) {
	if len(p) == 0 {
		return
	}
	a.buf = append(a.buf, p...)
	a.scan()
}

func (a *Assembler) scan() {
	for len(a.buf) > 0 {
		if a.buf[0] == ubx.Sync1 {
			if len(a.buf) < 2 {
				return
			}
			if a.buf[1] == ubx.Sync2 {
				if !a.takeFrame() {
					return
				}
				continue
			}
			a.discard(1)
			continue
		}

		i := indexBoundary(a.buf)
		if i < 0 {
			a.appendLine(a.buf)
			a.buf = a.buf[:0]
			return
		}
		a.appendLine(a.buf[:i])
		if a.buf[i] == '\n' {
			a.finishLine()
			a.consume(i + 1)
			continue
		}
		a.consume(i)
	}
}

// takeFrame handles a buffer starting with B5 62. It returns false when more
// input is needed.
func (a *Assembler) takeFrame() bool {
	total, ok := ubx.FrameLen(a.buf)
	if !ok {
		return false
	}
	if total-ubx.Overhead > ubx.MaxPayload {
		a.stats.FramesRejected++
		a.discard(1)
		return true
	}
	if len(a.buf) < total {
		return false
	}
	f, ok := ubx.Decode(a.buf[:total])
	if !ok {
		a.stats.FramesRejected++
		a.discard(1)
		return true
	}
	a.stats.Frames++
	a.queue = append(a.queue, Message{Kind: KindFrame, Frame: f})
	a.consume(total)
	return true
}

func (a *Assembler) appendLine(p []byte) {
	if len(p) == 0 {
		return
	}
	if len(a.line)+len(p) > MaxLine {
		if len(a.line) > 0 {
			a.stats.LinesDropped++
		}
		a.stats.BytesDiscarded += uint64(len(a.line))
		a.line = a.line[:0]
		if len(p) > MaxLine {
			a.stats.BytesDiscarded += uint64(len(p) - MaxLine)
			p = p[len(p)-MaxLine:]
		}
	}
	a.line = append(a.line, p...)
}

func (a *Assembler) finishLine() {
	raw := a.line
	a.line = a.line[:0]

	s := strings.TrimSpace(string(raw))
	if s == "" {
		return
	}
	// Keep the last sentence start; bytes before it are leftovers of a
	// truncated read.
	start := strings.LastIndexByte(s, '$')
	if start < 0 || !printable(s[start:]) {
		a.stats.LinesDropped++
		a.stats.BytesDiscarded += uint64(len(raw))
		return
	}
	a.stats.BytesDiscarded += uint64(start)
	a.stats.Lines++
	a.queue = append(a.queue, Message{Kind: KindLine, Line: s[start:]})
}

// indexBoundary finds the next line terminator or candidate sync byte.
func indexBoundary(b []byte) int {
	for i, c := range b {
		if c == '\n' || c == ubx.Sync1 {
			return i
		}
	}
	return -1
}

func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7E {
			return false
		}
	}
	return true
}

func (a *Assembler) discard(n int) {
	a.stats.BytesDiscarded += uint64(n)
	a.consume(n)
}

func (a *Assembler) consume(n int) {
	rest := copy(a.buf, a.buf[n:])
	a.buf = a.buf[:rest]
}

// Next removes and returns the oldest extracted message.
func (a *Assembler) Next() (Message, bool) {
	if len(a.queue) == 0 {
		return Message{}, false
	}
	m := a.queue[0]
	a.queue = a.queue[1:]
	if len(a.queue) == 0 {
		a.queue = nil
	}
	return m, true
}

// NextLine removes and returns the oldest queued NMEA line, leaving frames in
// place.
func (a *Assembler) NextLine() (string, bool) {
	m, ok := a.take(KindLine)
	return m.Line, ok
}

// NextFrame removes and returns the oldest queued UBX frame, leaving lines in
// place.
func (a *Assembler) NextFrame() (ubx.Frame, bool) {
	m, ok := a.take(KindFrame)
	return m.Frame, ok
}

func (a *Assembler) take(k Kind) (Message, bool) {
	for i, m := range a.queue {
		if m.Kind != k {
			continue
		}
		a.queue = append(a.queue[:i], a.queue[i+1:]...)
		return m, true
	}
	return Message{}, false
}

// Pending is the number of extracted messages not yet taken.
func (a *Assembler) Pending() int { return len(a.queue) }

// Buffered is the number of raw bytes held for an incomplete line or frame.
func (a *Assembler) Buffered() int { return len(a.buf) + len(a.line) }

func (a *Assembler) Stats() Stats { return a.stats }

// Reset drops buffered bytes and queued messages. Stats are kept.
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
	a.line = a.line[:0]
	a.queue = nil
}
