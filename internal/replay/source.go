package replay

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// Source serves a capture through the receiver transport interface. A chunk
// becomes readable once its capture offset, scaled by speed, has elapsed.
// Commands written to a Source are discarded, so ACK waits time out.
type Source struct {
	mu      sync.Mutex
	offsets []time.Duration
	chunks  [][]byte
	span    time.Duration
	speed   float64
	loop    bool
	now     func() time.Time

	start  time.Time
	next   int
	buf    []byte
	warned bool
	closed bool
}

func NewSource(records []Record, speed float64, loop bool) (*Source, error) {
	if speed <= 0 {
		return nil, fmt.Errorf("speed must be > 0")
	}
	s := &Source{speed: speed, loop: loop, now: time.Now}

	// START markers concatenate segments end to end.
	var base, origin, end time.Duration
	for _, r := range records {
		if r.isStart() {
			base = end
			origin = r.At
			continue
		}
		at := r.At - origin
		if at < 0 {
			at = 0
		}
		abs := base + at
		if abs < end {
			abs = end
		}
		end = abs
		s.offsets = append(s.offsets, abs)
		s.chunks = append(s.chunks, r.Chunk)
	}
	if len(s.chunks) == 0 {
		return nil, errors.New("no records")
	}
	s.span = end
	s.start = s.now()
	return s, nil
}

func (s *Source) advanceLocked() {
	elapsed := time.Duration(float64(s.now().Sub(s.start)) * s.speed)
	for s.next < len(s.chunks) && s.offsets[s.next] <= elapsed {
		s.buf = append(s.buf, s.chunks[s.next]...)
		s.next++
	}
	if s.next == len(s.chunks) && s.loop && elapsed >= s.span {
		cycle := time.Duration(float64(s.span) / s.speed)
		if cycle <= 0 {
			cycle = time.Millisecond
		}
		s.start = s.start.Add(cycle)
		s.next = 0
	}
}

func (s *Source) QueryAvailable() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	s.advanceLocked()
	if len(s.buf) > 0xFFFE {
		return 0xFFFE
	}
	return uint16(len(s.buf))
}

func (s *Source) ReadChunk(n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || n <= 0 {
		return nil
	}
	if n > len(s.buf) {
		n = len(s.buf)
	}
	out := append([]byte(nil), s.buf[:n]...)
	s.buf = s.buf[n:]
	return out
}

func (s *Source) WriteChunk(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.warned {
		s.warned = true
		log.Printf("replay: discarding command writes")
	}
	return len(p), nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buf = nil
	return nil
}

// Done reports that a non-looping capture has been fully read.
func (s *Source) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.loop && s.next == len(s.chunks) && len(s.buf) == 0
}

// Span is the capture length at 1x speed.
func (s *Source) Span() time.Duration { return s.span }
