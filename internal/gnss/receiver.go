// Package gnss drives a u-blox receiver over its DDC transport: the
// acquisition poll loop, command send with ACK/NAK wait, poll
// request/response, and ordered fallback across command variants.
//
// All bus traffic goes through one Receiver so that no two transactions
// interleave on the port. Decoded state is guarded separately and may be read
// from any goroutine.
package gnss

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/gps"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/satellite"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/stream"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/ubx"
)

const (
	DefaultMaxRead      = 512
	DefaultAckPoll      = 50 * time.Millisecond
	DefaultPollInterval = 100 * time.Millisecond
)

// Transport is the streaming register port of the receiver. Implementations
// degrade bus errors to zero/empty results.
type Transport interface {
	QueryAvailable() uint16
	ReadChunk(n int) []byte
	WriteChunk(p []byte) (int, error)
	Close() error
}

// Recorder receives every raw chunk read from the transport.
type Recorder interface {
	Record(p []byte) error
}

type Options struct {
	// MaxRead caps the bytes drained in one poll.
	MaxRead   int
	// AckPoll is the sleep between polls while waiting for a response.
	AckPoll   time.Duration
	// DiagEvery sends NAV-SAT, NAV-STATUS and MON-HW polls every N Run
	// ticks; 0 disables.
	DiagEvery int
	Recorder  Recorder
}

func (o Options) withDefaults() Options {
	if o.MaxRead <= 0 {
		o.MaxRead = DefaultMaxRead
	}
	if o.AckPoll <= 0 {
		o.AckPoll = DefaultAckPoll
	}
	if o.DiagEvery < 0 {
		o.DiagEvery = 0
	}
	return o
}

type frameKey [2]uint8

// Stats are transport-level counters.
type Stats struct {
	Polls        uint64            `json:"polls"`
	BytesRead    uint64            `json:"bytes_read"`
	BytesWritten uint64            `json:"bytes_written"`
	WriteErrors  uint64            `json:"write_errors"`
	Frames       map[string]uint64 `json:"frames,omitempty"`
	Stream       stream.Stats      `json:"stream"`
}

type Receiver struct {
	tr   Transport
	opts Options

	bus    sync.Mutex // serializes transport use
	closed bool

	mu         sync.RWMutex
	asm        *stream.Assembler
	nmea       *gps.Interpreter
	sats       satellite.Table
	mon        *satellite.Monitor
	nav        satellite.NavStatus
	navOK      bool
	ant        ubx.AntConfig
	antOK      bool
	seq        map[frameKey]uint64
	last       map[frameKey]ubx.Frame
	stats      Stats
	monPending bool
	recErr     bool
	ticks      uint64
}

func New(tr Transport, opts Options) *Receiver {
	return &Receiver{
		tr:   tr,
		opts: opts.withDefaults(),
		asm:  stream.NewAssembler(),
		nmea: gps.NewInterpreter(),
		mon:  satellite.NewMonitor(),
		seq:  make(map[frameKey]uint64),
		last: make(map[frameKey]ubx.Frame),
	}
}

// Poll drains up to MaxRead pending bytes and dispatches every complete
// message. It returns the number of bytes read.
func (r *Receiver) Poll() int {
	r.bus.Lock()
	defer r.bus.Unlock()
	return r.pollLocked()
}

func (r *Receiver) pollLocked() int {
	if r.closed {
		return 0
	}
	n := int(r.tr.QueryAvailable())
	r.mu.Lock()
	r.stats.Polls++
	r.mu.Unlock()
	if n == 0 {
		return 0
	}
	if n > r.opts.MaxRead {
		n = r.opts.MaxRead
	}
	p := r.tr.ReadChunk(n)
	r.feed(p)
	return len(p)
}

// feed is also the Waiter's forward hook; it must not take the bus lock.
func (r *Receiver) feed(p []byte) {
	if len(p) == 0 {
		return
	}
	if rec := r.opts.Recorder; rec != nil {
		if err := rec.Record(p); err != nil && !r.recErr {
			r.recErr = true
			log.Printf("gnss: recorder failed: %v", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.BytesRead += uint64(len(p))
	r.asm.Ingest(p)
	for {
		m, ok := r.asm.Next()
		if !ok {
			return
		}
		switch m.Kind {
		case stream.KindLine:
			_ = r.nmea.Apply(m.Line)
		case stream.KindFrame:
			r.dispatchLocked(m.Frame)
		}
	}
}

func (r *Receiver) dispatchLocked(f ubx.Frame) {
	k := frameKey{f.Class, f.ID}
	r.seq[k]++
	r.last[k] = f

	switch {
	case f.Is(ubx.ClassNAV, ubx.IDNavSat):
		r.sats.ApplyNavSat(f.Payload, now())
	case f.Is(ubx.ClassMON, ubx.IDMonHw):
		if r.mon.ApplyMonHw(f.Payload, now()) {
			r.monPending = false
		}
	case f.Is(ubx.ClassNAV, ubx.IDNavStatus):
		if st, ok := satellite.DecodeNavStatus(f.Payload); ok {
			r.nav, r.navOK = st, true
		}
	case f.Is(ubx.ClassCFG, ubx.IDCfgAnt):
		if c, ok := ubx.ParseCfgAnt(f.Payload); ok {
			r.ant, r.antOK = c, true
		}
	}
}

func (r *Receiver) seqOf(k frameKey) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq[k]
}

// frameSince returns the latest k frame if one arrived after sequence seq.
func (r *Receiver) frameSince(k frameKey, seq uint64) (ubx.Frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.seq[k] <= seq {
		return ubx.Frame{}, false
	}
	return r.last[k], true
}

// Send writes one frame without waiting for any response.
func (r *Receiver) Send(f ubx.Frame) error {
	r.bus.Lock()
	defer r.bus.Unlock()
	return r.sendLocked(f)
}

func (r *Receiver) sendLocked(f ubx.Frame) error {
	if r.closed {
		return fmt.Errorf("gnss: receiver is closed")
	}
	wire := ubx.Encode(f)
	n, err := r.tr.WriteChunk(wire)

	r.mu.Lock()
	r.stats.BytesWritten += uint64(n)
	if err != nil {
		r.stats.WriteErrors++
	}
	r.mu.Unlock()

	if err != nil {
		return fmt.Errorf("gnss: send %s: %w", f, err)
	}
	if n != len(wire) {
		return fmt.Errorf("gnss: send %s: short write %d/%d", f, n, len(wire))
	}
	return nil
}

// SendAndWait sends f and waits up to timeout for its ACK or NAK. The error
// is set only when the frame could not be written; the Result is Timeout
// then.
func (r *Receiver) SendAndWait(ctx context.Context, f ubx.Frame, timeout time.Duration) (Result, error) {
	r.bus.Lock()
	defer r.bus.Unlock()

	if err := r.sendLocked(f); err != nil {
		log.Printf("gnss: %v", err)
		return Timeout, err
	}
	w := Waiter{
		Transport:    r.tr,
		PollInterval: r.opts.AckPoll,
		MaxRead:      r.opts.MaxRead,
		Forward:      r.feed,
	}
	res := w.Wait(ctx, f.Class, f.ID, now().Add(timeout))
	log.Printf("gnss: %s result=%s", ubx.Name(f.Class, f.ID), res)
	return res, nil
}

// Request sends an empty-payload poll and waits for the response frame with
// the same class/id.
func (r *Receiver) Request(ctx context.Context, poll ubx.Frame, timeout time.Duration) (ubx.Frame, bool) {
	r.bus.Lock()
	defer r.bus.Unlock()

	k := frameKey{poll.Class, poll.ID}
	seq := r.seqOf(k)
	if err := r.sendLocked(poll); err != nil {
		log.Printf("gnss: %v", err)
		return ubx.Frame{}, false
	}
	deadline := now().Add(timeout)
	for {
		r.pollLocked()
		if f, ok := r.frameSince(k, seq); ok {
			return f, true
		}
		remaining := deadline.Sub(now())
		if remaining <= 0 {
			log.Printf("gnss: poll %s timed out after %s", ubx.Name(poll.Class, poll.ID), timeout)
			return ubx.Frame{}, false
		}
		if remaining > r.opts.AckPoll {
			remaining = r.opts.AckPoll
		}
		if !sleepCtx(ctx, remaining) {
			return ubx.Frame{}, false
		}
	}
}

// RequestDiagnostics sends NAV-SAT, NAV-STATUS and MON-HW polls without
// waiting. Responses are picked up by later polls. An unanswered MON-HW poll
// from the previous round marks the antenna status stale.
func (r *Receiver) RequestDiagnostics() {
	r.bus.Lock()
	defer r.bus.Unlock()

	r.mu.Lock()
	if r.monPending {
		r.mon.MarkStale()
	}
	r.monPending = true
	r.mu.Unlock()

	for _, f := range []ubx.Frame{
		ubx.Poll(ubx.ClassNAV, ubx.IDNavSat),
		ubx.Poll(ubx.ClassNAV, ubx.IDNavStatus),
		ubx.Poll(ubx.ClassMON, ubx.IDMonHw),
	} {
		if err := r.sendLocked(f); err != nil {
			log.Printf("gnss: diagnostics: %v", err)
			return
		}
	}
}

// Run polls every interval until ctx is done. tick, if set, is called after
// each poll.
func (r *Receiver) Run(ctx context.Context, interval time.Duration, tick func()) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r.Poll()
		r.mu.Lock()
		r.ticks++
		diag := r.opts.DiagEvery > 0 && (r.ticks-1)%uint64(r.opts.DiagEvery) == 0
		r.mu.Unlock()
		if diag {
			r.RequestDiagnostics()
		}
		if tick != nil {
			tick()
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Close releases the transport. It is safe to call more than once.
func (r *Receiver) Close() error {
	r.bus.Lock()
	defer r.bus.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.tr.Close()
}
