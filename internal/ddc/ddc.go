// Package ddc implements the u-blox DDC (I2C) streaming register port.
//
// The receiver exposes two logical registers: a 16-bit "bytes available"
// counter and a data stream register that drains pending output on read and
// accepts UBX input on write. Every transaction is capped at a small chunk
// size because the receiver's DDC buffer and long cables misbehave beyond it.
package ddc

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var sleep = time.Sleep

const (
	DefaultAddress = 0x42

	// RegAvailable is the first of the two byte-count registers (0xFD/0xFE).
	RegAvailable = 0xFD
	RegStream    = 0xFF

	MaxChunk = 32
	MinChunk = 16

	DefaultWritePacing = 10 * time.Millisecond
)

// Conn is the bus handle the channel drives. i2c.Conn satisfies it.
type Conn interface {
	Tx(w, r []byte) error
	Close() error
}

type Options struct {
	// ReadChunk caps each stream read. Clamped to [1, MaxChunk].
	ReadChunk   int
	// WriteChunk caps each stream write. Clamped to [MinChunk, MaxChunk].
	WriteChunk  int
	// WritePacing is slept between consecutive write chunks.
	WritePacing time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReadChunk <= 0 || o.ReadChunk > MaxChunk {
		o.ReadChunk = MaxChunk
	}
	if o.WriteChunk <= 0 || o.WriteChunk > MaxChunk {
		o.WriteChunk = MaxChunk
	}
	if o.WriteChunk < MinChunk {
		o.WriteChunk = MinChunk
	}
	if o.WritePacing <= 0 {
		o.WritePacing = DefaultWritePacing
	}
	return o
}

// Channel is a synchronous register-addressed channel to one receiver.
//
// All methods block for the duration of their bus transactions and are
// serialised, so a poll loop and an ack wait never interleave on the bus.
// No method retries; callers own the retry policy.
type Channel struct {
	mu     sync.Mutex
	conn   Conn
	opts   Options
	closed bool
}

func New(conn Conn, opts Options) *Channel {
	return &Channel{conn: conn, opts: opts.withDefaults()}
}

// QueryAvailable returns the number of bytes the receiver has pending.
//
// The pair is assembled low byte first (b0 | b1<<8). That is the order the
// receiver actually answers in, even though the register map names 0xFD the
// high byte. Bus errors and the 0xFFFF "not ready" marker both read as 0.
func (c *Channel) QueryAvailable() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return 0
	}

	var b [2]byte
	if err := c.conn.Tx([]byte{RegAvailable}, b[:]); err != nil {
		return 0
	}
	n := uint16(b[0]) | uint16(b[1])<<8
	if n == 0xFFFF {
		return 0
	}
	return n
}

// ReadChunk reads up to n bytes from the stream register in transactions of
// at most Options.ReadChunk bytes. A bus error ends the read early; whatever
// was collected before it is returned.
func (c *Channel) ReadChunk(n int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil || n <= 0 {
		return nil
	}

	out := make([]byte, 0, n)
	for n > 0 {
		size := n
		if size > c.opts.ReadChunk {
			size = c.opts.ReadChunk
		}
		buf := make([]byte, size)
		if err := c.conn.Tx([]byte{RegStream}, buf); err != nil {
			break
		}
		out = append(out, buf...)
		n -= size
	}
	return out
}

// WriteChunk writes p to the stream register, Options.WriteChunk bytes per
// transaction with Options.WritePacing between transactions. The first failed
// chunk aborts the write; the returned count is the number of payload bytes
// the receiver accepted before that.
func (c *Channel) WriteChunk(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return 0, errors.New("ddc: channel is closed")
	}

	written := 0
	for off := 0; off < len(p); off += c.opts.WriteChunk {
		end := off + c.opts.WriteChunk
		if end > len(p) {
			end = len(p)
		}
		if off > 0 {
			sleep(c.opts.WritePacing)
		}
		tx := make([]byte, 0, 1+end-off)
		tx = append(tx, RegStream)
		tx = append(tx, p[off:end]...)
		if err := c.conn.Tx(tx, nil); err != nil {
			return written, fmt.Errorf("ddc: write chunk at offset %d: %w", off, err)
		}
		written = end
	}
	return written, nil
}

// Close releases the bus handle. It is safe to call more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
