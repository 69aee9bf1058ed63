// Package replay records the raw bytes read from the receiver port and plays
// them back, either through a callback or as a stand-in transport.
//
// A capture is line-oriented text:
//
//	# comment
//	START
//	<t_ns>,<hex>
//
// START begins a segment; t_ns is nanoseconds since the segment began and hex
// is one chunk exactly as the stream register returned it. Blank lines and
// '#' comments are ignored.
package replay

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const startMarker = "START"

// Record is one capture line. A nil Chunk marks a segment start.
type Record struct {
	At    time.Duration
	Chunk []byte
}

func (r Record) isStart() bool { return r.Chunk == nil }

type Reader struct {
	sc   *bufio.Scanner
	line int
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{sc: sc}
}

// Next returns the next record, or io.EOF after the last one.
func (rr *Reader) Next() (Record, error) {
	for rr.sc.Scan() {
		rr.line++
		text := strings.TrimSpace(rr.sc.Text())
		switch {
		case text == "", strings.HasPrefix(text, "#"):
			continue
		case text == startMarker:
			return Record{}, nil
		}
		rec, err := parseChunkLine(text)
		if err != nil {
			return Record{}, fmt.Errorf("invalid capture line %d: %w", rr.line, err)
		}
		return rec, nil
	}
	if err := rr.sc.Err(); err != nil {
		return Record{}, err
	}
	return Record{}, io.EOF
}

func (rr *Reader) ReadAll() ([]Record, error) {
	recs := make([]Record, 0, 1024)
	for {
		rec, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
}

func parseChunkLine(text string) (Record, error) {
	ts, payload, ok := strings.Cut(text, ",")
	if !ok {
		return Record{}, errors.New("missing comma")
	}
	ts, payload = strings.TrimSpace(ts), strings.TrimSpace(payload)
	if ts == "" || payload == "" {
		return Record{}, errors.New("empty field")
	}
	ns, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("timestamp %q: %w", ts, err)
	}
	if ns < 0 {
		return Record{}, fmt.Errorf("negative timestamp %d", ns)
	}
	chunk, err := hex.DecodeString(strings.ReplaceAll(payload, " ", ""))
	if err != nil {
		return Record{}, fmt.Errorf("payload: %w", err)
	}
	if len(chunk) == 0 {
		return Record{}, errors.New("empty payload")
	}
	return Record{At: time.Duration(ns), Chunk: chunk}, nil
}

// ReadFile loads a capture from path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	recs, err := NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read capture %s: %w", path, err)
	}
	return recs, nil
}

// Writer appends chunks to a capture file as one segment. It implements
// gnss.Recorder and is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	bw     *bufio.Writer
	start  time.Time
	now    func() time.Time
	closed bool
}

func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString(startMarker + "\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, bw: bw, start: time.Now(), now: time.Now}, nil
}

// Record writes p stamped with the current time.
func (w *Writer) Record(p []byte) error {
	return w.WriteChunk(w.now(), p)
}

func (w *Writer) WriteChunk(at time.Time, chunk []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("capture writer is closed")
	}
	if len(chunk) == 0 {
		return errors.New("chunk is empty")
	}
	d := at.Sub(w.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(w.bw, "%d,%s\n", d.Nanoseconds(), hex.EncodeToString(chunk))
	return err
}

func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	return w.bw.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.bw.Flush()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}

type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Play hands each chunk to cb, sleeping the recorded gap between chunks
// scaled by speed (2 halves every wait). Waits do not span a START marker.
// With loop set, playback restarts until cb returns an error.
func Play(records []Record, speed float64, loop bool, sleeper Sleeper, cb func(chunk []byte) error) error {
	if speed <= 0 {
		return errors.New("speed must be > 0")
	}
	if cb == nil {
		return errors.New("callback is nil")
	}
	if len(records) == 0 {
		return errors.New("no records")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}

	for {
		if err := playOnce(records, speed, sleeper, cb); err != nil {
			return err
		}
		if !loop {
			return nil
		}
	}
}

func playOnce(records []Record, speed float64, sleeper Sleeper, cb func([]byte) error) error {
	var origin, prev time.Duration
	first := true
	for _, r := range records {
		if r.isStart() {
			origin, prev, first = r.At, 0, true
			continue
		}
		at := max(r.At-origin, 0)
		if !first {
			if wait := time.Duration(float64(max(at-prev, 0)) / speed); wait > 0 {
				sleeper.Sleep(wait)
			}
		}
		if err := cb(r.Chunk); err != nil {
			return err
		}
		prev, first = at, false
	}
	return nil
}
