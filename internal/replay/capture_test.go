package replay

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

type fakeSleeper struct {
	slept []time.Duration
}

func (fs *fakeSleeper) Sleep(d time.Duration) {
	fs.slept = append(fs.slept, d)
}

func TestReaderReadAll(t *testing.T) {
	in := strings.NewReader(`
# comment

START
0, 2447
10, 50 52
`)

	recs, err := NewReader(in).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0].Chunk != nil {
		t.Fatalf("expected START marker (nil chunk), got %v", recs[0].Chunk)
	}
	if recs[1].At != 0 || !reflect.DeepEqual(recs[1].Chunk, []byte("$G")) {
		t.Fatalf("unexpected record 1: %+v", recs[1])
	}
	if recs[2].At != 10*time.Nanosecond || !reflect.DeepEqual(recs[2].Chunk, []byte("PR")) {
		t.Fatalf("unexpected record 2: %+v", recs[2])
	}
}

func TestReaderReadAll_InvalidLines(t *testing.T) {
	cases := []string{
		"not-a-valid-line\n",
		",0102\n",
		"x,0102\n",
		"-5,0102\n",
		"5,zz\n",
	}
	for _, in := range cases {
		if _, err := NewReader(strings.NewReader(in)).ReadAll(); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestPlay_RespectsTimingAndStart(t *testing.T) {
	chunks := make([][]byte, 0, 3)
	fs := &fakeSleeper{}

	recs := []Record{
		{At: 1 * time.Second, Chunk: nil},
		{At: 1 * time.Second, Chunk: []byte{0xB5}},
		{At: 1*time.Second + 100*time.Nanosecond, Chunk: []byte{0x62}},
		{At: 2 * time.Second, Chunk: nil},
		{At: 2*time.Second + 50*time.Nanosecond, Chunk: []byte{0x24}},
	}

	err := Play(recs, 1.0, false, fs, func(chunk []byte) error {
		chunks = append(chunks, append([]byte(nil), chunk...))
		return nil
	})
	if err != nil {
		t.Fatalf("Play() error: %v", err)
	}

	want := [][]byte{{0xB5}, {0x62}, {0x24}}
	if !reflect.DeepEqual(chunks, want) {
		t.Fatalf("chunks = %x, want %x", chunks, want)
	}
	if !reflect.DeepEqual(fs.slept, []time.Duration{100 * time.Nanosecond}) {
		t.Fatalf("slept = %v, want [100ns]", fs.slept)
	}
}

func TestPlay_SpeedMultiplier(t *testing.T) {
	fs := &fakeSleeper{}
	recs := []Record{
		{At: 0, Chunk: []byte{0x01}},
		{At: 100 * time.Nanosecond, Chunk: []byte{0x02}},
	}

	if err := Play(recs, 2.0, false, fs, func([]byte) error { return nil }); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if !reflect.DeepEqual(fs.slept, []time.Duration{50 * time.Nanosecond}) {
		t.Fatalf("slept = %v, want [50ns]", fs.slept)
	}
}

func TestPlay_InvalidArgs(t *testing.T) {
	recs := []Record{{At: 0, Chunk: []byte{0x01}}}
	if err := Play(recs, 0, false, nil, func([]byte) error { return nil }); err == nil {
		t.Fatalf("expected error for zero speed")
	}
	if err := Play(recs, 1, false, nil, nil); err == nil {
		t.Fatalf("expected error for nil callback")
	}
	if err := Play(nil, 1, false, nil, func([]byte) error { return nil }); err == nil {
		t.Fatalf("expected error for no records")
	}
}

func TestWriter_WritesExpectedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter() error: %v", err)
	}
	w.start = time.Unix(0, 0)
	w.now = func() time.Time { return time.Unix(0, 35) }

	if err := w.WriteChunk(time.Unix(0, 20), []byte{0x01, 0x02}); err != nil {
		t.Fatalf("WriteChunk() error: %v", err)
	}
	if err := w.Record([]byte{0xB5, 0x62}); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if err := w.Record(nil); err == nil {
		t.Fatalf("expected error for empty chunk")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := w.Record([]byte{0x01}); err == nil {
		t.Fatalf("expected error after close")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(b) != "START\n20,0102\n35,b562\n" {
		t.Fatalf("unexpected file contents: %q", string(b))
	}
}

func TestRecordReplay_RoundTripChunksInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ddc-capture.log")

	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter() error: %v", err)
	}
	now := time.Now()
	in := [][]byte{
		[]byte("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A\r\n"),
		{0xB5, 0x62, 0x05, 0x01, 0x02, 0x00, 0x06, 0x13, 0x21, 0x4E},
	}
	for _, c := range in {
		if err := w.WriteChunk(now, c); err != nil {
			t.Fatalf("WriteChunk() error: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	recs, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	var out [][]byte
	fs := &fakeSleeper{}
	if err := Play(recs, 1.0, false, fs, func(c []byte) error {
		out = append(out, append([]byte(nil), c...))
		return nil
	}); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if len(fs.slept) != 0 {
		t.Fatalf("expected no sleeps, got %v", fs.slept)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("chunks mismatch\n got: %x\nwant: %x", out, in)
	}
}
