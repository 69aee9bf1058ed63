package main

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/replay"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/ubx"
)

func TestSentenceType(t *testing.T) {
	cases := map[string]string{
		"$GNRMC,123519,A*6A": "GNRMC",
		"$GPGSV*00":          "GPGSV",
		"$":                  "?",
		"GNGGA,1":            "GNGGA",
	}
	for in, want := range cases {
		if got := sentenceType(in); got != want {
			t.Fatalf("sentenceType(%q)=%q want %q", in, got, want)
		}
	}
}

func TestSummarizeCapture(t *testing.T) {
	ack := ubx.Encode(ubx.Frame{Class: ubx.ClassACK, ID: ubx.IDAckAck, Payload: []byte{ubx.ClassCFG, ubx.IDCfgAnt}})
	recs := []replay.Record{
		{At: 0, Chunk: nil},
		{At: 0, Chunk: []byte("$GNRMC,1,A*00\r\n$GNG")},
		{At: 200 * time.Millisecond, Chunk: []byte("GA,1*00\r\n")},
		{At: 300 * time.Millisecond, Chunk: ack},
		{At: 0, Chunk: nil},
		{At: 1 * time.Second, Chunk: []byte("$GNRMC,2,A*00\r\n")},
	}

	var dump bytes.Buffer
	s, err := summarizeCapture(recs, &dump)
	if err != nil {
		t.Fatalf("summarizeCapture: %v", err)
	}
	if s.Segments != 2 {
		t.Fatalf("segments=%d want %d", s.Segments, 2)
	}
	if s.Chunks != 4 {
		t.Fatalf("chunks=%d want %d", s.Chunks, 4)
	}
	if s.MaxDuration != 1*time.Second {
		t.Fatalf("maxDuration=%s want %s", s.MaxDuration, 1*time.Second)
	}
	if s.Talkers["GNRMC"] != 2 || s.Talkers["GNGGA"] != 1 {
		t.Fatalf("talkers=%v", s.Talkers)
	}
	if s.Frames["ACK-ACK"] != 1 {
		t.Fatalf("frames=%v", s.Frames)
	}
	if s.Stream.Lines != 3 || s.Stream.Frames != 1 {
		t.Fatalf("stream=%+v", s.Stream)
	}
	if !strings.Contains(dump.String(), "ubx  ACK-ACK len=2") || !strings.Contains(dump.String(), "nmea $GNGGA,1*00") {
		t.Fatalf("dump=%q", dump.String())
	}
}

func TestSummarizeCapture_Empty(t *testing.T) {
	s, err := summarizeCapture(nil, nil)
	if err != nil {
		t.Fatalf("summarizeCapture: %v", err)
	}
	if s.Segments != 0 || s.Chunks != 0 {
		t.Fatalf("summary=%+v", s)
	}

	s, err = summarizeCapture([]replay.Record{{At: 0}}, nil)
	if err != nil {
		t.Fatalf("summarizeCapture: %v", err)
	}
	if s.Segments != 1 || s.Chunks != 0 {
		t.Fatalf("summary=%+v", s)
	}
}

func TestRunCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cap.log")
	if err := os.WriteFile(path, []byte("START\n0,"+hex.EncodeToString([]byte("$GNRMC,1,A*00\r\n"))+"\n"), 0o644); err != nil {
		t.Fatalf("write capture: %v", err)
	}
	var out bytes.Buffer
	if err := runCapture(&out, path, false); err != nil {
		t.Fatalf("runCapture: %v", err)
	}
	for _, want := range []string{"segments: 1", "chunks: 1", "sentences:\n  GNRMC: 1", "ubx_frames:"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}

	if err := runCapture(&out, filepath.Join(t.TempDir(), "missing.log"), false); err == nil {
		t.Fatalf("expected error for missing capture")
	}
}
