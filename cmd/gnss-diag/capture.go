package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/replay"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/stream"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/ubx"
)

type captureSummary struct {
	Segments    int
	Chunks      int
	Bytes       int
	MaxDuration time.Duration
	Talkers     map[string]int
	Frames      map[string]int
	Stream      stream.Stats
}

type noSleep struct{}

func (noSleep) Sleep(time.Duration) {}

// summarizeCapture reassembles a capture and counts what it carried. With
// dump set, every message is written to dump in stream order.
func summarizeCapture(records []replay.Record, dump io.Writer) (captureSummary, error) {
	s := captureSummary{Talkers: map[string]int{}, Frames: map[string]int{}}
	if len(records) == 0 {
		return s, nil
	}

	origin := time.Duration(0)
	hasChunks := false
	segments := 0
	for _, r := range records {
		if r.Chunk == nil {
			segments++
			origin = r.At
			continue
		}
		hasChunks = true
		s.Chunks++
		s.Bytes += len(r.Chunk)
		at := r.At - origin
		if at < 0 {
			at = 0
		}
		if at > s.MaxDuration {
			s.MaxDuration = at
		}
	}
	if segments == 0 && hasChunks {
		segments = 1
	}
	s.Segments = segments
	if !hasChunks {
		return s, nil
	}

	asm := stream.NewAssembler()
	err := replay.Play(records, 1, false, noSleep{}, func(chunk []byte) error {
		asm.Ingest(chunk)
		for {
			m, ok := asm.Next()
			if !ok {
				return nil
			}
			switch m.Kind {
			case stream.KindLine:
				s.Talkers[sentenceType(m.Line)]++
				if dump != nil {
					fmt.Fprintf(dump, "nmea %s\n", m.Line)
				}
			case stream.KindFrame:
				s.Frames[ubx.Name(m.Frame.Class, m.Frame.ID)]++
				if dump != nil {
					fmt.Fprintf(dump, "ubx  %s len=%d\n", ubx.Name(m.Frame.Class, m.Frame.ID), len(m.Frame.Payload))
				}
			}
		}
	})
	if err != nil {
		return s, err
	}
	s.Stream = asm.Stats()
	return s, nil
}

// sentenceType returns the address field of an NMEA line, e.g. "GNRMC".
func sentenceType(line string) string {
	line = strings.TrimPrefix(line, "$")
	if i := strings.IndexAny(line, ",*"); i >= 0 {
		line = line[:i]
	}
	if line == "" {
		return "?"
	}
	return line
}

func printCaptureSummary(w io.Writer, path string, s captureSummary) {
	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "chunks: %d\n", s.Chunks)
	fmt.Fprintf(w, "bytes: %d\n", s.Bytes)
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)
	fmt.Fprintf(w, "lines: %d dropped=%d\n", s.Stream.Lines, s.Stream.LinesDropped)
	fmt.Fprintf(w, "frames: %d rejected=%d\n", s.Stream.Frames, s.Stream.FramesRejected)
	fmt.Fprintf(w, "bytes_discarded: %d\n", s.Stream.BytesDiscarded)
	printCounts(w, "sentences", s.Talkers)
	printCounts(w, "ubx_frames", s.Frames)
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %d\n", k, counts[k])
	}
}
