package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/config"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/gnss"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/port"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/replay"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/satellite"
)

func main() {
	var (
		configPath  string
		capturePath string
		dump        bool
		duration    time.Duration
		every       time.Duration
		asJSON      bool
	)
	flag.StringVar(&configPath, "config", "./gnss.yaml", "Path to YAML config")
	flag.StringVar(&capturePath, "capture", "", "Summarize a capture file instead of reading the receiver")
	flag.BoolVar(&dump, "dump", false, "With -capture, print every NMEA line and UBX frame")
	flag.DurationVar(&duration, "duration", 10*time.Second, "How long to watch the receiver (0 = until interrupted)")
	flag.DurationVar(&every, "every", time.Second, "Report interval")
	flag.BoolVar(&asJSON, "json", false, "Print snapshots as JSON")
	flag.Parse()

	if capturePath != "" {
		if err := runCapture(os.Stdout, capturePath, dump); err != nil {
			log.Fatalf("capture summary failed: %v", err)
		}
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if cfg.Diagnostics.PollEvery == 0 {
		// Without periodic polls there is no satellite table to report.
		cfg.Diagnostics.PollEvery = int(time.Second / cfg.Receiver.PollInterval)
		if cfg.Diagnostics.PollEvery < 1 {
			cfg.Diagnostics.PollEvery = 1
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, duration)
		defer stop()
	}

	p, err := port.Open(cfg)
	if err != nil {
		log.Fatalf("receiver open failed: %v", err)
	}
	rx := p.Receiver(cfg, nil)
	defer rx.Close()

	var last time.Time
	rx.Run(ctx, cfg.Receiver.PollInterval, func() {
		now := time.Now()
		if now.Sub(last) < every {
			return
		}
		last = now
		snap := rx.Snapshot(cfg.Diagnostics.Top)
		if asJSON {
			b, err := json.Marshal(snap)
			if err != nil {
				log.Printf("gnss-diag: marshal: %v", err)
				return
			}
			fmt.Println(string(b))
			return
		}
		printSnapshot(os.Stdout, snap)
	})
}

func runCapture(w io.Writer, path string, dump bool) error {
	recs, err := replay.ReadFile(path)
	if err != nil {
		return err
	}
	var dw io.Writer
	if dump {
		dw = w
	}
	s, err := summarizeCapture(recs, dw)
	if err != nil {
		return err
	}
	printCaptureSummary(w, path, s)
	return nil
}

func printSnapshot(w io.Writer, s gnss.Snapshot) {
	pos := s.Position
	fmt.Fprintf(w, "--- %s\n", s.Time.UTC().Format(time.RFC3339))
	if pos.HasFix() {
		fmt.Fprintf(w, "fix: %s lat=%.6f lon=%.6f", pos.FixStatus, *pos.LatDeg, *pos.LonDeg)
		if pos.AltM != nil {
			fmt.Fprintf(w, " alt=%.1fm", *pos.AltM)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "fix: %s\n", pos.FixStatus)
	}
	if s.NavStatus != nil {
		fmt.Fprintf(w, "nav: %s fix_ok=%t ttff=%dms\n", s.NavStatus.Fix, s.NavStatus.FixOK, s.NavStatus.TTFFMS)
	}

	sum := s.Satellites
	fmt.Fprintf(w, "satellites: used=%d visible=%d in_view(nmea)=%d mean=%.1fdBHz\n",
		sum.Used, sum.Visible, s.NMEA.SatellitesInView, sum.MeanSignal)
	for _, g := range sum.Groups {
		fmt.Fprintf(w, "  %-8s used=%d visible=%d mean=%.1f\n", g.Constellation, g.Used, g.Visible, g.MeanSignal)
	}
	for _, r := range sum.Top {
		used := ""
		if r.Used {
			used = " used"
		}
		fmt.Fprintf(w, "  %s %3d cno=%2d el=%3d az=%3d%s\n", r.Constellation, r.SvID, r.SignalDB, r.ElevationDeg, r.AzimuthDeg, used)
	}
	fmt.Fprintf(w, "hint: %s (%s)\n", sum.Hint, sum.Hint.Advice())
	if sum.WaitingForLock {
		fmt.Fprintf(w, "waiting for lock: need %d used satellites\n", satellite.MinUsedFor3D)
	}

	a := s.Antenna
	if a.Stale {
		fmt.Fprintf(w, "antenna: no recent MON-HW\n")
	} else {
		fmt.Fprintf(w, "antenna: circuit=%s power=%s noise=%d agc=%d jam=%d\n", a.Circuit, a.Power, a.NoisePerMS, a.AGCCount, a.JamIndex)
	}
	st := s.Stats
	fmt.Fprintf(w, "stream: bytes=%d lines=%d frames=%d rejected=%d\n", st.BytesRead, st.Stream.Lines, st.Stream.Frames, st.Stream.FramesRejected)
}
