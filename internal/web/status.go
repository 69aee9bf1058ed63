package web

import (
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/antenna"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/gnss"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/satellite"
)

const service = "gnss-logger"

// Source is the receiver state the UI reads. *gnss.Receiver satisfies it.
type Source interface {
	Snapshot(topN int) gnss.Snapshot
	Satellites() satellite.Snapshot
}

// ReceiverInfo describes how the receiver is attached.
type ReceiverInfo struct {
	Driver  string `json:"driver"`
	Bus     string `json:"bus,omitempty"`
	Address string `json:"address,omitempty"`
	Mode    string `json:"mode"`
}

type Status struct {
	startUnixNano int64
	ticks         uint64
	lastTickNano  int64
	src           atomic.Value // Source
	info          atomic.Value // ReceiverInfo
	report        atomic.Pointer[antenna.Report]
	topN          int
}

func NewStatus(topN int) *Status {
	if topN <= 0 {
		topN = 10
	}
	s := &Status{topN: topN}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.info.Store(ReceiverInfo{})
	return s
}

func (s *Status) SetSource(src Source) {
	if src != nil {
		s.src.Store(sourceBox{src})
	}
}

// sourceBox keeps atomic.Value's concrete type fixed across Source
// implementations.
type sourceBox struct{ Source }

func (s *Status) source() Source {
	if b, ok := s.src.Load().(sourceBox); ok {
		return b.Source
	}
	return nil
}

func (s *Status) SetInfo(info ReceiverInfo) { s.info.Store(info) }

// SetReport records the latest antenna workflow report.
func (s *Status) SetReport(r antenna.Report) { s.report.Store(&r) }

func (s *Status) MarkTick(nowUTC time.Time) {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	atomic.StoreInt64(&s.lastTickNano, nowUTC.UnixNano())
	atomic.AddUint64(&s.ticks, 1)
}

type StatusSnapshot struct {
	Service       string          `json:"service"`
	NowUTC        string          `json:"now_utc"`
	UptimeSec     int64           `json:"uptime_sec"`
	Receiver      ReceiverInfo    `json:"receiver"`
	Ticks         uint64          `json:"ticks"`
	LastTickUTC   string          `json:"last_tick_utc,omitempty"`
	GNSS          *gnss.Snapshot  `json:"gnss,omitempty"`
	AntennaReport *antenna.Report `json:"antenna_report,omitempty"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()
	lastTick := atomic.LoadInt64(&s.lastTickNano)

	snap := StatusSnapshot{
		Service:       service,
		NowUTC:        nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:     int64(nowUTC.Sub(start).Seconds()),
		Receiver:      s.info.Load().(ReceiverInfo),
		Ticks:         atomic.LoadUint64(&s.ticks),
		AntennaReport: s.report.Load(),
	}
	if lastTick != 0 {
		snap.LastTickUTC = time.Unix(0, lastTick).UTC().Format(time.RFC3339Nano)
	}
	if src := s.source(); src != nil {
		g := src.Snapshot(s.topN)
		snap.GNSS = &g
	}
	return snap
}

type AboutResponse struct {
	Service    string `json:"service"`
	NowUTC     string `json:"now_utc"`
	GoVersion  string `json:"go_version"`
	ModulePath string `json:"module_path,omitempty"`
	Version    string `json:"version,omitempty"`
	Commit     string `json:"commit,omitempty"`
	Dirty      bool   `json:"dirty,omitempty"`
	BuildTime  string `json:"build_time,omitempty"`
}

func about(now time.Time) AboutResponse {
	resp := AboutResponse{
		Service:   service,
		NowUTC:    now.UTC().Format(time.RFC3339Nano),
		GoVersion: runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		resp.ModulePath = bi.Main.Path
		resp.Version = bi.Main.Version
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				resp.Commit = s.Value
			case "vcs.modified":
				resp.Dirty = s.Value == "true"
			case "vcs.time":
				resp.BuildTime = s.Value
			}
		}
	}
	return resp
}
