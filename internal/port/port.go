// Package port opens the receiver port a config describes: a DDC channel on
// a real bus, the simulated receiver, or a capture replay.
package port

import (
	"fmt"
	"log"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/antenna"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/config"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/ddc"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/gnss"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/i2c"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/replay"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/sim"
)

const (
	ModeLive   = "live"
	ModeSim    = "sim"
	ModeReplay = "replay"
)

var dial = i2c.Dial

// Port is an opened transport plus what it is attached to. Sim and Replay are
// set only in their modes.
type Port struct {
	Transport gnss.Transport
	Mode      string
	Driver    string
	Bus       string
	Address   uint16

	Sim    *sim.Device
	Replay *replay.Source
}

// Open selects replay when replay.enable is set, the simulator for the sim
// driver, and the I2C bus otherwise.
func Open(cfg config.Config) (*Port, error) {
	r := cfg.Receiver
	switch {
	case cfg.Replay.Enable:
		recs, err := replay.ReadFile(cfg.Replay.Path)
		if err != nil {
			return nil, fmt.Errorf("port: %w", err)
		}
		src, err := replay.NewSource(recs, cfg.Replay.Speed, cfg.Replay.Loop)
		if err != nil {
			return nil, fmt.Errorf("port: replay %s: %w", cfg.Replay.Path, err)
		}
		log.Printf("port: replay path=%s speed=%g loop=%t span=%s", cfg.Replay.Path, cfg.Replay.Speed, cfg.Replay.Loop, src.Span())
		return &Port{Transport: src, Mode: ModeReplay, Driver: ModeReplay, Replay: src}, nil

	case r.Driver == config.DriverSim:
		dev, err := NewSim(cfg.Sim)
		if err != nil {
			return nil, fmt.Errorf("port: %w", err)
		}
		log.Printf("port: sim satellites=%d fix_after=%s scenario=%q", cfg.Sim.Satellites, cfg.Sim.FixAfter, cfg.Sim.Scenario)
		return &Port{Transport: dev, Mode: ModeSim, Driver: config.DriverSim, Sim: dev}, nil

	default:
		conn, err := dial(r.Driver, r.Bus, r.Address)
		if err != nil {
			return nil, fmt.Errorf("port: open %s addr=0x%02X: %w", r.Bus, r.Address, err)
		}
		ch := ddc.New(conn, ddc.Options{
			ReadChunk:   r.ReadChunk,
			WriteChunk:  r.WriteChunk,
			WritePacing: r.WritePacing,
		})
		log.Printf("port: live driver=%s bus=%s addr=0x%02X", r.Driver, r.Bus, r.Address)
		return &Port{Transport: ch, Mode: ModeLive, Driver: r.Driver, Bus: r.Bus, Address: r.Address}, nil
	}
}

// NewSim builds the simulated receiver. A scenario file replaces the
// figure-eight track.
func NewSim(sc config.SimConfig) (*sim.Device, error) {
	var motion sim.Motion = sim.Track{
		CenterLatDeg: sc.CenterLatDeg,
		CenterLonDeg: sc.CenterLonDeg,
		AltM:         sc.AltM,
		RadiusM:      sc.RadiusM,
		Period:       sc.Period,
	}
	if sc.Scenario != "" {
		s, err := sim.LoadScenario(sc.Scenario)
		if err != nil {
			return nil, err
		}
		motion = s
	}
	return sim.New(sim.Options{
		Motion:      motion,
		Satellites:  sc.Satellites,
		FixAfter:    sc.FixAfter,
		RejectFlags: sc.RejectFlags,
	}), nil
}

// Receiver wraps the port in a gnss.Receiver. rec may be nil.
func (p *Port) Receiver(cfg config.Config, rec gnss.Recorder) *gnss.Receiver {
	return gnss.New(p.Transport, gnss.Options{
		MaxRead:   cfg.Receiver.MaxRead,
		AckPoll:   cfg.Commands.AckPoll,
		DiagEvery: cfg.Diagnostics.PollEvery,
		Recorder:  rec,
	})
}

// AddressString is the bus address as shown to operators, empty off-bus.
func (p *Port) AddressString() string {
	if p.Mode != ModeLive {
		return ""
	}
	return fmt.Sprintf("0x%02X", p.Address)
}

// AntennaOptions maps the antenna and commands sections onto the workflow.
func AntennaOptions(cfg config.Config) antenna.Options {
	a := cfg.Antenna
	opts := antenna.Options{
		Candidates:     a.Candidates,
		Persist:        a.Persist,
		SaveScope:      antenna.SaveScope(a.SaveScope),
		EnableMessages: a.EnableMessages,
		SkipVerify:     a.SkipVerify,
		AckTimeout:     cfg.Commands.AckTimeout,
		SaveTimeout:    cfg.Commands.SaveTimeout,
		PollTimeout:    cfg.Commands.PollTimeout,
		TestWindow:     a.TestWindow,
		PollInterval:   cfg.Receiver.PollInterval,
	}
	for _, c := range a.ConstellationSettings() {
		opts.Constellations = append(opts.Constellations, antenna.Constellation{ID: uint8(c.ID), Enable: c.Enable})
	}
	return opts
}
