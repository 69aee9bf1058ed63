package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/antenna"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/satellite"
)

type Config struct {
	Receiver    ReceiverConfig    `yaml:"receiver"`
	Commands    CommandsConfig    `yaml:"commands"`
	Antenna     AntennaConfig     `yaml:"antenna"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Web         WebConfig         `yaml:"web"`
	Record      RecordConfig      `yaml:"record"`
	Forward     ForwardConfig     `yaml:"forward"`
	Replay      ReplayConfig      `yaml:"replay"`
	Sim         SimConfig         `yaml:"sim"`
}

const (
	DriverIoctl  = "ioctl"
	DriverPeriph = "periph"
	DriverSim    = "sim"
)

type ReceiverConfig struct {
	// Driver selects the bus implementation: ioctl (Linux i2c-dev), periph
	// (periph.io registry) or sim (built-in simulated receiver).
	Driver       string        `yaml:"driver"`
	Bus          string        `yaml:"bus"`
	Address      uint16        `yaml:"address"`
	ReadChunk    int           `yaml:"read_chunk"`
	WriteChunk   int           `yaml:"write_chunk"`
	WritePacing  time.Duration `yaml:"write_pacing"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxRead      int           `yaml:"max_read"`
}

type CommandsConfig struct {
	AckTimeout  time.Duration `yaml:"ack_timeout"`
	SaveTimeout time.Duration `yaml:"save_timeout"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
	AckPoll     time.Duration `yaml:"ack_poll"`
}

type AntennaConfig struct {
	Candidates     []string        `yaml:"candidates"`
	Persist        bool            `yaml:"persist"`
	SaveScope      string          `yaml:"save_scope"`
	EnableMessages bool            `yaml:"enable_messages"`
	Constellations map[string]bool `yaml:"constellations"`
	TestWindow     time.Duration   `yaml:"test_window"`
	SkipVerify     bool            `yaml:"skip_verify"`
}

// ConstellationSetting is one antenna.constellations entry, resolved.
type ConstellationSetting struct {
	ID     satellite.Constellation
	Enable bool
}

// ConstellationSettings returns antenna.constellations ordered by name.
// Load has already rejected unknown names.
func (a AntennaConfig) ConstellationSettings() []ConstellationSetting {
	names := make([]string, 0, len(a.Constellations))
	for n := range a.Constellations {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]ConstellationSetting, 0, len(names))
	for _, n := range names {
		id, _ := satellite.ParseConstellation(n)
		out = append(out, ConstellationSetting{ID: id, Enable: a.Constellations[n]})
	}
	return out
}

type DiagnosticsConfig struct {
	// PollEvery sends NAV-SAT/NAV-STATUS/MON-HW polls every N acquisition
	// ticks; 0 disables.
	PollEvery int `yaml:"poll_every"`
	Top       int `yaml:"top"`
}

type MQTTConfig struct {
	Enable      bool   `yaml:"enable"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

// ForwardConfig sends every NMEA sentence read from the receiver to a UDP
// listener such as a chart plotter.
type ForwardConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type ReplayConfig struct {
	Enable bool    `yaml:"enable"`
	Path   string  `yaml:"path"`
	Speed  float64 `yaml:"speed"`
	Loop   bool    `yaml:"loop"`
}

type SimConfig struct {
	CenterLatDeg float64       `yaml:"center_lat_deg"`
	CenterLonDeg float64       `yaml:"center_lon_deg"`
	AltM         float64       `yaml:"alt_m"`
	RadiusM      float64       `yaml:"radius_m"`
	Period       time.Duration `yaml:"period"`
	Satellites   int           `yaml:"satellites"`
	FixAfter     time.Duration `yaml:"fix_after"`
	// Scenario, if set, is a YAML keyframe script that replaces the
	// figure-eight track.
	Scenario     string        `yaml:"scenario"`
	// RejectFlags lists CFG-ANT flag words the simulated receiver NAKs.
	RejectFlags  []uint16      `yaml:"reject_flags"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration of an empty file.
func Default() Config {
	var cfg Config
	cfg.Receiver.Bus = "/dev/i2c-1"
	_ = cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() error {
	r := &cfg.Receiver
	r.Driver = strings.ToLower(strings.TrimSpace(r.Driver))
	if r.Driver == "" {
		r.Driver = DriverIoctl
	}
	switch r.Driver {
	case DriverIoctl, DriverPeriph, DriverSim:
	default:
		return fmt.Errorf("receiver.driver must be one of ioctl, periph, sim")
	}
	if r.Driver != DriverSim && !cfg.Replay.Enable && strings.TrimSpace(r.Bus) == "" {
		return fmt.Errorf("receiver.bus is required")
	}
	if r.Address == 0 {
		r.Address = 0x42
	}
	if r.Address > 0x7F {
		return fmt.Errorf("receiver.address must be a 7-bit address")
	}
	if r.ReadChunk <= 0 {
		r.ReadChunk = 32
	}
	if r.WriteChunk <= 0 {
		r.WriteChunk = 32
	}
	if r.ReadChunk > 32 || r.WriteChunk > 32 {
		return fmt.Errorf("receiver.read_chunk and receiver.write_chunk must be <= 32")
	}
	if r.WriteChunk < 16 {
		return fmt.Errorf("receiver.write_chunk must be >= 16")
	}
	if r.WritePacing <= 0 {
		r.WritePacing = 10 * time.Millisecond
	}
	if r.PollInterval <= 0 {
		r.PollInterval = 100 * time.Millisecond
	}
	if r.MaxRead <= 0 {
		r.MaxRead = 512
	}

	c := &cfg.Commands
	if c.AckTimeout <= 0 {
		c.AckTimeout = 2 * time.Second
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = 5 * time.Second
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 2 * time.Second
	}
	if c.AckPoll <= 0 {
		c.AckPoll = 50 * time.Millisecond
	}

	a := &cfg.Antenna
	if a.SaveScope == "" {
		a.SaveScope = "all"
	}
	if a.SaveScope != "all" && a.SaveScope != "antenna" {
		return fmt.Errorf("antenna.save_scope must be 'all' or 'antenna'")
	}
	for _, name := range a.Candidates {
		if _, ok := antenna.LookupPreset(name); !ok && name != antenna.ReadModify {
			return fmt.Errorf("antenna.candidates: unknown candidate %q", name)
		}
	}
	for name := range a.Constellations {
		if _, ok := satellite.ParseConstellation(name); !ok {
			return fmt.Errorf("antenna.constellations: unknown constellation %q", name)
		}
	}
	if a.TestWindow <= 0 {
		a.TestWindow = 30 * time.Second
	}

	if cfg.Diagnostics.PollEvery < 0 {
		return fmt.Errorf("diagnostics.poll_every must be >= 0")
	}
	if cfg.Diagnostics.Top <= 0 {
		cfg.Diagnostics.Top = 10
	}

	if cfg.MQTT.Enable {
		if strings.TrimSpace(cfg.MQTT.Broker) == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt.enable is true")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "gnss-logger"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "gnss"
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	if cfg.Record.Enable && cfg.Record.Path == "" {
		return fmt.Errorf("record.path is required when record.enable is true")
	}
	if cfg.Forward.Enable && strings.TrimSpace(cfg.Forward.Dest) == "" {
		return fmt.Errorf("forward.dest is required when forward.enable is true")
	}
	if cfg.Replay.Enable {
		if cfg.Replay.Path == "" {
			return fmt.Errorf("replay.path is required when replay.enable is true")
		}
		if cfg.Replay.Speed == 0 {
			cfg.Replay.Speed = 1
		}
		if cfg.Replay.Speed < 0 {
			return fmt.Errorf("replay.speed must be > 0")
		}
	}
	if cfg.Record.Enable && cfg.Replay.Enable {
		return fmt.Errorf("record and replay cannot both be enabled")
	}

	s := &cfg.Sim
	if s.CenterLatDeg == 0 && s.CenterLonDeg == 0 {
		s.CenterLatDeg, s.CenterLonDeg = 48.1173, 11.5167
	}
	if s.AltM == 0 {
		s.AltM = 520
	}
	if s.RadiusM <= 0 {
		s.RadiusM = 50
	}
	if s.Period <= 0 {
		s.Period = 120 * time.Second
	}
	if s.Satellites <= 0 {
		s.Satellites = 9
	}
	if s.FixAfter < 0 {
		return fmt.Errorf("sim.fix_after must be >= 0")
	}
	return nil
}
