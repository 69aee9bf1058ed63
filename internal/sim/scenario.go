package sim

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/satellite"
)

// ScenarioScript is a deterministic, script-driven antenna timeline.
//
// Time is expressed as Go duration strings (e.g. "0s", "250ms", "10s").
// If Duration is zero, it is derived from the latest keyframe time.
//
// YAML schema (v1):
//
//	version: 1
//	duration: 60s
//	loop: true
//	keyframes:
//	  - t: 0s
//	    lat_deg: 48.1173
//	    lon_deg: 11.5167
//	    alt_m: 520
//	    speed_knots: 0
//	    course_deg: 0
//	    satellites: 0      # optional; omitted keeps the device default
//	    antenna: open      # optional; ok, open or short
//
// Position, altitude, speed and course interpolate between keyframes.
// Satellites and antenna hold the value of the segment's first keyframe.
type ScenarioScript struct {
	Version   int           `yaml:"version"`
	Duration  time.Duration `yaml:"duration"`
	Loop      bool          `yaml:"loop"`
	Keyframes []Keyframe    `yaml:"keyframes"`
}

// Keyframe is a time-stamped antenna state.
type Keyframe struct {
	T          time.Duration `yaml:"t"`
	LatDeg     float64       `yaml:"lat_deg"`
	LonDeg     float64       `yaml:"lon_deg"`
	AltM       float64       `yaml:"alt_m"`
	SpeedKnots float64       `yaml:"speed_knots"`
	CourseDeg  float64       `yaml:"course_deg"`
	Satellites *int          `yaml:"satellites"`
	Antenna    string        `yaml:"antenna"`
}

// Scenario is the validated, runtime representation.
type Scenario struct {
	script   ScenarioScript
	circuits []satellite.CircuitState
	// Derived duration (script.Duration or max keyframe time).
	duration time.Duration
}

// LoadScenario reads, parses and validates a YAML scenario from path.
func LoadScenario(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	script, err := ParseScenarioScriptYAML(b)
	if err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return NewScenario(script)
}

// ParseScenarioScriptYAML parses a YAML scenario script.
func ParseScenarioScriptYAML(b []byte) (ScenarioScript, error) {
	var s ScenarioScript
	if err := yaml.Unmarshal(b, &s); err != nil {
		return ScenarioScript{}, err
	}
	return s, nil
}

// NewScenario validates script and returns a runtime Scenario.
func NewScenario(script ScenarioScript) (*Scenario, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported scenario version %d", script.Version)
	}
	if len(script.Keyframes) == 0 {
		return nil, fmt.Errorf("keyframes is required")
	}
	circuits := make([]satellite.CircuitState, len(script.Keyframes))
	for i, kf := range script.Keyframes {
		if kf.T < 0 {
			return nil, fmt.Errorf("keyframes[%d].t must be >= 0", i)
		}
		if i > 0 && kf.T < script.Keyframes[i-1].T {
			return nil, fmt.Errorf("keyframes must be sorted by t (index %d)", i)
		}
		if kf.Satellites != nil && (*kf.Satellites < 0 || *kf.Satellites > 64) {
			return nil, fmt.Errorf("keyframes[%d].satellites must be in [0, 64]", i)
		}
		c, err := parseCircuit(kf.Antenna)
		if err != nil {
			return nil, fmt.Errorf("keyframes[%d].antenna: %w", i, err)
		}
		circuits[i] = c
	}

	dur := script.Duration
	if dur <= 0 {
		dur = script.Keyframes[len(script.Keyframes)-1].T
	}
	if dur <= 0 && len(script.Keyframes) > 1 {
		return nil, fmt.Errorf("duration is required (or deriveable from keyframes)")
	}
	return &Scenario{script: script, circuits: circuits, duration: dur}, nil
}

func parseCircuit(s string) (satellite.CircuitState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ok":
		return satellite.CircuitOK, nil
	case "open":
		return satellite.CircuitOpen, nil
	case "short":
		return satellite.CircuitShort, nil
	default:
		return 0, fmt.Errorf("unknown state %q", s)
	}
}

// Duration returns the effective scenario duration.
func (s *Scenario) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.duration
}

// At computes the state at elapsed. Looping scenarios wrap around Duration();
// others clamp to [0, Duration()].
func (s *Scenario) At(elapsed time.Duration) State {
	if s == nil {
		return State{Satellites: -1}
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if s.duration > 0 {
		if s.script.Loop {
			elapsed = elapsed % s.duration
		} else if elapsed > s.duration {
			elapsed = s.duration
		}
	}

	i0, i1, alpha := s.segment(elapsed)
	k0, k1 := s.script.Keyframes[i0], s.script.Keyframes[i1]
	st := State{
		LatDeg:     lerp(k0.LatDeg, k1.LatDeg, alpha),
		LonDeg:     lerp(k0.LonDeg, k1.LonDeg, alpha),
		AltM:       lerp(k0.AltM, k1.AltM, alpha),
		SpeedKnots: lerp(k0.SpeedKnots, k1.SpeedKnots, alpha),
		CourseDeg:  lerpAngleDeg(k0.CourseDeg, k1.CourseDeg, alpha),
		Satellites: -1,
		Circuit:    s.circuits[i0],
	}
	if k0.Satellites != nil {
		st.Satellites = *k0.Satellites
	}
	return st
}

func (s *Scenario) segment(t time.Duration) (int, int, float64) {
	kfs := s.script.Keyframes
	if len(kfs) == 1 {
		return 0, 0, 0
	}
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return 0, 0, 0
	}
	if idx >= len(kfs) {
		return len(kfs) - 1, len(kfs) - 1, 0
	}
	dt := kfs[idx].T - kfs[idx-1].T
	if dt <= 0 {
		return idx, idx, 0
	}
	alpha := float64(t-kfs[idx-1].T) / float64(dt)
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return idx - 1, idx, alpha
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func lerpAngleDeg(a0, a1, t float64) float64 {
	// Shortest-path interpolation across wraparound.
	a0 = wrap360(a0)
	a1 = wrap360(a1)
	delta := a1 - a0
	if delta > 180 {
		delta -= 360
	} else if delta < -180 {
		delta += 360
	}
	return wrap360(a0 + delta*t)
}

func wrap360(x float64) float64 {
	for x < 0 {
		x += 360
	}
	for x >= 360 {
		x -= 360
	}
	return x
}
