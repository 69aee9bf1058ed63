package antenna

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/gnss"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/ubx"
)

// ReadModify polls the current CFG-ANT, sets the supply control bit and keeps
// the pin assignment.
const ReadModify = "read_modify"

// Preset is a fixed CFG-ANT flags/pins pair.
type Preset struct {
	Name        string
	Description string
	Config      ubx.AntConfig
}

var presets = map[string]Preset{
	"standard": {"standard", "supply control with short detection, power-down and recovery", ubx.AntConfig{Flags: 0x001B, Pins: 0x0000}},
	"minimal":  {"minimal", "supply control only", ubx.AntConfig{Flags: 0x0001, Pins: 0x0000}},
	"maximal":  {"maximal", "every flag and pin bit set", ubx.AntConfig{Flags: 0xFFFF, Pins: 0xFFFF}},

	"sparkfun":   {"sparkfun", "magnetic-mount active antenna, all protections", ubx.AntConfig{Flags: 0x001F, Pins: 0x001F}},
	"high_gain":  {"high_gain", "high-gain active antenna, no auto recovery", ubx.AntConfig{Flags: 0x0017, Pins: 0x001F}},
	"safe":       {"safe", "all supervisor features", ubx.AntConfig{Flags: 0x001F, Pins: 0x001F}},
	"power_only": {"power_only", "supply control only, default pins", ubx.AntConfig{Flags: 0x0001, Pins: 0x001F}},
	"extended":   {"extended", "supervisor with extended pin mapping", ubx.AntConfig{Flags: 0xF93B, Pins: 0xF91D}},
}

// DefaultCandidates is the generic fallback order.
var DefaultCandidates = []string{"standard", "minimal", "maximal", ReadModify}

// LookupPreset returns the named preset.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

// PresetNames lists every accepted candidate name.
func PresetNames() []string {
	names := make([]string, 0, len(presets)+1)
	for n := range presets {
		names = append(names, n)
	}
	names = append(names, ReadModify)
	sort.Strings(names)
	return names
}

// BuildCandidates turns names into fallback candidates. read_modify polls the
// device through dev when it is tried.
func BuildCandidates(names []string, dev Device, pollTimeout time.Duration) ([]gnss.Candidate, error) {
	if len(names) == 0 {
		names = DefaultCandidates
	}
	out := make([]gnss.Candidate, 0, len(names))
	for _, n := range names {
		if n == ReadModify {
			out = append(out, gnss.Candidate{Name: n, Prepare: readModify(dev, pollTimeout)})
			continue
		}
		p, ok := presets[n]
		if !ok {
			return nil, fmt.Errorf("antenna: unknown candidate %q", n)
		}
		out = append(out, gnss.Candidate{Name: n, Frame: ubx.CfgAnt(p.Config)})
	}
	return out, nil
}

func readModify(dev Device, timeout time.Duration) func(ctx context.Context) (ubx.Frame, error) {
	return func(ctx context.Context) (ubx.Frame, error) {
		f, ok := dev.Request(ctx, ubx.Poll(ubx.ClassCFG, ubx.IDCfgAnt), timeout)
		if !ok {
			return ubx.Frame{}, fmt.Errorf("antenna: no CFG-ANT response")
		}
		cur, ok := ubx.ParseCfgAnt(f.Payload)
		if !ok {
			return ubx.Frame{}, fmt.Errorf("antenna: short CFG-ANT payload len=%d", len(f.Payload))
		}
		cur.Flags |= ubx.AntSupplyControl
		return ubx.CfgAnt(cur), nil
	}
}
