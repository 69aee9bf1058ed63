package sim

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/satellite"
)

func TestScenario_ParseAndInterpolateAngleWrap(t *testing.T) {
	yaml := []byte(`
version: 1
# duration derived from last keyframe
keyframes:
  - t: 0s
    lat_deg: 0
    lon_deg: 0
    alt_m: 0
    speed_knots: 10
    course_deg: 350
  - t: 10s
    lat_deg: 10
    lon_deg: 20
    alt_m: 1000
    speed_knots: 20
    course_deg: 10
`)

	script, err := ParseScenarioScriptYAML(yaml)
	if err != nil {
		t.Fatalf("ParseScenarioScriptYAML: %v", err)
	}
	scn, err := NewScenario(script)
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}
	if scn.Duration() != 10*time.Second {
		t.Fatalf("duration: got %s want %s", scn.Duration(), 10*time.Second)
	}

	st := scn.At(5 * time.Second)
	// Course 350->10 should interpolate via +20deg shortest path:
	// halfway is 0 degrees.
	if st.CourseDeg != 0 {
		t.Fatalf("course wrap interpolation: got %v want 0", st.CourseDeg)
	}
	if st.LatDeg != 5 || st.LonDeg != 10 {
		t.Fatalf("position interpolation: got %v,%v want 5,10", st.LatDeg, st.LonDeg)
	}
	if st.AltM != 500 || st.SpeedKnots != 15 {
		t.Fatalf("alt/speed interpolation: got %v,%v", st.AltM, st.SpeedKnots)
	}
	if st.Satellites != -1 || st.Circuit != satellite.CircuitOK {
		t.Fatalf("defaults: satellites=%d circuit=%s", st.Satellites, st.Circuit)
	}
}

func TestScenario_LoopAndClamp(t *testing.T) {
	script := ScenarioScript{
		Duration: 10 * time.Second,
		Keyframes: []Keyframe{
			{T: 0, LatDeg: 0},
			{T: 10 * time.Second, LatDeg: 10},
		},
	}
	scn, err := NewScenario(script)
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}
	if st := scn.At(11 * time.Second); st.LatDeg != 10 {
		t.Fatalf("clamp lat: got %v want 10", st.LatDeg)
	}

	script.Loop = true
	scn, err = NewScenario(script)
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}
	if st := scn.At(11 * time.Second); st.LatDeg != 1 {
		t.Fatalf("loop lat: got %v want 1", st.LatDeg)
	}
}

func TestScenario_StepFields(t *testing.T) {
	yaml := []byte(`
keyframes:
  - t: 0s
    satellites: 0
    antenna: open
  - t: 20s
    satellites: 8
  - t: 30s
`)
	script, err := ParseScenarioScriptYAML(yaml)
	if err != nil {
		t.Fatalf("ParseScenarioScriptYAML: %v", err)
	}
	scn, err := NewScenario(script)
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}

	st := scn.At(19 * time.Second)
	if st.Satellites != 0 || st.Circuit != satellite.CircuitOpen {
		t.Fatalf("at 19s: satellites=%d circuit=%s", st.Satellites, st.Circuit)
	}
	st = scn.At(25 * time.Second)
	if st.Satellites != 8 || st.Circuit != satellite.CircuitOK {
		t.Fatalf("at 25s: satellites=%d circuit=%s", st.Satellites, st.Circuit)
	}
	st = scn.At(40 * time.Second)
	if st.Satellites != -1 {
		t.Fatalf("at end: satellites=%d want device default", st.Satellites)
	}
}

func TestNewScenario_Validation(t *testing.T) {
	tooMany := 80
	cases := []struct {
		name   string
		script ScenarioScript
		want   string
	}{
		{"version", ScenarioScript{Version: 2, Keyframes: []Keyframe{{}}}, "unsupported scenario version 2"},
		{"empty", ScenarioScript{}, "keyframes is required"},
		{"negative t", ScenarioScript{Keyframes: []Keyframe{{T: -time.Second}}}, "keyframes[0].t must be >= 0"},
		{"unsorted", ScenarioScript{Keyframes: []Keyframe{{T: 2 * time.Second}, {T: time.Second}}}, "keyframes must be sorted by t (index 1)"},
		{"satellites", ScenarioScript{Keyframes: []Keyframe{{Satellites: &tooMany}}}, "keyframes[0].satellites must be in [0, 64]"},
		{"antenna", ScenarioScript{Keyframes: []Keyframe{{Antenna: "cut"}}}, `keyframes[0].antenna: unknown state "cut"`},
		{"no duration", ScenarioScript{Keyframes: []Keyframe{{}, {}}}, "duration is required (or deriveable from keyframes)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewScenario(tc.script)
			if err == nil || err.Error() != tc.want {
				t.Fatalf("err=%v want %q", err, tc.want)
			}
		})
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scn.yaml")
	if err := os.WriteFile(path, []byte("keyframes:\n  - t: 0s\n    lat_deg: 48\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	scn, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if st := scn.At(time.Hour); st.LatDeg != 48 {
		t.Fatalf("lat=%v want 48", st.LatDeg)
	}
	if _, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
