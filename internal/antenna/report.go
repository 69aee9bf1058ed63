package antenna

import (
	"fmt"
	"strconv"
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/gnss"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/gps"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/satellite"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/ubx"
)

type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

type SaveResult string

const (
	SaveSkipped  SaveResult = "skipped"
	Saved        SaveResult = "saved"
	SaveRejected SaveResult = "rejected"
	// SaveUnknown means no ACK or NAK arrived; the setting is assumed to be
	// volatile.
	SaveUnknown SaveResult = "unknown"
	// SaveFailed means the CFG-CFG frame could not be written to the bus.
	SaveFailed SaveResult = "failed"
)

type TestOutcome string

const (
	FixAcquired            TestOutcome = "fix_acquired"
	SatellitesVisibleNoFix TestOutcome = "satellites_visible_no_fix"
	NoSatellites           TestOutcome = "no_satellites"
)

// Duration marshals as a Go duration string.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

type StatusReading struct {
	Observed bool                    `json:"observed"`
	Antenna  satellite.AntennaStatus `json:"antenna"`
	Config   *ubx.AntConfig          `json:"config,omitempty"`
}

type ConfigureResult struct {
	Status  StepStatus           `json:"status"`
	Outcome gnss.FallbackOutcome `json:"outcome"`
	Applied *ubx.AntConfig       `json:"applied,omitempty"`
}

type CommandResult struct {
	Name   string      `json:"name"`
	Result gnss.Result `json:"result"`
	Err    string      `json:"error,omitempty"`
}

func commandResult(name string, res gnss.Result, err error) CommandResult {
	c := CommandResult{Name: name, Result: res}
	if err != nil {
		c.Err = err.Error()
	}
	return c
}

type VerifyResult struct {
	Status        StepStatus              `json:"status"`
	Observed      bool                    `json:"observed"`
	Antenna       satellite.AntennaStatus `json:"antenna"`
	PoweredOn     bool                    `json:"powered_on"`
	Healthy       bool                    `json:"healthy"`
	Config        *ubx.AntConfig          `json:"config,omitempty"`
	ConfigMatches *bool                   `json:"config_matches,omitempty"`
}

type SatelliteTestResult struct {
	Outcome        TestOutcome       `json:"outcome"`
	MaxSatellites  int               `json:"max_satellites"`
	FirstSatellite Duration          `json:"first_satellite_after,omitempty"`
	FixAfter       Duration          `json:"fix_after,omitempty"`
	Position       gps.PositionState `json:"position"`
	Satellites     satellite.Summary `json:"satellites"`
}

// Report is the structured result of one workflow run.
type Report struct {
	Started        time.Time           `json:"started"`
	Finished       time.Time           `json:"finished"`
	Before         StatusReading       `json:"before"`
	Configure      ConfigureResult     `json:"configure"`
	Messages       []CommandResult     `json:"messages,omitempty"`
	Constellations []CommandResult     `json:"constellations,omitempty"`
	Save           SaveResult          `json:"save"`
	SaveError      string              `json:"save_error,omitempty"`
	Verify         VerifyResult        `json:"verify"`
	SatelliteTest  SatelliteTestResult `json:"satellite_test"`
}

// OK reports a configured, verified antenna with at least satellites in view.
func (r Report) OK() bool {
	return r.Configure.Status == StepSucceeded &&
		r.Verify.Status != StepFailed &&
		r.SatelliteTest.Outcome != NoSatellites
}

// Lines renders the report for a terminal.
func (r Report) Lines() []string {
	var out []string
	add := func(format string, args ...any) { out = append(out, fmt.Sprintf(format, args...)) }

	if r.Before.Observed {
		add("before: circuit=%s power=%s", r.Before.Antenna.Circuit, r.Before.Antenna.Power)
	} else {
		add("before: no MON-HW response")
	}
	if c := r.Before.Config; c != nil {
		add("before: flags=0x%04X (%s) pins=0x%04X", uint16(c.Flags), c.Flags, c.Pins)
	}
	for _, a := range r.Configure.Outcome.Attempts {
		add("configure: %-10s %s", a.Name, a.Result)
	}
	add("configure: %s", r.Configure.Status)
	for _, m := range r.Messages {
		add("output %s: %s", m.Name, m.Result)
	}
	for _, c := range r.Constellations {
		add("gnss %s: %s", c.Name, c.Result)
	}
	if r.SaveError != "" {
		add("save: %s (%s)", r.Save, r.SaveError)
	} else {
		add("save: %s", r.Save)
	}
	add("verify: %s circuit=%s power=%s", r.Verify.Status, r.Verify.Antenna.Circuit, r.Verify.Antenna.Power)
	if r.Verify.ConfigMatches != nil {
		add("verify: readback matches=%s", strconv.FormatBool(*r.Verify.ConfigMatches))
	}
	st := r.SatelliteTest
	add("satellites: %s max=%d visible=%d used=%d mean=%.1f dBHz hint=%s",
		st.Outcome, st.MaxSatellites, st.Satellites.Visible, st.Satellites.Used, st.Satellites.MeanSignal, st.Satellites.Hint)
	if st.Position.HasFix() {
		add("position: %.6f, %.6f", *st.Position.LatDeg, *st.Position.LonDeg)
	}
	return out
}
