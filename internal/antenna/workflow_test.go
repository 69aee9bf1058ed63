package antenna

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/gnss"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/gps"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/satellite"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/ubx"
)

type fakeDevice struct {
	monBefore []byte // nil: MON-HW poll unanswered
	monAfter  []byte
	ant       *ubx.AntConfig
	// readback, if set, replaces what the receiver reports after a set.
	readback *ubx.AntConfig

	accept  func(c ubx.AntConfig) gnss.Result
	saveRes gnss.Result
	saveErr error
	cmdRes  gnss.Result

	satsAfter int // polls before GGA reports satellites; 0 never
	fixAfter  int // polls before RMC turns Active; 0 never

	configured bool
	sent       []ubx.Frame
	polls      int
	pos        gps.PositionState
	obs        gps.Observations
}

func monHw(aStatus, aPower uint8) []byte {
	p := make([]byte, 60)
	p[20], p[21] = aStatus, aPower
	return p
}

func (d *fakeDevice) Poll() int {
	d.polls++
	if d.satsAfter > 0 && d.polls >= d.satsAfter {
		n := 7
		d.obs.GGASatellites = &n
	}
	if d.fixAfter > 0 && d.polls >= d.fixAfter {
		lat, lon := 48.1, 11.5
		d.pos.FixStatus = gps.FixActive
		d.pos.LatDeg, d.pos.LonDeg = &lat, &lon
	}
	return 0
}

func (d *fakeDevice) Request(_ context.Context, poll ubx.Frame, _ time.Duration) (ubx.Frame, bool) {
	d.sent = append(d.sent, poll)
	switch {
	case poll.Is(ubx.ClassMON, ubx.IDMonHw):
		p := d.monBefore
		if d.configured {
			p = d.monAfter
		}
		if p == nil {
			return ubx.Frame{}, false
		}
		return ubx.Frame{Class: ubx.ClassMON, ID: ubx.IDMonHw, Payload: p}, true
	case poll.Is(ubx.ClassCFG, ubx.IDCfgAnt):
		if d.ant == nil {
			return ubx.Frame{}, false
		}
		return ubx.CfgAnt(*d.ant), true
	}
	return ubx.Frame{}, false
}

func (d *fakeDevice) SendAndWait(_ context.Context, f ubx.Frame, _ time.Duration) (gnss.Result, error) {
	d.sent = append(d.sent, f)
	switch {
	case f.Is(ubx.ClassCFG, ubx.IDCfgAnt):
		c, _ := ubx.ParseCfgAnt(f.Payload)
		res := d.accept(c)
		if res == gnss.Ack {
			d.configured = true
			if d.readback != nil {
				c = *d.readback
			}
			d.ant = &c
		}
		return res, nil
	case f.Is(ubx.ClassCFG, ubx.IDCfgCfg):
		return d.saveRes, d.saveErr
	default:
		return d.cmdRes, nil
	}
}

func (d *fakeDevice) SendWithFallback(ctx context.Context, cands []gnss.Candidate, timeout time.Duration) gnss.FallbackOutcome {
	out := gnss.FallbackOutcome{Index: -1}
	for i, c := range cands {
		f := c.Frame
		if c.Prepare != nil {
			var err error
			if f, err = c.Prepare(ctx); err != nil {
				out.Attempts = append(out.Attempts, gnss.Attempt{Name: c.Name, Err: err.Error()})
				continue
			}
		}
		res, _ := d.SendAndWait(ctx, f, timeout)
		out.Attempts = append(out.Attempts, gnss.Attempt{Name: c.Name, Result: res})
		if res == gnss.Ack {
			out.Index, out.Name = i, c.Name
			return out
		}
	}
	return out
}

func (d *fakeDevice) Position() gps.PositionState    { return d.pos }
func (d *fakeDevice) Observations() gps.Observations { return d.obs }
func (d *fakeDevice) Satellites() satellite.Snapshot { return satellite.Snapshot{} }

func (d *fakeDevice) sentOf(class, id uint8) []ubx.Frame {
	var out []ubx.Frame
	for _, f := range d.sent {
		if f.Is(class, id) {
			out = append(out, f)
		}
	}
	return out
}

func acceptFlags(flags ubx.AntFlags) func(ubx.AntConfig) gnss.Result {
	return func(c ubx.AntConfig) gnss.Result {
		if c.Flags == flags {
			return gnss.Ack
		}
		return gnss.Nak
	}
}

func fastOptions() Options {
	return Options{TestWindow: 50 * time.Millisecond, PollInterval: time.Millisecond}
}

func TestWorkflow_FallbackSaveVerifyFix(t *testing.T) {
	d := &fakeDevice{
		monBefore: monHw(byte(satellite.CircuitOK), byte(satellite.PowerOff)),
		monAfter:  monHw(byte(satellite.CircuitOK), byte(satellite.PowerOn)),
		accept:    acceptFlags(0x0001),
		saveRes:   gnss.Ack,
		satsAfter: 1,
		fixAfter:  3,
	}
	opts := fastOptions()
	opts.Persist = true
	opts.TestWindow = 5 * time.Second

	rep, err := New(d, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() err=%v", err)
	}

	if !rep.Before.Observed || rep.Before.Antenna.Power != satellite.PowerOff {
		t.Fatalf("before=%+v", rep.Before)
	}
	if rep.Configure.Status != StepSucceeded || rep.Configure.Outcome.Name != "minimal" {
		t.Fatalf("configure=%+v", rep.Configure)
	}
	if got := len(rep.Configure.Outcome.Attempts); got != 2 {
		t.Fatalf("attempts=%d want 2", got)
	}
	if rep.Save != Saved {
		t.Fatalf("save=%s", rep.Save)
	}
	saves := d.sentOf(ubx.ClassCFG, ubx.IDCfgCfg)
	if len(saves) != 1 || !saves[0].Equal(ubx.SaveAll()) {
		t.Fatalf("save frames=%v", saves)
	}
	if rep.Verify.Status != StepSucceeded || !rep.Verify.PoweredOn || rep.Verify.ConfigMatches == nil || !*rep.Verify.ConfigMatches {
		t.Fatalf("verify=%+v", rep.Verify)
	}
	if rep.SatelliteTest.Outcome != FixAcquired || rep.SatelliteTest.MaxSatellites != 7 {
		t.Fatalf("satellite test=%+v", rep.SatelliteTest)
	}
	if !rep.OK() {
		t.Fatalf("OK()=false")
	}
}

func TestWorkflow_AllCandidatesRejected(t *testing.T) {
	d := &fakeDevice{
		monBefore: monHw(byte(satellite.CircuitOpen), byte(satellite.PowerOn)),
		accept:    func(ubx.AntConfig) gnss.Result { return gnss.Nak },
		saveRes:   gnss.Ack,
	}
	opts := fastOptions()
	opts.Persist = true

	start := time.Now()
	rep, err := New(d, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() err=%v", err)
	}
	if rep.Configure.Status != StepFailed || rep.Configure.Outcome.OK() {
		t.Fatalf("configure=%+v", rep.Configure)
	}
	// standard, minimal, maximal rejected; read_modify has nothing to read.
	if got := len(rep.Configure.Outcome.Attempts); got != 4 {
		t.Fatalf("attempts=%d want 4", got)
	}
	if rep.Save != SaveSkipped || len(d.sentOf(ubx.ClassCFG, ubx.IDCfgCfg)) != 0 {
		t.Fatalf("save should be skipped: %s", rep.Save)
	}
	if rep.Verify.Status != StepFailed {
		t.Fatalf("verify=%+v", rep.Verify)
	}
	if rep.SatelliteTest.Outcome != NoSatellites {
		t.Fatalf("outcome=%s", rep.SatelliteTest.Outcome)
	}
	if el := time.Since(start); el < 50*time.Millisecond || el > 2*time.Second {
		t.Fatalf("satellite test window not honoured: %s", el)
	}
	if rep.OK() {
		t.Fatalf("OK()=true")
	}
}

func TestWorkflow_SaveOutcomes(t *testing.T) {
	cases := []struct {
		res  gnss.Result
		want SaveResult
	}{
		{gnss.Ack, Saved},
		{gnss.Nak, SaveRejected},
		{gnss.Timeout, SaveUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.res.String(), func(t *testing.T) {
			d := &fakeDevice{accept: acceptFlags(0x001B), saveRes: tc.res}
			opts := fastOptions()
			opts.Persist = true
			opts.SaveScope = SaveAntenna
			opts.SkipVerify = true
			opts.TestWindow = time.Millisecond

			rep, _ := New(d, opts).Run(context.Background())
			if rep.Save != tc.want {
				t.Fatalf("save=%s want %s", rep.Save, tc.want)
			}
			if saves := d.sentOf(ubx.ClassCFG, ubx.IDCfgCfg); len(saves) != 1 || !saves[0].Equal(ubx.SaveAntenna()) {
				t.Fatalf("save frames=%v", saves)
			}
			if rep.Verify.Status != StepSkipped {
				t.Fatalf("verify=%s", rep.Verify.Status)
			}
		})
	}
}

func TestWorkflow_ReadModify(t *testing.T) {
	d := &fakeDevice{
		ant:    &ubx.AntConfig{Flags: 0x001A, Pins: 0x8251},
		accept: acceptFlags(0x001B),
	}
	opts := fastOptions()
	opts.Candidates = []string{ReadModify}
	opts.TestWindow = time.Millisecond

	rep, _ := New(d, opts).Run(context.Background())
	if rep.Configure.Status != StepSucceeded {
		t.Fatalf("configure=%+v", rep.Configure)
	}
	if a := rep.Configure.Applied; a == nil || a.Flags != 0x001B || a.Pins != 0x8251 {
		t.Fatalf("applied=%+v", a)
	}
}

func TestWorkflow_ReadbackMismatchFailsVerify(t *testing.T) {
	d := &fakeDevice{
		monAfter: monHw(byte(satellite.CircuitOK), byte(satellite.PowerOn)),
		readback: &ubx.AntConfig{Flags: 0x001F, Pins: 0x0000},
		accept:   acceptFlags(0xFFFF),
	}
	opts := fastOptions()
	opts.Candidates = []string{"maximal"}
	opts.TestWindow = time.Millisecond

	rep, _ := New(d, opts).Run(context.Background())
	if rep.Verify.ConfigMatches == nil || *rep.Verify.ConfigMatches {
		t.Fatalf("ConfigMatches=%v", rep.Verify.ConfigMatches)
	}
	if rep.Verify.Status != StepFailed {
		t.Fatalf("verify=%s", rep.Verify.Status)
	}
}

func TestWorkflow_VisibleNoFix(t *testing.T) {
	d := &fakeDevice{accept: acceptFlags(0x001B), satsAfter: 2}
	rep, _ := New(d, fastOptions()).Run(context.Background())
	if rep.SatelliteTest.Outcome != SatellitesVisibleNoFix || rep.SatelliteTest.MaxSatellites != 7 {
		t.Fatalf("satellite test=%+v", rep.SatelliteTest)
	}
}

func TestWorkflow_MessagesAndConstellations(t *testing.T) {
	d := &fakeDevice{accept: acceptFlags(0x001B), cmdRes: gnss.Ack}
	opts := fastOptions()
	opts.EnableMessages = true
	opts.Constellations = []Constellation{{ID: ubx.GnssGalileo, Enable: true}, {ID: ubx.GnssGLONASS, Enable: false}}
	opts.TestWindow = time.Millisecond

	rep, _ := New(d, opts).Run(context.Background())
	if len(rep.Messages) != 4 || len(d.sentOf(ubx.ClassCFG, ubx.IDCfgMsg)) != 4 {
		t.Fatalf("messages=%+v", rep.Messages)
	}
	if len(rep.Constellations) != 2 || rep.Constellations[0].Name != "Galileo" || rep.Constellations[1].Name != "GLONASS off" {
		t.Fatalf("constellations=%+v", rep.Constellations)
	}
	gnssFrames := d.sentOf(ubx.ClassCFG, ubx.IDCfgGnss)
	if len(gnssFrames) != 2 || !gnssFrames[0].Equal(ubx.CfgGnss(ubx.GnssGalileo, true, 16)) {
		t.Fatalf("CFG-GNSS frames=%v", gnssFrames)
	}
}

func TestWorkflow_UnknownCandidate(t *testing.T) {
	opts := fastOptions()
	opts.Candidates = []string{"standard", "bogus"}
	if _, err := New(&fakeDevice{}, opts).Run(context.Background()); err == nil {
		t.Fatalf("expected error for unknown candidate")
	}
}

func TestWorkflow_SaveWriteError(t *testing.T) {
	d := &fakeDevice{accept: acceptFlags(0x001B), saveRes: gnss.Timeout, saveErr: errors.New("i2c write: remote I/O error")}
	opts := fastOptions()
	opts.Persist = true
	opts.SkipVerify = true
	opts.TestWindow = time.Millisecond

	rep, _ := New(d, opts).Run(context.Background())
	if rep.Save != SaveFailed || rep.SaveError != "i2c write: remote I/O error" {
		t.Fatalf("save=%s err=%q", rep.Save, rep.SaveError)
	}
	text := strings.Join(rep.Lines(), "\n")
	if !strings.Contains(text, "save: failed (i2c write: remote I/O error)") {
		t.Fatalf("report lines:\n%s", text)
	}
}

func TestReport_Lines(t *testing.T) {
	d := &fakeDevice{
		monBefore: monHw(byte(satellite.CircuitOK), byte(satellite.PowerOn)),
		monAfter:  monHw(byte(satellite.CircuitOK), byte(satellite.PowerOn)),
		accept:    acceptFlags(0x001B),
		saveRes:   gnss.Ack,
		fixAfter:  1,
	}
	opts := fastOptions()
	opts.Persist = true
	rep, _ := New(d, opts).Run(context.Background())

	text := strings.Join(rep.Lines(), "\n")
	for _, want := range []string{"configure: succeeded", "save: saved", "fix_acquired", "position: 48.100000, 11.500000"} {
		if !strings.Contains(text, want) {
			t.Fatalf("report missing %q:\n%s", want, text)
		}
	}
}

func TestPresets(t *testing.T) {
	p, ok := LookupPreset("high_gain")
	if !ok || p.Config.Flags != 0x0017 || p.Config.Pins != 0x001F {
		t.Fatalf("high_gain=%+v ok=%v", p, ok)
	}
	names := PresetNames()
	found := false
	for _, n := range names {
		if n == ReadModify {
			found = true
		}
	}
	if !found {
		t.Fatalf("PresetNames() missing %s", ReadModify)
	}
}
