// Package antenna runs the antenna configuration workflow against a receiver:
// read the supervisor status, apply a CFG-ANT setting with fallback, optionally
// persist it, verify the result and watch for satellites.
//
// Every step degrades to a recorded outcome; only a cancelled context ends the
// workflow early.
package antenna

import (
	"context"
	"log"
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/gnss"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/gps"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/satellite"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/ubx"
)

var now = time.Now

// Device is the subset of *gnss.Receiver the workflow drives.
type Device interface {
	Poll() int
	Request(ctx context.Context, poll ubx.Frame, timeout time.Duration) (ubx.Frame, bool)
	SendAndWait(ctx context.Context, f ubx.Frame, timeout time.Duration) (gnss.Result, error)
	SendWithFallback(ctx context.Context, cands []gnss.Candidate, timeout time.Duration) gnss.FallbackOutcome
	Position() gps.PositionState
	Observations() gps.Observations
	Satellites() satellite.Snapshot
}

type SaveScope string

const (
	SaveAll     SaveScope = "all"
	SaveAntenna SaveScope = "antenna"
)

// Constellation is one CFG-GNSS enable/disable request.
type Constellation struct {
	ID     uint8
	Enable bool
}

type Options struct {
	Candidates     []string
	Persist        bool
	SaveScope      SaveScope
	// EnableMessages turns on GGA, RMC, GSA and NAV-SAT output on the DDC port
	// after a successful configure.
	EnableMessages bool
	Constellations []Constellation
	SkipVerify     bool

	AckTimeout   time.Duration
	SaveTimeout  time.Duration
	PollTimeout  time.Duration
	TestWindow   time.Duration
	PollInterval time.Duration
	MaxTracking  uint8
}

func (o Options) withDefaults() Options {
	if o.AckTimeout <= 0 {
		o.AckTimeout = 2 * time.Second
	}
	if o.SaveTimeout <= 0 {
		o.SaveTimeout = 5 * time.Second
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = 2 * time.Second
	}
	if o.TestWindow <= 0 {
		o.TestWindow = 30 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = gnss.DefaultPollInterval
	}
	if o.SaveScope == "" {
		o.SaveScope = SaveAll
	}
	if o.MaxTracking == 0 {
		o.MaxTracking = 16
	}
	return o
}

type Workflow struct {
	dev  Device
	opts Options
}

func New(dev Device, opts Options) *Workflow {
	return &Workflow{dev: dev, opts: opts.withDefaults()}
}

// Run executes every step and returns the report. The error is non-nil only
// for an invalid candidate list.
func (w *Workflow) Run(ctx context.Context) (Report, error) {
	rep := Report{Started: now().UTC()}

	cands, err := BuildCandidates(w.opts.Candidates, w.dev, w.opts.PollTimeout)
	if err != nil {
		return rep, err
	}

	rep.Before = w.readStatus(ctx)
	log.Printf("antenna: step=read_status observed=%v circuit=%s power=%s", rep.Before.Observed, rep.Before.Antenna.Circuit, rep.Before.Antenna.Power)

	rep.Configure = w.configure(ctx, cands)
	log.Printf("antenna: step=configure status=%s candidate=%s", rep.Configure.Status, rep.Configure.Outcome.Name)

	if rep.Configure.Status == StepSucceeded {
		if w.opts.EnableMessages {
			rep.Messages = w.enableMessages(ctx)
		}
		for _, c := range w.opts.Constellations {
			rep.Constellations = append(rep.Constellations, w.setConstellation(ctx, c))
		}
	}

	rep.Save, rep.SaveError = w.save(ctx, rep.Configure.Status)
	if rep.SaveError != "" {
		log.Printf("antenna: step=save result=%s err=%s", rep.Save, rep.SaveError)
	} else {
		log.Printf("antenna: step=save result=%s", rep.Save)
	}

	if w.opts.SkipVerify {
		rep.Verify.Status = StepSkipped
	} else {
		rep.Verify = w.verify(ctx, rep.Configure.Applied)
		log.Printf("antenna: step=verify status=%s", rep.Verify.Status)
	}

	rep.SatelliteTest = w.satelliteTest(ctx)
	log.Printf("antenna: step=satellite_test outcome=%s max_sats=%d", rep.SatelliteTest.Outcome, rep.SatelliteTest.MaxSatellites)

	rep.Finished = now().UTC()
	return rep, nil
}

func (w *Workflow) readStatus(ctx context.Context) StatusReading {
	var out StatusReading
	if f, ok := w.dev.Request(ctx, ubx.Poll(ubx.ClassMON, ubx.IDMonHw), w.opts.PollTimeout); ok {
		out.Antenna, out.Observed = satellite.DecodeMonHw(f.Payload)
	}
	if f, ok := w.dev.Request(ctx, ubx.Poll(ubx.ClassCFG, ubx.IDCfgAnt), w.opts.PollTimeout); ok {
		if c, ok := ubx.ParseCfgAnt(f.Payload); ok {
			out.Config = &c
		}
	}
	return out
}

func (w *Workflow) configure(ctx context.Context, cands []gnss.Candidate) ConfigureResult {
	// Record the frame each candidate actually sent so verify can compare
	// the readback, including read_modify which is built at send time.
	sent := make([]ubx.Frame, len(cands))
	wrapped := make([]gnss.Candidate, len(cands))
	for i, c := range cands {
		i, c := i, c // per-iteration copies for the closure (pre-Go 1.22 loop semantics)
		wrapped[i] = gnss.Candidate{Name: c.Name, Prepare: func(ctx context.Context) (ubx.Frame, error) {
			f := c.Frame
			if c.Prepare != nil {
				var err error
				if f, err = c.Prepare(ctx); err != nil {
					return ubx.Frame{}, err
				}
			}
			sent[i] = f
			return f, nil
		}}
	}

	out := ConfigureResult{Outcome: w.dev.SendWithFallback(ctx, wrapped, w.opts.AckTimeout)}
	if !out.Outcome.OK() {
		out.Status = StepFailed
		return out
	}
	out.Status = StepSucceeded
	if c, ok := ubx.ParseCfgAnt(sent[out.Outcome.Index].Payload); ok {
		out.Applied = &c
	}
	return out
}

var outputMessages = []struct {
	name      string
	class, id uint8
}{
	{"GGA", ubx.ClassNMEA, ubx.NMEAGGA},
	{"RMC", ubx.ClassNMEA, ubx.NMEARMC},
	{"GSA", ubx.ClassNMEA, ubx.NMEAGSA},
	{"NAV-SAT", ubx.ClassNAV, ubx.IDNavSat},
}

func (w *Workflow) enableMessages(ctx context.Context) []CommandResult {
	out := make([]CommandResult, 0, len(outputMessages))
	for _, m := range outputMessages {
		res, err := w.dev.SendAndWait(ctx, ubx.CfgMsg(m.class, m.id, 1), w.opts.AckTimeout)
		out = append(out, commandResult(m.name, res, err))
	}
	return out
}

func (w *Workflow) setConstellation(ctx context.Context, c Constellation) CommandResult {
	res, err := w.dev.SendAndWait(ctx, ubx.CfgGnss(c.ID, c.Enable, w.opts.MaxTracking), w.opts.AckTimeout)
	name := satellite.Constellation(c.ID).String()
	if !c.Enable {
		name += " off"
	}
	return commandResult(name, res, err)
}

// save returns the save outcome and, when the frame never left the host, the
// write error.
func (w *Workflow) save(ctx context.Context, configured StepStatus) (SaveResult, string) {
	if !w.opts.Persist || configured != StepSucceeded {
		return SaveSkipped, ""
	}
	f := ubx.SaveAll()
	if w.opts.SaveScope == SaveAntenna {
		f = ubx.SaveAntenna()
	}
	res, err := w.dev.SendAndWait(ctx, f, w.opts.SaveTimeout)
	if err != nil {
		return SaveFailed, err.Error()
	}
	switch res {
	case gnss.Ack:
		return Saved, ""
	case gnss.Nak:
		return SaveRejected, ""
	default:
		return SaveUnknown, ""
	}
}

func (w *Workflow) verify(ctx context.Context, applied *ubx.AntConfig) VerifyResult {
	after := w.readStatus(ctx)
	out := VerifyResult{
		Antenna:   after.Antenna,
		Observed:  after.Observed,
		Config:    after.Config,
		PoweredOn: after.Observed && after.Antenna.Power == satellite.PowerOn,
		Healthy:   after.Observed && after.Antenna.Healthy(),
	}
	if applied != nil && after.Config != nil {
		m := *applied == *after.Config
		out.ConfigMatches = &m
	}
	switch {
	case !out.Observed:
		out.Status = StepFailed
	case out.Healthy && (out.ConfigMatches == nil || *out.ConfigMatches):
		out.Status = StepSucceeded
	default:
		out.Status = StepFailed
	}
	return out
}

// satelliteTest polls for the test window, first for GGA satellites and then
// for an Active RMC.
func (w *Workflow) satelliteTest(ctx context.Context) SatelliteTestResult {
	start := now()
	deadline := start.Add(w.opts.TestWindow)
	var out SatelliteTestResult

	for {
		w.dev.Poll()
		obs := w.dev.Observations()
		if obs.GGASatellites != nil && *obs.GGASatellites > 0 {
			if *obs.GGASatellites > out.MaxSatellites {
				out.MaxSatellites = *obs.GGASatellites
			}
			if out.FirstSatellite == 0 {
				out.FirstSatellite = Duration(now().Sub(start))
			}
		}
		if w.dev.Position().FixStatus == gps.FixActive {
			out.FixAfter = Duration(now().Sub(start))
			break
		}

		remaining := deadline.Sub(now())
		if remaining <= 0 || ctx.Err() != nil {
			break
		}
		if remaining > w.opts.PollInterval {
			remaining = w.opts.PollInterval
		}
		t := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
		case <-t.C:
		}
		t.Stop()
	}

	pos := w.dev.Position()
	out.Position = pos
	out.Satellites = w.dev.Satellites().Summarize(5)
	switch {
	case pos.FixStatus == gps.FixActive:
		out.Outcome = FixAcquired
	case out.MaxSatellites > 0:
		out.Outcome = SatellitesVisibleNoFix
	default:
		out.Outcome = NoSatellites
	}
	return out
}
