package gps

import (
	"fmt"

	"github.com/adrianmo/go-nmea"
)

// FixStatus is the RMC status field.
type FixStatus int

const (
	FixUnknown FixStatus = iota
	FixActive
	FixVoid
)

func (s FixStatus) String() string {
	switch s {
	case FixActive:
		return "active"
	case FixVoid:
		return "void"
	default:
		return "unknown"
	}
}

func (s FixStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// GGA fix quality values.
const (
	QualityNone     = 0
	QualityGPS      = 1
	QualityDGPS     = 2
	QualityPPS      = 3
	QualityRTKFixed = 4
	QualityRTKFloat = 5
	QualityDR       = 6
)

// PositionState is the merged navigation solution. Nil fields have never been
// reported with a valid value.
type PositionState struct {
	FixStatus         FixStatus `json:"fix_status"`
	LatDeg            *float64  `json:"lat_deg,omitempty"`
	LonDeg            *float64  `json:"lon_deg,omitempty"`
	AltM              *float64  `json:"alt_m,omitempty"`
	SpeedKnots        *float64  `json:"speed_knots,omitempty"`
	FixQuality        *int      `json:"fix_quality,omitempty"`
	NumSatellitesUsed *int      `json:"num_satellites_used,omitempty"`
	HDOP              *float64  `json:"hdop,omitempty"`
	PDOP              *float64  `json:"pdop,omitempty"`
	VDOP              *float64  `json:"vdop,omitempty"`
}

// HasFix reports whether the last RMC was Active and a position is known.
func (p PositionState) HasFix() bool {
	return p.FixStatus == FixActive && p.LatDeg != nil && p.LonDeg != nil
}

func (p PositionState) clone() PositionState {
	out := p
	out.LatDeg = cloneF(p.LatDeg)
	out.LonDeg = cloneF(p.LonDeg)
	out.AltM = cloneF(p.AltM)
	out.SpeedKnots = cloneF(p.SpeedKnots)
	out.FixQuality = cloneI(p.FixQuality)
	out.NumSatellitesUsed = cloneI(p.NumSatellitesUsed)
	out.HDOP = cloneF(p.HDOP)
	out.PDOP = cloneF(p.PDOP)
	out.VDOP = cloneF(p.VDOP)
	return out
}

func cloneF(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneI(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Observations holds raw per-sentence values that are not part of the merged
// solution: GGA counts are kept even when the fix quality is zero.
type Observations struct {
	SatellitesInView int       `json:"satellites_in_view"`
	GGASatellites    *int      `json:"gga_satellites,omitempty"`
	GGAQuality       *int      `json:"gga_quality,omitempty"`
	LastRMCStatus    FixStatus `json:"last_rmc_status"`

	Sentences uint64 `json:"sentences"`
	Rejected  uint64 `json:"rejected"`
	LastError string `json:"last_error,omitempty"`
}

// Interpreter applies sentences to one PositionState. It is not safe for
// concurrent use.
type Interpreter struct {
	pos PositionState
	obs Observations

	inView map[string]int // GSV satellites in view per talker
}

func NewInterpreter() *Interpreter {
	return &Interpreter{inView: make(map[string]int)}
}

// Apply decodes one sentence. Unknown sentence types are ignored. The error
// reports a malformed sentence; the state is left unchanged in that case.
func (in *Interpreter) Apply(line string) error {
	s, err := parseSentence(line)
	if err != nil {
		in.obs.Rejected++
		in.obs.LastError = err.Error()
		return err
	}
	in.obs.Sentences++

	switch s.Type {
	case "RMC":
		in.applyRMC(s.Fields)
	case "GGA":
		in.applyGGA(s.Fields)
	case "GSA":
		in.applyGSA(s.Fields)
	case "GSV":
		return in.applyGSV(line)
	}
	return nil
}

// Position returns a copy of the merged state.
func (in *Interpreter) Position() PositionState { return in.pos.clone() }

func (in *Interpreter) Observations() Observations {
	out := in.obs
	out.GGASatellites = cloneI(in.obs.GGASatellites)
	out.GGAQuality = cloneI(in.obs.GGAQuality)
	return out
}

// RMC: Recommended Minimum Specific GNSS Data
//
//	2: status (A=active, V=void)
//	3: latitude (ddmm.mmmm)  4: N/S
//	5: longitude (dddmm.mmmm) 6: E/W
//	7: speed over ground (knots)
func (in *Interpreter) applyRMC(f []string) {
	switch field(f, 2) {
	case "A":
		in.pos.FixStatus = FixActive
	case "V":
		in.pos.FixStatus = FixVoid
	default:
		in.pos.FixStatus = FixUnknown
	}
	in.obs.LastRMCStatus = in.pos.FixStatus
	if in.pos.FixStatus != FixActive {
		return
	}

	if lat, ok := parseLatLon(field(f, 3), field(f, 4)); ok {
		in.pos.LatDeg = &lat
	}
	if lon, ok := parseLatLon(field(f, 5), field(f, 6)); ok {
		in.pos.LonDeg = &lon
	}
	if spd, ok := parseFloat(field(f, 7)); ok {
		in.pos.SpeedKnots = &spd
	}
}

// GGA: Global Positioning System Fix Data
//
//	2: latitude  3: N/S  4: longitude  5: E/W
//	6: fix quality (0=invalid)
//	7: satellites used
//	8: HDOP
//	9: altitude (meters)
func (in *Interpreter) applyGGA(f []string) {
	q, qOK := parseInt(field(f, 6))
	sats, satsOK := parseInt(field(f, 7))
	if qOK {
		in.obs.GGAQuality = &q
	}
	if satsOK {
		in.obs.GGASatellites = &sats
	}
	if !qOK || q <= QualityNone {
		return
	}

	in.pos.FixQuality = &q
	if satsOK {
		in.pos.NumSatellitesUsed = &sats
	}
	if lat, ok := parseLatLon(field(f, 2), field(f, 3)); ok {
		in.pos.LatDeg = &lat
	}
	if lon, ok := parseLatLon(field(f, 4), field(f, 5)); ok {
		in.pos.LonDeg = &lon
	}
	if hdop, ok := parseFloat(field(f, 8)); ok {
		in.pos.HDOP = &hdop
	}
	if alt, ok := parseFloat(field(f, 9)); ok {
		in.pos.AltM = &alt
	}
}

// GSA: DOP and active satellites
//
//	3..14: satellite PRNs
//	15: PDOP  16: HDOP  17: VDOP
func (in *Interpreter) applyGSA(f []string) {
	if field(f, 15) == "" {
		return
	}
	if v, ok := parseFloat(field(f, 15)); ok {
		in.pos.PDOP = &v
	}
	if v, ok := parseFloat(field(f, 16)); ok {
		in.pos.HDOP = &v
	}
	if v, ok := parseFloat(field(f, 17)); ok {
		in.pos.VDOP = &v
	}
}

func (in *Interpreter) applyGSV(line string) error {
	s, err := nmea.Parse(line)
	if err != nil {
		in.obs.LastError = err.Error()
		return fmt.Errorf("nmea: gsv: %w", err)
	}
	gsv, ok := s.(nmea.GSV)
	if !ok {
		return nil
	}
	in.inView[gsv.Talker] = int(gsv.NumberSVsInView)
	total := 0
	for _, n := range in.inView {
		total += n
	}
	in.obs.SatellitesInView = total
	return nil
}
