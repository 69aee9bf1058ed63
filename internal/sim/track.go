// Package sim is a simulated u-blox receiver behind the DDC transport
// interface. It emits NMEA epochs for a moving antenna and answers the UBX
// polls and configuration commands the rest of the module sends.
package sim

import (
	"math"
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/satellite"
)

const (
	metersPerDegLat = 111320.0
	knotsPerMS      = 1.943844
)

// State is the antenna situation at one instant.
type State struct {
	LatDeg     float64
	LonDeg     float64
	AltM       float64
	SpeedKnots float64
	CourseDeg  float64
	// Satellites overrides the device sky size when >= 0.
	Satellites int
	Circuit    satellite.CircuitState
}

// Motion produces the antenna state at an elapsed time since device start.
type Motion interface {
	At(elapsed time.Duration) State
}

// Track is a deterministic figure-eight around a center point.
type Track struct {
	CenterLatDeg float64
	CenterLonDeg float64
	AltM         float64
	RadiusM      float64
	Period       time.Duration
}

func (s Track) At(elapsed time.Duration) State {
	period := s.Period
	if period <= 0 {
		period = 120 * time.Second
	}
	radiusM := s.RadiusM
	if radiusM <= 0 {
		radiusM = 50
	}
	if elapsed < 0 {
		elapsed = 0
	}
	radiusDeg := radiusM / metersPerDegLat

	phase := float64(elapsed%period) / float64(period)

	// Lissajous path: x = cos(w), y = 0.5*sin(2w), so |y| stays within half
	// the radius.
	w := 2 * math.Pi * phase
	x := math.Cos(w)
	y := 0.5 * math.Sin(2*w)

	st := State{
		LatDeg:     s.CenterLatDeg + radiusDeg*y,
		LonDeg:     s.CenterLonDeg + (radiusDeg*x)/math.Cos(s.CenterLatDeg*math.Pi/180.0),
		AltM:       s.AltM + 3*math.Sin(w),
		Satellites: -1,
		Circuit:    satellite.CircuitOK,
	}

	// d/dt of the unit path, scaled to meters per second.
	vx := -math.Sin(w)
	vy := math.Cos(2 * w)
	scale := radiusM * 2 * math.Pi / period.Seconds()
	st.SpeedKnots = math.Hypot(vx, vy) * scale * knotsPerMS
	st.CourseDeg = math.Mod(math.Atan2(vx, vy)*180/math.Pi+360, 360)
	return st
}

// Static holds one position with no motion.
type Static struct {
	LatDeg float64
	LonDeg float64
	AltM   float64
}

func (s Static) At(time.Duration) State {
	return State{LatDeg: s.LatDeg, LonDeg: s.LonDeg, AltM: s.AltM, Satellites: -1, Circuit: satellite.CircuitOK}
}
