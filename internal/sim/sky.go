package sim

import (
	"math"
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/satellite"
)

// SkySat is one simulated satellite as seen from the antenna.
type SkySat struct {
	Constellation satellite.Constellation
	SvID          uint8
	ElevationDeg  int8
	AzimuthDeg    int16
	SignalDB      uint8
}

// Sky rotates a fixed set of satellites around the zenith.
type Sky struct {
	Period time.Duration
	// SignalOffsetDB shifts every C/N0 value, e.g. negative for a weak antenna.
	SignalOffsetDB int
}

var skyOrder = []satellite.Constellation{satellite.GPS, satellite.Galileo, satellite.GLONASS, satellite.BeiDou}

// Satellites returns count satellites spread evenly in azimuth.
func (s Sky) Satellites(elapsed time.Duration, count int) []SkySat {
	if count <= 0 {
		return nil
	}
	period := s.Period
	if period <= 0 {
		period = 20 * time.Minute
	}
	phase := float64(elapsed%period) / float64(period)
	base := 2 * math.Pi * phase

	out := make([]SkySat, 0, count)
	for i := 0; i < count; i++ {
		theta := base + 2*math.Pi*(float64(i)/float64(count))
		az := math.Mod(theta*180/math.Pi, 360)

		// Elevation in [15, 75] deg; higher satellites are stronger.
		el := 45 + 30*math.Sin(2*theta+float64(i))
		sig := 28 + int(math.Round(el/4)) + s.SignalOffsetDB
		if sig < 0 {
			sig = 0
		}
		if sig > 60 {
			sig = 60
		}

		c := skyOrder[i%len(skyOrder)]
		out = append(out, SkySat{
			Constellation: c,
			SvID:          uint8(1 + i/len(skyOrder)*3 + i%3),
			ElevationDeg:  int8(math.Round(el)),
			AzimuthDeg:    int16(math.Round(az)),
			SignalDB:      uint8(sig),
		})
	}
	return out
}
