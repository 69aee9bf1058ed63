package sim

import (
	"testing"
	"time"
)

func TestSky_SatellitesBounds(t *testing.T) {
	s := Sky{}
	if got := s.Satellites(0, 0); got != nil {
		t.Fatalf("expected nil for zero count")
	}
	sats := s.Satellites(3*time.Minute, 16)
	if len(sats) != 16 {
		t.Fatalf("len=%d want 16", len(sats))
	}
	names := map[[2]uint8]bool{}
	for _, sv := range sats {
		if sv.ElevationDeg < 15 || sv.ElevationDeg > 75 {
			t.Fatalf("elevation out of range: %+v", sv)
		}
		if sv.AzimuthDeg < 0 || sv.AzimuthDeg > 360 {
			t.Fatalf("azimuth out of range: %+v", sv)
		}
		if sv.SignalDB < 30 || sv.SignalDB > 60 {
			t.Fatalf("signal out of range: %+v", sv)
		}
		k := [2]uint8{uint8(sv.Constellation), sv.SvID}
		if names[k] {
			t.Fatalf("duplicate satellite %v", k)
		}
		names[k] = true
	}
}

func TestSky_SignalOffset(t *testing.T) {
	strong := Sky{}.Satellites(0, 4)
	weak := Sky{SignalOffsetDB: -15}.Satellites(0, 4)
	for i := range strong {
		if int(weak[i].SignalDB) != int(strong[i].SignalDB)-15 {
			t.Fatalf("[%d] weak=%d strong=%d", i, weak[i].SignalDB, strong[i].SignalDB)
		}
	}
}
