package gnss

import (
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/gps"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/satellite"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/ubx"
)

// Snapshot is everything the receiver currently knows, safe to hand to other
// goroutines.
type Snapshot struct {
	Time          time.Time               `json:"time"`
	Position      gps.PositionState       `json:"position"`
	NMEA          gps.Observations        `json:"nmea"`
	Satellites    satellite.Summary       `json:"satellites"`
	Antenna       satellite.AntennaStatus `json:"antenna"`
	NavStatus     *satellite.NavStatus    `json:"nav_status,omitempty"`
	AntennaConfig *ubx.AntConfig          `json:"antenna_config,omitempty"`
	Stats         Stats                   `json:"stats"`
}

// Snapshot summarizes the current state with the topN strongest satellites.
func (r *Receiver) Snapshot(topN int) Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		Time:       now().UTC(),
		Position:   r.nmea.Position(),
		NMEA:       r.nmea.Observations(),
		Satellites: r.sats.Snapshot().Summarize(topN),
		Antenna:    r.mon.Status(),
		Stats:      r.statsLocked(),
	}
	if r.navOK {
		v := r.nav
		s.NavStatus = &v
	}
	if r.antOK {
		v := r.ant
		s.AntennaConfig = &v
	}
	return s
}

func (r *Receiver) statsLocked() Stats {
	st := r.stats
	st.Stream = r.asm.Stats()
	st.Frames = make(map[string]uint64, len(r.seq))
	for k, n := range r.seq {
		st.Frames[ubx.Name(k[0], k[1])] = n
	}
	return st
}

func (r *Receiver) Position() gps.PositionState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nmea.Position()
}

func (r *Receiver) Observations() gps.Observations {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nmea.Observations()
}

func (r *Receiver) Satellites() satellite.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sats.Snapshot()
}

func (r *Receiver) Antenna() satellite.AntennaStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mon.Status()
}

func (r *Receiver) NavStatus() (satellite.NavStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nav, r.navOK
}

// AntennaConfig is the last CFG-ANT seen from the receiver.
func (r *Receiver) AntennaConfig() (ubx.AntConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ant, r.antOK
}

func (r *Receiver) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statsLocked()
}
