package satellite

import (
	"encoding/binary"
	"fmt"
	"time"
)

// CircuitState is the MON-HW aStatus field.
type CircuitState uint8

const (
	CircuitInit CircuitState = iota
	CircuitUnknown
	CircuitOK
	CircuitShort
	CircuitOpen
)

func (c CircuitState) String() string {
	switch c {
	case CircuitInit:
		return "init"
	case CircuitUnknown:
		return "unknown"
	case CircuitOK:
		return "ok"
	case CircuitShort:
		return "short"
	case CircuitOpen:
		return "open"
	default:
		return fmt.Sprintf("code%d", uint8(c))
	}
}

func (c CircuitState) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// PowerState is the MON-HW aPower field.
type PowerState uint8

const (
	PowerOff PowerState = iota
	PowerOn
	PowerUnknown
)

func (p PowerState) String() string {
	switch p {
	case PowerOff:
		return "off"
	case PowerOn:
		return "on"
	case PowerUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("code%d", uint8(p))
	}
}

func (p PowerState) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

const (
	monHwMinLen   = 60
	monHwAStatus  = 20
	monHwAPower   = 21
	monHwNoisePer = 16
	monHwAgcCnt   = 18
	monHwJamInd   = 45
)

// AntennaStatus is the antenna supervisor state from MON-HW. Stale is set
// until the first successful decode and after any failed one.
type AntennaStatus struct {
	Circuit    CircuitState `json:"circuit"`
	Power      PowerState   `json:"power"`
	NoisePerMS uint16       `json:"noise_per_ms"`
	AGCCount   uint16       `json:"agc_count"`
	JamIndex   uint8        `json:"jam_index"`
	UpdatedAt  time.Time    `json:"updated_at"`
	Stale      bool         `json:"stale"`
}

// Healthy reports a powered antenna with no short or open detected.
func (a AntennaStatus) Healthy() bool {
	return a.Power == PowerOn && a.Circuit != CircuitShort && a.Circuit != CircuitOpen
}

// DecodeMonHw parses a MON-HW payload.
func DecodeMonHw(payload []byte) (AntennaStatus, bool) {
	if len(payload) < monHwMinLen {
		return AntennaStatus{}, false
	}
	return AntennaStatus{
		Circuit:    CircuitState(payload[monHwAStatus]),
		Power:      PowerState(payload[monHwAPower]),
		NoisePerMS: binary.LittleEndian.Uint16(payload[monHwNoisePer:]),
		AGCCount:   binary.LittleEndian.Uint16(payload[monHwAgcCnt:]),
		JamIndex:   payload[monHwJamInd],
	}, true
}

// Monitor keeps the last good AntennaStatus.
type Monitor struct {
	cur AntennaStatus
	ok  bool
}

func NewMonitor() *Monitor {
	return &Monitor{cur: AntennaStatus{Circuit: CircuitUnknown, Power: PowerUnknown, Stale: true}}
}

// ApplyMonHw refreshes the status on a good decode. On a bad payload the last
// value is kept and marked stale.
func (m *Monitor) ApplyMonHw(payload []byte, now time.Time) bool {
	st, ok := DecodeMonHw(payload)
	if !ok {
		m.cur.Stale = true
		return false
	}
	st.UpdatedAt = now
	m.cur = st
	m.ok = true
	return true
}

// MarkStale flags the current value as out of date, e.g. after a poll that
// got no answer.
func (m *Monitor) MarkStale() { m.cur.Stale = true }

func (m *Monitor) Status() AntennaStatus { return m.cur }

// Known reports whether any MON-HW has ever been decoded.
func (m *Monitor) Known() bool { return m.ok }
