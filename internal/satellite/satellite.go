// Package satellite decodes the UBX diagnostic messages (NAV-SAT, MON-HW,
// NAV-STATUS) into point-in-time snapshots and derives link-health summaries
// from them.
package satellite

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/ubx"
)

type Constellation uint8

const (
	GPS     = Constellation(ubx.GnssGPS)
	SBAS    = Constellation(ubx.GnssSBAS)
	Galileo = Constellation(ubx.GnssGalileo)
	BeiDou  = Constellation(ubx.GnssBeiDou)
	QZSS    = Constellation(ubx.GnssQZSS)
	GLONASS = Constellation(ubx.GnssGLONASS)
)

func (c Constellation) String() string {
	switch c {
	case GPS:
		return "GPS"
	case SBAS:
		return "SBAS"
	case Galileo:
		return "Galileo"
	case BeiDou:
		return "BeiDou"
	case QZSS:
		return "QZSS"
	case GLONASS:
		return "GLONASS"
	default:
		return fmt.Sprintf("GNSS%d", uint8(c))
	}
}

func (c Constellation) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// ParseConstellation accepts the names printed by String, case-insensitively.
func ParseConstellation(name string) (Constellation, bool) {
	for _, c := range []Constellation{GPS, SBAS, Galileo, BeiDou, QZSS, GLONASS} {
		if strings.EqualFold(name, c.String()) {
			return c, true
		}
	}
	return 0, false
}

// Health is the NAV-SAT signal health field.
type Health uint8

const (
	HealthUnknown Health = iota
	HealthHealthy
	HealthUnhealthy
)

func (h Health) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

func (h Health) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// Record is one NAV-SAT satellite block.
type Record struct {
	Constellation Constellation `json:"constellation"`
	SvID          uint8         `json:"sv_id"`
	SignalDB      uint8         `json:"signal_db"`
	ElevationDeg  int8          `json:"elevation_deg"`
	AzimuthDeg    int16         `json:"azimuth_deg"`
	PrResM        float64       `json:"pr_res_m"`
	Used          bool          `json:"used"`
	Quality       uint8         `json:"quality"`
	Health        Health        `json:"health"`
}

func (r Record) Name() string {
	return fmt.Sprintf("%s-%d", r.Constellation, r.SvID)
}

const (
	navSatHeader = 8
	navSatBlock  = 12
)

// DecodeNavSat parses a NAV-SAT payload. Blocks past the end of a truncated
// payload are skipped.
func DecodeNavSat(payload []byte) (iTOW uint32, recs []Record, ok bool) {
	if len(payload) < navSatHeader {
		return 0, nil, false
	}
	iTOW = binary.LittleEndian.Uint32(payload[0:4])
	numSvs := int(payload[5])
	recs = make([]Record, 0, numSvs)
	for i := 0; i < numSvs; i++ {
		off := navSatHeader + i*navSatBlock
		if off+navSatBlock > len(payload) {
			break
		}
		b := payload[off : off+navSatBlock]
		flags := binary.LittleEndian.Uint32(b[8:12])
		recs = append(recs, Record{
			Constellation: Constellation(b[0]),
			SvID:          b[1],
			SignalDB:      b[2],
			ElevationDeg:  int8(b[3]),
			AzimuthDeg:    int16(binary.LittleEndian.Uint16(b[4:6])),
			PrResM:        float64(int16(binary.LittleEndian.Uint16(b[6:8]))) * 0.1,
			Quality:       uint8(flags & 0x07),
			Used:          (flags>>3)&0x01 == 1,
			Health:        Health((flags >> 4) & 0x03),
		})
	}
	return iTOW, recs, true
}

// Snapshot is one NAV-SAT epoch.
type Snapshot struct {
	ITOW      uint32    `json:"itow_ms"`
	Records   []Record  `json:"satellites"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Table holds the latest NAV-SAT epoch. Each decode replaces the previous
// epoch entirely.
type Table struct {
	cur Snapshot
}

// ApplyNavSat decodes payload and, on success, replaces the table. It returns
// the number of records in the new table.
func (t *Table) ApplyNavSat(payload []byte, now time.Time) (int, bool) {
	iTOW, recs, ok := DecodeNavSat(payload)
	if !ok {
		return 0, false
	}
	t.cur = Snapshot{ITOW: iTOW, Records: recs, UpdatedAt: now}
	return len(recs), true
}

// Snapshot returns a copy of the current epoch.
func (t *Table) Snapshot() Snapshot {
	out := t.cur
	out.Records = append([]Record(nil), t.cur.Records...)
	return out
}

func (s Snapshot) Visible() int { return len(s.Records) }

func (s Snapshot) Used() int {
	n := 0
	for _, r := range s.Records {
		if r.Used {
			n++
		}
	}
	return n
}

// MeanSignal is the average cno over all visible satellites, 0 when none.
func (s Snapshot) MeanSignal() float64 {
	if len(s.Records) == 0 {
		return 0
	}
	sum := 0
	for _, r := range s.Records {
		sum += int(r.SignalDB)
	}
	return float64(sum) / float64(len(s.Records))
}

// Group aggregates one constellation.
type Group struct {
	Constellation Constellation `json:"constellation"`
	Visible       int           `json:"visible"`
	Used          int           `json:"used"`
	MeanSignal    float64       `json:"mean_signal_db"`
}

// ByConstellation groups records, ordered by constellation id.
func (s Snapshot) ByConstellation() []Group {
	idx := map[Constellation]int{}
	var groups []Group
	sums := []int{}
	for _, r := range s.Records {
		i, ok := idx[r.Constellation]
		if !ok {
			i = len(groups)
			idx[r.Constellation] = i
			groups = append(groups, Group{Constellation: r.Constellation})
			sums = append(sums, 0)
		}
		groups[i].Visible++
		if r.Used {
			groups[i].Used++
		}
		sums[i] += int(r.SignalDB)
	}
	for i := range groups {
		groups[i].MeanSignal = float64(sums[i]) / float64(groups[i].Visible)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].Constellation < groups[b].Constellation })
	return groups
}

// TopBySignal returns up to n records with the strongest signal.
func (s Snapshot) TopBySignal(n int) []Record {
	out := append([]Record(nil), s.Records...)
	sort.SliceStable(out, func(a, b int) bool { return out[a].SignalDB > out[b].SignalDB })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
