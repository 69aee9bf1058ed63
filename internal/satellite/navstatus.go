package satellite

import (
	"encoding/binary"
	"fmt"
)

// FixType is the NAV-STATUS gpsFix field.
type FixType uint8

const (
	FixNone FixType = iota
	FixDeadReckoning
	Fix2D
	Fix3D
	FixGPSDR
	FixTimeOnly
)

func (f FixType) String() string {
	switch f {
	case FixNone:
		return "no_fix"
	case FixDeadReckoning:
		return "dead_reckoning"
	case Fix2D:
		return "2d"
	case Fix3D:
		return "3d"
	case FixGPSDR:
		return "gps_dr"
	case FixTimeOnly:
		return "time_only"
	default:
		return fmt.Sprintf("fix%d", uint8(f))
	}
}

func (f FixType) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

type NavStatus struct {
	ITOW     uint32  `json:"itow_ms"`
	Fix      FixType `json:"fix"`
	FixOK    bool    `json:"fix_ok"`
	DiffSoln bool    `json:"diff_soln"`
	TTFFMS   uint32  `json:"ttff_ms"`
	MSSS     uint32  `json:"msss_ms"`
}

// Usable reports a fix the receiver itself flags as within limits.
func (n NavStatus) Usable() bool {
	return n.FixOK && n.Fix != FixNone && n.Fix != FixTimeOnly
}

func DecodeNavStatus(payload []byte) (NavStatus, bool) {
	if len(payload) < 16 {
		return NavStatus{}, false
	}
	return NavStatus{
		ITOW:     binary.LittleEndian.Uint32(payload[0:4]),
		Fix:      FixType(payload[4]),
		FixOK:    payload[5]&0x01 != 0,
		DiffSoln: payload[5]&0x02 != 0,
		TTFFMS:   binary.LittleEndian.Uint32(payload[8:12]),
		MSSS:     binary.LittleEndian.Uint32(payload[12:16]),
	}, true
}
