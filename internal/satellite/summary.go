package satellite

// LowSignalDB is the mean cno below which reception is reported as weak.
const LowSignalDB = 30

// MinUsedFor3D is the number of used satellites a 3D fix needs.
const MinUsedFor3D = 4

type Hint string

const (
	HintNoSatellites    Hint = "no_satellites"
	HintVisibleNoneUsed Hint = "visible_none_used"
	HintLowSignal       Hint = "low_signal"
	HintGood            Hint = "good"
)

func (h Hint) Advice() string {
	switch h {
	case HintNoSatellites:
		return "check antenna connection, cable and sky view"
	case HintVisibleNoneUsed:
		return "receiver still acquiring or signal too weak; check for interference"
	case HintLowSignal:
		return "improve antenna placement; >35 dBHz is good, >40 dBHz excellent"
	default:
		return "signal strength looks good"
	}
}

// Summary is the operator-facing digest of one epoch.
type Summary struct {
	Visible        int      `json:"visible"`
	Used           int      `json:"used"`
	MeanSignal     float64  `json:"mean_signal_db"`
	Groups         []Group  `json:"constellations"`
	Top            []Record `json:"top"`
	Hint           Hint     `json:"hint"`
	WaitingForLock bool     `json:"waiting_for_lock"`
}

// Summarize derives a Summary with the topN strongest satellites.
func (s Snapshot) Summarize(topN int) Summary {
	sum := Summary{
		Visible:    s.Visible(),
		Used:       s.Used(),
		MeanSignal: s.MeanSignal(),
		Groups:     s.ByConstellation(),
		Top:        s.TopBySignal(topN),
	}
	switch {
	case sum.Visible == 0:
		sum.Hint = HintNoSatellites
	case sum.Used == 0:
		sum.Hint = HintVisibleNoneUsed
	case sum.MeanSignal < LowSignalDB:
		sum.Hint = HintLowSignal
	default:
		sum.Hint = HintGood
		sum.WaitingForLock = sum.Used < MinUsedFor3D
	}
	return sum
}
