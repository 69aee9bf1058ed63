package sim

import (
	"fmt"
	"math"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/satellite"
)

func sentence(body string) string {
	return "$" + body + "*" + nmea.Checksum(body) + "\r\n"
}

func ddmm(v float64, degDigits int, pos, neg string) (string, string) {
	hemi := pos
	if v < 0 {
		hemi = neg
		v = -v
	}
	deg := math.Floor(v)
	minutes := (v - deg) * 60
	return fmt.Sprintf("%0*d%08.5f", degDigits, int(deg), minutes), hemi
}

func utcTime(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%02d%02d%02d.%02d", t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/10_000_000)
}

func rmcSentence(t time.Time, st State, fix bool) string {
	status, mode := "V", "N"
	lat, ns, lon, ew, spd, crs := "", "", "", "", "", ""
	if fix {
		status, mode = "A", "A"
		lat, ns = ddmm(st.LatDeg, 2, "N", "S")
		lon, ew = ddmm(st.LonDeg, 3, "E", "W")
		spd = fmt.Sprintf("%.3f", st.SpeedKnots)
		crs = fmt.Sprintf("%.2f", st.CourseDeg)
	}
	date := t.UTC().Format("020106")
	return sentence(fmt.Sprintf("GNRMC,%s,%s,%s,%s,%s,%s,%s,%s,%s,,,%s",
		utcTime(t), status, lat, ns, lon, ew, spd, crs, date, mode))
}

func ggaSentence(t time.Time, st State, fix bool, used int, hdop float64) string {
	if !fix {
		return sentence(fmt.Sprintf("GNGGA,%s,,,,,0,%02d,99.99,,,,,,", utcTime(t), used))
	}
	lat, ns := ddmm(st.LatDeg, 2, "N", "S")
	lon, ew := ddmm(st.LonDeg, 3, "E", "W")
	return sentence(fmt.Sprintf("GNGGA,%s,%s,%s,%s,%s,1,%02d,%.2f,%.1f,M,47.0,M,,",
		utcTime(t), lat, ns, lon, ew, used, hdop, st.AltM))
}

func gsaSentence(fix bool, used []SkySat, pdop, hdop, vdop float64) string {
	fields := make([]string, 12)
	for i := 0; i < len(used) && i < 12; i++ {
		fields[i] = fmt.Sprintf("%02d", nmeaSvID(used[i]))
	}
	if !fix {
		return sentence("GNGSA,A,1," + strings.Join(fields, ",") + ",99.99,99.99,99.99")
	}
	return sentence(fmt.Sprintf("GNGSA,A,3,%s,%.2f,%.2f,%.2f", strings.Join(fields, ","), pdop, hdop, vdop))
}

var talkers = map[satellite.Constellation]string{
	satellite.GPS:     "GP",
	satellite.Galileo: "GA",
	satellite.GLONASS: "GL",
	satellite.BeiDou:  "GB",
}

// gsvSentences groups sats by talker, four per sentence. An empty sky still
// reports a zero count on the GPS talker.
func gsvSentences(sats []SkySat) []string {
	if len(sats) == 0 {
		return []string{sentence("GPGSV,1,1,00")}
	}
	var out []string
	for _, c := range skyOrder {
		var group []SkySat
		for _, s := range sats {
			if s.Constellation == c {
				group = append(group, s)
			}
		}
		if len(group) == 0 {
			continue
		}
		total := (len(group) + 3) / 4
		for n := 0; n < total; n++ {
			var b strings.Builder
			fmt.Fprintf(&b, "%sGSV,%d,%d,%02d", talkers[c], total, n+1, len(group))
			for _, s := range group[n*4 : min(len(group), n*4+4)] {
				fmt.Fprintf(&b, ",%02d,%02d,%03d,%02d", nmeaSvID(s), s.ElevationDeg, s.AzimuthDeg, s.SignalDB)
			}
			out = append(out, sentence(b.String()))
		}
	}
	return out
}

func nmeaSvID(s SkySat) int {
	if s.Constellation == satellite.GLONASS {
		return int(s.SvID) + 64
	}
	return int(s.SvID)
}
