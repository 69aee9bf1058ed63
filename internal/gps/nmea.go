package gps

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/adrianmo/go-nmea"
)

type sentence struct {
	Talker string
	Type   string
	// Fields is the comma-split payload (excluding $ and checksum); Fields[0]
	// is the talker+type address.
	Fields []string
}

func parseSentence(line string) (sentence, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return sentence{}, fmt.Errorf("nmea: missing '$'")
	}
	star := strings.LastIndexByte(line, '*')
	if star == -1 {
		return sentence{}, fmt.Errorf("nmea: missing checksum")
	}
	payload := line[1:star]
	ck := strings.TrimSpace(line[star+1:])
	if len(ck) < 2 {
		return sentence{}, fmt.Errorf("nmea: short checksum")
	}
	if want := nmea.Checksum(payload); !strings.EqualFold(ck[:2], want) {
		return sentence{}, fmt.Errorf("nmea: checksum mismatch got=%s want=%s", ck[:2], want)
	}

	parts := strings.Split(payload, ",")
	addr := parts[0]
	if len(addr) < 3 {
		return sentence{}, fmt.Errorf("nmea: short address %q", addr)
	}
	// GPxxx, GNxxx, GLxxx...: normalize on the last 3 chars.
	t := strings.ToUpper(addr[len(addr)-3:])
	return sentence{Talker: addr[:len(addr)-3], Type: t, Fields: parts}, nil
}

// field returns f[i] trimmed, or "" when the sentence is shorter.
func field(f []string, i int) string {
	if i >= len(f) {
		return ""
	}
	return strings.TrimSpace(f[i])
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseLatLon converts NMEA ddmm.mmmm / dddmm.mmmm plus hemisphere into signed
// decimal degrees.
func parseLatLon(v, hemi string) (float64, bool) {
	hemi = strings.ToUpper(hemi)
	if hemi != "N" && hemi != "S" && hemi != "E" && hemi != "W" {
		return 0, false
	}
	raw, ok := parseFloat(v)
	if !ok || raw < 0 {
		return 0, false
	}
	deg := math.Floor(raw / 100)
	mins := raw - deg*100
	dec := deg + mins/60
	if hemi == "S" || hemi == "W" {
		dec = -dec
	}
	return dec, true
}
