package ubx

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestChecksum_GoldenVector(t *testing.T) {
	ckA, ckB := Checksum(0x06, 0x13, []byte{0x1B, 0x00, 0x00, 0x00})
	if ckA != 0x38 || ckB != 0x39 {
		t.Fatalf("checksum=(0x%02X,0x%02X) want (0x38,0x39)", ckA, ckB)
	}
}

func TestEncode_GoldenPolls(t *testing.T) {
	cases := []struct {
		name  string
		frame Frame
		want  []byte
	}{
		{"CfgAnt", Poll(ClassCFG, IDCfgAnt), []byte{0xB5, 0x62, 0x06, 0x13, 0x00, 0x00, 0x19, 0x51}},
		{"MonHw", Poll(ClassMON, IDMonHw), []byte{0xB5, 0x62, 0x0A, 0x09, 0x00, 0x00, 0x13, 0x43}},
		{"NavSat", Poll(ClassNAV, IDNavSat), []byte{0xB5, 0x62, 0x01, 0x35, 0x00, 0x00, 0x36, 0xA3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Encode(tc.frame); !bytes.Equal(got, tc.want) {
				t.Fatalf("Encode()=% X want % X", got, tc.want)
			}
		})
	}
}

func TestEncode_CfgAntStandard(t *testing.T) {
	got := Encode(CfgAnt(AntConfig{Flags: 0x001B, Pins: 0x0000}))
	want := []byte{0xB5, 0x62, 0x06, 0x13, 0x04, 0x00, 0x1B, 0x00, 0x00, 0x00, 0x38, 0x39}
	if !bytes.Equal(got, want) {
		t.Fatalf("Encode()=% X want % X", got, want)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 0; n <= 32; n++ {
		payload := make([]byte, n)
		rng.Read(payload)
		in := Frame{Class: uint8(rng.Intn(256)), ID: uint8(rng.Intn(256)), Payload: payload}

		out, ok := Decode(Encode(in))
		if !ok {
			t.Fatalf("len=%d: Decode() failed", n)
		}
		if !out.Equal(in) {
			t.Fatalf("len=%d: got %+v want %+v", n, out, in)
		}
	}
}

func TestDecode_Rejects(t *testing.T) {
	good := Encode(CfgAnt(AntConfig{Flags: 0x1B}))

	badCk := append([]byte(nil), good...)
	badCk[len(badCk)-1] ^= 0xFF

	badSync := append([]byte(nil), good...)
	badSync[1] = 0x63

	cases := map[string][]byte{
		"Checksum":  badCk,
		"Sync":      badSync,
		"Truncated": good[:len(good)-1],
		"Trailing":  append(append([]byte(nil), good...), 0x00),
		"Short":     good[:4],
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			if _, ok := Decode(b); ok {
				t.Fatalf("Decode(% X) accepted", b)
			}
		})
	}
}

func TestCfgCfg_Layout(t *testing.T) {
	f := SaveAll()
	want := []byte{
		0x00, 0x00, 0x00, 0x00,
		0xFF, 0xFF, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x17,
	}
	if f.Class != ClassCFG || f.ID != IDCfgCfg {
		t.Fatalf("class/id=%02X/%02X", f.Class, f.ID)
	}
	if !bytes.Equal(f.Payload, want) {
		t.Fatalf("payload=% X want % X", f.Payload, want)
	}
}

func TestCfgGnss_Layout(t *testing.T) {
	on := CfgGnss(GnssGalileo, true, 16)
	wantOn := []byte{0x00, 0xFF, 0xFF, 0x01, 0x02, 0x00, 0x10, 0x00, 0x01, 0x00, 0x00, 0x01}
	if !bytes.Equal(on.Payload, wantOn) {
		t.Fatalf("enable payload=% X want % X", on.Payload, wantOn)
	}

	off := CfgGnss(GnssGLONASS, false, 16)
	wantOff := []byte{0x00, 0xFF, 0xFF, 0x01, 0x06, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	if !bytes.Equal(off.Payload, wantOff) {
		t.Fatalf("disable payload=% X want % X", off.Payload, wantOff)
	}
}

func TestCfgMsg_DDCOnly(t *testing.T) {
	f := CfgMsg(ClassNMEA, NMEAGGA, 1)
	want := []byte{0xF0, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(f.Payload, want) {
		t.Fatalf("payload=% X want % X", f.Payload, want)
	}
}

func TestParseCfgAnt(t *testing.T) {
	c, ok := ParseCfgAnt([]byte{0x3B, 0xF9, 0x1D, 0xF9})
	if !ok {
		t.Fatalf("ParseCfgAnt() failed")
	}
	if c.Flags != 0xF93B || c.Pins != 0xF91D {
		t.Fatalf("got flags=0x%04X pins=0x%04X", uint16(c.Flags), c.Pins)
	}
	if _, ok := ParseCfgAnt([]byte{0x01}); ok {
		t.Fatalf("short payload accepted")
	}
}

func TestAntFlags_String(t *testing.T) {
	if got := AntFlags(0x1B).String(); got != "svcs|scd|pdwnOnSCD|recovery" {
		t.Fatalf("String()=%q", got)
	}
	if got := AntFlags(0).String(); got != "none" {
		t.Fatalf("String()=%q", got)
	}
}

func TestParseAck(t *testing.T) {
	class, id, ok := ParseAck(Frame{Class: ClassACK, ID: IDAckAck, Payload: []byte{ClassCFG, IDCfgAnt}})
	if !ok || class != ClassCFG || id != IDCfgAnt {
		t.Fatalf("ParseAck()=%02X %02X %v", class, id, ok)
	}
	if _, _, ok := ParseAck(Frame{Class: ClassCFG, ID: IDCfgAnt, Payload: []byte{1, 2}}); ok {
		t.Fatalf("non-ACK class accepted")
	}
}

func TestName(t *testing.T) {
	if got := Name(ClassMON, IDMonHw); got != "MON-HW" {
		t.Fatalf("Name()=%q", got)
	}
	if got := Name(0x02, 0x15); got != "0x02-0x15" {
		t.Fatalf("Name()=%q", got)
	}
}
