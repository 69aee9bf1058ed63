package sim

import (
	"encoding/binary"
	"log"
	"sync"
	"time"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/satellite"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/stream"
	"github.com/octality-ai/mobile-air-quality-monitoring/internal/ubx"
)

// gpsEpoch is 1980-01-06 in Unix seconds; leapSeconds is GPS-UTC.
const (
	gpsEpoch    = 315964800
	leapSeconds = 18
	weekMS      = 7 * 24 * 3600 * 1000
)

type Options struct {
	Motion      Motion
	Sky         Sky
	// Satellites is the sky size when the motion does not override it.
	Satellites  int
	// FixAfter delays the first position fix after start.
	FixAfter    time.Duration
	// Epoch is the navigation rate. Defaults to 1s.
	Epoch       time.Duration
	// RejectFlags lists CFG-ANT flag words answered with ACK-NAK.
	RejectFlags []uint16
	// Antenna is the CFG-ANT setting at power-up.
	Antenna     ubx.AntConfig
	Now         func() time.Time
}

// Device answers the DDC port calls with generated receiver output.
type Device struct {
	mu     sync.Mutex
	opts   Options
	now    func() time.Time
	reject map[uint16]bool

	start     time.Time
	lastEpoch time.Time
	rx        []byte
	cmds      *stream.Assembler
	ant       ubx.AntConfig
	rates     map[[2]uint8]uint8
	gnss      map[uint8]bool
	saves     int
	fixAt     time.Duration
	fixed     bool
	closed    bool
}

func New(opts Options) *Device {
	if opts.Motion == nil {
		opts.Motion = Static{}
	}
	if opts.Epoch <= 0 {
		opts.Epoch = time.Second
	}
	if opts.Satellites < 0 {
		opts.Satellites = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	d := &Device{
		opts:   opts,
		now:    opts.Now,
		reject: make(map[uint16]bool, len(opts.RejectFlags)),
		cmds:   stream.NewAssembler(),
		ant:    opts.Antenna,
		rates: map[[2]uint8]uint8{
			{ubx.ClassNMEA, ubx.NMEAGGA}: 1,
			{ubx.ClassNMEA, ubx.NMEAGSA}: 1,
			{ubx.ClassNMEA, ubx.NMEAGSV}: 1,
			{ubx.ClassNMEA, ubx.NMEARMC}: 1,
		},
		gnss: make(map[uint8]bool),
	}
	for _, f := range opts.RejectFlags {
		d.reject[f] = true
	}
	d.start = d.now()
	return d
}

// QueryAvailable generates any due navigation epoch and reports the pending
// output size.
func (d *Device) QueryAvailable() uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0
	}
	d.tickLocked(d.now())
	if len(d.rx) > 0xFFFE {
		return 0xFFFE
	}
	return uint16(len(d.rx))
}

func (d *Device) ReadChunk(n int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || n <= 0 {
		return nil
	}
	if n > len(d.rx) {
		n = len(d.rx)
	}
	out := append([]byte(nil), d.rx[:n]...)
	d.rx = d.rx[n:]
	return out
}

// WriteChunk accepts command bytes. Complete UBX frames are answered
// immediately; anything else is ignored.
func (d *Device) WriteChunk(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, nil
	}
	d.cmds.Ingest(p)
	for {
		m, ok := d.cmds.Next()
		if !ok {
			break
		}
		if m.Kind == stream.KindFrame {
			d.handleLocked(m.Frame)
		}
	}
	return len(p), nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.rx = nil
	return nil
}

// Antenna returns the active CFG-ANT setting.
func (d *Device) Antenna() ubx.AntConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ant
}

// Saves counts CFG-CFG commands carrying a save mask.
func (d *Device) Saves() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saves
}

// Rate returns the DDC output rate for a message.
func (d *Device) Rate(class, id uint8) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rates[[2]uint8{class, id}]
}

// GnssEnabled reports the last CFG-GNSS setting for a constellation.
func (d *Device) GnssEnabled(id uint8) (enabled, set bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	enabled, set = d.gnss[id]
	return enabled, set
}

func (d *Device) elapsed(now time.Time) time.Duration {
	return now.Sub(d.start)
}

// skyLocked returns the visible satellites, honoring the motion override, a
// failed antenna circuit and disabled constellations.
func (d *Device) skyLocked(el time.Duration, st State) []SkySat {
	count := d.opts.Satellites
	if st.Satellites >= 0 {
		count = st.Satellites
	}
	if st.Circuit == satellite.CircuitOpen || st.Circuit == satellite.CircuitShort {
		count = 0
	}
	sats := d.opts.Sky.Satellites(el, count)
	out := sats[:0]
	for _, s := range sats {
		if on, set := d.gnss[uint8(s.Constellation)]; set && !on {
			continue
		}
		out = append(out, s)
	}
	return out
}

func usedOf(sats []SkySat) []SkySat {
	var used []SkySat
	for _, s := range sats {
		if s.ElevationDeg >= 20 && s.SignalDB >= 30 && len(used) < 12 {
			used = append(used, s)
		}
	}
	return used
}

func (d *Device) hasFixLocked(el time.Duration, used int) bool {
	return el >= d.opts.FixAfter && used >= 4
}

func (d *Device) tickLocked(now time.Time) {
	if !d.lastEpoch.IsZero() && now.Sub(d.lastEpoch) < d.opts.Epoch {
		return
	}
	d.lastEpoch = now
	el := d.elapsed(now)
	st := d.opts.Motion.At(el)
	sats := d.skyLocked(el, st)
	used := usedOf(sats)
	fix := d.hasFixLocked(el, len(used))
	if fix && !d.fixed {
		d.fixed = true
		d.fixAt = el
		log.Printf("sim: fix after %s with %d satellites", el.Round(time.Millisecond), len(used))
	}

	hdop, pdop, vdop := dops(len(used))
	if d.rates[[2]uint8{ubx.ClassNMEA, ubx.NMEARMC}] > 0 {
		d.rx = append(d.rx, rmcSentence(now, st, fix)...)
	}
	if d.rates[[2]uint8{ubx.ClassNMEA, ubx.NMEAGGA}] > 0 {
		d.rx = append(d.rx, ggaSentence(now, st, fix, len(used), hdop)...)
	}
	if d.rates[[2]uint8{ubx.ClassNMEA, ubx.NMEAGSA}] > 0 {
		d.rx = append(d.rx, gsaSentence(fix, used, pdop, hdop, vdop)...)
	}
	if d.rates[[2]uint8{ubx.ClassNMEA, ubx.NMEAGSV}] > 0 {
		for _, s := range gsvSentences(sats) {
			d.rx = append(d.rx, s...)
		}
	}
	if d.rates[[2]uint8{ubx.ClassNAV, ubx.IDNavSat}] > 0 {
		d.reply(ubx.Frame{Class: ubx.ClassNAV, ID: ubx.IDNavSat, Payload: navSatPayload(iTOW(now), sats, used)})
	}
}

// dops is a rough geometry model: more satellites, smaller dilution.
func dops(used int) (hdop, pdop, vdop float64) {
	if used < 4 {
		return 99.99, 99.99, 99.99
	}
	hdop = 4.0 / float64(used)
	return hdop, hdop * 1.6, hdop * 1.3
}

func iTOW(now time.Time) uint32 {
	ms := (now.UnixMilli() - gpsEpoch*1000 + leapSeconds*1000) % weekMS
	if ms < 0 {
		ms += weekMS
	}
	return uint32(ms)
}

func (d *Device) reply(f ubx.Frame) {
	d.rx = append(d.rx, ubx.Encode(f)...)
}

func (d *Device) ack(class, id uint8) {
	d.reply(ubx.Frame{Class: ubx.ClassACK, ID: ubx.IDAckAck, Payload: []byte{class, id}})
}

func (d *Device) nak(class, id uint8) {
	d.reply(ubx.Frame{Class: ubx.ClassACK, ID: ubx.IDAckNak, Payload: []byte{class, id}})
}

func (d *Device) handleLocked(f ubx.Frame) {
	now := d.now()
	el := d.elapsed(now)
	switch {
	case f.Is(ubx.ClassCFG, ubx.IDCfgAnt):
		if len(f.Payload) == 0 {
			d.reply(ubx.CfgAnt(d.ant))
			return
		}
		cfg, ok := ubx.ParseCfgAnt(f.Payload)
		if !ok || d.reject[uint16(cfg.Flags)] {
			d.nak(f.Class, f.ID)
			return
		}
		d.ant = cfg
		d.ack(f.Class, f.ID)

	case f.Is(ubx.ClassCFG, ubx.IDCfgMsg):
		if len(f.Payload) < 3 {
			d.nak(f.Class, f.ID)
			return
		}
		d.rates[[2]uint8{f.Payload[0], f.Payload[1]}] = f.Payload[2]
		d.ack(f.Class, f.ID)

	case f.Is(ubx.ClassCFG, ubx.IDCfgGnss):
		if len(f.Payload) < 4 || len(f.Payload) < 4+8*int(f.Payload[3]) {
			d.nak(f.Class, f.ID)
			return
		}
		for i := 0; i < int(f.Payload[3]); i++ {
			b := f.Payload[4+8*i:]
			d.gnss[b[0]] = binary.LittleEndian.Uint32(b[4:8])&0x01 != 0
		}
		d.ack(f.Class, f.ID)

	case f.Is(ubx.ClassCFG, ubx.IDCfgCfg):
		if len(f.Payload) < 12 {
			d.nak(f.Class, f.ID)
			return
		}
		if binary.LittleEndian.Uint32(f.Payload[4:8]) != 0 {
			d.saves++
		}
		d.ack(f.Class, f.ID)

	case f.Class == ubx.ClassCFG:
		d.ack(f.Class, f.ID)

	case f.Is(ubx.ClassMON, ubx.IDMonHw) && len(f.Payload) == 0:
		d.reply(ubx.Frame{Class: ubx.ClassMON, ID: ubx.IDMonHw, Payload: d.monHwLocked(d.opts.Motion.At(el))})

	case f.Is(ubx.ClassNAV, ubx.IDNavSat) && len(f.Payload) == 0:
		st := d.opts.Motion.At(el)
		sats := d.skyLocked(el, st)
		d.reply(ubx.Frame{Class: ubx.ClassNAV, ID: ubx.IDNavSat, Payload: navSatPayload(iTOW(now), sats, usedOf(sats))})

	case f.Is(ubx.ClassNAV, ubx.IDNavStatus) && len(f.Payload) == 0:
		d.reply(ubx.Frame{Class: ubx.ClassNAV, ID: ubx.IDNavStatus, Payload: d.navStatusLocked(now, el)})
	}
}

func (d *Device) monHwLocked(st State) []byte {
	p := make([]byte, 60)
	circuit := st.Circuit
	if d.ant.Flags&(ubx.AntShortDetect|ubx.AntOpenDetect) == 0 {
		circuit = satellite.CircuitUnknown
	}
	power := satellite.PowerOff
	if d.ant.Flags&ubx.AntSupplyControl != 0 {
		power = satellite.PowerOn
	}
	if st.Circuit == satellite.CircuitShort && d.ant.Flags&ubx.AntPowerDownShort != 0 {
		power = satellite.PowerOff
	}
	binary.LittleEndian.PutUint16(p[16:], 82)
	binary.LittleEndian.PutUint16(p[18:], 2950)
	p[20] = uint8(circuit)
	p[21] = uint8(power)
	p[45] = 4
	return p
}

func navSatPayload(tow uint32, sats, used []SkySat) []byte {
	p := make([]byte, 8+12*len(sats))
	binary.LittleEndian.PutUint32(p[0:], tow)
	p[4] = 1
	p[5] = uint8(len(sats))
	inUse := make(map[SkySat]bool, len(used))
	for _, s := range used {
		inUse[s] = true
	}
	for i, s := range sats {
		b := p[8+12*i:]
		b[0] = uint8(s.Constellation)
		b[1] = s.SvID
		b[2] = s.SignalDB
		b[3] = uint8(s.ElevationDeg)
		binary.LittleEndian.PutUint16(b[4:], uint16(s.AzimuthDeg))
		binary.LittleEndian.PutUint16(b[6:], uint16(int16(i%5-2)))
		flags := uint32(4) // code locked
		if inUse[s] {
			flags = 7 | 1<<3
		}
		flags |= 1 << 4 // healthy
		binary.LittleEndian.PutUint32(b[8:], flags)
	}
	return p
}

func (d *Device) navStatusLocked(now time.Time, el time.Duration) []byte {
	p := make([]byte, 16)
	binary.LittleEndian.PutUint32(p[0:], iTOW(now))
	if d.fixed {
		p[4] = uint8(satellite.Fix3D)
		p[5] = 0x01
		binary.LittleEndian.PutUint32(p[8:], uint32(d.fixAt.Milliseconds()))
	}
	binary.LittleEndian.PutUint32(p[12:], uint32(el.Milliseconds()))
	return p
}
