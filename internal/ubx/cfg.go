package ubx

import (
	"encoding/binary"
	"strings"
)

// Poll builds an empty-payload poll request for class/id.
func Poll(class, id uint8) Frame {
	return Frame{Class: class, ID: id}
}

// AntFlags is the CFG-ANT antenna supervisor flags word.
type AntFlags uint16

const (
	AntSupplyControl  AntFlags = 0x0001 // svcs: enable antenna supply voltage control
	AntShortDetect    AntFlags = 0x0002 // scd
	AntOpenDetect     AntFlags = 0x0004 // ocd
	AntPowerDownShort AntFlags = 0x0008 // pdwnOnSCD
	AntAutoRecover    AntFlags = 0x0010 // recovery
)

func (f AntFlags) String() string {
	var parts []string
	for _, b := range []struct {
		bit  AntFlags
		name string
	}{
		{AntSupplyControl, "svcs"},
		{AntShortDetect, "scd"},
		{AntOpenDetect, "ocd"},
		{AntPowerDownShort, "pdwnOnSCD"},
		{AntAutoRecover, "recovery"},
	} {
		if f&b.bit != 0 {
			parts = append(parts, b.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// AntConfig is the CFG-ANT payload.
type AntConfig struct {
	Flags AntFlags `json:"flags"`
	Pins  uint16   `json:"pins"`
}

func CfgAnt(c AntConfig) Frame {
	p := make([]byte, 4)
	binary.LittleEndian.PutUint16(p[0:2], uint16(c.Flags))
	binary.LittleEndian.PutUint16(p[2:4], c.Pins)
	return Frame{Class: ClassCFG, ID: IDCfgAnt, Payload: p}
}

// ParseCfgAnt decodes a CFG-ANT poll response.
func ParseCfgAnt(payload []byte) (AntConfig, bool) {
	if len(payload) < 4 {
		return AntConfig{}, false
	}
	return AntConfig{
		Flags: AntFlags(binary.LittleEndian.Uint16(payload[0:2])),
		Pins:  binary.LittleEndian.Uint16(payload[2:4]),
	}, true
}

// CfgMsg sets the output rate of msgClass/msgID on the DDC port only; the
// UART1, UART2, USB and SPI rates are set to zero.
func CfgMsg(msgClass, msgID, rateDDC uint8) Frame {
	return Frame{
		Class:   ClassCFG,
		ID:      IDCfgMsg,
		Payload: []byte{msgClass, msgID, rateDDC, 0, 0, 0, 0, 0},
	}
}

// CFG-CFG masks.
const (
	MaskAll     uint32 = 0x0000FFFF
	MaskAntConf uint32 = 0x00000400

	DevBBR      uint8 = 0x01
	DevFlash    uint8 = 0x02
	DevEEPROM   uint8 = 0x04
	DevSPIFlash uint8 = 0x10
	DevAll            = DevBBR | DevFlash | DevEEPROM | DevSPIFlash
)

func CfgCfg(clearMask, saveMask, loadMask uint32, deviceMask uint8) Frame {
	p := make([]byte, 13)
	binary.LittleEndian.PutUint32(p[0:4], clearMask)
	binary.LittleEndian.PutUint32(p[4:8], saveMask)
	binary.LittleEndian.PutUint32(p[8:12], loadMask)
	p[12] = deviceMask
	return Frame{Class: ClassCFG, ID: IDCfgCfg, Payload: p}
}

// SaveAll persists the whole current configuration to every storage device.
func SaveAll() Frame {
	return CfgCfg(0, MaskAll, 0, DevAll)
}

// SaveAntenna persists only the antenna configuration section.
func SaveAntenna() Frame {
	return CfgCfg(0, MaskAntConf, 0, DevAll)
}

// GNSS system ids as used by CFG-GNSS and NAV-SAT.
const (
	GnssGPS     uint8 = 0
	GnssSBAS    uint8 = 1
	GnssGalileo uint8 = 2
	GnssBeiDou  uint8 = 3
	GnssIMES    uint8 = 4
	GnssQZSS    uint8 = 5
	GnssGLONASS uint8 = 6
)

// CfgGnss enables or disables a single GNSS system with one config block.
// maxTrk is the channel budget requested when enabling.
func CfgGnss(gnssID uint8, enable bool, maxTrk uint8) Frame {
	flags := uint32(0x01000000) // sigCfgMask: default signal
	if enable {
		flags |= 0x01
	} else {
		maxTrk = 0
	}
	p := []byte{
		0x00, // msgVer
		0xFF, // numTrkChHw (read-only)
		0xFF, // numTrkChUse: all available
		0x01, // numConfigBlocks
		gnssID,
		0x00, // resTrkCh
		maxTrk,
		0x00,
	}
	p = binary.LittleEndian.AppendUint32(p, flags)
	return Frame{Class: ClassCFG, ID: IDCfgGnss, Payload: p}
}

// ParseAck returns the class/id an ACK-ACK or ACK-NAK refers to.
func ParseAck(f Frame) (class, id uint8, ok bool) {
	if f.Class != ClassACK || len(f.Payload) < 2 {
		return 0, 0, false
	}
	return f.Payload[0], f.Payload[1], true
}
