package ubx

import "fmt"

// Message classes.
const (
	ClassNAV = 0x01
	ClassACK = 0x05
	ClassCFG = 0x06
	ClassMON = 0x0A
)

// Message ids, grouped by class.
const (
	IDNavStatus = 0x03
	IDNavSat    = 0x35

	IDAckNak = 0x00
	IDAckAck = 0x01

	IDCfgMsg  = 0x01
	IDCfgCfg  = 0x09
	IDCfgAnt  = 0x13
	IDCfgGnss = 0x3E

	IDMonHw = 0x09
)

// NMEA standard message class/ids as addressed by CFG-MSG.
const (
	ClassNMEA = 0xF0

	NMEAGGA = 0x00
	NMEAGSA = 0x02
	NMEAGSV = 0x03
	NMEARMC = 0x04
)

var names = map[[2]uint8]string{
	{ClassNAV, IDNavStatus}: "NAV-STATUS",
	{ClassNAV, IDNavSat}:    "NAV-SAT",
	{ClassACK, IDAckNak}:    "ACK-NAK",
	{ClassACK, IDAckAck}:    "ACK-ACK",
	{ClassCFG, IDCfgMsg}:    "CFG-MSG",
	{ClassCFG, IDCfgCfg}:    "CFG-CFG",
	{ClassCFG, IDCfgAnt}:    "CFG-ANT",
	{ClassCFG, IDCfgGnss}:   "CFG-GNSS",
	{ClassMON, IDMonHw}:     "MON-HW",
}

// Name returns the conventional CLASS-ID name, or a hex pair for messages
// outside the handled subset.
func Name(class, id uint8) string {
	if n, ok := names[[2]uint8{class, id}]; ok {
		return n
	}
	return fmt.Sprintf("0x%02X-0x%02X", class, id)
}
