package i2c

import (
	"fmt"
	"strings"
)

// Conn is a single device on an I2C bus.
//
// Tx performs one transaction: w is written, then r is filled using a repeated
// start. Either side may be empty. Implementations are not safe for concurrent
// use; the owner serialises access.
type Conn interface {
	Tx(w, r []byte) error
	Close() error
}

const (
	DriverIoctl  = "ioctl"
	DriverPeriph = "periph"
)

// Dial opens addr on bus using the named driver. An empty driver selects the
// ioctl backend.
func Dial(driver, bus string, addr uint16) (Conn, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverIoctl:
		return Open(bus, addr)
	case DriverPeriph:
		return OpenPeriph(bus, addr)
	default:
		return nil, fmt.Errorf("i2c: unknown driver %q", driver)
	}
}

func validAddr(addr uint16) error {
	if addr == 0 || addr > 0x7F {
		return fmt.Errorf("invalid i2c addr 0x%X", addr)
	}
	return nil
}
