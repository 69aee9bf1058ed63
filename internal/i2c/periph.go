package i2c

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

var periphInit struct {
	once sync.Once
	err  error
}

// PeriphDev is a device reached through periph.io's bus registry. Use it on
// boards where the host drivers are preferred over the raw ioctl path.
type PeriphDev struct {
	bus  i2c.BusCloser
	dev  *i2c.Dev
	addr uint16
}

// OpenPeriph opens the named bus ("" selects the first one, "1" or
// "/dev/i2c-1" select by number or path) for the device at addr.
func OpenPeriph(bus string, addr uint16) (*PeriphDev, error) {
	if err := validAddr(addr); err != nil {
		return nil, err
	}
	periphInit.once.Do(func() {
		_, periphInit.err = host.Init()
	})
	if periphInit.err != nil {
		return nil, fmt.Errorf("i2c: periph host init: %w", periphInit.err)
	}
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("i2c: periph open %q: %w", bus, err)
	}
	return &PeriphDev{bus: b, dev: &i2c.Dev{Addr: addr, Bus: b}, addr: addr}, nil
}

func (d *PeriphDev) Addr() uint16 { return d.addr }

func (d *PeriphDev) Tx(w, r []byte) error {
	if d == nil || d.dev == nil {
		return fmt.Errorf("i2c device is closed")
	}
	return d.dev.Tx(w, r)
}

func (d *PeriphDev) Close() error {
	if d == nil || d.bus == nil {
		return nil
	}
	err := d.bus.Close()
	d.bus = nil
	d.dev = nil
	return err
}
