//go:build !linux

package i2c

import "fmt"

type Dev struct{}

func Open(path string, addr uint16) (*Dev, error) {
	return nil, fmt.Errorf("i2c: unsupported OS (need linux or driver=periph)")
}

func (d *Dev) Addr() uint16         { return 0 }
func (d *Dev) Close() error         { return nil }
func (d *Dev) Tx(w, r []byte) error { return fmt.Errorf("i2c: unsupported OS") }
