//go:build linux

package i2c

import (
	"errors"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux backend using /dev/i2c-*.
//
// I2C_RDWR gives a combined write+read (repeated start), which the receiver
// needs for its register reads: the register byte is written, then the data
// is clocked out without releasing the bus.

const (
	i2cMrd  = 0x0001
	i2cRdwr = 0x0707
)

type msg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

type rdwrData struct {
	msgs  uintptr
	nmsgs uint32
}

// Dev is one device on an opened bus file. It owns the file.
type Dev struct {
	f    *os.File
	path string
	addr uint16
}

// Open opens the bus at path (e.g. /dev/i2c-1) for the device at addr.
func Open(path string, addr uint16) (*Dev, error) {
	if err := validAddr(addr); err != nil {
		return nil, err
	}
	path = filepath.Clean(path)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &Dev{f: f, path: path, addr: addr}, nil
}

func (d *Dev) Addr() uint16 { return d.addr }

func (d *Dev) Close() error {
	if d == nil || d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

func (d *Dev) Tx(w, r []byte) error {
	_, err := d.tx(w, r)
	return err
}

func (d *Dev) tx(w, r []byte) (int, error) {
	if d == nil || d.f == nil {
		return 0, errors.New("i2c device is closed")
	}
	if err := validAddr(d.addr); err != nil {
		return 0, err
	}

	msgs := make([]msg, 0, 2)
	if len(w) > 0 {
		msgs = append(msgs, msg{addr: d.addr, flags: 0, len: uint16(len(w)), buf: uintptr(unsafe.Pointer(&w[0]))})
	}
	if len(r) > 0 {
		msgs = append(msgs, msg{addr: d.addr, flags: i2cMrd, len: uint16(len(r)), buf: uintptr(unsafe.Pointer(&r[0]))})
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	data := rdwrData{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: uint32(len(msgs))}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), uintptr(i2cRdwr), uintptr(unsafe.Pointer(&data)))
	if errno != 0 {
		return 0, errno
	}
	if len(r) > 0 {
		return len(r), nil
	}
	return len(w), nil
}
