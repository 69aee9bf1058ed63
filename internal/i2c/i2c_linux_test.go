//go:build linux

package i2c

import (
	"os"
	"strings"
	"testing"
)

func openNull(t *testing.T) *os.File {
	t.Helper()
	f, err := os.OpenFile("/dev/null", os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("OpenFile /dev/null: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestOpen_InvalidAddr(t *testing.T) {
	for _, addr := range []uint16{0, 0x80} {
		_, err := Open("/dev/null", addr)
		if err == nil || !strings.Contains(err.Error(), "invalid i2c addr") {
			t.Fatalf("addr=0x%X err=%v want invalid i2c addr", addr, err)
		}
	}
}

func TestDevTx_EmptyIsNoop(t *testing.T) {
	d := &Dev{f: openNull(t), path: "/dev/null", addr: 0x42}

	n, err := d.tx(nil, nil)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if n != 0 {
		t.Fatalf("n=%d want 0", n)
	}
}

func TestDevTx_ClosedDevice(t *testing.T) {
	d := &Dev{f: openNull(t), path: "/dev/null", addr: 0x42}
	d.f = nil
	if err := d.Tx([]byte{0xFD}, make([]byte, 2)); err == nil {
		t.Fatalf("expected error on closed device")
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close() on closed device: %v", err)
	}
}

func TestDial_UnknownDriver(t *testing.T) {
	_, err := Dial("smbus", "/dev/i2c-1", 0x42)
	if err == nil || !strings.Contains(err.Error(), "unknown driver") {
		t.Fatalf("err=%v want unknown driver", err)
	}
}
