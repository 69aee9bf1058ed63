// Package udp forwards the NMEA sentences found in the receiver byte stream
// to a UDP listener, one sentence per datagram.
package udp

import (
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/octality-ai/mobile-air-quality-monitoring/internal/stream"
)

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type (
	resolveFunc func(network, address string) (*net.UDPAddr, error)
	dialFunc    func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)
)

func dialUDP(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
	c, err := net.DialUDP(network, laddr, raddr)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Forwarder implements gnss.Recorder. UBX frames in the stream are dropped.
type Forwarder struct {
	mu     sync.Mutex
	dest   string
	conn   udpConn
	asm    *stream.Assembler
	sent   uint64
	failed bool
}

func NewForwarder(dest string) (*Forwarder, error) {
	return newForwarder(dest, net.ResolveUDPAddr, dialUDP)
}

func newForwarder(dest string, resolve resolveFunc, dial dialFunc) (*Forwarder, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	// DialUDP selects a suitable local address automatically.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}

	return &Forwarder{
		dest: dest,
		conn: conn,
		asm:  stream.NewAssembler(),
	}, nil
}

// Record extracts complete sentences from p and sends each one. Partial
// sentences wait for the next chunk. It returns the first send error.
func (f *Forwarder) Record(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.asm.Ingest(p)
	var first error
	for {
		line, ok := f.asm.NextLine()
		if !ok {
			break
		}
		if err := f.send([]byte(line + "\r\n")); err != nil && first == nil {
			first = err
		}
	}
	// Frames are not forwarded; drop them so the queue stays bounded.
	for {
		if _, ok := f.asm.NextFrame(); !ok {
			break
		}
	}

	switch {
	case first != nil && !f.failed:
		log.Printf("udp: forward to %s failing: %v", f.dest, first)
		f.failed = true
	case first == nil && f.failed:
		log.Printf("udp: forward to %s recovered", f.dest)
		f.failed = false
	}
	return first
}

func (f *Forwarder) send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if _, err := f.conn.Write(payload); err != nil {
		return err
	}
	f.sent++
	return nil
}

// Sent is the number of datagrams written.
func (f *Forwarder) Sent() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent
}

func (f *Forwarder) Close() error {
	if f.conn == nil {
		return nil
	}
	return f.conn.Close()
}
