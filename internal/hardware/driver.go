// Package hardware provides the transport layer for GL846-family scanners.
// It defines the Conn interface and the implementations used by the
// driver: the real usbfs connection, a serial register bridge, the
// in-memory ASIC simulator and a recording wrapper for replay tests.
package hardware

import (
	"context"
	"time"

	"github.com/micro-nova/gl846-go/internal/registers"
)

// Register is an ASIC register address.
type Register = uint16

// Transport moves register values and memory blocks to the ASIC.
// All operations are context-aware and safe for concurrent use.
type Transport interface {
	// ReadRegister reads a single register.
	ReadRegister(ctx context.Context, reg Register) (byte, error)

	// WriteRegister writes a single register.
	WriteRegister(ctx context.Context, reg Register, val byte) error

	// WriteRegisters writes a register image in the given order.
	WriteRegisters(ctx context.Context, pairs []registers.Pair) error

	// WriteBlock writes bytes to AHB memory starting at addr.
	WriteBlock(ctx context.Context, addr uint32, data []byte) error

	// WriteBufferAccess writes the buffer-access (0x8c) configuration
	// register at the given index.
	WriteBufferAccess(ctx context.Context, index, val byte) error

	// Sleep waits for d. Simulated transports record the delay instead.
	Sleep(ctx context.Context, d time.Duration)

	// IsMock returns true for simulated transports.
	IsMock() bool
}

// SampleReader fetches captured image data after a scan was started.
type SampleReader interface {
	ReadSamples(ctx context.Context, n int) ([]byte, error)
}

// Conn is a full scanner connection.
type Conn interface {
	Transport
	SampleReader
	Close() error
}

// Recording is implemented by connections that keep a trace of the
// session. The driver reports derived data to it in addition to the
// register traffic.
type Recording interface {
	RecordSlopeTable(slot int, table []uint16)
	RecordKeyValue(key, value string)
	Checkpoint(name string)
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
