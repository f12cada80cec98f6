package controller

import (
	"context"
	"log/slog"

	"github.com/micro-nova/gl846-go/internal/asic"
	"github.com/micro-nova/gl846-go/internal/hardware"
	"github.com/micro-nova/gl846-go/internal/models"
	"github.com/micro-nova/gl846-go/internal/registers"
)

func registerValues(s *registers.Set) []models.RegisterValue {
	pairs := s.Export()
	out := make([]models.RegisterValue, len(pairs))
	for i, p := range pairs {
		out[i] = models.RegisterValue{Addr: p.Addr, Value: p.Value}
	}
	return out
}

// Registers returns the committed shadow image, sorted by address.
func (c *Controller) Registers() []models.RegisterValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return registerValues(c.dev.Regs)
}

// ReadRegister reads one register from the device.
func (c *Controller) ReadRegister(ctx context.Context, addr uint16) (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dev.Conn.ReadRegister(ctx, addr)
}

// WriteRegister writes one register on the device and keeps the shadow
// image in step when it holds the address.
func (c *Controller) WriteRegister(ctx context.Context, addr uint16, val byte) error {
	return c.run(ctx, "write_register", false, func(ctx context.Context, dev *asic.Device) error {
		if err := dev.Conn.WriteRegister(ctx, addr, val); err != nil {
			return err
		}
		if dev.Regs.Has(addr) {
			return dev.Regs.Set8(addr, val)
		}
		return nil
	})
}

// Snapshot encodes the committed shadow image as CBOR.
func (c *Controller) Snapshot() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dev.Regs.MarshalSnapshot()
}

// Restore replaces the committed image with a snapshot and writes it to
// the device.
func (c *Controller) Restore(ctx context.Context, data []byte) error {
	set, err := registers.UnmarshalSnapshot(data)
	if err != nil {
		return models.ErrBadRequest(err.Error())
	}
	return c.run(ctx, "restore_registers", true, func(ctx context.Context, dev *asic.Device) error {
		if err := dev.Conn.WriteRegisters(ctx, set.Export()); err != nil {
			return err
		}
		dev.Regs = set
		return nil
	})
}

// Trace returns the recorded transport trace as CBOR when the connection
// records.
func (c *Controller) Trace() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.dev.Conn.(*hardware.Recorder)
	if !ok {
		return nil, models.ErrUnsupported("connection is not recording")
	}
	return rec.MarshalTrace()
}

// ResetTrace clears the recorded trace.
func (c *Controller) ResetTrace() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.dev.Conn.(*hardware.Recorder)
	if !ok {
		return models.ErrUnsupported("connection is not recording")
	}
	rec.Reset()
	slog.Debug("controller: trace reset")
	return nil
}
