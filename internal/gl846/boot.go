package gl846

import (
	"context"
	"log/slog"

	"github.com/micro-nova/gl846-go/internal/asic"
	"github.com/micro-nova/gl846-go/internal/hardware"
	"github.com/micro-nova/gl846-go/internal/registers"
)

// defaultImage is the power-on register image.
var defaultImage = []registers.Pair{
	{Addr: 0x01, Value: 0x60}, {Addr: 0x02, Value: 0x38}, {Addr: 0x03, Value: 0x03},
	{Addr: 0x04, Value: 0x22}, {Addr: 0x05, Value: 0x60}, {Addr: 0x06, Value: 0x10},
	{Addr: 0x08, Value: 0x60}, {Addr: 0x09, Value: 0x00}, {Addr: 0x0a, Value: 0x00},
	{Addr: 0x0b, Value: 0x8b}, {Addr: 0x0c, Value: 0x00}, {Addr: 0x0d, Value: 0x00},
	{Addr: 0x10, Value: 0x00}, {Addr: 0x11, Value: 0x00}, {Addr: 0x12, Value: 0x00},
	{Addr: 0x13, Value: 0x00}, {Addr: 0x14, Value: 0x00}, {Addr: 0x15, Value: 0x00},
	{Addr: 0x16, Value: 0xbb}, {Addr: 0x17, Value: 0x13}, {Addr: 0x18, Value: 0x10},
	{Addr: 0x19, Value: 0x2a}, {Addr: 0x1a, Value: 0x34}, {Addr: 0x1b, Value: 0x00},
	{Addr: 0x1c, Value: 0x20}, {Addr: 0x1d, Value: 0x06}, {Addr: 0x1e, Value: 0xf0},
	{Addr: 0x1f, Value: 0x01}, {Addr: 0x20, Value: 0x03}, {Addr: 0x21, Value: 0x10},
	{Addr: 0x22, Value: 0x60}, {Addr: 0x23, Value: 0x60}, {Addr: 0x24, Value: 0x60},
	{Addr: 0x25, Value: 0x00}, {Addr: 0x26, Value: 0x00}, {Addr: 0x27, Value: 0x00},
	{Addr: 0x2c, Value: 0x00}, {Addr: 0x2d, Value: 0x00}, {Addr: 0x2e, Value: 0x80},
	{Addr: 0x2f, Value: 0x80}, {Addr: 0x30, Value: 0x00}, {Addr: 0x31, Value: 0x00},
	{Addr: 0x32, Value: 0x00}, {Addr: 0x33, Value: 0x00}, {Addr: 0x34, Value: 0x1f},
	{Addr: 0x35, Value: 0x00}, {Addr: 0x36, Value: 0x40}, {Addr: 0x37, Value: 0x00},
	{Addr: 0x38, Value: 0x2a}, {Addr: 0x39, Value: 0xf8}, {Addr: 0x3d, Value: 0x00},
	{Addr: 0x3e, Value: 0x00}, {Addr: 0x3f, Value: 0x01}, {Addr: 0x52, Value: 0x02},
	{Addr: 0x53, Value: 0x04}, {Addr: 0x54, Value: 0x06}, {Addr: 0x55, Value: 0x08},
	{Addr: 0x56, Value: 0x0a}, {Addr: 0x57, Value: 0x00}, {Addr: 0x58, Value: 0x59},
	{Addr: 0x59, Value: 0x31}, {Addr: 0x5a, Value: 0x40}, {Addr: 0x5e, Value: 0x1f},
	{Addr: 0x5f, Value: 0x01}, {Addr: 0x60, Value: 0x00}, {Addr: 0x61, Value: 0x00},
	{Addr: 0x62, Value: 0x00}, {Addr: 0x63, Value: 0x00}, {Addr: 0x64, Value: 0x00},
	{Addr: 0x65, Value: 0x00}, {Addr: 0x67, Value: 0x7f}, {Addr: 0x68, Value: 0x7f},
	{Addr: 0x69, Value: 0x01}, {Addr: 0x6a, Value: 0x01}, {Addr: 0x70, Value: 0x01},
	{Addr: 0x71, Value: 0x00}, {Addr: 0x72, Value: 0x02}, {Addr: 0x73, Value: 0x01},
	{Addr: 0x74, Value: 0x00}, {Addr: 0x75, Value: 0x00}, {Addr: 0x76, Value: 0x00},
	{Addr: 0x77, Value: 0x00}, {Addr: 0x78, Value: 0x00}, {Addr: 0x79, Value: 0x3f},
	{Addr: 0x7a, Value: 0x00}, {Addr: 0x7b, Value: 0x09}, {Addr: 0x7c, Value: 0x99},
	{Addr: 0x7d, Value: 0x20}, {Addr: 0x7f, Value: 0x05}, {Addr: 0x80, Value: 0x4f},
	{Addr: 0x87, Value: 0x02}, {Addr: 0x94, Value: 0xff}, {Addr: 0x9d, Value: 0x04},
	{Addr: 0x9e, Value: 0x00}, {Addr: 0xa1, Value: 0xe0}, {Addr: 0xa2, Value: 0x1f},
	{Addr: 0xab, Value: 0xc0}, {Addr: 0xbb, Value: 0x00}, {Addr: 0xbc, Value: 0x0f},
	{Addr: 0xdb, Value: 0xff}, {Addr: 0xfe, Value: 0x08}, {Addr: 0xff, Value: 0x02},
	{Addr: 0x98, Value: 0x20}, {Addr: 0x99, Value: 0x00}, {Addr: 0x9a, Value: 0x90},
	{Addr: 0x9b, Value: 0x00}, {Addr: 0xf8, Value: 0x05},
}

// DefaultRegisters returns the power-on register image of dev, with the
// hardware resolution set to the sensor's optical resolution.
func DefaultRegisters(dev *asic.Device) (*registers.Set, error) {
	regs := registers.Import(defaultImage)
	if err := setDPIHW(regs, dev.Sensor.OpticalRes); err != nil {
		return nil, err
	}
	return regs, nil
}

// initRegisters resets dev.Regs and dev.CalibRegs to the power-on image.
func initRegisters(dev *asic.Device) error {
	regs, err := DefaultRegisters(dev)
	if err != nil {
		return err
	}
	dev.Regs = regs
	dev.CalibRegs = regs.Clone()
	return nil
}

// initGPIO writes the model's idle GPIO programming.
func initGPIO(ctx context.Context, dev *asic.Device) error {
	g := dev.Gpio
	for _, p := range []registers.Pair{
		{Addr: hardware.RegA7, Value: g.RA7},
		{Addr: hardware.RegA6, Value: g.RA6},
		{Addr: hardware.Reg6B, Value: g.R6B},
		{Addr: hardware.Reg6C, Value: g.R6C},
		{Addr: hardware.Reg6D, Value: g.R6D},
		{Addr: hardware.Reg6E, Value: g.R6E},
		{Addr: hardware.Reg6F, Value: g.R6F},
		{Addr: hardware.RegA8, Value: g.RA8},
		{Addr: hardware.RegA9, Value: g.RA9},
	} {
		if err := dev.Conn.WriteRegister(ctx, p.Addr, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// initMemoryLayout selects the DRAM and programs the buffer base
// addresses. Reg0B is latched once and removed from the image so later
// bulk writes do not trigger it again.
func initMemoryLayout(ctx context.Context, dev *asic.Device) error {
	l := dev.Layout
	if err := dev.Conn.WriteRegister(ctx, hardware.Reg0B, l.DRAMSel); err != nil {
		return err
	}
	if err := dev.Regs.Set8(hardware.Reg0B, l.DRAMSel); err != nil {
		return err
	}
	dev.Regs.Remove(hardware.Reg0B)

	for i, v := range l.RX {
		if err := dev.Conn.WriteRegister(ctx, hardware.RegMemLayout+registers.Address(i), v); err != nil {
			return err
		}
	}
	return nil
}

// Boot brings the ASIC into a known state. A cold boot resets the chip
// first.
func (c CommandSet) Boot(ctx context.Context, dev *asic.Device, cold bool) error {
	slog.Info("gl846: boot", "model", dev.Model.Name, "cold", cold)
	conn := dev.Conn

	if cold {
		if err := conn.WriteRegister(ctx, hardware.Reg0E, 0x01); err != nil {
			return err
		}
		if err := conn.WriteRegister(ctx, hardware.Reg0E, 0x00); err != nil {
			return err
		}
	}

	// USB mode: 0x14 for full speed, 0x11 for high speed
	var usbMode byte = 0x11
	if dev.FullSpeedUSB {
		usbMode = 0x14
	}
	if err := conn.WriteBufferAccess(ctx, 0x0f, usbMode); err != nil {
		return err
	}

	v, err := conn.ReadRegister(ctx, hardware.Reg40)
	if err != nil {
		return err
	}
	if v&hardware.Reg40Chkver != 0 {
		version, err := conn.ReadRegister(ctx, 0x00)
		if err != nil {
			return err
		}
		dev.Version = version
		slog.Info("gl846: reported version", "version", version)
	}

	if err := initRegisters(dev); err != nil {
		return err
	}
	if err := conn.WriteRegisters(ctx, dev.Regs.Export()); err != nil {
		return err
	}

	// enable DRAM: the rising edge of ENBDRAM latches DRAMSEL
	r0b := dev.Regs.Value(hardware.Reg0B)&hardware.Reg0BDramsel | hardware.Reg0BEnbdram
	if err := conn.WriteRegister(ctx, hardware.Reg0B, r0b); err != nil {
		return err
	}
	if err := dev.Regs.Set8(hardware.Reg0B, r0b); err != nil {
		return err
	}

	if dev.Model.IsCIS {
		dev.Regs.Init(hardware.Reg08, hardware.Reg08CISLine)
		if err := conn.WriteRegister(ctx, hardware.Reg08, hardware.Reg08CISLine); err != nil {
			return err
		}
	}

	// clocks
	if err := conn.WriteBufferAccess(ctx, 0x10, 0x0e); err != nil {
		return err
	}
	if err := conn.WriteBufferAccess(ctx, 0x13, 0x0e); err != nil {
		return err
	}

	if err := initGPIO(ctx, dev); err != nil {
		return err
	}
	if err := initMemoryLayout(ctx, dev); err != nil {
		return err
	}

	dev.Regs.Init(hardware.RegF8, 0x05)
	if err := conn.WriteRegister(ctx, hardware.RegF8, 0x05); err != nil {
		return err
	}

	dev.InitRegs = dev.Regs.Clone()
	dev.SetState(asic.MotorIdle)
	return nil
}

// UpdateHardwareSensors reads the front-panel buttons. The inputs are
// active low.
func (CommandSet) UpdateHardwareSensors(ctx context.Context, dev *asic.Device) (asic.Buttons, error) {
	v, err := dev.Conn.ReadRegister(ctx, hardware.Reg6D)
	if err != nil {
		return asic.Buttons{}, err
	}
	b := asic.Buttons{
		Scan:  v&hardware.ButtonScan == 0,
		File:  v&hardware.ButtonFile == 0,
		Email: v&hardware.ButtonEmail == 0,
		Copy:  v&hardware.ButtonCopy == 0,
	}
	dev.Buttons = b
	return b, nil
}
