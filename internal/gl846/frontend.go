package gl846

import (
	"context"
	"log/slog"

	"github.com/micro-nova/gl846-go/internal/asic"
	"github.com/micro-nova/gl846-go/internal/hardware"
	"github.com/micro-nova/gl846-go/internal/models"
	"github.com/micro-nova/gl846-go/internal/registers"
)

// Analog front-end register addresses.
const (
	feControl0 = 0x00
	feControl1 = 0x01
	feGain     = 0x02 // 0x02-0x04
	feOffset   = 0x05 // 0x05-0x07
)

// frontendType returns the FESET field of the committed image.
func frontendType(dev *asic.Device) byte {
	return dev.Regs.Value(hardware.Reg04) & hardware.Reg04Feset
}

// SetFrontend programs the analog front end. FrontendInit first resets the
// device frontend to the model's initial profile.
func (c CommandSet) SetFrontend(ctx context.Context, dev *asic.Device, action asic.FrontendAction) error {
	// types 0 and 1 take the same register sequence as the fixed AFE
	if t := frontendType(dev); t > fixedFrontend {
		return models.ErrUnsupported("gl846: unsupported frontend type %d", t)
	}
	slog.Debug("gl846: set frontend", "action", action)

	for i := 0; ; i++ {
		st, err := status(ctx, dev)
		if err != nil {
			return err
		}
		if st&hardware.Reg41Febusy == 0 {
			break
		}
		if i >= febusyPolls {
			slog.Warn("gl846: frontend still busy, writing anyway", "polls", i)
			break
		}
		dev.Conn.Sleep(ctx, febusyDelay)
	}

	if action == asic.FrontendInit {
		dev.Frontend = dev.FrontendInitial
	}

	fe := dev.Frontend
	if err := writeFrontend(ctx, dev, feControl0, fe.Control0); err != nil {
		return err
	}
	if err := writeFrontend(ctx, dev, feControl1, fe.Control1); err != nil {
		return err
	}
	for i, g := range fe.Gain {
		if err := writeFrontend(ctx, dev, feGain+byte(i), uint16(g)); err != nil {
			return err
		}
	}
	for i, o := range fe.Offset {
		if err := writeFrontend(ctx, dev, feOffset+byte(i), uint16(o)); err != nil {
			return err
		}
	}
	return nil
}

// writeFrontend writes one AFE register through the data/address window.
// The write to the address register triggers the transfer.
func writeFrontend(ctx context.Context, dev *asic.Device, addr byte, v uint16) error {
	return dev.Conn.WriteRegisters(ctx, []registers.Pair{
		{Addr: hardware.RegFEDHi, Value: byte(v >> 8)},
		{Addr: hardware.RegFEDLo, Value: byte(v)},
		{Addr: hardware.RegFEAddr, Value: addr},
	})
}
