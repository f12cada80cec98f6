package gl846

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/micro-nova/gl846-go/internal/asic"
	"github.com/micro-nova/gl846-go/internal/hardware"
	"github.com/micro-nova/gl846-go/internal/models"
	"github.com/micro-nova/gl846-go/internal/registers"
)

// SendShadingData uploads shading coefficients. data holds three
// equal-sized channel planes of 2x16-bit coefficients covering the full
// sensor width; only the part inside the current SHDAREA window is sent,
// decimated to the hardware resolution.
func (CommandSet) SendShadingData(ctx context.Context, dev *asic.Device, data []byte) error {
	length := len(data) / 3
	start := dev.Session.PixelStartX
	pixels := dev.Session.PixelEndX - start

	dpiset, err := dev.Regs.Get16(hardware.RegDPISet)
	if err != nil {
		return err
	}
	if dpiset == 0 {
		return models.ErrInvalidArgument("shading upload without a programmed resolution")
	}
	factor := max(dev.Sensor.RegisterHWDPI(int(dpiset))/int(dpiset), 1)

	// SHDAREA is relative to the CCD start
	start -= dev.Sensor.CCDStartXOffset * 600 / dev.Sensor.OpticalRes

	// two 16-bit words per pixel
	offset := start * 4
	size := pixels * 4

	slog.Debug("gl846: shading data", "bytes", len(data), "offset", offset, "pixels", size, "factor", factor)
	if rec, ok := dev.Recording(); ok {
		rec.RecordKeyValue("shading_offset", strconv.Itoa(offset))
		rec.RecordKeyValue("shading_pixels", strconv.Itoa(size))
		rec.RecordKeyValue("shading_length", strconv.Itoa(length))
		rec.RecordKeyValue("shading_factor", strconv.Itoa(factor))
	}
	if offset < 0 || size <= 0 {
		return models.ErrInvalidArgument("invalid shading window: offset %d, size %d", offset, size)
	}

	buf := make([]byte, size)
	for ch := 0; ch < 3; ch++ {
		clear(buf)
		src := data[ch*length:]
		p := 0
		for x := 0; x < size; x += 4 * factor {
			o := offset + x
			if o+4 > length {
				return models.ErrInvalidArgument("shading data too short: %d bytes per channel", length)
			}
			copy(buf[p:p+4], src[o:o+4])
			p += 4
		}

		// the base address is programmed in 8K units
		base, err := dev.Conn.ReadRegister(ctx, hardware.RegShadingBase+registers.Address(ch))
		if err != nil {
			return err
		}
		if err := dev.Conn.WriteBlock(ctx, hardware.ShadingAddr(base), buf); err != nil {
			return err
		}
	}
	return nil
}
