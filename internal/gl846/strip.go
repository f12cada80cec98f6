package gl846

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/micro-nova/gl846-go/internal/asic"
	"github.com/micro-nova/gl846-go/internal/hardware"
	"github.com/micro-nova/gl846-go/internal/models"
)

const (
	stripMaxPasses = 20
	// a pixel above this level is not black
	stripBlackLimit = 90
	// a pixel below this level is not white
	stripWhiteLimit = 60
	// percentage of wrong pixels tolerated in a matching area
	stripTolerance = 3
)

// SearchStrip moves the head in the requested direction until a uniform
// black or white calibration strip is under the sensor.
func (c CommandSet) SearchStrip(ctx context.Context, dev *asic.Device, forward, black bool) error {
	color := stripColor(black)
	slog.Debug("gl846: search strip", "color", color, "forward", forward)

	if err := c.SetFrontend(ctx, dev, asic.FrontendSet); err != nil {
		return err
	}
	if err := c.StopAction(ctx, dev); err != nil {
		return err
	}

	dpi := dev.Model.MinXDPI()
	// shading calibration is done at the motor base resolution
	lines := max(dev.Model.ShadingLines*dpi/dev.Motor.BaseYDPI, 1)
	pixels := dev.Sensor.SensorPixels * dpi / dev.Sensor.OpticalRes

	dev.SetHeadPosZero()

	local := dev.Regs.Clone()
	_, err := c.compile(ctx, dev, local, models.ScanParams{
		XRes:        dpi,
		YRes:        dpi,
		Pixels:      pixels,
		Lines:       lines,
		Depth:       8,
		Channels:    1,
		ScanMethod:  dev.Settings.ScanMethod,
		ScanMode:    models.ModeGray,
		ColorFilter: models.FilterRed,
		Flags:       models.FlagDisableShading | models.FlagDisableGamma,
	})
	if err != nil {
		return err
	}
	if err := local.SetFlag(hardware.Reg02, hardware.Reg02Mtrrev, !forward); err != nil {
		return err
	}
	size := pixels * lines

	dir := "bwd"
	if forward {
		dir = "fwd"
	}
	for pass := 0; pass < stripMaxPasses; pass++ {
		if err := dev.Conn.WriteRegisters(ctx, local.Export()); err != nil {
			return err
		}
		if err := c.BeginScan(ctx, dev, local, true); err != nil {
			return c.rollback(ctx, dev, "search strip", err)
		}
		if err := waitUntilBufferNonEmpty(ctx, dev); err != nil {
			return c.rollback(ctx, dev, "search strip", err)
		}
		data, err := readCapture(ctx, dev, size)
		if err != nil {
			return c.rollback(ctx, dev, "search strip", err)
		}
		if err := c.StopAction(ctx, dev); err != nil {
			return err
		}
		dev.DumpCapture(fmt.Sprintf("gl846_search_strip_%s_%s%02d", color, dir, pass), data, pixels, lines, 1, 8)

		if y, ok := matchStrip(data, pixels, lines, forward, black); ok {
			slog.Info("gl846: strip found", "color", color, "forward", forward, "pass", pass, "line", y)
			return nil
		}
	}
	return models.ErrUnsupported("%s strip not found", color)
}

func stripColor(black bool) string {
	if black {
		return "black"
	}
	return "white"
}

// matchStrip tests a gray capture for the sought colour. Searching forward
// one matching line is enough since the following scan runs forward too.
// Searching backward the whole area must match. It returns the matching
// line, or -1 for a whole-area match.
func matchStrip(data []byte, pixels, lines int, forward, black bool) (int, bool) {
	wrong := func(v byte) bool {
		if black {
			return v > stripBlackLimit
		}
		return v < stripWhiteLimit
	}
	if pixels <= 0 || lines <= 0 {
		return 0, false
	}

	if forward {
		for y := 0; y < lines; y++ {
			count := 0
			for _, v := range data[y*pixels : (y+1)*pixels] {
				if wrong(v) {
					count++
				}
			}
			if count*100/pixels < stripTolerance {
				return y, true
			}
		}
		return 0, false
	}

	count := 0
	for _, v := range data[:pixels*lines] {
		if wrong(v) {
			count++
		}
	}
	return -1, count*100/(pixels*lines) < stripTolerance
}
