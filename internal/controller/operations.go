package controller

import (
	"context"

	"github.com/micro-nova/gl846-go/internal/asic"
	"github.com/micro-nova/gl846-go/internal/models"
)

// Settings returns the current scan settings.
func (c *Controller) Settings() models.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dev.Settings
}

// UpdateSettings merges upd into the scan settings and persists them as
// the new defaults. A geometry that cannot be compiled is rejected.
func (c *Controller) UpdateSettings(ctx context.Context, upd models.SettingsUpdate) (models.Settings, error) {
	var out models.Settings
	err := c.run(ctx, "settings", false, func(ctx context.Context, dev *asic.Device) error {
		next, err := upd.Merge(dev.Settings)
		if err != nil {
			return err
		}
		if next.Pixels > 0 {
			candidate := *dev
			candidate.Settings = next
			if _, err := dev.Cmd.CalculateScanSession(&candidate); err != nil {
				return err
			}
		}
		dev.Settings = next
		out = next

		c.cfg.Scan = models.ScanDefaults{
			Method: next.ScanMethod.String(),
			Mode:   next.ScanMode.String(),
			XRes:   next.XRes,
			YRes:   next.YRes,
			Depth:  next.Depth,
			Filter: next.ColorFilter.String(),
			TLX:    next.TLX,
			TLY:    next.TLY,
			Pixels: next.Pixels,
			Lines:  next.Lines,
		}
		return c.store.Save(&c.cfg)
	})
	return out, err
}

// PrepareScan programs the committed register image for the current
// settings.
func (c *Controller) PrepareScan(ctx context.Context) (models.SessionSummary, error) {
	var out models.SessionSummary
	err := c.run(ctx, "prepare_scan", true, func(ctx context.Context, dev *asic.Device) error {
		if err := dev.Cmd.InitRegsForScan(ctx, dev); err != nil {
			return err
		}
		out = summarize(dev.Session)
		return nil
	})
	return out, err
}

// Compile compiles arbitrary parameters into a scratch copy of the
// register image and returns it. Nothing is written to the device.
func (c *Controller) Compile(ctx context.Context, req models.CompileRequest) (models.SessionSummary, []models.RegisterValue, error) {
	var (
		sum  models.SessionSummary
		regs []models.RegisterValue
	)
	err := c.run(ctx, "compile", true, func(ctx context.Context, dev *asic.Device) error {
		comp, ok := dev.Cmd.(compiler)
		if !ok {
			return models.ErrUnsupported("%s cannot compile arbitrary sessions", dev.Cmd.Name())
		}
		params := req.Params
		if len(req.Flags) > 0 {
			flags, ok := models.ParseScanFlags(req.Flags)
			if !ok {
				return models.ErrInvalidArgument("unknown scan flag in %v", req.Flags)
			}
			params.Flags |= flags
		}

		scratch := dev.Regs.Clone()
		s, err := comp.CompileDry(dev, scratch, params)
		if err != nil {
			return err
		}
		sum = summarize(s)
		regs = registerValues(scratch)
		return nil
	})
	return sum, regs, err
}

// CalibrateLED runs LED exposure calibration.
func (c *Controller) CalibrateLED(ctx context.Context) (models.Exposure, error) {
	var exp models.Exposure
	err := c.run(ctx, "calibrate_led", true, func(ctx context.Context, dev *asic.Device) error {
		e, err := dev.Cmd.LEDCalibration(ctx, dev)
		exp = e
		return err
	})
	return exp, err
}

// CalibrateOffset runs AFE offset calibration.
func (c *Controller) CalibrateOffset(ctx context.Context) error {
	return c.run(ctx, "calibrate_offset", true, func(ctx context.Context, dev *asic.Device) error {
		return dev.Cmd.OffsetCalibration(ctx, dev)
	})
}

// CalibrateGain runs coarse AFE gain calibration at dpi, or at the current
// horizontal resolution when dpi is zero.
func (c *Controller) CalibrateGain(ctx context.Context, dpi int) error {
	if dpi < 0 {
		return models.ErrInvalidArgument("dpi must not be negative (%d)", dpi)
	}
	return c.run(ctx, "calibrate_gain", true, func(ctx context.Context, dev *asic.Device) error {
		if dpi == 0 {
			dpi = dev.Settings.XRes
		}
		return dev.Cmd.CoarseGainCalibration(ctx, dev, dpi)
	})
}

// Calibrate runs the full sequence: LED, offset, then gain.
func (c *Controller) Calibrate(ctx context.Context) error {
	return c.run(ctx, "calibrate", true, func(ctx context.Context, dev *asic.Device) error {
		if _, err := dev.Cmd.LEDCalibration(ctx, dev); err != nil {
			return err
		}
		if err := dev.Cmd.OffsetCalibration(ctx, dev); err != nil {
			return err
		}
		return dev.Cmd.CoarseGainCalibration(ctx, dev, dev.Settings.XRes)
	})
}

// Home parks the scan head.
func (c *Controller) Home(ctx context.Context, wait bool) error {
	return c.run(ctx, "home", true, func(ctx context.Context, dev *asic.Device) error {
		return dev.Cmd.SlowBackHome(ctx, dev, wait)
	})
}

// Feed moves the head forward.
func (c *Controller) Feed(ctx context.Context, steps int) error {
	if steps <= 0 {
		return models.ErrInvalidArgument("feed steps must be positive (%d)", steps)
	}
	return c.run(ctx, "feed", true, func(ctx context.Context, dev *asic.Device) error {
		return dev.Cmd.Feed(ctx, dev, steps)
	})
}

// SearchStrip looks for the calibration strip.
func (c *Controller) SearchStrip(ctx context.Context, forward, black bool) error {
	return c.run(ctx, "search_strip", true, func(ctx context.Context, dev *asic.Device) error {
		return dev.Cmd.SearchStrip(ctx, dev, forward, black)
	})
}

// Stop stops the motor and the sensor pipeline.
func (c *Controller) Stop(ctx context.Context) error {
	return c.run(ctx, "stop", true, func(ctx context.Context, dev *asic.Device) error {
		return dev.Cmd.StopAction(ctx, dev)
	})
}
