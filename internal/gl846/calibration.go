package gl846

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/micro-nova/gl846-go/internal/asic"
	"github.com/micro-nova/gl846-go/internal/hardware"
	"github.com/micro-nova/gl846-go/internal/models"
)

// LED calibration bounds, per channel, on the 16-bit line average.
var (
	ledBottom = [3]int{29000, 29000, 29000}
	ledTop    = [3]int{41000, 51000, 51000}
)

const (
	ledMaxTurns     = 100
	offsetMaxPasses = 32
	offsetBottom    = 10
	offsetTop       = 255
	gainLines       = 10
)

// calibrationParams is the common geometry of the calibration captures:
// colour, no shading or gamma, a single line.
func calibrationParams(dev *asic.Device, res, pixels, lines, depth int) models.ScanParams {
	return models.ScanParams{
		XRes:        res,
		YRes:        res,
		Pixels:      pixels,
		Lines:       lines,
		Depth:       depth,
		Channels:    3,
		ScanMethod:  dev.Settings.ScanMethod,
		ScanMode:    models.ModeColor,
		ColorFilter: dev.Settings.ColorFilter,
		Flags: models.FlagDisableShading | models.FlagDisableGamma |
			models.FlagSingleLine | models.FlagIgnoreLineDistance,
	}
}

// fixedFrontendAttached reports whether the AFE has no adjustable gain or
// offset. The type is read back from the device.
func fixedFrontendAttached(ctx context.Context, dev *asic.Device) (bool, error) {
	v, err := dev.Conn.ReadRegister(ctx, hardware.Reg04)
	if err != nil {
		return false, err
	}
	return v&hardware.Reg04Feset == fixedFrontend, nil
}

// capture commits dev.CalibRegs, runs one scan with the motor as
// programmed, reads n bytes and stops.
func (c CommandSet) capture(ctx context.Context, dev *asic.Device, n int) ([]byte, error) {
	if err := dev.Conn.WriteRegisters(ctx, dev.CalibRegs.Export()); err != nil {
		return nil, err
	}
	if err := c.BeginScan(ctx, dev, dev.CalibRegs, true); err != nil {
		return nil, c.rollback(ctx, dev, "capture", err)
	}
	data, err := readCapture(ctx, dev, n)
	if err != nil {
		return nil, c.rollback(ctx, dev, "capture", err)
	}
	if err := c.StopAction(ctx, dev); err != nil {
		return nil, err
	}
	return data, nil
}

// LEDCalibration adjusts the per-channel exposure until a white line
// averages within bounds. After the turn budget the last values are used
// anyway.
func (c CommandSet) LEDCalibration(ctx context.Context, dev *asic.Device) (models.Exposure, error) {
	move := dev.Model.YOffsetCalibWhite * float64(dev.Motor.BaseYDPI/4) / models.MMPerInch
	if move > 20 {
		if err := c.Feed(ctx, dev, int(move)); err != nil {
			return models.Exposure{}, err
		}
	}
	slog.Debug("gl846: led calibration", "move", move)

	const channels = 3
	res := dev.Sensor.RegisterHWDPI(dev.Settings.XRes)
	prof, err := dev.Sensor.Profile(res)
	if err != nil {
		return models.Exposure{}, err
	}
	pixels := dev.Sensor.SensorPixels * res / dev.Sensor.OpticalRes

	dev.CalibRegs = dev.Regs.Clone()
	if _, err := c.compile(ctx, dev, dev.CalibRegs, calibrationParams(dev, res, pixels, 1, 16)); err != nil {
		return models.Exposure{}, err
	}
	if err := setMotorPower(dev.CalibRegs, false); err != nil {
		return models.Exposure{}, err
	}
	size := pixels * channels * 2

	exp := [3]int{int(prof.Exposure.Red), int(prof.Exposure.Green), int(prof.Exposure.Blue)}
	var avg [3]int
	turn := 0
	for acceptable := false; !acceptable && turn < ledMaxTurns; turn++ {
		if err := setExposure(dev.CalibRegs, exposureOf(exp)); err != nil {
			return models.Exposure{}, err
		}
		line, err := c.capture(ctx, dev, size)
		if err != nil {
			return models.Exposure{}, err
		}
		dev.DumpCapture(fmt.Sprintf("gl846_led_%02d", turn), line, pixels, 1, channels, 16)

		for ch := range avg {
			sum := 0
			for i := 0; i < pixels; i++ {
				var off int
				if dev.Model.IsCIS {
					off = 2*i + 2*ch*pixels
				} else {
					off = 2*i*channels + 2*ch
				}
				sum += int(line[off+1])<<8 | int(line[off])
			}
			avg[ch] = sum / pixels
		}
		slog.Debug("gl846: led average", "turn", turn, "red", avg[0], "green", avg[1], "blue", avg[2])

		acceptable = true
		for ch := range avg {
			a := max(avg[ch], 1)
			if a < ledBottom[ch] {
				exp[ch] = min(exp[ch]*ledBottom[ch]/a, 0xffff)
				acceptable = false
			}
			if a > ledTop[ch] {
				exp[ch] = min(exp[ch]*ledTop[ch]/a, 0xffff)
				acceptable = false
			}
		}
	}

	final := exposureOf(exp)
	slog.Info("gl846: led calibration done", "turns", turn,
		"red", final.Red, "green", final.Green, "blue", final.Blue)
	if err := setExposure(dev.Regs, final); err != nil {
		return models.Exposure{}, err
	}
	dev.Sensor.Exposure = final

	if move > 20 {
		if err := c.SlowBackHome(ctx, dev, true); err != nil {
			return final, err
		}
	}
	return final, nil
}

// exposureOf clamps an exposure triple to the 16-bit registers.
func exposureOf(e [3]int) models.Exposure {
	c := func(v int) uint16 { return uint16(min(max(v, 0), 0xffff)) }
	return models.Exposure{Red: c(e[0]), Green: c(e[1]), Blue: c(e[2])}
}

// darkAverage averages the black margin of an 8-bit interleaved capture
// over all channels.
func darkAverage(data []byte, pixels, lines, channels, black int) int {
	total := 0
	for k := 0; k < channels; k++ {
		sum, count := 0, 0
		for i := 0; i < lines; i++ {
			for j := 0; j < black; j++ {
				sum += int(data[i*channels*pixels+j+k])
				count++
			}
		}
		if count > 0 {
			sum /= count
		}
		total += sum
	}
	return total / channels
}

// OffsetCalibration searches the AFE offset that puts the black margin just
// above zero. Gain is zeroed and the motor stays off.
func (c CommandSet) OffsetCalibration(ctx context.Context, dev *asic.Device) error {
	fixed, err := fixedFrontendAttached(ctx, dev)
	if err != nil {
		return err
	}
	if fixed {
		slog.Debug("gl846: fixed frontend, skipping offset calibration")
		return nil
	}

	const channels, lines = 3, 1
	pixels := dev.Sensor.SensorPixels
	black := dev.Sensor.BlackPixels

	dev.CalibRegs = dev.Regs.Clone()
	if _, err := c.compile(ctx, dev, dev.CalibRegs, calibrationParams(dev, dev.Sensor.OpticalRes, pixels, lines, 8)); err != nil {
		return err
	}
	if err := setMotorPower(dev.CalibRegs, false); err != nil {
		return err
	}
	size := pixels * channels * lines

	for ch := range dev.Frontend.Gain {
		dev.Frontend.SetGain(ch, 0)
	}

	sample := func(offset int) (int, error) {
		dev.Frontend.SetOffsets(uint8(offset))
		if err := c.SetFrontend(ctx, dev, asic.FrontendSet); err != nil {
			return 0, err
		}
		data, err := c.capture(ctx, dev, size)
		if err != nil {
			return 0, err
		}
		dev.DumpCapture(fmt.Sprintf("gl846_offset%03d", offset), data, pixels, lines, channels, 8)
		return darkAverage(data, pixels, lines, channels, black), nil
	}

	bottom, top := offsetBottom, offsetTop
	bottomAvg, err := sample(bottom)
	if err != nil {
		return err
	}
	topAvg, err := sample(top)
	if err != nil {
		return err
	}
	slog.Debug("gl846: offset bounds", "bottom_avg", bottomAvg, "top_avg", topAvg)

	for pass := 0; pass < offsetMaxPasses && top-bottom > 1; pass++ {
		mid := (top + bottom) / 2
		avg, err := sample(mid)
		if err != nil {
			return err
		}
		slog.Debug("gl846: offset pass", "pass", pass, "offset", mid, "avg", avg)

		// a midpoint equal to the top average replaces the top bound
		if avg == topAvg {
			top = mid
		} else {
			bottom = mid
		}
	}

	o := dev.Frontend.Offset
	slog.Info("gl846: offset calibration done", "red", o[0], "green", o[1], "blue", o[2])
	return nil
}

// CoarseGainCalibration sets the AFE gain from the mean of a white capture
// and parks the head afterwards.
func (c CommandSet) CoarseGainCalibration(ctx context.Context, dev *asic.Device, dpi int) error {
	fixed, err := fixedFrontendAttached(ctx, dev)
	if err != nil {
		return err
	}
	if fixed {
		slog.Debug("gl846: fixed frontend, skipping gain calibration")
		return nil
	}
	slog.Debug("gl846: coarse gain calibration", "dpi", dpi)

	const channels = 3
	// follows CKSEL
	coeff := 1.0
	if dev.Settings.XRes < dev.Sensor.OpticalRes {
		coeff = 0.9
	}
	pixels := dev.Sensor.SensorPixels

	dev.CalibRegs = dev.Regs.Clone()
	if _, err := c.compile(ctx, dev, dev.CalibRegs, calibrationParams(dev, dev.Sensor.OpticalRes, pixels, gainLines, 8)); err != nil {
		return err
	}
	if err := setMotorPower(dev.CalibRegs, false); err != nil {
		return err
	}
	if err := c.SetFrontend(ctx, dev, asic.FrontendSet); err != nil {
		return err
	}
	if err := dev.Conn.WriteRegisters(ctx, dev.CalibRegs.Export()); err != nil {
		return err
	}
	if err := c.BeginScan(ctx, dev, dev.CalibRegs, true); err != nil {
		return c.rollback(ctx, dev, "coarse gain", err)
	}
	line, err := readCapture(ctx, dev, pixels*channels*gainLines)
	if err != nil {
		return c.rollback(ctx, dev, "coarse gain", err)
	}
	dev.DumpCapture("gl846_gain", line, pixels, gainLines, channels, 8)

	for ch := 0; ch < channels; ch++ {
		mean := trimmedMean(line, pixels, channels, ch, dev.Model.IsCIS)
		code := GainCode(float64(dev.Sensor.GainWhiteRef)*coeff, mean)
		dev.Frontend.SetGain(ch, code)
		slog.Debug("gl846: gain", "channel", ch, "mean", mean, "code", code)
	}

	if dev.Model.IsCIS {
		g := dev.Frontend.Gain
		low := min(g[0], g[1], g[2])
		for ch := range g {
			dev.Frontend.SetGain(ch, low)
		}
	}
	g := dev.Frontend.Gain
	slog.Info("gl846: gain calibration done", "red", g[0], "green", g[1], "blue", g[2])

	if err := c.StopAction(ctx, dev); err != nil {
		return err
	}
	return c.SlowBackHome(ctx, dev, true)
}

// trimmedMean averages the middle half of the first line of channel ch.
func trimmedMean(line []byte, pixels, channels, ch int, planar bool) int {
	sum := 0
	for i := pixels / 4; i < pixels*3/4; i++ {
		if planar {
			sum += int(line[i+ch*pixels])
		} else {
			sum += int(line[i*channels+ch])
		}
	}
	n := pixels / 2
	if n == 0 {
		return 0
	}
	return sum / n
}

// GainCode converts the ratio between the white reference and a measured
// mean into an AFE gain code. A zero mean saturates at 255.
func GainCode(target float64, mean int) uint8 {
	if mean <= 0 {
		return 0xff
	}
	gain := target / float64(mean)
	code := int(283 - 208/gain)
	return uint8(min(max(code, 0), 0xff))
}
