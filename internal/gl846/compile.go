package gl846

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/micro-nova/gl846-go/internal/asic"
	"github.com/micro-nova/gl846-go/internal/descriptor"
	"github.com/micro-nova/gl846-go/internal/hardware"
	"github.com/micro-nova/gl846-go/internal/models"
	"github.com/micro-nova/gl846-go/internal/motor"
	"github.com/micro-nova/gl846-go/internal/registers"
	"github.com/micro-nova/gl846-go/internal/session"
)

// regWriter applies a sequence of register updates and keeps the first
// error, so long setups read as a flat list.
type regWriter struct {
	regs *registers.Set
	err  error
}

func (w *regWriter) set8(addr registers.Address, v byte) {
	if w.err == nil {
		w.err = w.regs.Set8(addr, v)
	}
}

func (w *regWriter) set16(addr registers.Address, v uint16) {
	if w.err == nil {
		w.err = w.regs.Set16(addr, v)
	}
}

func (w *regWriter) set24(addr registers.Address, v uint32) {
	if w.err == nil {
		w.err = w.regs.Set24(addr, v)
	}
}

func (w *regWriter) setBits(addr registers.Address, mask byte) {
	if w.err == nil {
		w.err = w.regs.SetBits(addr, mask)
	}
}

func (w *regWriter) clearBits(addr registers.Address, mask byte) {
	if w.err == nil {
		w.err = w.regs.ClearBits(addr, mask)
	}
}

func (w *regWriter) setFlag(addr registers.Address, mask byte, on bool) {
	if w.err == nil {
		w.err = w.regs.SetFlag(addr, mask, on)
	}
}

func (w *regWriter) update(addr registers.Address, fn func(byte) byte) {
	if w.err == nil {
		w.err = w.regs.Update(addr, fn)
	}
}

// motorFlags select motor behaviour for one move.
type motorFlags uint8

const (
	motorAutoGoHome motorFlags = 1 << iota
	motorDisableBufferFullMove
	motorFeed
)

// stepCount converts a step count for the 8-bit step registers.
func stepCount(n int) byte {
	return byte(min(n, 0xff))
}

// setExposure programs the three LED exposure registers.
func setExposure(regs *registers.Set, e models.Exposure) error {
	w := regWriter{regs: regs}
	w.set16(hardware.RegExpR, e.Red)
	w.set16(hardware.RegExpG, e.Green)
	w.set16(hardware.RegExpB, e.Blue)
	return w.err
}

// setMotorPower switches motor power in Reg02.
func setMotorPower(regs *registers.Set, on bool) error {
	return regs.SetFlag(hardware.Reg02, hardware.Reg02Mtrpwr, on)
}

// setLampPower switches the lamp. Switching it off also zeroes the
// exposures.
func setLampPower(regs *registers.Set, on bool) error {
	if err := regs.SetFlag(hardware.Reg03, hardware.Reg03Lamppwr, on); err != nil {
		return err
	}
	if !on {
		return setExposure(regs, models.Exposure{})
	}
	return nil
}

// setDPIHW programs the hardware resolution field of Reg05.
func setDPIHW(regs *registers.Set, dpi int) error {
	return regs.Update(hardware.Reg05, func(v byte) byte {
		return v&^hardware.Reg05Dpihw | hardware.DPIHWBits(dpi)
	})
}

// setupSensor applies the sensor and profile register overrides and the
// exposure times.
func setupSensor(dev *asic.Device, prof descriptor.SensorProfile, regs *registers.Set) error {
	w := regWriter{regs: regs}
	for _, p := range dev.Sensor.CustomRegs {
		w.set8(p.Addr, p.Value)
	}
	for _, p := range prof.CustomRegs {
		w.set8(p.Addr, p.Value)
	}
	if w.err != nil {
		return w.err
	}

	e := prof.Exposure
	live := dev.Sensor.Exposure
	if live.Red != 0 {
		e.Red = live.Red
	}
	if live.Green != 0 {
		e.Green = live.Green
	}
	if live.Blue != 0 {
		e.Blue = live.Blue
	}
	return setExposure(regs, e)
}

// initOpticalRegs programs sensor timing, pixel window and colour setup.
// A dry run leaves the AFE untouched.
func (c CommandSet) initOpticalRegs(ctx context.Context, dev *asic.Device, regs *registers.Set, exposure int, s *session.Session, dry bool) error {
	p := s.Params

	prof, err := dev.Sensor.Profile(s.HWDPI)
	if err != nil {
		return err
	}
	if err := setupSensor(dev, prof, regs); err != nil {
		return err
	}
	if !dry {
		if err := c.SetFrontend(ctx, dev, asic.FrontendSet); err != nil {
			return err
		}
	}

	w := regWriter{regs: regs}

	w.clearBits(hardware.Reg01, hardware.Reg01Scan)
	w.setBits(hardware.Reg01, hardware.Reg01Shdarea)
	shading := !p.Flags.Has(models.FlagDisableShading) && !dev.Model.Has(descriptor.FlagNoCalibration)
	w.setFlag(hardware.Reg01, hardware.Reg01Dvdset, shading)

	w.clearBits(hardware.Reg03, hardware.Reg03Aveenb)
	if w.err != nil {
		return w.err
	}
	if err := setLampPower(regs, !p.Flags.Has(models.FlagDisableLamp)); err != nil {
		return err
	}

	w.set8(hardware.RegBWHi, dev.Settings.Threshold)
	w.set8(hardware.RegBWLo, dev.Settings.Threshold)

	switch p.Depth {
	case 8:
		w.clearBits(hardware.Reg04, hardware.Reg04Lineart|hardware.Reg04Bitset)
	case 16:
		w.clearBits(hardware.Reg04, hardware.Reg04Lineart)
		w.setBits(hardware.Reg04, hardware.Reg04Bitset)
	}
	w.clearBits(hardware.Reg04, hardware.Reg04Filter|hardware.Reg04Afemod)
	if p.Channels == 1 {
		switch p.ColorFilter {
		case models.FilterRed:
			w.setBits(hardware.Reg04, hardware.FilterRedBits)
		case models.FilterBlue:
			w.setBits(hardware.Reg04, hardware.FilterBlueBits)
		case models.FilterGreen:
			w.setBits(hardware.Reg04, hardware.FilterGreenBits)
		}
	} else {
		w.setBits(hardware.Reg04, hardware.FilterMonoBits)
	}
	if w.err != nil {
		return w.err
	}

	if err := setDPIHW(regs, s.HWDPI); err != nil {
		return err
	}

	gamma := !p.Flags.Has(models.FlagDisableGamma) && p.Depth != 16
	w.setFlag(hardware.Reg05, hardware.Reg05Gmmenb, gamma)

	if dev.Model.IsCIS {
		w.setFlag(hardware.Reg87, hardware.Reg87Ledadd, s.EnableLEDAdd)
	}

	w.set16(hardware.RegDPISet, uint16(p.XRes*dev.Sensor.PixelRatio()))
	w.set16(hardware.RegStrPixel, uint16(s.PixelStartX))
	w.set16(hardware.RegEndPixel, uint16(s.PixelEndX))
	w.set24(hardware.RegMaxWD, s.MaxWords())
	w.set16(hardware.RegLPeriod, uint16(exposure))
	w.set8(hardware.RegDummy, byte(dev.Sensor.DummyPixel))
	return w.err
}

// initMotorRegs programs line count, slope tables, feed and the motor
// transition points. A dry run computes the tables without uploading them.
func (c CommandSet) initMotorRegs(ctx context.Context, dev *asic.Device, regs *registers.Set, mp motor.Profile,
	exposure uint32, scanYRes, lines, dummy, feedSteps int, flags motorFlags, dry bool) error {

	factor := motor.StepMultiplier(regs.Value(hardware.Reg9D))
	useFastFed := dev.Settings.YRes == fastFedYRes && feedSteps > fastFedMinFeed && flags&motorFeed == 0

	slog.Debug("gl846: motor regs",
		"exposure", exposure,
		"yres", scanYRes,
		"step_type", mp.StepType,
		"lines", lines,
		"dummy", dummy,
		"feed", feedSteps,
		"fast_fed", useFastFed)

	w := regWriter{regs: regs}
	w.set24(hardware.RegLinCnt, uint32(lines))

	r02 := hardware.Reg02Mtrpwr
	if useFastFed {
		r02 |= hardware.Reg02Fastfed
	}
	if flags&motorAutoGoHome != 0 {
		r02 |= hardware.Reg02Agohome | hardware.Reg02Nothome
	}
	if flags&motorDisableBufferFullMove != 0 || scanYRes >= dev.Sensor.OpticalRes {
		r02 |= hardware.Reg02Acdcdis
	}
	w.set8(hardware.Reg02, r02)
	if w.err != nil {
		return w.err
	}

	scanTable, err := motor.Generate(scanYRes, int(exposure), dev.Motor.BaseYDPI, factor, mp)
	if err != nil {
		return err
	}
	if !dry {
		for _, slot := range []motor.Slot{motor.SlotScan, motor.SlotBacktrack} {
			if err := c.SendSlopeTable(ctx, dev, int(slot), scanTable.Entries); err != nil {
				return err
			}
		}
	}

	fastProfile := mp
	fastProfile.StepType = motor.FastStepType(mp.StepType)
	fastTable, err := motor.Generate(dev.Model.MinYDPI(), int(exposure), dev.Motor.BaseYDPI, factor, fastProfile)
	if err != nil {
		return err
	}
	// the first computed delay is too slow for fast moves
	fastTable.Entries[0] = fastTable.Entries[1]
	if !dry {
		for _, slot := range []motor.Slot{motor.SlotStop, motor.SlotFast, motor.SlotHome} {
			if err := c.SendSlopeTable(ctx, dev, int(slot), fastTable.Entries); err != nil {
				return err
			}
		}
	}

	feedl := uint32(feedSteps)
	var dist uint32
	if useFastFed {
		feedl <<= fastProfile.StepType
		dist = uint32((scanTable.ScanSteps + 2*fastTable.ScanSteps) * factor)
		dist += uint32(regs.Value(hardware.Reg5E) & 31)
		dist += uint32(regs.Value(hardware.RegFEDCnt))
	} else {
		feedl <<= mp.StepType
		dist = uint32(scanTable.ScanSteps * factor)
		if flags&motorFeed != 0 {
			dist *= 2
		}
	}
	feedl = motor.CorrectFeed(feedl, dist)
	w.set24(hardware.RegFeedL, feedl)

	ccdlmt := uint32(regs.Value(hardware.Reg0C)&hardware.Reg0CCcdlmt) + 1
	tgtime := uint32(1) << (regs.Value(hardware.Reg1C) & hardware.Reg1CTgtime)

	if dev.Model.GpioID == descriptor.GpioIMG101 && !dry {
		var hires byte
		if scanYRes == dev.Sensor.RegisterHWDPI(scanYRes) {
			hires = 1
		}
		if err := dev.Conn.WriteRegister(ctx, hardware.Reg7E, hires); err != nil {
			return err
		}
	}

	minRestep := max(1, scanTable.ScanSteps/2-1)
	w.set8(hardware.RegFwdStep, stepCount(minRestep))
	w.set8(hardware.RegBwdStep, stepCount(minRestep))

	z1, z2 := motor.ZMod(useFastFed, exposure*ccdlmt*tgtime, scanTable,
		scanTable.ScanSteps*factor, int(feedl), minRestep*factor)
	w.set24(hardware.RegZ1Mod, z1|uint32(mp.StepType)<<hardware.Z1StepSelShift)
	w.set24(hardware.RegZ2Mod, z2|uint32(mp.StepType)<<hardware.Z2StepSelShift)

	w.update(hardware.Reg1E, func(v byte) byte { return v&0xf0 | byte(dummy) })
	w.set8(hardware.Reg67, 0x7f)
	w.set8(hardware.Reg68, 0x7f)

	w.set8(hardware.RegStepNo, stepCount(scanTable.ScanSteps))
	w.set8(hardware.RegFastNo, stepCount(scanTable.ScanSteps))
	w.set8(hardware.RegFShDec, stepCount(scanTable.ScanSteps))
	w.set8(hardware.RegFMovNo, stepCount(fastTable.ScanSteps))
	w.set8(hardware.RegFMovDec, stepCount(fastTable.ScanSteps))
	return w.err
}

// initScanRegs programs regs for a computed session and makes it the
// device's current session. A dry run only fills regs.
func (c CommandSet) initScanRegs(ctx context.Context, dev *asic.Device, regs *registers.Set, s *session.Session, dry bool) error {
	if err := s.AssertComputed(); err != nil {
		return err
	}
	p := s.Params

	// a CIS colour line is three gray lines
	dummy := 3 - p.Channels
	slopeDPI := p.YRes
	if dev.Model.IsCIS {
		slopeDPI *= p.Channels
	}
	slopeDPI *= 1 + dummy

	prof, err := dev.Sensor.Profile(p.XRes)
	if err != nil {
		return err
	}
	exposure := prof.ExposureLPeriod
	mp, err := motor.SelectProfile(dev.Motor.Profiles, uint32(exposure))
	if err != nil {
		return err
	}
	slog.Debug("gl846: scan regs", "exposure", exposure, "step_type", mp.StepType, "slope_dpi", slopeDPI)

	if err := c.initOpticalRegs(ctx, dev, regs, exposure, s, dry); err != nil {
		return err
	}

	var mflags motorFlags
	if p.Flags.Has(models.FlagDisableBufferFullMove) {
		mflags |= motorDisableBufferFullMove
	}
	if p.Flags.Has(models.FlagFeeding) {
		mflags |= motorFeed
	}
	if p.Flags.Has(models.FlagAutoGoHome) {
		mflags |= motorAutoGoHome
	}
	lines := s.OutputLineCount
	if dev.Model.IsCIS {
		lines *= p.Channels
	}
	if err := c.initMotorRegs(ctx, dev, regs, mp, uint32(exposure), slopeDPI, lines, dummy, p.StartY, mflags, dry); err != nil {
		return err
	}

	if !dry {
		dev.Session = *s
	}
	return nil
}

// compile computes the session for params and programs regs with it.
func (c CommandSet) compile(ctx context.Context, dev *asic.Device, regs *registers.Set, params models.ScanParams) (session.Session, error) {
	return c.compileSession(ctx, dev, regs, params, false)
}

func (c CommandSet) compileSession(ctx context.Context, dev *asic.Device, regs *registers.Set, params models.ScanParams, dry bool) (session.Session, error) {
	s, err := session.Compute(params, &dev.Sensor, &dev.Model)
	if err != nil {
		return session.Session{}, err
	}
	if err := c.initScanRegs(ctx, dev, regs, &s, dry); err != nil {
		return session.Session{}, err
	}
	return s, nil
}

// Compile computes a session, programs it into regs and uploads the slope
// tables and AFE setup it needs.
func (c CommandSet) Compile(ctx context.Context, dev *asic.Device, regs *registers.Set, params models.ScanParams) (session.Session, error) {
	return c.compile(ctx, dev, regs, params)
}

// CompileDry fills regs for params without touching the device or its
// current session.
func (c CommandSet) CompileDry(dev *asic.Device, regs *registers.Set, params models.ScanParams) (session.Session, error) {
	return c.compileSession(context.Background(), dev, regs, params, true)
}

// SendSlopeTable uploads a slope table to one of the five hardware slots.
func (CommandSet) SendSlopeTable(ctx context.Context, dev *asic.Device, slot int, table []uint16) error {
	if err := motor.ValidSlot(slot); err != nil {
		return err
	}
	buf := make([]byte, 2*len(table))
	for i, v := range table {
		binary.LittleEndian.PutUint16(buf[2*i:], v)
	}
	slog.Debug("gl846: slope table", "slot", motor.Slot(slot), "steps", len(table))
	if rec, ok := dev.Recording(); ok {
		rec.RecordSlopeTable(slot, table)
	}
	if err := dev.Conn.WriteBlock(ctx, hardware.SlopeTableAddr(slot), buf); err != nil {
		return fmt.Errorf("gl846: send slope table %d: %w", slot, err)
	}
	return nil
}

// scanStartX returns the horizontal scan origin in optical pixels.
func scanStartX(dev *asic.Device) int {
	return int((dev.Model.XOffset + dev.Settings.TLX) * float64(dev.Sensor.OpticalRes) / models.MMPerInch)
}

// CalculateScanSession builds the session for the current settings without
// touching any register.
func (c CommandSet) CalculateScanSession(dev *asic.Device) (session.Session, error) {
	st := dev.Settings
	return session.Compute(models.ScanParams{
		XRes:            st.XRes,
		YRes:            st.YRes,
		StartX:          scanStartX(dev),
		StartY:          0,
		Pixels:          st.Pixels,
		RequestedPixels: st.RequestedPixels,
		Lines:           st.Lines,
		Depth:           st.Depth,
		Channels:        st.Channels(),
		ScanMethod:      st.ScanMethod,
		ScanMode:        st.ScanMode,
		ColorFilter:     st.ColorFilter,
		Flags:           models.FlagNone,
	}, &dev.Sensor, &dev.Model)
}

// InitRegsForScan programs dev.Regs for the scan described by the current
// settings, feeding ahead first when the head has a long way to go.
func (c CommandSet) InitRegsForScan(ctx context.Context, dev *asic.Device) error {
	st := dev.Settings
	move := int((dev.Model.YOffset+st.TLY)*float64(dev.Motor.BaseYDPI)/models.MMPerInch) - dev.HeadPos

	// fast move to the scan area
	if st.Channels()*st.YRes >= 600 && move > 700 {
		if err := c.Feed(ctx, dev, move-500); err != nil {
			return err
		}
		move = 500
	}
	slog.Debug("gl846: init regs for scan", "move", move)

	_, err := c.compile(ctx, dev, dev.Regs, models.ScanParams{
		XRes:            st.XRes,
		YRes:            st.YRes,
		StartX:          scanStartX(dev),
		StartY:          max(move, 0),
		Pixels:          st.Pixels,
		RequestedPixels: st.RequestedPixels,
		Lines:           st.Lines,
		Depth:           st.Depth,
		Channels:        st.Channels(),
		ScanMethod:      st.ScanMethod,
		ScanMode:        st.ScanMode,
		ColorFilter:     st.ColorFilter,
		Flags:           models.FlagDisableBufferFullMove,
	})
	return err
}

// InitRegsForShading programs the calibration image for a shading capture
// and commits it.
func (c CommandSet) InitRegsForShading(ctx context.Context, dev *asic.Device) error {
	const channels = 3
	dev.CalibRegs = dev.Regs.Clone()

	res := dev.Sensor.RegisterHWDPI(dev.Settings.XRes)
	lines := dev.Model.ShadingLines
	if res >= 4800 {
		lines *= 2
	}
	pixels := dev.Sensor.SensorPixels * res / dev.Sensor.OpticalRes

	move := 1
	if res < 1200 {
		move = 40
	}

	_, err := c.compile(ctx, dev, dev.CalibRegs, models.ScanParams{
		XRes:        res,
		YRes:        res,
		StartX:      0,
		StartY:      move,
		Pixels:      pixels,
		Lines:       lines,
		Depth:       16,
		Channels:    channels,
		ScanMethod:  dev.Settings.ScanMethod,
		ScanMode:    models.ModeColor,
		ColorFilter: dev.Settings.ColorFilter,
		Flags: models.FlagDisableShading | models.FlagDisableGamma |
			models.FlagDisableBufferFullMove | models.FlagIgnoreLineDistance,
	})
	if err != nil {
		return err
	}
	if err := dev.Conn.WriteRegisters(ctx, dev.CalibRegs.Export()); err != nil {
		return err
	}
	dev.SetHeadPosZero()
	return nil
}

// InitRegsForCoarseCalibration programs and commits the image used for a
// coarse gain capture.
func (c CommandSet) InitRegsForCoarseCalibration(ctx context.Context, dev *asic.Device) error {
	st := dev.Settings
	_, err := c.compile(ctx, dev, dev.CalibRegs, models.ScanParams{
		XRes:        st.XRes,
		YRes:        st.YRes,
		Pixels:      dev.Sensor.OpticalRes / dev.Sensor.PixelRatio(),
		Lines:       20,
		Depth:       16,
		Channels:    st.Channels(),
		ScanMethod:  st.ScanMethod,
		ScanMode:    st.ScanMode,
		ColorFilter: st.ColorFilter,
		Flags: models.FlagDisableShading | models.FlagDisableGamma |
			models.FlagSingleLine | models.FlagIgnoreLineDistance,
	})
	if err != nil {
		return err
	}
	return dev.Conn.WriteRegisters(ctx, dev.CalibRegs.Export())
}
