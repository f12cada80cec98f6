package gl846

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/micro-nova/gl846-go/internal/asic"
	"github.com/micro-nova/gl846-go/internal/hardware"
	"github.com/micro-nova/gl846-go/internal/models"
	"github.com/micro-nova/gl846-go/internal/registers"
)

// startAction signals the pipeline to begin. All registers must already be
// committed.
func startAction(ctx context.Context, dev *asic.Device, startMotor bool) error {
	var v byte
	if startMotor {
		v = 1
	}
	return dev.Conn.WriteRegister(ctx, hardware.Reg0F, v)
}

// BeginScan clears the line and feed counters, sets the scan-enable bit and
// starts the pipeline.
func (CommandSet) BeginScan(ctx context.Context, dev *asic.Device, regs *registers.Set, startMotor bool) error {
	dev.SetState(asic.MotorStarting)

	if err := dev.Conn.WriteRegister(ctx, hardware.Reg0D, hardware.Reg0DClrlncnt); err != nil {
		return err
	}
	if err := dev.Conn.WriteRegister(ctx, hardware.Reg0D, hardware.Reg0DClrmcnt); err != nil {
		return err
	}

	v, err := dev.Conn.ReadRegister(ctx, hardware.Reg01)
	if err != nil {
		return err
	}
	v |= hardware.Reg01Scan
	if err := dev.Conn.WriteRegister(ctx, hardware.Reg01, v); err != nil {
		return err
	}
	if err := regs.Set8(hardware.Reg01, v); err != nil {
		return err
	}

	if err := startAction(ctx, dev, startMotor); err != nil {
		return err
	}
	dev.SetState(asic.MotorRunning)
	return nil
}

// EndScan stops the pipeline. Sheet-fed models stop on their own.
func (c CommandSet) EndScan(ctx context.Context, dev *asic.Device, regs *registers.Set, checkStop bool) error {
	slog.Debug("gl846: end scan", "check_stop", checkStop)
	if dev.Model.IsSheetfed {
		return nil
	}
	return c.StopAction(ctx, dev)
}

// StopAction ends the current scan or move and waits for the motor to
// stop. It returns without writing anything when the pipeline is already
// idle.
func (CommandSet) StopAction(ctx context.Context, dev *asic.Device) error {
	if err := homeSensorGPIO(ctx, dev); err != nil {
		return err
	}
	if _, err := status(ctx, dev); err != nil {
		return err
	}
	r40, err := dev.Conn.ReadRegister(ctx, hardware.Reg40)
	if err != nil {
		return err
	}
	if r40&(hardware.Reg40Dataenb|hardware.Reg40Motmflg) == 0 {
		slog.Debug("gl846: already stopped")
		dev.SetState(asic.MotorIdle)
		return nil
	}

	dev.SetState(asic.MotorStopping)
	if err := dev.Regs.ClearBits(hardware.Reg01, hardware.Reg01Scan); err != nil {
		return err
	}
	if err := dev.Conn.WriteRegister(ctx, hardware.Reg01, dev.Regs.Value(hardware.Reg01)); err != nil {
		return err
	}
	dev.Conn.Sleep(ctx, stopSettle)

	for i := 0; i < stopPolls; i++ {
		st, err := status(ctx, dev)
		if err != nil {
			return err
		}
		r40, err := dev.Conn.ReadRegister(ctx, hardware.Reg40)
		if err != nil {
			return err
		}
		// command mode
		if r40&(hardware.Reg40Dataenb|hardware.Reg40Motmflg) == 0 && st&hardware.Reg41Motorenb == 0 {
			dev.SetState(asic.MotorIdle)
			return nil
		}
		dev.Conn.Sleep(ctx, stopPollDelay)
	}

	dev.SetState(asic.MotorFailed)
	return models.ErrHardwareTimeout("could not stop motor")
}

// rollback stops the motor and restores the committed register image after
// a failed start. Both steps are best effort; cause is always returned.
func (c CommandSet) rollback(ctx context.Context, dev *asic.Device, op string, cause error) error {
	slog.Warn("gl846: start failed, rolling back", "op", op, "err", cause)
	if err := c.StopAction(ctx, dev); err != nil {
		slog.Warn("gl846: rollback stop failed", "op", op, "err", err)
	}
	if err := dev.Conn.WriteRegisters(ctx, dev.Regs.Export()); err != nil {
		slog.Warn("gl846: rollback register restore failed", "op", op, "err", err)
	}
	return cause
}

// startMove starts the motor for a move programmed in regs and rolls back
// on failure.
func (c CommandSet) startMove(ctx context.Context, dev *asic.Device, op string) error {
	dev.SetState(asic.MotorStarting)
	if err := startAction(ctx, dev, true); err != nil {
		return c.rollback(ctx, dev, op, err)
	}
	dev.SetState(asic.MotorRunning)
	return nil
}

// SlowBackHome parks the head with a reverse move at the lowest
// resolution. With wait set it blocks until the home sensor triggers.
func (c CommandSet) SlowBackHome(ctx context.Context, dev *asic.Device, wait bool) error {
	slog.Debug("gl846: slow back home", "wait", wait)

	if err := homeSensorGPIO(ctx, dev); err != nil {
		return err
	}
	// the first read after the GPIO change is unreliable
	if _, err := status(ctx, dev); err != nil {
		return err
	}
	dev.Conn.Sleep(ctx, stopSettle)
	st, err := status(ctx, dev)
	if err != nil {
		return err
	}
	if st&hardware.Reg41Homesnr != 0 {
		slog.Debug("gl846: already at home")
		dev.SetHeadPosZero()
		return nil
	}

	local := dev.Regs.Clone()
	dpi := dev.Model.MinYDPI()

	mode := dev.Settings.ScanMode
	dev.Settings.ScanMode = models.ModeLineart
	_, err = c.compile(ctx, dev, local, models.ScanParams{
		XRes:        dpi,
		YRes:        dpi,
		StartX:      100,
		StartY:      30000,
		Pixels:      100,
		Lines:       100,
		Depth:       8,
		Channels:    1,
		ScanMethod:  dev.Settings.ScanMethod,
		ScanMode:    models.ModeGray,
		ColorFilter: models.FilterRed,
		Flags:       models.FlagDisableShading | models.FlagDisableGamma | models.FlagIgnoreLineDistance,
	})
	dev.Settings.ScanMode = mode
	if err != nil {
		return err
	}

	if err := dev.Conn.WriteRegister(ctx, hardware.Reg0D, hardware.Reg0DClrlncnt|hardware.Reg0DClrmcnt); err != nil {
		return err
	}
	if err := local.SetBits(hardware.Reg02, hardware.Reg02Mtrrev); err != nil {
		return err
	}
	if err := dev.Conn.WriteRegisters(ctx, local.Export()); err != nil {
		return err
	}
	if err := c.startMove(ctx, dev, "slow back home"); err != nil {
		return err
	}
	if err := homeSensorGPIO(ctx, dev); err != nil {
		return err
	}
	if rec, ok := dev.Recording(); ok {
		rec.Checkpoint("slow_back_home")
	}

	if !wait {
		slog.Debug("gl846: head still moving")
		return nil
	}

	for i := 0; i < homePolls; i++ {
		st, err := status(ctx, dev)
		if err != nil {
			return err
		}
		if st&hardware.Reg41Homesnr != 0 {
			slog.Debug("gl846: reached home", "polls", i)
			if err := c.StopAction(ctx, dev); err != nil {
				return err
			}
			dev.SetHeadPosZero()
			return nil
		}
		dev.Conn.Sleep(ctx, homePollDelay)
	}

	if err := c.StopAction(ctx, dev); err != nil {
		slog.Warn("gl846: stop after home timeout failed", "err", err)
	}
	dev.HeadPosKnown = false
	return models.ErrHardwareTimeout("timeout while waiting for scanhead to go home")
}

// Feed moves the head forward by steps base-resolution steps without
// scanning.
func (c CommandSet) Feed(ctx context.Context, dev *asic.Device, steps int) error {
	slog.Debug("gl846: feed", "steps", steps)

	local := dev.Regs.Clone()
	dpi := dev.Model.MinYDPI()
	_, err := c.compile(ctx, dev, local, models.ScanParams{
		XRes:        dpi,
		YRes:        dpi,
		StartX:      0,
		StartY:      steps,
		Pixels:      100,
		Lines:       3,
		Depth:       8,
		Channels:    3,
		ScanMethod:  dev.Settings.ScanMethod,
		ScanMode:    models.ModeColor,
		ColorFilter: dev.Settings.ColorFilter,
		Flags: models.FlagDisableShading | models.FlagDisableGamma |
			models.FlagFeeding | models.FlagIgnoreLineDistance,
	})
	if err != nil {
		return err
	}
	if err := setExposure(local, models.Exposure{}); err != nil {
		return err
	}

	if err := dev.Conn.WriteRegister(ctx, hardware.Reg0D, hardware.Reg0DClrlncnt); err != nil {
		return err
	}
	if err := dev.Conn.WriteRegister(ctx, hardware.Reg0D, hardware.Reg0DClrmcnt); err != nil {
		return err
	}
	// move only
	if err := local.ClearBits(hardware.Reg01, hardware.Reg01Scan); err != nil {
		return err
	}
	if err := dev.Conn.WriteRegisters(ctx, local.Export()); err != nil {
		return err
	}
	if err := c.startMove(ctx, dev, "feed"); err != nil {
		return err
	}
	if rec, ok := dev.Recording(); ok {
		rec.Checkpoint("feed")
	}

	if err := waitStatus(ctx, dev, hardware.Reg41Feedfsh, true, feedPolls, feedPollDelay); err != nil {
		if serr := c.StopAction(ctx, dev); serr != nil {
			slog.Warn("gl846: stop after feed timeout failed", "err", serr)
		}
		return fmt.Errorf("gl846: feed %d steps: %w", steps, err)
	}
	if err := c.StopAction(ctx, dev); err != nil {
		return err
	}
	dev.AdvanceHead(steps)
	return nil
}

// waitStatus polls the status register until mask is set (or clear when
// set is false). Exhausting polls is a HardwareTimeout.
func waitStatus(ctx context.Context, dev *asic.Device, mask byte, set bool, polls int, delay time.Duration) error {
	for i := 0; i < polls; i++ {
		st, err := status(ctx, dev)
		if err != nil {
			return err
		}
		if (st&mask != 0) == set {
			return nil
		}
		dev.Conn.Sleep(ctx, delay)
	}
	return models.ErrHardwareTimeout("status bits %#02x not reached after %d polls", mask, polls)
}

// waitUntilBufferNonEmpty waits for the first scanned data to arrive.
func waitUntilBufferNonEmpty(ctx context.Context, dev *asic.Device) error {
	return waitStatus(ctx, dev, hardware.Reg41Bufempty, false, bufferPolls, bufferPollWait)
}

// readCapture reads n bytes of scanned data.
func readCapture(ctx context.Context, dev *asic.Device, n int) ([]byte, error) {
	data, err := dev.Conn.ReadSamples(ctx, n)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, models.ErrTransport("read samples", fmt.Errorf("short read: %d of %d bytes", len(data), n))
	}
	return data, nil
}
