// Package gl846 implements the command set of the Genesys GL845/GL846 scanner
// ASICs: register image compilation, motor control, analog front-end
// programming and the calibration procedures.
//
// Every operation is synchronous. Waiting is done by polling the status
// register with the connection's Sleep, so tests running on the simulator
// never block.
package gl846

import (
	"context"
	"log/slog"
	"time"

	"github.com/micro-nova/gl846-go/internal/asic"
	"github.com/micro-nova/gl846-go/internal/hardware"
	"github.com/micro-nova/gl846-go/internal/models"
)

// Polling budgets.
const (
	stopSettle     = 100 * time.Millisecond
	stopPolls      = 10
	stopPollDelay  = 100 * time.Millisecond
	homePolls      = 300
	homePollDelay  = 100 * time.Millisecond
	feedPolls      = 300
	feedPollDelay  = 100 * time.Millisecond
	bufferPolls    = 1000
	bufferPollWait = 10 * time.Millisecond
	febusyPolls    = 100
	febusyDelay    = 10 * time.Millisecond
)

// Fast feed is only used for this marker resolution.
const (
	fastFedYRes    = 4444
	fastFedMinFeed = 100
)

// fixedFrontend is the FESET value of a frontend without adjustable gain
// and offset. Offset and gain calibration are skipped for it.
const fixedFrontend = 0x02

// CommandSet is the GL846 implementation of asic.CommandSet. It is
// stateless; all state lives in the asic.Device.
type CommandSet struct{}

var _ asic.CommandSet = CommandSet{}

// New returns the GL846 command set.
func New() CommandSet { return CommandSet{} }

func (CommandSet) Name() string { return "gl846" }

// status reads the status register.
func status(ctx context.Context, dev *asic.Device) (byte, error) {
	return dev.Conn.ReadRegister(ctx, hardware.Reg41)
}

// homeSensorGPIO sets the GPIO bits that make home detection reliable.
func homeSensorGPIO(ctx context.Context, dev *asic.Device) error {
	v, err := dev.Conn.ReadRegister(ctx, hardware.Reg6C)
	if err != nil {
		return err
	}
	return dev.Conn.WriteRegister(ctx, hardware.Reg6C, v|hardware.HomeSensorGPIO)
}

// WaitForMotorStop is a no-op: StopAction already waits.
func (CommandSet) WaitForMotorStop(ctx context.Context, dev *asic.Device) error { return nil }

// SavePower is a no-op on this ASIC.
func (CommandSet) SavePower(ctx context.Context, dev *asic.Device, enable bool) error {
	slog.Debug("gl846: save power", "enable", enable)
	return nil
}

// SetPowersaving is a no-op on this ASIC.
func (CommandSet) SetPowersaving(ctx context.Context, dev *asic.Device, delay int) error {
	slog.Debug("gl846: set powersaving", "delay", delay)
	return nil
}

func (CommandSet) MoveToTransparency(ctx context.Context, dev *asic.Device) error {
	return models.ErrUnsupported("gl846: transparency adapter not supported")
}

func (CommandSet) Rewind(ctx context.Context, dev *asic.Device) error {
	return models.ErrUnsupported("gl846: rewind not supported")
}

func (CommandSet) LoadDocument(ctx context.Context, dev *asic.Device) error {
	return models.ErrUnsupported("gl846: document feeder not supported")
}

func (CommandSet) DetectDocumentEnd(ctx context.Context, dev *asic.Device) error {
	return models.ErrUnsupported("gl846: document feeder not supported")
}

func (CommandSet) EjectDocument(ctx context.Context, dev *asic.Device) error {
	return models.ErrUnsupported("gl846: document feeder not supported")
}

func (CommandSet) InitRegsForWarmup(ctx context.Context, dev *asic.Device) error {
	return models.ErrUnsupported("gl846: lamp warmup not supported")
}
