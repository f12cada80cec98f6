package asic

import (
	"context"

	"github.com/micro-nova/gl846-go/internal/models"
	"github.com/micro-nova/gl846-go/internal/registers"
	"github.com/micro-nova/gl846-go/internal/session"
)

// FrontendAction selects how the analog front end is programmed.
type FrontendAction int

const (
	// FrontendInit resets the frontend to the model's initial profile
	// before writing it.
	FrontendInit FrontendAction = iota
	// FrontendSet writes the current frontend profile.
	FrontendSet
	// FrontendPowerSave writes the current profile before power saving.
	FrontendPowerSave
)

func (a FrontendAction) String() string {
	switch a {
	case FrontendInit:
		return "init"
	case FrontendSet:
		return "set"
	case FrontendPowerSave:
		return "powersave"
	default:
		return "unknown"
	}
}

// CommandSet is the operation contract of one ASIC family. An
// implementation is chosen once when the device is opened.
type CommandSet interface {
	Name() string

	Boot(ctx context.Context, dev *Device, cold bool) error
	SetFrontend(ctx context.Context, dev *Device, action FrontendAction) error

	// Register setups.
	CalculateScanSession(dev *Device) (session.Session, error)
	InitRegsForScan(ctx context.Context, dev *Device) error
	InitRegsForShading(ctx context.Context, dev *Device) error
	InitRegsForCoarseCalibration(ctx context.Context, dev *Device) error
	InitRegsForWarmup(ctx context.Context, dev *Device) error
	SendSlopeTable(ctx context.Context, dev *Device, slot int, table []uint16) error
	SendShadingData(ctx context.Context, dev *Device, data []byte) error

	// Motion.
	BeginScan(ctx context.Context, dev *Device, regs *registers.Set, startMotor bool) error
	EndScan(ctx context.Context, dev *Device, regs *registers.Set, checkStop bool) error
	StopAction(ctx context.Context, dev *Device) error
	SlowBackHome(ctx context.Context, dev *Device, wait bool) error
	Feed(ctx context.Context, dev *Device, steps int) error
	WaitForMotorStop(ctx context.Context, dev *Device) error

	// Calibration.
	LEDCalibration(ctx context.Context, dev *Device) (models.Exposure, error)
	OffsetCalibration(ctx context.Context, dev *Device) error
	CoarseGainCalibration(ctx context.Context, dev *Device, dpi int) error
	SearchStrip(ctx context.Context, dev *Device, forward, black bool) error

	// Sensors and power.
	UpdateHardwareSensors(ctx context.Context, dev *Device) (Buttons, error)
	SavePower(ctx context.Context, dev *Device, enable bool) error
	SetPowersaving(ctx context.Context, dev *Device, delay int) error

	// Document handling.
	MoveToTransparency(ctx context.Context, dev *Device) error
	Rewind(ctx context.Context, dev *Device) error
	LoadDocument(ctx context.Context, dev *Device) error
	DetectDocumentEnd(ctx context.Context, dev *Device) error
	EjectDocument(ctx context.Context, dev *Device) error
}
