// Package asic holds the state of one scanner device and the command-set
// contract every ASIC family implements.
package asic

import (
	"log/slog"

	"github.com/micro-nova/gl846-go/internal/descriptor"
	"github.com/micro-nova/gl846-go/internal/hardware"
	"github.com/micro-nova/gl846-go/internal/models"
	"github.com/micro-nova/gl846-go/internal/registers"
	"github.com/micro-nova/gl846-go/internal/session"
)

// MotorState is the state of the motor/sensor pipeline.
type MotorState int

const (
	MotorIdle MotorState = iota
	MotorStarting
	MotorRunning
	MotorStopping
	MotorFailed
)

func (s MotorState) String() string {
	switch s {
	case MotorIdle:
		return "idle"
	case MotorStarting:
		return "starting"
	case MotorRunning:
		return "running"
	case MotorStopping:
		return "stopping"
	case MotorFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Buttons is the front-panel button state.
type Buttons = models.Buttons

// Dumper receives raw captures for debugging. Implementations must not
// fail the calling operation.
type Dumper interface {
	Dump(name string, data []byte, pixels, lines, channels, depth int)
}

// Device is everything the driver knows about one scanner. It is owned by a
// single caller at a time; the controller serialises access.
type Device struct {
	Model  descriptor.Model
	Sensor descriptor.Sensor
	Motor  descriptor.Motor
	Gpio   descriptor.Gpio
	Layout descriptor.MemoryLayout

	Conn hardware.Conn
	Cmd  CommandSet

	// Regs is the committed shadow register image.
	Regs *registers.Set
	// InitRegs is the register image produced by the last boot.
	InitRegs *registers.Set
	// CalibRegs is the working image used by calibration setups.
	CalibRegs *registers.Set

	Frontend        models.Frontend
	FrontendInitial models.Frontend

	Settings models.Settings
	Session  session.Session

	HeadPos      int
	HeadPosKnown bool
	State        MotorState
	Version      byte
	Buttons      Buttons
	FullSpeedUSB bool

	Dump Dumper
}

// NewDevice builds a device from a descriptor bundle.
func NewDevice(b descriptor.Bundle, conn hardware.Conn, cmd CommandSet) *Device {
	return &Device{
		Model:           b.Model,
		Sensor:          b.Sensor,
		Motor:           b.Motor,
		Gpio:            b.Gpio,
		Layout:          b.Layout,
		Conn:            conn,
		Cmd:             cmd,
		Regs:            registers.New(),
		InitRegs:        registers.New(),
		CalibRegs:       registers.New(),
		Frontend:        b.Model.Frontend,
		FrontendInitial: b.Model.Frontend,
		Settings:        DefaultSettings(b.Model),
	}
}

// DefaultSettings returns flatbed colour settings at the lowest resolution.
func DefaultSettings(m descriptor.Model) models.Settings {
	return models.Settings{
		ScanMethod:  m.DefaultMethod,
		ScanMode:    models.ModeColor,
		XRes:        m.MinXDPI(),
		YRes:        m.MinYDPI(),
		Depth:       8,
		ColorFilter: models.FilterRed,
		Threshold:   128,
	}
}

// SetState moves the motor state machine.
func (d *Device) SetState(s MotorState) {
	if d.State != s {
		slog.Debug("asic: motor state", "from", d.State, "to", s)
	}
	d.State = s
}

// SetHeadPosZero marks the head as parked.
func (d *Device) SetHeadPosZero() {
	d.HeadPos = 0
	d.HeadPosKnown = true
}

// AdvanceHead records a forward move of steps base-resolution steps.
func (d *Device) AdvanceHead(steps int) {
	if d.HeadPosKnown {
		d.HeadPos += steps
	}
}

// Recording returns the connection's recording hook, if any.
func (d *Device) Recording() (hardware.Recording, bool) {
	r, ok := d.Conn.(hardware.Recording)
	return r, ok
}

// DumpCapture hands a capture to the configured dumper.
func (d *Device) DumpCapture(name string, data []byte, pixels, lines, channels, depth int) {
	if d.Dump != nil {
		d.Dump.Dump(name, data, pixels, lines, channels, depth)
	}
}
