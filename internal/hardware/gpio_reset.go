//go:build linux

package hardware

import (
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

const (
	// Default scanner power switch pin (BCM numbering). Driven high the
	// scanner is powered.
	DefaultPowerPin = "GPIO17"

	powerOffTime  = 500 * time.Millisecond
	powerSettleMS = 1500
)

// PowerCycle switches the scanner's USB power off and on through a GPIO
// controlled load switch, then waits for the device to enumerate again.
// Used when the ASIC stops answering and a cold boot is required.
func PowerCycle(pinName string) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("gpio: host init failed: %w", err)
	}

	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return fmt.Errorf("gpio: failed to open %s (scanner power)", pinName)
	}

	if err := pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("gpio: failed to switch power off: %w", err)
	}
	time.Sleep(powerOffTime)

	if err := pin.Out(gpio.High); err != nil {
		return fmt.Errorf("gpio: failed to switch power on: %w", err)
	}
	time.Sleep(powerSettleMS * time.Millisecond)

	slog.Debug("gpio: scanner power cycled", "pin", pinName)
	return nil
}
