// Package controller owns the scanner device for the daemon. Every device
// operation goes through run, which serialises access, records the outcome
// and publishes an event.
package controller

import (
	"context"
	"log/slog"
	"sync"

	"github.com/micro-nova/gl846-go/internal/asic"
	"github.com/micro-nova/gl846-go/internal/config"
	"github.com/micro-nova/gl846-go/internal/events"
	"github.com/micro-nova/gl846-go/internal/identity"
	"github.com/micro-nova/gl846-go/internal/models"
	"github.com/micro-nova/gl846-go/internal/registers"
	"github.com/micro-nova/gl846-go/internal/session"
)

// compiler is implemented by command sets that can compile arbitrary scan
// parameters into a register image.
type compiler interface {
	CompileDry(dev *asic.Device, regs *registers.Set, params models.ScanParams) (session.Session, error)
}

// Controller serialises all operations on one device.
type Controller struct {
	mu     sync.Mutex
	dev    *asic.Device
	store  config.Store
	bus    *events.Bus
	cfg    models.Config
	info   identity.Info
	booted bool

	lastOp  string
	lastErr string
}

// New creates a controller for dev and applies the stored scan defaults.
// The device is not booted.
func New(dev *asic.Device, store config.Store, bus *events.Bus, info identity.Info) (*Controller, error) {
	cfg, err := store.Load()
	if err != nil {
		return nil, err
	}
	c := &Controller{
		dev:   dev,
		store: store,
		bus:   bus,
		cfg:   *cfg,
		info:  info,
	}
	if s, err := cfg.Scan.Apply(dev.Settings); err != nil {
		slog.Warn("controller: ignoring stored scan defaults", "err", err)
	} else {
		dev.Settings = s
	}
	return c, nil
}

// run executes fn with the device lock held, then records and publishes
// the result.
func (c *Controller) run(ctx context.Context, op string, needBoot bool, fn func(ctx context.Context, dev *asic.Device) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if needBoot && !c.booted {
		return models.ErrConflict("device not booted")
	}
	slog.Debug("controller: operation", "op", op)
	err := fn(ctx, c.dev)

	c.lastOp = op
	c.lastErr = ""
	ev := models.Event{Kind: models.EventOperation, Operation: op}
	if err != nil {
		c.lastErr = err.Error()
		ev.Error = err.Error()
		slog.Warn("controller: operation failed", "op", op, "err", err)
	}
	ev.Status = c.status()
	c.bus.Publish(ev)
	return err
}

// Status returns the current device status.
func (c *Controller) Status() models.DeviceStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status()
}

func (c *Controller) status() models.DeviceStatus {
	d := c.dev
	st := models.DeviceStatus{
		Name:         c.cfg.Name,
		Model:        d.Model.Name,
		Vendor:       d.Model.Vendor,
		ASIC:         d.Cmd.Name(),
		Transport:    c.cfg.Transport,
		Version:      int(d.Version),
		Booted:       c.booted,
		Motor:        d.State.String(),
		HeadPos:      d.HeadPos,
		HeadPosKnown: d.HeadPosKnown,
		Buttons:      d.Buttons,
		Frontend:     d.Frontend,
		Exposure:     d.Sensor.Exposure,
		Settings:     d.Settings,
		LastOp:       c.lastOp,
		LastError:    c.lastErr,
		SoftwareVer:  c.info.Version,
	}
	if d.Session.Computed() {
		s := summarize(d.Session)
		st.Session = &s
	}
	return st
}

func summarize(s session.Session) models.SessionSummary {
	return models.SessionSummary{
		Params:          s.Params,
		HWDPI:           s.HWDPI,
		PixelStartX:     s.PixelStartX,
		PixelEndX:       s.PixelEndX,
		OutputPixels:    s.OutputPixels,
		OutputLineBytes: s.OutputLineBytesRaw,
		OutputLines:     s.OutputLineCount,
		ColorShift:      s.ColorShift,
		BufferSizeRead:  s.BufferSizeRead,
	}
}

// Boot initialises the ASIC. The first boot is always cold.
func (c *Controller) Boot(ctx context.Context, cold bool) error {
	return c.run(ctx, "boot", false, func(ctx context.Context, dev *asic.Device) error {
		if err := dev.Cmd.Boot(ctx, dev, cold || !c.booted); err != nil {
			return err
		}
		c.booted = true
		return nil
	})
}

// Config returns a copy of the daemon config.
func (c *Controller) Config() models.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// ApplyConfig takes over an externally edited config. Only the name and
// scan defaults apply at runtime; device selection needs a restart.
func (c *Controller) ApplyConfig(cfg models.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cfg.Model != c.cfg.Model || cfg.Transport != c.cfg.Transport || cfg.Device != c.cfg.Device {
		slog.Warn("controller: device selection changed, restart to apply",
			"model", cfg.Model, "transport", cfg.Transport)
	}
	s, err := cfg.Scan.Apply(c.dev.Settings)
	if err != nil {
		slog.Warn("controller: ignoring reloaded scan defaults", "err", err)
		return
	}
	c.dev.Settings = s
	c.cfg.Name = cfg.Name
	c.cfg.Scan = cfg.Scan
	c.bus.Publish(models.Event{Kind: models.EventConfig, Status: c.status()})
}
