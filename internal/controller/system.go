package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/micro-nova/gl846-go/internal/asic"
	"github.com/micro-nova/gl846-go/internal/hardware"
	"github.com/micro-nova/gl846-go/internal/models"
)

// ReadButtons samples the front-panel buttons. A change is published as a
// buttons event.
func (c *Controller) ReadButtons(ctx context.Context) (models.Buttons, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.booted {
		return models.Buttons{}, models.ErrConflict("device not booted")
	}
	before := c.dev.Buttons
	b, err := c.dev.Cmd.UpdateHardwareSensors(ctx, c.dev)
	if err != nil {
		return models.Buttons{}, err
	}
	if b != before {
		slog.Info("controller: buttons changed", "scan", b.Scan, "file", b.File, "email", b.Email, "copy", b.Copy)
		c.bus.Publish(models.Event{Kind: models.EventButtons, Status: c.status()})
	}
	return b, nil
}

// RunButtonPoller samples the buttons every interval until ctx ends.
func (c *Controller) RunButtonPoller(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := c.ReadButtons(ctx); err != nil && models.CodeOf(err) != models.CodeConflict {
				slog.Debug("controller: button poll failed", "err", err)
			}
		}
	}
}

// SelfTest checks that the ASIC answers and reports its status registers.
func (c *Controller) SelfTest(ctx context.Context) (map[string]interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := map[string]interface{}{"ok": true, "mock": c.dev.Conn.IsMock()}
	for _, r := range []struct {
		name string
		reg  hardware.Register
	}{
		{"status", hardware.Reg41},
		{"version", hardware.Reg40},
		{"gpio", hardware.Reg6D},
	} {
		v, err := c.dev.Conn.ReadRegister(ctx, r.reg)
		if err != nil {
			out["ok"] = false
			out["error"] = fmt.Sprintf("read %s: %v", r.name, err)
			return out, nil
		}
		out[r.name] = fmt.Sprintf("0x%02x", v)
	}
	out["motor"] = c.dev.State.String()
	return out, nil
}

// FactoryReset restores the default scan settings, persists them and
// cold-boots the device.
func (c *Controller) FactoryReset(ctx context.Context) error {
	return c.run(ctx, "factory_reset", false, func(ctx context.Context, dev *asic.Device) error {
		def := models.DefaultConfig()
		c.cfg.Scan = def.Scan
		dev.Settings = asic.DefaultSettings(dev.Model)
		if s, err := def.Scan.Apply(dev.Settings); err == nil {
			dev.Settings = s
		}
		dev.Frontend = dev.FrontendInitial
		if err := c.store.Save(&c.cfg); err != nil {
			return err
		}
		if err := dev.Cmd.Boot(ctx, dev, true); err != nil {
			return err
		}
		c.booted = true
		return nil
	})
}

// LoadConfig replaces the scan defaults and name from an uploaded config.
func (c *Controller) LoadConfig(ctx context.Context, incoming models.Config) error {
	return c.run(ctx, "load_config", false, func(ctx context.Context, dev *asic.Device) error {
		s, err := incoming.Scan.Apply(dev.Settings)
		if err != nil {
			return err
		}
		dev.Settings = s
		if incoming.Name != "" {
			c.cfg.Name = incoming.Name
		}
		c.cfg.Scan = incoming.Scan
		return c.store.Save(&c.cfg)
	})
}
