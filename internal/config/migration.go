package config

import (
	"log/slog"

	"github.com/micro-nova/gl846-go/internal/descriptor"
	"github.com/micro-nova/gl846-go/internal/models"
)

// document is the on-disk form: the current config plus the fields version
// 1 files used before the scan defaults moved into their own object.
type document struct {
	models.Config
	legacy
}

type legacy struct {
	Resolution int    `json:"resolution,omitempty"`
	DevicePath string `json:"device_path,omitempty"`
	Color      *bool  `json:"color,omitempty"`
}

// migrateConfig brings an older or hand-edited config up to date and
// fills in defaults for anything missing.
func migrateConfig(cfg *models.Config, old legacy) {
	def := models.DefaultConfig()

	if cfg.Version < 2 {
		slog.Info("config: migrating config", "from", cfg.Version, "to", models.ConfigVersion)
		if old.Resolution > 0 {
			if cfg.Scan.XRes == 0 {
				cfg.Scan.XRes = old.Resolution
			}
			if cfg.Scan.YRes == 0 {
				cfg.Scan.YRes = old.Resolution
			}
		}
		if old.DevicePath != "" && cfg.Device == "" {
			cfg.Device = old.DevicePath
		}
		if old.Color != nil && cfg.Scan.Mode == "" {
			cfg.Scan.Mode = "gray"
			if *old.Color {
				cfg.Scan.Mode = "color"
			}
		}
	}
	cfg.Version = models.ConfigVersion

	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if _, err := descriptor.ModelByName(cfg.Model); err != nil {
		if cfg.Model != "" {
			slog.Warn("config: unknown model, using default", "model", cfg.Model, "default", def.Model)
		}
		cfg.Model = def.Model
	}
	switch cfg.Transport {
	case models.TransportUSB, models.TransportSerial, models.TransportMock:
	default:
		if cfg.Transport != "" {
			slog.Warn("config: unknown transport, using mock", "transport", cfg.Transport)
		}
		cfg.Transport = models.TransportMock
	}

	// invalid names fall back to the defaults one field at a time
	sc := &cfg.Scan
	if _, err := models.ParseScanMethod(sc.Method); err != nil {
		sc.Method = def.Scan.Method
	}
	if _, err := models.ParseScanMode(sc.Mode); err != nil {
		sc.Mode = def.Scan.Mode
	}
	if _, err := models.ParseColorFilter(sc.Filter); err != nil {
		sc.Filter = def.Scan.Filter
	}
	if sc.XRes <= 0 {
		sc.XRes = def.Scan.XRes
	}
	if sc.YRes <= 0 {
		sc.YRes = def.Scan.YRes
	}
	if sc.Depth != 8 && sc.Depth != 16 {
		sc.Depth = def.Scan.Depth
	}
	if sc.Pixels < 0 {
		sc.Pixels = 0
	}
	if sc.Lines < 0 {
		sc.Lines = 0
	}
}
