// Command gl846d is the GL846 scanner daemon. It boots the scanner, runs
// calibration and motion on request and serves the HTTP control API.
// Run with --mock to use the simulated ASIC (no scanner required).
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/micro-nova/gl846-go/internal/api"
	"github.com/micro-nova/gl846-go/internal/asic"
	"github.com/micro-nova/gl846-go/internal/auth"
	"github.com/micro-nova/gl846-go/internal/config"
	"github.com/micro-nova/gl846-go/internal/controller"
	"github.com/micro-nova/gl846-go/internal/descriptor"
	"github.com/micro-nova/gl846-go/internal/dump"
	"github.com/micro-nova/gl846-go/internal/events"
	"github.com/micro-nova/gl846-go/internal/gl846"
	"github.com/micro-nova/gl846-go/internal/hardware"
	"github.com/micro-nova/gl846-go/internal/identity"
	"github.com/micro-nova/gl846-go/internal/maintenance"
	"github.com/micro-nova/gl846-go/internal/models"
	"github.com/micro-nova/gl846-go/internal/zeroconf"
)

const buttonPollInterval = 200 * time.Millisecond

func main() {
	var (
		mock   = flag.Bool("mock", false, "use the simulated ASIC (no scanner required)")
		addr   = flag.String("addr", ":8846", "HTTP listen address")
		cfgDir = flag.String("config-dir", "", "config directory (default: ~/.config/gl846d)")
		debug  = flag.Bool("debug", false, "enable debug logging")
		model  = flag.String("model", "", "scanner model, overrides the config")
		device = flag.String("device", "", "usbfs node or serial port, overrides the config")
	)
	flag.Parse()

	// Configure logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Resolve config directory
	home, err := os.UserHomeDir()
	if err != nil {
		slog.Error("cannot determine home directory", "err", err)
		os.Exit(1)
	}
	if *cfgDir == "" {
		*cfgDir = filepath.Join(home, ".config", "gl846d")
	}
	if err := os.MkdirAll(*cfgDir, 0755); err != nil {
		slog.Error("cannot create config directory", "path", *cfgDir, "err", err)
		os.Exit(1)
	}

	// Graceful shutdown context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Config store
	store := config.NewJSONStore(*cfgDir)
	cfg, err := store.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if *mock {
		cfg.Transport = models.TransportMock
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *device != "" {
		cfg.Device = *device
	}

	bundle, err := descriptor.Lookup(cfg.Model)
	if err != nil {
		slog.Error("unknown scanner model", "model", cfg.Model, "known", descriptor.Models())
		os.Exit(1)
	}

	// Scanner power
	if cfg.PowerPin != "" && cfg.Transport != models.TransportMock {
		if err := hardware.PowerCycle(cfg.PowerPin); err != nil {
			slog.Warn("scanner power cycle failed", "pin", cfg.PowerPin, "err", err)
		}
	}

	// Transport
	conn, err := openConn(cfg)
	if err != nil {
		slog.Error("scanner connection failed", "transport", cfg.Transport, "device", cfg.Device, "err", err)
		os.Exit(1)
	}
	if cfg.Record {
		// the trace lives in memory and is served by /api/trace
		slog.Info("recording transport trace")
		conn = hardware.NewRecorder(conn)
	}
	defer conn.Close()

	dev := asic.NewDevice(bundle, conn, gl846.New())
	if cfg.DumpDir != "" {
		dir, err := dump.NewDir(cfg.DumpDir)
		if err != nil {
			slog.Warn("debug dumps disabled", "err", err)
		} else {
			dev.Dump = dir
		}
	}

	// Event bus
	bus := events.NewBus()

	// Controller
	info := identity.Detect(*cfgDir)
	ctrl, err := controller.New(dev, store, bus, info)
	if err != nil {
		slog.Error("controller initialization failed", "err", err)
		conn.Close()
		os.Exit(1)
	}
	if err := ctrl.Boot(ctx, true); err != nil {
		// the API stays up so the device can be booted again
		slog.Error("scanner boot failed", "err", err)
	}

	watcher, err := config.NewWatcher(store, ctrl.ApplyConfig)
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Close()
	}

	// Auth service
	authSvc, err := auth.NewService(*cfgDir)
	if err != nil {
		slog.Error("auth service initialization failed", "err", err)
		conn.Close()
		os.Exit(1)
	}
	defer authSvc.Close()

	// Maintenance goroutines (config backups, dump pruning)
	maint := maintenance.New(*cfgDir, filepath.Join(home, "backups"), cfg.DumpDir)
	go maint.Start(ctx)

	// Zeroconf mDNS registration
	if cfg.Advertise {
		port := 8846
		if parts := strings.SplitN(*addr, ":", 2); len(parts) == 2 && parts[1] != "" {
			if p, err := strconv.Atoi(parts[1]); err == nil {
				port = p
			}
		}
		base := info.TXT(bundle.Model.Name, dev.Cmd.Name())
		booted := ctrl.Status().Booted
		zc := zeroconf.New(cfg.Name, port, readyTXT(base, booted))
		go func() {
			if err := zc.Start(ctx); err != nil {
				slog.Warn("zeroconf failed", "err", err)
			}
		}()
		go advertiseReadiness(ctx, bus, zc, base, booted)
	}

	// Background goroutines
	go ctrl.RunButtonPoller(ctx, buttonPollInterval)

	// HTTP server
	router := api.NewRouter(ctrl, authSvc, bus, info, maint)
	srv := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE and long calibrations)
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("gl846d listening", "addr", *addr, "model", bundle.Model.Name, "transport", cfg.Transport, "config", *cfgDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()

	// Park the head before the connection goes away
	if st := ctrl.Status(); st.Booted {
		if err := ctrl.Home(shutCtx, true); err != nil {
			slog.Warn("park on shutdown failed", "err", err)
		}
	}

	// Flush pending config writes
	if err := store.Flush(); err != nil {
		slog.Warn("failed to flush config", "err", err)
	}

	// Graceful HTTP shutdown
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}

	slog.Info("shutdown complete")
}

// readyTXT appends the boot state to the base TXT records.
func readyTXT(base []string, booted bool) []string {
	return append(append([]string(nil), base...), "ready="+strconv.FormatBool(booted))
}

// advertiseReadiness re-announces the service whenever the boot state
// changes.
func advertiseReadiness(ctx context.Context, bus *events.Bus, zc *zeroconf.Service, base []string, booted bool) {
	ch := bus.Subscribe("zeroconf", models.EventOperation)
	defer bus.Unsubscribe("zeroconf")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Status.Booted == booted {
				continue
			}
			booted = ev.Status.Booted
			if err := zc.UpdateTXT(readyTXT(base, booted)); err != nil {
				slog.Debug("zeroconf: TXT update failed", "err", err)
			}
		}
	}
}

// openConn opens the transport the config selects.
func openConn(cfg *models.Config) (hardware.Conn, error) {
	switch cfg.Transport {
	case models.TransportUSB:
		slog.Info("using usbfs transport", "device", cfg.Device)
		c, err := hardware.NewUSB(cfg.Device)
		if err != nil {
			return nil, err
		}
		return c, nil
	case models.TransportSerial:
		slog.Info("using serial bridge transport", "device", cfg.Device)
		c, err := hardware.OpenSerial(cfg.Device)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		slog.Info("using simulated ASIC")
		return hardware.NewMock(), nil
	}
}
