package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/micro-nova/gl846-go/internal/auth"
	"github.com/micro-nova/gl846-go/internal/identity"
)

// NewRouter creates the HTTP router. maint may be nil.
func NewRouter(ctrl Controller, authSvc *auth.Service, bus EventBus, info identity.Info, maint Maintenance) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)

	h := &Handlers{ctrl: ctrl, events: bus, info: info, maint: maint}

	// unauthenticated liveness check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Group(func(r chi.Router) {
		r.Use(authSvc.Middleware)

		r.Get("/api/status", h.getStatus)
		r.Get("/api/info", h.getInfo)
		r.Get("/api/config", h.getConfig)
		r.Post("/api/boot", h.boot)

		// Scan settings
		r.Get("/api/settings", h.getSettings)
		r.Patch("/api/settings", h.setSettings)
		r.Post("/api/scan/prepare", h.prepareScan)
		r.Post("/api/compile", h.compile)

		// Calibration
		r.Post("/api/calibrate", h.calibrate)
		r.Post("/api/calibrate/led", h.calibrateLED)
		r.Post("/api/calibrate/offset", h.calibrateOffset)
		r.Post("/api/calibrate/gain", h.calibrateGain)

		// Motion
		r.Post("/api/home", h.home)
		r.Post("/api/feed", h.feed)
		r.Post("/api/strip", h.searchStrip)
		r.Post("/api/stop", h.stop)

		r.Get("/api/buttons", h.getButtons)

		// Registers
		r.Get("/api/registers", h.getRegisters)
		r.Get("/api/registers/snapshot", h.getSnapshot)
		r.Put("/api/registers/snapshot", h.putSnapshot)
		r.Get("/api/registers/{addr}", h.getRegister)
		r.Put("/api/registers/{addr}", h.putRegister)
		r.Get("/api/trace", h.getTrace)
		r.Delete("/api/trace", h.resetTrace)

		// System
		r.Get("/api/selftest", h.selfTest)
		r.Post("/api/factory_reset", h.factoryReset)
		r.Post("/api/load", h.loadConfig)
		r.Get("/api/backups", h.listBackups)
		r.Post("/api/backups", h.createBackup)

		r.Get("/api/subscribe", h.sseEvents)
	})

	return r
}

// corsMiddleware adds permissive CORS headers for local network access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
