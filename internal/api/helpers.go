// Package api implements the HTTP control API of gl846d.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/micro-nova/gl846-go/internal/identity"
	"github.com/micro-nova/gl846-go/internal/models"
)

// maxBodyBytes bounds request bodies; snapshots are the largest.
const maxBodyBytes = 1 << 20

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctrl   Controller
	events EventBus
	info   identity.Info
	maint  Maintenance // nil when backups are disabled
}

// Controller is what the handlers need from the device controller.
type Controller interface {
	Status() models.DeviceStatus
	Config() models.Config
	Boot(ctx context.Context, cold bool) error
	Settings() models.Settings
	UpdateSettings(ctx context.Context, upd models.SettingsUpdate) (models.Settings, error)
	PrepareScan(ctx context.Context) (models.SessionSummary, error)
	Compile(ctx context.Context, req models.CompileRequest) (models.SessionSummary, []models.RegisterValue, error)
	Calibrate(ctx context.Context) error
	CalibrateLED(ctx context.Context) (models.Exposure, error)
	CalibrateOffset(ctx context.Context) error
	CalibrateGain(ctx context.Context, dpi int) error
	Home(ctx context.Context, wait bool) error
	Feed(ctx context.Context, steps int) error
	SearchStrip(ctx context.Context, forward, black bool) error
	Stop(ctx context.Context) error
	ReadButtons(ctx context.Context) (models.Buttons, error)
	Registers() []models.RegisterValue
	ReadRegister(ctx context.Context, addr uint16) (byte, error)
	WriteRegister(ctx context.Context, addr uint16, val byte) error
	Snapshot() ([]byte, error)
	Restore(ctx context.Context, data []byte) error
	Trace() ([]byte, error)
	ResetTrace() error
	SelfTest(ctx context.Context) (map[string]interface{}, error)
	FactoryReset(ctx context.Context) error
	LoadConfig(ctx context.Context, incoming models.Config) error
}

// Maintenance creates and lists config backups.
type Maintenance interface {
	RunBackupNow() (string, error)
	ListBackups() ([]string, error)
}

// EventBus is the subscription side of the event bus.
type EventBus interface {
	Subscribe(id string, kinds ...string) <-chan models.Event
	Unsubscribe(id string)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as JSON, using the AppError status when there is
// one anywhere in the chain.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		w.WriteHeader(appErr.Status)
		_ = json.NewEncoder(w).Encode(&models.AppError{Code: appErr.Code, Message: err.Error()})
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(models.ErrInternal(err.Error()))
}

// writeStatus answers a device operation with the resulting status.
func (h *Handlers) writeStatus(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// unchanged.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return models.ErrBadRequest("invalid JSON: " + err.Error())
	}
	return nil
}

// addrParam reads a register address path parameter, decimal or 0x hex.
func addrParam(r *http.Request) (uint16, error) {
	s := chi.URLParam(r, "addr")
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, models.ErrBadRequest("invalid register address " + strconv.Quote(s))
	}
	return uint16(n), nil
}
