package api

import (
	"net/http"

	"github.com/micro-nova/gl846-go/internal/models"
)

func (h *Handlers) selfTest(w http.ResponseWriter, r *http.Request) {
	res, err := h.ctrl.SelfTest(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// factoryReset restores default scan settings and cold-boots the device.
func (h *Handlers) factoryReset(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, h.ctrl.FactoryReset(r.Context()))
}

// loadConfig applies an uploaded configuration document.
func (h *Handlers) loadConfig(w http.ResponseWriter, r *http.Request) {
	var cfg models.Config
	if err := decodeBody(r, &cfg); err != nil {
		writeError(w, err)
		return
	}
	h.writeStatus(w, h.ctrl.LoadConfig(r.Context(), cfg))
}

func (h *Handlers) listBackups(w http.ResponseWriter, r *http.Request) {
	if h.maint == nil {
		writeError(w, models.ErrUnsupported("backups are disabled"))
		return
	}
	files, err := h.maint.ListBackups()
	if err != nil {
		writeError(w, models.ErrInternal(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"backups": files})
}

func (h *Handlers) createBackup(w http.ResponseWriter, r *http.Request) {
	if h.maint == nil {
		writeError(w, models.ErrUnsupported("backups are disabled"))
		return
	}
	path, err := h.maint.RunBackupNow()
	if err != nil {
		writeError(w, models.ErrInternal(err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"file": path})
}
