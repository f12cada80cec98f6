package api

import (
	"net/http"

	"github.com/micro-nova/gl846-go/internal/descriptor"
	"github.com/micro-nova/gl846-go/internal/models"
)

// infoResponse describes the daemon and the models it can drive.
type infoResponse struct {
	Hostname string   `json:"hostname"`
	Version  string   `json:"version"`
	Model    string   `json:"model"`
	Models   []string `json:"models"`
}

func (h *Handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

func (h *Handlers) getInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, infoResponse{
		Hostname: h.info.Hostname,
		Version:  h.info.Version,
		Model:    h.ctrl.Status().Model,
		Models:   descriptor.Models(),
	})
}

func (h *Handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Config())
}

func (h *Handlers) boot(w http.ResponseWriter, r *http.Request) {
	var req models.BootRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.writeStatus(w, h.ctrl.Boot(r.Context(), req.Cold))
}

func (h *Handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Settings())
}

func (h *Handlers) setSettings(w http.ResponseWriter, r *http.Request) {
	var upd models.SettingsUpdate
	if err := decodeBody(r, &upd); err != nil {
		writeError(w, err)
		return
	}
	s, err := h.ctrl.UpdateSettings(r.Context(), upd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handlers) prepareScan(w http.ResponseWriter, r *http.Request) {
	sum, err := h.ctrl.PrepareScan(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// compileResponse is the session and register image a compile would
// program, without committing either.
type compileResponse struct {
	Session   models.SessionSummary  `json:"session"`
	Registers []models.RegisterValue `json:"registers"`
}

func (h *Handlers) compile(w http.ResponseWriter, r *http.Request) {
	var req models.CompileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sum, regs, err := h.ctrl.Compile(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, compileResponse{Session: sum, Registers: regs})
}

func (h *Handlers) home(w http.ResponseWriter, r *http.Request) {
	req := models.HomeRequest{Wait: true}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.writeStatus(w, h.ctrl.Home(r.Context(), req.Wait))
}

func (h *Handlers) feed(w http.ResponseWriter, r *http.Request) {
	var req models.FeedRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.writeStatus(w, h.ctrl.Feed(r.Context(), req.Steps))
}

func (h *Handlers) searchStrip(w http.ResponseWriter, r *http.Request) {
	req := models.StripRequest{Forward: true}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.writeStatus(w, h.ctrl.SearchStrip(r.Context(), req.Forward, req.Black))
}

func (h *Handlers) stop(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, h.ctrl.Stop(r.Context()))
}

func (h *Handlers) getButtons(w http.ResponseWriter, r *http.Request) {
	b, err := h.ctrl.ReadButtons(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
