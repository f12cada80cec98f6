package api

import (
	"net/http"

	"github.com/micro-nova/gl846-go/internal/models"
)

// calibrate runs LED, offset and gain calibration in order.
func (h *Handlers) calibrate(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, h.ctrl.Calibrate(r.Context()))
}

func (h *Handlers) calibrateLED(w http.ResponseWriter, r *http.Request) {
	exp, err := h.ctrl.CalibrateLED(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ExposureResult{Exposure: exp})
}

func (h *Handlers) calibrateOffset(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, h.ctrl.CalibrateOffset(r.Context()))
}

func (h *Handlers) calibrateGain(w http.ResponseWriter, r *http.Request) {
	var req models.GainRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.writeStatus(w, h.ctrl.CalibrateGain(r.Context(), req.DPI))
}
