package api

import (
	"io"
	"net/http"

	"github.com/micro-nova/gl846-go/internal/models"
)

const cborContentType = "application/cbor"

func (h *Handlers) getRegisters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Registers())
}

// getRegister reads a register from the device, not from the shadow image.
func (h *Handlers) getRegister(w http.ResponseWriter, r *http.Request) {
	addr, err := addrParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := h.ctrl.ReadRegister(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.RegisterValue{Addr: addr, Value: v})
}

func (h *Handlers) putRegister(w http.ResponseWriter, r *http.Request) {
	addr, err := addrParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req models.RegisterWrite
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.ctrl.WriteRegister(r.Context(), addr, req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.RegisterValue{Addr: addr, Value: req.Value})
}

func (h *Handlers) getSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := h.ctrl.Snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	writeBinary(w, data)
}

func (h *Handlers) putSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, models.ErrBadRequest("read body: "+err.Error()))
		return
	}
	if len(data) == 0 {
		writeError(w, models.ErrBadRequest("empty snapshot"))
		return
	}
	if err := h.ctrl.Restore(r.Context(), data); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Registers())
}

func (h *Handlers) getTrace(w http.ResponseWriter, r *http.Request) {
	data, err := h.ctrl.Trace()
	if err != nil {
		writeError(w, err)
		return
	}
	writeBinary(w, data)
}

func (h *Handlers) resetTrace(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.ResetTrace(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeBinary(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", cborContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
