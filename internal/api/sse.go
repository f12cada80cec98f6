package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/micro-nova/gl846-go/internal/models"
)

const sseKeepAlive = 15 * time.Second

// sseEvents streams device events. The current status is sent first;
// ?kind=a,b limits the stream to those event kinds.
func (h *Handlers) sseEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	var kinds []string
	if k := r.URL.Query().Get("kind"); k != "" {
		kinds = strings.Split(k, ",")
	}

	id := uuid.NewString()
	ch := h.events.Subscribe(id, kinds...)
	defer h.events.Unsubscribe(id)

	sendSSE(w, flusher, models.Event{
		ID:     id,
		Kind:   models.EventStatus,
		Time:   time.Now(),
		Status: h.ctrl.Status(),
	})

	ping := time.NewTicker(sseKeepAlive)
	defer ping.Stop()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			sendSSE(w, flusher, ev)
		case <-ping.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, ev models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Kind, data)
	flusher.Flush()
}
