package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/models"
)

// sseEvents streams run events. A client first receives an "info" event
// with the harness state, then run events named after their type and
// carrying their bus sequence number as the SSE id. A reconnecting
// EventSource sends Last-Event-ID and gets the retained events it missed.
// ?run=<id> limits the stream to one run.
func (h *Handlers) sseEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var after uint64
	resume := false
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, models.ErrInvalidField("Last-Event-ID", "must be an event sequence number"))
			return
		}
		after, resume = n, true
	}
	runID := r.URL.Query().Get("run")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id := uuid.New().String()
	var (
		ch     <-chan models.Event
		missed []models.Event
	)
	if resume {
		ch, missed = h.events.Resume(id, after)
	} else {
		ch = h.events.Subscribe(id)
	}
	defer h.events.Unsubscribe(id)

	sendSSE(w, flusher, "", "info", h.ctrl.GetInfo())
	for _, ev := range missed {
		sendEvent(w, flusher, runID, ev)
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			sendEvent(w, flusher, runID, ev)
		case <-r.Context().Done():
			return
		}
	}
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, runID string, ev models.Event) {
	if runID != "" && ev.RunID != runID {
		return
	}
	sendSSE(w, flusher, strconv.FormatUint(ev.Seq, 10), string(ev.Type), ev)
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, id, event string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if id != "" {
		_, _ = fmt.Fprintf(w, "id: %s\n", id)
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
