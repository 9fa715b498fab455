package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/models"
	"github.com/go-chi/chi/v5"
)

const defaultRunLimit = 50

type startRunRequest struct {
	Filter string `json:"filter"`
}

type startRunResponse struct {
	ID string `json:"id"`
}

func (h *Handlers) getCases(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Cases())
}

func (h *Handlers) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, models.ErrBadRequest("invalid JSON: "+err.Error()))
		return
	}
	id, appErr := h.ctrl.StartRun(req.Filter)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	w.Header().Set("Location", "/api/runs/"+id)
	writeJSON(w, http.StatusAccepted, startRunResponse{ID: id})
}

func (h *Handlers) getRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", defaultRunLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	runs, appErr := h.ctrl.ListRuns(limit)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handlers) getRun(w http.ResponseWriter, r *http.Request) {
	run, appErr := h.ctrl.GetRun(chi.URLParam(r, "id"))
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
