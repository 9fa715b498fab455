package api

import (
	"encoding/json"
	"net/http"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/config"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/models"
)

func (h *Handlers) getInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.GetInfo())
}

func (h *Handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Settings())
}

func (h *Handlers) setSettings(w http.ResponseWriter, r *http.Request) {
	var upd config.SettingsUpdate
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&upd); err != nil {
		writeError(w, models.ErrBadRequest("invalid JSON: "+err.Error()))
		return
	}
	s, appErr := h.ctrl.UpdateSettings(upd)
	if appErr != nil {
		writeError(w, appErr)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
