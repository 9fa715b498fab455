// Package api implements the harness HTTP API.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/config"
	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/models"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctrl   Controller
	events EventBus
}

// Controller is what the handlers need from the harness.
type Controller interface {
	Cases() []models.CaseInfo
	StartRun(filter string) (string, *models.AppError)
	GetRun(id string) (models.Run, *models.AppError)
	ListRuns(limit int) ([]models.RunSummary, *models.AppError)
	Settings() config.Settings
	UpdateSettings(upd config.SettingsUpdate) (config.Settings, *models.AppError)
	GetInfo() models.Info
}

// EventBus is the interface for subscribing to run events.
type EventBus interface {
	Subscribe(id string) <-chan models.Event
	Resume(id string, after uint64) (<-chan models.Event, []models.Event)
	Unsubscribe(id string)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an AppError as a JSON response.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	if appErr, ok := err.(*models.AppError); ok {
		w.WriteHeader(appErr.Status)
		_ = json.NewEncoder(w).Encode(appErr)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(models.ErrInternal(err.Error()))
}

// intQuery reads an optional non-negative integer query parameter.
func intQuery(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, models.ErrInvalidField(name, "invalid "+name+" parameter")
	}
	return n, nil
}
