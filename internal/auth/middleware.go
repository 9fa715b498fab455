package auth

import (
	"encoding/json"
	"net/http"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/models"
)

const (
	apiKeyHeader     = "X-API-Key"
	apiKeyQueryParam = "api-key"
)

func writeError(w http.ResponseWriter, e *models.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	json.NewEncoder(w).Encode(e)
}

// Middleware enforces API-key authentication. In open mode every request
// passes. The key is read from the X-API-Key header or the api-key query
// parameter (EventSource cannot set headers). Viewer keys may only read.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.IsOpenMode() {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(apiKeyHeader)
		if key == "" {
			key = r.URL.Query().Get(apiKeyQueryParam)
		}
		role, ok := s.Lookup(key)
		if !ok {
			writeError(w, models.ErrUnauthorized)
			return
		}

		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			if role != RoleOperator {
				writeError(w, models.ErrForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
