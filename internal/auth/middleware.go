package auth

import (
	"encoding/json"
	"net/http"

	"github.com/micro-nova/gl846-go/internal/models"
)

const (
	apiKeyHeader     = "X-API-Key"
	apiKeyQueryParam = "api-key"
)

// Middleware rejects requests without a valid key with 401. Read-only keys
// may only use GET. In open mode everything passes.
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
		k, ok := s.Check(key)
		if !ok {
			deny(w, models.ErrUnauthorized)
			return
		}
		if k.ReadOnly && r.Method != http.MethodGet {
			deny(w, &models.AppError{Code: models.CodeUnauthorized, Message: "read-only key", Status: http.StatusForbidden})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func deny(w http.ResponseWriter, e *models.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e)
}
