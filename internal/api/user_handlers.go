package api

import (
	"net/http"

	"drivebox/internal/apperr"
)

func (s *Server) GetCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	if claims == nil {
		s.respondError(w, apperr.Unauthorized("could not retrieve user from token"))
		return
	}

	respond(w, http.StatusOK, "current user", claims)
}

type StorageUsageResponse struct {
	UsedBytes  int64 `json:"used_bytes"`
	QuotaBytes int64 `json:"quota_bytes"`
}

func (s *Server) GetStorageUsageHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		s.respondError(w, apperr.Database(err))
		return
	}
	if user == nil {
		s.respondError(w, apperr.NotFound("USER_NOT_FOUND", "account not found"))
		return
	}

	respond(w, http.StatusOK, "storage usage", StorageUsageResponse{
		UsedBytes:  user.StorageUsedBytes,
		QuotaBytes: user.StorageQuotaBytes,
	})
}

func (s *Server) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.GetPool().Ping(r.Context()); err != nil {
		s.respondError(w, apperr.Wrap(http.StatusServiceUnavailable, "DB_UNAVAILABLE", "database unreachable", err))
		return
	}
	respond(w, http.StatusOK, "ok", nil)
}
