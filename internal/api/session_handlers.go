package api

import (
	"net/http"

	"drivebox/internal/apperr"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	sessions, err := s.store.ListSessionsForUser(r.Context(), claims.UserID)
	if err != nil {
		s.respondError(w, apperr.Database(err))
		return
	}

	respond(w, http.StatusOK, "sessions listed", sessions)
}

func (s *Server) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionId"))
	if err != nil {
		s.respondError(w, apperr.Validation("invalid session id format"))
		return
	}

	if err := s.store.DeleteSessionByID(r.Context(), sessionID, claims.UserID); err != nil {
		s.respondError(w, apperr.Database(err))
		return
	}

	respond(w, http.StatusOK, "session terminated", nil)
}

func (s *Server) TerminateAllSessionsHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	if err := s.store.DeleteAllSessionsForUser(r.Context(), claims.UserID); err != nil {
		s.respondError(w, apperr.Database(err))
		return
	}

	respond(w, http.StatusOK, "all sessions terminated", nil)
}
