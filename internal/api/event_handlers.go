package api

import (
	"net/http"
	"strconv"

	"drivebox/internal/apperr"
)

// GetEventsHandler returns journal entries after the given event id, for
// client-side cache synchronization.
func (s *Server) GetEventsHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	sinceStr := r.URL.Query().Get("since")
	if sinceStr == "" {
		sinceStr = "0"
	}

	sinceID, err := strconv.ParseInt(sinceStr, 10, 64)
	if err != nil {
		s.respondError(w, apperr.Validation("'since' parameter must be a number"))
		return
	}

	events, err := s.store.GetEventsSince(r.Context(), claims.UserID, sinceID)
	if err != nil {
		s.respondError(w, apperr.Database(err))
		return
	}

	respond(w, http.StatusOK, "events listed", events)
}
