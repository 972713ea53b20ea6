package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"drivebox/internal/apperr"
	"drivebox/internal/hierarchy"

	"go.uber.org/zap"
)

type response struct {
	StatusCode int             `json:"statusCode"`
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       interface{}     `json:"data,omitempty"`
	Pagination *hierarchy.Page `json:"pagination,omitempty"`
	ErrorCode  string          `json:"errorCode,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respond(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, response{
		StatusCode: status,
		Success:    true,
		Message:    message,
		Data:       data,
		Timestamp:  time.Now().UTC(),
	})
}

func respondPage(w http.ResponseWriter, status int, message string, data interface{}, page *hierarchy.Page) {
	writeJSON(w, status, response{
		StatusCode: status,
		Success:    true,
		Message:    message,
		Data:       data,
		Pagination: page,
		Timestamp:  time.Now().UTC(),
	})
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	appErr := apperr.From(err)
	if appErr.StatusCode >= 500 {
		s.log.Error("request failed", zap.String("code", appErr.Code), zap.Error(err))
	}
	writeJSON(w, appErr.StatusCode, response{
		StatusCode: appErr.StatusCode,
		Success:    false,
		Message:    appErr.Message,
		ErrorCode:  appErr.Code,
		Timestamp:  time.Now().UTC(),
	})
}

// parsePagination reads ?page and ?limit with the 1-based defaults the
// listing endpoints share. Engines clamp again on their side.
func parsePagination(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
