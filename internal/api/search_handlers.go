package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) SearchNodesHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	term := r.URL.Query().Get("q")

	var nodeType *string
	if v := r.URL.Query().Get("type"); v != "" {
		nodeType = &v
	}

	nodes, err := s.search.Search(r.Context(), claims.UserID, term, nodeType)
	if err != nil {
		s.respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "search results", nodes)
}

func (s *Server) RecentFilesHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	nodes, err := s.search.Recent(r.Context(), claims.UserID, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "recent files", nodes)
}

func (s *Server) StarNodeHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	if err := s.search.Star(r.Context(), claims.UserID, nodeID); err != nil {
		s.respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "file starred", nil)
}

type StarStatusResponse struct {
	Starred bool `json:"starred"`
}

func (s *Server) GetStarStatusHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	starred, err := s.search.IsStarred(r.Context(), claims.UserID, nodeID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "star status", StarStatusResponse{Starred: starred})
}

func (s *Server) UnstarNodeHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	if err := s.search.Unstar(r.Context(), claims.UserID, nodeID); err != nil {
		s.respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "file unstarred", nil)
}

func (s *Server) ListStarredHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	nodes, err := s.search.Starred(r.Context(), claims.UserID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respond(w, http.StatusOK, "starred files", nodes)
}
