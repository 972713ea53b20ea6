package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) CreatePublicLinkHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	link, err := s.sharing.CreatePublicLink(r.Context(), claims.UserID, nodeID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	respond(w, http.StatusCreated, "public link created", link)
}

// PublicResourceHandler is unauthenticated: anyone holding the token gets
// the node metadata and, for files, a time-boxed download URL.
func (s *Server) PublicResourceHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	resource, err := s.sharing.ResolvePublicResource(r.Context(), token)
	if err != nil {
		s.respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "resource resolved", resource)
}
