package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"drivebox/internal/apperr"
	"drivebox/internal/sharing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type CreateGrantsRequest struct {
	Grants []sharing.GrantEntry `json:"grants"`
}

func (s *Server) CreateGrantsHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	var req CreateGrantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperr.Validation("invalid request body"))
		return
	}

	grants, err := s.sharing.Grant(r.Context(), claims.UserID, nodeID, req.Grants)
	if err != nil {
		s.respondError(w, err)
		return
	}

	for _, grant := range grants {
		s.publishEvent(r.Context(), grant.GranteeID, "node_shared_with_you", grant)
	}
	respond(w, http.StatusCreated, "grants created", grants)
}

func (s *Server) ListGrantsHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	grants, err := s.sharing.ListGrants(r.Context(), claims.UserID, nodeID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "grants listed", grants)
}

type UpdateGrantRequest struct {
	Level string `json:"level"`
}

func (s *Server) UpdateGrantHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	grantID, err := uuid.Parse(chi.URLParam(r, "grantId"))
	if err != nil {
		s.respondError(w, apperr.Validation("invalid grant id format"))
		return
	}

	var req UpdateGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperr.Validation("invalid request body"))
		return
	}

	grant, err := s.sharing.UpdateGrant(r.Context(), claims.UserID, grantID, req.Level)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.publishEvent(r.Context(), grant.GranteeID, "grant_updated", grant)
	respond(w, http.StatusOK, "grant updated", grant)
}

func (s *Server) DeleteGrantHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	grantID, err := uuid.Parse(chi.URLParam(r, "grantId"))
	if err != nil {
		s.respondError(w, apperr.Validation("invalid grant id format"))
		return
	}

	if err := s.sharing.RevokeGrant(r.Context(), claims.UserID, grantID); err != nil {
		s.respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "grant revoked", nil)
}

// ListSharingUsersHandler is the root of the shared-with-me view: the
// accounts that have granted this user anything.
func (s *Server) ListSharingUsersHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	page, limit := parsePagination(r)

	users, err := s.store.GetGrantingUsers(r.Context(), claims.UserID, limit, (page-1)*limit)
	if err != nil {
		s.respondError(w, apperr.Database(err))
		return
	}

	respond(w, http.StatusOK, "sharing users listed", users)
}

// ListSharedNodesHandler lists what one owner has shared with the caller.
// Without parent_id it lists the directly granted nodes; with parent_id it
// browses into a shared folder, provided a grant exists on the folder or on
// one of its ancestors.
func (s *Server) ListSharedNodesHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	page, limit := parsePagination(r)

	ownerIDStr := r.URL.Query().Get("owner_id")
	if ownerIDStr == "" {
		s.respondError(w, apperr.Validation("owner_id query parameter is required"))
		return
	}
	ownerID, err := strconv.ParseInt(ownerIDStr, 10, 64)
	if err != nil {
		s.respondError(w, apperr.Validation("owner_id must be a number"))
		return
	}

	parentID := r.URL.Query().Get("parent_id")
	if parentID == "" {
		nodes, err := s.store.ListGrantedNodes(r.Context(), claims.UserID, ownerID, limit, (page-1)*limit)
		if err != nil {
			s.respondError(w, apperr.Database(err))
			return
		}
		respond(w, http.StatusOK, "shared nodes listed", nodes)
		return
	}

	hasGrant, err := s.store.HasGrantOnNode(r.Context(), parentID, claims.UserID)
	if err != nil {
		s.respondError(w, apperr.Database(err))
		return
	}
	if !hasGrant {
		s.respondError(w, apperr.NotFound("NODE_NOT_FOUND", "shared folder not found"))
		return
	}

	nodes, err := s.store.GetNodesByParentID(r.Context(), ownerID, &parentID, limit, (page-1)*limit)
	if err != nil {
		s.respondError(w, apperr.Database(err))
		return
	}

	respond(w, http.StatusOK, "shared nodes listed", nodes)
}

func (s *Server) ListOutgoingGrantsHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	page, limit := parsePagination(r)

	grants, err := s.store.GetOutgoingGrants(r.Context(), claims.UserID, limit, (page-1)*limit)
	if err != nil {
		s.respondError(w, apperr.Database(err))
		return
	}

	respond(w, http.StatusOK, "outgoing grants listed", grants)
}
