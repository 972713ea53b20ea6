package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"drivebox/internal/apperr"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CreateFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

func (s *Server) CreateFolderHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperr.Validation("invalid request body"))
		return
	}

	node, err := s.hierarchy.CreateFolder(r.Context(), claims.UserID, req.Name, req.ParentID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.publishEvent(r.Context(), claims.UserID, "node_created", node)
	respond(w, http.StatusCreated, "folder created", node)
}

func (s *Server) ListNodesHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var parentID *string
	if v := r.URL.Query().Get("parent_id"); v != "" {
		parentID = &v
	}
	page, limit := parsePagination(r)

	nodes, pageInfo, err := s.hierarchy.List(r.Context(), claims.UserID, parentID, page, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}

	respondPage(w, http.StatusOK, "nodes listed", nodes, &pageInfo)
}

type UpdateNodeRequest struct {
	Name     *string `json:"name"`
	ParentID *string `json:"parent_id"`
}

// UpdateNodeHandler handles rename and move. Both can appear in one request;
// rename is applied first.
func (s *Server) UpdateNodeHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	var req UpdateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperr.Validation("invalid request body"))
		return
	}
	if req.Name == nil && req.ParentID == nil {
		s.respondError(w, apperr.Validation("no update operation specified (provide 'name' or 'parent_id')"))
		return
	}

	var node interface{}
	if req.Name != nil {
		renamed, err := s.hierarchy.Rename(r.Context(), claims.UserID, nodeID, *req.Name)
		if err != nil {
			s.respondError(w, err)
			return
		}
		node = renamed
	}
	if req.ParentID != nil {
		moved, err := s.hierarchy.Move(r.Context(), claims.UserID, nodeID, req.ParentID)
		if err != nil {
			s.respondError(w, err)
			return
		}
		node = moved
	}

	s.publishEvent(r.Context(), claims.UserID, "node_updated", node)
	respond(w, http.StatusOK, "node updated", node)
}

type CopyNodeRequest struct {
	TargetParentID *string `json:"target_parent_id"`
}

func (s *Server) CopyNodeHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	var req CopyNodeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, apperr.Validation("invalid request body"))
			return
		}
	}

	node, err := s.hierarchy.Copy(r.Context(), claims.UserID, nodeID, req.TargetParentID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.publishEvent(r.Context(), claims.UserID, "node_created", node)
	respond(w, http.StatusCreated, "file copied", node)
}

func (s *Server) DeleteNodeHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	if err := s.hierarchy.SoftDelete(r.Context(), claims.UserID, nodeID); err != nil {
		s.respondError(w, err)
		return
	}

	s.publishEvent(r.Context(), claims.UserID, "node_trashed", map[string]string{"node_id": nodeID})
	respond(w, http.StatusOK, "node moved to trash", nil)
}

type DownloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) DownloadURLHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	expiresIn := time.Hour
	if v := r.URL.Query().Get("expires_in"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			s.respondError(w, apperr.Validation("expires_in must be a positive duration"))
			return
		}
		expiresIn = parsed
	}

	url, err := s.sharing.CreateSignedDownloadURL(r.Context(), claims.UserID, nodeID, expiresIn)
	if err != nil {
		s.respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "download url created", DownloadURLResponse{
		URL:       url,
		ExpiresAt: time.Now().Add(expiresIn).UTC(),
	})
}

// DownloadContentHandler proxies the file bytes through the server. Clients
// that cannot follow presigned URLs use this instead of /download-url.
func (s *Server) DownloadContentHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	content, err := s.sharing.OpenNodeContent(r.Context(), claims.UserID, nodeID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	defer content.Body.Close()

	if content.MimeType != "" {
		w.Header().Set("Content-Type", content.MimeType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if content.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(content.Size, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", content.Name))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, content.Body); err != nil {
		s.log.Warn("download stream interrupted",
			zap.String("node_id", nodeID), zap.Error(err))
	}
}
