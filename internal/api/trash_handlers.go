package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go.uber.org/zap"
)

func (s *Server) ListTrashHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	page, limit := parsePagination(r)

	nodes, pageInfo, err := s.hierarchy.ListTrash(r.Context(), claims.UserID, page, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}

	respondPage(w, http.StatusOK, "trash listed", nodes, &pageInfo)
}

func (s *Server) RestoreNodeHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	nodeID := chi.URLParam(r, "nodeId")

	node, err := s.hierarchy.Restore(r.Context(), claims.UserID, nodeID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.publishEvent(r.Context(), claims.UserID, "node_restored", node)
	respond(w, http.StatusOK, "node restored", node)
}

type PurgeTrashResponse struct {
	DeletedFiles int   `json:"deleted_files"`
	FreedBytes   int64 `json:"freed_bytes"`
}

// PurgeTrashHandler permanently removes everything in the trash. Rows are
// deleted in one transaction with the quota adjustment. Bucket objects stay:
// reference copies share storage paths and nothing counts references, so
// object cleanup is left to an offline sweep.
func (s *Server) PurgeTrashHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	storageKeys, freedBytes, err := s.hierarchy.Purge(r.Context(), claims.UserID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.log.Info("trash purged",
		zap.Int64("user_id", claims.UserID),
		zap.Int("files", len(storageKeys)),
		zap.Int64("freed_bytes", freedBytes))

	s.publishEvent(r.Context(), claims.UserID, "trash_purged", PurgeTrashResponse{
		DeletedFiles: len(storageKeys),
		FreedBytes:   freedBytes,
	})
	respond(w, http.StatusOK, "trash purged", PurgeTrashResponse{
		DeletedFiles: len(storageKeys),
		FreedBytes:   freedBytes,
	})
}
