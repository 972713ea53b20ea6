package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"drivebox/internal/apperr"
	"drivebox/internal/uploading"

	"github.com/go-chi/chi/v5"
)

const maxUploadBytes = 1 << 30

func parseInt32Param(r *http.Request, name string) (int32, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 32)
	return int32(v), err
}

// UploadFileHandler is the single-shot path: one multipart form field named
// "file", streamed straight to the object store.
func (s *Server) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, apperr.Validation("error parsing multipart form"))
		return
	}

	file, handler, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, apperr.Validation("error retrieving the file"))
		return
	}
	defer file.Close()

	var parentID *string
	if v := r.FormValue("parent_id"); v != "" {
		parentID = &v
	}

	node, err := s.uploads.UploadFile(r.Context(), claims.UserID, parentID, handler.Filename, handler.Size, file)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.publishEvent(r.Context(), claims.UserID, "node_created", node)
	respond(w, http.StatusCreated, "file uploaded", node)
}

type StartUploadRequest struct {
	Name     string  `json:"name"`
	FolderID *string `json:"folder_id"`
}

func (s *Server) StartUploadHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req StartUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperr.Validation("invalid request body"))
		return
	}

	result, err := s.uploads.Start(r.Context(), claims.UserID, req.FolderID, req.Name)
	if err != nil {
		s.respondError(w, err)
		return
	}

	respond(w, http.StatusCreated, "upload started", result)
}

// UploadChunkHandler takes the raw chunk as the request body; the part
// number comes from the URL.
func (s *Server) UploadChunkHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	uploadID := chi.URLParam(r, "uploadId")

	partNumber, err := parseInt32Param(r, "partNumber")
	if err != nil {
		s.respondError(w, apperr.Validation("part number must be a number"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	ack, err := s.uploads.PutChunk(r.Context(), claims.UserID, uploadID, partNumber, r.Body)
	if err != nil {
		s.respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "chunk accepted", ack)
}

type CompleteUploadRequest struct {
	Name      string                   `json:"name"`
	FolderID  *string                  `json:"folder_id"`
	SizeBytes int64                    `json:"size_bytes"`
	Parts     []uploading.CompletePart `json:"parts"`
}

func (s *Server) CompleteUploadHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	uploadID := chi.URLParam(r, "uploadId")

	var req CompleteUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperr.Validation("invalid request body"))
		return
	}

	node, err := s.uploads.Complete(r.Context(), claims.UserID, uploadID, req.FolderID, req.Name, req.SizeBytes, req.Parts)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.publishEvent(r.Context(), claims.UserID, "node_created", node)
	respond(w, http.StatusCreated, "upload completed", node)
}
