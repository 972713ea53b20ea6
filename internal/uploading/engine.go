// Package uploading drives single-shot and resumable chunked file uploads
// against the object store, with quota enforcement on finalization.
package uploading

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"sort"
	"strings"

	"drivebox/internal/apperr"
	"drivebox/internal/database"
	"drivebox/internal/models"
	"drivebox/internal/storage"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
	"go.uber.org/zap"
)

const maxIDRetries = 10

type Repository interface {
	CreateNode(ctx context.Context, arg database.CreateNodeParams) (*models.Node, error)
	NodeExists(ctx context.Context, id string) (bool, error)
	GetNodeByID(ctx context.Context, id string, ownerID int64) (*models.Node, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	EnsureUploadSession(ctx context.Context, uploadID string, storageKey string, ownerID int64) error
	GetUploadSession(ctx context.Context, uploadID string) (*models.UploadSession, error)
	RecordUploadPart(ctx context.Context, uploadID string, partNumber int32, etag string) error
	FinalizeUpload(ctx context.Context, uploadID string, arg database.CreateNodeParams) (*models.Node, error)
	CreateFileWithUsage(ctx context.Context, arg database.CreateNodeParams) (*models.Node, error)
}

// ObjectStore is the slice of the S3 client this engine needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	CreateMultipart(ctx context.Context, key string) (string, error)
	UploadPart(ctx context.Context, uploadID string, key string, partNumber int32, body io.Reader) (string, error)
	CompleteMultipart(ctx context.Context, uploadID string, key string, parts []storage.Part) (string, error)
}

type Engine struct {
	repo       Repository
	store      ObjectStore
	generateID func() string
	log        *zap.Logger
}

func NewEngine(repo Repository, store ObjectStore, log *zap.Logger) (*Engine, error) {
	generateID, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize nanoid generator: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{repo: repo, store: store, generateID: generateID, log: log}, nil
}

func (e *Engine) newNodeID(ctx context.Context) (string, error) {
	for i := 0; i < maxIDRetries; i++ {
		id := e.generateID()
		exists, err := e.repo.NodeExists(ctx, id)
		if err != nil {
			return "", apperr.Database(err)
		}
		if !exists {
			return id, nil
		}
	}
	return "", apperr.Database(fmt.Errorf("failed to generate a unique node id after %d attempts", maxIDRetries))
}

// resolveFolder validates the destination folder when one is given.
func (e *Engine) resolveFolder(ctx context.Context, ownerID int64, folderID *string) error {
	if folderID == nil {
		return nil
	}
	folder, err := e.repo.GetNodeByID(ctx, *folderID, ownerID)
	if err != nil {
		return apperr.Database(err)
	}
	if folder == nil {
		return apperr.NotFound("FOLDER_NOT_FOUND", "destination folder not found")
	}
	if !folder.IsFolder() {
		return apperr.InvalidTarget("destination node is not a folder")
	}
	return nil
}

// checkQuota rejects when adding size would push the owner past their quota.
// A quota of zero means unlimited.
func (e *Engine) checkQuota(ctx context.Context, ownerID int64, size int64) error {
	user, err := e.repo.GetUserByID(ctx, ownerID)
	if err != nil {
		return apperr.Database(err)
	}
	if user == nil {
		return apperr.NotFound("USER_NOT_FOUND", "account not found")
	}
	if user.StorageQuotaBytes > 0 && user.StorageUsedBytes+size > user.StorageQuotaBytes {
		return apperr.QuotaExceeded("storage quota exceeded")
	}
	return nil
}

func storageKey(ownerID int64, name string) string {
	return fmt.Sprintf("%d/%s/%s", ownerID, uuid.NewString(), name)
}

func detectMimeType(name string) string {
	if mt := mime.TypeByExtension(filepath.Ext(name)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

// UploadFile stores the whole body in one shot and registers the node. If the
// process dies between the object write and the node insert, the object is
// orphaned in the bucket; a reconciliation sweep is out of scope here.
func (e *Engine) UploadFile(ctx context.Context, ownerID int64, folderID *string, name string, size int64, body io.Reader) (*models.Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("file name is required")
	}
	if size < 0 {
		return nil, apperr.Validation("file size must not be negative")
	}

	if err := e.resolveFolder(ctx, ownerID, folderID); err != nil {
		return nil, err
	}
	if err := e.checkQuota(ctx, ownerID, size); err != nil {
		return nil, err
	}

	id, err := e.newNodeID(ctx)
	if err != nil {
		return nil, err
	}

	key := storageKey(ownerID, name)
	mimeType := detectMimeType(name)
	if _, err := e.store.Put(ctx, key, body, mimeType); err != nil {
		return nil, apperr.ChunkUploadFailed(err)
	}

	node, err := e.repo.CreateFileWithUsage(ctx, database.CreateNodeParams{
		ID:          id,
		OwnerID:     ownerID,
		ParentID:    folderID,
		Name:        name,
		NodeType:    models.NodeTypeFile,
		SizeBytes:   &size,
		MimeType:    &mimeType,
		StoragePath: &key,
	})
	if err != nil {
		if errors.Is(err, database.ErrTargetFolderNotFound) {
			return nil, apperr.NotFound("FOLDER_NOT_FOUND", "destination folder not found")
		}
		return nil, apperr.Database(err)
	}

	e.log.Info("file uploaded",
		zap.String("node_id", node.ID),
		zap.Int64("owner_id", ownerID),
		zap.Int64("size_bytes", size))
	return node, nil
}

type StartResult struct {
	UploadID   string `json:"upload_id"`
	StorageKey string `json:"storage_key"`
}

// Start opens a multipart upload in the object store and persists the session
// so chunks can arrive across requests and restarts.
func (e *Engine) Start(ctx context.Context, ownerID int64, folderID *string, name string) (*StartResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("file name is required")
	}
	if err := e.resolveFolder(ctx, ownerID, folderID); err != nil {
		return nil, err
	}

	key := storageKey(ownerID, name)
	uploadID, err := e.store.CreateMultipart(ctx, key)
	if err != nil {
		return nil, apperr.ChunkUploadFailed(err)
	}

	if err := e.repo.EnsureUploadSession(ctx, uploadID, key, ownerID); err != nil {
		return nil, apperr.Database(err)
	}

	e.log.Info("chunked upload started", zap.String("upload_id", uploadID), zap.Int64("owner_id", ownerID))
	return &StartResult{UploadID: uploadID, StorageKey: key}, nil
}

type ChunkAck struct {
	UploadID   string `json:"upload_id"`
	PartNumber int32  `json:"part_number"`
	ETag       string `json:"etag"`
}

// PutChunk uploads one part. Parts may arrive in any order and a resent part
// number overwrites the previous acknowledgement.
func (e *Engine) PutChunk(ctx context.Context, ownerID int64, uploadID string, partNumber int32, body io.Reader) (*ChunkAck, error) {
	if partNumber < 1 {
		return nil, apperr.Validation("part number must be at least 1")
	}

	session, err := e.session(ctx, ownerID, uploadID)
	if err != nil {
		return nil, err
	}

	// an empty part would be accepted by the store but can never assemble
	// into anything; reject it before spending a round trip
	first := make([]byte, 1)
	if _, err := io.ReadFull(body, first); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperr.ChunkMissing("chunk body is empty")
		}
		return nil, apperr.ChunkUploadFailed(err)
	}
	body = io.MultiReader(bytes.NewReader(first), body)

	etag, err := e.store.UploadPart(ctx, uploadID, session.StorageKey, partNumber, body)
	if err != nil {
		return nil, apperr.ChunkUploadFailed(err)
	}

	if err := e.repo.RecordUploadPart(ctx, uploadID, partNumber, etag); err != nil {
		return nil, apperr.Database(err)
	}

	return &ChunkAck{UploadID: uploadID, PartNumber: partNumber, ETag: etag}, nil
}

func (e *Engine) session(ctx context.Context, ownerID int64, uploadID string) (*models.UploadSession, error) {
	if uploadID == "" {
		return nil, apperr.Validation("upload id is required")
	}
	session, err := e.repo.GetUploadSession(ctx, uploadID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if session == nil {
		return nil, apperr.NotFound("UPLOAD_NOT_FOUND", "upload session not found")
	}
	if session.OwnerID != ownerID {
		return nil, apperr.AccessDenied("upload session belongs to another account")
	}
	return session, nil
}

type CompletePart struct {
	PartNumber int32  `json:"part_number"`
	ETag       string `json:"etag"`
}

// Complete assembles the object from the caller-declared part list and
// registers the node. The declared list is trusted as-is: the store rejects
// unknown part numbers or mismatched etags, but a caller that omits an
// uploaded part simply gets a shorter object.
func (e *Engine) Complete(ctx context.Context, ownerID int64, uploadID string, folderID *string, name string, size int64, parts []CompletePart) (*models.Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("file name is required")
	}
	if size < 0 {
		return nil, apperr.Validation("file size must not be negative")
	}
	if len(parts) == 0 {
		return nil, apperr.ChunkMissing("at least one part is required to complete an upload")
	}
	seen := make(map[int32]bool, len(parts))
	for _, part := range parts {
		if part.PartNumber < 1 {
			return nil, apperr.Validation("part number must be at least 1")
		}
		if part.ETag == "" {
			return nil, apperr.ChunkMissing(fmt.Sprintf("part %d has no etag", part.PartNumber))
		}
		if seen[part.PartNumber] {
			return nil, apperr.Validation(fmt.Sprintf("part %d is declared twice", part.PartNumber))
		}
		seen[part.PartNumber] = true
	}

	session, err := e.session(ctx, ownerID, uploadID)
	if err != nil {
		return nil, err
	}

	if err := e.resolveFolder(ctx, ownerID, folderID); err != nil {
		return nil, err
	}
	if err := e.checkQuota(ctx, ownerID, size); err != nil {
		return nil, err
	}

	storeParts := make([]storage.Part, len(parts))
	for i, part := range parts {
		storeParts[i] = storage.Part{ETag: part.ETag, PartNumber: part.PartNumber}
	}
	sort.Slice(storeParts, func(i, j int) bool { return storeParts[i].PartNumber < storeParts[j].PartNumber })

	if _, err := e.store.CompleteMultipart(ctx, uploadID, session.StorageKey, storeParts); err != nil {
		return nil, apperr.UploadCompleteFailed(err)
	}

	id, err := e.newNodeID(ctx)
	if err != nil {
		return nil, err
	}

	mimeType := detectMimeType(name)
	node, err := e.repo.FinalizeUpload(ctx, uploadID, database.CreateNodeParams{
		ID:          id,
		OwnerID:     ownerID,
		ParentID:    folderID,
		Name:        name,
		NodeType:    models.NodeTypeFile,
		SizeBytes:   &size,
		MimeType:    &mimeType,
		StoragePath: &session.StorageKey,
	})
	if err != nil {
		if errors.Is(err, database.ErrTargetFolderNotFound) {
			return nil, apperr.NotFound("FOLDER_NOT_FOUND", "destination folder not found")
		}
		return nil, apperr.Database(err)
	}

	e.log.Info("chunked upload completed",
		zap.String("upload_id", uploadID),
		zap.String("node_id", node.ID),
		zap.Int("parts", len(parts)))
	return node, nil
}
