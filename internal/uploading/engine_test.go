package uploading

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"drivebox/internal/apperr"
	"drivebox/internal/database"
	"drivebox/internal/models"
	"drivebox/internal/storage"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	nodes    map[string]*models.Node
	users    map[int64]*models.User
	sessions map[string]*models.UploadSession
	parts    map[string]map[int32]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		nodes:    make(map[string]*models.Node),
		users:    make(map[int64]*models.User),
		sessions: make(map[string]*models.UploadSession),
		parts:    make(map[string]map[int32]string),
	}
}

func (f *fakeRepo) CreateNode(_ context.Context, arg database.CreateNodeParams) (*models.Node, error) {
	return f.insertNode(arg)
}

func (f *fakeRepo) insertNode(arg database.CreateNodeParams) (*models.Node, error) {
	if arg.ParentID != nil {
		if _, ok := f.nodes[*arg.ParentID]; !ok {
			return nil, database.ErrTargetFolderNotFound
		}
	}
	node := &models.Node{
		ID: arg.ID, OwnerID: arg.OwnerID, ParentID: arg.ParentID, Name: arg.Name,
		NodeType: arg.NodeType, SizeBytes: arg.SizeBytes, MimeType: arg.MimeType,
		StoragePath: arg.StoragePath, CreatedAt: time.Now(), ModifiedAt: time.Now(),
	}
	f.nodes[node.ID] = node
	return node, nil
}

func (f *fakeRepo) NodeExists(_ context.Context, id string) (bool, error) {
	_, ok := f.nodes[id]
	return ok, nil
}

func (f *fakeRepo) GetNodeByID(_ context.Context, id string, ownerID int64) (*models.Node, error) {
	node, ok := f.nodes[id]
	if !ok || node.OwnerID != ownerID || node.DeletedAt != nil {
		return nil, nil
	}
	copied := *node
	return &copied, nil
}

func (f *fakeRepo) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (f *fakeRepo) EnsureUploadSession(_ context.Context, uploadID, storageKey string, ownerID int64) error {
	if _, ok := f.sessions[uploadID]; ok {
		return nil
	}
	f.sessions[uploadID] = &models.UploadSession{
		UploadID: uploadID, StorageKey: storageKey, OwnerID: ownerID, CreatedAt: time.Now(),
	}
	return nil
}

func (f *fakeRepo) GetUploadSession(_ context.Context, uploadID string) (*models.UploadSession, error) {
	session, ok := f.sessions[uploadID]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (f *fakeRepo) RecordUploadPart(_ context.Context, uploadID string, partNumber int32, etag string) error {
	if f.parts[uploadID] == nil {
		f.parts[uploadID] = make(map[int32]string)
	}
	f.parts[uploadID][partNumber] = etag
	return nil
}

func (f *fakeRepo) FinalizeUpload(_ context.Context, uploadID string, arg database.CreateNodeParams) (*models.Node, error) {
	node, err := f.insertNode(arg)
	if err != nil {
		return nil, err
	}
	delete(f.sessions, uploadID)
	delete(f.parts, uploadID)
	if user, ok := f.users[arg.OwnerID]; ok && arg.SizeBytes != nil {
		user.StorageUsedBytes += *arg.SizeBytes
	}
	return node, nil
}

func (f *fakeRepo) CreateFileWithUsage(_ context.Context, arg database.CreateNodeParams) (*models.Node, error) {
	node, err := f.insertNode(arg)
	if err != nil {
		return nil, err
	}
	if user, ok := f.users[arg.OwnerID]; ok && arg.SizeBytes != nil {
		user.StorageUsedBytes += *arg.SizeBytes
	}
	return node, nil
}

// fakeStore records every call and can be told to fail per operation.
type fakeStore struct {
	objects      map[string][]byte
	multiparts   map[string]string // uploadID -> key
	partBodies   map[string]map[int32][]byte
	nextUpload   int
	failPut      bool
	failPart     bool
	failComplete bool
	completed    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:    make(map[string][]byte),
		multiparts: make(map[string]string),
		partBodies: make(map[string]map[int32][]byte),
	}
}

func (s *fakeStore) Put(_ context.Context, key string, body io.Reader, _ string) (string, error) {
	if s.failPut {
		return "", errors.New("put refused")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.objects[key] = data
	return "etag-" + key, nil
}

func (s *fakeStore) CreateMultipart(_ context.Context, key string) (string, error) {
	s.nextUpload++
	uploadID := fmt.Sprintf("mp-%d", s.nextUpload)
	s.multiparts[uploadID] = key
	return uploadID, nil
}

func (s *fakeStore) UploadPart(_ context.Context, uploadID, _ string, partNumber int32, body io.Reader) (string, error) {
	if s.failPart {
		return "", errors.New("part refused")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if s.partBodies[uploadID] == nil {
		s.partBodies[uploadID] = make(map[int32][]byte)
	}
	s.partBodies[uploadID][partNumber] = data
	return fmt.Sprintf("etag-%s-%d", uploadID, partNumber), nil
}

func (s *fakeStore) CompleteMultipart(_ context.Context, uploadID, key string, parts []storage.Part) (string, error) {
	if s.failComplete {
		return "", errors.New("assembly refused")
	}
	var assembled bytes.Buffer
	for i, part := range parts {
		if i > 0 && parts[i-1].PartNumber >= part.PartNumber {
			return "", errors.New("parts out of order")
		}
		body, ok := s.partBodies[uploadID][part.PartNumber]
		if !ok {
			return "", fmt.Errorf("unknown part %d", part.PartNumber)
		}
		assembled.Write(body)
	}
	s.objects[key] = assembled.Bytes()
	s.completed = append(s.completed, uploadID)
	return "etag-final", nil
}

const ownerID = int64(1)

func newTestEngine(t *testing.T) (*Engine, *fakeRepo, *fakeStore) {
	t.Helper()
	repo := newFakeRepo()
	repo.users[ownerID] = &models.User{ID: ownerID, Username: "alice"}
	store := newFakeStore()
	engine, err := NewEngine(repo, store, nil)
	require.NoError(t, err)
	return engine, repo, store
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
}

func addFolder(repo *fakeRepo, id string, owner int64) {
	repo.nodes[id] = &models.Node{ID: id, OwnerID: owner, Name: id, NodeType: models.NodeTypeFolder}
}

func TestUploadFile(t *testing.T) {
	engine, repo, store := newTestEngine(t)
	ctx := context.Background()
	addFolder(repo, "folder1", ownerID)
	folderID := "folder1"

	body := strings.NewReader("hello world")
	node, err := engine.UploadFile(ctx, ownerID, &folderID, "notes.txt", 11, body)
	require.NoError(t, err)
	require.Equal(t, models.NodeTypeFile, node.NodeType)
	require.Equal(t, "folder1", *node.ParentID)
	require.Equal(t, int64(11), *node.SizeBytes)
	require.Contains(t, *node.MimeType, "text/plain")
	require.Equal(t, []byte("hello world"), store.objects[*node.StoragePath])
	require.Equal(t, int64(11), repo.users[ownerID].StorageUsedBytes)
}

func TestUploadFileValidation(t *testing.T) {
	engine, _, store := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.UploadFile(ctx, ownerID, nil, "  ", 1, strings.NewReader("x"))
	requireCode(t, err, "VALIDATION_ERROR")

	_, err = engine.UploadFile(ctx, ownerID, nil, "a.txt", -1, strings.NewReader("x"))
	requireCode(t, err, "VALIDATION_ERROR")

	missing := "ghost"
	_, err = engine.UploadFile(ctx, ownerID, &missing, "a.txt", 1, strings.NewReader("x"))
	requireCode(t, err, "FOLDER_NOT_FOUND")

	store.failPut = true
	_, err = engine.UploadFile(ctx, ownerID, nil, "a.txt", 1, strings.NewReader("x"))
	requireCode(t, err, "CHUNK_UPLOAD_FAILED")
}

func TestUploadFileQuota(t *testing.T) {
	engine, repo, _ := newTestEngine(t)
	ctx := context.Background()
	repo.users[ownerID].StorageQuotaBytes = 100
	repo.users[ownerID].StorageUsedBytes = 95

	_, err := engine.UploadFile(ctx, ownerID, nil, "big.bin", 10, strings.NewReader("0123456789"))
	requireCode(t, err, "QUOTA_EXCEEDED")

	// exactly filling the quota is allowed
	_, err = engine.UploadFile(ctx, ownerID, nil, "fits.bin", 5, strings.NewReader("01234"))
	require.NoError(t, err)
	require.Equal(t, int64(100), repo.users[ownerID].StorageUsedBytes)
}

func TestChunkedUploadLifecycle(t *testing.T) {
	engine, repo, store := newTestEngine(t)
	ctx := context.Background()

	started, err := engine.Start(ctx, ownerID, nil, "video.mp4")
	require.NoError(t, err)
	require.NotEmpty(t, started.UploadID)
	require.NotEmpty(t, started.StorageKey)

	ack1, err := engine.PutChunk(ctx, ownerID, started.UploadID, 1, strings.NewReader("aaaa"))
	require.NoError(t, err)
	ack2, err := engine.PutChunk(ctx, ownerID, started.UploadID, 2, strings.NewReader("bb"))
	require.NoError(t, err)
	require.NotEqual(t, ack1.ETag, ack2.ETag)

	node, err := engine.Complete(ctx, ownerID, started.UploadID, nil, "video.mp4", 6, []CompletePart{
		// declared out of order; assembly still runs ascending
		{PartNumber: 2, ETag: ack2.ETag},
		{PartNumber: 1, ETag: ack1.ETag},
	})
	require.NoError(t, err)
	require.Equal(t, started.StorageKey, *node.StoragePath)
	require.Equal(t, int64(6), *node.SizeBytes)
	require.Equal(t, "video/mp4", *node.MimeType)
	require.Equal(t, []byte("aaaabb"), store.objects[started.StorageKey])

	// the session is consumed
	_, err = engine.Complete(ctx, ownerID, started.UploadID, nil, "video.mp4", 6, []CompletePart{
		{PartNumber: 1, ETag: ack1.ETag},
	})
	requireCode(t, err, "UPLOAD_NOT_FOUND")
	require.Empty(t, repo.sessions)
}

func TestPutChunkValidation(t *testing.T) {
	engine, _, store := newTestEngine(t)
	ctx := context.Background()

	started, err := engine.Start(ctx, ownerID, nil, "data.bin")
	require.NoError(t, err)

	_, err = engine.PutChunk(ctx, ownerID, started.UploadID, 0, strings.NewReader("x"))
	requireCode(t, err, "VALIDATION_ERROR")

	_, err = engine.PutChunk(ctx, ownerID, "", 1, strings.NewReader("x"))
	requireCode(t, err, "VALIDATION_ERROR")

	_, err = engine.PutChunk(ctx, ownerID, "mp-unknown", 1, strings.NewReader("x"))
	requireCode(t, err, "UPLOAD_NOT_FOUND")

	// another account cannot append to the session
	_, err = engine.PutChunk(ctx, int64(99), started.UploadID, 1, strings.NewReader("x"))
	requireCode(t, err, "ACCESS_DENIED")

	// a zero-length payload is rejected before reaching the store
	_, err = engine.PutChunk(ctx, ownerID, started.UploadID, 1, strings.NewReader(""))
	requireCode(t, err, "CHUNK_MISSING")
	require.Empty(t, store.partBodies)

	store.failPart = true
	_, err = engine.PutChunk(ctx, ownerID, started.UploadID, 1, strings.NewReader("x"))
	requireCode(t, err, "CHUNK_UPLOAD_FAILED")
}

func TestPutChunkResendOverwrites(t *testing.T) {
	engine, repo, _ := newTestEngine(t)
	ctx := context.Background()

	started, err := engine.Start(ctx, ownerID, nil, "data.bin")
	require.NoError(t, err)

	_, err = engine.PutChunk(ctx, ownerID, started.UploadID, 1, strings.NewReader("first"))
	require.NoError(t, err)
	_, err = engine.PutChunk(ctx, ownerID, started.UploadID, 1, strings.NewReader("second"))
	require.NoError(t, err)

	require.Len(t, repo.parts[started.UploadID], 1)
}

func TestCompletePartListValidation(t *testing.T) {
	engine, _, store := newTestEngine(t)
	ctx := context.Background()

	started, err := engine.Start(ctx, ownerID, nil, "data.bin")
	require.NoError(t, err)
	ack, err := engine.PutChunk(ctx, ownerID, started.UploadID, 1, strings.NewReader("x"))
	require.NoError(t, err)

	_, err = engine.Complete(ctx, ownerID, started.UploadID, nil, "data.bin", 1, nil)
	requireCode(t, err, "CHUNK_MISSING")

	_, err = engine.Complete(ctx, ownerID, started.UploadID, nil, "data.bin", 1, []CompletePart{
		{PartNumber: 1, ETag: ""},
	})
	requireCode(t, err, "CHUNK_MISSING")

	_, err = engine.Complete(ctx, ownerID, started.UploadID, nil, "data.bin", 1, []CompletePart{
		{PartNumber: 1, ETag: ack.ETag},
		{PartNumber: 1, ETag: ack.ETag},
	})
	requireCode(t, err, "VALIDATION_ERROR")

	_, err = engine.Complete(ctx, ownerID, started.UploadID, nil, "data.bin", 1, []CompletePart{
		{PartNumber: 0, ETag: ack.ETag},
	})
	requireCode(t, err, "VALIDATION_ERROR")

	store.failComplete = true
	_, err = engine.Complete(ctx, ownerID, started.UploadID, nil, "data.bin", 1, []CompletePart{
		{PartNumber: 1, ETag: ack.ETag},
	})
	requireCode(t, err, "UPLOAD_COMPLETE_FAILED")
}

func TestCompleteQuota(t *testing.T) {
	engine, repo, _ := newTestEngine(t)
	ctx := context.Background()
	repo.users[ownerID].StorageQuotaBytes = 4

	started, err := engine.Start(ctx, ownerID, nil, "data.bin")
	require.NoError(t, err)
	ack, err := engine.PutChunk(ctx, ownerID, started.UploadID, 1, strings.NewReader("xxxxx"))
	require.NoError(t, err)

	_, err = engine.Complete(ctx, ownerID, started.UploadID, nil, "data.bin", 5, []CompletePart{
		{PartNumber: 1, ETag: ack.ETag},
	})
	requireCode(t, err, "QUOTA_EXCEEDED")

	// the session survives a quota rejection and can complete after cleanup
	repo.users[ownerID].StorageQuotaBytes = 0
	_, err = engine.Complete(ctx, ownerID, started.UploadID, nil, "data.bin", 5, []CompletePart{
		{PartNumber: 1, ETag: ack.ETag},
	})
	require.NoError(t, err)
}

func TestDetectMimeType(t *testing.T) {
	require.Contains(t, detectMimeType("report.pdf"), "application/pdf")
	require.Equal(t, "application/octet-stream", detectMimeType("noext"))
}
