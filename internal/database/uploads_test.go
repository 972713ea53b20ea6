package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUploadSessionLifecycle(t *testing.T) {
	ownerID := createTestUserForNodes(t, "upload_owner")

	err := testStore.EnsureUploadSession(context.Background(), "upload-abc", "1/key/file.bin", ownerID)
	require.NoError(t, err)

	// idempotent on replays
	err = testStore.EnsureUploadSession(context.Background(), "upload-abc", "1/key/file.bin", ownerID)
	require.NoError(t, err)

	session, err := testStore.GetUploadSession(context.Background(), "upload-abc")
	require.NoError(t, err)
	require.NotNil(t, session)
	require.Equal(t, "1/key/file.bin", session.StorageKey)
	require.Equal(t, ownerID, session.OwnerID)

	require.NoError(t, testStore.RecordUploadPart(context.Background(), "upload-abc", 1, "etag-1"))
	require.NoError(t, testStore.RecordUploadPart(context.Background(), "upload-abc", 2, "etag-2"))
	// resending a part overwrites the previous acknowledgement
	require.NoError(t, testStore.RecordUploadPart(context.Background(), "upload-abc", 1, "etag-1b"))

	parts, err := testStore.ListUploadParts(context.Background(), "upload-abc")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	require.Equal(t, int32(1), parts[0].PartNumber)
	require.Equal(t, "etag-1b", parts[0].ETag)
	require.Equal(t, int32(2), parts[1].PartNumber)

	require.NoError(t, testStore.DeleteUploadSession(context.Background(), "upload-abc"))

	gone, err := testStore.GetUploadSession(context.Background(), "upload-abc")
	require.NoError(t, err)
	require.Nil(t, gone)

	parts, err = testStore.ListUploadParts(context.Background(), "upload-abc")
	require.NoError(t, err)
	require.Empty(t, parts, "parts are removed with their session")
}

func TestFinalizeUpload(t *testing.T) {
	ownerID := createTestUserForNodes(t, "finalize_owner")

	key := "2/key/video.mp4"
	require.NoError(t, testStore.EnsureUploadSession(context.Background(), "upload-final", key, ownerID))
	require.NoError(t, testStore.RecordUploadPart(context.Background(), "upload-final", 1, "etag-a"))

	size := int64(4096)
	mime := "video/mp4"
	node, err := testStore.FinalizeUpload(context.Background(), "upload-final", CreateNodeParams{
		ID:          "finalized_node",
		OwnerID:     ownerID,
		Name:        "video.mp4",
		NodeType:    "file",
		SizeBytes:   &size,
		MimeType:    &mime,
		StoragePath: &key,
	})
	require.NoError(t, err)
	require.Equal(t, key, *node.StoragePath)
	require.Equal(t, size, *node.SizeBytes)

	session, err := testStore.GetUploadSession(context.Background(), "upload-final")
	require.NoError(t, err)
	require.Nil(t, session, "finalize consumes the session")

	var used int64
	err = testStore.pool.QueryRow(context.Background(), `SELECT storage_used_bytes FROM users WHERE id = $1`, ownerID).Scan(&used)
	require.NoError(t, err)
	require.Equal(t, size, used)
}
