package database

import (
	"context"

	"drivebox/internal/models"
)

// PurgeTrashAndReclaim hard-deletes the owner's trash and gives the freed
// bytes back to the quota in one transaction.
func (s *Store) PurgeTrashAndReclaim(ctx context.Context, ownerID int64) ([]string, int64, error) {
	var storageKeys []string
	var totalSizeFreed int64

	txErr := s.ExecTx(ctx, func(q *Queries) error {
		var err error
		storageKeys, totalSizeFreed, err = q.PurgeTrash(ctx, ownerID)
		if err != nil {
			return err
		}

		if totalSizeFreed > 0 {
			return q.UpdateUserStorage(ctx, ownerID, -totalSizeFreed)
		}
		return nil
	})
	if txErr != nil {
		return nil, 0, txErr
	}

	return storageKeys, totalSizeFreed, nil
}

// FinalizeUpload writes the terminal FILE node, consumes the upload session
// and charges the quota in one transaction. The object-store finalize has
// already happened by the time this runs; if this fails, the stored object is
// orphaned (documented inconsistency window, no compensation here).
func (s *Store) FinalizeUpload(ctx context.Context, uploadID string, arg CreateNodeParams) (*models.Node, error) {
	var node *models.Node

	txErr := s.ExecTx(ctx, func(q *Queries) error {
		var err error
		node, err = q.CreateNode(ctx, arg)
		if err != nil {
			return err
		}

		if err := q.DeleteUploadSession(ctx, uploadID); err != nil {
			return err
		}

		if arg.SizeBytes != nil && *arg.SizeBytes > 0 {
			return q.UpdateUserStorage(ctx, arg.OwnerID, *arg.SizeBytes)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	return node, nil
}

// CreateFileWithUsage inserts a file node and charges the quota together.
func (s *Store) CreateFileWithUsage(ctx context.Context, arg CreateNodeParams) (*models.Node, error) {
	var node *models.Node

	txErr := s.ExecTx(ctx, func(q *Queries) error {
		var err error
		node, err = q.CreateNode(ctx, arg)
		if err != nil {
			return err
		}

		if arg.SizeBytes != nil && *arg.SizeBytes > 0 {
			return q.UpdateUserStorage(ctx, arg.OwnerID, *arg.SizeBytes)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	return node, nil
}
