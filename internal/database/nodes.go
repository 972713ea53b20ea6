package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"drivebox/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrTargetFolderNotFound = errors.New("target folder does not exist")

const nodeColumns = `id, owner_id, parent_id, name, node_type, size_bytes, mime_type, storage_path, created_at, modified_at, deleted_at, original_parent_id`

const qualifiedNodeColumns = `n.id, n.owner_id, n.parent_id, n.name, n.node_type, n.size_bytes, n.mime_type, n.storage_path, n.created_at, n.modified_at, n.deleted_at, n.original_parent_id`

func scanNode(row pgx.Row) (*models.Node, error) {
	var node models.Node
	err := row.Scan(
		&node.ID,
		&node.OwnerID,
		&node.ParentID,
		&node.Name,
		&node.NodeType,
		&node.SizeBytes,
		&node.MimeType,
		&node.StoragePath,
		&node.CreatedAt,
		&node.ModifiedAt,
		&node.DeletedAt,
		&node.OriginalParentID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &node, nil
}

func collectNodes(rows pgx.Rows) ([]models.Node, error) {
	defer rows.Close()

	var nodes []models.Node
	for rows.Next() {
		var node models.Node
		err := rows.Scan(
			&node.ID,
			&node.OwnerID,
			&node.ParentID,
			&node.Name,
			&node.NodeType,
			&node.SizeBytes,
			&node.MimeType,
			&node.StoragePath,
			&node.CreatedAt,
			&node.ModifiedAt,
			&node.DeletedAt,
			&node.OriginalParentID,
		)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if nodes == nil {
		return []models.Node{}, nil
	}

	return nodes, nil
}

type CreateNodeParams struct {
	ID          string
	OwnerID     int64
	ParentID    *string
	Name        string
	NodeType    string
	SizeBytes   *int64
	MimeType    *string
	StoragePath *string
}

func (q *Queries) CreateNode(ctx context.Context, arg CreateNodeParams) (*models.Node, error) {
	query := `
		INSERT INTO nodes (id, owner_id, parent_id, name, node_type, size_bytes, mime_type, storage_path, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + nodeColumns

	now := time.Now()
	row := q.db.QueryRow(ctx, query,
		arg.ID,
		arg.OwnerID,
		arg.ParentID,
		arg.Name,
		arg.NodeType,
		arg.SizeBytes,
		arg.MimeType,
		arg.StoragePath,
		now,
		now,
	)

	node, err := scanNode(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrTargetFolderNotFound
		}
		return nil, err
	}
	return node, nil
}

func (q *Queries) NodeExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM nodes WHERE id = $1)"
	err := q.db.QueryRow(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// GetNodeByID returns a non-deleted node owned by ownerID, or nil.
func (q *Queries) GetNodeByID(ctx context.Context, id string, ownerID int64) (*models.Node, error) {
	query := `
		SELECT ` + nodeColumns + `
		FROM nodes
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL
	`
	return scanNode(q.db.QueryRow(ctx, query, id, ownerID))
}

// GetActiveNode returns a non-deleted node regardless of owner, or nil.
// Used by the public-link resolver, where the requester is anonymous.
func (q *Queries) GetActiveNode(ctx context.Context, id string) (*models.Node, error) {
	query := `
		SELECT ` + nodeColumns + `
		FROM nodes
		WHERE id = $1 AND deleted_at IS NULL
	`
	return scanNode(q.db.QueryRow(ctx, query, id))
}

// GetTrashedNode returns a soft-deleted node owned by ownerID, or nil.
func (q *Queries) GetTrashedNode(ctx context.Context, id string, ownerID int64) (*models.Node, error) {
	query := `
		SELECT ` + nodeColumns + `
		FROM nodes
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NOT NULL
	`
	return scanNode(q.db.QueryRow(ctx, query, id, ownerID))
}

func (q *Queries) GetNodesByParentID(ctx context.Context, ownerID int64, parentID *string, limit int, offset int) ([]models.Node, error) {
	var rows pgx.Rows
	var err error

	if parentID == nil {
		query := `SELECT ` + nodeColumns + `
				 FROM nodes
				 WHERE owner_id = $1 AND parent_id IS NULL AND deleted_at IS NULL
				 ORDER BY node_type DESC, name
				 LIMIT $2 OFFSET $3`
		rows, err = q.db.Query(ctx, query, ownerID, limit, offset)
	} else {
		query := `SELECT ` + nodeColumns + `
				 FROM nodes
				 WHERE owner_id = $1 AND parent_id = $2 AND deleted_at IS NULL
				 ORDER BY node_type DESC, name
				 LIMIT $3 OFFSET $4`
		rows, err = q.db.Query(ctx, query, ownerID, *parentID, limit, offset)
	}
	if err != nil {
		return nil, err
	}

	return collectNodes(rows)
}

func (q *Queries) CountNodesByParentID(ctx context.Context, ownerID int64, parentID *string) (int, error) {
	var total int
	var err error
	if parentID == nil {
		query := `SELECT count(*) FROM nodes WHERE owner_id = $1 AND parent_id IS NULL AND deleted_at IS NULL`
		err = q.db.QueryRow(ctx, query, ownerID).Scan(&total)
	} else {
		query := `SELECT count(*) FROM nodes WHERE owner_id = $1 AND parent_id = $2 AND deleted_at IS NULL`
		err = q.db.QueryRow(ctx, query, ownerID, *parentID).Scan(&total)
	}
	return total, err
}

// NodeRef is the minimal projection the move cycle check expands over.
type NodeRef struct {
	ID       string
	ParentID *string
}

func (q *Queries) ListNodeRefs(ctx context.Context, ownerID int64) ([]NodeRef, error) {
	query := `SELECT id, parent_id FROM nodes WHERE owner_id = $1 AND deleted_at IS NULL`
	rows, err := q.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []NodeRef
	for rows.Next() {
		var ref NodeRef
		if err := rows.Scan(&ref.ID, &ref.ParentID); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return refs, nil
}

func (q *Queries) RenameNode(ctx context.Context, id string, ownerID int64, newName string) (bool, error) {
	query := `
		UPDATE nodes
		SET name = $1, modified_at = $2
		WHERE id = $3 AND owner_id = $4 AND deleted_at IS NULL
	`
	now := time.Now()
	res, err := q.db.Exec(ctx, query, newName, now, id, ownerID)
	if err != nil {
		return false, err
	}

	return res.RowsAffected() > 0, nil
}

func (q *Queries) MoveNode(ctx context.Context, id string, ownerID int64, newParentID *string) (bool, error) {
	query := `
		UPDATE nodes
		SET parent_id = $1, modified_at = $2
		WHERE id = $3 AND owner_id = $4 AND deleted_at IS NULL
	`
	now := time.Now()
	res, err := q.db.Exec(ctx, query, newParentID, now, id, ownerID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return false, ErrTargetFolderNotFound
		}
		return false, err
	}

	return res.RowsAffected() > 0, nil
}

// MoveNodeToTrash stamps the node and every currently existing, not-yet-deleted
// descendant with the same deleted_at in one statement. Nodes created under an
// already-trashed folder afterwards are not caught retroactively.
func (q *Queries) MoveNodeToTrash(ctx context.Context, id string, ownerID int64) (bool, error) {
	query := `
		WITH RECURSIVE nodes_to_delete AS (
			SELECT n.id
			FROM nodes n
			WHERE n.id = $1 AND n.owner_id = $2 AND n.deleted_at IS NULL

			UNION ALL

			SELECT n.id
			FROM nodes n
			INNER JOIN nodes_to_delete ntd ON n.parent_id = ntd.id
			WHERE n.deleted_at IS NULL
		)
		UPDATE nodes
		SET
			deleted_at = $3,
			original_parent_id = parent_id,
			parent_id = NULL
		WHERE id IN (SELECT id FROM nodes_to_delete)
	`

	now := time.Now()
	res, err := q.db.Exec(ctx, query, id, ownerID, now)
	if err != nil {
		return false, err
	}

	return res.RowsAffected() > 0, nil
}

// RestoreNode puts a single trashed node back under its original parent.
// Descendants trashed by the same cascade stay in the trash; restoring a
// whole subtree is not supported.
func (q *Queries) RestoreNode(ctx context.Context, id string, ownerID int64) (bool, error) {
	query := `
		UPDATE nodes
		SET
			deleted_at = NULL,
			parent_id = original_parent_id,
			original_parent_id = NULL
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NOT NULL
	`
	res, err := q.db.Exec(ctx, query, id, ownerID)
	if err != nil {
		// the original parent may have been purged while the node sat in
		// the trash
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return false, ErrTargetFolderNotFound
		}
		return false, err
	}

	return res.RowsAffected() > 0, nil
}

func (q *Queries) ListTrash(ctx context.Context, ownerID int64, limit int, offset int) ([]models.Node, error) {
	query := `
		SELECT ` + nodeColumns + `
		FROM nodes
		WHERE owner_id = $1 AND deleted_at IS NOT NULL
		ORDER BY deleted_at DESC LIMIT $2 OFFSET $3
	`
	rows, err := q.db.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}

	return collectNodes(rows)
}

func (q *Queries) CountTrash(ctx context.Context, ownerID int64) (int, error) {
	var total int
	query := `SELECT count(*) FROM nodes WHERE owner_id = $1 AND deleted_at IS NOT NULL`
	err := q.db.QueryRow(ctx, query, ownerID).Scan(&total)
	return total, err
}

// PurgeTrash hard-deletes every trashed node of the owner and reports the
// storage keys of removed files plus the bytes freed. The storage objects
// themselves are the caller's problem; a key may be shared by reference
// copies, so deleting objects blindly is not safe here.
func (q *Queries) PurgeTrash(ctx context.Context, ownerID int64) ([]string, int64, error) {
	query := `
		DELETE FROM nodes
		WHERE owner_id = $1 AND deleted_at IS NOT NULL
		RETURNING node_type, size_bytes, storage_path
	`

	rows, err := q.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var storageKeys []string
	var totalSizeFreed int64
	for rows.Next() {
		var nodeType string
		var sizeBytes *int64
		var storagePath *string
		if err := rows.Scan(&nodeType, &sizeBytes, &storagePath); err != nil {
			return nil, 0, err
		}
		if nodeType == models.NodeTypeFile {
			if storagePath != nil {
				storageKeys = append(storageKeys, *storagePath)
			}
			if sizeBytes != nil {
				totalSizeFreed += *sizeBytes
			}
		}
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return storageKeys, totalSizeFreed, nil
}

func (q *Queries) UpdateUserStorage(ctx context.Context, userID int64, bytesChange int64) error {
	query := `
		UPDATE users
		SET storage_used_bytes = storage_used_bytes + $1
		WHERE id = $2
	`
	res, err := q.db.Exec(ctx, query, bytesChange, userID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("user %d not found", userID)
	}
	return nil
}
