// Package hierarchy enforces the tree invariants of the node store: folder
// creation, rename, move with cycle prevention, reference copies, cascading
// soft-delete and paginated listing.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"drivebox/internal/apperr"
	"drivebox/internal/database"
	"drivebox/internal/models"

	"github.com/jaevor/go-nanoid"
	"go.uber.org/zap"
)

const maxIDRetries = 10

// Repository is the slice of the node store this engine needs. *database.Store
// satisfies it; tests use an in-memory fake.
type Repository interface {
	CreateNode(ctx context.Context, arg database.CreateNodeParams) (*models.Node, error)
	NodeExists(ctx context.Context, id string) (bool, error)
	GetNodeByID(ctx context.Context, id string, ownerID int64) (*models.Node, error)
	GetTrashedNode(ctx context.Context, id string, ownerID int64) (*models.Node, error)
	GetNodesByParentID(ctx context.Context, ownerID int64, parentID *string, limit int, offset int) ([]models.Node, error)
	CountNodesByParentID(ctx context.Context, ownerID int64, parentID *string) (int, error)
	ListNodeRefs(ctx context.Context, ownerID int64) ([]database.NodeRef, error)
	RenameNode(ctx context.Context, id string, ownerID int64, newName string) (bool, error)
	MoveNode(ctx context.Context, id string, ownerID int64, newParentID *string) (bool, error)
	MoveNodeToTrash(ctx context.Context, id string, ownerID int64) (bool, error)
	RestoreNode(ctx context.Context, id string, ownerID int64) (bool, error)
	ListTrash(ctx context.Context, ownerID int64, limit int, offset int) ([]models.Node, error)
	CountTrash(ctx context.Context, ownerID int64) (int, error)
	PurgeTrashAndReclaim(ctx context.Context, ownerID int64) ([]string, int64, error)
}

type Engine struct {
	repo       Repository
	generateID func() string
	log        *zap.Logger
}

func NewEngine(repo Repository, log *zap.Logger) (*Engine, error) {
	generateID, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize nanoid generator: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{repo: repo, generateID: generateID, log: log}, nil
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

// resolveParentFolder checks that parentID, when given, names a non-deleted
// folder owned by ownerID.
func (e *Engine) resolveParentFolder(ctx context.Context, ownerID int64, parentID *string) error {
	if parentID == nil {
		return nil
	}
	parent, err := e.repo.GetNodeByID(ctx, *parentID, ownerID)
	if err != nil {
		return apperr.Database(err)
	}
	if parent == nil {
		return apperr.NotFound("FOLDER_NOT_FOUND", "parent folder not found")
	}
	if !parent.IsFolder() {
		return apperr.InvalidTarget("parent must be a folder")
	}
	return nil
}

func (e *Engine) CreateFolder(ctx context.Context, ownerID int64, name string, parentID *string) (*models.Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("folder name cannot be empty")
	}

	if err := e.resolveParentFolder(ctx, ownerID, parentID); err != nil {
		return nil, err
	}

	id, err := e.newNodeID(ctx)
	if err != nil {
		return nil, err
	}

	node, err := e.repo.CreateNode(ctx, database.CreateNodeParams{
		ID:       id,
		OwnerID:  ownerID,
		ParentID: parentID,
		Name:     name,
		NodeType: models.NodeTypeFolder,
	})
	if err != nil {
		return nil, apperr.Database(err)
	}

	e.log.Info("folder created", zap.String("node_id", node.ID), zap.Int64("owner_id", ownerID))
	return node, nil
}

func (e *Engine) Rename(ctx context.Context, actorID int64, nodeID string, newName string) (*models.Node, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, apperr.Validation("name cannot be empty")
	}

	ok, err := e.repo.RenameNode(ctx, nodeID, actorID, newName)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if !ok {
		return nil, apperr.NotFound("NODE_NOT_FOUND", "node not found")
	}

	node, err := e.repo.GetNodeByID(ctx, nodeID, actorID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return node, nil
}

// Move re-parents a node. Folder moves are rejected when the target is the
// folder itself or any of its descendants; the check expands the descendant
// set over all of the actor's node refs, which is O(owner's node count) per
// move and fine at personal-drive scale.
func (e *Engine) Move(ctx context.Context, actorID int64, nodeID string, targetParentID *string) (*models.Node, error) {
	node, err := e.repo.GetNodeByID(ctx, nodeID, actorID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if node == nil {
		return nil, apperr.NotFound("NODE_NOT_FOUND", "node not found")
	}

	if targetParentID != nil {
		target, err := e.repo.GetNodeByID(ctx, *targetParentID, actorID)
		if err != nil {
			return nil, apperr.Database(err)
		}
		if target == nil {
			return nil, apperr.NotFound("FOLDER_NOT_FOUND", "target folder not found")
		}
		if !target.IsFolder() {
			return nil, apperr.InvalidTarget("move target must be a folder")
		}

		if node.IsFolder() {
			if nodeID == *targetParentID {
				return nil, apperr.InvalidMove("cannot move a folder into itself")
			}
			inside, err := e.isDescendant(ctx, actorID, nodeID, *targetParentID)
			if err != nil {
				return nil, err
			}
			if inside {
				return nil, apperr.InvalidMove("cannot move a folder into its own subtree")
			}
		}
	}

	ok, err := e.repo.MoveNode(ctx, nodeID, actorID, targetParentID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if !ok {
		return nil, apperr.NotFound("NODE_NOT_FOUND", "node not found")
	}

	moved, err := e.repo.GetNodeByID(ctx, nodeID, actorID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return moved, nil
}

// isDescendant reports whether candidateID lies in the subtree rooted at
// rootID, by repeated expansion of the descendant set.
func (e *Engine) isDescendant(ctx context.Context, ownerID int64, rootID string, candidateID string) (bool, error) {
	refs, err := e.repo.ListNodeRefs(ctx, ownerID)
	if err != nil {
		return false, apperr.Database(err)
	}

	descendants := map[string]bool{rootID: true}
	for changed := true; changed; {
		changed = false
		for _, ref := range refs {
			if ref.ParentID != nil && descendants[*ref.ParentID] && !descendants[ref.ID] {
				descendants[ref.ID] = true
				changed = true
			}
		}
	}

	return descendants[candidateID], nil
}

// Copy creates a reference copy of a file: a new node sharing the source's
// storage path. No bytes are duplicated and no reference counting exists, so
// purging one copy must never delete the shared object.
func (e *Engine) Copy(ctx context.Context, actorID int64, nodeID string, targetParentID *string) (*models.Node, error) {
	node, err := e.repo.GetNodeByID(ctx, nodeID, actorID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if node == nil {
		return nil, apperr.NotFound("NODE_NOT_FOUND", "node not found")
	}
	if !node.IsFile() {
		return nil, apperr.InvalidNodeType("only files can be copied")
	}

	parentID := node.ParentID
	if targetParentID != nil {
		if err := e.resolveParentFolder(ctx, actorID, targetParentID); err != nil {
			return nil, err
		}
		parentID = targetParentID
	}

	id, err := e.newNodeID(ctx)
	if err != nil {
		return nil, err
	}

	copied, err := e.repo.CreateNode(ctx, database.CreateNodeParams{
		ID:          id,
		OwnerID:     actorID,
		ParentID:    parentID,
		Name:        node.Name + "_copy",
		NodeType:    models.NodeTypeFile,
		SizeBytes:   node.SizeBytes,
		MimeType:    node.MimeType,
		StoragePath: node.StoragePath,
	})
	if err != nil {
		return nil, apperr.Database(err)
	}

	e.log.Info("file copied", zap.String("source_id", nodeID), zap.String("copy_id", copied.ID))
	return copied, nil
}

// SoftDelete trashes the node and, for folders, every descendant existing and
// not yet deleted at call time. A node created under the folder afterwards
// escapes the cascade; that is the documented point-in-time semantics, not a
// bug to fix here.
func (e *Engine) SoftDelete(ctx context.Context, actorID int64, nodeID string) error {
	node, err := e.repo.GetNodeByID(ctx, nodeID, actorID)
	if err != nil {
		return apperr.Database(err)
	}
	if node == nil {
		trashed, err := e.repo.GetTrashedNode(ctx, nodeID, actorID)
		if err != nil {
			return apperr.Database(err)
		}
		if trashed != nil {
			return apperr.AlreadyDeleted("node is already in the trash")
		}
		return apperr.NotFound("NODE_NOT_FOUND", "node not found")
	}

	ok, err := e.repo.MoveNodeToTrash(ctx, nodeID, actorID)
	if err != nil {
		return apperr.Database(err)
	}
	if !ok {
		return apperr.NotFound("NODE_NOT_FOUND", "node not found")
	}

	e.log.Info("node trashed", zap.String("node_id", nodeID), zap.Int64("owner_id", actorID))
	return nil
}

// Restore brings a single trashed node back to its pre-delete parent. It does
// not recurse into descendants trashed by the same cascade.
func (e *Engine) Restore(ctx context.Context, actorID int64, nodeID string) (*models.Node, error) {
	ok, err := e.repo.RestoreNode(ctx, nodeID, actorID)
	if err != nil {
		if errors.Is(err, database.ErrTargetFolderNotFound) {
			return nil, apperr.NotFound("FOLDER_NOT_FOUND", "original parent folder no longer exists")
		}
		return nil, apperr.Database(err)
	}
	if !ok {
		return nil, apperr.NotFound("NODE_NOT_FOUND", "node not found in trash")
	}

	node, err := e.repo.GetNodeByID(ctx, nodeID, actorID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return node, nil
}

type Page struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

func newPage(total, page, limit int) Page {
	totalPages := (total + limit - 1) / limit
	return Page{Total: total, Page: page, Limit: limit, TotalPages: totalPages}
}

func clampPagination(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

// List returns the non-deleted direct children of parentID (nil for the
// root), folders before files, then by name. A page past the end yields an
// empty list, not an error.
func (e *Engine) List(ctx context.Context, ownerID int64, parentID *string, page, limit int) ([]models.Node, Page, error) {
	page, limit = clampPagination(page, limit)

	if err := e.resolveParentFolder(ctx, ownerID, parentID); err != nil {
		return nil, Page{}, err
	}

	total, err := e.repo.CountNodesByParentID(ctx, ownerID, parentID)
	if err != nil {
		return nil, Page{}, apperr.Database(err)
	}

	nodes, err := e.repo.GetNodesByParentID(ctx, ownerID, parentID, limit, (page-1)*limit)
	if err != nil {
		return nil, Page{}, apperr.Database(err)
	}

	return nodes, newPage(total, page, limit), nil
}

func (e *Engine) ListTrash(ctx context.Context, ownerID int64, page, limit int) ([]models.Node, Page, error) {
	page, limit = clampPagination(page, limit)

	total, err := e.repo.CountTrash(ctx, ownerID)
	if err != nil {
		return nil, Page{}, apperr.Database(err)
	}

	nodes, err := e.repo.ListTrash(ctx, ownerID, limit, (page-1)*limit)
	if err != nil {
		return nil, Page{}, apperr.Database(err)
	}

	return nodes, newPage(total, page, limit), nil
}

// Purge hard-deletes everything in the owner's trash and returns the storage
// keys of removed file nodes. Keys may still be referenced by copies, so the
// caller must not assume they are safe to delete from the object store.
func (e *Engine) Purge(ctx context.Context, ownerID int64) ([]string, int64, error) {
	keys, freed, err := e.repo.PurgeTrashAndReclaim(ctx, ownerID)
	if err != nil {
		return nil, 0, apperr.Database(err)
	}

	e.log.Info("trash purged", zap.Int64("owner_id", ownerID), zap.Int64("bytes_freed", freed))
	return keys, freed, nil
}
