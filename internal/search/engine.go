// Package search covers the discovery surface: substring search over an
// account's active nodes, recently modified files and the star flag.
package search

import (
	"context"
	"strings"

	"drivebox/internal/apperr"
	"drivebox/internal/models"

	"go.uber.org/zap"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

type Repository interface {
	SearchNodes(ctx context.Context, ownerID int64, term string, nodeType *string) ([]models.Node, error)
	RecentFiles(ctx context.Context, ownerID int64, limit int) ([]models.Node, error)
	GetNodeByID(ctx context.Context, id string, ownerID int64) (*models.Node, error)
	StarNode(ctx context.Context, userID int64, nodeID string) error
	UnstarNode(ctx context.Context, userID int64, nodeID string) (int64, error)
	CountStars(ctx context.Context, userID int64, nodeID string) (int, error)
	ListStarredFiles(ctx context.Context, userID int64) ([]models.Node, error)
}

type Engine struct {
	repo Repository
	log  *zap.Logger
}

func NewEngine(repo Repository, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{repo: repo, log: log}
}

// Search matches names case-insensitively by substring, scoped to the
// requesting account's non-deleted nodes. nodeType optionally narrows to
// "file" or "folder".
func (e *Engine) Search(ctx context.Context, ownerID int64, term string, nodeType *string) ([]models.Node, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, apperr.Validation("search term is required")
	}
	if nodeType != nil && *nodeType != models.NodeTypeFile && *nodeType != models.NodeTypeFolder {
		return nil, apperr.Validation("type must be file or folder")
	}

	nodes, err := e.repo.SearchNodes(ctx, ownerID, term, nodeType)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return nodes, nil
}

func (e *Engine) Recent(ctx context.Context, ownerID int64, limit int) ([]models.Node, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	nodes, err := e.repo.RecentFiles(ctx, ownerID, limit)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return nodes, nil
}

// starTarget checks the node exists, is owned by the caller and is a file.
func (e *Engine) starTarget(ctx context.Context, ownerID int64, nodeID string) error {
	node, err := e.repo.GetNodeByID(ctx, nodeID, ownerID)
	if err != nil {
		return apperr.Database(err)
	}
	if node == nil {
		return apperr.NotFound("FILE_NOT_FOUND", "file not found")
	}
	if !node.IsFile() {
		return apperr.InvalidNodeType("only files can be starred")
	}
	return nil
}

// Star is idempotent: starring an already-starred file succeeds.
func (e *Engine) Star(ctx context.Context, ownerID int64, nodeID string) error {
	if err := e.starTarget(ctx, ownerID, nodeID); err != nil {
		return err
	}
	if err := e.repo.StarNode(ctx, ownerID, nodeID); err != nil {
		return apperr.Database(err)
	}
	return nil
}

// Unstar is idempotent: removing a star that does not exist succeeds.
func (e *Engine) Unstar(ctx context.Context, ownerID int64, nodeID string) error {
	if err := e.starTarget(ctx, ownerID, nodeID); err != nil {
		return err
	}
	if _, err := e.repo.UnstarNode(ctx, ownerID, nodeID); err != nil {
		return apperr.Database(err)
	}
	return nil
}

// IsStarred reports whether the caller has starred the file.
func (e *Engine) IsStarred(ctx context.Context, ownerID int64, nodeID string) (bool, error) {
	if err := e.starTarget(ctx, ownerID, nodeID); err != nil {
		return false, err
	}
	count, err := e.repo.CountStars(ctx, ownerID, nodeID)
	if err != nil {
		return false, apperr.Database(err)
	}
	return count > 0, nil
}

func (e *Engine) Starred(ctx context.Context, ownerID int64) ([]models.Node, error) {
	nodes, err := e.repo.ListStarredFiles(ctx, ownerID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return nodes, nil
}
