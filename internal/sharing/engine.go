// Package sharing manages per-node permission grants, public links and
// signed download URLs.
//
// Grants are records: they are stored, listed and drive the shared-with-me
// views, but every mutating operation here still enforces strict ownership.
// Consulting grant levels for authorization is a deliberate non-feature of
// this core.
package sharing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"drivebox/internal/apperr"
	"drivebox/internal/database"
	"drivebox/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultSignedURLTTL = time.Hour

type Repository interface {
	GetActiveNode(ctx context.Context, id string) (*models.Node, error)
	CreateGrant(ctx context.Context, arg database.CreateGrantParams) (*models.Grant, error)
	ListGrantsByNode(ctx context.Context, nodeID string) ([]models.Grant, error)
	GetGrantByID(ctx context.Context, grantID uuid.UUID) (*models.Grant, error)
	UpdateGrantLevel(ctx context.Context, grantID uuid.UUID, level string) (bool, error)
	DeleteGrant(ctx context.Context, grantID uuid.UUID) (bool, error)
	GetPublicLinkByNode(ctx context.Context, nodeID string) (*models.PublicLink, error)
	CreatePublicLink(ctx context.Context, arg database.CreatePublicLinkParams) (*models.PublicLink, error)
	GetPublicLinkByToken(ctx context.Context, token string) (*models.PublicLink, error)
}

// Signer issues presigned download URLs.
type Signer interface {
	Sign(ctx context.Context, key string, expires time.Duration) (string, error)
}

// ContentStore is the slice of the object store this engine needs: signed
// URLs for offloaded downloads, and raw streams for proxied ones.
type ContentStore interface {
	Signer
	GetStream(ctx context.Context, key string) (io.ReadCloser, error)
}

type Engine struct {
	repo  Repository
	store ContentStore
	log   *zap.Logger
}

func NewEngine(repo Repository, store ContentStore, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{repo: repo, store: store, log: log}
}

// ownedNode loads the node and enforces strict ownership: a missing or
// trashed node is NODE_NOT_FOUND, someone else's node is ACCESS_DENIED.
func (e *Engine) ownedNode(ctx context.Context, actorID int64, nodeID string) (*models.Node, error) {
	node, err := e.repo.GetActiveNode(ctx, nodeID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if node == nil {
		return nil, apperr.NotFound("NODE_NOT_FOUND", "node not found")
	}
	if node.OwnerID != actorID {
		return nil, apperr.AccessDenied("only the owner can manage sharing for this node")
	}
	return node, nil
}

type GrantEntry struct {
	AccountID int64  `json:"account_id"`
	Level     string `json:"level"`
}

// Grant inserts one grant per entry. Duplicate (node, grantee) pairs are
// legal and produce separate rows; the data layer does not constrain them.
func (e *Engine) Grant(ctx context.Context, ownerID int64, nodeID string, entries []GrantEntry) ([]models.Grant, error) {
	if len(entries) == 0 {
		return nil, apperr.Validation("at least one grant entry is required")
	}
	for _, entry := range entries {
		if !models.ValidGrantLevel(entry.Level) {
			return nil, apperr.Validation("level must be one of read, write, comment")
		}
		if entry.AccountID == ownerID {
			return nil, apperr.Validation("cannot grant access to yourself")
		}
	}

	if _, err := e.ownedNode(ctx, ownerID, nodeID); err != nil {
		return nil, err
	}

	grants := make([]models.Grant, 0, len(entries))
	for _, entry := range entries {
		grant, err := e.repo.CreateGrant(ctx, database.CreateGrantParams{
			ID:        uuid.New(),
			NodeID:    nodeID,
			OwnerID:   ownerID,
			GranteeID: entry.AccountID,
			Level:     entry.Level,
		})
		if err != nil {
			if errors.Is(err, database.ErrGranteeNotFound) {
				return nil, apperr.NotFound("USER_NOT_FOUND", "grantee account not found")
			}
			return nil, apperr.Database(err)
		}
		grants = append(grants, *grant)
	}

	e.log.Info("grants created", zap.String("node_id", nodeID), zap.Int("count", len(grants)))
	return grants, nil
}

func (e *Engine) ListGrants(ctx context.Context, ownerID int64, nodeID string) ([]models.Grant, error) {
	if _, err := e.ownedNode(ctx, ownerID, nodeID); err != nil {
		return nil, err
	}

	grants, err := e.repo.ListGrantsByNode(ctx, nodeID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return grants, nil
}

// grantForOwner loads a grant and checks the requester issued it.
func (e *Engine) grantForOwner(ctx context.Context, ownerID int64, grantID uuid.UUID) (*models.Grant, error) {
	grant, err := e.repo.GetGrantByID(ctx, grantID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if grant == nil {
		return nil, apperr.NotFound("PERMISSION_NOT_FOUND", "permission grant not found")
	}
	if grant.OwnerID != ownerID {
		return nil, apperr.AccessDenied("only the grant owner can modify it")
	}
	return grant, nil
}

func (e *Engine) UpdateGrant(ctx context.Context, ownerID int64, grantID uuid.UUID, newLevel string) (*models.Grant, error) {
	if !models.ValidGrantLevel(newLevel) {
		return nil, apperr.Validation("level must be one of read, write, comment")
	}

	if _, err := e.grantForOwner(ctx, ownerID, grantID); err != nil {
		return nil, err
	}

	ok, err := e.repo.UpdateGrantLevel(ctx, grantID, newLevel)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if !ok {
		return nil, apperr.NotFound("PERMISSION_NOT_FOUND", "permission grant not found")
	}

	grant, err := e.repo.GetGrantByID(ctx, grantID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return grant, nil
}

func (e *Engine) RevokeGrant(ctx context.Context, ownerID int64, grantID uuid.UUID) error {
	if _, err := e.grantForOwner(ctx, ownerID, grantID); err != nil {
		return err
	}

	ok, err := e.repo.DeleteGrant(ctx, grantID)
	if err != nil {
		return apperr.Database(err)
	}
	if !ok {
		return apperr.NotFound("PERMISSION_NOT_FOUND", "permission grant not found")
	}

	e.log.Info("grant revoked", zap.String("grant_id", grantID.String()))
	return nil
}

func newLinkToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// CreatePublicLink is idempotent by lookup: an existing link row for the node
// is returned unchanged. Concurrent first creation is not mutually exclusive
// at the data layer; the oldest row wins on later lookups.
func (e *Engine) CreatePublicLink(ctx context.Context, ownerID int64, nodeID string) (*models.PublicLink, error) {
	if _, err := e.ownedNode(ctx, ownerID, nodeID); err != nil {
		return nil, err
	}

	existing, err := e.repo.GetPublicLinkByNode(ctx, nodeID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if existing != nil {
		return existing, nil
	}

	token, err := newLinkToken()
	if err != nil {
		return nil, apperr.Wrap(500, "TOKEN_GENERATION_FAILED", "failed to generate link token", err)
	}

	link, err := e.repo.CreatePublicLink(ctx, database.CreatePublicLinkParams{
		ID:      uuid.New(),
		NodeID:  nodeID,
		OwnerID: ownerID,
		Token:   token,
	})
	if err != nil {
		return nil, apperr.Database(err)
	}

	e.log.Info("public link created", zap.String("node_id", nodeID))
	return link, nil
}

type PublicResource struct {
	Node        *models.Node `json:"node"`
	DownloadURL *string      `json:"download_url"`
}

// ResolvePublicResource exchanges a link token for node metadata and, for
// files, a signed download URL. A failed signing is non-fatal: the metadata
// is still served with a nil URL.
func (e *Engine) ResolvePublicResource(ctx context.Context, token string) (*PublicResource, error) {
	if token == "" {
		return nil, apperr.Validation("token is required")
	}

	link, err := e.repo.GetPublicLinkByToken(ctx, token)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if link == nil {
		return nil, apperr.NotFound("RESOURCE_NOT_FOUND", "resource not found")
	}

	node, err := e.repo.GetActiveNode(ctx, link.NodeID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if node == nil {
		// Trashed or purged since the link was minted.
		return nil, apperr.NotFound("RESOURCE_NOT_FOUND", "resource not found")
	}

	resource := &PublicResource{Node: node}
	if node.IsFile() && node.StoragePath != nil {
		url, err := e.store.Sign(ctx, *node.StoragePath, DefaultSignedURLTTL)
		if err != nil {
			e.log.Warn("public link signing failed", zap.String("node_id", node.ID), zap.Error(err))
		} else {
			resource.DownloadURL = &url
		}
	}

	return resource, nil
}

// CreateSignedDownloadURL issues a time-boxed download URL. Owner-only; grant
// holders are a flagged extension this core does not implement.
func (e *Engine) CreateSignedDownloadURL(ctx context.Context, ownerID int64, nodeID string, expiresIn time.Duration) (string, error) {
	node, err := e.ownedNode(ctx, ownerID, nodeID)
	if err != nil {
		return "", err
	}
	if !node.IsFile() {
		return "", apperr.InvalidNodeType("only files can be downloaded")
	}
	if node.StoragePath == nil {
		return "", apperr.NotFound("FILE_NOT_FOUND", "file has no stored content")
	}

	if expiresIn <= 0 {
		expiresIn = DefaultSignedURLTTL
	}

	url, err := e.store.Sign(ctx, *node.StoragePath, expiresIn)
	if err != nil {
		return "", apperr.SignedURLFailed(err)
	}

	return url, nil
}

// NodeContent is an open stream of a file's bytes plus the headers a proxied
// download needs. The caller owns Body and must close it.
type NodeContent struct {
	Body     io.ReadCloser
	Name     string
	MimeType string
	Size     int64
}

// OpenNodeContent streams a file's bytes through the server instead of
// redirecting to a signed URL. Owner-only, same as the URL variants.
func (e *Engine) OpenNodeContent(ctx context.Context, ownerID int64, nodeID string) (*NodeContent, error) {
	node, err := e.ownedNode(ctx, ownerID, nodeID)
	if err != nil {
		return nil, err
	}
	if !node.IsFile() {
		return nil, apperr.InvalidNodeType("only files can be downloaded")
	}
	if node.StoragePath == nil {
		return nil, apperr.NotFound("FILE_NOT_FOUND", "file has no stored content")
	}

	body, err := e.store.GetStream(ctx, *node.StoragePath)
	if err != nil {
		return nil, apperr.DownloadFailed(err)
	}

	content := &NodeContent{Body: body, Name: node.Name}
	if node.MimeType != nil {
		content.MimeType = *node.MimeType
	}
	if node.SizeBytes != nil {
		content.Size = *node.SizeBytes
	}
	return content, nil
}
