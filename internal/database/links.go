package database

import (
	"context"
	"errors"

	"drivebox/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type CreatePublicLinkParams struct {
	ID      uuid.UUID
	NodeID  string
	OwnerID int64
	Token   string
}

func (q *Queries) CreatePublicLink(ctx context.Context, arg CreatePublicLinkParams) (*models.PublicLink, error) {
	query := `
		INSERT INTO public_links (id, node_id, owner_id, token)
		VALUES ($1, $2, $3, $4)
		RETURNING id, node_id, owner_id, token, created_at
	`
	row := q.db.QueryRow(ctx, query, arg.ID, arg.NodeID, arg.OwnerID, arg.Token)

	var link models.PublicLink
	err := row.Scan(&link.ID, &link.NodeID, &link.OwnerID, &link.Token, &link.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &link, nil
}

// GetPublicLinkByNode returns the oldest link row for the node, which is
// treated as canonical when duplicates exist.
func (q *Queries) GetPublicLinkByNode(ctx context.Context, nodeID string) (*models.PublicLink, error) {
	query := `
		SELECT id, node_id, owner_id, token, created_at
		FROM public_links
		WHERE node_id = $1
		ORDER BY created_at
		LIMIT 1
	`
	var link models.PublicLink
	err := q.db.QueryRow(ctx, query, nodeID).Scan(&link.ID, &link.NodeID, &link.OwnerID, &link.Token, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

func (q *Queries) GetPublicLinkByToken(ctx context.Context, token string) (*models.PublicLink, error) {
	query := `
		SELECT id, node_id, owner_id, token, created_at
		FROM public_links
		WHERE token = $1
	`
	var link models.PublicLink
	err := q.db.QueryRow(ctx, query, token).Scan(&link.ID, &link.NodeID, &link.OwnerID, &link.Token, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}
