package database

import (
	"context"
	"errors"

	"drivebox/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrGranteeNotFound = errors.New("grantee user not found")

type CreateGrantParams struct {
	ID        uuid.UUID
	NodeID    string
	OwnerID   int64
	GranteeID int64
	Level     string
}

func (q *Queries) CreateGrant(ctx context.Context, arg CreateGrantParams) (*models.Grant, error) {
	query := `
		INSERT INTO grants (id, node_id, owner_id, grantee_id, level)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, node_id, owner_id, grantee_id, level, created_at, updated_at
	`
	row := q.db.QueryRow(ctx, query, arg.ID, arg.NodeID, arg.OwnerID, arg.GranteeID, arg.Level)

	var grant models.Grant
	err := row.Scan(
		&grant.ID,
		&grant.NodeID,
		&grant.OwnerID,
		&grant.GranteeID,
		&grant.Level,
		&grant.CreatedAt,
		&grant.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrGranteeNotFound
		}
		return nil, err
	}

	return &grant, nil
}

func (q *Queries) ListGrantsByNode(ctx context.Context, nodeID string) ([]models.Grant, error) {
	query := `
		SELECT id, node_id, owner_id, grantee_id, level, created_at, updated_at
		FROM grants
		WHERE node_id = $1
		ORDER BY created_at
	`
	rows, err := q.db.Query(ctx, query, nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []models.Grant
	for rows.Next() {
		var grant models.Grant
		err := rows.Scan(
			&grant.ID,
			&grant.NodeID,
			&grant.OwnerID,
			&grant.GranteeID,
			&grant.Level,
			&grant.CreatedAt,
			&grant.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if grants == nil {
		return []models.Grant{}, nil
	}

	return grants, nil
}

func (q *Queries) GetGrantByID(ctx context.Context, grantID uuid.UUID) (*models.Grant, error) {
	query := `
		SELECT id, node_id, owner_id, grantee_id, level, created_at, updated_at
		FROM grants
		WHERE id = $1
	`
	var grant models.Grant
	err := q.db.QueryRow(ctx, query, grantID).Scan(
		&grant.ID,
		&grant.NodeID,
		&grant.OwnerID,
		&grant.GranteeID,
		&grant.Level,
		&grant.CreatedAt,
		&grant.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &grant, nil
}

func (q *Queries) UpdateGrantLevel(ctx context.Context, grantID uuid.UUID, level string) (bool, error) {
	query := `UPDATE grants SET level = $1, updated_at = now() WHERE id = $2`
	res, err := q.db.Exec(ctx, query, level, grantID)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (q *Queries) DeleteGrant(ctx context.Context, grantID uuid.UUID) (bool, error) {
	query := `DELETE FROM grants WHERE id = $1`
	res, err := q.db.Exec(ctx, query, grantID)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

type GrantingUser struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	DisplayName *string `json:"display_name"`
}

// GetGrantingUsers lists the users who granted anything to granteeID. This is
// the root level of the "shared with me" view.
func (q *Queries) GetGrantingUsers(ctx context.Context, granteeID int64, limit int, offset int) ([]GrantingUser, error) {
	query := `
		SELECT DISTINCT ON (u.id)
			u.id,
			u.username,
			u.display_name
		FROM grants g
		JOIN users u ON g.owner_id = u.id
		WHERE g.grantee_id = $1
		ORDER BY u.id LIMIT $2 OFFSET $3
	`
	rows, err := q.db.Query(ctx, query, granteeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []GrantingUser
	for rows.Next() {
		var user GrantingUser
		if err := rows.Scan(&user.ID, &user.Username, &user.DisplayName); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if users == nil {
		return []GrantingUser{}, nil
	}

	return users, nil
}

func (q *Queries) ListGrantedNodes(ctx context.Context, granteeID int64, ownerID int64, limit int, offset int) ([]models.Node, error) {
	query := `
		SELECT ` + qualifiedNodeColumns + `
		FROM nodes n
		JOIN grants g ON n.id = g.node_id
		WHERE g.grantee_id = $1 AND g.owner_id = $2 AND n.deleted_at IS NULL
		ORDER BY n.node_type DESC, n.name LIMIT $3 OFFSET $4
	`
	rows, err := q.db.Query(ctx, query, granteeID, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}

	return collectNodes(rows)
}

// HasGrantOnNode reports whether the grantee holds a grant on the node or on
// any of its ancestors.
func (q *Queries) HasGrantOnNode(ctx context.Context, nodeID string, granteeID int64) (bool, error) {
	query := `
		WITH RECURSIVE node_parents AS (
			SELECT id, parent_id
			FROM nodes
			WHERE id = $1

			UNION ALL

			SELECT n.id, n.parent_id
			FROM nodes n
			JOIN node_parents np ON n.id = np.parent_id
		)
		SELECT EXISTS (
			SELECT 1
			FROM grants g
			WHERE g.grantee_id = $2 AND g.node_id IN (SELECT id FROM node_parents)
		)
	`
	var hasGrant bool
	err := q.db.QueryRow(ctx, query, nodeID, granteeID).Scan(&hasGrant)
	return hasGrant, err
}

type OutgoingGrant struct {
	models.Grant
	NodeName        string `json:"node_name"`
	NodeType        string `json:"node_type"`
	GranteeUsername string `json:"grantee_username"`
}

func (q *Queries) GetOutgoingGrants(ctx context.Context, ownerID int64, limit int, offset int) ([]OutgoingGrant, error) {
	query := `
		SELECT
			g.id, g.node_id, g.owner_id, g.grantee_id, g.level, g.created_at, g.updated_at,
			n.name AS node_name,
			n.node_type AS node_type,
			u.username AS grantee_username
		FROM grants g
		JOIN nodes n ON g.node_id = n.id
		JOIN users u ON g.grantee_id = u.id
		WHERE g.owner_id = $1
		ORDER BY g.created_at DESC LIMIT $2 OFFSET $3
	`
	rows, err := q.db.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []OutgoingGrant
	for rows.Next() {
		var grant OutgoingGrant
		err := rows.Scan(
			&grant.ID, &grant.NodeID, &grant.OwnerID, &grant.GranteeID, &grant.Level, &grant.CreatedAt, &grant.UpdatedAt,
			&grant.NodeName, &grant.NodeType, &grant.GranteeUsername,
		)
		if err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if grants == nil {
		return []OutgoingGrant{}, nil
	}

	return grants, nil
}
