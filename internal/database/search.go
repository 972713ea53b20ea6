package database

import (
	"context"

	"drivebox/internal/models"

	"github.com/jackc/pgx/v5"
)

const searchResultCap = 100

// SearchNodes does a case-insensitive substring match on name, scoped to the
// owner, optionally restricted to one node type, newest modifications first.
func (q *Queries) SearchNodes(ctx context.Context, ownerID int64, term string, nodeType *string) ([]models.Node, error) {
	var rows pgx.Rows
	var err error

	if nodeType == nil {
		query := `
			SELECT ` + nodeColumns + `
			FROM nodes
			WHERE owner_id = $1 AND name ILIKE '%' || $2 || '%' AND deleted_at IS NULL
			ORDER BY modified_at DESC
			LIMIT $3
		`
		rows, err = q.db.Query(ctx, query, ownerID, term, searchResultCap)
	} else {
		query := `
			SELECT ` + nodeColumns + `
			FROM nodes
			WHERE owner_id = $1 AND name ILIKE '%' || $2 || '%' AND node_type = $3 AND deleted_at IS NULL
			ORDER BY modified_at DESC
			LIMIT $4
		`
		rows, err = q.db.Query(ctx, query, ownerID, term, *nodeType, searchResultCap)
	}
	if err != nil {
		return nil, err
	}

	return collectNodes(rows)
}

func (q *Queries) RecentFiles(ctx context.Context, ownerID int64, limit int) ([]models.Node, error) {
	query := `
		SELECT ` + nodeColumns + `
		FROM nodes
		WHERE owner_id = $1 AND node_type = 'file' AND deleted_at IS NULL
		ORDER BY modified_at DESC
		LIMIT $2
	`
	rows, err := q.db.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, err
	}

	return collectNodes(rows)
}
