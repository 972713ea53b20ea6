package database

import (
	"context"

	"drivebox/internal/models"
)

// StarNode is idempotent: re-starring an already-starred node inserts nothing
// and reports success.
func (q *Queries) StarNode(ctx context.Context, userID int64, nodeID string) error {
	query := `
		INSERT INTO user_stars (user_id, node_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, node_id) DO NOTHING
	`
	_, err := q.db.Exec(ctx, query, userID, nodeID)
	return err
}

// UnstarNode returns how many rows it removed; zero is not an error.
func (q *Queries) UnstarNode(ctx context.Context, userID int64, nodeID string) (int64, error) {
	query := `DELETE FROM user_stars WHERE user_id = $1 AND node_id = $2`
	res, err := q.db.Exec(ctx, query, userID, nodeID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func (q *Queries) CountStars(ctx context.Context, userID int64, nodeID string) (int, error) {
	var count int
	query := `SELECT count(*) FROM user_stars WHERE user_id = $1 AND node_id = $2`
	err := q.db.QueryRow(ctx, query, userID, nodeID).Scan(&count)
	return count, err
}

func (q *Queries) ListStarredFiles(ctx context.Context, userID int64) ([]models.Node, error) {
	query := `
		SELECT ` + qualifiedNodeColumns + `
		FROM nodes n
		JOIN user_stars s ON n.id = s.node_id
		WHERE s.user_id = $1 AND n.owner_id = $1 AND n.node_type = 'file' AND n.deleted_at IS NULL
		ORDER BY s.starred_at DESC
	`
	rows, err := q.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	return collectNodes(rows)
}
