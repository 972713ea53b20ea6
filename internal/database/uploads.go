package database

import (
	"context"
	"errors"

	"drivebox/internal/models"

	"github.com/jackc/pgx/v5"
)

// EnsureUploadSession inserts the session row if it does not exist yet. A
// session shows up on the first chunk when the client initiated the multipart
// upload elsewhere.
func (q *Queries) EnsureUploadSession(ctx context.Context, uploadID string, storageKey string, ownerID int64) error {
	query := `
		INSERT INTO upload_sessions (upload_id, storage_key, owner_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (upload_id) DO NOTHING
	`
	_, err := q.db.Exec(ctx, query, uploadID, storageKey, ownerID)
	return err
}

func (q *Queries) GetUploadSession(ctx context.Context, uploadID string) (*models.UploadSession, error) {
	query := `
		SELECT upload_id, storage_key, owner_id, created_at
		FROM upload_sessions
		WHERE upload_id = $1
	`
	var session models.UploadSession
	err := q.db.QueryRow(ctx, query, uploadID).Scan(
		&session.UploadID,
		&session.StorageKey,
		&session.OwnerID,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// RecordUploadPart stores an acknowledged part. Re-uploading a part number
// overwrites its etag, matching S3 semantics.
func (q *Queries) RecordUploadPart(ctx context.Context, uploadID string, partNumber int32, etag string) error {
	query := `
		INSERT INTO upload_parts (upload_id, part_number, etag)
		VALUES ($1, $2, $3)
		ON CONFLICT (upload_id, part_number) DO UPDATE SET etag = EXCLUDED.etag, acked_at = now()
	`
	_, err := q.db.Exec(ctx, query, uploadID, partNumber, etag)
	return err
}

func (q *Queries) ListUploadParts(ctx context.Context, uploadID string) ([]models.UploadPart, error) {
	query := `
		SELECT upload_id, part_number, etag, acked_at
		FROM upload_parts
		WHERE upload_id = $1
		ORDER BY part_number
	`
	rows, err := q.db.Query(ctx, query, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []models.UploadPart
	for rows.Next() {
		var part models.UploadPart
		if err := rows.Scan(&part.UploadID, &part.PartNumber, &part.ETag, &part.AckedAt); err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if parts == nil {
		return []models.UploadPart{}, nil
	}

	return parts, nil
}

// DeleteUploadSession consumes the session after finalize; parts cascade.
func (q *Queries) DeleteUploadSession(ctx context.Context, uploadID string) error {
	query := `DELETE FROM upload_sessions WHERE upload_id = $1`
	_, err := q.db.Exec(ctx, query, uploadID)
	return err
}
