package models

import "time"

type UploadSession struct {
	UploadID   string    `json:"upload_id"`
	StorageKey string    `json:"storage_key"`
	OwnerID    int64     `json:"owner_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// UploadPart is one acknowledged chunk of a multipart upload.
type UploadPart struct {
	UploadID   string    `json:"-"`
	PartNumber int32     `json:"part_number"`
	ETag       string    `json:"etag"`
	AckedAt    time.Time `json:"acked_at"`
}
