package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	GrantLevelRead    = "read"
	GrantLevelWrite   = "write"
	GrantLevelComment = "comment"
)

func ValidGrantLevel(level string) bool {
	return level == GrantLevelRead || level == GrantLevelWrite || level == GrantLevelComment
}

type Grant struct {
	ID        uuid.UUID `json:"id"`
	NodeID    string    `json:"node_id"`
	OwnerID   int64     `json:"owner_id"`
	GranteeID int64     `json:"grantee_id"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PublicLink struct {
	ID        uuid.UUID `json:"id"`
	NodeID    string    `json:"node_id"`
	OwnerID   int64     `json:"owner_id"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}
