package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is one refresh-token login. The token itself is never serialized;
// listings expose only the device metadata.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserAgent string    `json:"user_agent"`
	ClientIP  string    `json:"client_ip"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
