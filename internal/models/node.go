package models

import "time"

const (
	NodeTypeFile   = "file"
	NodeTypeFolder = "folder"
)

type Node struct {
	ID               string     `json:"id"`
	OwnerID          int64      `json:"owner_id"`
	ParentID         *string    `json:"parent_id"`
	Name             string     `json:"name"`
	NodeType         string     `json:"node_type"`
	SizeBytes        *int64     `json:"size_bytes"`
	MimeType         *string    `json:"mime_type"`
	StoragePath      *string    `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	ModifiedAt       time.Time  `json:"modified_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
	OriginalParentID *string    `json:"-"`
}

func (n *Node) IsFolder() bool { return n.NodeType == NodeTypeFolder }

func (n *Node) IsFile() bool { return n.NodeType == NodeTypeFile }
