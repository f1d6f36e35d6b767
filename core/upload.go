package core

import (
	"context"
	"time"
)

type (
	UploadKind string

	// Upload is a user asset kept in object storage, such as a logo or a raw
	// screenshot, that designs can reference by URL.
	Upload struct {
		ID          string     `json:"id"`
		UserID      string     `json:"userId"`
		ProjectID   string     `json:"projectId,omitempty"`
		Name        string     `json:"name,omitempty"`
		Kind        UploadKind `json:"type"`
		URL         string     `json:"url"`
		StorageKey  string     `json:"storageKey"`
		ContentType string     `json:"mimeType"`
		Width       int        `json:"width"`
		Height      int        `json:"height"`
		Size        int        `json:"size"`
		CreatedAt   time.Time  `json:"createdAt"`
	}

	// UploadStore persists upload records. The bytes live in an ObjectStore.
	UploadStore interface {
		CreateUpload(ctx context.Context, upload *Upload) error
		GetUpload(ctx context.Context, id string) (*Upload, error)
		// ListUploads returns a user's uploads, oldest first.
		ListUploads(ctx context.Context, userID string) ([]*Upload, error)
		UpdateUpload(ctx context.Context, upload *Upload) error
		DeleteUpload(ctx context.Context, id string) error
	}
)

const (
	UploadLogo       UploadKind = "logo"
	UploadScreenshot UploadKind = "screenshot"
	UploadBackground UploadKind = "background"
	UploadOther      UploadKind = "other"
)

func (k UploadKind) Valid() bool {
	switch k {
	case UploadLogo, UploadScreenshot, UploadBackground, UploadOther:
		return true
	}
	return false
}
