package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"storecanvas/core"
)

// MaxUploadBytes bounds a single uploaded asset.
const MaxUploadBytes = 20 << 20

// UploadInput is the metadata sent along with an uploaded file.
type UploadInput struct {
	ProjectID string          `json:"projectId"`
	Name      string          `json:"name"`
	Kind      core.UploadKind `json:"type"`
}

var imageContentTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// CreateUpload stores an image asset for userID. The bytes must decode as a
// supported image; the recorded content type comes from the decoded format.
func (s *Service) CreateUpload(ctx context.Context, userID string, in UploadInput, data []byte) (*core.Upload, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is required", core.ErrInvalidUpload)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", core.ErrInvalidUpload, MaxUploadBytes)
	}
	if in.Kind == "" {
		in.Kind = core.UploadOther
	}
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: unsupported type %q", core.ErrInvalidUpload, in.Kind)
	}
	if in.ProjectID != "" {
		if _, err := s.GetProject(ctx, userID, in.ProjectID); err != nil {
			return nil, err
		}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: file is not a supported image", core.ErrInvalidUpload)
	}
	contentType, ok := imageContentTypes[format]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported image format %q", core.ErrInvalidUpload, format)
	}

	return s.storeUpload(ctx, &core.Upload{
		UserID:      userID,
		ProjectID:   in.ProjectID,
		Name:        strings.TrimSpace(in.Name),
		Kind:        in.Kind,
		ContentType: contentType,
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, data)
}

// storeUpload writes data to object storage and records u. The object is
// removed again when the record cannot be written.
func (s *Service) storeUpload(ctx context.Context, u *core.Upload, data []byte) (*core.Upload, error) {
	obj, err := s.objects.Put(ctx, data, u.ContentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	u.ID = ulid.Make().String()
	u.URL = obj.URL
	u.StorageKey = obj.Key
	u.Size = len(data)
	u.CreatedAt = time.Now().UTC()

	if err := s.store.CreateUpload(ctx, u); err != nil {
		if delErr := s.objects.Delete(ctx, obj.Key); delErr != nil {
			logrus.WithField("key", obj.Key).WithError(delErr).Warn("Failed to remove orphaned upload object")
		}
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":   u.UserID,
		"upload_id": u.ID,
		"size":      u.Size,
	}).Info("Upload stored")
	return u, nil
}

// ListUploads returns the caller's uploads, optionally only those of one project.
func (s *Service) ListUploads(ctx context.Context, userID, projectID string) ([]*core.Upload, error) {
	uploads, err := s.store.ListUploads(ctx, userID)
	if err != nil {
		return nil, err
	}
	if projectID == "" {
		return uploads, nil
	}
	out := make([]*core.Upload, 0, len(uploads))
	for _, u := range uploads {
		if u.ProjectID == projectID {
			out = append(out, u)
		}
	}
	return out, nil
}

// GetUpload returns an upload owned by userID. Uploads of other users are
// reported as not found.
func (s *Service) GetUpload(ctx context.Context, userID, id string) (*core.Upload, error) {
	u, err := s.store.GetUpload(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.UserID != userID {
		logrus.WithFields(logrus.Fields{"user_id": userID, "upload_id": id}).Warn("Upload access denied")
		return nil, fmt.Errorf("%w: upload %s not found or not owned by user", core.ErrNotFound, id)
	}
	return u, nil
}

func (s *Service) RenameUpload(ctx context.Context, userID, id, name string) (*core.Upload, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", core.ErrInvalidUpload)
	}
	u, err := s.GetUpload(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	u.Name = name
	if err := s.store.UpdateUpload(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUpload removes the stored object and then the record. An object that
// is already gone does not block removing the record.
func (s *Service) DeleteUpload(ctx context.Context, userID, id string) error {
	u, err := s.GetUpload(ctx, userID, id)
	if err != nil {
		return err
	}
	if u.StorageKey != "" {
		if err := s.objects.Delete(ctx, u.StorageKey); err != nil && !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("%w: %w", core.ErrStorage, err)
		}
	}
	if err := s.store.DeleteUpload(ctx, id); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "upload_id": id}).Info("Upload deleted")
	return nil
}
