package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"storecanvas/core"
)

type fsStore struct {
	basePath string
	baseURL  string
}

// NewStore creates a filesystem object store rooted at basePath. Object URLs
// are baseURL + "/" + key; the files are expected to be served under baseURL.
func NewStore(basePath, baseURL string) (*fsStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &fsStore{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *fsStore) BasePath() string {
	return s.basePath
}

func (s *fsStore) Put(ctx context.Context, data []byte, contentType string) (*core.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := ulid.Make().String() + core.ExtensionFor(contentType)
	filePath := filepath.Join(s.basePath, key)
	log := logrus.WithFields(logrus.Fields{
		"key":       key,
		"file_path": filePath,
		"bytes":     len(data),
	})

	// write to a temp file first so readers never see a partial object
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write object")
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		log.WithError(err).Error("Failed to write object")
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}

	log.Debug("Object stored")
	return &core.StoredObject{Key: key, URL: s.baseURL + "/" + key}, nil
}

func (s *fsStore) Delete(ctx context.Context, key string) error {
	if filepath.Base(key) != key || key == "." || key == ".." {
		return fmt.Errorf("invalid object key %q", key)
	}
	err := os.Remove(filepath.Join(s.basePath, key))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: object %s", core.ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	return nil
}
