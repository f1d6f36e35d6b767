package storage

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	"storecanvas/core"
	"storecanvas/storage/filesystem"
	"storecanvas/storage/memory"
	"storecanvas/storage/s3"
)

// Config describes the selected object storage backend.
type Config struct {
	Type string
	// LocalPath is set for the filesystem backend; its files are served under /files/.
	LocalPath string
}

func GetObjectStore(ctx context.Context) (core.ObjectStore, Config) {
	storageType := os.Getenv("OBJECT_STORAGE_TYPE")
	var store core.ObjectStore
	cfg := Config{Type: storageType}

	storageField := logrus.Fields{
		"objectStorageType": storageType,
	}

	switch storageType {
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		if basePath == "" {
			basePath = "./data/files" // Default path
		}
		baseURL := os.Getenv("PUBLIC_BASE_URL")
		if baseURL == "" {
			baseURL = "http://localhost:4000"
		}
		baseURL += "/files"
		storageField["basePath"] = basePath
		storageField["baseURL"] = baseURL
		fs, err := filesystem.NewStore(basePath, baseURL)
		if err != nil {
			logrus.WithFields(storageField).WithError(err).Fatal("Failed to prepare object storage")
		}
		store = fs
		cfg.LocalPath = basePath
	case "s3":
		bucketName := os.Getenv("S3_BUCKET_NAME")
		if bucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 object storage")
		}
		storageField["bucketName"] = bucketName
		s, err := s3.NewStore(ctx, s3.Options{
			Bucket:          bucketName,
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			PublicBaseURL:   os.Getenv("S3_PUBLIC_BASE_URL"),
			Region:          os.Getenv("S3_REGION"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		})
		if err != nil {
			logrus.WithFields(storageField).WithError(err).Fatal("Failed to prepare object storage")
		}
		store = s
	default:
		store = memory.NewStore()
		cfg.Type = "memory"
		storageField["objectStorageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use object storage")
	return store, cfg
}
