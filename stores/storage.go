package stores

import (
	"os"

	"github.com/sirupsen/logrus"

	"storecanvas/core"
	"storecanvas/stores/memory"
	"storecanvas/stores/sqlite"
)

// Store is a union interface that includes all store types.
type Store interface {
	core.ProjectStore
	core.DesignStore
	core.ExportStore
	core.UploadStore
}

func GetStore() Store {
	storageType := os.Getenv("STORAGE_TYPE")
	var store Store

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "storecanvas.db" // Default filename
		}
		storageField["dataSourceName"] = dataSourceName
		s, err := sqlite.NewStore(dataSourceName)
		if err != nil {
			logrus.WithFields(storageField).WithError(err).Fatal("Failed to open sqlite store")
		}
		store = s
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
