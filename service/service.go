package service

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"storecanvas/ai"
	"storecanvas/core"
	"storecanvas/export"
	"storecanvas/render"
)

const defaultFetchTimeout = 10 * time.Second

// Store is the persistence the service needs.
type Store interface {
	core.ProjectStore
	core.DesignStore
	core.ExportStore
	core.UploadStore
}

// Exporter runs an export batch for a loaded design.
type Exporter interface {
	Run(ctx context.Context, design *core.Design, codes []string, format core.Format) (*export.Batch, error)
}

// Fetcher reads the bytes behind an upload URL.
type Fetcher interface {
	Fetch(ctx context.Context, src string) ([]byte, error)
}

// Service applies ownership rules on top of the stores and drives rendering,
// exports, uploads and AI-assisted layer edits. Every operation is scoped to
// a user id.
type Service struct {
	store     Store
	objects   core.ObjectStore
	renderer  export.Renderer
	exporter  Exporter
	assistant ai.Assistant
	fetcher   Fetcher
}

// New wires a service. A nil assistant is replaced by placeholder generation
// and a nil fetcher by an uncached HTTP fetcher.
func New(store Store, objects core.ObjectStore, renderer export.Renderer, exporter Exporter, assistant ai.Assistant, fetcher Fetcher) *Service {
	if assistant == nil {
		assistant = ai.WithFallback(nil)
	}
	if fetcher == nil {
		fetcher = render.NewHTTPFetcher(defaultFetchTimeout, nil)
	}
	return &Service{
		store:     store,
		objects:   objects,
		renderer:  renderer,
		exporter:  exporter,
		assistant: assistant,
		fetcher:   fetcher,
	}
}

// upload stores generated image bytes and returns their URL. If the object
// store fails, the image is inlined as a data URL instead.
func (s *Service) upload(ctx context.Context, data []byte) string {
	contentType := http.DetectContentType(data)
	obj, err := s.objects.Put(ctx, data, contentType)
	if err != nil {
		logrus.WithError(err).Warn("Storage upload failed, using inline image")
		return core.DataURL(contentType, data)
	}
	return obj.URL
}

// removeObjects deletes stored export artifacts. Failures are only logged.
func (s *Service) removeObjects(ctx context.Context, exports []*core.Export) {
	for _, e := range exports {
		if e.StorageKey == "" {
			continue
		}
		if err := s.objects.Delete(ctx, e.StorageKey); err != nil {
			logrus.WithFields(logrus.Fields{
				"export_id": e.ID,
				"key":       e.StorageKey,
			}).WithError(err).Warn("Failed to remove export object")
		}
	}
}
