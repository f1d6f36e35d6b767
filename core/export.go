package core

import (
	"context"
	"encoding/base64"
	"time"
)

type (
	// Export is one generated, store-sized artifact derived from a design. Immutable once created.
	Export struct {
		ID           string    `json:"id"`
		DesignID     string    `json:"designId"`
		SizePresetID string    `json:"sizePresetId"`
		Store        StoreID   `json:"store"`
		Format       Format    `json:"format"`
		Width        int       `json:"width"`
		Height       int       `json:"height"`
		OutputURL    string    `json:"outputUrl"`
		StorageKey   string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	// ExportStore is append-only export history.
	ExportStore interface {
		CreateExport(ctx context.Context, export *Export) error
		// ListExports returns every export of a design in creation order.
		ListExports(ctx context.Context, designID string) ([]*Export, error)
	}

	// StoredObject is the durable location of bytes written to object storage.
	StoredObject struct {
		Key string `json:"key"`
		URL string `json:"url"`
	}

	// ObjectStore holds encoded binaries such as exports and generated backgrounds.
	ObjectStore interface {
		Put(ctx context.Context, data []byte, contentType string) (*StoredObject, error)
		Delete(ctx context.Context, key string) error
	}

	// ExportEvent reports the outcome of one preset within an export batch.
	ExportEvent struct {
		DesignID   string  `json:"designId"`
		Index      int     `json:"index"`
		Total      int     `json:"total"`
		PresetCode string  `json:"presetCode"`
		Export     *Export `json:"export,omitempty"`
		Reason     string  `json:"reason,omitempty"`
	}

	// ExportNotifier receives export batch progress. Implementations must not block.
	ExportNotifier interface {
		ExportStarted(designID string, presetCodes []string)
		ExportProgress(event ExportEvent)
		ExportFinished(designID string, succeeded, failed int)
	}

	// ImageGenerator is the AI image collaborator. Both calls return encoded image bytes.
	ImageGenerator interface {
		GenerateImage(ctx context.Context, prompt string, width, height int) ([]byte, error)
		EditImage(ctx context.Context, prompt string, image []byte) ([]byte, error)
	}

	// CopyWriter suggests short marketing lines for store assets.
	CopyWriter interface {
		SuggestCopy(ctx context.Context, brief string) ([]string, error)
	}
)

// NopNotifier discards all export events.
type NopNotifier struct{}

func (NopNotifier) ExportStarted(string, []string)  {}
func (NopNotifier) ExportProgress(ExportEvent)      {}
func (NopNotifier) ExportFinished(string, int, int) {}

// DataURL inlines data as a base64 data: URL.
func DataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
