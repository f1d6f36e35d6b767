package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type (
	DesignType   string
	DesignStatus string

	// Design is a canvas blueprint. All layer coordinates are expressed in the
	// BaseWidth x BaseHeight authoring space.
	Design struct {
		ID         string         `json:"id"`
		ProjectID  string         `json:"projectId"`
		Name       string         `json:"name"`
		Type       DesignType     `json:"type"`
		BaseWidth  int            `json:"baseWidth"`
		BaseHeight int            `json:"baseHeight"`
		Layers     []Layer        `json:"layers"`
		Status     DesignStatus   `json:"status"`
		AIMetadata map[string]any `json:"aiMetadata,omitempty"`
		CreatedAt  time.Time      `json:"createdAt"`
		UpdatedAt  time.Time      `json:"updatedAt"`
	}

	// DesignStore persists designs.
	DesignStore interface {
		CreateDesign(ctx context.Context, design *Design) error
		GetDesign(ctx context.Context, id string) (*Design, error)
		// ListDesigns returns the designs of a project, oldest first.
		ListDesigns(ctx context.Context, projectID string) ([]*Design, error)
		UpdateDesign(ctx context.Context, design *Design) error
		// DeleteDesign removes the design and its export records.
		DeleteDesign(ctx context.Context, id string) error
	}
)

const (
	DesignFeatureGraphic   DesignType = "feature_graphic"
	DesignPhoneScreenshot  DesignType = "phone_screenshot"
	DesignTabletScreenshot DesignType = "tablet_screenshot"
	DesignAppIconLayout    DesignType = "app_icon_layout"
	DesignCustom           DesignType = "custom"

	StatusDraft    DesignStatus = "draft"
	StatusReady    DesignStatus = "ready"
	StatusArchived DesignStatus = "archived"

	MinBaseDimension = 320
	MaxBaseDimension = 8192
)

func (t DesignType) Valid() bool {
	switch t {
	case DesignFeatureGraphic, DesignPhoneScreenshot, DesignTabletScreenshot, DesignAppIconLayout, DesignCustom:
		return true
	}
	return false
}

func (s DesignStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusReady, StatusArchived:
		return true
	}
	return false
}

// Validate checks the design's metadata, base size and every layer. Layer
// ids must be unique within the design.
func (d *Design) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDesign)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidDesign, d.Type)
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: unsupported status %q", ErrInvalidDesign, d.Status)
	}
	if d.BaseWidth < MinBaseDimension || d.BaseHeight < MinBaseDimension {
		return fmt.Errorf("%w: base size %dx%d is below the %dpx minimum", ErrInvalidDesign, d.BaseWidth, d.BaseHeight, MinBaseDimension)
	}
	if d.BaseWidth > MaxBaseDimension || d.BaseHeight > MaxBaseDimension {
		return fmt.Errorf("%w: base size %dx%d exceeds the %dpx maximum", ErrInvalidDesign, d.BaseWidth, d.BaseHeight, MaxBaseDimension)
	}

	seen := make(map[string]struct{}, len(d.Layers))
	for i := range d.Layers {
		l := &d.Layers[i]
		if err := l.Validate(); err != nil {
			return err
		}
		if _, dup := seen[l.ID]; dup {
			return fmt.Errorf("%w: duplicate layer id %s", ErrInvalidLayer, l.ID)
		}
		seen[l.ID] = struct{}{}
	}
	return nil
}
