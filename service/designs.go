package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"storecanvas/core"
)

// DesignInput is the body of design create and update requests. Nil fields
// are left unchanged on update.
type DesignInput struct {
	Name       *string            `json:"name"`
	Type       *core.DesignType   `json:"type"`
	BaseWidth  *int               `json:"baseWidth"`
	BaseHeight *int               `json:"baseHeight"`
	Layers     *[]core.Layer      `json:"layers"`
	Status     *core.DesignStatus `json:"status"`
}

func (in DesignInput) apply(d *core.Design) {
	if in.Name != nil {
		d.Name = strings.TrimSpace(*in.Name)
	}
	if in.Type != nil {
		d.Type = *in.Type
	}
	if in.BaseWidth != nil {
		d.BaseWidth = *in.BaseWidth
	}
	if in.BaseHeight != nil {
		d.BaseHeight = *in.BaseHeight
	}
	if in.Layers != nil {
		d.Layers = append([]core.Layer{}, *in.Layers...)
	}
	if in.Status != nil {
		d.Status = *in.Status
	}
}

// assignLayerIDs gives every layer without an id a fresh one.
func assignLayerIDs(layers []core.Layer) {
	for i := range layers {
		if strings.TrimSpace(layers[i].ID) == "" {
			layers[i].ID = ulid.Make().String()
		}
	}
}

func (s *Service) CreateDesign(ctx context.Context, userID, projectID string, in DesignInput) (*core.Design, error) {
	if _, err := s.GetProject(ctx, userID, projectID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	d := &core.Design{
		ID:        ulid.Make().String(),
		ProjectID: projectID,
		Layers:    []core.Layer{},
		Status:    core.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.apply(d)
	assignLayerIDs(d.Layers)
	if err := d.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.CreateDesign(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListDesigns(ctx context.Context, userID, projectID string) ([]*core.Design, error) {
	if _, err := s.GetProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.store.ListDesigns(ctx, projectID)
}

// GetDesign returns a design whose project is owned by userID.
func (s *Service) GetDesign(ctx context.Context, userID, id string) (*core.Design, error) {
	d, err := s.store.GetDesign(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetProject(ctx, userID, d.ProjectID); err != nil {
		return nil, fmt.Errorf("%w: design %s", core.ErrNotFound, id)
	}
	return d, nil
}

// UpdateDesign applies a partial update. The result is validated as a whole
// before it is stored.
func (s *Service) UpdateDesign(ctx context.Context, userID, id string, in DesignInput) (*core.Design, error) {
	d, err := s.GetDesign(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	in.apply(d)
	assignLayerIDs(d.Layers)
	return s.saveDesign(ctx, d)
}

func (s *Service) saveDesign(ctx context.Context, d *core.Design) (*core.Design, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	d.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateDesign(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteDesign removes the design and its export history, then makes a
// best-effort pass over the stored export artifacts.
func (s *Service) DeleteDesign(ctx context.Context, userID, id string) error {
	if _, err := s.GetDesign(ctx, userID, id); err != nil {
		return err
	}
	exports, err := s.store.ListExports(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDesign(ctx, id); err != nil {
		return err
	}
	s.removeObjects(context.WithoutCancel(ctx), exports)

	logrus.WithFields(logrus.Fields{
		"design_id": id,
		"exports":   len(exports),
	}).Info("Design removed")
	return nil
}
