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

// ProjectInput is the body of project create and update requests. Nil fields
// are left unchanged on update.
type ProjectInput struct {
	Name      *string        `json:"name"`
	Platforms *[]string      `json:"platforms"`
	BrandKit  map[string]any `json:"brandKit"`
}

func (s *Service) CreateProject(ctx context.Context, userID string, in ProjectInput) (*core.Project, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, fmt.Errorf("%w: project name required", core.ErrInvalidProject)
	}

	now := time.Now().UTC()
	p := &core.Project{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Name:      strings.TrimSpace(*in.Name),
		Platforms: []string{},
		BrandKit:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Platforms != nil {
		p.Platforms = append(p.Platforms, *in.Platforms...)
	}
	for k, v := range in.BrandKit {
		p.BrandKit[k] = v
	}

	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ListProjects(ctx context.Context, userID string) ([]*core.Project, error) {
	return s.store.ListProjects(ctx, userID)
}

// GetProject returns a project owned by userID. Projects of other users are
// reported as not found.
func (s *Service) GetProject(ctx context.Context, userID, id string) (*core.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		logrus.WithFields(logrus.Fields{"user_id": userID, "project_id": id}).Warn("Project access denied")
		return nil, fmt.Errorf("%w: project %s not found or not owned by user", core.ErrNotFound, id)
	}
	return p, nil
}

func (s *Service) UpdateProject(ctx context.Context, userID, id string, in ProjectInput) (*core.Project, error) {
	p, err := s.GetProject(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, fmt.Errorf("%w: project name required", core.ErrInvalidProject)
		}
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Platforms != nil {
		p.Platforms = append([]string{}, *in.Platforms...)
	}
	if in.BrandKit != nil {
		p.BrandKit = in.BrandKit
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProject removes the project, its designs and their export history,
// then makes a best-effort pass over the stored export artifacts.
func (s *Service) DeleteProject(ctx context.Context, userID, id string) error {
	if _, err := s.GetProject(ctx, userID, id); err != nil {
		return err
	}

	designs, err := s.store.ListDesigns(ctx, id)
	if err != nil {
		return err
	}
	var exports []*core.Export
	for _, d := range designs {
		list, err := s.store.ListExports(ctx, d.ID)
		if err != nil {
			return err
		}
		exports = append(exports, list...)
	}

	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.removeObjects(context.WithoutCancel(ctx), exports)
	return nil
}
