package core

import (
	"context"
	"time"
)

type (
	// Project groups the designs of one app listing. It belongs to exactly one user.
	Project struct {
		ID        string         `json:"id"`
		UserID    string         `json:"userId"`
		Name      string         `json:"name"`
		Platforms []string       `json:"platforms"`
		BrandKit  map[string]any `json:"brandKit"`
		CreatedAt time.Time      `json:"createdAt"`
		UpdatedAt time.Time      `json:"updatedAt"`
	}

	// ProjectStore persists projects.
	ProjectStore interface {
		CreateProject(ctx context.Context, project *Project) error
		GetProject(ctx context.Context, id string) (*Project, error)
		// ListProjects returns the projects owned by a user, oldest first.
		ListProjects(ctx context.Context, userID string) ([]*Project, error)
		UpdateProject(ctx context.Context, project *Project) error
		// DeleteProject removes the project together with its designs and their exports.
		DeleteProject(ctx context.Context, id string) error
	}
)
