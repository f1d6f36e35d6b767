package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"storecanvas/core"
)

// memStore keeps projects, designs, exports and uploads in process memory. Designs are
// held as JSON so callers never share layer payloads with the store.
type memStore struct {
	mu sync.RWMutex

	projects       map[string]core.Project
	projectsByUser map[string][]string

	designs          map[string][]byte
	designProject    map[string]string
	designsByProject map[string][]string

	exportsByDesign map[string][]core.Export

	uploads       map[string]core.Upload
	uploadsByUser map[string][]string
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		projects:         make(map[string]core.Project),
		projectsByUser:   make(map[string][]string),
		designs:          make(map[string][]byte),
		designProject:    make(map[string]string),
		designsByProject: make(map[string][]string),
		exportsByDesign:  make(map[string][]core.Export),
		uploads:          make(map[string]core.Upload),
		uploadsByUser:    make(map[string][]string),
	}
}

func (s *memStore) CreateProject(ctx context.Context, project *core.Project) error {
	if project.ID == "" || project.UserID == "" {
		return fmt.Errorf("project id and user id are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.projects[project.ID]; exists {
		return fmt.Errorf("project %s already exists", project.ID)
	}
	s.projects[project.ID] = copyProject(project)
	s.projectsByUser[project.UserID] = append(s.projectsByUser[project.UserID], project.ID)

	logrus.WithFields(logrus.Fields{"user_id": project.UserID, "project_id": project.ID}).Info("Project created successfully")
	return nil
}

func (s *memStore) GetProject(ctx context.Context, id string) (*core.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: project %s", core.ErrNotFound, id)
	}
	out := copyProject(&p)
	return &out, nil
}

func (s *memStore) ListProjects(ctx context.Context, userID string) ([]*core.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.projectsByUser[userID]
	out := make([]*core.Project, 0, len(ids))
	for _, id := range ids {
		p := s.projects[id]
		c := copyProject(&p)
		out = append(out, &c)
	}
	logrus.WithField("user_id", userID).Debugf("Listed %d projects", len(out))
	return out, nil
}

func (s *memStore) UpdateProject(ctx context.Context, project *core.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.projects[project.ID]
	if !ok {
		return fmt.Errorf("%w: project %s", core.ErrNotFound, project.ID)
	}
	updated := copyProject(project)
	updated.UserID = existing.UserID
	updated.CreatedAt = existing.CreatedAt
	s.projects[project.ID] = updated
	return nil
}

func (s *memStore) DeleteProject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return fmt.Errorf("%w: project %s", core.ErrNotFound, id)
	}
	for _, designID := range s.designsByProject[id] {
		s.deleteDesignLocked(designID)
	}
	delete(s.designsByProject, id)
	delete(s.projects, id)
	s.projectsByUser[p.UserID] = remove(s.projectsByUser[p.UserID], id)

	logrus.WithField("project_id", id).Info("Project deleted successfully")
	return nil
}

func (s *memStore) CreateDesign(ctx context.Context, design *core.Design) error {
	if design.ID == "" || design.ProjectID == "" {
		return fmt.Errorf("design id and project id are required")
	}
	data, err := json.Marshal(design)
	if err != nil {
		return fmt.Errorf("failed to marshal design: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[design.ProjectID]; !ok {
		return fmt.Errorf("%w: project %s", core.ErrNotFound, design.ProjectID)
	}
	if _, exists := s.designs[design.ID]; exists {
		return fmt.Errorf("design %s already exists", design.ID)
	}
	s.designs[design.ID] = data
	s.designProject[design.ID] = design.ProjectID
	s.designsByProject[design.ProjectID] = append(s.designsByProject[design.ProjectID], design.ID)

	logrus.WithFields(logrus.Fields{
		"project_id":  design.ProjectID,
		"design_id":   design.ID,
		"data_length": len(data),
	}).Info("Design created successfully")
	return nil
}

func (s *memStore) GetDesign(ctx context.Context, id string) (*core.Design, error) {
	s.mu.RLock()
	data, ok := s.designs[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: design %s", core.ErrNotFound, id)
	}
	return decodeDesign(data)
}

func (s *memStore) ListDesigns(ctx context.Context, projectID string) ([]*core.Design, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.designsByProject[projectID]
	out := make([]*core.Design, 0, len(ids))
	for _, id := range ids {
		d, err := decodeDesign(s.designs[id])
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *memStore) UpdateDesign(ctx context.Context, design *core.Design) error {
	data, err := json.Marshal(design)
	if err != nil {
		return fmt.Errorf("failed to marshal design: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	projectID, ok := s.designProject[design.ID]
	if !ok {
		return fmt.Errorf("%w: design %s", core.ErrNotFound, design.ID)
	}
	if projectID != design.ProjectID {
		return fmt.Errorf("design %s cannot move to another project", design.ID)
	}
	s.designs[design.ID] = data
	return nil
}

func (s *memStore) DeleteDesign(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	projectID, ok := s.designProject[id]
	if !ok {
		return fmt.Errorf("%w: design %s", core.ErrNotFound, id)
	}
	s.deleteDesignLocked(id)
	s.designsByProject[projectID] = remove(s.designsByProject[projectID], id)

	logrus.WithField("design_id", id).Info("Design deleted successfully")
	return nil
}

func (s *memStore) deleteDesignLocked(id string) {
	delete(s.designs, id)
	delete(s.designProject, id)
	delete(s.exportsByDesign, id)
}

func (s *memStore) CreateExport(ctx context.Context, export *core.Export) error {
	if export.ID == "" {
		return fmt.Errorf("export id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.designProject[export.DesignID]; !ok {
		return fmt.Errorf("%w: design %s", core.ErrNotFound, export.DesignID)
	}
	s.exportsByDesign[export.DesignID] = append(s.exportsByDesign[export.DesignID], *export)
	return nil
}

func (s *memStore) ListExports(ctx context.Context, designID string) ([]*core.Export, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.exportsByDesign[designID]
	out := make([]*core.Export, len(list))
	for i := range list {
		e := list[i]
		out[i] = &e
	}
	return out, nil
}

func (s *memStore) CreateUpload(ctx context.Context, upload *core.Upload) error {
	if upload.ID == "" || upload.UserID == "" {
		return fmt.Errorf("upload id and user id are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.uploads[upload.ID]; exists {
		return fmt.Errorf("upload %s already exists", upload.ID)
	}
	s.uploads[upload.ID] = *upload
	s.uploadsByUser[upload.UserID] = append(s.uploadsByUser[upload.UserID], upload.ID)

	logrus.WithFields(logrus.Fields{"user_id": upload.UserID, "upload_id": upload.ID}).Info("Upload recorded successfully")
	return nil
}

func (s *memStore) GetUpload(ctx context.Context, id string) (*core.Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.uploads[id]
	if !ok {
		return nil, fmt.Errorf("%w: upload %s", core.ErrNotFound, id)
	}
	return &u, nil
}

func (s *memStore) ListUploads(ctx context.Context, userID string) ([]*core.Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.uploadsByUser[userID]
	out := make([]*core.Upload, 0, len(ids))
	for _, id := range ids {
		u := s.uploads[id]
		out = append(out, &u)
	}
	return out, nil
}

func (s *memStore) UpdateUpload(ctx context.Context, upload *core.Upload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.uploads[upload.ID]
	if !ok {
		return fmt.Errorf("%w: upload %s", core.ErrNotFound, upload.ID)
	}
	existing.Name = upload.Name
	existing.ProjectID = upload.ProjectID
	existing.Kind = upload.Kind
	s.uploads[upload.ID] = existing
	return nil
}

func (s *memStore) DeleteUpload(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.uploads[id]
	if !ok {
		return fmt.Errorf("%w: upload %s", core.ErrNotFound, id)
	}
	delete(s.uploads, id)
	s.uploadsByUser[u.UserID] = remove(s.uploadsByUser[u.UserID], id)

	logrus.WithField("upload_id", id).Info("Upload deleted successfully")
	return nil
}

func decodeDesign(data []byte) (*core.Design, error) {
	var d core.Design
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal design: %w", err)
	}
	return &d, nil
}

func copyProject(p *core.Project) core.Project {
	c := *p
	c.Platforms = make([]string, len(p.Platforms))
	copy(c.Platforms, p.Platforms)
	if p.BrandKit != nil {
		c.BrandKit = make(map[string]any, len(p.BrandKit))
		for k, v := range p.BrandKit {
			c.BrandKit[k] = v
		}
	}
	return c
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
