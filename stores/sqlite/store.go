package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"storecanvas/core"
)

type sqliteStore struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		platforms TEXT NOT NULL,
		brand_kit TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	);`,
	`CREATE INDEX IF NOT EXISTS idx_projects_user ON projects (user_id);`,
	`CREATE TABLE IF NOT EXISTS designs (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		base_width INTEGER NOT NULL,
		base_height INTEGER NOT NULL,
		layers TEXT NOT NULL,
		status TEXT NOT NULL,
		ai_metadata TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`,
	`CREATE INDEX IF NOT EXISTS idx_designs_project ON designs (project_id);`,
	`CREATE TABLE IF NOT EXISTS exports (
		id TEXT PRIMARY KEY,
		design_id TEXT NOT NULL,
		size_preset_id TEXT NOT NULL,
		store TEXT NOT NULL,
		format TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		output_url TEXT NOT NULL,
		storage_key TEXT NOT NULL,
		created_at DATETIME
	);`,
	`CREATE INDEX IF NOT EXISTS idx_exports_design ON exports (design_id);`,
	`CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		url TEXT NOT NULL,
		storage_key TEXT NOT NULL,
		content_type TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		size INTEGER NOT NULL,
		created_at DATETIME
	);`,
	`CREATE INDEX IF NOT EXISTS idx_uploads_user ON uploads (user_id);`,
}

// NewStore opens (and if needed creates) the SQLite database at dataSourceName.
func NewStore(dataSourceName string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// a single connection serialises writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return &sqliteStore{db}, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// ProjectStore implementation
func (s *sqliteStore) CreateProject(ctx context.Context, p *core.Project) error {
	platforms, brandKit, err := encodeProject(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO projects (id, user_id, name, platforms, brand_kit, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.UserID, p.Name, platforms, brandKit, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		logrus.WithError(err).WithField("project_id", p.ID).Error("Failed to create project")
		return err
	}
	logrus.WithFields(logrus.Fields{"user_id": p.UserID, "project_id": p.ID}).Info("Project created successfully")
	return nil
}

func (s *sqliteStore) GetProject(ctx context.Context, id string) (*core.Project, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, name, platforms, brand_kit, created_at, updated_at FROM projects WHERE id = ?", id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: project %s", core.ErrNotFound, id)
	}
	return p, err
}

func (s *sqliteStore) ListProjects(ctx context.Context, userID string) ([]*core.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, name, platforms, brand_kit, created_at, updated_at FROM projects WHERE user_id = ? ORDER BY created_at, rowid", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []*core.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *sqliteStore) UpdateProject(ctx context.Context, p *core.Project) error {
	platforms, brandKit, err := encodeProject(p)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE projects SET name = ?, platforms = ?, brand_kit = ?, updated_at = ? WHERE id = ?",
		p.Name, platforms, brandKit, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	return expectRow(res, "project", p.ID)
}

func (s *sqliteStore) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return err
	}
	if err := expectRow(res, "project", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM exports WHERE design_id IN (SELECT id FROM designs WHERE project_id = ?)", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM designs WHERE project_id = ?", id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logrus.WithField("project_id", id).Info("Project deleted successfully")
	return nil
}

// DesignStore implementation
func (s *sqliteStore) CreateDesign(ctx context.Context, d *core.Design) error {
	layers, meta, err := encodeDesign(d)
	if err != nil {
		return err
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM projects WHERE id = ?", d.ProjectID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: project %s", core.ErrNotFound, d.ProjectID)
	}
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO designs (id, project_id, name, type, base_width, base_height, layers, status, ai_metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ProjectID, d.Name, string(d.Type), d.BaseWidth, d.BaseHeight, layers, string(d.Status), meta, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		logrus.WithError(err).WithField("design_id", d.ID).Error("Failed to create design")
		return err
	}
	logrus.WithFields(logrus.Fields{
		"project_id":  d.ProjectID,
		"design_id":   d.ID,
		"data_length": len(layers),
	}).Info("Design created successfully")
	return nil
}

func (s *sqliteStore) GetDesign(ctx context.Context, id string) (*core.Design, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, name, type, base_width, base_height, layers, status, ai_metadata, created_at, updated_at
		FROM designs WHERE id = ?`, id)
	d, err := scanDesign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: design %s", core.ErrNotFound, id)
	}
	return d, err
}

func (s *sqliteStore) ListDesigns(ctx context.Context, projectID string) ([]*core.Design, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, name, type, base_width, base_height, layers, status, ai_metadata, created_at, updated_at
		FROM designs WHERE project_id = ? ORDER BY created_at, rowid`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	designs := []*core.Design{}
	for rows.Next() {
		d, err := scanDesign(rows)
		if err != nil {
			return nil, err
		}
		designs = append(designs, d)
	}
	return designs, rows.Err()
}

func (s *sqliteStore) UpdateDesign(ctx context.Context, d *core.Design) error {
	layers, meta, err := encodeDesign(d)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE designs SET name = ?, type = ?, base_width = ?, base_height = ?, layers = ?, status = ?, ai_metadata = ?, updated_at = ?
		WHERE id = ? AND project_id = ?`,
		d.Name, string(d.Type), d.BaseWidth, d.BaseHeight, layers, string(d.Status), meta, d.UpdatedAt, d.ID, d.ProjectID)
	if err != nil {
		return err
	}
	return expectRow(res, "design", d.ID)
}

func (s *sqliteStore) DeleteDesign(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM designs WHERE id = ?", id)
	if err != nil {
		return err
	}
	if err := expectRow(res, "design", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM exports WHERE design_id = ?", id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logrus.WithField("design_id", id).Info("Design deleted successfully")
	return nil
}

// ExportStore implementation
func (s *sqliteStore) CreateExport(ctx context.Context, e *core.Export) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exports (id, design_id, size_preset_id, store, format, width, height, output_url, storage_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DesignID, e.SizePresetID, string(e.Store), string(e.Format), e.Width, e.Height, e.OutputURL, e.StorageKey, e.CreatedAt)
	if err != nil {
		logrus.WithError(err).WithField("export_id", e.ID).Error("Failed to create export")
	}
	return err
}

func (s *sqliteStore) ListExports(ctx context.Context, designID string) ([]*core.Export, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, design_id, size_preset_id, store, format, width, height, output_url, storage_key, created_at
		FROM exports WHERE design_id = ? ORDER BY created_at, rowid`, designID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exports := []*core.Export{}
	for rows.Next() {
		var e core.Export
		var store, format string
		if err := rows.Scan(&e.ID, &e.DesignID, &e.SizePresetID, &store, &format, &e.Width, &e.Height, &e.OutputURL, &e.StorageKey, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Store, e.Format = core.StoreID(store), core.Format(format)
		exports = append(exports, &e)
	}
	return exports, rows.Err()
}

// UploadStore implementation
const uploadColumns = "id, user_id, project_id, name, kind, url, storage_key, content_type, width, height, size, created_at"

func (s *sqliteStore) CreateUpload(ctx context.Context, u *core.Upload) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO uploads ("+uploadColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		u.ID, u.UserID, u.ProjectID, u.Name, string(u.Kind), u.URL, u.StorageKey, u.ContentType, u.Width, u.Height, u.Size, u.CreatedAt)
	if err != nil {
		logrus.WithError(err).WithField("upload_id", u.ID).Error("Failed to create upload")
		return err
	}
	logrus.WithFields(logrus.Fields{"user_id": u.UserID, "upload_id": u.ID}).Info("Upload recorded successfully")
	return nil
}

func (s *sqliteStore) GetUpload(ctx context.Context, id string) (*core.Upload, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+uploadColumns+" FROM uploads WHERE id = ?", id)
	u, err := scanUpload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: upload %s", core.ErrNotFound, id)
	}
	return u, err
}

func (s *sqliteStore) ListUploads(ctx context.Context, userID string) ([]*core.Upload, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+uploadColumns+" FROM uploads WHERE user_id = ? ORDER BY created_at, rowid", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uploads := []*core.Upload{}
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

func (s *sqliteStore) UpdateUpload(ctx context.Context, u *core.Upload) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE uploads SET name = ?, project_id = ?, kind = ? WHERE id = ?",
		u.Name, u.ProjectID, string(u.Kind), u.ID)
	if err != nil {
		return err
	}
	return expectRow(res, "upload", u.ID)
}

func (s *sqliteStore) DeleteUpload(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM uploads WHERE id = ?", id)
	if err != nil {
		return err
	}
	if err := expectRow(res, "upload", id); err != nil {
		return err
	}
	logrus.WithField("upload_id", id).Info("Upload deleted successfully")
	return nil
}

func scanUpload(row scanner) (*core.Upload, error) {
	var u core.Upload
	var kind string
	if err := row.Scan(&u.ID, &u.UserID, &u.ProjectID, &u.Name, &kind, &u.URL, &u.StorageKey, &u.ContentType, &u.Width, &u.Height, &u.Size, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Kind = core.UploadKind(kind)
	return &u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*core.Project, error) {
	var p core.Project
	var platforms, brandKit string
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &platforms, &brandKit, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(platforms), &p.Platforms); err != nil {
		return nil, fmt.Errorf("failed to unmarshal platforms: %w", err)
	}
	if err := json.Unmarshal([]byte(brandKit), &p.BrandKit); err != nil {
		return nil, fmt.Errorf("failed to unmarshal brand kit: %w", err)
	}
	return &p, nil
}

func scanDesign(row scanner) (*core.Design, error) {
	var d core.Design
	var typ, status, layers string
	var meta sql.NullString
	if err := row.Scan(&d.ID, &d.ProjectID, &d.Name, &typ, &d.BaseWidth, &d.BaseHeight, &layers, &status, &meta, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Type, d.Status = core.DesignType(typ), core.DesignStatus(status)
	if err := json.Unmarshal([]byte(layers), &d.Layers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal layers: %w", err)
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &d.AIMetadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ai metadata: %w", err)
		}
	}
	return &d, nil
}

func encodeProject(p *core.Project) (string, string, error) {
	platforms := p.Platforms
	if platforms == nil {
		platforms = []string{}
	}
	pb, err := json.Marshal(platforms)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal platforms: %w", err)
	}
	brandKit := p.BrandKit
	if brandKit == nil {
		brandKit = map[string]any{}
	}
	bb, err := json.Marshal(brandKit)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal brand kit: %w", err)
	}
	return string(pb), string(bb), nil
}

func encodeDesign(d *core.Design) (string, sql.NullString, error) {
	layers := d.Layers
	if layers == nil {
		layers = []core.Layer{}
	}
	lb, err := json.Marshal(layers)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("failed to marshal layers: %w", err)
	}
	var meta sql.NullString
	if len(d.AIMetadata) > 0 {
		mb, err := json.Marshal(d.AIMetadata)
		if err != nil {
			return "", sql.NullString{}, fmt.Errorf("failed to marshal ai metadata: %w", err)
		}
		meta = sql.NullString{String: string(mb), Valid: true}
	}
	return string(lb), meta, nil
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", core.ErrNotFound, kind, id)
	}
	return nil
}
