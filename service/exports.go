package service

import (
	"context"

	"storecanvas/core"
	"storecanvas/export"
	"storecanvas/render"
)

// Export renders the design once and produces an artifact per preset code.
func (s *Service) Export(ctx context.Context, userID, id string, codes []string, format core.Format) (*export.Batch, error) {
	d, err := s.GetDesign(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.exporter.Run(ctx, d, codes, format)
}

// ListExports returns the design's export history, oldest first.
func (s *Service) ListExports(ctx context.Context, userID, id string) ([]*core.Export, error) {
	if _, err := s.GetDesign(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.store.ListExports(ctx, id)
}

// Preview renders the design's base composition as PNG.
func (s *Service) Preview(ctx context.Context, userID, id string) ([]byte, []*render.LayerError, error) {
	d, err := s.GetDesign(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	return s.preview(ctx, d)
}

func (s *Service) preview(ctx context.Context, d *core.Design) ([]byte, []*render.LayerError, error) {
	img, layerErrors, err := s.renderer.Render(ctx, d)
	if err != nil {
		return nil, nil, err
	}
	data, err := export.Encode(img, core.FormatPNG)
	if err != nil {
		return nil, nil, err
	}
	return data, layerErrors, nil
}
