package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"storecanvas/core"
)

const (
	backgroundZIndex = 0
	overlayZIndex    = 10
)

// GenerateBackground asks the assistant for a background matching prompt and
// prepends it as a full-canvas image background. Existing layers are kept
// unchanged.
func (s *Service) GenerateBackground(ctx context.Context, userID, id, prompt string) (*core.Design, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", core.ErrInvalidDesign)
	}
	d, err := s.GetDesign(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	data, err := s.assistant.GenerateImage(ctx, prompt, d.BaseWidth, d.BaseHeight)
	if err != nil {
		return nil, err
	}
	url := s.upload(ctx, data)

	layer := core.Layer{
		ID:      ulid.Make().String(),
		Type:    core.LayerBackground,
		ZIndex:  backgroundZIndex,
		Visible: true,
		Source:  url,
		Data: &core.BackgroundData{
			Kind:    core.BackgroundImage,
			URL:     url,
			Width:   float64(d.BaseWidth),
			Height:  float64(d.BaseHeight),
			Opacity: 1,
		},
	}
	d.Layers = append([]core.Layer{layer}, d.Layers...)
	d.AIMetadata = withMetadata(d.AIMetadata, map[string]any{
		"lastBackgroundPrompt": prompt,
		"model":                "background",
	})

	logrus.WithFields(logrus.Fields{"design_id": id, "layer_id": layer.ID}).Info("Generated background layer")
	return s.saveDesign(ctx, d)
}

// ApplyImg2Img transforms an image with prompt and appends the result as an
// overlay above the design. An empty image uses the design's current
// composition as the source.
func (s *Service) ApplyImg2Img(ctx context.Context, userID, id, prompt, base64Image string) (*core.Design, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", core.ErrInvalidDesign)
	}
	d, err := s.GetDesign(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	var src []byte
	if strings.TrimSpace(base64Image) == "" {
		src, _, err = s.preview(ctx, d)
		if err != nil {
			return nil, err
		}
	} else {
		src, err = decodeBase64Image(base64Image)
		if err != nil {
			return nil, err
		}
	}

	data, err := s.assistant.EditImage(ctx, prompt, src)
	if err != nil {
		return nil, err
	}
	url := s.upload(ctx, data)

	// the overlay resolves its raster from the layer source and covers the canvas
	layer := core.Layer{
		ID:      ulid.Make().String(),
		Type:    core.LayerOverlay,
		ZIndex:  overlayZIndex,
		Visible: true,
		Source:  url,
		Data:    &core.ImageData{Opacity: 1},
	}
	d.Layers = append(d.Layers, layer)
	d.AIMetadata = withMetadata(d.AIMetadata, map[string]any{
		"lastImg2ImgPrompt": prompt,
	})

	logrus.WithFields(logrus.Fields{"design_id": id, "layer_id": layer.ID}).Info("Applied img2img overlay")
	return s.saveDesign(ctx, d)
}

// SuggestCopy returns short marketing lines for the design. An empty brief
// falls back to the design name.
func (s *Service) SuggestCopy(ctx context.Context, userID, id, brief string) ([]string, error) {
	d, err := s.GetDesign(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(brief) == "" {
		brief = d.Name
	}
	return s.assistant.SuggestCopy(ctx, brief)
}

func withMetadata(meta map[string]any, updates map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+len(updates))
	for k, v := range meta {
		out[k] = v
	}
	for k, v := range updates {
		out[k] = v
	}
	return out
}

// decodeBase64Image accepts raw base64 or a base64 data URL.
func decodeBase64Image(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, fmt.Errorf("%w: malformed data URL", core.ErrInvalidDesign)
		}
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: image is not valid base64", core.ErrInvalidDesign)
	}
	return data, nil
}
