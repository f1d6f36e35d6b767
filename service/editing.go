package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"storecanvas/core"
)

type (
	TransformMode string
	FilterAction  string
)

const (
	TransformUpscale   TransformMode = "upscale"
	TransformDownscale TransformMode = "downscale"
	TransformResize    TransformMode = "resize"

	FilterBlur             FilterAction = "blur"
	FilterBrightness       FilterAction = "brightness"
	FilterRemoveBackground FilterAction = "remove_background"

	// MaxEditDimension bounds either side of an edited image.
	MaxEditDimension = 12000

	defaultBlurSigma  = 3
	maxBlurSigma      = 20
	defaultBrightness = 1.1
	maxBrightness     = 3
	// backgroundThreshold is the RGB distance below which a pixel counts as
	// background colour.
	backgroundThreshold = 35
)

// TransformInput describes a resize of an upload. Upscale and downscale use
// ScaleFactor; resize uses Width and/or Height and keeps the aspect ratio
// when only one is given.
type TransformInput struct {
	Mode        TransformMode `json:"mode"`
	ScaleFactor float64       `json:"scaleFactor"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
}

// FilterInput selects a filter and its optional strength.
type FilterInput struct {
	Action FilterAction `json:"action"`
	Value  float64      `json:"value"`
}

// TransformUpload resizes an upload and stores the result as a new upload.
// The source format is kept when it is PNG or JPEG.
func (s *Service) TransformUpload(ctx context.Context, userID, id string, in TransformInput) (*core.Upload, error) {
	if in.ScaleFactor < 0 || in.Width < 0 || in.Height < 0 || in.Width > MaxEditDimension || in.Height > MaxEditDimension {
		return nil, fmt.Errorf("%w: size out of range", core.ErrInvalidUpload)
	}
	switch in.Mode {
	case TransformUpscale, TransformDownscale, TransformResize:
	default:
		return nil, fmt.Errorf("%w: unsupported mode %q", core.ErrInvalidUpload, in.Mode)
	}
	u, err := s.GetUpload(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	src, err := s.loadUpload(ctx, u)
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	w, h, err := targetSize(b.Dx(), b.Dy(), in)
	if err != nil {
		return nil, err
	}
	out := imaging.Resize(src, w, h, imaging.Lanczos)

	format := core.FormatPNG
	if u.ContentType == core.FormatJPEG.ContentType() {
		format = core.FormatJPEG
	}
	return s.storeEdited(ctx, u, out, format, "edited")
}

// FilterUpload applies a filter to an upload and stores the result as a new
// PNG upload.
func (s *Service) FilterUpload(ctx context.Context, userID, id string, in FilterInput) (*core.Upload, error) {
	if in.Value < 0 {
		return nil, fmt.Errorf("%w: value must be positive", core.ErrInvalidUpload)
	}
	switch in.Action {
	case FilterBlur, FilterBrightness, FilterRemoveBackground:
	default:
		return nil, fmt.Errorf("%w: unsupported action %q", core.ErrInvalidUpload, in.Action)
	}
	u, err := s.GetUpload(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	src, err := s.loadUpload(ctx, u)
	if err != nil {
		return nil, err
	}

	var out *image.NRGBA
	label := ""
	switch in.Action {
	case FilterBlur:
		sigma := float64(defaultBlurSigma)
		if in.Value > 0 {
			sigma = math.Min(in.Value, maxBlurSigma)
		}
		out, label = imaging.Blur(src, sigma), "blurred"
	case FilterBrightness:
		factor := defaultBrightness
		if in.Value > 0 {
			factor = math.Min(in.Value, maxBrightness)
		}
		out, label = brighten(src, factor), "brightened"
	case FilterRemoveBackground:
		out, label = removeBackground(src), "bg-removed"
	}
	return s.storeEdited(ctx, u, out, core.FormatPNG, label)
}

// ConvertUpload re-encodes an upload as format. JPEG output is flattened onto white.
func (s *Service) ConvertUpload(ctx context.Context, userID, id string, format core.Format) (*core.Upload, error) {
	if !format.Valid() {
		return nil, core.ErrInvalidFormat
	}
	u, err := s.GetUpload(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	src, err := s.loadUpload(ctx, u)
	if err != nil {
		return nil, err
	}
	img := imaging.Clone(src)
	if format == core.FormatJPEG {
		b := img.Bounds()
		img = imaging.Overlay(imaging.New(b.Dx(), b.Dy(), color.NRGBA{255, 255, 255, 255}), img, image.Point{}, 1)
	}
	return s.storeEdited(ctx, u, img, format, string(format))
}

func (s *Service) loadUpload(ctx context.Context, u *core.Upload) (image.Image, error) {
	data, err := s.fetcher.Fetch(ctx, u.URL)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode upload %s: %w", u.ID, err)
	}
	return img, nil
}

func (s *Service) storeEdited(ctx context.Context, src *core.Upload, img *image.NRGBA, format core.Format, label string) (*core.Upload, error) {
	var buf bytes.Buffer
	encoding := imaging.PNG
	if format == core.FormatJPEG {
		encoding = imaging.JPEG
	}
	if err := imaging.Encode(&buf, img, encoding); err != nil {
		return nil, fmt.Errorf("failed to encode edited image: %w", err)
	}

	name := "Edited asset"
	if src.Name != "" {
		name = fmt.Sprintf("%s (%s)", src.Name, label)
	}
	b := img.Bounds()
	edited, err := s.storeUpload(ctx, &core.Upload{
		UserID:      src.UserID,
		ProjectID:   src.ProjectID,
		Name:        name,
		Kind:        src.Kind,
		ContentType: format.ContentType(),
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, buf.Bytes())
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"source_id": src.ID, "upload_id": edited.ID, "edit": label}).Debug("Edited upload stored")
	return edited, nil
}

// targetSize computes the output size of a transform, clamped to
// 1..MaxEditDimension on each side.
func targetSize(w, h int, in TransformInput) (int, int, error) {
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: source image has no pixels", core.ErrInvalidUpload)
	}
	clamp := func(v float64) int {
		return int(math.Max(1, math.Min(MaxEditDimension, math.Round(v))))
	}

	switch in.Mode {
	case TransformResize:
		if in.Width == 0 && in.Height == 0 {
			return 0, 0, fmt.Errorf("%w: width or height is required", core.ErrInvalidUpload)
		}
		tw, th := float64(in.Width), float64(in.Height)
		if tw == 0 {
			tw = float64(w) * th / float64(h)
		}
		if th == 0 {
			th = float64(h) * tw / float64(w)
		}
		return clamp(tw), clamp(th), nil
	case TransformUpscale:
		factor := in.ScaleFactor
		if factor <= 1 {
			factor = 2
		}
		return clamp(float64(w) * factor), clamp(float64(h) * factor), nil
	case TransformDownscale:
		factor := in.ScaleFactor
		if factor <= 0 || factor >= 1 {
			factor = 0.5
		}
		return clamp(float64(w) * factor), clamp(float64(h) * factor), nil
	default:
		return 0, 0, fmt.Errorf("%w: unsupported mode %q", core.ErrInvalidUpload, in.Mode)
	}
}

// brighten multiplies every colour channel by factor, keeping alpha.
func brighten(img image.Image, factor float64) *image.NRGBA {
	scale := func(v uint8) uint8 {
		return uint8(math.Min(255, math.Round(float64(v)*factor)))
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: scale(c.R), G: scale(c.G), B: scale(c.B), A: c.A}
	})
}

// removeBackground clears every pixel close to the average corner colour.
func removeBackground(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	b := out.Bounds()
	if b.Empty() {
		return out
	}

	var r, g, bl float64
	for _, p := range []image.Point{{b.Min.X, b.Min.Y}, {b.Max.X - 1, b.Min.Y}, {b.Min.X, b.Max.Y - 1}, {b.Max.X - 1, b.Max.Y - 1}} {
		c := out.NRGBAAt(p.X, p.Y)
		r, g, bl = r+float64(c.R), g+float64(c.G), bl+float64(c.B)
	}
	bg := [3]float64{math.Round(r / 4), math.Round(g / 4), math.Round(bl / 4)}

	for i := 0; i < len(out.Pix); i += 4 {
		dr := float64(out.Pix[i]) - bg[0]
		dg := float64(out.Pix[i+1]) - bg[1]
		db := float64(out.Pix[i+2]) - bg[2]
		if math.Sqrt(dr*dr+dg*dg+db*db) < backgroundThreshold {
			out.Pix[i+3] = 0
		}
	}
	return out
}
