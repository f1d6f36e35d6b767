package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/sync/errgroup"

	"storecanvas/core"
)

// prefetchLimit bounds concurrent source downloads within one render.
const prefetchLimit = 4

// LayerError records a layer that was skipped because it could not be painted.
type LayerError struct {
	LayerID string         `json:"layerId"`
	Type    core.LayerType `json:"type"`
	Err     error          `json:"-"`
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("layer %s (%s): %v", e.LayerID, e.Type, e.Err)
}

func (e *LayerError) Unwrap() error {
	return e.Err
}

func (e *LayerError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		LayerID string         `json:"layerId"`
		Type    core.LayerType `json:"type"`
		Message string         `json:"message"`
	}{e.LayerID, e.Type, msg})
}

// Compositor flattens a design's layers into a single raster at the design's base size.
type Compositor struct {
	fetcher SourceFetcher
	fonts   *FontSet
}

func NewCompositor(fetcher SourceFetcher, fonts *FontSet) *Compositor {
	return &Compositor{fetcher: fetcher, fonts: fonts}
}

type fetched struct {
	img image.Image
	err error
}

// Render paints the visible layers in paint order onto a transparent canvas.
// A layer that fails to paint is skipped and reported; only cancellation of
// ctx fails the whole render. The same design and source bytes always
// produce the same pixels.
func (c *Compositor) Render(ctx context.Context, d *core.Design) (*image.NRGBA, []*LayerError, error) {
	if d.BaseWidth <= 0 || d.BaseHeight <= 0 {
		return nil, nil, fmt.Errorf("%w: base size %dx%d", core.ErrInvalidDesign, d.BaseWidth, d.BaseHeight)
	}

	layers := core.PaintOrder(d.Layers)
	sources := c.prefetch(ctx, layers)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	canvas := imaging.New(d.BaseWidth, d.BaseHeight, color.NRGBA{})
	var failed []*LayerError

	for i := range layers {
		l := &layers[i]
		log := logrus.WithFields(logrus.Fields{
			"design_id":  d.ID,
			"layer_id":   l.ID,
			"layer_type": l.Type,
		})

		if !core.KnownLayerType(l.Type) {
			log.Debug("Skipping unsupported layer type")
			continue
		}

		if err := c.paint(canvas, l, sources); err != nil {
			log.WithError(err).Warn("Failed to render layer")
			failed = append(failed, &LayerError{
				LayerID: l.ID,
				Type:    l.Type,
				Err:     fmt.Errorf("%w: %w", core.ErrLayerRender, err),
			})
			continue
		}
	}

	logrus.WithFields(logrus.Fields{
		"design_id": d.ID,
		"layers":    len(layers),
		"failed":    len(failed),
	}).Debug("Design rendered")
	return canvas, failed, nil
}

// prefetch downloads and decodes every distinct image source concurrently.
// Individual failures are kept per url and surface when the layer is painted.
func (c *Compositor) prefetch(ctx context.Context, layers []core.Layer) map[string]fetched {
	var mu sync.Mutex
	out := make(map[string]fetched)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchLimit)
	for i := range layers {
		src := layers[i].ImageURL()
		if src == "" {
			continue
		}
		mu.Lock()
		_, seen := out[src]
		if !seen {
			out[src] = fetched{}
		}
		mu.Unlock()
		if seen {
			continue
		}

		g.Go(func() error {
			img, err := c.load(gctx, src)
			mu.Lock()
			out[src] = fetched{img: img, err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (c *Compositor) load(ctx context.Context, src string) (image.Image, error) {
	if c.fetcher == nil {
		return nil, fmt.Errorf("%w: no source fetcher configured", core.ErrNetwork)
	}
	b, err := c.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(b), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode source: %w", err)
	}
	return img, nil
}

// paint draws one layer onto canvas in place.
func (c *Compositor) paint(canvas *image.NRGBA, l *core.Layer, sources map[string]fetched) error {
	b := canvas.Bounds()
	cw, ch := float64(b.Dx()), float64(b.Dy())

	switch d := l.Data.(type) {
	case *core.BackgroundData:
		return c.paintBackground(canvas, l, d, sources)
	case *core.ImageData:
		x, y, w, h := d.X, d.Y, d.Width, d.Height
		if l.Type == core.LayerOverlay {
			if w <= 0 {
				w = cw
			}
			if h <= 0 {
				h = ch
			}
		}
		if w <= 0 || h <= 0 {
			return errors.New("width and height must be positive")
		}
		img, err := source(l, sources)
		if err != nil {
			return err
		}
		iw, ih := spriteSize(w, h)
		sprite := imaging.Resize(img, iw, ih, imaging.Lanczos)
		place(canvas, sprite, float64(iw)/2, float64(ih)/2, x+w/2, y+h/2, d.Rotation, d.Opacity)
	case *core.TextData:
		col, err := core.ParseColor(d.Color)
		if err != nil {
			return err
		}
		if c.fonts == nil {
			return errors.New("no fonts configured")
		}
		sprite, originX, err := textSprite(c.fonts, d, col)
		if err != nil {
			return err
		}
		place(canvas, sprite, originX, 0, d.X, d.Y, d.Rotation, 1)
	case *core.ShapeData:
		col, err := core.ParseColor(d.FillColor)
		if err != nil {
			return err
		}
		if d.Width <= 0 || d.Height <= 0 {
			return errors.New("width and height must be positive")
		}
		sprite := shapeSprite(d, col)
		sb := sprite.Bounds()
		place(canvas, sprite, float64(sb.Dx())/2, float64(sb.Dy())/2, d.X+d.Width/2, d.Y+d.Height/2, d.Rotation, d.Opacity)
	case *core.QRCodeData:
		sprite, err := qrSprite(d)
		if err != nil {
			return err
		}
		half := float64(sprite.Bounds().Dx()) / 2
		place(canvas, sprite, half, half, d.X+d.Size/2, d.Y+d.Size/2, d.Rotation, d.Opacity)
	case nil:
		return errors.New("missing layer data")
	default:
		return fmt.Errorf("payload %T does not match type %q", l.Data, l.Type)
	}
	return nil
}

func (c *Compositor) paintBackground(canvas *image.NRGBA, l *core.Layer, d *core.BackgroundData, sources map[string]fetched) error {
	b := canvas.Bounds()
	w, h := b.Dx(), b.Dy()

	switch d.Kind {
	case core.BackgroundSolid:
		col, err := core.ParseColor(d.Color)
		if err != nil {
			return err
		}
		overlay(canvas, b, image.NewUniform(col), image.Point{}, d.Opacity)
	case core.BackgroundGradient:
		g := d.Gradient
		if g == nil || len(g.Colors) == 0 || len(g.Colors) != len(g.Stops) {
			return errors.New("gradient needs matching colors and stops")
		}
		colors := make([]color.NRGBA, len(g.Colors))
		for i, s := range g.Colors {
			col, err := core.ParseColor(s)
			if err != nil {
				return err
			}
			colors[i] = col
		}
		overlay(canvas, b, gradientImage(w, h, colors, g.Stops, g.Angle), image.Point{}, d.Opacity)
	case core.BackgroundImage:
		img, err := source(l, sources)
		if err != nil {
			return err
		}
		bw, bh := d.Width, d.Height
		if bw <= 0 {
			bw = float64(w)
		}
		if bh <= 0 {
			bh = float64(h)
		}
		iw, ih := spriteSize(bw, bh)
		sprite := imaging.Resize(img, iw, ih, imaging.Lanczos)
		place(canvas, sprite, float64(iw)/2, float64(ih)/2, d.X+bw/2, d.Y+bh/2, d.Rotation, d.Opacity)
	default:
		return fmt.Errorf("unsupported background kind %q", d.Kind)
	}
	return nil
}

func source(l *core.Layer, sources map[string]fetched) (image.Image, error) {
	src := l.ImageURL()
	if src == "" {
		return nil, errors.New("layer has no source url")
	}
	f, ok := sources[src]
	if !ok {
		return nil, fmt.Errorf("source %s was not fetched", truncate(src))
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.img, nil
}

func qrSprite(d *core.QRCodeData) (image.Image, error) {
	fg, err := core.ParseColor(d.Color)
	if err != nil {
		return nil, err
	}
	bg, err := core.ParseColor(d.BackgroundColor)
	if err != nil {
		return nil, err
	}
	q, err := qrcode.New(d.Content, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	q.ForegroundColor = fg
	q.BackgroundColor = bg

	size, _ := spriteSize(d.Size, d.Size)
	img := q.Image(size)
	if img.Bounds().Dx() != size {
		img = imaging.Resize(img, size, size, imaging.NearestNeighbor)
	}
	return img, nil
}
