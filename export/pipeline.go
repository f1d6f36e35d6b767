package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/disintegration/imaging"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"storecanvas/core"
	"storecanvas/presets"
	"storecanvas/render"
)

const (
	DefaultConcurrency = 4
	jpegQuality        = 92
)

// Renderer flattens a design into its base composition.
type Renderer interface {
	Render(ctx context.Context, d *core.Design) (*image.NRGBA, []*render.LayerError, error)
}

// Result is the outcome of one requested preset. Exactly one of Export and Err is set.
type Result struct {
	PresetCode string       `json:"presetCode"`
	Export     *core.Export `json:"export,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	Message    string       `json:"message,omitempty"`
	Err        error        `json:"-"`
}

// Batch is the outcome of one export request, with results in request order.
type Batch struct {
	Results     []Result             `json:"results"`
	LayerErrors []*render.LayerError `json:"layerErrors,omitempty"`
}

// Exports returns the successfully created exports in request order.
func (b *Batch) Exports() []*core.Export {
	out := make([]*core.Export, 0, len(b.Results))
	for _, r := range b.Results {
		if r.Export != nil {
			out = append(out, r.Export)
		}
	}
	return out
}

// Failed counts the presets that did not produce an export.
func (b *Batch) Failed() int {
	n := 0
	for _, r := range b.Results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Pipeline renders a design once and produces one stored, recorded artifact per requested preset.
type Pipeline struct {
	catalog     *presets.Catalog
	renderer    Renderer
	objects     core.ObjectStore
	exports     core.ExportStore
	notifier    core.ExportNotifier
	concurrency int
}

// NewPipeline wires a pipeline. A nil notifier discards progress events and a
// non-positive concurrency uses DefaultConcurrency.
func NewPipeline(catalog *presets.Catalog, renderer Renderer, objects core.ObjectStore, exports core.ExportStore, notifier core.ExportNotifier, concurrency int) *Pipeline {
	if notifier == nil {
		notifier = core.NopNotifier{}
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Pipeline{
		catalog:     catalog,
		renderer:    renderer,
		objects:     objects,
		exports:     exports,
		notifier:    notifier,
		concurrency: concurrency,
	}
}

// Run exports design to every preset in codes. Unknown codes and an
// unsupported format fail the whole request before rendering. After the
// single render each preset succeeds or fails on its own; an empty format
// selects each preset's default encoding.
//
// When ctx is canceled, presets already persisted stay persisted and the
// rest are reported as canceled.
func (p *Pipeline) Run(ctx context.Context, design *core.Design, codes []string, format core.Format) (*Batch, error) {
	log := logrus.WithFields(logrus.Fields{
		"design_id": design.ID,
		"presets":   len(codes),
		"format":    format,
	})

	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: at least one size preset code is required", core.ErrUnknownPreset)
	}
	targets, err := p.catalog.ByCodes(codes)
	if err != nil {
		log.WithError(err).Warn("Rejected export request")
		return nil, err
	}
	if format != "" && !format.Valid() {
		log.Warn("Rejected export request with unsupported format")
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFormat, format)
	}

	p.notifier.ExportStarted(design.ID, codes)
	start := time.Now()

	base, layerErrors, err := p.renderer.Render(ctx, design)
	if err != nil {
		log.WithError(err).Error("Failed to render design")
		p.notifier.ExportFinished(design.ID, 0, len(targets))
		return nil, err
	}

	batch := &Batch{
		Results:     make([]Result, len(targets)),
		LayerErrors: layerErrors,
	}

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, preset := range targets {
		g.Go(func() error {
			var exp *core.Export
			err := ctx.Err()
			if err == nil {
				exp, err = p.exportPreset(ctx, design, base, preset, format)
			}
			batch.Results[i] = newResult(preset.Code, exp, err)

			event := core.ExportEvent{
				DesignID:   design.ID,
				Index:      i,
				Total:      len(targets),
				PresetCode: preset.Code,
				Export:     exp,
				Reason:     core.ErrorCode(err),
			}
			p.notifier.ExportProgress(event)
			return nil
		})
	}
	_ = g.Wait()

	failed := batch.Failed()
	p.notifier.ExportFinished(design.ID, len(targets)-failed, failed)
	log.WithFields(logrus.Fields{
		"succeeded":     len(targets) - failed,
		"failed":        failed,
		"layers_failed": len(layerErrors),
		"duration":      time.Since(start),
	}).Info("Export batch finished")
	return batch, nil
}

func newResult(code string, exp *core.Export, err error) Result {
	if err != nil {
		return Result{PresetCode: code, Reason: core.ErrorCode(err), Message: err.Error(), Err: err}
	}
	return Result{PresetCode: code, Export: exp}
}

// exportPreset resamples the shared base into one preset, stores the encoded
// bytes and records the export. base is never modified.
func (p *Pipeline) exportPreset(ctx context.Context, design *core.Design, base *image.NRGBA, preset core.SizePreset, format core.Format) (*core.Export, error) {
	log := logrus.WithFields(logrus.Fields{
		"design_id": design.ID,
		"preset":    preset.Code,
	})

	if format == "" {
		format = preset.Format
	}
	if err := presets.ValidateExport(preset, design.BaseWidth, design.BaseHeight, format); err != nil {
		log.WithError(err).Warn("Preset failed validation")
		return nil, err
	}

	resized := CoverFit(base, preset.Width, preset.Height)
	data, err := Encode(resized, format)
	if err != nil {
		log.WithError(err).Error("Failed to encode export")
		return nil, err
	}

	obj, err := p.objects.Put(ctx, data, format.ContentType())
	if err != nil {
		log.WithError(err).Error("Failed to store export")
		return nil, wrapStorage(err)
	}

	b := resized.Bounds()
	exp := &core.Export{
		ID:           ulid.Make().String(),
		DesignID:     design.ID,
		SizePresetID: preset.ID,
		Store:        preset.Store,
		Format:       format,
		Width:        b.Dx(),
		Height:       b.Dy(),
		OutputURL:    obj.URL,
		StorageKey:   obj.Key,
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.exports.CreateExport(ctx, exp); err != nil {
		log.WithError(err).Error("Failed to record export")
		if derr := p.objects.Delete(context.WithoutCancel(ctx), obj.Key); derr != nil {
			log.WithError(derr).Warn("Failed to remove orphaned export object")
		}
		return nil, wrapStorage(err)
	}

	log.WithFields(logrus.Fields{
		"export_id": exp.ID,
		"bytes":     len(data),
	}).Info("Export created")
	return exp, nil
}

func wrapStorage(err error) error {
	if errors.Is(err, core.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrStorage, err)
}

// CoverFit scales img to fill w x h, preserving aspect ratio and cropping the
// centred overflow.
func CoverFit(img image.Image, w, h int) *image.NRGBA {
	return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos)
}

// Encode encodes img in format. JPEG has no alpha channel, so the image is
// flattened onto white first.
func Encode(img image.Image, format core.Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case core.FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	case core.FormatJPEG:
		b := img.Bounds()
		flat := imaging.Overlay(imaging.New(b.Dx(), b.Dy(), color.NRGBA{255, 255, 255, 255}), img, image.Point{}, 1)
		if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFormat, format)
	}
	return buf.Bytes(), nil
}
