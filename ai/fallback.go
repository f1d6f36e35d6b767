package ai

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"storecanvas/core"
)

const (
	placeholderWidth  = 1920
	placeholderHeight = 1080
)

var defaultSuggestions = []string{
	"Beautiful app experience in a snap",
	"Designed for every screen you ship",
	"Store-ready visuals in minutes",
}

// Assistant is the image and copy collaborator used by the design service.
type Assistant interface {
	core.ImageGenerator
	core.CopyWriter
}

// Fallback serves placeholders when the wrapped assistant fails. A nil
// assistant always uses placeholders. Cancellation is never masked.
type Fallback struct {
	next Assistant
}

func WithFallback(next Assistant) *Fallback {
	return &Fallback{next: next}
}

func (f *Fallback) GenerateImage(ctx context.Context, prompt string, width, height int) ([]byte, error) {
	if f.next != nil {
		img, err := f.next.GenerateImage(ctx, prompt, width, height)
		if err == nil || isCanceled(err) {
			return img, err
		}
		logrus.WithError(err).Warn("Image generation failed, using placeholder")
	}
	if width <= 0 || height <= 0 {
		width, height = placeholderWidth, placeholderHeight
	}
	return Placeholder(prompt, width, height)
}

func (f *Fallback) EditImage(ctx context.Context, prompt string, img []byte) ([]byte, error) {
	if f.next != nil {
		out, err := f.next.EditImage(ctx, prompt, img)
		if err == nil || isCanceled(err) {
			return out, err
		}
		logrus.WithError(err).Warn("Image edit failed, using placeholder")
	}
	width, height := placeholderWidth, placeholderHeight
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(img)); err == nil {
		width, height = cfg.Width, cfg.Height
	}
	return Placeholder(prompt, width, height)
}

func (f *Fallback) SuggestCopy(ctx context.Context, brief string) ([]string, error) {
	if f.next != nil {
		lines, err := f.next.SuggestCopy(ctx, brief)
		if isCanceled(err) {
			return nil, err
		}
		if err == nil && len(lines) > 0 {
			return lines, nil
		}
		if err != nil {
			logrus.WithError(err).Warn("Copy suggestion failed, using defaults")
		}
	}
	out := make([]string, len(defaultSuggestions))
	copy(out, defaultSuggestions)
	return out, nil
}

// Placeholder renders a solid PNG whose colour is derived from prompt.
func Placeholder(prompt string, width, height int) ([]byte, error) {
	hash := 0
	for _, r := range prompt {
		hash += int(r)
	}
	c := color.NRGBA{
		R: uint8(hash * 53 % 255),
		G: uint8(hash * 97 % 255),
		B: uint8(hash * 151 % 255),
		A: 255,
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(width, height, c), imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
