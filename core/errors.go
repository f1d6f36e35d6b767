package core

import (
	"context"
	"errors"
)

var (
	// repository errors
	ErrNotFound = errors.New("not found")

	// project, design and layer validation
	ErrInvalidProject = errors.New("invalid project")
	ErrInvalidDesign  = errors.New("invalid design")
	ErrInvalidLayer   = errors.New("invalid layer")
	ErrInvalidUpload  = errors.New("invalid upload")

	// preset catalog and export validation
	ErrUnknownPreset          = errors.New("unknown size preset")
	ErrInvalidFormat          = errors.New("invalid format; must be png or jpeg")
	ErrBaseTooSmall           = errors.New("base design is smaller than target preset size")
	ErrAspectOrSizeOutOfRange = errors.New("preset size or aspect ratio out of range")

	// rendering and collaborator I/O
	ErrLayerRender = errors.New("layer render failed")
	ErrNetwork     = errors.New("network error")
	ErrStorage     = errors.New("storage error")
)

// ErrorCode maps an error to the reason string reported for a failed export entry.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownPreset):
		return "unknown_preset"
	case errors.Is(err, ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, ErrBaseTooSmall):
		return "base_too_small"
	case errors.Is(err, ErrAspectOrSizeOutOfRange):
		return "aspect_or_size_out_of_range"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrNetwork):
		return "network_error"
	case errors.Is(err, ErrStorage):
		return "storage_error"
	case errors.Is(err, ErrLayerRender):
		return "layer_render_error"
	default:
		return "internal_error"
	}
}

// IsValidation reports whether err is caused by bad caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidProject) ||
		errors.Is(err, ErrInvalidDesign) ||
		errors.Is(err, ErrInvalidLayer) ||
		errors.Is(err, ErrInvalidUpload) ||
		errors.Is(err, ErrUnknownPreset) ||
		errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrBaseTooSmall) ||
		errors.Is(err, ErrAspectOrSizeOutOfRange)
}
