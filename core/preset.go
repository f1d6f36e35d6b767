package core

type (
	// StoreID names the app store a preset targets.
	StoreID string

	// Format is an output encoding.
	Format string

	// PresetCategory groups presets by listing slot.
	PresetCategory string

	// SizePreset is an immutable catalog entry describing one store-mandated output size.
	SizePreset struct {
		ID          string         `json:"id"`
		Code        string         `json:"code"`
		Label       string         `json:"label"`
		Store       StoreID        `json:"store"`
		Width       int            `json:"width"`
		Height      int            `json:"height"`
		AspectRatio float64        `json:"aspectRatio"`
		Format      Format         `json:"format"`
		Category    PresetCategory `json:"category"`
	}
)

const (
	StoreAppleAppStore StoreID = "apple_app_store"
	StoreGooglePlay    StoreID = "google_play"

	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"

	CategoryScreenshot     PresetCategory = "screenshot"
	CategoryFeatureGraphic PresetCategory = "feature_graphic"
	CategoryTVBanner       PresetCategory = "tv_banner"
	CategoryIcon           PresetCategory = "icon"
)

// Valid reports whether f is a supported output encoding.
func (f Format) Valid() bool {
	return f == FormatPNG || f == FormatJPEG
}

// ContentType returns the MIME type of the encoding.
func (f Format) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Extension returns the file extension used for stored objects.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// ExtensionFor maps an image content type to the extension of stored objects.
// Unknown types get no extension.
func ExtensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	return ""
}
