package presets

import (
	"fmt"
	"strings"

	"storecanvas/core"
)

// Google Play edge limits in pixels. The longer edge may be at most
// googleMaxAspect times the shorter one.
const (
	googleMinEdge   = 320
	googleMaxEdge   = 3840
	googleMaxAspect = 2
)

// builtin is the process-wide preset table. It is never handed out directly.
var builtin = []core.SizePreset{
	apple("apple_iphone_6_7_portrait", `Apple iPhone 6.7" Portrait`, 1290, 2796),
	apple("apple_iphone_6_7_landscape", `Apple iPhone 6.7" Landscape`, 2796, 1290),
	apple("apple_iphone_6_5_portrait", `Apple iPhone 6.5" Portrait`, 1284, 2778),
	apple("apple_iphone_6_5_landscape", `Apple iPhone 6.5" Landscape`, 2778, 1284),
	apple("apple_iphone_5_5_portrait", `Apple iPhone 5.5" Portrait`, 1242, 2208),
	apple("apple_iphone_5_5_landscape", `Apple iPhone 5.5" Landscape`, 2208, 1242),
	apple("apple_ipad_12_9_portrait", `Apple iPad 12.9" Portrait`, 2048, 2732),
	apple("apple_ipad_12_9_landscape", `Apple iPad 12.9" Landscape`, 2732, 2048),
	google("google_play_feature_graphic", "Google Play Feature Graphic", 1024, 500, core.FormatJPEG, core.CategoryFeatureGraphic),
	google("google_play_phone_screenshot", "Google Play Phone Screenshot", 1080, 2160, core.FormatPNG, core.CategoryScreenshot),
	google("google_play_icon", "Google Play App Icon Helper", 512, 512, core.FormatPNG, core.CategoryIcon),
}

func apple(code, label string, w, h int) core.SizePreset {
	return newPreset(code, label, core.StoreAppleAppStore, w, h, core.FormatPNG, core.CategoryScreenshot)
}

func google(code, label string, w, h int, f core.Format, c core.PresetCategory) core.SizePreset {
	return newPreset(code, label, core.StoreGooglePlay, w, h, f, c)
}

func newPreset(code, label string, store core.StoreID, w, h int, f core.Format, c core.PresetCategory) core.SizePreset {
	return core.SizePreset{
		ID:          strings.ReplaceAll(code, "_", "-"),
		Code:        code,
		Label:       label,
		Store:       store,
		Width:       w,
		Height:      h,
		AspectRatio: float64(w) / float64(h),
		Format:      f,
		Category:    c,
	}
}

// Catalog is a read-only preset registry, safe for concurrent use.
type Catalog struct {
	presets []core.SizePreset
	byCode  map[string]int
}

// NewCatalog returns the catalog of built-in store presets.
func NewCatalog() *Catalog {
	return newCatalog(builtin)
}

func newCatalog(presets []core.SizePreset) *Catalog {
	c := &Catalog{
		presets: append([]core.SizePreset(nil), presets...),
		byCode:  make(map[string]int, len(presets)),
	}
	for i, p := range c.presets {
		c.byCode[p.Code] = i
	}
	return c
}

// List returns the presets matching the store and category filters. Empty
// filters match everything. The result is a fresh copy.
func (c *Catalog) List(store core.StoreID, category core.PresetCategory) []core.SizePreset {
	out := make([]core.SizePreset, 0, len(c.presets))
	for _, p := range c.presets {
		if store != "" && p.Store != store {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Get resolves a single preset code.
func (c *Catalog) Get(code string) (core.SizePreset, bool) {
	i, ok := c.byCode[code]
	if !ok {
		return core.SizePreset{}, false
	}
	return c.presets[i], true
}

// ByCodes resolves every code in order and fails on the first unknown one.
func (c *Catalog) ByCodes(codes []string) ([]core.SizePreset, error) {
	out := make([]core.SizePreset, 0, len(codes))
	for _, code := range codes {
		p, ok := c.Get(code)
		if !ok {
			return nil, fmt.Errorf("%w: %s", core.ErrUnknownPreset, code)
		}
		out = append(out, p)
	}
	return out, nil
}

// ValidateExport checks a preset against the base design size and the
// owning store's policy.
func ValidateExport(preset core.SizePreset, baseWidth, baseHeight int, format core.Format) error {
	if !format.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidFormat, format)
	}

	switch preset.Store {
	case core.StoreAppleAppStore:
		if preset.Width > baseWidth || preset.Height > baseHeight {
			return fmt.Errorf("%w: %s needs %dx%d, base is %dx%d",
				core.ErrBaseTooSmall, preset.Code, preset.Width, preset.Height, baseWidth, baseHeight)
		}
	case core.StoreGooglePlay:
		short, long := preset.Width, preset.Height
		if short > long {
			short, long = long, short
		}
		if short < googleMinEdge || long > googleMaxEdge {
			return fmt.Errorf("%w: %s edges must be between %dpx and %dpx",
				core.ErrAspectOrSizeOutOfRange, preset.Code, googleMinEdge, googleMaxEdge)
		}
		if long > googleMaxAspect*short {
			return fmt.Errorf("%w: %s aspect ratio exceeds %d:1",
				core.ErrAspectOrSizeOutOfRange, preset.Code, googleMaxAspect)
		}
	}
	return nil
}
