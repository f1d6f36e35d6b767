package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// LayerType is the discriminator for Layer.Data.
type LayerType string

const (
	LayerBackground LayerType = "background"
	LayerImage      LayerType = "image"
	LayerLogo       LayerType = "logo"
	LayerText       LayerType = "text"
	LayerShape      LayerType = "shape"
	LayerOverlay    LayerType = "overlay"
	LayerQRCode     LayerType = "qrcode"
)

// Background kinds.
const (
	BackgroundSolid    = "solid"
	BackgroundGradient = "gradient"
	BackgroundImage    = "image"
)

// Shape kinds.
const (
	ShapeRectangle   = "rectangle"
	ShapeRoundedRect = "rounded-rect"
	ShapeCircle      = "circle"
)

// Text alignments.
const (
	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"
)

// DefaultLineHeight is the line height multiplier used when a text layer sets none.
const DefaultLineHeight = 1.2

type (
	// Layer is one visual element of a design. Data holds the payload selected by Type.
	Layer struct {
		ID      string    `json:"id"`
		Type    LayerType `json:"type"`
		ZIndex  int       `json:"zIndex"`
		Visible bool      `json:"visible"`
		Locked  bool      `json:"locked"`
		Source  string    `json:"source,omitempty"`
		Data    LayerData `json:"data"`
	}

	// LayerData is implemented by every layer payload.
	LayerData interface {
		layerData()
	}

	Gradient struct {
		Colors []string  `json:"colors"`
		Stops  []float64 `json:"stops"`
		Angle  float64   `json:"angle"`
	}

	// BackgroundData covers the solid, gradient and image backgrounds. Width and
	// Height of an image background default to the full canvas.
	BackgroundData struct {
		Kind     string    `json:"type"`
		Color    string    `json:"color,omitempty"`
		Gradient *Gradient `json:"gradient,omitempty"`
		URL      string    `json:"url,omitempty"`
		X        float64   `json:"x,omitempty"`
		Y        float64   `json:"y,omitempty"`
		Width    float64   `json:"width,omitempty"`
		Height   float64   `json:"height,omitempty"`
		Rotation float64   `json:"rotation,omitempty"`
		Opacity  float64   `json:"opacity"`
	}

	// ImageData is the payload of image, logo and overlay layers.
	ImageData struct {
		URL      string  `json:"url"`
		X        float64 `json:"x"`
		Y        float64 `json:"y"`
		Width    float64 `json:"width"`
		Height   float64 `json:"height"`
		Rotation float64 `json:"rotation"`
		Opacity  float64 `json:"opacity"`
	}

	TextData struct {
		Content       string  `json:"content"`
		X             float64 `json:"x"`
		Y             float64 `json:"y"`
		Width         float64 `json:"width,omitempty"`
		Rotation      float64 `json:"rotation"`
		FontFamily    string  `json:"fontFamily"`
		FontSize      float64 `json:"fontSize"`
		FontWeight    int     `json:"fontWeight"`
		Color         string  `json:"color"`
		LetterSpacing float64 `json:"letterSpacing"`
		LineHeight    float64 `json:"lineHeight"`
		Align         string  `json:"align"`
	}

	ShapeData struct {
		Shape        string  `json:"shape"`
		X            float64 `json:"x"`
		Y            float64 `json:"y"`
		Width        float64 `json:"width"`
		Height       float64 `json:"height"`
		Rotation     float64 `json:"rotation"`
		FillColor    string  `json:"fillColor"`
		BorderRadius float64 `json:"borderRadius,omitempty"`
		Opacity      float64 `json:"opacity"`
	}

	// QRCodeData renders Content as a square QR code of Size pixels.
	QRCodeData struct {
		Content         string  `json:"content"`
		X               float64 `json:"x"`
		Y               float64 `json:"y"`
		Size            float64 `json:"size"`
		Rotation        float64 `json:"rotation"`
		Color           string  `json:"color"`
		BackgroundColor string  `json:"backgroundColor"`
		Opacity         float64 `json:"opacity"`
	}

	// RawData keeps the payload of a layer type this package does not know.
	RawData []byte
)

func (*BackgroundData) layerData() {}
func (*ImageData) layerData()      {}
func (*TextData) layerData()       {}
func (*ShapeData) layerData()      {}
func (*QRCodeData) layerData()     {}
func (RawData) layerData()         {}

func (r RawData) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// UnmarshalJSON decodes the payload according to the layer type. Missing
// fields take the editor defaults, so an omitted opacity is fully opaque and
// an omitted visible flag means visible.
func (l *Layer) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID      string          `json:"id"`
		Type    LayerType       `json:"type"`
		ZIndex  int             `json:"zIndex"`
		Visible *bool           `json:"visible"`
		Locked  bool            `json:"locked"`
		Source  string          `json:"source"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*l = Layer{
		ID:      raw.ID,
		Type:    raw.Type,
		ZIndex:  raw.ZIndex,
		Visible: raw.Visible == nil || *raw.Visible,
		Locked:  raw.Locked,
		Source:  raw.Source,
	}

	if len(raw.Data) == 0 || string(raw.Data) == "null" {
		return nil
	}

	data := newLayerData(raw.Type)
	if data == nil {
		l.Data = RawData(append([]byte(nil), raw.Data...))
		return nil
	}
	if err := json.Unmarshal(raw.Data, data); err != nil {
		return fmt.Errorf("%w: layer %s: %v", ErrInvalidLayer, raw.ID, err)
	}
	l.Data = data
	return nil
}

func newLayerData(t LayerType) LayerData {
	switch t {
	case LayerBackground:
		return &BackgroundData{Opacity: 1}
	case LayerImage, LayerLogo, LayerOverlay:
		return &ImageData{Opacity: 1}
	case LayerText:
		return &TextData{FontSize: 16, FontWeight: 400, Color: "#000000", LineHeight: DefaultLineHeight, Align: AlignLeft}
	case LayerShape:
		return &ShapeData{Opacity: 1}
	case LayerQRCode:
		return &QRCodeData{Opacity: 1, Color: "#000000", BackgroundColor: "#ffffff"}
	default:
		return nil
	}
}

// KnownLayerType reports whether the renderer can paint layers of type t.
func KnownLayerType(t LayerType) bool {
	return newLayerData(t) != nil
}

// ImageURL returns the raster source of an image-bearing layer: the payload
// url, falling back to the layer's source.
func (l *Layer) ImageURL() string {
	switch d := l.Data.(type) {
	case *ImageData:
		if d.URL != "" {
			return d.URL
		}
	case *BackgroundData:
		if d.Kind != BackgroundImage {
			return ""
		}
		if d.URL != "" {
			return d.URL
		}
	default:
		return ""
	}
	return l.Source
}

// Validate checks that a layer's payload is complete and consistent with its type.
func (l *Layer) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidLayer)
	}
	if !KnownLayerType(l.Type) {
		return fmt.Errorf("%w: layer %s: unsupported type %q", ErrInvalidLayer, l.ID, l.Type)
	}
	if l.Data == nil {
		return fmt.Errorf("%w: layer %s: missing data", ErrInvalidLayer, l.ID)
	}

	var err error
	switch d := l.Data.(type) {
	case *BackgroundData:
		err = l.validateBackground(d)
	case *ImageData:
		err = l.validateImage(d)
	case *TextData:
		err = l.expectType(LayerText)
		if err == nil {
			err = validateText(d)
		}
	case *ShapeData:
		err = l.expectType(LayerShape)
		if err == nil {
			err = validateShape(d)
		}
	case *QRCodeData:
		err = l.expectType(LayerQRCode)
		if err == nil {
			err = validateQRCode(d)
		}
	default:
		err = fmt.Errorf("payload does not match type %q", l.Type)
	}
	if err != nil {
		return fmt.Errorf("%w: layer %s: %v", ErrInvalidLayer, l.ID, err)
	}
	return nil
}

func (l *Layer) expectType(t LayerType) error {
	if l.Type != t {
		return fmt.Errorf("payload does not match type %q", l.Type)
	}
	return nil
}

func (l *Layer) validateBackground(d *BackgroundData) error {
	if l.Type != LayerBackground {
		return fmt.Errorf("payload does not match type %q", l.Type)
	}
	if err := validateOpacity(d.Opacity); err != nil {
		return err
	}
	switch d.Kind {
	case BackgroundSolid:
		return validateColor("color", d.Color)
	case BackgroundGradient:
		g := d.Gradient
		if g == nil || len(g.Colors) == 0 {
			return fmt.Errorf("gradient requires at least one color")
		}
		if len(g.Colors) != len(g.Stops) {
			return fmt.Errorf("gradient has %d colors but %d stops", len(g.Colors), len(g.Stops))
		}
		for i, c := range g.Colors {
			if err := validateColor(fmt.Sprintf("gradient color %d", i), c); err != nil {
				return err
			}
		}
		for i, s := range g.Stops {
			if s < 0 || s > 1 {
				return fmt.Errorf("gradient stop %d out of [0,1]", i)
			}
			if i > 0 && s < g.Stops[i-1] {
				return fmt.Errorf("gradient stops must be non-decreasing")
			}
		}
		return nil
	case BackgroundImage:
		if l.ImageURL() == "" {
			return fmt.Errorf("image background requires url")
		}
		if d.Width < 0 || d.Height < 0 {
			return fmt.Errorf("negative size")
		}
		return nil
	default:
		return fmt.Errorf("unsupported background kind %q", d.Kind)
	}
}

func (l *Layer) validateImage(d *ImageData) error {
	if l.Type != LayerImage && l.Type != LayerLogo && l.Type != LayerOverlay {
		return fmt.Errorf("payload does not match type %q", l.Type)
	}
	if l.ImageURL() == "" {
		return fmt.Errorf("%s layer requires url", l.Type)
	}
	if err := validateOpacity(d.Opacity); err != nil {
		return err
	}
	// overlays default to the full canvas
	if l.Type == LayerOverlay {
		if d.Width < 0 || d.Height < 0 {
			return fmt.Errorf("negative size")
		}
		return nil
	}
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("width and height must be positive")
	}
	return nil
}

func validateText(d *TextData) error {
	if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("text layer requires content")
	}
	if d.FontSize <= 0 {
		return fmt.Errorf("fontSize must be positive")
	}
	if d.Width < 0 {
		return fmt.Errorf("negative width")
	}
	if d.LineHeight < 0 {
		return fmt.Errorf("negative lineHeight")
	}
	switch d.Align {
	case "", AlignLeft, AlignCenter, AlignRight:
	default:
		return fmt.Errorf("unsupported align %q", d.Align)
	}
	return validateColor("color", d.Color)
}

func validateShape(d *ShapeData) error {
	switch d.Shape {
	case ShapeRectangle, ShapeRoundedRect, ShapeCircle:
	default:
		return fmt.Errorf("unsupported shape %q", d.Shape)
	}
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("width and height must be positive")
	}
	if d.BorderRadius < 0 {
		return fmt.Errorf("negative borderRadius")
	}
	if err := validateOpacity(d.Opacity); err != nil {
		return err
	}
	return validateColor("fillColor", d.FillColor)
}

func validateQRCode(d *QRCodeData) error {
	if d.Content == "" {
		return fmt.Errorf("qrcode layer requires content")
	}
	if d.Size <= 0 {
		return fmt.Errorf("size must be positive")
	}
	if err := validateOpacity(d.Opacity); err != nil {
		return err
	}
	if err := validateColor("color", d.Color); err != nil {
		return err
	}
	return validateColor("backgroundColor", d.BackgroundColor)
}

func validateOpacity(o float64) error {
	if o < 0 || o > 1 {
		return fmt.Errorf("opacity %v out of [0,1]", o)
	}
	return nil
}

func validateColor(field, c string) error {
	if _, err := ParseColor(c); err != nil {
		return fmt.Errorf("%s: %v", field, err)
	}
	return nil
}

// PaintOrder returns the visible layers sorted by zIndex ascending. Layers
// sharing a zIndex keep their list order. The input slice is not modified.
func PaintOrder(layers []Layer) []Layer {
	out := make([]Layer, 0, len(layers))
	for _, l := range layers {
		if l.Visible {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ZIndex < out[j].ZIndex
	})
	return out
}
