package core

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

var namedColors = map[string]color.NRGBA{
	"transparent": {0, 0, 0, 0},
	"black":       {0, 0, 0, 255},
	"white":       {255, 255, 255, 255},
	"red":         {255, 0, 0, 255},
	"green":       {0, 128, 0, 255},
	"blue":        {0, 0, 255, 255},
	"yellow":      {255, 255, 0, 255},
	"gray":        {128, 128, 128, 255},
	"grey":        {128, 128, 128, 255},
}

// ParseColor parses the CSS-like color strings the editor produces:
// #rgb, #rgba, #rrggbb, #rrggbbaa, rgb(r,g,b), rgba(r,g,b,a) and a few names.
func ParseColor(s string) (color.NRGBA, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return color.NRGBA{}, fmt.Errorf("empty color")
	}
	if c, ok := namedColors[v]; ok {
		return c, nil
	}
	if strings.HasPrefix(v, "#") {
		return parseHexColor(v[1:])
	}
	if strings.HasPrefix(v, "rgb") {
		return parseFuncColor(v)
	}
	return color.NRGBA{}, fmt.Errorf("unsupported color %q", s)
}

func parseHexColor(h string) (color.NRGBA, error) {
	switch len(h) {
	case 3, 4:
		expanded := make([]byte, 0, len(h)*2)
		for i := 0; i < len(h); i++ {
			expanded = append(expanded, h[i], h[i])
		}
		h = string(expanded)
	case 6, 8:
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color #%s", h)
	}

	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color #%s", h)
	}
	if len(h) == 6 {
		return color.NRGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 255}, nil
	}
	return color.NRGBA{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}, nil
}

func parseFuncColor(v string) (color.NRGBA, error) {
	open := strings.IndexByte(v, '(')
	if open < 0 || !strings.HasSuffix(v, ")") {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", v)
	}
	name := v[:open]
	parts := strings.Split(v[open+1:len(v)-1], ",")
	if (name == "rgb" && len(parts) != 3) || (name == "rgba" && len(parts) != 4) || (name != "rgb" && name != "rgba") {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", v)
	}

	var rgb [3]uint8
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || n < 0 || n > 255 {
			return color.NRGBA{}, fmt.Errorf("invalid color channel in %q", v)
		}
		rgb[i] = uint8(n)
	}

	alpha := uint8(255)
	if len(parts) == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return color.NRGBA{}, fmt.Errorf("invalid alpha in %q", v)
		}
		alpha = uint8(math.Round(a * 255))
	}
	return color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: alpha}, nil
}
