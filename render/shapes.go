package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"

	"storecanvas/core"
)

// kappa places cubic control points so four segments approximate a circle.
const kappa = 0.5522847498

// shapeSprite rasterizes a shape filled with c into a sprite of the shape's size.
func shapeSprite(d *core.ShapeData, c color.NRGBA) *image.NRGBA {
	w, h := spriteSize(d.Width, d.Height)
	fw, fh := float32(w), float32(h)

	r := vector.NewRasterizer(w, h)
	switch d.Shape {
	case core.ShapeCircle:
		radius := float32(math.Min(float64(w), float64(h)) / 2)
		ellipsePath(r, fw/2, fh/2, radius, radius)
	default:
		radius := float32(math.Min(d.BorderRadius, math.Min(float64(w), float64(h))/2))
		roundedRectPath(r, fw, fh, radius)
	}

	sprite := image.NewNRGBA(image.Rect(0, 0, w, h))
	r.Draw(sprite, sprite.Bounds(), image.NewUniform(c), image.Point{})
	return sprite
}

func roundedRectPath(r *vector.Rasterizer, w, h, radius float32) {
	if radius <= 0 {
		r.MoveTo(0, 0)
		r.LineTo(w, 0)
		r.LineTo(w, h)
		r.LineTo(0, h)
		r.ClosePath()
		return
	}
	k := radius * (1 - kappa)
	r.MoveTo(radius, 0)
	r.LineTo(w-radius, 0)
	r.CubeTo(w-k, 0, w, k, w, radius)
	r.LineTo(w, h-radius)
	r.CubeTo(w, h-k, w-k, h, w-radius, h)
	r.LineTo(radius, h)
	r.CubeTo(k, h, 0, h-k, 0, h-radius)
	r.LineTo(0, radius)
	r.CubeTo(0, k, k, 0, radius, 0)
	r.ClosePath()
}

func ellipsePath(r *vector.Rasterizer, cx, cy, rx, ry float32) {
	ox, oy := rx*kappa, ry*kappa
	r.MoveTo(cx+rx, cy)
	r.CubeTo(cx+rx, cy+oy, cx+ox, cy+ry, cx, cy+ry)
	r.CubeTo(cx-ox, cy+ry, cx-rx, cy+oy, cx-rx, cy)
	r.CubeTo(cx-rx, cy-oy, cx-ox, cy-ry, cx, cy-ry)
	r.CubeTo(cx+ox, cy-ry, cx+rx, cy-oy, cx+rx, cy)
	r.ClosePath()
}

// gradientImage fills a w x h image with a linear gradient. Angle 0 runs left
// to right and positive angles turn clockwise; the gradient line is long
// enough that the canvas corners sit exactly at positions 0 and 1.
func gradientImage(w, h int, colors []color.NRGBA, stops []float64, angle float64) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	if len(colors) == 0 {
		return img
	}

	rad := angle * math.Pi / 180
	sin, cos := math.Sincos(rad)
	length := math.Abs(float64(w)*cos) + math.Abs(float64(h)*sin)
	if length == 0 {
		length = 1
	}
	cx, cy := float64(w)/2, float64(h)/2

	for y := 0; y < h; y++ {
		dy := float64(y) + 0.5 - cy
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			dx := float64(x) + 0.5 - cx
			t := (dx*cos+dy*sin)/length + 0.5
			c := colorAt(colors, stops, t)
			i := x * 4
			row[i], row[i+1], row[i+2], row[i+3] = c.R, c.G, c.B, c.A
		}
	}
	return img
}

// colorAt interpolates the stop colors at position t.
func colorAt(colors []color.NRGBA, stops []float64, t float64) color.NRGBA {
	last := len(colors) - 1
	if last == 0 || t <= stops[0] {
		return colors[0]
	}
	if t >= stops[last] {
		return colors[last]
	}
	for i := 0; i < last; i++ {
		s0, s1 := stops[i], stops[i+1]
		if t > s1 {
			continue
		}
		if s1 <= s0 {
			return colors[i+1]
		}
		return lerpColor(colors[i], colors[i+1], (t-s0)/(s1-s0))
	}
	return colors[last]
}

func lerpColor(a, b color.NRGBA, f float64) color.NRGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*f))
	}
	return color.NRGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}
