package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
)

// place composites sprite onto dst in place so that the sprite point
// (pivotX, pivotY) lands on the canvas point (atX, atY), after rotating the
// sprite clockwise by deg degrees about that pivot.
func place(dst *image.NRGBA, sprite image.Image, pivotX, pivotY, atX, atY, deg, opacity float64) {
	b := sprite.Bounds()
	if b.Empty() {
		return
	}
	w, h := float64(b.Dx()), float64(b.Dy())

	deg = math.Mod(deg, 360)
	if deg == 0 {
		overlayAt(dst, sprite, image.Pt(int(math.Round(atX-pivotX)), int(math.Round(atY-pivotY))), opacity)
		return
	}

	// imaging.Rotate turns counter-clockwise and grows the bounds around the centre.
	rotated := imaging.Rotate(sprite, -deg, color.NRGBA{})
	rb := rotated.Bounds()

	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	vx, vy := pivotX-w/2, pivotY-h/2
	rx := vx*cos - vy*sin
	ry := vx*sin + vy*cos

	left := atX - (float64(rb.Dx())/2 + rx)
	top := atY - (float64(rb.Dy())/2 + ry)
	overlayAt(dst, rotated, image.Pt(int(math.Round(left)), int(math.Round(top))), opacity)
}

func overlayAt(dst *image.NRGBA, src image.Image, pos image.Point, opacity float64) {
	sb := src.Bounds()
	overlay(dst, image.Rectangle{Min: pos, Max: pos.Add(sb.Size())}, src, sb.Min, opacity)
}

// overlay draws src over the r region of dst, aligning r.Min with sp and
// scaling the source alpha by opacity. Pixels outside r are not touched.
func overlay(dst *image.NRGBA, r image.Rectangle, src image.Image, sp image.Point, opacity float64) {
	if opacity <= 0 {
		return
	}
	if opacity >= 1 {
		draw.Draw(dst, r, src, sp, draw.Over)
		return
	}
	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(opacity * 255))})
	draw.DrawMask(dst, r, src, sp, mask, image.Point{}, draw.Over)
}

// spriteSize converts a float layer size to a pixel size of at least 1.
func spriteSize(w, h float64) (int, int) {
	iw, ih := int(math.Round(w)), int(math.Round(h))
	if iw < 1 {
		iw = 1
	}
	if ih < 1 {
		ih = 1
	}
	return iw, ih
}
