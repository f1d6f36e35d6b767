package render

import (
	"image"
	"image/color"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"storecanvas/core"
)

type textLine struct {
	text  string
	width float64
}

// textBlock lays out and draws one text layer.
type textBlock struct {
	face    font.Face
	spacing float64
}

// measure returns the advance of s including kerning and letter spacing
// between glyphs.
func (tb *textBlock) measure(s string) float64 {
	var adv fixed.Int26_6
	prev := rune(-1)
	n := 0
	for _, r := range s {
		if prev >= 0 {
			adv += tb.face.Kern(prev, r)
		}
		a, ok := tb.face.GlyphAdvance(r)
		if !ok {
			a, _ = tb.face.GlyphAdvance(unicode.ReplacementChar)
		}
		adv += a
		prev = r
		n++
	}
	w := fixedToFloat(adv)
	if n > 1 {
		w += tb.spacing * float64(n-1)
	}
	return w
}

// wrap splits content into lines. Explicit newlines always break; when
// maxWidth is positive words are wrapped greedily, and a single word wider
// than maxWidth keeps its own line.
func (tb *textBlock) wrap(content string, maxWidth float64) []textLine {
	var lines []textLine
	for _, para := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		if maxWidth <= 0 {
			lines = append(lines, textLine{text: para, width: tb.measure(para)})
			continue
		}

		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, textLine{})
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			candidate := current + " " + word
			if tb.measure(candidate) <= maxWidth {
				current = candidate
				continue
			}
			lines = append(lines, textLine{text: current, width: tb.measure(current)})
			current = word
		}
		lines = append(lines, textLine{text: current, width: tb.measure(current)})
	}
	return lines
}

func (tb *textBlock) drawLine(dst *image.NRGBA, src image.Image, s string, x, baseline float64) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  src,
		Face: tb.face,
		Dot:  fixed.Point26_6{X: floatToFixed(x), Y: floatToFixed(baseline)},
	}
	var buf [utf8.UTFMax]byte
	prev := rune(-1)
	for _, r := range s {
		if prev >= 0 {
			d.Dot.X += tb.face.Kern(prev, r) + floatToFixed(tb.spacing)
		}
		n := utf8.EncodeRune(buf[:], r)
		d.DrawBytes(buf[:n])
		prev = r
	}
}

// textSprite renders the text block and returns it with the sprite x of the
// block's left edge. Lines are aligned within the wrap width, or within the
// longest line when no width is set. The sprite grows to hold lines wider
// than the wrap width, so an overlong word is never clipped.
func textSprite(fonts *FontSet, d *core.TextData, c color.NRGBA) (*image.NRGBA, float64, error) {
	face, err := fonts.Face(d.FontFamily, d.FontWeight, d.FontSize)
	if err != nil {
		return nil, 0, err
	}
	defer face.Close()

	tb := &textBlock{face: face, spacing: d.LetterSpacing}
	lines := tb.wrap(d.Content, d.Width)

	lineHeight := d.LineHeight
	if lineHeight <= 0 {
		lineHeight = core.DefaultLineHeight
	}
	linePx := d.FontSize * lineHeight

	blockWidth := d.Width
	if blockWidth <= 0 {
		for _, l := range lines {
			blockWidth = math.Max(blockWidth, l.width)
		}
	}

	// x offsets relative to the block's left edge; overlong lines go negative
	// when centred or right aligned
	offsets := make([]float64, len(lines))
	left, right := 0.0, blockWidth
	for i, l := range lines {
		switch d.Align {
		case core.AlignCenter:
			offsets[i] = (blockWidth - l.width) / 2
		case core.AlignRight:
			offsets[i] = blockWidth - l.width
		}
		left = math.Min(left, offsets[i])
		right = math.Max(right, offsets[i]+l.width)
	}
	originX := math.Ceil(-left)

	m := face.Metrics()
	ascent, descent := fixedToFloat(m.Ascent), fixedToFloat(m.Descent)
	// half-leading puts the glyph box in the middle of each line box
	leading := (linePx - (ascent + descent)) / 2

	w, h := spriteSize(math.Ceil(originX+right), math.Ceil(linePx*float64(len(lines))))
	sprite := image.NewNRGBA(image.Rect(0, 0, w, h))
	src := image.NewUniform(c)

	for i, l := range lines {
		if l.text == "" {
			continue
		}
		baseline := float64(i)*linePx + leading + ascent
		tb.drawLine(sprite, src, l.text, originX+offsets[i], baseline)
	}
	return sprite, originX, nil
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}
