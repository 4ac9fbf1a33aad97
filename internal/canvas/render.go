package canvas

import (
	"sort"

	"github.com/MePride/pin/internal/gfx"
)

// maxGlyphsPerRun bounds the placeholder glyph loop; anything longer runs
// off the panel edge anyway.
const maxGlyphsPerRun = 50

// Render rasterizes the canvas into a fresh w×h indexed buffer: background
// fill, then every visible element in ascending z-index order, ties kept
// in insertion order. Pure with respect to the canvas; the input is never
// mutated. The caller repacks the buffer before handing it to the panel.
func Render(c *Canvas, w, h int) *gfx.Indexed {
	buf := gfx.NewIndexed(w, h)
	buf.Fill(c.Background)

	order := make([]int, len(c.Elements))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return c.Elements[order[a]].ZIndex < c.Elements[order[b]].ZIndex
	})

	for _, i := range order {
		e := &c.Elements[i]
		if !e.Visible {
			continue
		}
		switch e.Type {
		case TypeText:
			renderText(buf, e)
		case TypeImage:
			renderImage(buf, e)
		case TypeRect, TypeLine, TypeCircle:
			renderShape(buf, e)
		}
	}
	return buf
}

// renderText paints one filled box per character as a placeholder glyph.
// The glyph cell is derived from the font size (width = size/2, height =
// size); alignment shifts the run start within the element's width. Real
// font rasterization is deliberately out of scope.
func renderText(buf *gfx.Indexed, e *Element) {
	t := e.Text
	charW := int(t.FontSize) / 2
	charH := int(t.FontSize)

	runes := []rune(t.Text)
	textW := len(runes) * charW
	x := int(e.Bounds.X)
	switch t.Align {
	case AlignCenter:
		x += (int(e.Bounds.Width) - textW) / 2
	case AlignRight:
		x += int(e.Bounds.Width) - textW
	}
	y := int(e.Bounds.Y)

	for i := range runes {
		if i >= maxGlyphsPerRun {
			break
		}
		gfx.Rect(buf, x+i*charW, y, charW-1, charH, t.Color, true)
	}
}

// renderImage draws the image placeholder: a blue outline box with a
// corner-to-corner X. Image payloads are stored but never decoded; this is
// a known simplification, not a gap to fill silently.
func renderImage(buf *gfx.Indexed, e *Element) {
	x, y := int(e.Bounds.X), int(e.Bounds.Y)
	w, h := int(e.Bounds.Width), int(e.Bounds.Height)
	gfx.Rect(buf, x, y, w, h, gfx.Blue, false)
	gfx.Line(buf, x, y, x+w, y+h, gfx.Blue)
	gfx.Line(buf, x+w, y, x, y+h, gfx.Blue)
}

func renderShape(buf *gfx.Indexed, e *Element) {
	s := e.Shape
	x, y := int(e.Bounds.X), int(e.Bounds.Y)
	w, h := int(e.Bounds.Width), int(e.Bounds.Height)

	switch e.Type {
	case TypeRect:
		gfx.Rect(buf, x, y, w, h, s.FillColor, s.Filled)
		if s.BorderWidth > 0 {
			gfx.Rect(buf, x, y, w, h, s.BorderColor, false)
		}
	case TypeLine:
		gfx.Line(buf, x, y, x+w, y+h, s.FillColor)
	case TypeCircle:
		r := w
		if h < w {
			r = h
		}
		gfx.Circle(buf, x+w/2, y+h/2, r/2, s.FillColor, s.Filled)
	}
}
