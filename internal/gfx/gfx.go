// Package gfx holds the pixel-buffer types and integer drawing primitives
// shared by the panel driver and the canvas rendering engine. Everything
// here is pure in-memory raster math: no device I/O, no floating point on
// the hot paths, no anti-aliasing.
package gfx

import "image/color"

// Color is one of the seven ink colors the panel can produce. It is stored
// in 4 bits per pixel; values 7-15 are reserved encodings and never used.
type Color uint8

const (
	Black Color = iota
	White
	Red
	Yellow
	Blue
	Green
	Orange
)

// numColors is the count of valid Color values.
const numColors = 7

// Valid reports whether c is one of the seven panel colors.
func (c Color) Valid() bool {
	return c < numColors
}

func (c Color) String() string {
	switch c {
	case Black:
		return "black"
	case White:
		return "white"
	case Red:
		return "red"
	case Yellow:
		return "yellow"
	case Blue:
		return "blue"
	case Green:
		return "green"
	case Orange:
		return "orange"
	}
	return "invalid"
}

// Palette returns the sRGB representation of the seven ink colors, for PNG
// previews. The values match the panel's saturated datasheet palette.
func Palette() color.Palette {
	return color.Palette{
		color.NRGBA{0, 0, 0, 255},       // Black
		color.NRGBA{255, 255, 255, 255}, // White
		color.NRGBA{255, 0, 0, 255},     // Red
		color.NRGBA{255, 255, 0, 255},   // Yellow
		color.NRGBA{0, 0, 255, 255},     // Blue
		color.NRGBA{0, 255, 0, 255},     // Green
		color.NRGBA{255, 140, 0, 255},   // Orange
	}
}

// Surface is a bounded raster of Color cells. Implementations must make
// SetPixel a no-op outside the bounds and PixelAt return White there.
type Surface interface {
	SetPixel(x, y int, c Color)
	PixelAt(x, y int) Color
	Size() (w, h int)
}

// Packed is a nibble-packed framebuffer: two 4-bit pixels per byte, the
// even pixel index in the high nibble. This is the exact layout the panel
// consumes over the wire.
type Packed struct {
	w, h int
	pix  []byte
}

// NewPacked allocates a Packed buffer of w×h pixels filled with White.
// Width must be even so rows pack cleanly; the panel's 600px rows are.
func NewPacked(w, h int) *Packed {
	p := &Packed{w: w, h: h, pix: make([]byte, w*h/2)}
	p.Fill(White)
	return p
}

// Size returns the buffer dimensions in pixels.
func (p *Packed) Size() (int, int) { return p.w, p.h }

// Bytes returns the raw packed buffer. The slice is live, not a copy.
func (p *Packed) Bytes() []byte { return p.pix }

// Fill sets every pixel to c.
func (p *Packed) Fill(c Color) {
	b := byte(c)<<4 | byte(c)&0x0F
	for i := range p.pix {
		p.pix[i] = b
	}
}

// SetPixel writes one pixel, preserving its nibble-sharing neighbor.
// Out-of-bounds coordinates are ignored.
func (p *Packed) SetPixel(x, y int, c Color) {
	if x < 0 || x >= p.w || y < 0 || y >= p.h {
		return
	}
	idx := y*p.w + x
	bi := idx / 2
	if idx%2 == 0 {
		p.pix[bi] = p.pix[bi]&0x0F | byte(c)<<4
	} else {
		p.pix[bi] = p.pix[bi]&0xF0 | byte(c)&0x0F
	}
}

// PixelAt reads one pixel. Out-of-bounds coordinates read as White.
func (p *Packed) PixelAt(x, y int) Color {
	if x < 0 || x >= p.w || y < 0 || y >= p.h {
		return White
	}
	idx := y*p.w + x
	bi := idx / 2
	if idx%2 == 0 {
		return Color(p.pix[bi] >> 4 & 0x0F)
	}
	return Color(p.pix[bi] & 0x0F)
}

// Indexed is a one-byte-per-pixel render buffer. The canvas engine draws
// into this flat form; PackFrame repacks it for the driver.
type Indexed struct {
	w, h int
	pix  []byte
}

// NewIndexed allocates an Indexed buffer of w×h pixels filled with White.
func NewIndexed(w, h int) *Indexed {
	b := &Indexed{w: w, h: h, pix: make([]byte, w*h)}
	b.Fill(White)
	return b
}

// Size returns the buffer dimensions in pixels.
func (b *Indexed) Size() (int, int) { return b.w, b.h }

// Bytes returns the raw buffer, one color index per byte.
func (b *Indexed) Bytes() []byte { return b.pix }

// Fill sets every pixel to c.
func (b *Indexed) Fill(c Color) {
	for i := range b.pix {
		b.pix[i] = byte(c)
	}
}

// SetPixel writes one pixel; out-of-bounds coordinates are ignored.
func (b *Indexed) SetPixel(x, y int, c Color) {
	if x < 0 || x >= b.w || y < 0 || y >= b.h {
		return
	}
	b.pix[y*b.w+x] = byte(c)
}

// PixelAt reads one pixel; out-of-bounds coordinates read as White.
func (b *Indexed) PixelAt(x, y int) Color {
	if x < 0 || x >= b.w || y < 0 || y >= b.h {
		return White
	}
	return Color(b.pix[y*b.w+x])
}

// PackFrame repacks an Indexed buffer into the panel's nibble-packed wire
// layout: two pixels per byte, even index in the high nibble.
func PackFrame(src *Indexed) []byte {
	pix := src.Bytes()
	out := make([]byte, len(pix)/2)
	for i, o := 0, 0; i+1 < len(pix); i, o = i+2, o+1 {
		out[o] = pix[i]<<4&0xF0 | pix[i+1]&0x0F
	}
	return out
}
