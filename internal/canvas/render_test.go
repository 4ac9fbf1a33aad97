package canvas

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MePride/pin/internal/gfx"
)

func TestRenderLayeredScene(t *testing.T) {
	c := &Canvas{
		ID: "c1", Name: "Test", Background: gfx.White,
		Elements: []Element{
			{
				ID: "r1", Type: TypeRect, Visible: true, ZIndex: 0,
				Bounds: Bounds{X: 10, Y: 10, Width: 50, Height: 50},
				Shape:  &ShapeProps{FillColor: gfx.Red, BorderColor: gfx.Red, Filled: true},
			},
			{
				ID: "t1", Type: TypeText, Visible: true, ZIndex: 1,
				Bounds: Bounds{X: 0, Y: 0, Width: 100, Height: 20},
				Text:   &TextProps{Text: "Hi", FontSize: FontSmall, Color: gfx.Black},
			},
		},
	}
	buf := Render(c, 100, 100)

	if got := buf.PixelAt(30, 30); got != gfx.Red {
		t.Errorf("pixel (30,30) = %v, want Red", got)
	}
	// The text placeholder stays inside its own glyph cells; this spot is
	// untouched background.
	if got := buf.PixelAt(5, 5); got != gfx.White {
		t.Errorf("pixel (5,5) = %v, want White background", got)
	}
	// First glyph box of "Hi" at font 12: 5x12 at the element origin.
	if got := buf.PixelAt(2, 2); got != gfx.Black {
		t.Errorf("pixel (2,2) = %v, want Black glyph box", got)
	}
}

func TestRenderZOrder(t *testing.T) {
	rect := func(id string, z uint8, fill gfx.Color) Element {
		return Element{
			ID: id, Type: TypeRect, Visible: true, ZIndex: z,
			Bounds: Bounds{X: 0, Y: 0, Width: 10, Height: 10},
			Shape:  &ShapeProps{FillColor: fill, BorderColor: fill, Filled: true},
		}
	}

	// Higher z-index paints later and wins.
	c := &Canvas{ID: "c1", Background: gfx.White,
		Elements: []Element{rect("top", 5, gfx.Green), rect("bottom", 1, gfx.Red)}}
	if got := Render(c, 20, 20).PixelAt(5, 5); got != gfx.Green {
		t.Errorf("pixel = %v, want Green (higher z on top)", got)
	}

	// Equal z-index: insertion order breaks the tie, later wins.
	c = &Canvas{ID: "c1", Background: gfx.White,
		Elements: []Element{rect("first", 2, gfx.Red), rect("second", 2, gfx.Blue)}}
	if got := Render(c, 20, 20).PixelAt(5, 5); got != gfx.Blue {
		t.Errorf("pixel = %v, want Blue (later insertion on top)", got)
	}
}

func TestRenderSkipsInvisible(t *testing.T) {
	c := &Canvas{ID: "c1", Background: gfx.White,
		Elements: []Element{{
			ID: "r1", Type: TypeRect, Visible: false,
			Bounds: Bounds{X: 0, Y: 0, Width: 10, Height: 10},
			Shape:  &ShapeProps{FillColor: gfx.Black, BorderColor: gfx.Black, Filled: true},
		}}}
	if got := Render(c, 20, 20).PixelAt(5, 5); got != gfx.White {
		t.Errorf("pixel = %v, want White (invisible element painted)", got)
	}
}

func TestRenderDeterministic(t *testing.T) {
	c := &Canvas{ID: "dash", Background: gfx.Yellow, Elements: sampleElements()}
	a := Render(c, 64, 64)
	b := Render(c, 64, 64)
	if diff := cmp.Diff(a.Bytes(), b.Bytes()); diff != "" {
		t.Errorf("repeated renders differ (-first +second):\n%s", diff)
	}
}

func TestRenderDoesNotMutateCanvas(t *testing.T) {
	c := &Canvas{ID: "dash", Background: gfx.Yellow, Elements: sampleElements()}
	before := c.Clone()
	Render(c, 64, 64)
	if diff := cmp.Diff(before, c); diff != "" {
		t.Errorf("Render mutated the canvas (-before +after):\n%s", diff)
	}
}

func TestRenderImagePlaceholder(t *testing.T) {
	c := &Canvas{ID: "c1", Background: gfx.White,
		Elements: []Element{{
			ID: "i1", Type: TypeImage, Visible: true,
			Bounds: Bounds{X: 2, Y: 2, Width: 20, Height: 20},
			Image:  &ImageProps{ImageID: "missing", Format: FormatPNG},
		}}}
	buf := Render(c, 30, 30)

	// Border corner and the crossing point of the X.
	if got := buf.PixelAt(2, 2); got != gfx.Blue {
		t.Errorf("border pixel = %v, want Blue", got)
	}
	if got := buf.PixelAt(12, 12); got != gfx.Blue {
		t.Errorf("diagonal pixel = %v, want Blue", got)
	}
	// Interior away from the diagonals stays background.
	if got := buf.PixelAt(5, 18); got != gfx.White {
		t.Errorf("interior pixel = %v, want White", got)
	}
}

func TestRenderLineAndCircleElements(t *testing.T) {
	c := &Canvas{ID: "c1", Background: gfx.White,
		Elements: []Element{
			{
				ID: "l1", Type: TypeLine, Visible: true,
				Bounds: Bounds{X: 0, Y: 0, Width: 10, Height: 0},
				Shape:  &ShapeProps{FillColor: gfx.Red, BorderColor: gfx.Red},
			},
			{
				ID: "c2", Type: TypeCircle, Visible: true, ZIndex: 1,
				Bounds: Bounds{X: 10, Y: 10, Width: 10, Height: 14},
				Shape:  &ShapeProps{FillColor: gfx.Green, BorderColor: gfx.Green, Filled: true},
			},
		}}
	buf := Render(c, 30, 30)

	for x := 0; x <= 10; x++ {
		if got := buf.PixelAt(x, 0); got != gfx.Red {
			t.Errorf("line pixel (%d,0) = %v, want Red", x, got)
		}
	}
	// Circle center: min(10,14)/2 = 5 radius at (15,17).
	if got := buf.PixelAt(15, 17); got != gfx.Green {
		t.Errorf("circle center = %v, want Green", got)
	}
	if got := buf.PixelAt(15+6, 17); got != gfx.White {
		t.Errorf("outside circle radius = %v, want White", got)
	}
}
