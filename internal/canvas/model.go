// Package canvas holds the layered scene model, its persistence, the pure
// rendering engine and the manager facade tying them together.
package canvas

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/MePride/pin/internal/errs"
	"github.com/MePride/pin/internal/gfx"
)

// Model limits. Identifier and text limits count characters, not bytes.
const (
	MaxIDLen     = 31
	MaxNameLen   = 63
	MaxElements  = 50
	MaxTextLen   = 511
	MaxImageSize = 64 * 1024
)

// ElementType discriminates the element variant. The integer values are
// part of the wire format.
type ElementType int

const (
	TypeText ElementType = iota
	TypeImage
	TypeRect
	TypeLine
	TypeCircle
)

func (t ElementType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeImage:
		return "image"
	case TypeRect:
		return "rect"
	case TypeLine:
		return "line"
	case TypeCircle:
		return "circle"
	}
	return "unknown"
}

// Align is the horizontal text alignment. Wire values are 0..2.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// FontSize is one of the four supported placeholder glyph sizes. The wire
// value is the pixel height itself.
type FontSize int

const (
	FontSmall  FontSize = 12
	FontMedium FontSize = 16
	FontLarge  FontSize = 24
	FontXLarge FontSize = 32
)

func (f FontSize) valid() bool {
	switch f {
	case FontSmall, FontMedium, FontLarge, FontXLarge:
		return true
	}
	return false
}

// ImageFormat is the declared encoding of a stored image payload. Nothing
// decodes it yet; it is carried for clients.
type ImageFormat int

const (
	FormatBMP ImageFormat = iota
	FormatPNG
	FormatJPG
)

// Bounds is an element's bounding box: signed position, unsigned size.
type Bounds struct {
	X, Y          int16
	Width, Height uint16
}

// TextProps is the Text variant payload. Bold and italic are stored and
// round-tripped but do not change the placeholder rendering.
type TextProps struct {
	Text     string
	FontSize FontSize
	Color    gfx.Color
	Align    Align
	Bold     bool
	Italic   bool
}

// ImageProps is the Image variant payload. ImageID references the image
// store; a dangling reference is tolerated and renders as a placeholder.
type ImageProps struct {
	ImageID             string
	Format              ImageFormat
	MaintainAspectRatio bool
	Opacity             uint8
}

// ShapeProps is the shared payload of the Rect, Line and Circle variants.
type ShapeProps struct {
	FillColor   gfx.Color
	BorderColor gfx.Color
	BorderWidth int
	Filled      bool
}

// Element is one drawable item. Exactly one payload pointer is set,
// matching Type: Text for TypeText, Image for TypeImage, Shape for the
// three shape types.
type Element struct {
	ID      string
	Type    ElementType
	Bounds  Bounds
	ZIndex  uint8
	Visible bool

	Text  *TextProps
	Image *ImageProps
	Shape *ShapeProps
}

// Canvas is a named, layered scene. Element ids are unique within it.
type Canvas struct {
	ID         string
	Name       string
	Background gfx.Color
	Created    int64
	Modified   int64
	Elements   []Element
}

// ImageMeta is the metadata record stored alongside an image payload.
type ImageMeta struct {
	Format ImageFormat `json:"format"`
	Size   int         `json:"size"`
	Stored int64       `json:"stored_time"`
}

// ValidateID checks a canvas or element identifier.
func ValidateID(id string) error {
	if id == "" || utf8.RuneCountInString(id) > MaxIDLen {
		return fmt.Errorf("canvas: id %q empty or longer than %d chars: %w", id, MaxIDLen, errs.ErrInvalidArgument)
	}
	return nil
}

// Validate checks the element's invariants: id, type, bounds-independent
// payload fields, and that the payload pointer matches the type.
func (e *Element) Validate() error {
	if err := ValidateID(e.ID); err != nil {
		return err
	}
	switch e.Type {
	case TypeText:
		if e.Text == nil || e.Image != nil || e.Shape != nil {
			return fmt.Errorf("canvas: element %q: text payload expected: %w", e.ID, errs.ErrInvalidArgument)
		}
		if utf8.RuneCountInString(e.Text.Text) > MaxTextLen {
			return fmt.Errorf("canvas: element %q: text longer than %d chars: %w", e.ID, MaxTextLen, errs.ErrInvalidArgument)
		}
		if !e.Text.FontSize.valid() {
			return fmt.Errorf("canvas: element %q: font size %d: %w", e.ID, e.Text.FontSize, errs.ErrInvalidArgument)
		}
		if !e.Text.Color.Valid() {
			return fmt.Errorf("canvas: element %q: color %d: %w", e.ID, e.Text.Color, errs.ErrInvalidArgument)
		}
		if e.Text.Align < AlignLeft || e.Text.Align > AlignRight {
			return fmt.Errorf("canvas: element %q: align %d: %w", e.ID, e.Text.Align, errs.ErrInvalidArgument)
		}
	case TypeImage:
		if e.Image == nil || e.Text != nil || e.Shape != nil {
			return fmt.Errorf("canvas: element %q: image payload expected: %w", e.ID, errs.ErrInvalidArgument)
		}
		if err := ValidateID(e.Image.ImageID); err != nil {
			return err
		}
		if e.Image.Format < FormatBMP || e.Image.Format > FormatJPG {
			return fmt.Errorf("canvas: element %q: image format %d: %w", e.ID, e.Image.Format, errs.ErrInvalidArgument)
		}
	case TypeRect, TypeLine, TypeCircle:
		if e.Shape == nil || e.Text != nil || e.Image != nil {
			return fmt.Errorf("canvas: element %q: shape payload expected: %w", e.ID, errs.ErrInvalidArgument)
		}
		if !e.Shape.FillColor.Valid() || !e.Shape.BorderColor.Valid() {
			return fmt.Errorf("canvas: element %q: shape color: %w", e.ID, errs.ErrInvalidArgument)
		}
		if e.Shape.BorderWidth < 0 {
			return fmt.Errorf("canvas: element %q: border width %d: %w", e.ID, e.Shape.BorderWidth, errs.ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("canvas: element %q: type %d: %w", e.ID, e.Type, errs.ErrInvalidArgument)
	}
	return nil
}

// Validate checks the canvas's invariants, including element id uniqueness.
func (c *Canvas) Validate() error {
	if err := ValidateID(c.ID); err != nil {
		return err
	}
	if utf8.RuneCountInString(c.Name) > MaxNameLen {
		return fmt.Errorf("canvas: name longer than %d chars: %w", MaxNameLen, errs.ErrInvalidArgument)
	}
	if !c.Background.Valid() {
		return fmt.Errorf("canvas: background color %d: %w", c.Background, errs.ErrInvalidArgument)
	}
	if len(c.Elements) > MaxElements {
		return fmt.Errorf("canvas: %d elements exceeds %d: %w", len(c.Elements), MaxElements, errs.ErrExhausted)
	}
	seen := make(map[string]bool, len(c.Elements))
	for i := range c.Elements {
		e := &c.Elements[i]
		if err := e.Validate(); err != nil {
			return err
		}
		if seen[e.ID] {
			return fmt.Errorf("canvas: duplicate element id %q: %w", e.ID, errs.ErrAlreadyExists)
		}
		seen[e.ID] = true
	}
	return nil
}

// FindElement returns the index of the element with the given id, or -1.
func (c *Canvas) FindElement(id string) int {
	for i := range c.Elements {
		if c.Elements[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy; the render path takes copies so callers can
// keep mutating the original.
func (c *Canvas) Clone() *Canvas {
	out := *c
	out.Elements = make([]Element, len(c.Elements))
	for i := range c.Elements {
		out.Elements[i] = c.Elements[i]
		if p := c.Elements[i].Text; p != nil {
			cp := *p
			out.Elements[i].Text = &cp
		}
		if p := c.Elements[i].Image; p != nil {
			cp := *p
			out.Elements[i].Image = &cp
		}
		if p := c.Elements[i].Shape; p != nil {
			cp := *p
			out.Elements[i].Shape = &cp
		}
	}
	return &out
}

// Wire format. Field names and integer enum encodings are fixed for
// compatibility with existing clients; the Go model marshals through these
// intermediate shapes.

type elementWire struct {
	ID      string          `json:"id"`
	Type    int             `json:"type"`
	X       int             `json:"x"`
	Y       int             `json:"y"`
	Width   int             `json:"width"`
	Height  int             `json:"height"`
	ZIndex  int             `json:"z_index"`
	Visible bool            `json:"visible"`
	Props   json.RawMessage `json:"props"`
}

type textWire struct {
	Text     string `json:"text"`
	FontSize int    `json:"font_size"`
	Color    int    `json:"color"`
	Align    int    `json:"align"`
	Bold     bool   `json:"bold"`
	Italic   bool   `json:"italic"`
}

type imageWire struct {
	ImageID             string `json:"image_id"`
	Format              int    `json:"format"`
	MaintainAspectRatio bool   `json:"maintain_aspect_ratio"`
	Opacity             int    `json:"opacity"`
}

type shapeWire struct {
	FillColor   int  `json:"fill_color"`
	BorderColor int  `json:"border_color"`
	BorderWidth int  `json:"border_width"`
	Filled      bool `json:"filled"`
}

func (e Element) MarshalJSON() ([]byte, error) {
	w := elementWire{
		ID:      e.ID,
		Type:    int(e.Type),
		X:       int(e.Bounds.X),
		Y:       int(e.Bounds.Y),
		Width:   int(e.Bounds.Width),
		Height:  int(e.Bounds.Height),
		ZIndex:  int(e.ZIndex),
		Visible: e.Visible,
	}
	var props any
	switch {
	case e.Text != nil:
		props = textWire{
			Text:     e.Text.Text,
			FontSize: int(e.Text.FontSize),
			Color:    int(e.Text.Color),
			Align:    int(e.Text.Align),
			Bold:     e.Text.Bold,
			Italic:   e.Text.Italic,
		}
	case e.Image != nil:
		props = imageWire{
			ImageID:             e.Image.ImageID,
			Format:              int(e.Image.Format),
			MaintainAspectRatio: e.Image.MaintainAspectRatio,
			Opacity:             int(e.Image.Opacity),
		}
	case e.Shape != nil:
		props = shapeWire{
			FillColor:   int(e.Shape.FillColor),
			BorderColor: int(e.Shape.BorderColor),
			BorderWidth: e.Shape.BorderWidth,
			Filled:      e.Shape.Filled,
		}
	default:
		props = struct{}{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return nil, err
	}
	w.Props = raw
	return json.Marshal(w)
}

func (e *Element) UnmarshalJSON(data []byte) error {
	var w elementWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("canvas: element: %v: %w", err, errs.ErrInvalidArgument)
	}
	*e = Element{
		ID:   w.ID,
		Type: ElementType(w.Type),
		Bounds: Bounds{
			X: int16(w.X), Y: int16(w.Y),
			Width: uint16(w.Width), Height: uint16(w.Height),
		},
		ZIndex:  uint8(w.ZIndex),
		Visible: w.Visible,
	}
	if len(w.Props) == 0 {
		w.Props = []byte("{}")
	}
	switch e.Type {
	case TypeText:
		var p textWire
		if err := json.Unmarshal(w.Props, &p); err != nil {
			return fmt.Errorf("canvas: element %q props: %v: %w", w.ID, err, errs.ErrInvalidArgument)
		}
		e.Text = &TextProps{
			Text:     p.Text,
			FontSize: FontSize(p.FontSize),
			Color:    gfx.Color(p.Color),
			Align:    Align(p.Align),
			Bold:     p.Bold,
			Italic:   p.Italic,
		}
	case TypeImage:
		var p imageWire
		if err := json.Unmarshal(w.Props, &p); err != nil {
			return fmt.Errorf("canvas: element %q props: %v: %w", w.ID, err, errs.ErrInvalidArgument)
		}
		e.Image = &ImageProps{
			ImageID:             p.ImageID,
			Format:              ImageFormat(p.Format),
			MaintainAspectRatio: p.MaintainAspectRatio,
			Opacity:             uint8(p.Opacity),
		}
	case TypeRect, TypeLine, TypeCircle:
		var p shapeWire
		if err := json.Unmarshal(w.Props, &p); err != nil {
			return fmt.Errorf("canvas: element %q props: %v: %w", w.ID, err, errs.ErrInvalidArgument)
		}
		e.Shape = &ShapeProps{
			FillColor:   gfx.Color(p.FillColor),
			BorderColor: gfx.Color(p.BorderColor),
			BorderWidth: p.BorderWidth,
			Filled:      p.Filled,
		}
	}
	return nil
}

func (c Canvas) MarshalJSON() ([]byte, error) {
	els := c.Elements
	if els == nil {
		els = []Element{}
	}
	return json.Marshal(struct {
		ID         string    `json:"id"`
		Name       string    `json:"name"`
		Background int       `json:"background_color"`
		Created    int64     `json:"created_time"`
		Modified   int64     `json:"modified_time"`
		Elements   []Element `json:"elements"`
	}{c.ID, c.Name, int(c.Background), c.Created, c.Modified, els})
}

func (c *Canvas) UnmarshalJSON(data []byte) error {
	var w struct {
		ID         string    `json:"id"`
		Name       string    `json:"name"`
		Background int       `json:"background_color"`
		Created    int64     `json:"created_time"`
		Modified   int64     `json:"modified_time"`
		Elements   []Element `json:"elements"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("canvas: %v: %w", err, errs.ErrInvalidArgument)
	}
	*c = Canvas{
		ID:         w.ID,
		Name:       w.Name,
		Background: gfx.Color(w.Background),
		Created:    w.Created,
		Modified:   w.Modified,
		Elements:   w.Elements,
	}
	return nil
}
