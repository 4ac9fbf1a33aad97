package plugin

import (
	"context"
	"time"

	"github.com/MePride/pin/internal/canvas"
	"github.com/MePride/pin/internal/gfx"
)

// Clock is the built-in clock plugin: it renders the current HH:MM into
// its widget region once a minute.
type Clock struct {
	now func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// ClockRegion is a sensible default placement: top-right corner, extra
// large font.
func ClockRegion(panelW int) Region {
	return Region{
		X: panelW - 5*int(canvas.FontXLarge)/2 - 8, Y: 8,
		Width: 5 * int(canvas.FontXLarge) / 2, Height: int(canvas.FontXLarge),
		Color:    gfx.Black,
		FontSize: canvas.FontXLarge,
		Visible:  true,
	}
}

func (c *Clock) Metadata() Metadata {
	return Metadata{
		Name:        "clock",
		Version:     "1.0.0",
		Author:      "Pin Team",
		Description: "Simple clock display plugin",
	}
}

func (c *Clock) Config() Config {
	return Config{UpdateInterval: 30 * time.Second, AutoStart: true}
}

func (c *Clock) Init(ctx context.Context) error { return nil }

func (c *Clock) Update(ctx context.Context) error { return nil }

func (c *Clock) Render(region *Region) error {
	region.Content = c.now().Format("15:04")
	region.Dirty = true
	return nil
}

func (c *Clock) Stop() error { return nil }
