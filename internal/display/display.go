// Package display is the device-facing service layer over the raw panel
// driver: it serializes access, keeps refresh statistics, applies the
// partial-vs-full refresh policy and offers small status widgets (text,
// battery, wifi) drawn straight onto the panel framebuffer.
package display

import (
	"fmt"
	"time"

	"github.com/MePride/pin/internal/canvas"
	"github.com/MePride/pin/internal/epd"
	"github.com/MePride/pin/internal/errs"
	"github.com/MePride/pin/internal/gfx"
	"github.com/MePride/pin/internal/lock"
	"github.com/MePride/pin/internal/log"
)

// Panel is the driver surface the service wraps. *epd.Dev implements it.
type Panel interface {
	Clear(c gfx.Color) error
	SetFrame(frame []byte) error
	DrawRect(x, y, w, h int, c gfx.Color, filled bool) error
	Refresh(mode epd.RefreshMode) error
	Sleep() error
	Wake() error
	Size() (w, h int)
}

// Stats are process-wide refresh counters. They are not persisted across
// restarts. The consecutive-partial counter resets on every full refresh.
type Stats struct {
	TotalRefreshes      uint64 `json:"total_refreshes"`
	FullRefreshes       uint64 `json:"full_refreshes"`
	PartialRefreshes    uint64 `json:"partial_refreshes"`
	LastRefresh         int64  `json:"last_refresh_time"`
	LastFullRefresh     int64  `json:"last_full_refresh_time"`
	ConsecutivePartials int    `json:"consecutive_partials"`
}

// Policy controls refresh-mode promotion. After MaxPartialsBeforeFull
// consecutive partial refreshes the next partial is promoted to a full
// refresh to clear accumulated ghosting. 0 disables promotion.
type Policy struct {
	MaxPartialsBeforeFull int
}

var dlog = log.Tag("display")

// Lock bounds: widgets and stats are quick, refreshes wait out the panel.
const (
	widgetWait  = time.Second
	powerWait   = 6 * time.Second
	refreshWait = 35 * time.Second
)

// Service owns a Panel and everything above the wire protocol.
type Service struct {
	mu     *lock.Timed
	panel  Panel
	policy Policy
	stats  Stats
}

func NewService(panel Panel, policy Policy) (*Service, error) {
	if panel == nil {
		return nil, fmt.Errorf("display: nil panel: %w", errs.ErrInvalidArgument)
	}
	return &Service{mu: lock.New(), panel: panel, policy: policy}, nil
}

// Size returns the panel dimensions.
func (s *Service) Size() (w, h int) { return s.panel.Size() }

// Stats returns a snapshot of the refresh counters.
func (s *Service) Stats() (Stats, error) {
	if err := s.mu.Acquire(widgetWait); err != nil {
		return Stats{}, err
	}
	defer s.mu.Release()
	return s.stats, nil
}

// Refresh pushes the current framebuffer to the ink. A partial request is
// promoted to full after too many consecutive partials. Counters
// are only updated after a definitively successful completion.
func (s *Service) Refresh(mode epd.RefreshMode) error {
	if err := s.mu.Acquire(refreshWait); err != nil {
		return err
	}
	defer s.mu.Release()
	return s.refreshLocked(mode)
}

func (s *Service) refreshLocked(mode epd.RefreshMode) error {
	if mode != epd.RefreshFull && s.policy.MaxPartialsBeforeFull > 0 &&
		s.stats.ConsecutivePartials >= s.policy.MaxPartialsBeforeFull {
		dlog.Info("promoting partial refresh to full", "consecutive", s.stats.ConsecutivePartials)
		mode = epd.RefreshFull
	}

	start := time.Now()
	if err := s.panel.Refresh(mode); err != nil {
		dlog.Error("panel refresh failed", err, "mode", mode)
		return err
	}

	s.stats.TotalRefreshes++
	s.stats.LastRefresh = start.Unix()
	if mode == epd.RefreshFull {
		s.stats.FullRefreshes++
		s.stats.LastFullRefresh = start.Unix()
		s.stats.ConsecutivePartials = 0
	} else {
		s.stats.PartialRefreshes++
		s.stats.ConsecutivePartials++
	}
	dlog.Info("panel refresh completed", "mode", mode, "took", time.Since(start))
	return nil
}

// ShowFrame replaces the framebuffer wholesale and performs a full
// refresh. This is the path rendered canvases arrive through.
func (s *Service) ShowFrame(frame []byte) error {
	if err := s.mu.Acquire(refreshWait); err != nil {
		return err
	}
	defer s.mu.Release()
	if err := s.panel.SetFrame(frame); err != nil {
		return err
	}
	return s.refreshLocked(epd.RefreshFull)
}

// Clear blanks the panel to the given color and refreshes.
func (s *Service) Clear(c gfx.Color) error {
	if err := s.mu.Acquire(refreshWait); err != nil {
		return err
	}
	defer s.mu.Release()
	if err := s.panel.Clear(c); err != nil {
		return err
	}
	return s.refreshLocked(epd.RefreshFull)
}

// Sleep puts the panel into deep sleep.
func (s *Service) Sleep() error {
	if err := s.mu.Acquire(powerWait); err != nil {
		return err
	}
	defer s.mu.Release()
	return s.panel.Sleep()
}

// Wake brings the panel back from deep sleep.
func (s *Service) Wake() error {
	if err := s.mu.Acquire(powerWait); err != nil {
		return err
	}
	defer s.mu.Release()
	return s.panel.Wake()
}

// DrawText paints placeholder glyph boxes into the framebuffer, one filled
// box per character sized from the font height. No refresh is triggered.
func (s *Service) DrawText(x, y int, text string, size canvas.FontSize, c gfx.Color) error {
	if err := s.mu.Acquire(widgetWait); err != nil {
		return err
	}
	defer s.mu.Release()
	charW := int(size) / 2
	for i := range []rune(text) {
		if err := s.panel.DrawRect(x+i*charW, y, charW-1, int(size), c, true); err != nil {
			return err
		}
	}
	return nil
}

// DrawBatteryIcon paints a 26×12 battery glyph: outline, tip, and a fill
// bar proportional to the charge. The fill goes red at 20% and below.
func (s *Service) DrawBatteryIcon(x, y int, percentage uint8, c gfx.Color) error {
	if percentage > 100 {
		percentage = 100
	}
	if err := s.mu.Acquire(widgetWait); err != nil {
		return err
	}
	defer s.mu.Release()
	if err := s.panel.DrawRect(x, y, 24, 12, c, false); err != nil {
		return err
	}
	if err := s.panel.DrawRect(x+24, y+3, 2, 6, c, true); err != nil {
		return err
	}
	fillW := int(percentage) * 22 / 100
	if fillW == 0 {
		return nil
	}
	fill := gfx.Green
	if percentage <= 20 {
		fill = gfx.Red
	}
	return s.panel.DrawRect(x+1, y+1, fillW, 10, fill, true)
}

// DrawWifiIcon paints four signal bars, lighting 1 to 4 of them from the
// RSSI. Unlit bars are blanked to white so redrawing in place works.
func (s *Service) DrawWifiIcon(x, y int, rssi int, c gfx.Color) error {
	bars := 1
	switch {
	case rssi >= -30:
		bars = 4
	case rssi >= -50:
		bars = 3
	case rssi >= -70:
		bars = 2
	}
	if err := s.mu.Acquire(widgetWait); err != nil {
		return err
	}
	defer s.mu.Release()
	for i := 0; i < 4; i++ {
		barH := (i + 1) * 4
		col := c
		if i >= bars {
			col = gfx.White
		}
		if err := s.panel.DrawRect(x+i*6, y+16-barH, 4, barH, col, true); err != nil {
			return err
		}
	}
	return nil
}

