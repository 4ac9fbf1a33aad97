// Package epd drives the FPC-A005 2.9" 7-color e-ink panel over SPI. It
// owns the packed framebuffer and the panel's power state machine
// (uninitialized → active ⇄ sleeping); all draw/refresh/sleep/wake calls
// are serialized behind one lock so command and data transfers can never
// interleave on the bus.
package epd

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/MePride/pin/internal/errs"
	"github.com/MePride/pin/internal/gfx"
	"github.com/MePride/pin/internal/lock"
)

// RefreshMode selects the panel update waveform. The FPC-A005 performs the
// same data+refresh sequence for all three; the distinction drives the
// refresh statistics and power policy in the display layer.
type RefreshMode int

const (
	RefreshFull RefreshMode = iota
	RefreshPartial
	RefreshFast
)

func (m RefreshMode) String() string {
	switch m {
	case RefreshFull:
		return "full"
	case RefreshPartial:
		return "partial"
	case RefreshFast:
		return "fast"
	}
	return "unknown"
}

// Opts holds the panel geometry and protocol timings. Timings default to
// datasheet values; tests shrink them.
type Opts struct {
	Width  int
	Height int

	// SPIFrequency is the bus clock. Defaults to 4MHz.
	SPIFrequency physic.Frequency

	// ResetHold is how long the reset line is held in each phase of the
	// reset pulse. Defaults to 10ms.
	ResetHold time.Duration

	// PollInterval is the busy-pin polling period. Defaults to 10ms.
	PollInterval time.Duration

	// PowerTimeout bounds the ready wait after power-on/off commands.
	// Defaults to 5s.
	PowerTimeout time.Duration

	// RefreshTimeout bounds the ready wait after a display refresh; the
	// physical ink settles for tens of seconds. Defaults to 30s.
	RefreshTimeout time.Duration
}

// FPCA005 is the reference panel: 600×448, 7 colors, 4 bits per pixel.
var FPCA005 = Opts{Width: 600, Height: 448}

func (o Opts) withDefaults() Opts {
	if o.SPIFrequency == 0 {
		o.SPIFrequency = 4 * physic.MegaHertz
	}
	if o.ResetHold == 0 {
		o.ResetHold = 10 * time.Millisecond
	}
	if o.PollInterval == 0 {
		o.PollInterval = 10 * time.Millisecond
	}
	if o.PowerTimeout == 0 {
		o.PowerTimeout = 5 * time.Second
	}
	if o.RefreshTimeout == 0 {
		o.RefreshTimeout = 30 * time.Second
	}
	return o
}

type devState uint8

const (
	stateUninitialized devState = iota
	stateActive
	stateSleeping
)

// Dev is an open handle to the panel.
type Dev struct {
	opts      Opts
	c         spi.Conn
	port      spi.Port
	dc        gpio.PinOut
	rst       gpio.PinOut
	busy      gpio.PinIn
	maxTxSize int

	mu    *lock.Timed
	fb    *gfx.Packed
	state devState
}

// opTimeout bounds lock acquisition for short draw operations.
const opTimeout = time.Second

// New opens the panel on the given SPI port and control pins, performs the
// hardware reset and configuration sequence, clears the framebuffer to
// white and leaves the panel active. On any failure the partially
// configured handle is unusable and the port is left for the caller to
// close; no other resources are retained.
func New(p spi.Port, dc, rst gpio.PinOut, busy gpio.PinIn, opts *Opts) (*Dev, error) {
	if p == nil || dc == nil || rst == nil || busy == nil || opts == nil {
		return nil, fmt.Errorf("epd: nil port, pin or opts: %w", errs.ErrInvalidArgument)
	}
	o := opts.withDefaults()
	if o.Width <= 0 || o.Height <= 0 || o.Width%2 != 0 {
		return nil, fmt.Errorf("epd: bad panel geometry %dx%d: %w", o.Width, o.Height, errs.ErrInvalidArgument)
	}

	c, err := p.Connect(o.SPIFrequency, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("epd: spi connect: %v: %w", err, errs.ErrDevice)
	}
	maxTxSize := 0
	if limits, ok := c.(conn.Limits); ok {
		maxTxSize = limits.MaxTxSize()
	}
	if maxTxSize == 0 {
		maxTxSize = 4096
	}

	if err := dc.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("epd: dc pin: %v: %w", err, errs.ErrDevice)
	}
	if err := rst.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("epd: rst pin: %v: %w", err, errs.ErrDevice)
	}
	if err := busy.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("epd: busy pin: %v: %w", err, errs.ErrDevice)
	}

	d := &Dev{
		opts:      o,
		c:         c,
		port:      p,
		dc:        dc,
		rst:       rst,
		busy:      busy,
		maxTxSize: maxTxSize,
		mu:        lock.New(),
		fb:        gfx.NewPacked(o.Width, o.Height),
	}

	if err := d.reset(); err != nil {
		return nil, err
	}
	if err := configurePanel(d, &d.opts); err != nil {
		return nil, err
	}
	d.state = stateActive
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("epd.Dev{%dx%d}", d.opts.Width, d.opts.Height)
}

// Size returns the panel dimensions in pixels.
func (d *Dev) Size() (w, h int) { return d.opts.Width, d.opts.Height }

// reset pulses the reset line and waits for the panel to come ready.
func (d *Dev) reset() error {
	if err := d.rst.Out(gpio.Low); err != nil {
		return fmt.Errorf("epd: reset assert: %v: %w", err, errs.ErrDevice)
	}
	time.Sleep(d.opts.ResetHold)
	if err := d.rst.Out(gpio.High); err != nil {
		return fmt.Errorf("epd: reset release: %v: %w", err, errs.ErrDevice)
	}
	time.Sleep(d.opts.ResetHold)
	return d.waitReady(d.opts.PowerTimeout)
}

// sendCommand tags the next transfer as a command via the DC line. The
// line is left in command mode; callers never assume a resting state.
func (d *Dev) sendCommand(cmd byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return fmt.Errorf("epd: dc low: %v: %w", err, errs.ErrDevice)
	}
	if err := d.c.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("epd: command %#02x: %v: %w", cmd, err, errs.ErrDevice)
	}
	return nil
}

// sendData transfers payload bytes in data mode, chunked to the bus limit.
func (d *Dev) sendData(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := d.dc.Out(gpio.High); err != nil {
		return fmt.Errorf("epd: dc high: %v: %w", err, errs.ErrDevice)
	}
	for len(data) > 0 {
		n := len(data)
		if n > d.maxTxSize {
			n = d.maxTxSize
		}
		if err := d.c.Tx(data[:n], nil); err != nil {
			return fmt.Errorf("epd: data transfer: %v: %w", err, errs.ErrDevice)
		}
		data = data[n:]
	}
	return nil
}

// waitReady polls the busy pin until the panel reports idle or the timeout
// elapses. The pin is asserted (high) while the panel processes a command.
// A timeout of 0 waits indefinitely. Polling runs on a ticker so the
// goroutine suspends between samples instead of spinning.
func (d *Dev) waitReady(timeout time.Duration) error {
	if d.busy.Read() == gpio.Low {
		return nil
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	tick := time.NewTicker(d.opts.PollInterval)
	defer tick.Stop()
	for range tick.C {
		if d.busy.Read() == gpio.Low {
			return nil
		}
		if timeout > 0 && !time.Now().Before(deadline) {
			return fmt.Errorf("epd: busy after %v: %w", timeout, errs.ErrTimeout)
		}
	}
	return nil
}

// WaitReady blocks until the panel is idle, up to timeout (0 = forever).
func (d *Dev) WaitReady(timeout time.Duration) error {
	return d.waitReady(timeout)
}

// Busy reports whether the panel is currently processing a command.
func (d *Dev) Busy() bool {
	return d.busy.Read() == gpio.High
}

// Clear fills the framebuffer with the given color. The panel itself is
// untouched until the next Refresh.
func (d *Dev) Clear(c gfx.Color) error {
	if err := d.mu.Acquire(opTimeout); err != nil {
		return err
	}
	defer d.mu.Release()
	if d.state == stateUninitialized {
		return fmt.Errorf("epd: clear on closed handle: %w", errs.ErrInvalidState)
	}
	d.fb.Fill(c)
	return nil
}

// SetPixel writes one framebuffer pixel. Out-of-bounds writes are ignored.
func (d *Dev) SetPixel(x, y int, c gfx.Color) error {
	if err := d.mu.Acquire(opTimeout); err != nil {
		return err
	}
	defer d.mu.Release()
	if d.state == stateUninitialized {
		return fmt.Errorf("epd: draw on closed handle: %w", errs.ErrInvalidState)
	}
	d.fb.SetPixel(x, y, c)
	return nil
}

// PixelAt reads one framebuffer pixel; out-of-bounds reads return White.
func (d *Dev) PixelAt(x, y int) (gfx.Color, error) {
	if err := d.mu.Acquire(opTimeout); err != nil {
		return gfx.White, err
	}
	defer d.mu.Release()
	if d.state == stateUninitialized {
		return gfx.White, fmt.Errorf("epd: read on closed handle: %w", errs.ErrInvalidState)
	}
	return d.fb.PixelAt(x, y), nil
}

// DrawLine draws a line into the framebuffer.
func (d *Dev) DrawLine(x0, y0, x1, y1 int, c gfx.Color) error {
	return d.draw(func() { gfx.Line(d.fb, x0, y0, x1, y1, c) })
}

// DrawRect draws a rectangle into the framebuffer.
func (d *Dev) DrawRect(x, y, w, h int, c gfx.Color, filled bool) error {
	return d.draw(func() { gfx.Rect(d.fb, x, y, w, h, c, filled) })
}

// DrawCircle draws a circle into the framebuffer.
func (d *Dev) DrawCircle(cx, cy, r int, c gfx.Color, filled bool) error {
	return d.draw(func() { gfx.Circle(d.fb, cx, cy, r, c, filled) })
}

func (d *Dev) draw(f func()) error {
	if err := d.mu.Acquire(opTimeout); err != nil {
		return err
	}
	defer d.mu.Release()
	if d.state == stateUninitialized {
		return fmt.Errorf("epd: draw on closed handle: %w", errs.ErrInvalidState)
	}
	f()
	return nil
}

// SetFrame replaces the whole framebuffer with a nibble-packed frame of
// exactly Width·Height/2 bytes.
func (d *Dev) SetFrame(frame []byte) error {
	if err := d.mu.Acquire(opTimeout); err != nil {
		return err
	}
	defer d.mu.Release()
	if d.state == stateUninitialized {
		return fmt.Errorf("epd: set frame on closed handle: %w", errs.ErrInvalidState)
	}
	want := d.opts.Width * d.opts.Height / 2
	if len(frame) != want {
		return fmt.Errorf("epd: frame is %d bytes, want %d: %w", len(frame), want, errs.ErrInvalidArgument)
	}
	copy(d.fb.Bytes(), frame)
	return nil
}

// Refresh transmits the framebuffer and triggers a panel refresh, blocking
// until the ink settles or the refresh timeout elapses. If the panel is
// sleeping it is woken first. Callers should run this on a worker; it can
// block for tens of seconds.
func (d *Dev) Refresh(mode RefreshMode) error {
	if err := d.mu.Acquire(d.opts.RefreshTimeout + d.opts.PowerTimeout); err != nil {
		return err
	}
	defer d.mu.Release()
	if d.state == stateUninitialized {
		return fmt.Errorf("epd: refresh on closed handle: %w", errs.ErrInvalidState)
	}
	if d.state == stateSleeping {
		if err := d.wakeLocked(); err != nil {
			return err
		}
	}
	return refreshPanel(d, d.fb.Bytes(), &d.opts)
}

// Sleep powers the panel off and enters deep sleep. Idempotent.
func (d *Dev) Sleep() error {
	if err := d.mu.Acquire(d.opts.PowerTimeout + opTimeout); err != nil {
		return err
	}
	defer d.mu.Release()
	return d.sleepLocked()
}

func (d *Dev) sleepLocked() error {
	switch d.state {
	case stateUninitialized:
		return fmt.Errorf("epd: sleep on closed handle: %w", errs.ErrInvalidState)
	case stateSleeping:
		return nil
	}
	if err := sleepPanel(d, &d.opts); err != nil {
		return err
	}
	d.state = stateSleeping
	return nil
}

// Wake brings the panel out of deep sleep with a hardware reset followed
// by power-on. Idempotent: waking an active panel issues no commands.
func (d *Dev) Wake() error {
	if err := d.mu.Acquire(d.opts.PowerTimeout + opTimeout); err != nil {
		return err
	}
	defer d.mu.Release()
	if d.state == stateUninitialized {
		return fmt.Errorf("epd: wake on closed handle: %w", errs.ErrInvalidState)
	}
	return d.wakeLocked()
}

func (d *Dev) wakeLocked() error {
	if d.state == stateActive {
		return nil
	}
	if err := d.reset(); err != nil {
		return err
	}
	if err := wakePanel(d, &d.opts); err != nil {
		return err
	}
	d.state = stateActive
	return nil
}

// Halt forces the panel into deep sleep, releases the framebuffer and
// invalidates the handle. The SPI port is closed if it owns a Close.
func (d *Dev) Halt() error {
	if err := d.mu.Acquire(d.opts.PowerTimeout + opTimeout); err != nil {
		return err
	}
	defer d.mu.Release()
	if d.state == stateUninitialized {
		return fmt.Errorf("epd: halt on closed handle: %w", errs.ErrInvalidState)
	}
	sleepErr := d.sleepLocked()
	d.state = stateUninitialized
	d.fb = nil
	if closer, ok := d.port.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("epd: closing spi port: %v: %w", err, errs.ErrDevice)
		}
	}
	return sleepErr
}
