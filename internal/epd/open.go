package epd

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/MePride/pin/internal/errs"
)

// Pins names the GPIO lines the panel is wired to, by periph pin name
// (e.g. "GPIO25" or "25").
type Pins struct {
	DC   string
	RST  string
	Busy string
}

// Open initializes the host drivers, opens the named SPI port and control
// pins and returns a ready panel handle. spiPort may be empty to take the
// first available port.
func Open(spiPort string, pins Pins, opts *Opts) (*Dev, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("epd: host init: %v: %w", err, errs.ErrDevice)
	}
	port, err := spireg.Open(spiPort)
	if err != nil {
		return nil, fmt.Errorf("epd: spi port %q: %v: %w", spiPort, err, errs.ErrDevice)
	}
	dc, err := pinByName(pins.DC, "dc")
	if err != nil {
		port.Close()
		return nil, err
	}
	rst, err := pinByName(pins.RST, "rst")
	if err != nil {
		port.Close()
		return nil, err
	}
	busy, err := pinByName(pins.Busy, "busy")
	if err != nil {
		port.Close()
		return nil, err
	}
	d, err := New(port, dc, rst, busy, opts)
	if err != nil {
		port.Close()
		return nil, err
	}
	return d, nil
}

func pinByName(name, role string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("epd: no such %s pin %q: %w", role, name, errs.ErrNotFound)
	}
	return p, nil
}
