// Package battery reads the battery charge state. The device boundary is
// a single Reader interface so the web layer and the status widgets never
// care whether a real fuel gauge is attached.
package battery

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/MePride/pin/internal/errs"
)

// Status is the battery state reported to the API and status widgets.
type Status struct {
	// Percent is the charge level, 0-100.
	Percent int `json:"percent"`
	// VoltageMv is the pack voltage in millivolts, 0 if unknown.
	VoltageMv int `json:"voltage_mv"`
}

// Reader obtains the battery state. Implementations: a mock for
// development machines and an I2C fuel-gauge reader for the device.
type Reader interface {
	Read(ctx context.Context) (Status, error)
}

// PiSugar3-style fuel gauge registers.
const (
	regVoltageHigh = 0x22
	regVoltageLow  = 0x23
	regPercent     = 0x2A

	defaultAddr = 0x57
)

type mockReader struct {
	rnd *rand.Rand
}

// NewMockReader returns a Reader producing plausible random charge levels,
// for development without the hardware.
func NewMockReader() Reader {
	return &mockReader{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (m *mockReader) Read(context.Context) (Status, error) {
	return Status{Percent: 20 + m.rnd.Intn(81)}, nil
}

type i2cReader struct {
	busName string
	addr    uint16
}

// NewI2CReader returns a Reader for a fuel gauge at addr on the named I2C
// bus (empty = first available). The bus is opened per Read so a flaky
// gauge never pins a handle.
func NewI2CReader(busName string, addr uint16) Reader {
	if addr == 0 {
		addr = defaultAddr
	}
	return &i2cReader{busName: busName, addr: addr}
}

func (r *i2cReader) Read(context.Context) (Status, error) {
	if runtime.GOOS != "linux" {
		return Status{}, fmt.Errorf("battery: i2c unavailable on %s: %w", runtime.GOOS, errs.ErrDevice)
	}
	if _, err := host.Init(); err != nil {
		return Status{}, fmt.Errorf("battery: host init: %v: %w", err, errs.ErrDevice)
	}
	bus, err := i2creg.Open(r.busName)
	if err != nil {
		return Status{}, fmt.Errorf("battery: i2c bus %q: %v: %w", r.busName, err, errs.ErrDevice)
	}
	defer bus.Close()

	dev := &i2c.Dev{Bus: bus, Addr: r.addr}
	readReg := func(reg byte) (byte, error) {
		buf := []byte{0}
		if err := dev.Tx([]byte{reg}, buf); err != nil {
			return 0, fmt.Errorf("battery: register %#02x: %v: %w", reg, err, errs.ErrDevice)
		}
		return buf[0], nil
	}

	high, err := readReg(regVoltageHigh)
	if err != nil {
		return Status{}, err
	}
	low, err := readReg(regVoltageLow)
	if err != nil {
		return Status{}, err
	}
	pct, err := readReg(regPercent)
	if err != nil {
		return Status{}, err
	}
	return decodeStatus(high, low, pct), nil
}

// decodeStatus combines the raw gauge registers: the voltage pair is a
// big-endian millivolt value, the percent register is clamped to 100.
func decodeStatus(high, low, pct byte) Status {
	if pct > 100 {
		pct = 100
	}
	return Status{
		Percent:   int(pct),
		VoltageMv: int(uint16(high)<<8 | uint16(low)),
	}
}

// DefaultReader probes the I2C fuel gauge once and falls back to the mock
// when the hardware is absent, so callers always get a working Reader.
func DefaultReader() Reader {
	if runtime.GOOS != "linux" {
		return NewMockReader()
	}
	r := NewI2CReader("", defaultAddr)
	if _, err := r.Read(context.Background()); err != nil {
		return NewMockReader()
	}
	return r
}
