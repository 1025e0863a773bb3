// services/hal/internal/platform/factories_rp2xxx.go
//go:build rp2040 || rp2350

package platform

import (
	"encoding/hex"
	"errors"
	"machine"
	"time"

	"tinygo.org/x/drivers/ds18b20"
	"tinygo.org/x/drivers/onewire"

	"flowcode-go/services/hal/internal/halcore"
)

// ConversionTime is the DS18B20 worst case at 12-bit resolution.
const ConversionTime = 750 * time.Millisecond

// DefaultPinFactory maps logical numbers directly to machine.Pin(n), which
// matches Pico GP numbering.
func DefaultPinFactory() halcore.PinFactory { return rp2PinFactory{} }

func DefaultProbeFactory() halcore.ProbeFactory { return rp2ProbeFactory{} }

// ---- GPIO implementation (includes IRQ support) ----

type rp2PinFactory struct{}

func (rp2PinFactory) ByNumber(n int) (halcore.GPIOPin, bool) {
	// RP2 user GPIOs are GP0..GP28.
	if n < 0 || n > 28 {
		return nil, false
	}
	return &rp2Pin{p: machine.Pin(n), n: n}, true
}

type rp2Pin struct {
	p machine.Pin
	n int
}

func (r *rp2Pin) ConfigureInput(pull halcore.Pull) error {
	var mode machine.PinMode
	switch pull {
	case halcore.PullUp:
		mode = machine.PinInputPullup
	case halcore.PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	r.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (r *rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r *rp2Pin) Set(level bool) { r.p.Set(level) }
func (r *rp2Pin) Get() bool      { return r.p.Get() }

func (r *rp2Pin) Toggle() {
	if r.p.Get() {
		r.p.Low()
	} else {
		r.p.High()
	}
}

func (r *rp2Pin) Number() int { return r.n }

// The handler runs in interrupt context.
func (r *rp2Pin) SetIRQ(edge halcore.Edge, handler func()) error {
	return r.p.SetInterrupt(toPinChange(edge), func(machine.Pin) { handler() })
}

func (r *rp2Pin) ClearIRQ() error {
	var zero machine.PinChange
	return r.p.SetInterrupt(zero, nil)
}

func toPinChange(e halcore.Edge) machine.PinChange {
	switch e {
	case halcore.EdgeRising:
		return machine.PinRising
	case halcore.EdgeFalling:
		return machine.PinFalling
	case halcore.EdgeBoth:
		return machine.PinToggle
	default:
		var zero machine.PinChange
		return zero
	}
}

// ---- 1-Wire DS18B20 ----

var errNoProbe = errors.New("onewire: no ds18b20 found")

type rp2ProbeFactory struct{}

func (rp2ProbeFactory) OpenProbe(pin int) (halcore.TempProbe, error) {
	if pin < 0 || pin > 28 {
		return nil, errNoProbe
	}
	ow := onewire.New(machine.Pin(pin))
	ow.Configure(onewire.Config{})
	roms, err := ow.Search(onewire.SEARCH_ROM)
	if err != nil {
		return nil, err
	}
	if len(roms) == 0 {
		return nil, errNoProbe
	}
	return &rp2Probe{ow: ow, dev: ds18b20.New(ow), rom: roms[0]}, nil
}

type rp2Probe struct {
	ow  onewire.Device
	dev ds18b20.Device
	rom []uint8
}

func (p *rp2Probe) ROM() string { return hex.EncodeToString(p.rom) }

// StartConversion checks for a presence pulse first; RequestTemperature
// does not report a missing probe.
func (p *rp2Probe) StartConversion() error {
	if err := p.ow.Reset(); err != nil {
		return err
	}
	p.dev.RequestTemperature(p.rom)
	return nil
}

func (p *rp2Probe) ReadMilliC() (int32, error) { return p.dev.ReadTemperature(p.rom) }
