// services/hal/internal/platform/factories_host.go
//go:build !rp2040 && !rp2350

package platform

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"flowcode-go/services/hal/internal/halcore"
)

// HostGPIOMax mirrors the RP2040's user GPIO range.
const HostGPIOMax = 29

// ----------------------------- GPIO (host) -----------------------------------

// FakePin implements GPIOPin and IRQPin for host-side tests and the
// simulator. Edges on the pin invoke the registered handler synchronously,
// standing in for the interrupt.
type FakePin struct {
	mu      sync.RWMutex
	number  int
	level   bool
	modeOut bool
	pull    halcore.Pull
	irqEdge halcore.Edge
	irqFunc func()
}

func (p *FakePin) ConfigureInput(pull halcore.Pull) error {
	p.mu.Lock()
	p.modeOut = false
	p.pull = pull
	if pull == halcore.PullUp {
		p.level = true
	}
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.modeOut = true
	p.level = initial
	p.mu.Unlock()
	return nil
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	old := p.level
	p.level = level
	irq := p.irqFunc
	want := irqWanted(p.irqEdge, edgeFrom(old, level))
	p.mu.Unlock()
	if want && irq != nil {
		irq()
	}
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	v := p.level
	p.mu.RUnlock()
	return v
}

func (p *FakePin) Toggle() { p.Set(!p.Get()) }

func (p *FakePin) Number() int { return p.number }

// IsOutput reports the configured direction.
func (p *FakePin) IsOutput() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.modeOut
}

func (p *FakePin) SetIRQ(edge halcore.Edge, handler func()) error {
	p.mu.Lock()
	p.irqEdge = edge
	p.irqFunc = handler
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ClearIRQ() error {
	p.mu.Lock()
	p.irqEdge = halcore.EdgeNone
	p.irqFunc = nil
	p.mu.Unlock()
	return nil
}

// Pulse drives n complete pulses (rise then fall) from the idle level.
func (p *FakePin) Pulse(n int) {
	idle := p.Get()
	for i := 0; i < n; i++ {
		p.Set(!idle)
		p.Set(idle)
	}
}

func edgeFrom(old, new bool) halcore.Edge {
	switch {
	case !old && new:
		return halcore.EdgeRising
	case old && !new:
		return halcore.EdgeFalling
	default:
		return halcore.EdgeNone
	}
}

func irqWanted(cfg, seen halcore.Edge) bool {
	switch cfg {
	case halcore.EdgeBoth:
		return seen == halcore.EdgeRising || seen == halcore.EdgeFalling
	default:
		return seen != halcore.EdgeNone && cfg == seen
	}
}

// HostPinFactory returns stable *FakePin instances per number.
type HostPinFactory struct {
	mu   sync.Mutex
	pins map[int]*FakePin
}

func NewHostPinFactory() *HostPinFactory {
	return &HostPinFactory{pins: make(map[int]*FakePin)}
}

func (f *HostPinFactory) ByNumber(n int) (halcore.GPIOPin, bool) {
	p, ok := f.Get(n)
	return p, ok
}

// Get exposes the underlying *FakePin so tests can drive edges.
func (f *HostPinFactory) Get(n int) (*FakePin, bool) {
	if n < 0 || n > HostGPIOMax {
		return nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pins == nil {
		f.pins = make(map[int]*FakePin)
	}
	p, ok := f.pins[n]
	if !ok {
		p = &FakePin{number: n}
		f.pins[n] = p
	}
	return p, true
}

// ----------------------------- 1-Wire (host) ---------------------------------

// FakeProbe is a host DS18B20 stand-in whose reading is set by tests.
type FakeProbe struct {
	mu      sync.Mutex
	rom     string
	milliC  int32
	pending bool
	fail    bool
}

func (p *FakeProbe) ROM() string { return p.rom }

func (p *FakeProbe) StartConversion() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errProbe
	}
	p.pending = true
	return nil
}

func (p *FakeProbe) ReadMilliC() (int32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail || !p.pending {
		return 0, errProbe
	}
	p.pending = false
	return p.milliC, nil
}

// Set changes the temperature reported by the next conversion.
func (p *FakeProbe) Set(milliC int32) {
	p.mu.Lock()
	p.milliC = milliC
	p.mu.Unlock()
}

// SetFail makes the probe stop answering.
func (p *FakeProbe) SetFail(fail bool) {
	p.mu.Lock()
	p.fail = fail
	p.mu.Unlock()
}

var errProbe = errors.New("onewire: no presence pulse")

// HostProbeFactory hands out one FakeProbe per pin.
type HostProbeFactory struct {
	mu     sync.Mutex
	probes map[int]*FakeProbe
}

func NewHostProbeFactory() *HostProbeFactory {
	return &HostProbeFactory{probes: make(map[int]*FakeProbe)}
}

func (f *HostProbeFactory) OpenProbe(pin int) (halcore.TempProbe, error) {
	return f.Probe(pin), nil
}

// Probe returns the fake on pin, creating it at 20.0°C.
func (f *HostProbeFactory) Probe(pin int) *FakeProbe {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.probes[pin]
	if !ok {
		p = &FakeProbe{rom: "28-fake-" + strconv.Itoa(pin), milliC: 20000}
		f.probes[pin] = p
	}
	return p
}

// ConversionTime is how long a probe needs after StartConversion.
const ConversionTime = 10 * time.Millisecond

// DefaultPinFactory provides a host GPIO factory.
func DefaultPinFactory() halcore.PinFactory { return NewHostPinFactory() }

func DefaultProbeFactory() halcore.ProbeFactory { return NewHostProbeFactory() }
