// services/hal/sim.go
//go:build !rp2040 && !rp2350

package hal

import (
	"context"

	"flowcode-go/bus"
	"flowcode-go/services/hal/internal/platform"
)

// Sim runs the HAL on fake pins that callers drive directly.
type Sim struct {
	pins   *platform.HostPinFactory
	probes *platform.HostProbeFactory
}

func NewSim() *Sim {
	return &Sim{pins: platform.NewHostPinFactory(), probes: platform.NewHostProbeFactory()}
}

// Run serves the HAL on the simulated board until ctx ends.
func (s *Sim) Run(ctx context.Context, conn *bus.Connection) {
	run(ctx, conn, s.pins, s.probes)
}

// Pulse emits n pulses on pin; false if the pin does not exist.
func (s *Sim) Pulse(pin, n int) bool {
	p, ok := s.pins.Get(pin)
	if ok {
		p.Pulse(n)
	}
	return ok
}

// Level reads a simulated pin, e.g. to observe a valve relay.
func (s *Sim) Level(pin int) bool {
	p, ok := s.pins.Get(pin)
	return ok && p.Get()
}

// Press drives a button input; active-low wiring is the caller's concern.
func (s *Sim) Press(pin int, level bool) {
	if p, ok := s.pins.Get(pin); ok {
		p.Set(level)
	}
}

func (s *Sim) SetTemperature(pin int, milliC int32) {
	s.probes.Probe(pin).Set(milliC)
}
