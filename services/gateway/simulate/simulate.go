// Package simulate drives synthetic water flow through a simulated board so
// the gateway can run without hardware.
package simulate

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"flowcode-go/x/logx"
)

const DefaultStep = 100 * time.Millisecond

// Board is the part of hal.Sim the driver needs.
type Board interface {
	Pulse(pin, n int) bool
	Level(pin int) bool
}

// Flow is a constant-rate stream on one meter pin. A Flow with a valve pin
// only runs while that relay is open.
type Flow struct {
	Pin            int
	LPM            float64
	PulsesPerLitre float64
	ValvePin       int // <0: always flowing
	ValveActiveLow bool
}

type Driver struct {
	board Board
	flows []Flow
	carry []float64
	step  time.Duration
	log   zerolog.Logger
}

func New(board Board, flows []Flow, step time.Duration) *Driver {
	if step <= 0 {
		step = DefaultStep
	}
	return &Driver{
		board: board,
		flows: flows,
		carry: make([]float64, len(flows)),
		step:  step,
		log:   logx.Component("simulate"),
	}
}

// Run emits pulses every step until ctx ends.
func (d *Driver) Run(ctx context.Context) {
	if len(d.flows) == 0 {
		return
	}
	d.log.Info().Int("flows", len(d.flows)).Dur("step", d.step).Msg("simulating flow")
	t := time.NewTicker(d.step)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			d.Step(d.step)
		}
	}
}

// Step advances every flow by dt. Fractional pulses carry into the next step.
func (d *Driver) Step(dt time.Duration) {
	for i, f := range d.flows {
		if !d.flowing(f) {
			d.carry[i] = 0
			continue
		}
		exact := f.LPM/60*dt.Seconds()*f.PulsesPerLitre + d.carry[i]
		n := int(exact)
		d.carry[i] = exact - float64(n)
		if n > 0 && !d.board.Pulse(f.Pin, n) {
			d.log.Warn().Int("pin", f.Pin).Msg("no such pin")
		}
	}
}

func (d *Driver) flowing(f Flow) bool {
	if f.LPM <= 0 {
		return false
	}
	if f.ValvePin < 0 {
		return true
	}
	return d.board.Level(f.ValvePin) != f.ValveActiveLow
}
