// services/hal/internal/flow/accumulator.go
package flow

import (
	"time"

	"flowcode-go/services/hal/internal/pulse"
	"flowcode-go/types"
	"flowcode-go/x/mathx"
)

// DefaultPulsesPerLitre suits the common YF-S201 hall-effect sensors.
const DefaultPulsesPerLitre = 450

// Binding records where the pulse train is wired.
type Binding struct {
	Pin int // digital input carrying the pulses
	IRQ int // interrupt source; equal to Pin on RP2040
}

// Reading is the outcome of one sample.
type Reading struct {
	At         time.Time
	Elapsed    time.Duration
	Pulses     uint32
	RateLPM    float32
	IntervalML uint32
	TotalML    uint32
	OrderML    uint32
	// Completed is true only on the sample where the active order reached
	// its target.
	Completed bool
}

// Order tracks one dispensing request against a target volume.
type Order struct {
	Target    int32 // mL; <= 0 completes immediately
	Actuator  string
	Volume    uint32 // mL delivered while active
	State     types.OrderState
	StartedAt time.Time
	DoneAt    time.Time
}

// Overshoot is the delivered volume beyond the target.
func (o Order) Overshoot() uint32 {
	if o.Target < 0 || o.Volume <= uint32(o.Target) {
		return 0
	}
	return o.Volume - uint32(o.Target)
}

func (o Order) Status() types.OrderStatus {
	st := types.OrderStatus{
		State:       o.State,
		TargetML:    o.Target,
		DeliveredML: o.Volume,
		OvershootML: o.Overshoot(),
		Actuator:    o.Actuator,
	}
	if o.State == "" {
		st.State = types.OrderIdle
	}
	if !o.StartedAt.IsZero() {
		st.StartedMs = o.StartedAt.UnixMilli()
	}
	if !o.DoneAt.IsZero() {
		st.DoneMs = o.DoneAt.UnixMilli()
	}
	return st
}

// Snapshot is a copy of the accumulator state.
type Snapshot struct {
	Binding        Binding
	PulsesPerLitre float64
	RateLPM        float32
	IntervalML     uint32
	TotalML        uint32
	LastSample     time.Time
	Order          Order
}

// Accumulator is the per-sensor flow state. It is not safe for concurrent
// use except through the pulse sink, which the ISR may call at any time.
type Accumulator struct {
	bind    Binding
	counter pulse.Counter
	ppl     float64

	rate     float32
	interval uint32
	total    uint32  // wraps modulo 2^32
	carry    float64 // sub-mL remainder of previous intervals, within ±0.5
	last     time.Time

	order Order
}

// New creates an accumulator whose first interval starts at now.
// Non-positive calibration falls back to DefaultPulsesPerLitre.
func New(bind Binding, pulsesPerLitre float64, now time.Time) *Accumulator {
	if !(pulsesPerLitre > 0) {
		pulsesPerLitre = DefaultPulsesPerLitre
	}
	return &Accumulator{
		bind:  bind,
		ppl:   pulsesPerLitre,
		last:  now,
		order: Order{State: types.OrderIdle},
	}
}

// Sink is the pulse handler to bind to the sensor's interrupt.
func (a *Accumulator) Sink() pulse.Sink { return &a.counter }

// Sample takes the pending pulses and folds them into rate and volumes.
func (a *Accumulator) Sample(now time.Time) Reading {
	n := a.counter.Take()
	elapsed := now.Sub(a.last)
	litres := float64(n) / a.ppl

	var rate float64
	if secs := elapsed.Seconds(); secs > 0 {
		rate = litres / secs * 60
	}
	exact := litres*1000 + a.carry
	ml := mathx.RoundU32(exact)
	a.carry = 0
	if ml < ^uint32(0) {
		a.carry = exact - float64(ml)
	}

	a.rate = float32(rate)
	a.interval = ml
	a.total += ml
	a.last = now

	r := Reading{
		At:         now,
		Elapsed:    elapsed,
		Pulses:     n,
		RateLPM:    a.rate,
		IntervalML: ml,
		TotalML:    a.total,
	}

	if a.order.State == types.OrderActive {
		a.order.Volume = mathx.SatAddU32(a.order.Volume, ml)
		if a.order.Volume >= uint32(a.order.Target) {
			a.order.State = types.OrderComplete
			a.order.DoneAt = now
			r.Completed = true
		}
	}
	r.OrderML = a.order.Volume
	return r
}

// StartOrder replaces any current order. A non-positive target completes at
// once with zero volume.
func (a *Accumulator) StartOrder(target int32, actuator string, now time.Time) Order {
	a.order = Order{
		Target:    target,
		Actuator:  actuator,
		State:     types.OrderActive,
		StartedAt: now,
	}
	if target <= 0 {
		a.order.State = types.OrderComplete
		a.order.DoneAt = now
	}
	return a.order
}

// CancelOrder stops an active order; ok is false when none was active.
func (a *Accumulator) CancelOrder(now time.Time) (Order, bool) {
	if a.order.State != types.OrderActive {
		return a.order, false
	}
	a.order.State = types.OrderCancelled
	a.order.DoneAt = now
	return a.order, true
}

func (a *Accumulator) Order() Order { return a.order }

func (a *Accumulator) OrderComplete() bool { return a.order.State == types.OrderComplete }

// ResetTotals clears the lifetime volume. Order progress is untouched.
func (a *Accumulator) ResetTotals() { a.total = 0 }

func (a *Accumulator) TotalVolume() uint32 { return a.total }

func (a *Accumulator) Snapshot() Snapshot {
	return Snapshot{
		Binding:        a.bind,
		PulsesPerLitre: a.ppl,
		RateLPM:        a.rate,
		IntervalML:     a.interval,
		TotalML:        a.total,
		LastSample:     a.last,
		Order:          a.order,
	}
}
