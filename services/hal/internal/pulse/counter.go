// services/hal/internal/pulse/counter.go
package pulse

import "sync/atomic"

// Sink receives one call per detected pulse edge. Implementations run in
// interrupt context: no blocking, no allocation, no logging, no floats.
type Sink interface {
	OnPulse()
}

// Counter accumulates pulses between samples. The ISR is the only writer
// (OnPulse); the sampler is the only reader (Take). The raw count is never
// exposed for mutation.
type Counter struct {
	n atomic.Uint32
}

// OnPulse increments the count by exactly one.
func (c *Counter) OnPulse() { c.n.Add(1) }

// Take returns the pulses seen since the previous Take and resets the count
// to zero. Read and reset form one step with respect to OnPulse: a pulse
// either lands in this result or in the next one.
func (c *Counter) Take() uint32 {
	st := enterCritical()
	n := c.n.Swap(0)
	exitCritical(st)
	return n
}

// Peek reads the pending count without resetting it (diagnostics only).
func (c *Counter) Peek() uint32 { return c.n.Load() }

// SinkFunc adapts a plain function to Sink.
type SinkFunc func()

func (f SinkFunc) OnPulse() { f() }
