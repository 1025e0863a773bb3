package core

import (
	"context"
	"sync"
	"time"

	"flowcode-go/errcode"
	"flowcode-go/services/hal/internal/gpioirq"
	"flowcode-go/services/hal/internal/halcore"
	"flowcode-go/services/hal/internal/pulse"
)

// Ensure the registry satisfies the contract at compile time.
var _ ResourceRegistry = (*Registry)(nil)

// Registry hands out board pins, interrupt bindings and actuators to
// devices. One owner per pin; one owner per actuator id.
type Registry struct {
	pins   halcore.PinFactory
	irq    *gpioirq.Worker
	probes halcore.ProbeFactory

	mu        sync.Mutex
	owners    map[int]pinClaim
	detach    map[int]func()
	streams   map[string]*edgeStream // devID -> stream
	actuators map[string]Actuator
}

type pinClaim struct {
	dev string
	fn  PinFunc
}

func NewRegistry(pins halcore.PinFactory, irq *gpioirq.Worker) *Registry {
	return &Registry{
		pins:      pins,
		irq:       irq,
		owners:    map[int]pinClaim{},
		detach:    map[int]func(){},
		streams:   map[string]*edgeStream{},
		actuators: map[string]Actuator{},
	}
}

// WithProbes sets the 1-Wire probe source.
func (r *Registry) WithProbes(f halcore.ProbeFactory) *Registry {
	r.probes = f
	return r
}

// Start routes debounced edges from the IRQ worker to device streams.
func (r *Registry) Start(ctx context.Context) {
	r.irq.Start(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-r.irq.Events():
				r.mu.Lock()
				s := r.streams[ev.DevID]
				r.mu.Unlock()
				if s != nil {
					s.push(EdgeEvent{Pressed: ev.Pressed, Edge: ev.Edge, TS: ev.TS})
				}
			}
		}
	}()
}

// ---- pins ----

type pinHandle struct {
	n int
	p halcore.GPIOPin
}

func (h pinHandle) Number() int             { return h.n }
func (h pinHandle) AsGPIO() halcore.GPIOPin { return h.p }
func (h pinHandle) AsIRQ() (halcore.IRQPin, bool) {
	ip, ok := h.p.(halcore.IRQPin)
	return ip, ok
}

func (r *Registry) ClaimPin(devID string, pin int, fn PinFunc) (PinHandle, error) {
	p, ok := r.pins.ByNumber(pin)
	if !ok || p == nil {
		return nil, errcode.UnknownPin
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, taken := r.owners[pin]; taken && c.dev != devID {
		return nil, errcode.PinInUse
	}
	r.owners[pin] = pinClaim{dev: devID, fn: fn}
	return pinHandle{n: pin, p: p}, nil
}

func (r *Registry) ReleasePin(devID string, pin int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.owners[pin]; ok && c.dev == devID {
		delete(r.owners, pin)
	}
}

// Owner reports which device holds pin.
func (r *Registry) Owner(pin int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.owners[pin]
	return c.dev, ok
}

func (r *Registry) irqPin(devID string, pin int) (halcore.IRQPin, error) {
	r.mu.Lock()
	c, ok := r.owners[pin]
	r.mu.Unlock()
	if !ok || c.dev != devID {
		return nil, errcode.Wrap(errcode.PinInUse, "irq", nil)
	}
	p, ok := r.pins.ByNumber(pin)
	if !ok {
		return nil, errcode.UnknownPin
	}
	ip, ok := p.(halcore.IRQPin)
	if !ok {
		return nil, errcode.Wrap(errcode.Unsupported, "irq", nil)
	}
	return ip, nil
}

func (r *Registry) OpenProbe(devID string, pin int) (halcore.TempProbe, error) {
	r.mu.Lock()
	c, ok := r.owners[pin]
	r.mu.Unlock()
	if !ok || c.dev != devID || c.fn != FuncOneWire {
		return nil, errcode.Wrap(errcode.PinInUse, "onewire", nil)
	}
	if r.probes == nil {
		return nil, errcode.Wrap(errcode.Unsupported, "onewire", nil)
	}
	return r.probes.OpenProbe(pin)
}

// ---- pulse inputs ----

func (r *Registry) AttachPulse(devID string, pin int, edge halcore.Edge, sink pulse.Sink) error {
	ip, err := r.irqPin(devID, pin)
	if err != nil {
		return err
	}
	cancel, err := r.irq.AttachPulse(devID, ip, edge, sink)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.detach[pin] = cancel
	r.mu.Unlock()
	return nil
}

func (r *Registry) DetachPulse(devID string, pin int) {
	r.mu.Lock()
	cancel := r.detach[pin]
	if c, ok := r.owners[pin]; !ok || c.dev != devID {
		cancel = nil
	}
	if cancel != nil {
		delete(r.detach, pin)
	}
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ---- level inputs ----

type edgeStream struct {
	ch     chan EdgeEvent
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

func (s *edgeStream) Events() <-chan EdgeEvent { return s.ch }

func (s *edgeStream) push(ev EdgeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
	}
}

func (s *edgeStream) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

func (r *Registry) SubscribeGPIOEdges(devID string, pin int, debounce time.Duration, invert bool, buf int) (GPIOEdgeStream, error) {
	ip, err := r.irqPin(devID, pin)
	if err != nil {
		return nil, err
	}
	if buf <= 0 {
		buf = 4
	}
	cancel, err := r.irq.RegisterInput(devID, ip, debounce, invert)
	if err != nil {
		return nil, err
	}
	s := &edgeStream{ch: make(chan EdgeEvent, buf)}
	r.mu.Lock()
	if old := r.streams[devID]; old != nil {
		old.Close()
	}
	r.streams[devID] = s
	r.detach[pin] = cancel
	r.mu.Unlock()
	return s, nil
}

func (r *Registry) UnsubscribeGPIOEdges(devID string, pin int) {
	r.mu.Lock()
	s := r.streams[devID]
	delete(r.streams, devID)
	cancel := r.detach[pin]
	delete(r.detach, pin)
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if s != nil {
		s.Close()
	}
}

// ---- actuators ----

func (r *Registry) RegisterActuator(a Actuator) error {
	id := a.ActuatorID()
	if id == "" {
		return errcode.InvalidParams
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.actuators[id]; ok && cur != a {
		return errcode.ActuatorInUse
	}
	r.actuators[id] = a
	return nil
}

// UnregisterActuator removes a only if it still owns its id.
func (r *Registry) UnregisterActuator(a Actuator) {
	id := a.ActuatorID()
	r.mu.Lock()
	if cur, ok := r.actuators[id]; ok && cur == a {
		delete(r.actuators, id)
	}
	r.mu.Unlock()
}

func (r *Registry) Actuator(id string) (Actuator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actuators[id]
	return a, ok
}
