// services/hal/internal/gpioirq/irq_worker.go
package gpioirq

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"flowcode-go/errcode"
	"flowcode-go/services/hal/internal/halcore"
	"flowcode-go/services/hal/internal/pulse"
)

// LevelEvent is a debounced edge on a level input (buttons, switches).
type LevelEvent struct {
	DevID   string
	Pressed bool // logical level after inversion
	Edge    halcore.Edge
	TS      time.Time
}

// Worker owns every GPIO interrupt registration. Pulse inputs are counted
// directly in the ISR; level inputs are handed to a goroutine for debounce.
type Worker struct {
	// Written by ISR; MUST NOT block the ISR:
	isrQ chan isrEvent
	// Consumed by devices:
	outQ    chan LevelEvent
	stopped chan struct{}

	mu     sync.Mutex
	levels map[string]*watch // devID -> level watch
	pulses map[int]string    // pin -> owning devID

	drops atomic.Uint32 // ISR queue overflow
}

type isrEvent struct {
	devID string
	level bool // captured in ISR
}

type watch struct {
	pin       halcore.IRQPin
	debounce  time.Duration
	invert    bool
	lastLevel bool
	lastEvent time.Time
}

func New(isrBuf, outBuf int) *Worker {
	if isrBuf <= 0 {
		isrBuf = 32
	}
	if outBuf <= 0 {
		outBuf = 16
	}
	return &Worker{
		isrQ:    make(chan isrEvent, isrBuf),
		outQ:    make(chan LevelEvent, outBuf),
		stopped: make(chan struct{}),
		levels:  map[string]*watch{},
		pulses:  map[int]string{},
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-w.isrQ:
				w.handleISR(ev)
			}
		}
	}()
}

// AttachPulse binds sink to pin so every configured edge calls
// sink.OnPulse() from interrupt context. The returned func detaches it.
func (w *Worker) AttachPulse(devID string, pin halcore.IRQPin, edge halcore.Edge, sink pulse.Sink) (func(), error) {
	if edge == halcore.EdgeNone || sink == nil {
		return nil, errcode.InvalidParams
	}
	n := pin.Number()

	w.mu.Lock()
	if owner, taken := w.pulses[n]; taken && owner != devID {
		w.mu.Unlock()
		return nil, errcode.PinInUse
	}
	w.pulses[n] = devID
	w.mu.Unlock()

	if err := pin.SetIRQ(edge, sink.OnPulse); err != nil {
		w.mu.Lock()
		delete(w.pulses, n)
		w.mu.Unlock()
		return nil, err
	}
	return func() {
		_ = pin.ClearIRQ()
		w.mu.Lock()
		if w.pulses[n] == devID {
			delete(w.pulses, n)
		}
		w.mu.Unlock()
	}, nil
}

// RegisterInput watches a level input on both edges with debounce.
func (w *Worker) RegisterInput(devID string, pin halcore.IRQPin, debounce time.Duration, invert bool) (func(), error) {
	init := pin.Get()
	if invert {
		init = !init
	}
	wh := &watch{pin: pin, debounce: debounce, invert: invert, lastLevel: init}

	handler := func() {
		l := pin.Get()
		select {
		case w.isrQ <- isrEvent{devID: devID, level: l}:
		default:
			w.drops.Add(1)
		}
	}
	if err := pin.SetIRQ(halcore.EdgeBoth, handler); err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.levels[devID] = wh
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		if cur, ok := w.levels[devID]; ok {
			_ = cur.pin.ClearIRQ()
			delete(w.levels, devID)
		}
		w.mu.Unlock()
	}, nil
}

func (w *Worker) Events() <-chan LevelEvent { return w.outQ }

func (w *Worker) handleISR(ev isrEvent) {
	w.mu.Lock()
	wh := w.levels[ev.devID]
	w.mu.Unlock()
	if wh == nil {
		return
	}
	lvl := ev.level
	if wh.invert {
		lvl = !lvl
	}
	now := time.Now()
	if !wh.lastEvent.IsZero() && now.Sub(wh.lastEvent) < wh.debounce {
		return
	}
	if lvl == wh.lastLevel {
		return
	}
	e := halcore.EdgeFalling
	if lvl {
		e = halcore.EdgeRising
	}
	wh.lastLevel = lvl
	wh.lastEvent = now

	select {
	case w.outQ <- LevelEvent{DevID: ev.devID, Pressed: lvl, Edge: e, TS: now}:
	default:
		// drop to protect system if consumer is slow
	}
}

func (w *Worker) ISRDrops() uint32 { return w.drops.Load() }
