// services/hal/internal/gpioirq/irq_worker_test.go

package gpioirq

import (
	"context"
	"sync"
	"testing"
	"time"

	"flowcode-go/errcode"
	"flowcode-go/services/hal/internal/halcore"
	"flowcode-go/services/hal/internal/pulse"
)

// fakeIRQPin implements halcore.IRQPin with minimal behaviour for tests.
type fakeIRQPin struct {
	mu      sync.Mutex
	level   bool
	edge    halcore.Edge
	handler func()
	number  int
}

func (p *fakeIRQPin) ConfigureInput(_ halcore.Pull) error { return nil }
func (p *fakeIRQPin) ConfigureOutput(initial bool) error  { p.Set(initial); return nil }
func (p *fakeIRQPin) Set(b bool)                          { p.mu.Lock(); p.level = b; p.mu.Unlock() }
func (p *fakeIRQPin) Get() bool                           { p.mu.Lock(); defer p.mu.Unlock(); return p.level }
func (p *fakeIRQPin) Toggle()                             { p.mu.Lock(); p.level = !p.level; p.mu.Unlock() }
func (p *fakeIRQPin) Number() int                         { return p.number }
func (p *fakeIRQPin) SetIRQ(e halcore.Edge, h func()) error {
	p.mu.Lock()
	p.edge, p.handler = e, h
	p.mu.Unlock()
	return nil
}
func (p *fakeIRQPin) ClearIRQ() error {
	p.mu.Lock()
	p.edge, p.handler = halcore.EdgeNone, nil
	p.mu.Unlock()
	return nil
}
func (p *fakeIRQPin) fire(level bool) {
	p.Set(level)
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		h()
	}
}

func TestAttachPulseCountsEveryEdge(t *testing.T) {
	w := New(8, 8)
	pin := &fakeIRQPin{number: 2}
	var c pulse.Counter

	detach, err := w.AttachPulse("heat", pin, halcore.EdgeRising, &c)
	if err != nil {
		t.Fatalf("AttachPulse: %v", err)
	}
	if pin.edge != halcore.EdgeRising {
		t.Fatalf("edge = %v", pin.edge)
	}
	for i := 0; i < 100; i++ {
		pin.fire(true)
	}
	if got := c.Take(); got != 100 {
		t.Fatalf("counted %d, want 100", got)
	}

	detach()
	pin.fire(true)
	if got := c.Take(); got != 0 {
		t.Fatalf("pulse after detach counted: %d", got)
	}
}

func TestAttachPulseRejectsSecondOwner(t *testing.T) {
	w := New(8, 8)
	pin := &fakeIRQPin{number: 3}
	var a, b pulse.Counter
	if _, err := w.AttachPulse("pipe", pin, halcore.EdgeFalling, &a); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AttachPulse("other", pin, halcore.EdgeFalling, &b); errcode.Of(err) != errcode.PinInUse {
		t.Fatalf("expected pin_in_use, got %v", err)
	}
	if _, err := w.AttachPulse("x", &fakeIRQPin{number: 4}, halcore.EdgeNone, &b); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("expected invalid_params for EdgeNone, got %v", err)
	}
}

func TestLevelInputDebounce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(8, 8)
	w.Start(ctx)

	pin := &fakeIRQPin{number: 5}
	cancelReg, err := w.RegisterInput("btn", pin, 10*time.Millisecond, false)
	if err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}
	defer cancelReg()

	pin.fire(true)
	select {
	case ev := <-w.Events():
		if ev.DevID != "btn" || !ev.Pressed || ev.Edge != halcore.EdgeRising {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for press")
	}

	// Inside the debounce window.
	pin.fire(false)
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event during debounce: %+v", ev)
	case <-time.After(5 * time.Millisecond):
	}

	time.Sleep(12 * time.Millisecond)
	pin.fire(false)
	select {
	case ev := <-w.Events():
		if ev.Pressed || ev.Edge != halcore.EdgeFalling {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for release")
	}
}

func TestLevelInputInvert(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(8, 8)
	w.Start(ctx)

	pin := &fakeIRQPin{number: 7, level: true} // idle high with pull-up
	cancelReg, err := w.RegisterInput("btn", pin, 0, true)
	if err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}
	defer cancelReg()

	pin.fire(false) // pulled low => pressed
	select {
	case ev := <-w.Events():
		if !ev.Pressed {
			t.Fatalf("expected inverted press, got %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for inverted event")
	}
}
