//go:build !rp2040 && !rp2350

// Package haltest runs a HAL on host fake pins for device and client tests.
package haltest

import (
	"context"
	"testing"
	"time"

	"flowcode-go/bus"
	"flowcode-go/services/hal/internal/core"
	"flowcode-go/services/hal/internal/gpioirq"
	"flowcode-go/services/hal/internal/platform"
	"flowcode-go/types"
)

type Rig struct {
	Bus    *bus.Bus
	Conn   *bus.Connection
	Pins   *platform.HostPinFactory
	Probes *platform.HostProbeFactory
	Reg    *core.Registry
}

// Start runs a HAL configured with cfg and waits until it is ready.
func Start(t *testing.T, cfg types.HALConfig) *Rig {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := &Rig{
		Bus:    bus.NewBus(64),
		Pins:   platform.NewHostPinFactory(),
		Probes: platform.NewHostProbeFactory(),
	}
	r.Reg = core.NewRegistry(r.Pins, gpioirq.New(64, 16)).WithProbes(r.Probes)
	r.Reg.Start(ctx)

	h := core.NewHAL(r.Bus.NewConnection("hal"), core.Resources{Reg: r.Reg})
	r.Conn = r.Bus.NewConnection("test")
	state := r.Conn.Subscribe(core.TopicHALState())
	defer r.Conn.Unsubscribe(state)

	go h.Run(ctx)
	r.waitLevel(t, state, "idle")
	r.Conn.Publish(r.Conn.NewMessage(core.TopicConfigHAL(), cfg, false))
	r.waitLevel(t, state, "ready")
	return r
}

func (r *Rig) waitLevel(t *testing.T, sub *bus.Subscription, level string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if st, ok := m.Payload.(types.HALState); ok && st.Level == level {
				return
			}
		case <-deadline:
			t.Fatalf("HAL never reached %q", level)
		}
	}
}

// Pin returns the fake pin n.
func (r *Rig) Pin(t *testing.T, n int) *platform.FakePin {
	t.Helper()
	p, ok := r.Pins.Get(n)
	if !ok {
		t.Fatalf("no fake pin %d", n)
	}
	return p
}

// Call sends a control request and returns the reply payload.
func (r *Rig) Call(t *testing.T, a core.CapAddr, verb string, payload any) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rep, err := r.Conn.RequestWait(ctx, r.Conn.NewMessage(core.CapCtrl(a, verb), payload, false))
	if err != nil {
		t.Fatalf("%s %s: %v", a.Name, verb, err)
	}
	return rep.Payload
}

// Watch subscribes to topic for the rest of the test.
func (r *Rig) Watch(t *testing.T, topic bus.Topic) *bus.Subscription {
	t.Helper()
	sub := r.Conn.Subscribe(topic)
	t.Cleanup(func() { r.Conn.Unsubscribe(sub) })
	return sub
}

// Await returns the first payload on topic that satisfies ok.
func (r *Rig) Await(t *testing.T, topic bus.Topic, ok func(any) bool) any {
	t.Helper()
	return AwaitOn(t, r.Watch(t, topic), ok)
}

// AwaitOn returns the first payload on sub that satisfies ok.
func AwaitOn(t *testing.T, sub *bus.Subscription, ok func(any) bool) any {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case m, open := <-sub.Channel():
			if !open {
				t.Fatalf("subscription %v closed", sub.Topic())
			}
			if ok(m.Payload) {
				return m.Payload
			}
		case <-deadline:
			t.Fatalf("timeout waiting on %v", sub.Topic())
			return nil
		}
	}
}
