package core

import (
	"context"
	"sync"

	"flowcode-go/errcode"
	"flowcode-go/services/hal/internal/halcore"
	"flowcode-go/types"
)

// ---- pins ----

type testPin struct {
	mu      sync.Mutex
	n       int
	level   bool
	handler func()
}

func (p *testPin) ConfigureInput(halcore.Pull) error { return nil }
func (p *testPin) ConfigureOutput(b bool) error      { p.Set(b); return nil }
func (p *testPin) Set(b bool)                        { p.mu.Lock(); p.level = b; p.mu.Unlock() }
func (p *testPin) Get() bool                         { p.mu.Lock(); defer p.mu.Unlock(); return p.level }
func (p *testPin) Toggle()                           { p.Set(!p.Get()) }
func (p *testPin) Number() int                       { return p.n }
func (p *testPin) SetIRQ(_ halcore.Edge, h func()) error {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
	return nil
}
func (p *testPin) ClearIRQ() error { return p.SetIRQ(halcore.EdgeNone, nil) }

func (p *testPin) fire(level bool) {
	p.Set(level)
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		h()
	}
}

// testPins knows pins 0..9.
type testPins struct {
	mu   sync.Mutex
	pins map[int]*testPin
}

func (f *testPins) ByNumber(n int) (halcore.GPIOPin, bool) {
	if n < 0 || n > 9 {
		return nil, false
	}
	return f.get(n), true
}

func (f *testPins) get(n int) *testPin {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pins == nil {
		f.pins = map[int]*testPin{}
	}
	p := f.pins[n]
	if p == nil {
		p = &testPin{n: n}
		f.pins[n] = p
	}
	return p
}

// ---- device ----

type fakeParams struct {
	Name string
}

type fakeDevice struct {
	id   string
	addr CapAddr
	pub  EventEmitter

	mu     sync.Mutex
	verbs  []string
	closed bool
}

func (d *fakeDevice) ID() string { return d.id }

func (d *fakeDevice) Capabilities() []CapabilitySpec {
	return []CapabilitySpec{{
		Kind: types.KindTemperature,
		Name: d.addr.Name,
		Info: types.Info{SchemaVersion: 1, Driver: "fake"},
	}}
}

func (d *fakeDevice) Init(context.Context) error { return nil }

func (d *fakeDevice) Control(_ CapAddr, verb string, payload any) (EnqueueResult, error) {
	d.mu.Lock()
	d.verbs = append(d.verbs, verb)
	d.mu.Unlock()
	switch verb {
	case "read":
		d.pub.Emit(Event{Addr: d.addr, Payload: types.TemperatureValue{DeciC: 215}})
		return EnqueueResult{OK: true}, nil
	case "echo":
		return EnqueueResult{OK: true, Reply: payload}, nil
	case "busy":
		return EnqueueResult{OK: false}, nil
	case "fail":
		d.pub.Emit(Event{Addr: d.addr, Err: "io_error"})
		return EnqueueResult{}, errcode.Wrap(errcode.Timeout, "fake", nil)
	default:
		return EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) count(verb string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, v := range d.verbs {
		if v == verb {
			n++
		}
	}
	return n
}

type fakeBuilder struct {
	mu    sync.Mutex
	built map[string]*fakeDevice
}

func (b *fakeBuilder) Build(_ context.Context, in BuilderInput) (Device, error) {
	p, code := As[fakeParams](in.Params)
	if code != "" || p.Name == "" {
		return nil, errcode.InvalidParams
	}
	d := &fakeDevice{
		id:   in.ID,
		addr: CapAddr{Domain: types.DomainEnv, Kind: types.KindTemperature, Name: p.Name},
		pub:  in.Res.Pub,
	}
	b.mu.Lock()
	b.built[in.ID] = d
	b.mu.Unlock()
	return d, nil
}

func (b *fakeBuilder) get(id string) *fakeDevice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.built[id]
}

var testBuilder = &fakeBuilder{built: map[string]*fakeDevice{}}

func init() { RegisterBuilder("fake_probe", testBuilder) }
