package gpio_dout

import (
	"context"
	"sync"

	"flowcode-go/errcode"
	"flowcode-go/services/hal/internal/core"
	"flowcode-go/services/hal/internal/halcore"
	"flowcode-go/types"
	"flowcode-go/x/strx"
	"flowcode-go/x/timex"
)

// Params for a relay-driven valve.
type Params struct {
	Pin       int    `json:"pin"`
	ActiveLow bool   `json:"active_low,omitempty"` // relay boards that energise on a low input
	Initial   bool   `json:"initial,omitempty"`    // open at boot
	Name      string `json:"name,omitempty"`
	Actuator  string `json:"actuator,omitempty"` // id flow meters use; defaults to Name
}

// Device is a relay output gating flow. It is both a HAL capability
// (io/valve/<name>) and a core.Actuator that flow meters drive.
type Device struct {
	id        string
	actuator  string
	pin       halcore.GPIOPin
	pinN      int
	activeLow bool
	initial   bool
	res       core.Resources
	addr      core.CapAddr

	mu sync.Mutex
}

var _ core.Actuator = (*Device)(nil)

func New(id string, p Params, pin halcore.GPIOPin, res core.Resources) *Device {
	name := strx.Coalesce(p.Name, id)
	return &Device{
		id:        id,
		actuator:  strx.Coalesce(p.Actuator, name),
		pin:       pin,
		pinN:      p.Pin,
		activeLow: p.ActiveLow,
		initial:   p.Initial,
		res:       res,
		addr:      core.CapAddr{Domain: types.DomainIO, Kind: types.KindValve, Name: name},
	}
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   d.addr.Kind,
		Name:   d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "gpio_dout",
			Detail:        types.ValveInfo{Pin: d.pinN, ActiveLow: d.activeLow},
		},
	}}
}

func (d *Device) Init(ctx context.Context) error {
	if err := d.pin.ConfigureOutput(d.level(d.initial)); err != nil {
		return err
	}
	if err := d.res.Reg.RegisterActuator(d); err != nil {
		return err
	}
	d.emitValue()
	return nil
}

// Close leaves the valve shut.
func (d *Device) Close() error {
	d.mu.Lock()
	d.pin.Set(d.level(false))
	d.mu.Unlock()
	d.res.Reg.UnregisterActuator(d)
	d.res.Reg.ReleasePin(d.id, d.pinN)
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "set":
		p, code := core.As[types.ValveSet](payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		_ = d.Drive(p.Open)
		return core.EnqueueResult{OK: true}, nil
	case "toggle":
		d.mu.Lock()
		open := !d.openLocked()
		d.mu.Unlock()
		_ = d.Drive(open)
		return core.EnqueueResult{OK: true}, nil
	case "read":
		d.emitValue()
		return core.EnqueueResult{OK: true, Reply: types.ValveValue{Open: d.IsOpen()}}, nil
	default:
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

// ---- core.Actuator ----

func (d *Device) ActuatorID() string { return d.actuator }

// Drive sets the valve and publishes the new state. Safe from any goroutine.
func (d *Device) Drive(open bool) error {
	d.mu.Lock()
	d.pin.Set(d.level(open))
	d.mu.Unlock()
	d.emitValue()
	return nil
}

func (d *Device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openLocked()
}

func (d *Device) openLocked() bool {
	return d.level(d.pin.Get())
}

// level maps logical open/closed to the pin level and back.
func (d *Device) level(v bool) bool {
	if d.activeLow {
		return !v
	}
	return v
}

func (d *Device) emitValue() {
	_ = d.res.Pub.Emit(core.Event{
		Addr:    d.addr,
		Payload: types.ValveValue{Open: d.IsOpen()},
		TSms:    timex.NowMs(),
	})
}
