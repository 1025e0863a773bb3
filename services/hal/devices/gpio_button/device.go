package gpio_button

import (
	"context"
	"time"

	"flowcode-go/errcode"
	"flowcode-go/services/hal/internal/core"
	"flowcode-go/services/hal/internal/halcore"
	"flowcode-go/types"
)

// Device is a push button. Presses are published as events at
// hal/cap/io/button/<name>/event/{pressed,released}.
type Device struct {
	id     string
	pinN   int
	gpio   halcore.GPIOPin
	invert bool
	res    core.Resources

	name string
	a    core.CapAddr

	debounce time.Duration
	es       core.GPIOEdgeStream
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: types.DomainIO,
		Kind:   types.KindButton,
		Name:   d.name,
		Info:   types.Info{SchemaVersion: 1, Driver: "gpio_button", Detail: types.ButtonInfo{Pin: d.pinN}},
	}}
}

func (d *Device) Init(ctx context.Context) error {
	d.a = core.CapAddr{Domain: types.DomainIO, Kind: types.KindButton, Name: d.name}

	d.res.Pub.Emit(core.Event{
		Addr:    d.a,
		Payload: types.ButtonValue{Pressed: d.logicalPressed(d.gpio.Get())},
	})

	es, err := d.res.Reg.SubscribeGPIOEdges(d.id, d.pinN, d.debounce, d.invert, 8)
	if err != nil {
		d.res.Pub.Emit(core.Event{Addr: d.a, Err: "edge_sub_failed"})
		return nil
	}
	d.es = es
	go d.edgeLoop()
	return nil
}

func (d *Device) Close() error {
	if d.es != nil {
		d.res.Reg.UnsubscribeGPIOEdges(d.id, d.pinN)
	}
	d.res.Reg.ReleasePin(d.id, d.pinN)
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, _ any) (core.EnqueueResult, error) {
	switch verb {
	case "read":
		v := types.ButtonValue{Pressed: d.logicalPressed(d.gpio.Get())}
		_ = d.res.Pub.Emit(core.Event{Addr: d.a, Payload: v})
		return core.EnqueueResult{OK: true, Reply: v}, nil
	default:
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

func (d *Device) edgeLoop() {
	for ev := range d.es.Events() {
		tag := "released"
		if ev.Pressed {
			tag = "pressed"
		}
		ts := ev.TS.UnixMilli()
		_ = d.res.Pub.Emit(core.Event{Addr: d.a, EventTag: tag, Payload: types.ButtonValue{Pressed: ev.Pressed}, TSms: ts})
		_ = d.res.Pub.Emit(core.Event{Addr: d.a, Payload: types.ButtonValue{Pressed: ev.Pressed}, TSms: ts})
	}
}

func (d *Device) logicalPressed(level bool) bool {
	if d.invert {
		return !level
	}
	return level
}
