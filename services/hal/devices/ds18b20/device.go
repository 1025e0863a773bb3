package ds18b20

import (
	"context"
	"sync/atomic"
	"time"

	"flowcode-go/errcode"
	"flowcode-go/services/hal/internal/core"
	"flowcode-go/services/hal/internal/halcore"
	"flowcode-go/types"
	"flowcode-go/x/strx"
	"flowcode-go/x/timex"
)

func init() { core.RegisterBuilder("ds18b20", builder{}) }

type Params struct {
	Pin          int    `json:"pin"` // 1-Wire data line
	Name         string `json:"name,omitempty"`
	ConversionMs uint16 `json:"conversion_ms,omitempty"` // 0 => 750 (12-bit)
}

type builder struct{}

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, code := core.As[Params](in.Params)
	if code != "" || in.Params == nil || p.Pin < 0 {
		return nil, errcode.InvalidParams
	}
	if _, err := in.Res.Reg.ClaimPin(in.ID, p.Pin, core.FuncOneWire); err != nil {
		return nil, err
	}
	name := strx.Coalesce(p.Name, in.ID)
	conv := 750 * time.Millisecond
	if p.ConversionMs > 0 {
		conv = timex.Ms(p.ConversionMs)
	}
	return &Device{
		id:   in.ID,
		pinN: p.Pin,
		conv: conv,
		res:  in.Res,
		addr: core.CapAddr{Domain: types.DomainEnv, Kind: types.KindTemperature, Name: name},
	}, nil
}

// Device reads one probe. A read starts a conversion and reports the value
// from a goroutine once the conversion time has passed.
type Device struct {
	id    string
	pinN  int
	conv  time.Duration
	res   core.Resources
	addr  core.CapAddr
	probe halcore.TempProbe

	busy atomic.Bool
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	rom := ""
	if d.probe != nil {
		rom = d.probe.ROM()
	}
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   d.addr.Kind,
		Name:   d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "ds18b20",
			Detail:        types.TemperatureInfo{Sensor: "ds18b20", Pin: d.pinN, ROM: rom},
		},
	}}
}

func (d *Device) Init(ctx context.Context) error {
	p, err := d.res.Reg.OpenProbe(d.id, d.pinN)
	if err != nil {
		return err
	}
	d.probe = p
	return nil
}

func (d *Device) Close() error {
	d.res.Reg.ReleasePin(d.id, d.pinN)
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, _ any) (core.EnqueueResult, error) {
	if verb != "read" {
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
	if !d.busy.CompareAndSwap(false, true) {
		return core.EnqueueResult{OK: false, Error: errcode.Busy}, nil
	}
	go d.read()
	return core.EnqueueResult{OK: true}, nil
}

func (d *Device) read() {
	defer d.busy.Store(false)
	if err := d.probe.StartConversion(); err != nil {
		d.res.Pub.Emit(core.Event{Addr: d.addr, Err: "io_error", TSms: timex.NowMs()})
		return
	}
	time.Sleep(d.conv)
	mc, err := d.probe.ReadMilliC()
	if err != nil {
		d.res.Pub.Emit(core.Event{Addr: d.addr, Err: "io_error", TSms: timex.NowMs()})
		return
	}
	d.res.Pub.Emit(core.Event{
		Addr:    d.addr,
		Payload: types.TemperatureValue{DeciC: deciC(mc)},
		TSms:    timex.NowMs(),
	})
}

// deciC rounds milli-degrees to tenths, half away from zero.
func deciC(milli int32) int16 {
	if milli >= 0 {
		return int16((milli + 50) / 100)
	}
	return int16((milli - 50) / 100)
}
