package flow_meter

import (
	"context"
	"sync"
	"time"

	"flowcode-go/errcode"
	"flowcode-go/services/hal/internal/core"
	"flowcode-go/services/hal/internal/flow"
	"flowcode-go/services/hal/internal/halcore"
	"flowcode-go/types"
	"flowcode-go/x/timex"
)

// Event tags under hal/cap/flow/meter/<name>/event/order/...
const (
	TagStarted   = "started"
	TagComplete  = "complete"
	TagCancelled = "cancelled"
)

// Device is one pulse-output flow sensor. The pulse counter is fed from the
// pin interrupt; a ticker goroutine samples it into rate and volume.
type Device struct {
	id       string
	pinN     int
	edge     halcore.Edge
	ppl      float32
	period   time.Duration
	actuator string
	res      core.Resources
	clock    timex.Clock
	addr     core.CapAddr

	// mu guards acc. Order transitions issue their valve command and
	// event while holding it.
	mu  sync.Mutex
	acc *flow.Accumulator

	rateCh chan time.Duration
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	live   bool // sampler goroutine started
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	ppl := d.ppl
	if !(ppl > 0) {
		ppl = flow.DefaultPulsesPerLitre
	}
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   d.addr.Kind,
		Name:   d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "flow_meter",
			Detail: types.FlowInfo{
				Pin:            d.pinN,
				IRQ:            d.pinN,
				Edge:           halcore.EdgeToString(d.edge),
				PulsesPerLitre: ppl,
				SampleMs:       uint32(d.period / time.Millisecond),
				Actuator:       d.actuator,
			},
		},
	}}
}

func (d *Device) Init(ctx context.Context) error {
	d.acc = flow.New(flow.Binding{Pin: d.pinN, IRQ: d.pinN}, float64(d.ppl), d.clock.Now())
	if err := d.res.Reg.AttachPulse(d.id, d.pinN, d.edge, d.acc.Sink()); err != nil {
		return err
	}
	d.emitValue(flow.Reading{At: d.clock.Now()})
	d.live = true
	go d.run()
	return nil
}

func (d *Device) Close() error {
	d.once.Do(func() {
		close(d.stop)
		if d.live {
			<-d.done
		}
	})
	d.res.Reg.DetachPulse(d.id, d.pinN)
	d.res.Reg.ReleasePin(d.id, d.pinN)
	return nil
}

func (d *Device) run() {
	defer close(d.done)
	t := time.NewTicker(d.period)
	defer t.Stop()
	for {
		select {
		case <-d.stop:
			return
		case p := <-d.rateCh:
			t.Reset(p)
		case <-t.C:
			d.sample()
		}
	}
}

// sample is the periodic sampler: one take of the counter per tick.
func (d *Device) sample() {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.acc.Sample(d.clock.Now())
	d.emitValue(r)
	if r.Completed {
		ord := d.acc.Order()
		d.drive(ord.Actuator, false)
		d.emitOrder(TagComplete, ord)
	}
}

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "read":
		d.mu.Lock()
		s := d.acc.Snapshot()
		d.mu.Unlock()
		d.emitValue(flow.Reading{
			At:         s.LastSample,
			RateLPM:    s.RateLPM,
			IntervalML: s.IntervalML,
			TotalML:    s.TotalML,
			OrderML:    s.Order.Volume,
		})
		return core.EnqueueResult{OK: true, Reply: types.TotalReply{OK: true, TotalML: s.TotalML}}, nil

	case "start_order":
		p, code := core.As[types.OrderStart](payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		return d.startOrder(p)

	case "cancel_order":
		return d.cancelOrder(), nil

	case "order_status":
		d.mu.Lock()
		ord := d.acc.Order()
		d.mu.Unlock()
		return core.EnqueueResult{OK: true, Reply: ord.Status()}, nil

	case "reset_totals":
		d.mu.Lock()
		d.acc.ResetTotals()
		s := d.acc.Snapshot()
		d.mu.Unlock()
		d.emitValue(flow.Reading{At: d.clock.Now(), RateLPM: s.RateLPM, IntervalML: s.IntervalML, OrderML: s.Order.Volume})
		return core.EnqueueResult{OK: true, Reply: types.TotalReply{OK: true, TotalML: 0}}, nil

	case "set_rate":
		p, code := core.As[types.SetRate](payload)
		if code != "" {
			return core.EnqueueResult{OK: false, Error: code}, nil
		}
		if p.PeriodMs == 0 {
			return core.EnqueueResult{OK: false, Error: errcode.InvalidParams}, nil
		}
		per := samplePeriod(p.PeriodMs)
		// Latest request wins.
		select {
		case <-d.rateCh:
		default:
		}
		d.rateCh <- per
		return core.EnqueueResult{OK: true}, nil

	default:
		return core.EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
	}
}

func (d *Device) startOrder(p types.OrderStart) (core.EnqueueResult, error) {
	act := p.Actuator
	if act == "" {
		act = d.actuator
	}
	if act != "" {
		if _, ok := d.res.Reg.Actuator(act); !ok {
			return core.EnqueueResult{OK: false, Error: errcode.UnknownActuator}, nil
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	prev := d.acc.Order()
	ord := d.acc.StartOrder(p.TargetML, act, d.clock.Now())

	// A replaced order stops its own valve.
	if prev.State == types.OrderActive && prev.Actuator != act {
		d.drive(prev.Actuator, false)
	}

	d.emitOrder(TagStarted, ord)
	if ord.State == types.OrderComplete {
		d.drive(act, false)
		d.emitOrder(TagComplete, ord)
	} else {
		d.drive(act, true)
	}
	return core.EnqueueResult{OK: true, Reply: ord.Status()}, nil
}

func (d *Device) cancelOrder() core.EnqueueResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	ord, ok := d.acc.CancelOrder(d.clock.Now())
	if !ok {
		return core.EnqueueResult{OK: false, Error: errcode.NoOrder}
	}
	d.drive(ord.Actuator, false)
	d.emitOrder(TagCancelled, ord)
	return core.EnqueueResult{OK: true, Reply: ord.Status()}
}

func (d *Device) drive(actuator string, open bool) {
	if actuator == "" {
		return
	}
	a, ok := d.res.Reg.Actuator(actuator)
	if !ok {
		println("[flow]", d.id, "actuator gone:", actuator)
		return
	}
	if err := a.Drive(open); err != nil {
		println("[flow]", d.id, "drive failed:", actuator, err.Error())
	}
}

func (d *Device) emitValue(r flow.Reading) {
	ts := d.clock.Now().UnixMilli()
	if !r.At.IsZero() {
		ts = r.At.UnixMilli()
	}
	if !d.res.Pub.Emit(core.Event{
		Addr: d.addr,
		Payload: types.FlowValue{
			RateLPM:    r.RateLPM,
			Pulses:     r.Pulses,
			IntervalML: r.IntervalML,
			TotalML:    r.TotalML,
			OrderML:    r.OrderML,
			TSms:       ts,
		},
		TSms: ts,
	}) {
		println("[flow]", d.id, "value dropped")
	}
}

func (d *Device) emitOrder(tag string, o flow.Order) {
	if !d.res.Pub.Emit(core.Event{
		Addr:     d.addr,
		Payload:  o.Status(),
		TSms:     d.clock.Now().UnixMilli(),
		IsEvent:  true,
		EventTag: "order/" + tag,
	}) {
		println("[flow]", d.id, "order event dropped:", tag)
	}
}
