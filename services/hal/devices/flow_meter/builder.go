package flow_meter

import (
	"context"
	"time"

	"flowcode-go/errcode"
	"flowcode-go/services/hal/internal/core"
	"flowcode-go/services/hal/internal/halcore"
	"flowcode-go/x/mathx"
	"flowcode-go/x/strx"
	"flowcode-go/x/timex"
)

func init() { core.RegisterBuilder("flow_meter", builder{}) }

const (
	DefaultSample = time.Second
	MinSample     = 100 * time.Millisecond
	MaxSample     = 60 * time.Second
)

type Params struct {
	Pin            int     `json:"pin"`
	Edge           string  `json:"edge,omitempty"` // "rising" (default), "falling", "both"
	Pull           string  `json:"pull,omitempty"` // "none" (default), "up", "down"
	PulsesPerLitre float32 `json:"pulses_per_litre,omitempty"`
	SampleMs       uint32  `json:"sample_ms,omitempty"`
	Name           string  `json:"name,omitempty"`
	Actuator       string  `json:"actuator,omitempty"` // order target when start_order names none
}

type builder struct{}

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, code := core.As[Params](in.Params)
	if code != "" || in.Params == nil || p.Pin < 0 {
		return nil, errcode.InvalidParams
	}
	edge, ok := halcore.ParseEdge(p.Edge)
	if !ok || edge == halcore.EdgeNone {
		return nil, errcode.Wrap(errcode.InvalidParams, "flow_meter", nil)
	}
	pull, ok := halcore.ParsePull(p.Pull)
	if !ok {
		return nil, errcode.Wrap(errcode.InvalidParams, "flow_meter", nil)
	}

	ph, err := in.Res.Reg.ClaimPin(in.ID, p.Pin, core.FuncPulseIn)
	if err != nil {
		return nil, err
	}
	if err := ph.AsGPIO().ConfigureInput(pull); err != nil {
		in.Res.Reg.ReleasePin(in.ID, p.Pin)
		return nil, err
	}

	name := strx.Coalesce(p.Name, in.ID)
	return &Device{
		id:       in.ID,
		pinN:     p.Pin,
		edge:     edge,
		ppl:      p.PulsesPerLitre,
		period:   samplePeriod(p.SampleMs),
		actuator: p.Actuator,
		res:      in.Res,
		clock:    timex.Wall,
		addr:     core.FlowMeter(name),
		rateCh:   make(chan time.Duration, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// samplePeriod applies the default and clamps to [MinSample, MaxSample].
func samplePeriod(ms uint32) time.Duration {
	if ms == 0 {
		return DefaultSample
	}
	return mathx.Clamp(timex.Ms(ms), MinSample, MaxSample)
}
