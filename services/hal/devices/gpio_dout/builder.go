package gpio_dout

import (
	"context"

	"flowcode-go/errcode"
	"flowcode-go/services/hal/internal/core"
)

func init() {
	core.RegisterBuilder("valve", builder{})
}

type builder struct{}

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, code := core.As[Params](in.Params)
	if code != "" || in.Params == nil || p.Pin < 0 {
		return nil, errcode.InvalidParams
	}
	ph, err := in.Res.Reg.ClaimPin(in.ID, p.Pin, core.FuncGPIOOut)
	if err != nil {
		return nil, err
	}
	return New(in.ID, p, ph.AsGPIO(), in.Res), nil
}
