package gpio_button

import (
	"context"
	"time"

	"flowcode-go/errcode"
	"flowcode-go/services/hal/internal/core"
	"flowcode-go/services/hal/internal/halcore"
	"flowcode-go/x/strx"
)

func init() { core.RegisterBuilder("gpio_button", builder{}) }

type Params struct {
	Pin        int    `json:"pin"`
	Pull       string `json:"pull,omitempty"`   // "none","up","down"
	Invert     bool   `json:"invert,omitempty"` // true if pressed == low
	DebounceMs uint16 `json:"debounce_ms,omitempty"`
	Name       string `json:"name,omitempty"`
}

type builder struct{}

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, code := core.As[Params](in.Params)
	if code != "" || in.Params == nil || p.Pin < 0 {
		return nil, errcode.InvalidParams
	}
	pull, ok := halcore.ParsePull(p.Pull)
	if !ok {
		return nil, errcode.InvalidParams
	}
	name := strx.Coalesce(p.Name, in.ID)

	ph, err := in.Res.Reg.ClaimPin(in.ID, p.Pin, core.FuncGPIOIn)
	if err != nil {
		return nil, err
	}
	gpio := ph.AsGPIO()
	_ = gpio.ConfigureInput(pull)

	return &Device{
		id:       in.ID,
		pinN:     p.Pin,
		gpio:     gpio,
		invert:   p.Invert,
		res:      in.Res,
		name:     name,
		debounce: time.Duration(p.DebounceMs) * time.Millisecond,
	}, nil
}
