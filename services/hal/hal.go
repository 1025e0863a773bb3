// services/hal/hal.go
package hal

import (
	"context"

	"flowcode-go/bus"
	"flowcode-go/services/hal/internal/core"
	"flowcode-go/services/hal/internal/gpioirq"
	"flowcode-go/services/hal/internal/halcore"
	"flowcode-go/services/hal/internal/platform"
	"flowcode-go/services/hal/internal/platform/setups"
	"flowcode-go/types"
)

const (
	irqQueueLen  = 32
	edgeQueueLen = 16
)

// BoardSetup is the compiled-in wiring for the selected board revision.
type BoardSetup struct {
	Board    string
	HAL      types.HALConfig
	Dispense []types.DispenseRule
}

// SelectedSetup returns the setup chosen by the board_rev* build tag.
func SelectedSetup() BoardSetup {
	s := setups.Selected
	return BoardSetup{Board: s.Board.Name, HAL: s.HAL, Dispense: s.Dispense}
}

// Run serves the HAL on conn until ctx ends. Devices appear when a
// types.HALConfig is published on config/hal.
func Run(ctx context.Context, conn *bus.Connection) {
	run(ctx, conn, platform.DefaultPinFactory(), platform.DefaultProbeFactory())
}

func run(ctx context.Context, conn *bus.Connection, pins halcore.PinFactory, probes halcore.ProbeFactory) {
	reg := core.NewRegistry(pins, gpioirq.New(irqQueueLen, edgeQueueLen)).WithProbes(probes)
	reg.Start(ctx)
	core.NewHAL(conn, core.Resources{Reg: reg}).Run(ctx)
}
