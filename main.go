package main

import (
	"context"
	"time"

	"flowcode-go/bus"
	"flowcode-go/services/config"
	"flowcode-go/services/flowctl"
	"flowcode-go/services/hal"
	"flowcode-go/services/heartbeat"
	"flowcode-go/types"
)

const heartbeatMs = 2000

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)

	setup := hal.SelectedSetup()
	println("boot", setup.Board)

	ctx := context.Background()
	b := bus.NewBus(8)

	go hal.Run(ctx, b.NewConnection("hal"))

	config.NewConfigService(config.FromSetup(setup, types.HeartbeatConfig{IntervalMs: heartbeatMs})).
		Start(ctx, b.NewConnection("config"))

	_ = heartbeat.New().Start(ctx, b.NewConnection("heartbeat"))

	ctl := b.NewConnection("flowctl")
	go flowctl.NewDispenser(ctl, flowctl.New(ctl, flowctl.DefaultTimeout), setup.Dispense).Run(ctx)

	select {}
}
