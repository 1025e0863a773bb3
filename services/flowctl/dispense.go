package flowctl

import (
	"context"

	"flowcode-go/bus"
	"flowcode-go/types"
)

// Dispenser turns button presses into orders. A press while the sensor's
// order is running cancels it instead.
type Dispenser struct {
	c     *Client
	conn  *bus.Connection
	rules map[string]types.DispenseRule // button -> rule
}

func NewDispenser(conn *bus.Connection, c *Client, rules []types.DispenseRule) *Dispenser {
	d := &Dispenser{c: c, conn: conn, rules: map[string]types.DispenseRule{}}
	for _, r := range rules {
		d.rules[r.Button] = r
	}
	return d
}

func pressedTopic() bus.Topic {
	return bus.T("hal", "cap", types.DomainIO, string(types.KindButton), bus.WildOne, "event", "pressed")
}

// Run handles presses until ctx ends.
func (d *Dispenser) Run(ctx context.Context) {
	if len(d.rules) == 0 {
		return
	}
	sub := d.conn.Subscribe(pressedTopic())
	defer d.conn.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-sub.Channel():
			if !ok {
				return
			}
			button, _ := m.Topic.At(4).(string)
			if r, ok := d.rules[button]; ok {
				d.press(ctx, r)
			}
		}
	}
}

func (d *Dispenser) press(ctx context.Context, r types.DispenseRule) {
	st, err := d.c.OrderStatus(ctx, r.Sensor)
	if err != nil {
		println("[dispense]", r.Sensor, "status failed:", err.Error())
		return
	}
	if st.State == types.OrderActive {
		if _, err := d.c.CancelOrder(ctx, r.Sensor); err != nil {
			println("[dispense]", r.Sensor, "cancel failed:", err.Error())
		}
		return
	}
	if _, err := d.c.StartOrder(ctx, r.Sensor, r.TargetML, r.Actuator); err != nil {
		println("[dispense]", r.Sensor, "start failed:", err.Error())
	}
}
