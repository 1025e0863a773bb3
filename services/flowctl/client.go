// Package flowctl is the application-facing interface to flow meters: read
// totals, run orders against a target volume, reset totals. It talks to the
// HAL over the bus and never touches hardware.
package flowctl

import (
	"context"
	"time"

	"flowcode-go/bus"
	"flowcode-go/errcode"
	"flowcode-go/types"
)

const DefaultTimeout = 2 * time.Second

type Client struct {
	conn    *bus.Connection
	timeout time.Duration
}

// New returns a client; timeout bounds calls whose context has no deadline.
func New(conn *bus.Connection, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{conn: conn, timeout: timeout}
}

// hal/cap/flow/meter/<sensor>/...
func meterTopic(sensor string, tail ...any) bus.Topic {
	return bus.T("hal", "cap", types.DomainFlow, string(types.KindFlowMeter), sensor).Append(tail...)
}

func ValueTopic(sensor string) bus.Topic { return meterTopic(sensor, "value") }

// OrderEventTopic matches order/<state> events; sensor may be bus.WildOne.
func OrderEventTopic(sensor string) bus.Topic {
	return meterTopic(sensor, "event", "order", bus.WildOne)
}

func (c *Client) call(ctx context.Context, sensor, verb string, payload any) (any, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	msg := c.conn.NewMessage(meterTopic(sensor, "control", verb), payload, false)
	rep, err := c.conn.RequestWait(ctx, msg)
	if err != nil {
		return nil, errcode.Wrap(errcode.Timeout, "flowctl."+verb, err)
	}
	if er, ok := rep.Payload.(types.ErrorReply); ok {
		return nil, &errcode.E{C: errcode.Code(er.Error), Op: "flowctl." + verb, Msg: sensor}
	}
	return rep.Payload, nil
}

func expect[T any](v any, verb string) (T, error) {
	t, ok := v.(T)
	if !ok {
		return t, errcode.Wrap(errcode.InvalidPayload, "flowctl."+verb, nil)
	}
	return t, nil
}

// ReadTotalVolume returns the lifetime volume in millilitres.
func (c *Client) ReadTotalVolume(ctx context.Context, sensor string) (uint32, error) {
	v, err := c.call(ctx, sensor, "read", nil)
	if err != nil {
		return 0, err
	}
	tr, err := expect[types.TotalReply](v, "read")
	return tr.TotalML, err
}

// StartOrder begins an order of targetML millilitres. An empty actuator
// uses the meter's default; a non-positive target completes at once.
func (c *Client) StartOrder(ctx context.Context, sensor string, targetML int32, actuator string) (types.OrderStatus, error) {
	v, err := c.call(ctx, sensor, "start_order", types.OrderStart{TargetML: targetML, Actuator: actuator})
	if err != nil {
		return types.OrderStatus{}, err
	}
	return expect[types.OrderStatus](v, "start_order")
}

func (c *Client) OrderStatus(ctx context.Context, sensor string) (types.OrderStatus, error) {
	v, err := c.call(ctx, sensor, "order_status", nil)
	if err != nil {
		return types.OrderStatus{}, err
	}
	return expect[types.OrderStatus](v, "order_status")
}

// IsOrderComplete reports whether the current order reached its target.
func (c *Client) IsOrderComplete(ctx context.Context, sensor string) (bool, error) {
	st, err := c.OrderStatus(ctx, sensor)
	return st.State == types.OrderComplete, err
}

func (c *Client) CancelOrder(ctx context.Context, sensor string) (types.OrderStatus, error) {
	v, err := c.call(ctx, sensor, "cancel_order", nil)
	if err != nil {
		return types.OrderStatus{}, err
	}
	return expect[types.OrderStatus](v, "cancel_order")
}

// ResetTotals zeroes the lifetime volume; order progress is kept.
func (c *Client) ResetTotals(ctx context.Context, sensor string) error {
	_, err := c.call(ctx, sensor, "reset_totals", nil)
	return err
}

// SetSamplePeriod changes how often the meter is sampled.
func (c *Client) SetSamplePeriod(ctx context.Context, sensor string, period time.Duration) error {
	_, err := c.call(ctx, sensor, "set_rate", types.SetRate{PeriodMs: uint32(period / time.Millisecond)})
	return err
}

// Snapshot returns the last published sample.
func (c *Client) Snapshot(ctx context.Context, sensor string) (types.FlowValue, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	sub := c.conn.Subscribe(ValueTopic(sensor))
	defer c.conn.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return types.FlowValue{}, errcode.Wrap(errcode.Timeout, "flowctl.snapshot", ctx.Err())
		case m := <-sub.Channel():
			if v, ok := m.Payload.(types.FlowValue); ok {
				return v, nil
			}
		}
	}
}
