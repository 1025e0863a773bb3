package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowcode-go/types"
)

type fakeWriter struct {
	points []*write.Point
	err    error
	calls  int
}

func (f *fakeWriter) WritePoint(_ context.Context, p ...*write.Point) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.points = append(f.points, p...)
	return nil
}

func fieldsOf(p *write.Point) map[string]any {
	out := map[string]any{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func tagsOf(p *write.Point) map[string]string {
	out := map[string]string{}
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func TestWriteFlowPoint(t *testing.T) {
	w := &fakeWriter{}
	s := newStorage(w, Config{})

	v := types.FlowValue{RateLPM: 60, Pulses: 450, IntervalML: 1000, TotalML: 3000, OrderML: 500, TSms: 1700000000000}
	require.NoError(t, s.WriteFlow(context.Background(), "heat", v))
	require.Len(t, w.points, 1)

	p := w.points[0]
	assert.Equal(t, "flow", p.Name())
	assert.Equal(t, map[string]string{"sensor": "heat"}, tagsOf(p))
	f := fieldsOf(p)
	assert.Equal(t, 60.0, f["rate_lpm"])
	assert.Equal(t, int64(1000), f["interval_ml"])
	assert.Equal(t, int64(3000), f["total_ml"])
	assert.Equal(t, time.UnixMilli(1700000000000), p.Time())
}

func TestWriteOrderPoint(t *testing.T) {
	w := &fakeWriter{}
	s := newStorage(w, Config{})

	st := types.OrderStatus{State: types.OrderComplete, TargetML: 250, DeliveredML: 260, OvershootML: 10, Actuator: "relay0_1", StartedMs: 1, DoneMs: 2}
	require.NoError(t, s.WriteOrder(context.Background(), "heat", st))

	p := w.points[0]
	assert.Equal(t, "flow_order", p.Name())
	assert.Equal(t, "complete", tagsOf(p)["state"])
	assert.Equal(t, int64(10), fieldsOf(p)["overshoot_ml"])
	assert.Equal(t, time.UnixMilli(2), p.Time())
}

func TestEmptySensorRejected(t *testing.T) {
	w := &fakeWriter{}
	s := newStorage(w, Config{})
	assert.Error(t, s.WriteFlow(context.Background(), "", types.FlowValue{}))
	assert.Zero(t, w.calls)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	w := &fakeWriter{err: errors.New("connection refused")}
	s := newStorage(w, Config{BreakerFailures: 2, BreakerTimeout: time.Minute})
	ctx := context.Background()

	assert.Error(t, s.WriteFlow(ctx, "heat", types.FlowValue{}))
	assert.Error(t, s.WriteFlow(ctx, "heat", types.FlowValue{}))
	assert.Equal(t, gobreaker.StateOpen, s.State())

	err := s.WriteFlow(ctx, "heat", types.FlowValue{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, w.calls, "open breaker must not reach the writer")
}
