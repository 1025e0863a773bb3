package mqttlink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowcode-go/types"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient implements only what Link calls; the embedded interface
// panics on anything else.
type fakeClient struct {
	mqtt.Client
	pubs []published
	err  error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.pubs = append(c.pubs, published{topic, qos, retained, payload.([]byte)})
	return doneToken{err: c.err}
}

type call struct {
	sensor   string
	target   int32
	actuator string
}

type fakeStarter struct {
	calls []call
	err   error
}

func (s *fakeStarter) StartOrder(_ context.Context, sensor string, target int32, actuator string) (types.OrderStatus, error) {
	s.calls = append(s.calls, call{sensor, target, actuator})
	if s.err != nil {
		return types.OrderStatus{}, s.err
	}
	return types.OrderStatus{State: types.OrderActive, TargetML: target}, nil
}

func newLink(c mqtt.Client, s Starter, burst int) *Link {
	return New(c, Config{Prefix: "plant/", CommandRate: 0.001, CommandBurst: burst}, s)
}

func TestPublishFlowRetainedJSON(t *testing.T) {
	c := &fakeClient{}
	l := newLink(c, &fakeStarter{}, 1)

	require.NoError(t, l.PublishFlow("heat", types.FlowValue{RateLPM: 6, TotalML: 1200}))
	require.Len(t, c.pubs, 1)
	p := c.pubs[0]
	assert.Equal(t, "plant/heat/flow", p.topic)
	assert.True(t, p.retained)

	var v types.FlowValue
	require.NoError(t, json.Unmarshal(p.payload, &v))
	assert.Equal(t, uint32(1200), v.TotalML)
}

func TestPublishOrderQoS1(t *testing.T) {
	c := &fakeClient{}
	l := newLink(c, &fakeStarter{}, 1)

	require.NoError(t, l.PublishOrder("pipe", types.OrderStatus{State: types.OrderComplete}))
	assert.Equal(t, "plant/pipe/order", c.pubs[0].topic)
	assert.Equal(t, byte(1), c.pubs[0].qos)
	assert.False(t, c.pubs[0].retained)
}

func TestPublishErrorSurfaces(t *testing.T) {
	c := &fakeClient{err: errors.New("not connected")}
	l := newLink(c, &fakeStarter{}, 1)
	assert.Error(t, l.PublishFlow("heat", types.FlowValue{}))
}

func TestHandleCommandStartsOrder(t *testing.T) {
	s := &fakeStarter{}
	l := newLink(&fakeClient{}, s, 5)

	err := l.handleCommand(context.Background(), "plant/heat/order/start", []byte(`{"target_ml":250,"actuator":"relay0_1"}`))
	require.NoError(t, err)
	assert.Equal(t, []call{{"heat", 250, "relay0_1"}}, s.calls)
}

func TestHandleCommandRejects(t *testing.T) {
	s := &fakeStarter{}
	l := newLink(&fakeClient{}, s, 5)
	ctx := context.Background()

	assert.ErrorIs(t, l.handleCommand(ctx, "other/heat/order/start", []byte(`{}`)), ErrBadTopic)
	assert.ErrorIs(t, l.handleCommand(ctx, "plant/a/b/order/start", []byte(`{}`)), ErrBadTopic)
	assert.ErrorIs(t, l.handleCommand(ctx, "plant//order/start", []byte(`{}`)), ErrBadTopic)
	assert.Error(t, l.handleCommand(ctx, "plant/heat/order/start", []byte(`not json`)))
	assert.Empty(t, s.calls)
}

func TestHandleCommandRateLimited(t *testing.T) {
	s := &fakeStarter{}
	l := newLink(&fakeClient{}, s, 2)
	ctx := context.Background()
	body := []byte(`{"target_ml":100}`)

	require.NoError(t, l.handleCommand(ctx, "plant/heat/order/start", body))
	require.NoError(t, l.handleCommand(ctx, "plant/heat/order/start", body))
	assert.ErrorIs(t, l.handleCommand(ctx, "plant/heat/order/start", body), ErrRateLimited)
	assert.Len(t, s.calls, 2)
}

func TestHandleCommandStarterError(t *testing.T) {
	s := &fakeStarter{err: errors.New("unknown_actuator")}
	l := newLink(&fakeClient{}, s, 1)
	err := l.handleCommand(context.Background(), "plant/heat/order/start", []byte(`{"target_ml":1}`))
	assert.ErrorContains(t, err, "unknown_actuator")
}
