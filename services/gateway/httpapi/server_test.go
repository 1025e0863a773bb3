package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"flowcode-go/errcode"
	"flowcode-go/types"
)

type fakeController struct {
	totals  map[string]uint32
	order   types.OrderStatus
	started []types.OrderStart
	resets  int
	err     error
}

func (f *fakeController) lookup(sensor string) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.totals[sensor]; !ok {
		return &errcode.E{C: errcode.UnknownCapability, Op: "flowctl.read", Msg: sensor}
	}
	return nil
}

func (f *fakeController) ReadTotalVolume(_ context.Context, s string) (uint32, error) {
	if err := f.lookup(s); err != nil {
		return 0, err
	}
	return f.totals[s], nil
}

func (f *fakeController) StartOrder(_ context.Context, s string, target int32, act string) (types.OrderStatus, error) {
	if err := f.lookup(s); err != nil {
		return types.OrderStatus{}, err
	}
	f.started = append(f.started, types.OrderStart{TargetML: target, Actuator: act})
	f.order = types.OrderStatus{State: types.OrderActive, TargetML: target, Actuator: act}
	return f.order, nil
}

func (f *fakeController) OrderStatus(_ context.Context, s string) (types.OrderStatus, error) {
	return f.order, f.lookup(s)
}

func (f *fakeController) CancelOrder(_ context.Context, s string) (types.OrderStatus, error) {
	if err := f.lookup(s); err != nil {
		return types.OrderStatus{}, err
	}
	if f.order.State != types.OrderActive {
		return types.OrderStatus{}, errcode.Wrap(errcode.NoOrder, "flowctl.cancel_order", nil)
	}
	f.order.State = types.OrderCancelled
	return f.order, nil
}

func (f *fakeController) ResetTotals(_ context.Context, s string) error {
	if err := f.lookup(s); err != nil {
		return err
	}
	f.resets++
	f.totals[s] = 0
	return nil
}

func (f *fakeController) Snapshot(_ context.Context, s string) (types.FlowValue, error) {
	return types.FlowValue{TotalML: f.totals[s], RateLPM: 3}, f.lookup(s)
}

func newServer(ctl Controller, burst int) *httptest.Server {
	return httptest.NewServer(NewRouter(ctl, rate.NewLimiter(rate.Every(time.Hour), burst), time.Second))
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newServer(&fakeController{}, 1)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTotalAndFlow(t *testing.T) {
	srv := newServer(&fakeController{totals: map[string]uint32{"heat": 1500}}, 1)
	defer srv.Close()

	resp, body := do(t, http.MethodGet, srv.URL+"/sensors/heat/total", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "heat", body["sensor"])
	assert.Equal(t, 1500.0, body["total_ml"])

	resp, body = do(t, http.MethodGet, srv.URL+"/sensors/heat/flow", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3.0, body["rate_lpm"])

	resp, body = do(t, http.MethodGet, srv.URL+"/sensors/nope/total", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "unknown_capability", body["error"])
}

func TestOrderRoutes(t *testing.T) {
	ctl := &fakeController{totals: map[string]uint32{"heat": 0}}
	srv := newServer(ctl, 10)
	defer srv.Close()

	resp, body := do(t, http.MethodPost, srv.URL+"/sensors/heat/order", `{"target_ml":250,"actuator":"relay0_1"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "active", body["state"])
	assert.Equal(t, []types.OrderStart{{TargetML: 250, Actuator: "relay0_1"}}, ctl.started)

	resp, body = do(t, http.MethodGet, srv.URL+"/sensors/heat/order", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 250.0, body["target_ml"])

	resp, body = do(t, http.MethodDelete, srv.URL+"/sensors/heat/order", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", body["state"])

	resp, body = do(t, http.MethodDelete, srv.URL+"/sensors/heat/order", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "no_order", body["error"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/sensors/heat/order", `{bad`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/sensors/heat/reset", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, ctl.resets)
}

func TestMutatingRoutesRateLimited(t *testing.T) {
	ctl := &fakeController{totals: map[string]uint32{"heat": 0}}
	srv := newServer(ctl, 1)
	defer srv.Close()

	resp, _ := do(t, http.MethodPost, srv.URL+"/sensors/heat/reset", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body := do(t, http.MethodPost, srv.URL+"/sensors/heat/reset", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", body["error"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/sensors/heat/total", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "reads are not limited")
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(errcode.Timeout))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(errcode.HALNotReady))
	assert.Equal(t, http.StatusBadRequest, statusFor(errcode.UnknownActuator))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errcode.Error))
}
