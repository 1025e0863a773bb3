// Package httpapi is the gateway's admin HTTP surface: metrics, health and
// per-sensor order control.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"flowcode-go/errcode"
	"flowcode-go/services/gateway/metrics"
	"flowcode-go/types"
	"flowcode-go/x/logx"
)

// Controller is the flow meter surface the API drives; *flowctl.Client
// implements it.
type Controller interface {
	ReadTotalVolume(ctx context.Context, sensor string) (uint32, error)
	StartOrder(ctx context.Context, sensor string, targetML int32, actuator string) (types.OrderStatus, error)
	OrderStatus(ctx context.Context, sensor string) (types.OrderStatus, error)
	CancelOrder(ctx context.Context, sensor string) (types.OrderStatus, error)
	ResetTotals(ctx context.Context, sensor string) error
	Snapshot(ctx context.Context, sensor string) (types.FlowValue, error)
}

type TotalResponse struct {
	Sensor  string `json:"sensor"`
	TotalML uint32 `json:"total_ml"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type api struct {
	ctl     Controller
	limiter *rate.Limiter
	timeout time.Duration
	log     zerolog.Logger
}

// NewRouter wires the routes. Mutating routes share limiter.
func NewRouter(ctl Controller, limiter *rate.Limiter, timeout time.Duration) *mux.Router {
	a := &api{ctl: ctl, limiter: limiter, timeout: timeout, log: logx.Component("http")}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	s := r.PathPrefix("/sensors/{id}").Subrouter()
	s.HandleFunc("/total", a.total).Methods(http.MethodGet)
	s.HandleFunc("/flow", a.flow).Methods(http.MethodGet)
	s.HandleFunc("/order", a.orderStatus).Methods(http.MethodGet)
	s.HandleFunc("/order", a.limited(a.startOrder)).Methods(http.MethodPost)
	s.HandleFunc("/order", a.limited(a.cancelOrder)).Methods(http.MethodDelete)
	s.HandleFunc("/reset", a.limited(a.reset)).Methods(http.MethodPost)
	return r
}

// NewServer returns a server with conservative timeouts.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        h,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (a *api) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.limiter.Allow() {
			metrics.CommandsTotal.WithLabelValues("http", "rate_limited").Inc()
			a.log.Warn().Str("path", r.URL.Path).Str("remote_addr", r.RemoteAddr).Msg("rate limit exceeded")
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "rate_limited"})
			return
		}
		next(w, r)
	}
}

func (a *api) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), a.timeout)
}

func (a *api) total(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.ctx(r)
	defer cancel()
	id := mux.Vars(r)["id"]
	v, err := a.ctl.ReadTotalVolume(ctx, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TotalResponse{Sensor: id, TotalML: v})
}

func (a *api) flow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.ctx(r)
	defer cancel()
	v, err := a.ctl.Snapshot(ctx, mux.Vars(r)["id"])
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *api) orderStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.ctx(r)
	defer cancel()
	st, err := a.ctl.OrderStatus(ctx, mux.Vars(r)["id"])
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *api) startOrder(w http.ResponseWriter, r *http.Request) {
	var req types.OrderStart
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		metrics.CommandsTotal.WithLabelValues("http", "bad_payload").Inc()
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: string(errcode.InvalidPayload)})
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()
	st, err := a.ctl.StartOrder(ctx, mux.Vars(r)["id"], req.TargetML, req.Actuator)
	if err != nil {
		metrics.CommandsTotal.WithLabelValues("http", "error").Inc()
		a.fail(w, r, err)
		return
	}
	metrics.CommandsTotal.WithLabelValues("http", "ok").Inc()
	writeJSON(w, http.StatusAccepted, st)
}

func (a *api) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.ctx(r)
	defer cancel()
	st, err := a.ctl.CancelOrder(ctx, mux.Vars(r)["id"])
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *api) reset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.ctx(r)
	defer cancel()
	id := mux.Vars(r)["id"]
	if err := a.ctl.ResetTotals(ctx, id); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TotalResponse{Sensor: id})
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := errcode.Of(err)
	status := statusFor(code)
	ev := a.log.Warn()
	if status >= http.StatusInternalServerError {
		ev = a.log.Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	writeJSON(w, status, ErrorResponse{Error: string(code)})
}

// statusFor maps bus error codes onto HTTP statuses.
func statusFor(c errcode.Code) int {
	switch c {
	case errcode.InvalidParams, errcode.InvalidPayload, errcode.UnknownActuator:
		return http.StatusBadRequest
	case errcode.UnknownCapability:
		return http.StatusNotFound
	case errcode.NoOrder, errcode.OrderActive, errcode.Busy:
		return http.StatusConflict
	case errcode.HALNotReady:
		return http.StatusServiceUnavailable
	case errcode.Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("failed to write response")
	}
}
