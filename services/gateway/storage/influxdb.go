// Package storage writes flow samples and order transitions to InfluxDB.
package storage

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"flowcode-go/services/gateway/metrics"
	"flowcode-go/types"
	"flowcode-go/x/logx"
)

const (
	measurementFlow  = "flow"
	measurementOrder = "flow_order"
)

// PointWriter is the part of api.WriteAPIBlocking the storage uses.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

type Config struct {
	URL             string
	Token           string
	Organization    string
	Bucket          string
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// InfluxDBStorage writes synchronously behind a circuit breaker so a dead
// server costs one fast failure per write instead of a timeout.
type InfluxDBStorage struct {
	client influxdb2.Client
	w      PointWriter
	cb     *gobreaker.CircuitBreaker
	log    zerolog.Logger
}

// NewInfluxDBStorage connects and checks server health.
func NewInfluxDBStorage(ctx context.Context, cfg Config) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := client.Health(hctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	if health.Status != "pass" {
		client.Close()
		message := "unknown error"
		if health.Message != nil {
			message = *health.Message
		}
		return nil, fmt.Errorf("InfluxDB health check failed: %s", message)
	}

	s := newStorage(client.WriteAPIBlocking(cfg.Organization, cfg.Bucket), cfg)
	s.client = client
	s.log.Info().Str("url", cfg.URL).Str("bucket", cfg.Bucket).Msg("connected to InfluxDB")
	return s, nil
}

func newStorage(w PointWriter, cfg Config) *InfluxDBStorage {
	fails := cfg.BreakerFailures
	if fails == 0 {
		fails = 5
	}
	s := &InfluxDBStorage{w: w, log: logx.Component("influxdb")}
	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "influxdb",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state change")
		},
	})
	return s
}

// WriteFlow stores one meter sample.
func (s *InfluxDBStorage) WriteFlow(ctx context.Context, sensor string, v types.FlowValue) error {
	if sensor == "" {
		return fmt.Errorf("sensor cannot be empty")
	}
	p := influxdb2.NewPoint(
		measurementFlow,
		map[string]string{"sensor": sensor},
		map[string]interface{}{
			"rate_lpm":    float64(v.RateLPM),
			"pulses":      int64(v.Pulses),
			"interval_ml": int64(v.IntervalML),
			"total_ml":    int64(v.TotalML),
			"order_ml":    int64(v.OrderML),
		},
		stamp(v.TSms),
	)
	return s.write(ctx, p)
}

// WriteOrder stores an order transition.
func (s *InfluxDBStorage) WriteOrder(ctx context.Context, sensor string, st types.OrderStatus) error {
	if sensor == "" {
		return fmt.Errorf("sensor cannot be empty")
	}
	ts := st.DoneMs
	if ts == 0 {
		ts = st.StartedMs
	}
	p := influxdb2.NewPoint(
		measurementOrder,
		map[string]string{"sensor": sensor, "state": string(st.State), "actuator": st.Actuator},
		map[string]interface{}{
			"target_ml":    int64(st.TargetML),
			"delivered_ml": int64(st.DeliveredML),
			"overshoot_ml": int64(st.OvershootML),
		},
		stamp(ts),
	)
	return s.write(ctx, p)
}

func (s *InfluxDBStorage) write(ctx context.Context, p *write.Point) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.w.WritePoint(ctx, p)
	})
	if err != nil {
		metrics.InfluxDBWriteErrors.Inc()
		return fmt.Errorf("influxdb write %s: %w", p.Name(), err)
	}
	metrics.InfluxDBWritesTotal.Inc()
	return nil
}

// State reports the breaker state.
func (s *InfluxDBStorage) State() gobreaker.State { return s.cb.State() }

// Close closes the InfluxDB client.
func (s *InfluxDBStorage) Close() {
	if s.client != nil {
		s.log.Info().Msg("closing InfluxDB connection")
		s.client.Close()
	}
}

func stamp(ms int64) time.Time {
	if ms <= 0 {
		return time.Now()
	}
	return time.UnixMilli(ms)
}
