// Package gateway mirrors flow meter traffic from the bus to host-side
// sinks: Prometheus, MQTT and InfluxDB.
package gateway

import (
	"context"

	"github.com/rs/zerolog"

	"flowcode-go/bus"
	"flowcode-go/services/flowctl"
	"flowcode-go/services/gateway/metrics"
	"flowcode-go/types"
	"flowcode-go/x/logx"
)

// Publisher forwards readings upstream, e.g. to MQTT.
type Publisher interface {
	PublishFlow(sensor string, v types.FlowValue) error
	PublishOrder(sensor string, st types.OrderStatus) error
}

// Store persists readings, e.g. to InfluxDB.
type Store interface {
	WriteFlow(ctx context.Context, sensor string, v types.FlowValue) error
	WriteOrder(ctx context.Context, sensor string, st types.OrderStatus) error
}

// Service fans meter values and order events out to its sinks. Either sink
// may be nil.
type Service struct {
	conn  *bus.Connection
	pub   Publisher
	store Store
	log   zerolog.Logger
}

func New(conn *bus.Connection, pub Publisher, store Store) *Service {
	return &Service{conn: conn, pub: pub, store: store, log: logx.Component("gateway")}
}

// Run blocks until ctx ends.
func (s *Service) Run(ctx context.Context) {
	values := s.conn.Subscribe(flowctl.ValueTopic(bus.WildOne))
	defer s.conn.Unsubscribe(values)
	orders := s.conn.Subscribe(flowctl.OrderEventTopic(bus.WildOne))
	defer s.conn.Unsubscribe(orders)

	s.log.Info().Msg("gateway running")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("gateway stopping")
			return
		case m, ok := <-values.Channel():
			if !ok {
				return
			}
			if v, ok := m.Payload.(types.FlowValue); ok {
				s.onValue(ctx, sensorOf(m), v)
			}
		case m, ok := <-orders.Channel():
			if !ok {
				return
			}
			if st, ok := m.Payload.(types.OrderStatus); ok {
				s.onOrder(ctx, sensorOf(m), st)
			}
		}
	}
}

// hal/cap/flow/meter/<sensor>/...
func sensorOf(m *bus.Message) string {
	s, _ := m.Topic.At(4).(string)
	return s
}

func (s *Service) onValue(ctx context.Context, sensor string, v types.FlowValue) {
	metrics.FlowRate.WithLabelValues(sensor).Set(float64(v.RateLPM))
	metrics.TotalVolume.WithLabelValues(sensor).Set(float64(v.TotalML))
	metrics.OrderVolume.WithLabelValues(sensor).Set(float64(v.OrderML))
	metrics.SamplesTotal.WithLabelValues(sensor).Inc()

	if s.store != nil {
		if err := s.store.WriteFlow(ctx, sensor, v); err != nil {
			s.log.Error().Err(err).Str("sensor", sensor).Msg("failed to store sample")
		}
	}
	if s.pub != nil {
		if err := s.pub.PublishFlow(sensor, v); err != nil {
			s.log.Error().Err(err).Str("sensor", sensor).Msg("failed to publish sample")
		}
	}
}

func (s *Service) onOrder(ctx context.Context, sensor string, st types.OrderStatus) {
	metrics.OrderEvents.WithLabelValues(sensor, string(st.State)).Inc()
	if st.State == types.OrderComplete && st.OvershootML > 0 {
		metrics.OvershootML.WithLabelValues(sensor).Add(float64(st.OvershootML))
	}
	s.log.Info().Str("sensor", sensor).Str("state", string(st.State)).
		Int32("target_ml", st.TargetML).Uint32("delivered_ml", st.DeliveredML).
		Msg("order")

	if s.store != nil {
		if err := s.store.WriteOrder(ctx, sensor, st); err != nil {
			s.log.Error().Err(err).Str("sensor", sensor).Msg("failed to store order")
		}
	}
	if s.pub != nil {
		if err := s.pub.PublishOrder(sensor, st); err != nil {
			s.log.Error().Err(err).Str("sensor", sensor).Msg("failed to publish order")
		}
	}
}
