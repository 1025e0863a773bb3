// Package metrics provides Prometheus metrics for the flow gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FlowRate is the rate from the last sample, litres per minute.
	FlowRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flowd_flow_rate_lpm",
		Help: "Flow rate from the last sample in litres per minute",
	}, []string{"sensor"})

	// TotalVolume mirrors the meter's lifetime total.
	TotalVolume = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flowd_total_volume_ml",
		Help: "Lifetime volume reported by the meter in millilitres",
	}, []string{"sensor"})

	OrderVolume = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flowd_order_volume_ml",
		Help: "Volume delivered against the current order in millilitres",
	}, []string{"sensor"})

	SamplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowd_samples_total",
		Help: "Total number of meter samples received",
	}, []string{"sensor"})

	// OrderEvents counts order transitions by resulting state.
	OrderEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowd_order_events_total",
		Help: "Total number of order state transitions",
	}, []string{"sensor", "state"})

	OvershootML = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowd_order_overshoot_ml_total",
		Help: "Millilitres delivered beyond order targets",
	}, []string{"sensor"})

	MQTTPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowd_mqtt_publish_errors_total",
		Help: "Total number of failed MQTT publishes",
	})

	// CommandsTotal counts order commands by source and result.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowd_commands_total",
		Help: "Order commands received, by source and result",
	}, []string{"source", "result"})

	InfluxDBWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowd_influxdb_writes_total",
		Help: "Total number of writes to InfluxDB",
	})

	InfluxDBWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowd_influxdb_write_errors_total",
		Help: "Total number of failed writes to InfluxDB",
	})
)
