// Package mqttlink publishes flow telemetry to an MQTT broker and accepts
// order commands from it.
package mqttlink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"flowcode-go/services/gateway/metrics"
	"flowcode-go/types"
	"flowcode-go/x/logx"
)

const (
	publishTimeout = 2 * time.Second
	commandTimeout = 5 * time.Second
	disconnectMs   = 250
)

var (
	ErrRateLimited = errors.New("mqttlink: command rate limit exceeded")
	ErrBadTopic    = errors.New("mqttlink: malformed command topic")
)

type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	Prefix         string
	ConnectRetries int
	CommandRate    float64
	CommandBurst   int
}

// Starter is the order entry point commands are forwarded to.
type Starter interface {
	StartOrder(ctx context.Context, sensor string, targetML int32, actuator string) (types.OrderStatus, error)
}

// Command is the JSON body of <prefix>/<sensor>/order/start.
type Command struct {
	TargetML int32  `json:"target_ml"`
	Actuator string `json:"actuator,omitempty"`
}

// Connect dials the broker, retrying with exponential backoff until it
// succeeds, the retries run out or ctx ends.
func Connect(ctx context.Context, cfg Config) (mqtt.Client, error) {
	log := logx.Component("mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("connection lost")
	})

	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 1
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		token := client.Connect()
		if !token.WaitTimeout(10 * time.Second) {
			return fmt.Errorf("connect to %s: timed out", cfg.Broker)
		}
		if err := token.Error(); err != nil {
			log.Warn().Err(err).Str("broker", cfg.Broker).Msg("connect failed")
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}

	log.Info().Str("broker", cfg.Broker).Msg("connected")
	return client, nil
}

// Link owns an MQTT client for one gateway.
type Link struct {
	client  mqtt.Client
	prefix  string
	starter Starter
	limiter *rate.Limiter
	log     zerolog.Logger
}

func New(client mqtt.Client, cfg Config, starter Starter) *Link {
	burst := cfg.CommandBurst
	if burst < 1 {
		burst = 1
	}
	return &Link{
		client:  client,
		prefix:  strings.TrimSuffix(cfg.Prefix, "/"),
		starter: starter,
		limiter: rate.NewLimiter(rate.Limit(cfg.CommandRate), burst),
		log:     logx.Component("mqtt"),
	}
}

func (l *Link) FlowTopic(sensor string) string  { return l.prefix + "/" + sensor + "/flow" }
func (l *Link) OrderTopic(sensor string) string { return l.prefix + "/" + sensor + "/order" }

func (l *Link) commandFilter() string { return l.prefix + "/+/order/start" }

// PublishFlow sends a sample, retained so late subscribers see the latest.
func (l *Link) PublishFlow(sensor string, v types.FlowValue) error {
	return l.publish(l.FlowTopic(sensor), 0, true, v)
}

// PublishOrder sends an order transition at QoS 1.
func (l *Link) PublishOrder(sensor string, st types.OrderStatus) error {
	return l.publish(l.OrderTopic(sensor), 1, false, st)
}

func (l *Link) publish(topic string, qos byte, retained bool, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	token := l.client.Publish(topic, qos, retained, b)
	if !token.WaitTimeout(publishTimeout) {
		metrics.MQTTPublishErrors.Inc()
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		metrics.MQTTPublishErrors.Inc()
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Run subscribes to order commands and blocks until ctx ends.
func (l *Link) Run(ctx context.Context) error {
	filter := l.commandFilter()
	token := l.client.Subscribe(filter, 1, func(_ mqtt.Client, m mqtt.Message) {
		cctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()
		if err := l.handleCommand(cctx, m.Topic(), m.Payload()); err != nil {
			l.log.Warn().Err(err).Str("topic", m.Topic()).Msg("order command rejected")
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", filter, token.Error())
	}
	l.log.Info().Str("topic", filter).Msg("listening for order commands")

	<-ctx.Done()

	l.client.Unsubscribe(filter).WaitTimeout(publishTimeout)
	l.client.Disconnect(disconnectMs)
	return nil
}

func (l *Link) handleCommand(ctx context.Context, topic string, payload []byte) error {
	sensor, err := l.sensorOf(topic)
	if err != nil {
		metrics.CommandsTotal.WithLabelValues("mqtt", "bad_topic").Inc()
		return err
	}
	if !l.limiter.Allow() {
		metrics.CommandsTotal.WithLabelValues("mqtt", "rate_limited").Inc()
		return ErrRateLimited
	}
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		metrics.CommandsTotal.WithLabelValues("mqtt", "bad_payload").Inc()
		return fmt.Errorf("decode command: %w", err)
	}
	st, err := l.starter.StartOrder(ctx, sensor, cmd.TargetML, cmd.Actuator)
	if err != nil {
		metrics.CommandsTotal.WithLabelValues("mqtt", "error").Inc()
		return fmt.Errorf("start order on %s: %w", sensor, err)
	}
	metrics.CommandsTotal.WithLabelValues("mqtt", "ok").Inc()
	l.log.Info().Str("sensor", sensor).Int32("target_ml", cmd.TargetML).
		Str("state", string(st.State)).Msg("order started")
	return nil
}

// sensorOf extracts <sensor> from <prefix>/<sensor>/order/start.
func (l *Link) sensorOf(topic string) (string, error) {
	rest, ok := strings.CutPrefix(topic, l.prefix+"/")
	if !ok {
		return "", ErrBadTopic
	}
	sensor, ok := strings.CutSuffix(rest, "/order/start")
	if !ok || sensor == "" || strings.Contains(sensor, "/") {
		return "", ErrBadTopic
	}
	return sensor, nil
}
