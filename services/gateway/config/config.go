// Package config loads the flowd gateway configuration from YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"flowcode-go/types"
)

// Config is the whole flowd configuration file.
type Config struct {
	Logging  LoggingConfig    `yaml:"logging"`
	HTTP     HTTPConfig       `yaml:"http"`
	MQTT     MQTTConfig       `yaml:"mqtt"`
	InfluxDB InfluxDBConfig   `yaml:"influxdb"`
	Devices  []DeviceConfig   `yaml:"devices" validate:"dive"`
	Pollers  []PollerConfig   `yaml:"pollers" validate:"dive"`
	Dispense []DispenseConfig `yaml:"dispense" validate:"dive"`
	Simulate []SimFlowConfig  `yaml:"simulate" validate:"dive"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=trace debug info warn warning error"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr" validate:"required,hostname_port"`
	CommandRate  float64       `yaml:"command_rate" validate:"gt=0"`
	CommandBurst int           `yaml:"command_burst" validate:"min=1"`
	CallTimeout  time.Duration `yaml:"call_timeout"`
}

// MQTTConfig is optional; an empty broker disables the uplink.
type MQTTConfig struct {
	Broker         string  `yaml:"broker" validate:"omitempty,url"`
	ClientID       string  `yaml:"client_id" validate:"required_with=Broker"`
	Username       string  `yaml:"username"`
	Password       string  `yaml:"password"`
	Prefix         string  `yaml:"prefix" validate:"required,excludesall=+#"`
	ConnectRetries int     `yaml:"connect_retries" validate:"min=1"`
	CommandRate    float64 `yaml:"command_rate" validate:"gt=0"`
	CommandBurst   int     `yaml:"command_burst" validate:"min=1"`
}

// InfluxDBConfig is optional; an empty URL disables history writes.
type InfluxDBConfig struct {
	URL             string        `yaml:"url" validate:"omitempty,url"`
	Token           string        `yaml:"token" validate:"required_with=URL"`
	Organization    string        `yaml:"organization" validate:"required_with=URL"`
	Bucket          string        `yaml:"bucket" validate:"required_with=URL"`
	BreakerFailures uint32        `yaml:"breaker_failures" validate:"min=1"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
}

// DeviceConfig is one HAL device; Params is passed through as decoded YAML.
type DeviceConfig struct {
	ID     string         `yaml:"id" validate:"required"`
	Type   string         `yaml:"type" validate:"required,oneof=flow_meter valve ds18b20 gpio_button"`
	Params map[string]any `yaml:"params"`
}

type PollerConfig struct {
	Domain     string `yaml:"domain" validate:"required"`
	Kind       string `yaml:"kind" validate:"required"`
	Name       string `yaml:"name" validate:"required"`
	Verb       string `yaml:"verb"`
	IntervalMs uint32 `yaml:"interval_ms" validate:"min=1"`
	JitterMs   uint16 `yaml:"jitter_ms"`
}

type DispenseConfig struct {
	Button   string `yaml:"button" validate:"required"`
	Sensor   string `yaml:"sensor" validate:"required"`
	TargetML int32  `yaml:"target_ml" validate:"gt=0"`
	Actuator string `yaml:"actuator"`
}

// SimFlowConfig drives pulses on a simulated meter pin. When ValvePin is
// set, water only flows while that relay is open.
type SimFlowConfig struct {
	Pin            int     `yaml:"pin" validate:"min=0,max=29"`
	LPM            float64 `yaml:"lpm" validate:"min=0"`
	PulsesPerLitre float64 `yaml:"pulses_per_litre" validate:"min=0"`
	ValvePin       *int    `yaml:"valve_pin" validate:"omitempty,min=0,max=29"`
	ValveActiveLow bool    `yaml:"valve_active_low"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, then applies environment overrides, defaults and
// validation in that order.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("FLOWD_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("FLOWD_MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv("FLOWD_MQTT_USERNAME"); v != "" {
		c.MQTT.Username = v
	}
	if v := os.Getenv("FLOWD_MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
	if v := os.Getenv("INFLUXDB_URL"); v != "" {
		c.InfluxDB.URL = v
	}
	if v := os.Getenv("INFLUXDB_TOKEN"); v != "" {
		c.InfluxDB.Token = v
	}
	if v := os.Getenv("INFLUXDB_ORG"); v != "" {
		c.InfluxDB.Organization = v
	}
	if v := os.Getenv("INFLUXDB_BUCKET"); v != "" {
		c.InfluxDB.Bucket = v
	}
	if v := os.Getenv("FLOWD_MQTT_CONNECT_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MQTT.ConnectRetries = n
		} else {
			fmt.Fprintf(os.Stderr, "Warning: Failed to parse FLOWD_MQTT_CONNECT_RETRIES '%s': %v\n", v, err)
		}
	}
}

func (c *Config) setDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "localhost:8080"
	}
	if c.HTTP.CommandRate == 0 {
		c.HTTP.CommandRate = 5
	}
	if c.HTTP.CommandBurst == 0 {
		c.HTTP.CommandBurst = 10
	}
	if c.HTTP.CallTimeout == 0 {
		c.HTTP.CallTimeout = 2 * time.Second
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "flowd"
	}
	if c.MQTT.Prefix == "" {
		c.MQTT.Prefix = "flowd"
	}
	if c.MQTT.ConnectRetries == 0 {
		c.MQTT.ConnectRetries = 5
	}
	if c.MQTT.CommandRate == 0 {
		c.MQTT.CommandRate = 1
	}
	if c.MQTT.CommandBurst == 0 {
		c.MQTT.CommandBurst = 5
	}
	if c.InfluxDB.BreakerFailures == 0 {
		c.InfluxDB.BreakerFailures = 5
	}
	if c.InfluxDB.BreakerTimeout == 0 {
		c.InfluxDB.BreakerTimeout = 30 * time.Second
	}
	for i := range c.Pollers {
		if c.Pollers[i].Verb == "" {
			c.Pollers[i].Verb = "read"
		}
	}
	for i := range c.Simulate {
		if c.Simulate[i].PulsesPerLitre == 0 {
			c.Simulate[i].PulsesPerLitre = 450
		}
	}
}

// Validate checks struct tags, then cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Devices))
	for _, d := range c.Devices {
		if seen[d.ID] {
			return fmt.Errorf("devices: duplicate id %q", d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}

// HALConfig converts the device and poller sections into the payload the
// HAL expects on config/hal.
func (c *Config) HALConfig() types.HALConfig {
	var out types.HALConfig
	for _, d := range c.Devices {
		out.Devices = append(out.Devices, types.HALDevice{ID: d.ID, Type: d.Type, Params: d.Params})
	}
	for _, p := range c.Pollers {
		out.Pollers = append(out.Pollers, types.PollSpec{
			Domain:     p.Domain,
			Kind:       types.Kind(p.Kind),
			Name:       p.Name,
			Verb:       p.Verb,
			IntervalMs: p.IntervalMs,
			JitterMs:   p.JitterMs,
		})
	}
	return out
}

func (c *Config) DispenseRules() []types.DispenseRule {
	out := make([]types.DispenseRule, 0, len(c.Dispense))
	for _, d := range c.Dispense {
		out = append(out, types.DispenseRule{
			Button: d.Button, Sensor: d.Sensor, TargetML: d.TargetML, Actuator: d.Actuator,
		})
	}
	return out
}
