package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowcode-go/types"
)

const sample = `
logging:
  level: debug
mqtt:
  broker: tcp://localhost:1883
  prefix: plant
devices:
  - id: relay0_1
    type: valve
    params:
      pin: 14
  - id: heat
    type: flow_meter
    params:
      pin: 2
      pulses_per_litre: 450
      actuator: relay0_1
  - id: tank
    type: ds18b20
    params: {pin: 5}
pollers:
  - domain: env
    kind: temperature
    name: tank
    interval_ms: 5000
dispense:
  - button: dispense
    sensor: heat
    target_ml: 250
simulate:
  - pin: 2
    lpm: 6
    valve_pin: 14
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "localhost:8080", cfg.HTTP.Addr)
	assert.Equal(t, 2*time.Second, cfg.HTTP.CallTimeout)
	assert.Equal(t, "flowd", cfg.MQTT.ClientID)
	assert.Equal(t, "plant", cfg.MQTT.Prefix)
	assert.Equal(t, 5, cfg.MQTT.ConnectRetries)
	assert.Equal(t, uint32(5), cfg.InfluxDB.BreakerFailures)
	assert.Equal(t, "read", cfg.Pollers[0].Verb)
	assert.Equal(t, 450.0, cfg.Simulate[0].PulsesPerLitre)
	require.NotNil(t, cfg.Simulate[0].ValvePin)
	assert.Equal(t, 14, *cfg.Simulate[0].ValvePin)
}

func TestHALConfigConversion(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	hc := cfg.HALConfig()
	require.Len(t, hc.Devices, 3)
	assert.Equal(t, "flow_meter", hc.Devices[1].Type)
	params, ok := hc.Devices[1].Params.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "relay0_1", params["actuator"])

	require.Len(t, hc.Pollers, 1)
	assert.Equal(t, types.PollSpec{
		Domain: "env", Kind: types.KindTemperature, Name: "tank", Verb: "read", IntervalMs: 5000,
	}, hc.Pollers[0])

	assert.Equal(t, []types.DispenseRule{{Button: "dispense", Sensor: "heat", TargetML: 250}}, cfg.DispenseRules())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("INFLUXDB_URL", "http://localhost:8086")
	t.Setenv("INFLUXDB_TOKEN", "secret-token")
	t.Setenv("INFLUXDB_ORG", "plant")
	t.Setenv("INFLUXDB_BUCKET", "flow")
	t.Setenv("FLOWD_MQTT_CONNECT_RETRIES", "9")

	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "http://localhost:8086", cfg.InfluxDB.URL)
	assert.Equal(t, "flow", cfg.InfluxDB.Bucket)
	assert.Equal(t, 9, cfg.MQTT.ConnectRetries)
}

func TestValidationFailures(t *testing.T) {
	cases := map[string]string{
		"unknown device type":  "devices:\n  - id: x\n    type: laser\n",
		"missing device id":    "devices:\n  - type: valve\n",
		"duplicate ids":        "devices:\n  - {id: a, type: valve}\n  - {id: a, type: valve}\n",
		"bad log level":        "logging: {level: loud}\n",
		"wildcard prefix":      "mqtt: {prefix: 'a/#'}\n",
		"influx without token": "influxdb: {url: 'http://localhost:8086', organization: o, bucket: b}\n",
		"zero dispense":        "dispense:\n  - {button: b, sensor: s, target_ml: 0}\n",
		"sim pin out of range": "simulate:\n  - {pin: 40, lpm: 1}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Devices, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
