//go:build !rp2040 && !rp2350

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowcode-go/services/gateway/config"
)

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := config.Load("flowd.example.yaml")
	require.NoError(t, err)

	assert.Empty(t, cfg.MQTT.Broker)
	assert.Empty(t, cfg.InfluxDB.URL)
	assert.Len(t, cfg.HALConfig().Devices, 5)
	assert.Len(t, cfg.Simulate, 2)
	require.NotNil(t, cfg.Simulate[0].ValvePin)
	assert.Nil(t, cfg.Simulate[1].ValvePin)
}
