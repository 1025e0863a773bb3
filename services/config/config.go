package config

import (
	"context"
	"sort"

	"flowcode-go/bus"
	"flowcode-go/services/hal"
	"flowcode-go/types"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

// Service publishes compiled-in configuration as retained config/<key>
// messages so services pick it up whenever they subscribe.
type Service struct {
	Name   string
	values map[string]any
}

func NewConfigService(values map[string]any) *Service {
	return &Service{Name: serviceName, values: values}
}

// FromSetup lays out a board setup under the keys services listen on.
func FromSetup(s hal.BoardSetup, hb types.HeartbeatConfig) map[string]any {
	return map[string]any{
		"board":     s.Board,
		"hal":       s.HAL,
		"dispense":  s.Dispense,
		"heartbeat": hb,
	}
}

// Topic returns config/<key>.
func Topic(key string) bus.Topic { return bus.T(configPrefix, key) }

func (s *Service) publish(conn *bus.Connection) int {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	n := 0
	for _, k := range keys {
		v := s.values[k]
		if v == nil {
			continue
		}
		conn.Publish(conn.NewMessage(Topic(k), v, true))
		n++
	}
	return n
}

// Start publishes all values once.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	if ctx.Err() != nil {
		return
	}
	n := s.publish(conn)
	println("[config] published", n, "keys")
}
