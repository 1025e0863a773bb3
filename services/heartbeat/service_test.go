package heartbeat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"flowcode-go/bus"
	"flowcode-go/types"
)

func TestLine(t *testing.T) {
	got := line("heat", types.FlowValue{RateLPM: 6, TotalML: 1000, OrderML: 250})
	want := "heat 6.00 L/min total 1000 mL order 250 mL"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestReportsLatestValues(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("hb")

	var mu sync.Mutex
	var lines []string
	s := New()
	s.out = func(l string) { mu.Lock(); lines = append(lines, l); mu.Unlock() }

	conn.Publish(conn.NewMessage(bus.T("config", "heartbeat"), types.HeartbeatConfig{IntervalMs: 20}, true))
	conn.Publish(conn.NewMessage(
		bus.T("hal", "cap", "flow", "meter", "pipe", "value"),
		types.FlowValue{RateLPM: 1.5, TotalML: 42},
		true,
	))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = s.Start(ctx, conn)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		for _, l := range lines {
			if strings.HasSuffix(l, "pipe 1.50 L/min total 42 mL order 0 mL") {
				mu.Unlock()
				return
			}
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no meter line in %v", lines)
}
