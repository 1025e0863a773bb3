package heartbeat

import (
	"context"
	"sort"
	"strconv"
	"time"

	"flowcode-go/bus"
	"flowcode-go/types"
	"flowcode-go/x/timex"
)

const defaultInterval = time.Second

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	topicMeterValues     = bus.T("hal", "cap", types.DomainFlow, string(types.KindFlowMeter), bus.WildOne, "value")
)

// Service prints a console line per flow meter on every tick.
type Service struct {
	out  func(string)
	last map[string]types.FlowValue
}

func New() *Service {
	return &Service{out: func(s string) { println(s) }, last: map[string]types.FlowValue{}}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)
	valSub := conn.Subscribe(topicMeterValues)
	defer conn.Unsubscribe(valSub)

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.out("[hb] stopping")
			return
		case t := <-tick.C:
			s.report(t)
		case msg := <-valSub.Channel():
			name, _ := msg.Topic.At(4).(string)
			if v, ok := msg.Payload.(types.FlowValue); ok && name != "" {
				s.last[name] = v
			}
		case msg := <-cfgSub.Channel():
			if c, ok := msg.Payload.(types.HeartbeatConfig); ok && c.IntervalMs > 0 {
				tick.Reset(timex.Ms(c.IntervalMs))
				s.out("[hb] interval " + strconv.FormatUint(uint64(c.IntervalMs), 10) + " ms")
			}
		}
	}
}

func (s *Service) report(t time.Time) {
	names := make([]string, 0, len(s.last))
	for n := range s.last {
		names = append(names, n)
	}
	sort.Strings(names)
	if len(names) == 0 {
		s.out("[hb] " + t.Format("15:04:05") + " no meters")
		return
	}
	for _, n := range names {
		s.out("[hb] " + t.Format("15:04:05") + " " + line(n, s.last[n]))
	}
}

// line renders one meter, e.g. "heat 6.00 L/min total 1000 mL order 250 mL".
func line(name string, v types.FlowValue) string {
	return name + " " + strconv.FormatFloat(float64(v.RateLPM), 'f', 2, 32) + " L/min" +
		" total " + strconv.FormatUint(uint64(v.TotalML), 10) + " mL" +
		" order " + strconv.FormatUint(uint64(v.OrderML), 10) + " mL"
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
