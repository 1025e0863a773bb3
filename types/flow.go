package types

// ------------------------
// Flow meter capability
// ------------------------

type FlowInfo struct {
	Pin            int     `json:"pin"`
	IRQ            int     `json:"irq"`
	Edge           string  `json:"edge"`
	PulsesPerLitre float32 `json:"pulses_per_litre"`
	SampleMs       uint32  `json:"sample_ms"`
	Actuator       string  `json:"actuator,omitempty"` // default order target
}

// FlowValue is published retained at hal/cap/flow/meter/<name>/value after
// every sample. Volumes are millilitres.
type FlowValue struct {
	RateLPM    float32 `json:"rate_lpm"`
	Pulses     uint32  `json:"pulses"`
	IntervalML uint32  `json:"interval_ml"`
	TotalML    uint32  `json:"total_ml"`
	OrderML    uint32  `json:"order_ml"`
	TSms       int64   `json:"ts_ms"`
}

type OrderState string

const (
	OrderIdle      OrderState = "idle"
	OrderActive    OrderState = "active"
	OrderComplete  OrderState = "complete"
	OrderCancelled OrderState = "cancelled"
)

// OrderStatus is both the reply to order_status and the payload of
// order/<state> events.
type OrderStatus struct {
	State       OrderState `json:"state"`
	TargetML    int32      `json:"target_ml"`
	DeliveredML uint32     `json:"delivered_ml"`
	OvershootML uint32     `json:"overshoot_ml"`
	Actuator    string     `json:"actuator,omitempty"`
	StartedMs   int64      `json:"started_ms,omitempty"`
	DoneMs      int64      `json:"done_ms,omitempty"`
}

// ------------------------
// Flow meter controls
// ------------------------

type OrderStart struct {
	TargetML int32  `json:"target_ml"`
	Actuator string `json:"actuator,omitempty"` // empty => meter default
}

type SetRate struct {
	PeriodMs uint32 `json:"period_ms"`
}

// TotalReply answers read and reset_totals.
type TotalReply struct {
	OK      bool   `json:"ok"`
	TotalML uint32 `json:"total_ml"`
}

// ------------------------
// Valve (relay) capability
// ------------------------

type ValveInfo struct {
	Pin       int  `json:"pin"`
	ActiveLow bool `json:"active_low"`
}

type ValveValue struct {
	Open bool `json:"open"`
}

type ValveSet struct {
	Open bool `json:"open"`
}

// ------------------------
// Manual dispense
// ------------------------

// DispenseRule starts an order on Sensor when Button is pressed.
type DispenseRule struct {
	Button   string `json:"button"`
	Sensor   string `json:"sensor"`
	TargetML int32  `json:"target_ml"`
	Actuator string `json:"actuator,omitempty"`
}
