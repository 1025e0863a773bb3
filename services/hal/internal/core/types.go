package core

import (
	"context"
	"time"

	"flowcode-go/errcode"
	"flowcode-go/services/hal/internal/halcore"
	"flowcode-go/services/hal/internal/pulse"
	"flowcode-go/types"
)

// ---- Capability & device model ----

// CapAddr is the public address hal/cap/<domain>/<kind>/<name>.
type CapAddr struct {
	Domain string
	Kind   types.Kind
	Name   string
}

type CapabilitySpec struct {
	Domain string
	Kind   types.Kind
	Name   string
	Info   types.Info
}

// EnqueueResult is returned by Device.Control. Control must not block; work
// that takes time is queued and reported later through the emitter.
// Reply, when set, is sent to the requester instead of OKReply.
type EnqueueResult struct {
	OK    bool
	Error errcode.Code
	Reply any
}

type Device interface {
	ID() string
	Capabilities() []CapabilitySpec
	Init(ctx context.Context) error
	Control(addr CapAddr, verb string, payload any) (EnqueueResult, error)
	Close() error
}

// Builder input
type BuilderInput struct {
	ID, Type string
	Params   any
	Res      Resources
}

type Builder interface {
	Build(ctx context.Context, in BuilderInput) (Device, error)
}

// ---- Device → HAL telemetry (single shape) ----
// By default an Event is a value update published retained to .../value.
// IsEvent publishes to .../event[/EventTag] instead (not retained). A
// non-empty Err publishes only .../status=degraded.

type Event struct {
	Addr     CapAddr
	Payload  any
	TSms     int64
	Err      string
	IsEvent  bool
	EventTag string
}

type EventEmitter interface {
	// Emit must not block; false means the event was dropped.
	Emit(ev Event) bool
}

// ---- Pins ----

type PinFunc uint8

const (
	FuncGPIOIn PinFunc = iota
	FuncGPIOOut
	FuncPulseIn
	FuncOneWire
)

type PinHandle interface {
	Number() int
	AsGPIO() halcore.GPIOPin
	// AsIRQ is false when the board pin has no interrupt support.
	AsIRQ() (halcore.IRQPin, bool)
}

// GPIOEdgeStream delivers debounced level changes for one input.
type GPIOEdgeStream interface {
	Events() <-chan EdgeEvent
	Close()
}

type EdgeEvent struct {
	Pressed bool
	Edge    halcore.Edge
	TS      time.Time
}

// ---- Actuators ----

// Actuator is an output that gates flow (a relay-driven valve).
type Actuator interface {
	ActuatorID() string
	Drive(open bool) error
	IsOpen() bool
}

// ---- HAL-injected resources ----

type ResourceRegistry interface {
	ClaimPin(devID string, pin int, fn PinFunc) (PinHandle, error)
	ReleasePin(devID string, pin int)

	// AttachPulse routes edges on a claimed pin straight to sink from
	// interrupt context.
	AttachPulse(devID string, pin int, edge halcore.Edge, sink pulse.Sink) error
	DetachPulse(devID string, pin int)

	SubscribeGPIOEdges(devID string, pin int, debounce time.Duration, invert bool, buf int) (GPIOEdgeStream, error)
	UnsubscribeGPIOEdges(devID string, pin int)

	// OpenProbe opens the 1-Wire probe on a pin claimed with FuncOneWire.
	OpenProbe(devID string, pin int) (halcore.TempProbe, error)

	RegisterActuator(a Actuator) error
	UnregisterActuator(a Actuator)
	Actuator(id string) (Actuator, bool)
}

type Resources struct {
	Reg ResourceRegistry
	Pub EventEmitter // provided by HAL
}
