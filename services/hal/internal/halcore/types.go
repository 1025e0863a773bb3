// services/hal/internal/halcore/types.go
package halcore

// ---- GPIO abstractions ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

type GPIOPin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Toggle()
	Number() int
}

// Edge selection for IRQ.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// IRQPin extends GPIOPin with interrupts. The handler runs in interrupt
// context on MCU targets.
type IRQPin interface {
	GPIOPin
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// PinFactory supplies GPIO pins by the board's number scheme.
type PinFactory interface {
	ByNumber(n int) (GPIOPin, bool)
}

func EdgeToString(e Edge) string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// ParseEdge accepts "rising", "falling", "both"; empty means rising.
func ParseEdge(s string) (Edge, bool) {
	switch s {
	case "", "rising":
		return EdgeRising, true
	case "falling":
		return EdgeFalling, true
	case "both":
		return EdgeBoth, true
	case "none":
		return EdgeNone, true
	default:
		return EdgeNone, false
	}
}

// ParsePull accepts "up", "down", "none"; empty means none.
func ParsePull(s string) (Pull, bool) {
	switch s {
	case "", "none":
		return PullNone, true
	case "up":
		return PullUp, true
	case "down":
		return PullDown, true
	default:
		return PullNone, false
	}
}

// ---- 1-Wire temperature probes ----

// TempProbe is one DS18B20-class sensor on a 1-Wire bus.
type TempProbe interface {
	ROM() string
	// StartConversion begins a measurement; results are ready after
	// ConversionTime.
	StartConversion() error
	ReadMilliC() (int32, error)
}

// ProbeFactory opens the first probe found on the bus wired to pin.
type ProbeFactory interface {
	OpenProbe(pin int) (TempProbe, error)
}
