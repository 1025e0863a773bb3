package boards

import (
	"strconv"

	"flowcode-go/errcode"
)

// PinMap is the wiring of one controller board revision. It holds pin
// numbers only; device parameters live in setups.
type PinMap struct {
	Name    string
	OneWire int

	// Relay banks in connector order.
	Relays [][]int
	// Reserved pins are wired on the PCB but must not be driven. They may
	// appear in Relays.
	Reserved []int

	HeatFlow int
	PipeFlow int
	Button   int // -1 when the board has none
}

// UnoAnalog holds the digital numbers of header pins A0..A5 on an
// Uno-footprint carrier (D14..D19). The arduino-pico core on a bare Pico
// defines only A0..A3, as GPIO26..29; the Rev1 relay header also names A4
// and A5, so Rev1 assumes the carrier's Uno numbering.
var UnoAnalog = [6]int{14, 15, 16, 17, 18, 19}

// Rev1 is the original controller. Relay 1_1 sits on pin 4, which is
// reserved and never driven.
var Rev1 = PinMap{
	Name:    "rev1",
	OneWire: 5,
	Relays: [][]int{
		{UnoAnalog[0], UnoAnalog[1], UnoAnalog[2], UnoAnalog[3], UnoAnalog[4], UnoAnalog[5], 9, 8},
		{4, 6, 7},
	},
	Reserved: []int{4},
	HeatFlow: 2,
	PipeFlow: 3,
	Button:   -1,
}

// Rev2 moves the flow inputs next to the relay bank and adds a dispense
// button. It is not pin-compatible with Rev1.
var Rev2 = PinMap{
	Name:    "rev2",
	OneWire: 22,
	Relays: [][]int{
		{2, 3, 4, 5, 6, 7, 8, 9},
		{10, 11, 12},
	},
	HeatFlow: 14,
	PipeFlow: 15,
	Button:   13,
}

// Used lists every assigned pin.
func (m PinMap) Used() []int {
	out := m.sensors()
	for _, bank := range m.Relays {
		out = append(out, bank...)
	}
	return out
}

func (m PinMap) sensors() []int {
	out := []int{m.OneWire, m.HeatFlow, m.PipeFlow}
	if m.Button >= 0 {
		out = append(out, m.Button)
	}
	return out
}

// Relay returns the pin of relay <bank>_<n>, both counted from zero.
func (m PinMap) Relay(bank, n int) (int, bool) {
	if bank < 0 || bank >= len(m.Relays) || n < 0 || n >= len(m.Relays[bank]) {
		return 0, false
	}
	return m.Relays[bank][n], true
}

// IsReserved reports whether pin must be left alone.
func (m PinMap) IsReserved(pin int) bool {
	for _, r := range m.Reserved {
		if r == pin {
			return true
		}
	}
	return false
}

// Validate rejects maps that assign a pin twice or put a sensor on a
// reserved pin.
func (m PinMap) Validate() error {
	seen := map[int]bool{}
	for _, p := range m.Used() {
		if p < 0 {
			return &errcode.E{C: errcode.UnknownPin, Op: m.Name, Msg: strconv.Itoa(p)}
		}
		if seen[p] {
			return &errcode.E{C: errcode.PinInUse, Op: m.Name, Msg: strconv.Itoa(p)}
		}
		seen[p] = true
	}
	for _, p := range m.sensors() {
		if m.IsReserved(p) {
			return &errcode.E{C: errcode.PinInUse, Op: m.Name, Msg: "reserved " + strconv.Itoa(p)}
		}
	}
	return nil
}
