package setups

import (
	"strconv"

	"flowcode-go/services/hal/devices/ds18b20"
	flowmeter "flowcode-go/services/hal/devices/flow_meter"
	"flowcode-go/services/hal/devices/gpio_button"
	"flowcode-go/services/hal/devices/gpio_dout"
	"flowcode-go/services/hal/internal/platform/boards"
	"flowcode-go/types"
)

// Setup is everything the firmware needs to know about one board.
type Setup struct {
	Board    boards.PinMap
	HAL      types.HALConfig
	Dispense []types.DispenseRule
}

const (
	HeatValve = "relay0_1"
	PipeValve = "relay0_2"

	DefaultDispenseML = 250
)

// For derives the device list from a pin map. Relay ids follow the header
// names: relay<bank>_<position from 1>.
func For(m boards.PinMap) Setup {
	s := Setup{Board: m}

	for b, bank := range m.Relays {
		for i, pin := range bank {
			if m.IsReserved(pin) {
				continue
			}
			id := "relay" + strconv.Itoa(b) + "_" + strconv.Itoa(i+1)
			s.HAL.Devices = append(s.HAL.Devices, types.HALDevice{
				ID: id, Type: "valve", Params: gpio_dout.Params{Pin: pin},
			})
		}
	}

	s.HAL.Devices = append(s.HAL.Devices,
		types.HALDevice{ID: "heat", Type: "flow_meter", Params: flowmeter.Params{
			Pin: m.HeatFlow, PulsesPerLitre: 450, SampleMs: 1000, Actuator: HeatValve,
		}},
		types.HALDevice{ID: "pipe", Type: "flow_meter", Params: flowmeter.Params{
			Pin: m.PipeFlow, PulsesPerLitre: 450, SampleMs: 1000, Actuator: PipeValve,
		}},
		types.HALDevice{ID: "tank", Type: "ds18b20", Params: ds18b20.Params{Pin: m.OneWire}},
	)
	s.HAL.Pollers = append(s.HAL.Pollers, types.PollSpec{
		Domain: types.DomainEnv, Kind: types.KindTemperature, Name: "tank",
		Verb: "read", IntervalMs: 5000, JitterMs: 250,
	})

	if m.Button >= 0 {
		s.HAL.Devices = append(s.HAL.Devices, types.HALDevice{
			ID: "dispense", Type: "gpio_button",
			Params: gpio_button.Params{Pin: m.Button, Pull: "up", Invert: true, DebounceMs: 30},
		})
		s.Dispense = append(s.Dispense, types.DispenseRule{
			Button: "dispense", Sensor: "heat", TargetML: DefaultDispenseML,
		})
	}
	return s
}
