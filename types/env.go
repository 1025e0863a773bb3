package types

type TemperatureInfo struct {
	Sensor string `json:"sensor"` // "ds18b20"
	Pin    int    `json:"pin"`    // one-wire data pin
	ROM    string `json:"rom,omitempty"`
}

type TemperatureValue struct {
	// Tenths of °C (e.g. 231 => 23.1°C).
	DeciC int16 `json:"deci_c"`
}

type ButtonInfo struct {
	Pin int `json:"pin"`
}

type ButtonValue struct {
	Pressed bool `json:"pressed"`
}
