// Package report builds the fixed output report the Glacier pump firmware
// expects. The non-temperature bytes reproduce a USB capture of the vendor
// application verbatim; they are model-specific constants with no documented
// meaning and are not validated beyond being replayed as observed.
package report

import "math"

// Size is the exact length of every output report.
const Size = 10

// temperatureOffset is the only byte derived from a live value.
const temperatureOffset = 1

// Report is one fixed-size HID output report.
type Report [Size]byte

// Model describes one pump model: its USB identity and the captured
// constant table its firmware was observed to accept.
type Model struct {
	Name      string
	VendorID  uint16
	ProductID uint16
	frame     [Size]byte
}

// HWT700PT is the capture this tool was developed against.
var HWT700PT = Model{
	Name:      "HWT700PT",
	VendorID:  0xAA88,
	ProductID: 0x8666,
	frame:     [Size]byte{0x00, 0x32, 0x00, 0x00, 0x24, 0x11, 0x00, 0x00, 0x00, 0x00},
}

// HWT700PTZero is the alternate capture with every constant byte zeroed.
// Kept selectable until the frame is re-validated against a real device.
var HWT700PTZero = Model{
	Name:      "HWT700PT-zero",
	VendorID:  0xAA88,
	ProductID: 0x8666,
	frame:     [Size]byte{},
}

// Encode builds the report for a temperature. Offset 1 carries the rounded
// temperature clamped to an unsigned byte; every other offset comes from the
// model's constant table.
func (m Model) Encode(temperature float64) Report {
	r := Report(m.frame)
	r[temperatureOffset] = EncodeTemperature(temperature)

	return r
}

// EncodeTemperature rounds and clamps a temperature to the 0-255 wire range.
func EncodeTemperature(temperature float64) byte {
	rounded := math.Round(temperature)
	if rounded < 0 {
		return 0
	}
	if rounded > math.MaxUint8 {
		return math.MaxUint8
	}

	return byte(rounded)
}
